// Package token provides digesting for server-side refresh-token storage.
//
// The refresh slot on a user record never holds the plain token. Equality of
// digests stands in for equality of token strings, so the slot-match check in
// the session protocol works without persisting client secrets.
package token
