// Package identity implements Keel's credential-store foundation.
//
// It defines the canonical User record, the persistence contract for user
// records and the single refresh-token slot each user owns, and the stable
// error kinds shared by the session and HTTP layers.
//
// This package is intentionally dependency-light and security-first.
package identity
