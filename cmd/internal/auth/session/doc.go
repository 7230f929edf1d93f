// Package session implements Keel's session protocol and token codec.
//
// The protocol orchestrates register/login/refresh/logout/profile over the
// credential store, the password verifier, and the JWT codec, and enforces
// the single-active-refresh-token invariant: a user's session is exactly the
// refresh slot on their record, and login overwrites it (revoke-and-replace).
//
// Refresh is validate-without-reissue: a presented refresh token must decode
// under the refresh secret AND match the stored slot digest; it is never
// rotated on use and stays valid until its own expiry or until superseded.
package session
