// Package password implements Keel's password verifier: Argon2id hashing
// with PHC-style encoding, a strict decoder, and constant-time verification.
//
// Hashing is deliberately slow; cost parameters are fixed at startup and the
// verifier refuses attacker-supplied hashes with pathological parameters.
package password
