// Package keys generates BLS signing keys and keeps them in a local,
// passphrase-protected key store.
//
// Key generation follows the IETF BLS KeyGen procedure over input keying
// material. Stored keys are sealed with XChaCha20-Poly1305 under a key
// derived by Argon2id; the public key is kept in clear so that
// listing does not need the passphrase.
package keys
