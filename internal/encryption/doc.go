// Package encryption seals record payloads for storage and sync.
//
// Every payload is encrypted under a fresh one-time key (PASETO v4.local:
// XChaCha20 with a BLAKE2b MAC). The one-time key is wrapped under the
// long-term wrapping key with PASERK k4.local-wrap.pie and carried, together
// with the wrapping key's k4.lid fingerprint, in the token footer:
//
//	v4.local.<b64url(n || c || t)>.<b64url({"wpk": "k4.local-wrap.pie...", "kid": "k4.lid..."})>
//
// The footer is authenticated by the token MAC. Decryption checks the key id
// before doing any cryptographic work so that a token sealed for a different
// key fails fast with a KEY_MISMATCH error naming both ids.
//
// Nothing in this package holds state between calls. Functions never panic on
// malformed input; they panic only when the system random source fails.
package encryption
