package encryption

import (
	"fmt"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/chacha20"
)

// keyedHash computes BLAKE2b with the given output size over the
// concatenation of parts. A nil key gives the unkeyed hash.
func keyedHash(size int, key []byte, parts ...[]byte) []byte {
	h, err := blake2b.New(size, key)
	if err != nil {
		// Sizes and key lengths are package constants.
		panic(fmt.Sprintf("encryption: blake2b(%d): %v", size, err))
	}
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

// xorKeyStream applies XChaCha20 keyed by key and the 24-byte nonce.
func xorKeyStream(key, nonce, src []byte) []byte {
	c, err := chacha20.NewUnauthenticatedCipher(key, nonce)
	if err != nil {
		panic(fmt.Sprintf("encryption: xchacha20: %v", err))
	}
	dst := make([]byte, len(src))
	c.XORKeyStream(dst, src)
	return dst
}

// splitKeyNonce splits a 56-byte derivation into a 32-byte key and a
// 24-byte XChaCha20 nonce.
func splitKeyNonce(tmp []byte) (key, nonce []byte) {
	return tmp[:chacha20.KeySize], tmp[chacha20.KeySize:]
}
