package encryption

import (
	"crypto/subtle"
	"strings"
)

// WrapHeader prefixes every wrapped key (PASERK k4.local-wrap.pie).
const WrapHeader = "k4.local-wrap.pie."

const (
	wrapTagSize   = 32
	wrapNonceSize = 32

	// Domain separation between the encryption-key and auth-key derivations.
	wrapEncDomain  = 0x80
	wrapAuthDomain = 0x81
)

// Wrap encrypts the one-time key ptk under the wrapping key wk.
// Every call draws a fresh nonce, so wrapping the same key twice yields
// different strings.
func Wrap(ptk, wk Key) string {
	n := make([]byte, wrapNonceSize)
	fillRandom(n)
	return wrapWithNonce(ptk, wk, n)
}

func wrapWithNonce(ptk, wk Key, n []byte) string {
	ek, n2 := splitKeyNonce(keyedHash(56, wk[:], []byte{wrapEncDomain}, n))
	ak := keyedHash(32, wk[:], []byte{wrapAuthDomain}, n)
	defer clear(ek)
	defer clear(ak)

	c := xorKeyStream(ek, n2, ptk[:])
	t := keyedHash(32, ak, []byte(WrapHeader), n, c)

	body := make([]byte, 0, len(t)+len(n)+len(c))
	body = append(body, t...)
	body = append(body, n...)
	body = append(body, c...)
	return WrapHeader + b64.EncodeToString(body)
}

// Unwrap recovers the one-time key from a string produced by Wrap.
//
// The tag is verified in constant time before any decryption happens.
// Errors: KindFormat (header or key length), KindDecode (base64),
// KindTruncated (too short), KindAuthentication (tag mismatch).
func Unwrap(wrapped string, wk Key) (Key, error) {
	rest, ok := strings.CutPrefix(wrapped, WrapHeader)
	if !ok {
		return Key{}, newError(KindFormat, "wrapped key does not start with "+WrapHeader, nil)
	}

	body, err := b64.DecodeString(rest)
	if err != nil {
		return Key{}, newError(KindDecode, "wrapped key is not valid base64url", err)
	}
	if len(body) <= wrapTagSize+wrapNonceSize {
		return Key{}, newError(KindTruncated, "wrapped key is too short", nil)
	}

	t := body[:wrapTagSize]
	n := body[wrapTagSize : wrapTagSize+wrapNonceSize]
	c := body[wrapTagSize+wrapNonceSize:]

	ak := keyedHash(32, wk[:], []byte{wrapAuthDomain}, n)
	t2 := keyedHash(32, ak, []byte(WrapHeader), n, c)
	clear(ak)
	if subtle.ConstantTimeCompare(t, t2) != 1 {
		return Key{}, newError(KindAuthentication, "wrapped key failed authentication", nil)
	}

	ek, n2 := splitKeyNonce(keyedHash(56, wk[:], []byte{wrapEncDomain}, n))
	defer clear(ek)
	plain := xorKeyStream(ek, n2, c)
	defer clear(plain)

	if len(plain) != KeySize {
		return Key{}, newError(KindFormat, "wrapped key has the wrong length", nil)
	}
	var ptk Key
	copy(ptk[:], plain)
	return ptk, nil
}
