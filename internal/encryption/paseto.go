package encryption

import (
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"strings"
)

// localHeader prefixes every PASETO v4.local token.
const localHeader = "v4.local."

const (
	localNonceSize = 32
	localTagSize   = 32

	localEncDomain  = "paseto-encryption-key"
	localAuthDomain = "paseto-auth-key-for-aead"
)

var errMalformedToken = errors.New("malformed v4.local token")

// sealLocal builds a v4.local token for message under key k with nonce n.
// The footer is appended in the clear and authenticated together with the
// implicit assertion.
func sealLocal(k Key, n, message, footer, assertion []byte) string {
	ek, n2 := splitKeyNonce(keyedHash(56, k[:], []byte(localEncDomain), n))
	ak := keyedHash(32, k[:], []byte(localAuthDomain), n)
	defer clear(ek)
	defer clear(ak)

	c := xorKeyStream(ek, n2, message)
	t := keyedHash(32, ak, pae([]byte(localHeader), n, c, footer, assertion))

	body := make([]byte, 0, len(n)+len(c)+len(t))
	body = append(body, n...)
	body = append(body, c...)
	body = append(body, t...)

	var sb strings.Builder
	sb.WriteString(localHeader)
	sb.WriteString(b64.EncodeToString(body))
	if len(footer) > 0 {
		sb.WriteByte('.')
		sb.WriteString(b64.EncodeToString(footer))
	}
	return sb.String()
}

// openLocal verifies and decrypts a v4.local token. All failures are
// reported as KindDecryption; nothing is decrypted unless the tag verifies.
func openLocal(k Key, token string, assertion []byte) ([]byte, error) {
	rest, ok := strings.CutPrefix(token, localHeader)
	if !ok {
		return nil, newError(KindDecryption, "token is not v4.local", nil)
	}

	var footer []byte
	payload, encodedFooter, hasFooter := strings.Cut(rest, ".")
	if hasFooter {
		f, err := b64.DecodeString(encodedFooter)
		if err != nil {
			return nil, newError(KindDecryption, "token footer", err)
		}
		footer = f
	}

	body, err := b64.DecodeString(payload)
	if err != nil {
		return nil, newError(KindDecryption, "token body", err)
	}
	if len(body) < localNonceSize+localTagSize {
		return nil, newError(KindDecryption, "token body", errMalformedToken)
	}

	n := body[:localNonceSize]
	c := body[localNonceSize : len(body)-localTagSize]
	t := body[len(body)-localTagSize:]

	ak := keyedHash(32, k[:], []byte(localAuthDomain), n)
	t2 := keyedHash(32, ak, pae([]byte(localHeader), n, c, footer, assertion))
	clear(ak)
	if subtle.ConstantTimeCompare(t, t2) != 1 {
		return nil, newError(KindDecryption, "token failed authentication", nil)
	}

	ek, n2 := splitKeyNonce(keyedHash(56, k[:], []byte(localEncDomain), n))
	defer clear(ek)
	return xorKeyStream(ek, n2, c), nil
}

// pae is PASETO pre-authentication encoding: the piece count followed by each
// piece, all lengths as little-endian 64-bit integers with the top bit clear.
func pae(pieces ...[]byte) []byte {
	size := 8
	for _, p := range pieces {
		size += 8 + len(p)
	}
	out := make([]byte, 0, size)
	out = binary.LittleEndian.AppendUint64(out, uint64(len(pieces))&^(1<<63))
	for _, p := range pieces {
		out = binary.LittleEndian.AppendUint64(out, uint64(len(p))&^(1<<63))
		out = append(out, p...)
	}
	return out
}
