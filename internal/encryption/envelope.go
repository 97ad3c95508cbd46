package encryption

import (
	"encoding/json"
	"strings"
	"unicode/utf8"
)

// Footer is carried, authenticated but unencrypted, on every token.
type Footer struct {
	// WPK is the one-time key wrapped under the wrapping key.
	WPK string `json:"wpk"`
	// KID is the KeyID of the wrapping key.
	KID string `json:"kid"`
}

// Encrypt seals plaintext under a fresh one-time key and wraps that key
// under wrappingKey. Two calls with identical arguments return different
// tokens.
func Encrypt(plaintext []byte, wrappingKey Key) ([]byte, error) {
	ptk := GenerateKey()
	defer clear(ptk[:])

	footer, err := json.Marshal(Footer{
		WPK: Wrap(ptk, wrappingKey),
		KID: KeyID(wrappingKey),
	})
	if err != nil {
		return nil, newError(KindFormat, "encode footer", err)
	}

	payload := b64.EncodeToString(plaintext)

	nonce := make([]byte, localNonceSize)
	fillRandom(nonce)

	return []byte(sealLocal(ptk, nonce, []byte(payload), footer, nil)), nil
}

// Decrypt opens a token produced by Encrypt.
//
// The key id in the footer is compared with wrappingKey's id before any
// cryptographic work; a mismatch returns KindKeyMismatch naming both ids.
// Unwrap errors are returned unchanged. A token whose MAC does not verify
// returns KindDecryption and no plaintext.
func Decrypt(token []byte, wrappingKey Key) ([]byte, error) {
	footer, err := FooterOf(token)
	if err != nil {
		return nil, err
	}

	if current := KeyID(wrappingKey); current != footer.KID {
		return nil, newKeyMismatchError(current, footer.KID)
	}

	ptk, err := Unwrap(footer.WPK, wrappingKey)
	if err != nil {
		return nil, err
	}
	defer clear(ptk[:])

	payload, err := openLocal(ptk, string(token), nil)
	if err != nil {
		return nil, err
	}

	plaintext, err := b64.DecodeString(string(payload))
	if err != nil {
		return nil, newError(KindEncoding, "payload is not valid base64url", err)
	}
	return plaintext, nil
}

// FooterOf parses the footer of token without decrypting it.
func FooterOf(token []byte) (Footer, error) {
	if !utf8.Valid(token) {
		return Footer{}, newError(KindEncoding, "token is not valid UTF-8", nil)
	}

	s := string(token)
	i := strings.LastIndexByte(s, '.')
	if i < len(localHeader) {
		return Footer{}, newError(KindFormat, "token has no footer", nil)
	}

	raw, err := b64.DecodeString(s[i+1:])
	if err != nil {
		return Footer{}, newError(KindFormat, "footer is not valid base64url", err)
	}
	if !utf8.Valid(raw) {
		return Footer{}, newError(KindEncoding, "footer is not valid UTF-8", nil)
	}

	var footer Footer
	if err := json.Unmarshal(raw, &footer); err != nil {
		return Footer{}, newError(KindFormat, "footer is not valid JSON", err)
	}
	return footer, nil
}
