package encryption

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// KeySize is the length in bytes of every symmetric key.
const KeySize = 32

// Key is a 32-byte symmetric key: either a long-term wrapping key shared by a
// user's devices or a one-time key sealing a single payload.
type Key [KeySize]byte

// GenerateKey returns a fresh random key.
// Panics if the system random source fails.
func GenerateKey() Key {
	var k Key
	fillRandom(k[:])
	return k
}

// EncodeKey renders a key in the key file format: standard base64 of a
// MessagePack array of 32 unsigned integers.
func EncodeKey(k Key) (string, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if err := enc.EncodeArrayLen(len(k)); err != nil {
		return "", fmt.Errorf("encode key: %w", err)
	}
	for _, b := range k {
		if err := enc.EncodeUint(uint64(b)); err != nil {
			return "", fmt.Errorf("encode key: %w", err)
		}
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// DecodeKey parses a key produced by EncodeKey.
func DecodeKey(s string) (Key, error) {
	var k Key

	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return k, newError(KindEncoding, "key is not valid base64", err)
	}

	r := bytes.NewReader(raw)
	dec := msgpack.NewDecoder(r)
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return k, newError(KindFormat, "key is not a MessagePack array", err)
	}
	if n != KeySize {
		return k, newError(KindFormat, fmt.Sprintf("key has %d bytes, want %d", n, KeySize), nil)
	}
	for i := range k {
		b, err := dec.DecodeUint8()
		if err != nil {
			return Key{}, newError(KindFormat, fmt.Sprintf("key byte %d", i), err)
		}
		k[i] = b
	}
	if r.Len() != 0 {
		return Key{}, newError(KindFormat, "trailing bytes after key", nil)
	}
	return k, nil
}

// LoadKey reads and decodes the key file at path.
func LoadKey(path string) (Key, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Key{}, fmt.Errorf("read key file: %w", err)
	}
	k, err := DecodeKey(string(data))
	if err != nil {
		return Key{}, fmt.Errorf("load key %s: %w", path, err)
	}
	return k, nil
}

// SaveKey writes k to path with owner-only permissions.
// An existing key file is never overwritten.
func SaveKey(path string, k Key) error {
	encoded, err := EncodeKey(k)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create key directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("create key file: %w", err)
	}
	if _, err := f.WriteString(encoded); err != nil {
		f.Close()
		return fmt.Errorf("write key file: %w", err)
	}
	return f.Close()
}

// LoadOrCreateKey loads the key at path, generating and saving a new one if
// the file does not exist. The boolean reports whether a key was created.
func LoadOrCreateKey(path string) (Key, bool, error) {
	k, err := LoadKey(path)
	if err == nil {
		return k, false, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return Key{}, false, err
	}

	k = GenerateKey()
	if err := SaveKey(path, k); err != nil {
		return Key{}, false, err
	}
	return k, true, nil
}

// fillRandom fills b from the system random source.
// A failing random source is unrecoverable, so this panics.
func fillRandom(b []byte) {
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("encryption: random source failed: %v", err))
	}
}

// b64 is unpadded base64url. Decoding is strict so that no two encodings map
// to the same bytes.
var b64 = base64.RawURLEncoding.Strict()
