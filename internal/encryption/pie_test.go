package encryption

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap_RoundTrip(t *testing.T) {
	for i := 0; i < 16; i++ {
		ptk := GenerateKey()
		wk := GenerateKey()

		wrapped := Wrap(ptk, wk)
		assert.True(t, strings.HasPrefix(wrapped, WrapHeader))

		got, err := Unwrap(wrapped, wk)
		require.NoError(t, err)
		assert.Equal(t, ptk, got)
	}
}

func TestWrap_FreshNonceEveryCall(t *testing.T) {
	ptk := GenerateKey()
	wk := GenerateKey()

	assert.NotEqual(t, Wrap(ptk, wk), Wrap(ptk, wk))
}

func TestWrap_WireLayout(t *testing.T) {
	wrapped := Wrap(GenerateKey(), GenerateKey())

	body, err := b64.DecodeString(strings.TrimPrefix(wrapped, WrapHeader))
	require.NoError(t, err)
	// tag(32) || nonce(32) || wrapped key(32)
	assert.Len(t, body, 96)
}

func TestWrapWithNonce_Deterministic(t *testing.T) {
	ptk := GenerateKey()
	wk := GenerateKey()
	n := make([]byte, wrapNonceSize)

	assert.Equal(t, wrapWithNonce(ptk, wk, n), wrapWithNonce(ptk, wk, n))
}

func TestWrapWithNonce_KnownAnswer(t *testing.T) {
	ptk := seqKey(0x00)
	wk := seqKey(0x70)
	n := make([]byte, wrapNonceSize)
	for i := range n {
		n[i] = 0xa0 + byte(i)
	}

	const want = "k4.local-wrap.pie.VWVnJ1HC-UY2TzyBRckOVio1B8a7KFZ8zAnA9mHTTaWgoaKjpKWmp6ipqqusra6vsLGys7S1tre4ubq7vL2-vxGZ9mvfsHTggZ9iDypfni5TeRnILEnkEzfa1lKozOLg"
	assert.Equal(t, want, wrapWithNonce(ptk, wk, n))

	got, err := Unwrap(want, wk)
	require.NoError(t, err)
	assert.Equal(t, ptk, got)
}

func TestUnwrap_WrongKey(t *testing.T) {
	wrapped := Wrap(GenerateKey(), GenerateKey())

	_, err := Unwrap(wrapped, GenerateKey())
	require.Error(t, err)
	assert.True(t, IsKind(err, KindAuthentication), "got %v", err)
	assert.True(t, IsSecurityRelevant(err))
}

func TestUnwrap_BadHeader(t *testing.T) {
	wk := GenerateKey()
	wrapped := Wrap(GenerateKey(), wk)

	_, err := Unwrap("k3.local-wrap.pie."+strings.TrimPrefix(wrapped, WrapHeader), wk)
	assert.True(t, IsKind(err, KindFormat), "got %v", err)

	_, err = Unwrap("", wk)
	assert.True(t, IsKind(err, KindFormat), "got %v", err)
}

func TestUnwrap_BadBase64(t *testing.T) {
	_, err := Unwrap(WrapHeader+"not*base64", GenerateKey())
	assert.True(t, IsKind(err, KindDecode), "got %v", err)
}

func TestUnwrap_Truncated(t *testing.T) {
	wk := GenerateKey()

	for _, size := range []int{0, 1, 32, 64} {
		_, err := Unwrap(WrapHeader+b64.EncodeToString(make([]byte, size)), wk)
		assert.True(t, IsKind(err, KindTruncated), "size %d: got %v", size, err)
	}
}

func TestUnwrap_WrongLengthAfterAuthentication(t *testing.T) {
	wk := GenerateKey()
	n := make([]byte, wrapNonceSize)

	// Build a correctly tagged wrap of a 16-byte secret.
	ek, n2 := splitKeyNonce(keyedHash(56, wk[:], []byte{wrapEncDomain}, n))
	ak := keyedHash(32, wk[:], []byte{wrapAuthDomain}, n)
	c := xorKeyStream(ek, n2, make([]byte, 16))
	tag := keyedHash(32, ak, []byte(WrapHeader), n, c)
	body := append(append(append([]byte{}, tag...), n...), c...)

	_, err := Unwrap(WrapHeader+b64.EncodeToString(body), wk)
	assert.True(t, IsKind(err, KindFormat), "got %v", err)
}

func TestUnwrap_TamperedByteFails(t *testing.T) {
	wk := GenerateKey()
	ptk := GenerateKey()
	wrapped := Wrap(ptk, wk)

	for i := range wrapped {
		tampered := []byte(wrapped)
		tampered[i] ^= 0x01

		got, err := Unwrap(string(tampered), wk)
		require.Error(t, err, "byte %d flipped but unwrap succeeded", i)
		assert.Equal(t, Key{}, got)
	}
}
