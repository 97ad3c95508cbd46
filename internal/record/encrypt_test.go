package record_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/histsync/internal/encryption"
	"github.com/roach88/histsync/internal/record"
)

func TestEncrypt_PreservesMetadata(t *testing.T) {
	key := encryption.GenerateKey()
	records := buildStream(newBuilder(1, "dotfiles-alias"), 3)
	plain := records[2]

	sealed, err := record.Encrypt(plain, key)
	require.NoError(t, err)

	assert.Equal(t, plain.Meta(), sealed.Meta())
	assert.Equal(t, plain.Timestamp, sealed.Timestamp)
	assert.Equal(t, plain.Version, sealed.Version)
	assert.Equal(t, plain.Parent, sealed.Parent)
	assert.NotEqual(t, []byte(plain.Data), []byte(sealed.Data))

	opened, err := record.Decrypt(sealed, key)
	require.NoError(t, err)
	assert.Equal(t, plain, opened)
}

func TestEncrypt_ParentNotShared(t *testing.T) {
	key := encryption.GenerateKey()
	records := buildStream(newBuilder(1, "kv"), 2)

	sealed, err := record.Encrypt(records[1], key)
	require.NoError(t, err)

	*sealed.Parent = record.NewRecordID()
	assert.Equal(t, records[0].ID, *records[1].Parent)
}

func TestDecrypt_WrongKey(t *testing.T) {
	records := buildStream(newBuilder(1, "kv"), 1)

	sealed, err := record.Encrypt(records[0], encryption.GenerateKey())
	require.NoError(t, err)

	_, err = record.Decrypt(sealed, encryption.GenerateKey())
	require.Error(t, err)
	assert.True(t, encryption.IsKind(err, encryption.KindKeyMismatch))
	assert.Contains(t, err.Error(), "tag=kv")
}

func TestDecryptAll_StopsAtFirstFailure(t *testing.T) {
	key := encryption.GenerateKey()
	records := buildStream(newBuilder(1, "kv"), 3)

	sealed := make([]record.Record[record.EncryptedData], 0, len(records))
	for _, r := range records {
		s, err := record.Encrypt(r, key)
		require.NoError(t, err)
		sealed = append(sealed, s)
	}

	opened, err := record.DecryptAll(sealed, key)
	require.NoError(t, err)
	assert.Equal(t, records, opened)

	sealed[1].Data[len(sealed[1].Data)/2] ^= 0x01
	_, err = record.DecryptAll(sealed, key)
	require.Error(t, err)
}
