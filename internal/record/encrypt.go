package record

import (
	"fmt"

	"github.com/roach88/histsync/internal/encryption"
)

// Encrypt seals the data of r under key. Log metadata is copied unchanged.
func Encrypt(r Record[DecryptedData], key encryption.Key) (Record[EncryptedData], error) {
	token, err := encryption.Encrypt(r.Data, key)
	if err != nil {
		return Record[EncryptedData]{}, fmt.Errorf("encrypt record %s: %w", r.ID, err)
	}
	return withData(r, EncryptedData(token)), nil
}

// Decrypt opens the data of r with key. Log metadata is copied unchanged.
// Errors wrap *encryption.Error.
func Decrypt(r Record[EncryptedData], key encryption.Key) (Record[DecryptedData], error) {
	plain, err := encryption.Decrypt(r.Data, key)
	if err != nil {
		return Record[DecryptedData]{}, fmt.Errorf("decrypt record %s (tag=%s, host=%s): %w", r.ID, r.Tag, r.Host, err)
	}
	return withData(r, DecryptedData(plain)), nil
}

// DecryptAll decrypts records in order, stopping at the first failure.
func DecryptAll(records []Record[EncryptedData], key encryption.Key) ([]Record[DecryptedData], error) {
	out := make([]Record[DecryptedData], 0, len(records))
	for _, r := range records {
		d, err := Decrypt(r, key)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}
