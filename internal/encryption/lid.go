package encryption

// KeyIDHeader prefixes every key id (PASERK k4.lid).
const KeyIDHeader = "k4.lid."

// localKeyHeader prefixes the serialized form of a local key (PASERK k4.local).
const localKeyHeader = "k4.local."

const keyIDHashSize = 33

// KeyID returns the public fingerprint of k. It is deterministic and
// one-way; decryption uses it to detect a wrong key before unwrapping.
//
// The hash input is the id header followed by the key bytes in their
// serialized k4.local form, as PASERK defines it.
func KeyID(k Key) string {
	serialized := localKeyHeader + b64.EncodeToString(k[:])
	d := keyedHash(keyIDHashSize, nil, []byte(KeyIDHeader), []byte(serialized))
	return KeyIDHeader + b64.EncodeToString(d)
}
