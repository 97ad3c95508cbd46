// Package record defines the append-only, host-partitioned record log.
//
// A record belongs to exactly one stream, identified by (host, tag). Within a
// stream the idx field starts at 0 and increases by one per record, and each
// record's parent names the id of the record before it:
//
//	idx 0: parent = nil
//	idx N: parent = id(idx N-1)
//
// Records are immutable once built. The chain is a backward reference by id,
// reconstructed by ordered lookup in the store, never a live pointer.
//
// Payloads are either DecryptedData or EncryptedData. The two are distinct
// types so sealed bytes cannot be handed to code expecting plaintext; Encrypt
// and Decrypt convert between them and touch nothing but Data.
package record
