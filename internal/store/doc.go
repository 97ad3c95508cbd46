// Package store provides durable storage for the encrypted record log.
//
// The store implements an append-only log of sealed records, partitioned into
// (host, tag) streams, with:
//   - Push: optimistic append that only succeeds on the current stream head
//   - Last: the head of one stream
//   - AllTagged: every record of a tag across all hosts, in log order
//   - Range/Status: the paging and head summary the syncer works from
//
// # Ordering
//
//   - Within a stream, idx is 0, 1, 2, ... and each parent names the record
//     before it. UNIQUE(host, tag, idx) backs this in the database.
//   - Across hosts, log order is local insertion order (seq), never
//     timestamps: ORDER BY seq ASC.
//
// # Concurrency
//
// Push runs the head check and insert in one transaction. A producer whose
// view of the head is stale gets ErrConflict and must reload the head and
// rebuild its record.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON
//
// MemoryStore has the same semantics without persistence.
package store
