package store

import (
	"context"
	"sync"

	"github.com/roach88/histsync/internal/record"
)

type streamKey struct {
	host record.HostID
	tag  string
}

// MemoryStore is an in-memory Store for tests and for peers that need no
// persistence. It has the same append semantics as SQLiteStore.
type MemoryStore struct {
	mu      sync.RWMutex
	log     []record.Record[record.EncryptedData] // insertion order
	byID    map[record.RecordID]int
	streams map[streamKey][]int // positions in log, idx order
	host    record.HostID
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store with the given host id.
func NewMemoryStore(host record.HostID) *MemoryStore {
	return &MemoryStore{
		log:     make([]record.Record[record.EncryptedData], 0, 64),
		byID:    make(map[record.RecordID]int),
		streams: make(map[streamKey][]int),
		host:    host,
	}
}

func (m *MemoryStore) Push(_ context.Context, r record.Record[record.EncryptedData]) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byID[r.ID]; exists {
		return nil
	}

	key := streamKey{host: r.Host, tag: r.Tag}
	if err := checkAppend(m.headLocked(key), r); err != nil {
		return err
	}

	pos := len(m.log)
	m.log = append(m.log, copyRecord(r))
	m.byID[r.ID] = pos
	m.streams[key] = append(m.streams[key], pos)
	return nil
}

func (m *MemoryStore) Last(_ context.Context, host record.HostID, tag string) (*record.Meta, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.headLocked(streamKey{host: host, tag: tag}), nil
}

func (m *MemoryStore) headLocked(key streamKey) *record.Meta {
	positions := m.streams[key]
	if len(positions) == 0 {
		return nil
	}
	meta := m.log[positions[len(positions)-1]].Meta()
	return &meta
}

func (m *MemoryStore) AllTagged(_ context.Context, tag string) ([]record.Record[record.EncryptedData], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []record.Record[record.EncryptedData]{}
	for _, r := range m.log {
		if r.Tag == tag {
			out = append(out, copyRecord(r))
		}
	}
	return out, nil
}

func (m *MemoryStore) Get(_ context.Context, id record.RecordID) (record.Record[record.EncryptedData], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pos, ok := m.byID[id]
	if !ok {
		return record.Record[record.EncryptedData]{}, ErrNotFound
	}
	return copyRecord(m.log[pos]), nil
}

func (m *MemoryStore) Range(_ context.Context, host record.HostID, tag string, start uint64, limit int) ([]record.Record[record.EncryptedData], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []record.Record[record.EncryptedData]{}
	positions := m.streams[streamKey{host: host, tag: tag}]
	// Stream positions are in idx order and idx == position in the stream.
	for i := start; i < uint64(len(positions)) && len(out) < limit; i++ {
		out = append(out, copyRecord(m.log[positions[i]]))
	}
	return out, nil
}

func (m *MemoryStore) Status(_ context.Context) (*record.Status, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status := record.NewStatus()
	for key, positions := range m.streams {
		status.Set(key.host, key.tag, m.log[positions[len(positions)-1]].Idx)
	}
	return status, nil
}

func (m *MemoryStore) HostID(_ context.Context) (record.HostID, error) {
	return m.host, nil
}

func (m *MemoryStore) Close() error {
	return nil
}

// copyRecord deep-copies r to prevent external mutation.
func copyRecord(r record.Record[record.EncryptedData]) record.Record[record.EncryptedData] {
	cp := r
	cp.Data = append(record.EncryptedData(nil), r.Data...)
	if r.Parent != nil {
		p := *r.Parent
		cp.Parent = &p
	}
	return cp
}
