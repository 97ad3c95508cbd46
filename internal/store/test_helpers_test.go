package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/histsync/internal/record"
	"github.com/roach88/histsync/internal/testutil"
)

// createTestStore creates a new SQLite store in a temp directory.
func createTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// forEachStore runs fn against every Store implementation.
func forEachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("sqlite", func(t *testing.T) { fn(t, createTestStore(t)) })
	t.Run("memory", func(t *testing.T) { fn(t, NewMemoryStore(testutil.HostID(99))) })
}

// createTestStream builds n chained records for (host, tag). Data is opaque
// to the store, so it is not really encrypted.
func createTestStream(host record.HostID, tag string, n int) []record.Record[record.EncryptedData] {
	b := record.Builder{Host: host, Tag: tag, Version: "v0", Clock: testutil.NewDeterministicClock()}
	var head *record.Meta
	out := make([]record.Record[record.EncryptedData], 0, n)
	for i := 0; i < n; i++ {
		r := b.Next(head, record.DecryptedData{byte(i)})
		m := r.Meta()
		head = &m
		out = append(out, record.Record[record.EncryptedData]{
			ID:        r.ID,
			Host:      r.Host,
			Parent:    r.Parent,
			Idx:       r.Idx,
			Timestamp: r.Timestamp,
			Version:   r.Version,
			Tag:       r.Tag,
			Data:      record.EncryptedData("sealed-" + string(rune('a'+i))),
		})
	}
	return out
}
