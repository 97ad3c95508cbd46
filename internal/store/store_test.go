package store

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/histsync/internal/record"
	"github.com/roach88/histsync/internal/testutil"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err, "database file was not created")
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		require.NoError(t, err, "Open() iteration %d", i)
		s.Close()
	}

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	for _, table := range []string{"records", "meta"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		assert.NoError(t, err, "table %q not found after idempotent opens", table)
	}

	var index string
	err = s.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='index' AND name='idx_records_tag_seq'",
	).Scan(&index)
	assert.NoError(t, err)
}

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)

	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("foreign_keys", "1"))
	assert.NoError(t, s.verifyPragma("user_version", "1"))
}

func TestPush_ChainedStream(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		host := testutil.HostID(1)
		stream := createTestStream(host, "kv", 5)

		for _, r := range stream {
			require.NoError(t, s.Push(ctx, r))
		}

		head, err := s.Last(ctx, host, "kv")
		require.NoError(t, err)
		require.NotNil(t, head)
		assert.Equal(t, uint64(4), head.Idx)
		assert.Equal(t, stream[4].ID, head.ID)

		got, err := s.Range(ctx, host, "kv", 0, 100)
		require.NoError(t, err)
		assert.Equal(t, stream, got)
		assert.NoError(t, record.VerifyChain(got))
	})
}

func TestLast_EmptyStream(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		head, err := s.Last(context.Background(), testutil.HostID(1), "kv")
		require.NoError(t, err)
		assert.Nil(t, head)
	})
}

func TestPush_RejectsStaleHead(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		stream := createTestStream(testutil.HostID(1), "kv", 3)

		// Not starting at idx 0.
		assert.ErrorIs(t, s.Push(ctx, stream[1]), ErrConflict)

		require.NoError(t, s.Push(ctx, stream[0]))

		// Skipping idx 1.
		assert.ErrorIs(t, s.Push(ctx, stream[2]), ErrConflict)

		// Right idx, wrong parent.
		bad := stream[1]
		other := record.NewRecordID()
		bad.ID = record.NewRecordID()
		bad.Parent = &other
		assert.ErrorIs(t, s.Push(ctx, bad), ErrConflict)

		// A competing first record for the same stream.
		rival := createTestStream(testutil.HostID(1), "kv", 1)[0]
		assert.ErrorIs(t, s.Push(ctx, rival), ErrConflict)

		require.NoError(t, s.Push(ctx, stream[1]))
		require.NoError(t, s.Push(ctx, stream[2]))
	})
}

func TestPush_SameIDIsNoop(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		stream := createTestStream(testutil.HostID(1), "kv", 2)

		require.NoError(t, s.Push(ctx, stream[0]))
		require.NoError(t, s.Push(ctx, stream[1]))
		require.NoError(t, s.Push(ctx, stream[0]))

		all, err := s.AllTagged(ctx, "kv")
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})
}

func TestPush_ConcurrentProducersOneWins(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		const producers = 8

		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		for i := 0; i < producers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				r := createTestStream(testutil.HostID(1), "kv", 1)[0]
				if err := s.Push(ctx, r); err == nil {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, wins)
	})
}

func TestPush_ConcurrentHandlesOneWins(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "shared.db")

	handles := make([]*SQLiteStore, 2)
	for i := range handles {
		s, err := Open(path)
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		handles[i] = s
	}

	const producers = 8
	errs := make([]error, producers)
	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := createTestStream(testutil.HostID(1), "kv", 1)[0]
			errs[i] = handles[i%len(handles)].Push(ctx, r)
		}()
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, ErrConflict)
	}
	assert.Equal(t, 1, wins)
}

func TestIsUniqueViolation(t *testing.T) {
	s := createTestStore(t)
	insert := `INSERT INTO records (id, host, tag, idx, parent, timestamp, version, data)
		VALUES (?, 'h', 'kv', ?, NULL, 0, 'v0', x'00')`

	_, err := s.db.Exec(insert, "a", 0)
	require.NoError(t, err)

	_, err = s.db.Exec(insert, "b", 0)
	require.Error(t, err)
	assert.True(t, isUniqueViolation(err), "duplicate (host, tag, idx): %v", err)

	_, err = s.db.Exec(insert, "a", 1)
	require.Error(t, err)
	assert.True(t, isUniqueViolation(err), "duplicate id: %v", err)

	_, err = s.db.Exec(insert, "c", -1)
	require.Error(t, err)
	assert.False(t, isUniqueViolation(err), "check constraint: %v", err)
}

func TestDSN(t *testing.T) {
	assert.Equal(t, "/tmp/a.db?_txlock=immediate", dsn("/tmp/a.db"))
	assert.Equal(t, "file:a.db?mode=rwc&_txlock=immediate", dsn("file:a.db?mode=rwc"))
}

func TestAllTagged_LogOrderAcrossHosts(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		a := createTestStream(testutil.HostID(1), "dotfiles-alias", 2)
		b := createTestStream(testutil.HostID(2), "dotfiles-alias", 2)
		other := createTestStream(testutil.HostID(1), "kv", 1)

		for _, r := range []record.Record[record.EncryptedData]{a[0], b[0], other[0], b[1], a[1]} {
			require.NoError(t, s.Push(ctx, r))
		}

		got, err := s.AllTagged(ctx, "dotfiles-alias")
		require.NoError(t, err)
		assert.Equal(t, []record.Record[record.EncryptedData]{a[0], b[0], b[1], a[1]}, got)

		empty, err := s.AllTagged(ctx, "nothing")
		require.NoError(t, err)
		assert.NotNil(t, empty)
		assert.Empty(t, empty)
	})
}

func TestGet(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		stream := createTestStream(testutil.HostID(1), "kv", 2)
		for _, r := range stream {
			require.NoError(t, s.Push(ctx, r))
		}

		got, err := s.Get(ctx, stream[1].ID)
		require.NoError(t, err)
		assert.Equal(t, stream[1], got)

		_, err = s.Get(ctx, record.NewRecordID())
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestRange_Paging(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		host := testutil.HostID(1)
		stream := createTestStream(host, "kv", 7)
		for _, r := range stream {
			require.NoError(t, s.Push(ctx, r))
		}

		page, err := s.Range(ctx, host, "kv", 2, 3)
		require.NoError(t, err)
		assert.Equal(t, stream[2:5], page)

		tail, err := s.Range(ctx, host, "kv", 5, 100)
		require.NoError(t, err)
		assert.Equal(t, stream[5:], tail)

		none, err := s.Range(ctx, host, "kv", 7, 100)
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}

func TestStatus(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		for _, r := range createTestStream(testutil.HostID(1), "kv", 3) {
			require.NoError(t, s.Push(ctx, r))
		}
		for _, r := range createTestStream(testutil.HostID(2), "dotfiles-alias", 1) {
			require.NoError(t, s.Push(ctx, r))
		}

		status, err := s.Status(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, status.Len())

		idx, ok := status.Get(testutil.HostID(1), "kv")
		assert.True(t, ok)
		assert.Equal(t, uint64(2), idx)

		idx, ok = status.Get(testutil.HostID(2), "dotfiles-alias")
		assert.True(t, ok)
		assert.Equal(t, uint64(0), idx)
	})
}

func TestHostID_PersistsAcrossOpens(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "test.db")

	s1, err := Open(path)
	require.NoError(t, err)
	h1, err := s1.HostID(ctx)
	require.NoError(t, err)
	again, err := s1.HostID(ctx)
	require.NoError(t, err)
	assert.Equal(t, h1, again)
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()
	h2, err := s2.HostID(ctx)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestMemoryStore_CopiesOnRead(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(testutil.HostID(1))
	r := createTestStream(testutil.HostID(1), "kv", 1)[0]
	require.NoError(t, s.Push(ctx, r))

	got, err := s.Get(ctx, r.ID)
	require.NoError(t, err)
	got.Data[0] = 'X'

	again, err := s.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.Data, again.Data)
}
