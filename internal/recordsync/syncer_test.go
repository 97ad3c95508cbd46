package recordsync

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/histsync/internal/dotfiles"
	"github.com/roach88/histsync/internal/encryption"
	"github.com/roach88/histsync/internal/kv"
	"github.com/roach88/histsync/internal/record"
	"github.com/roach88/histsync/internal/store"
	"github.com/roach88/histsync/internal/testutil"
)

func statusOf(t *testing.T, s store.Store) *record.Status {
	t.Helper()
	st, err := s.Status(context.Background())
	require.NoError(t, err)
	return st
}

func TestSyncer_TwoHostsConverge(t *testing.T) {
	ctx := context.Background()
	key := encryption.GenerateKey()
	laptopHost, desktopHost := testutil.HostID(1), testutil.HostID(2)

	laptop := store.NewMemoryStore(laptopHost)
	desktop, err := store.Open(filepath.Join(t.TempDir(), "desktop.db"))
	require.NoError(t, err)
	t.Cleanup(func() { desktop.Close() })

	laptopAliases := dotfiles.NewAliasStore(laptop, key, laptopHost)
	desktopAliases := dotfiles.NewAliasStore(desktop, key, desktopHost)

	require.NoError(t, laptopAliases.Set(ctx, "k", "kubectl"))
	require.NoError(t, laptopAliases.Set(ctx, "gp", "git push"))
	require.NoError(t, desktopAliases.Set(ctx, "gs", "git status"))
	require.NoError(t, kv.New(desktop, key, desktopHost).Set(ctx, "ns", "theme", "dark"))

	res, err := New(laptop, desktop, WithPageSize(1)).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Uploaded)
	assert.Equal(t, 2, res.Downloaded)
	assert.Len(t, res.Operations, 3)

	assert.True(t, Compare(statusOf(t, laptop), statusOf(t, desktop)))

	want := []dotfiles.Alias{
		{Name: "gp", Value: "git push"},
		{Name: "gs", Value: "git status"},
		{Name: "k", Value: "kubectl"},
	}
	got, err := laptopAliases.Aliases(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	got, err = desktopAliases.Aliases(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	v, ok, err := kv.New(laptop, key, laptopHost).Get(ctx, "ns", "theme")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "dark", v)
}

func TestSyncer_SecondRunIsNoop(t *testing.T) {
	ctx := context.Background()
	key := encryption.GenerateKey()
	local := store.NewMemoryStore(testutil.HostID(1))
	remote := store.NewMemoryStore(testutil.HostID(2))

	aliases := dotfiles.NewAliasStore(local, key, testutil.HostID(1))
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, aliases.Set(ctx, name, "echo "+name))
	}

	syncer := New(local, remote, WithPageSize(2))
	res, err := syncer.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Uploaded)

	res, err = syncer.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Uploaded)
	assert.Zero(t, res.Downloaded)
	require.Len(t, res.Operations, 1)
	assert.Equal(t, Noop, res.Operations[0].Kind)

	// Only the new tail moves.
	require.NoError(t, aliases.Set(ctx, "f", "echo f"))
	res, err = syncer.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Uploaded)

	records, err := remote.AllTagged(ctx, dotfiles.AliasTag)
	require.NoError(t, err)
	assert.Len(t, records, 6)
	assert.NoError(t, record.VerifyChain(records))
}

func TestSyncer_DivergedStreamFails(t *testing.T) {
	ctx := context.Background()
	key := encryption.GenerateKey()
	host := testutil.HostID(1)
	local := store.NewMemoryStore(host)
	remote := store.NewMemoryStore(host)

	// The same host wrote different records to each side.
	require.NoError(t, dotfiles.NewAliasStore(local, key, host).Set(ctx, "a", "1"))
	require.NoError(t, dotfiles.NewAliasStore(local, key, host).Set(ctx, "b", "2"))
	require.NoError(t, dotfiles.NewAliasStore(remote, key, host).Set(ctx, "c", "3"))

	_, err := New(local, remote).Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrConflict)
}

func TestSyncer_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	local := store.NewMemoryStore(testutil.HostID(1))
	require.NoError(t, dotfiles.NewAliasStore(local, encryption.GenerateKey(), testutil.HostID(1)).Set(ctx, "a", "1"))
	cancel()

	_, err := New(local, store.NewMemoryStore(testutil.HostID(2))).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
