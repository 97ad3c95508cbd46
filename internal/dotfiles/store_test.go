package dotfiles

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/histsync/internal/encryption"
	"github.com/roach88/histsync/internal/record"
	"github.com/roach88/histsync/internal/store"
	"github.com/roach88/histsync/internal/testutil"
)

func newGolden(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func newAliasStore(t *testing.T, st store.Store, key encryption.Key, host int) *AliasStore {
	t.Helper()
	return NewAliasStore(st, key, testutil.HostID(host), store.WithClock(testutil.NewDeterministicClock()))
}

func TestAliasStore_Scenario(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore(testutil.HostID(1))
	aliases := newAliasStore(t, st, encryption.GenerateKey(), 1)

	require.NoError(t, aliases.Set(ctx, "k", "kubectl"))
	require.NoError(t, aliases.Set(ctx, "gp", "git push"))
	require.NoError(t, aliases.Set(ctx, "kgap", "'kubectl get pods --all-namespaces'"))

	got, err := aliases.Aliases(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Alias{
		{Name: "gp", Value: "git push"},
		{Name: "k", Value: "kubectl"},
		{Name: "kgap", Value: "'kubectl get pods --all-namespaces'"},
	}, got)

	for _, shell := range []Shell{ShellPosix, ShellBash, ShellZsh} {
		out, err := aliases.Init(ctx, shell)
		require.NoError(t, err)
		newGolden(t).Assert(t, "alias_init_posix", []byte(out))
	}

	records, err := st.AllTagged(ctx, AliasTag)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.NoError(t, record.VerifyChain(records))
	for _, r := range records {
		assert.Equal(t, AliasVersion, r.Version)
	}
}

func TestAliasStore_DeleteSemantics(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore(testutil.HostID(1))
	aliases := newAliasStore(t, st, encryption.GenerateKey(), 1)

	require.NoError(t, aliases.Delete(ctx, "x"))
	records, err := st.AllTagged(ctx, AliasTag)
	require.NoError(t, err)
	assert.Empty(t, records, "deleting an unset alias writes nothing")

	require.NoError(t, aliases.Set(ctx, "x", "1"))
	require.NoError(t, aliases.Delete(ctx, "x"))

	got, err := aliases.Aliases(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)

	records, err = st.AllTagged(ctx, AliasTag)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestAliasStore_LastWriteWinsAcrossHosts(t *testing.T) {
	ctx := context.Background()
	key := encryption.GenerateKey()
	st := store.NewMemoryStore(testutil.HostID(1))

	laptop := newAliasStore(t, st, key, 1)
	desktop := newAliasStore(t, st, key, 2)

	require.NoError(t, laptop.Set(ctx, "k", "kubectl"))
	require.NoError(t, desktop.Set(ctx, "k", "kubecolor"))
	require.NoError(t, laptop.Set(ctx, "gs", "git status"))

	got, err := laptop.Aliases(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Alias{
		{Name: "gs", Value: "git status"},
		{Name: "k", Value: "kubecolor"},
	}, got)

	fromDesktop, err := desktop.Aliases(ctx)
	require.NoError(t, err)
	assert.Equal(t, got, fromDesktop)
}

func TestAliasStore_NormalizesNames(t *testing.T) {
	ctx := context.Background()
	aliases := newAliasStore(t, store.NewMemoryStore(testutil.HostID(1)), encryption.GenerateKey(), 1)

	decomposed := "cafe\u0301"
	composed := "caf\u00e9"

	require.NoError(t, aliases.Set(ctx, decomposed, "coffee"))
	require.NoError(t, aliases.Set(ctx, composed, "espresso"))

	got, err := aliases.Aliases(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Alias{{Name: composed, Value: "espresso"}}, got)

	require.NoError(t, aliases.Delete(ctx, decomposed))
	got, err = aliases.Aliases(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAliasStore_RejectsInvalidNames(t *testing.T) {
	ctx := context.Background()
	aliases := newAliasStore(t, store.NewMemoryStore(testutil.HostID(1)), encryption.GenerateKey(), 1)

	for _, name := range []string{"", "two words", "a=b", "it's", "tab\t", "nl\n"} {
		assert.Error(t, aliases.Set(ctx, name, "x"), "name %q", name)
	}
}

func TestAliasStore_WrongKey(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore(testutil.HostID(1))

	require.NoError(t, newAliasStore(t, st, encryption.GenerateKey(), 1).Set(ctx, "k", "kubectl"))

	var logs bytes.Buffer
	other := NewAliasStore(st, encryption.GenerateKey(), testutil.HostID(1),
		store.WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))

	_, err := other.Aliases(ctx)
	require.Error(t, err)
	assert.True(t, encryption.IsKind(err, encryption.KindKeyMismatch))
	assert.Contains(t, logs.String(), "record could not be decrypted")
	assert.Contains(t, logs.String(), "tag="+AliasTag)
}

func TestAliasStore_LogsTamperedRecords(t *testing.T) {
	ctx := context.Background()
	key := encryption.GenerateKey()
	st := store.NewMemoryStore(testutil.HostID(1))

	b := record.Builder{Host: testutil.HostID(3), Tag: AliasTag, Version: AliasVersion}
	data, err := CreateAlias("k", "kubectl").Serialize()
	require.NoError(t, err)
	sealed, err := record.Encrypt(b.Next(nil, data), key)
	require.NoError(t, err)

	// Flip a byte inside the token body, keeping the footer intact.
	tampered := append(record.EncryptedData{}, sealed.Data...)
	tampered[len("v4.local.")+10] ^= 'A' ^ 'B'
	sealed.Data = tampered
	require.NoError(t, st.Push(ctx, sealed))

	var logs bytes.Buffer
	aliases := NewAliasStore(st, key, testutil.HostID(1),
		store.WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))

	_, err = aliases.Aliases(ctx)
	require.Error(t, err)
	assert.Contains(t, logs.String(), "level=ERROR")
}

// conflictOnce fails the first Push with ErrConflict, as if another
// producer on this host had pushed first.
type conflictOnce struct {
	store.Store
	pushes int
}

func (c *conflictOnce) Push(ctx context.Context, r record.Record[record.EncryptedData]) error {
	c.pushes++
	if c.pushes == 1 {
		return store.ErrConflict
	}
	return c.Store.Push(ctx, r)
}

func TestAliasStore_RetriesConflictOnce(t *testing.T) {
	ctx := context.Background()
	st := &conflictOnce{Store: store.NewMemoryStore(testutil.HostID(1))}
	aliases := newAliasStore(t, st, encryption.GenerateKey(), 1)

	require.NoError(t, aliases.Set(ctx, "k", "kubectl"))
	assert.Equal(t, 2, st.pushes)

	got, err := aliases.Aliases(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Alias{{Name: "k", Value: "kubectl"}}, got)
}

type alwaysConflict struct {
	store.Store
}

func (alwaysConflict) Push(context.Context, record.Record[record.EncryptedData]) error {
	return store.ErrConflict
}

func TestAliasStore_GivesUpAfterRetry(t *testing.T) {
	aliases := newAliasStore(t, alwaysConflict{store.NewMemoryStore(testutil.HostID(1))}, encryption.GenerateKey(), 1)

	err := aliases.Set(context.Background(), "k", "kubectl")
	assert.ErrorIs(t, err, store.ErrConflict)
}

func TestVarStore_SQLite(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(filepath.Join(t.TempDir(), "records.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	host, err := st.HostID(ctx)
	require.NoError(t, err)

	vars := NewVarStore(st, encryption.GenerateKey(), host, store.WithClock(testutil.NewDeterministicClock()))
	require.NoError(t, vars.Set(ctx, "PAGER", "less", true))
	require.NoError(t, vars.Set(ctx, "histsize", "5000", false))
	require.NoError(t, vars.Set(ctx, "EDITOR", "vim", true))
	require.NoError(t, vars.Set(ctx, "PAGER", "less -R", true))
	require.NoError(t, vars.Set(ctx, "TMP", "/tmp", true))
	require.NoError(t, vars.Delete(ctx, "TMP"))

	got, err := vars.Vars(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Var{
		{Name: "EDITOR", Value: "vim", Export: true},
		{Name: "PAGER", Value: "less -R", Export: true},
		{Name: "histsize", Value: "5000"},
	}, got)

	out, err := vars.Init(ctx, ShellFish)
	require.NoError(t, err)
	newGolden(t).Assert(t, "var_init_fish", []byte(out))

	records, err := st.Range(ctx, host, VarTag, 0, 100)
	require.NoError(t, err)
	assert.Len(t, records, 6)
	assert.NoError(t, record.VerifyChain(records))
}

func TestStreamsAreIndependent(t *testing.T) {
	ctx := context.Background()
	key := encryption.GenerateKey()
	st := store.NewMemoryStore(testutil.HostID(1))

	aliases := newAliasStore(t, st, key, 1)
	vars := NewVarStore(st, key, testutil.HostID(1))

	require.NoError(t, aliases.Set(ctx, "k", "kubectl"))
	require.NoError(t, vars.Set(ctx, "k", "v", false))

	a, err := aliases.Aliases(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Alias{{Name: "k", Value: "kubectl"}}, a)

	v, err := vars.Vars(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Var{{Name: "k", Value: "v"}}, v)
}
