package dotfiles

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/histsync/internal/encryption"
	"github.com/roach88/histsync/internal/record"
	"github.com/roach88/histsync/internal/reduce"
	"github.com/roach88/histsync/internal/store"
)

// normalizeName NFC-normalizes a name and rejects ones a shell could not
// use as an identifier.
func normalizeName(name string) (string, error) {
	name = norm.NFC.String(name)
	if name == "" {
		return "", errors.New("name must not be empty")
	}
	if i := strings.IndexFunc(name, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r) || r == '=' || r == '\'' || r == '"'
	}); i >= 0 {
		return "", fmt.Errorf("name %q contains invalid character at byte %d", name, i)
	}
	return name, nil
}

// AliasStore reads and writes the alias stream.
type AliasStore struct {
	stream store.Stream
}

// NewAliasStore returns an alias store writing as host.
func NewAliasStore(st store.Store, key encryption.Key, host record.HostID, opts ...store.StreamOption) *AliasStore {
	return &AliasStore{stream: store.NewStream(st, key, host, AliasTag, opts...)}
}

// Set creates or overwrites an alias.
func (s *AliasStore) Set(ctx context.Context, name, value string) error {
	name, err := normalizeName(name)
	if err != nil {
		return err
	}
	return s.append(ctx, CreateAlias(name, value))
}

// Delete removes an alias. Deleting an alias that is not set writes
// nothing.
func (s *AliasStore) Delete(ctx context.Context, name string) error {
	name = norm.NFC.String(name)

	state, err := s.state(ctx)
	if err != nil {
		return err
	}
	if _, ok := state.Get(name); !ok {
		return nil
	}
	return s.append(ctx, DeleteAlias(name))
}

// Aliases returns the current aliases sorted by name.
func (s *AliasStore) Aliases(ctx context.Context) ([]Alias, error) {
	state, err := s.state(ctx)
	if err != nil {
		return nil, err
	}
	aliases := state.Values()
	sort.Slice(aliases, func(i, j int) bool { return aliases[i].Name < aliases[j].Name })
	return aliases, nil
}

// Init renders the current aliases for shell.
func (s *AliasStore) Init(ctx context.Context, shell Shell) (string, error) {
	aliases, err := s.Aliases(ctx)
	if err != nil {
		return "", err
	}
	return RenderAliases(shell, aliases), nil
}

func (s *AliasStore) append(ctx context.Context, r AliasRecord) error {
	data, err := r.Serialize()
	if err != nil {
		return err
	}
	_, err = s.stream.Append(ctx, AliasVersion, data)
	return err
}

func (s *AliasStore) state(ctx context.Context) (*reduce.State[string, Alias], error) {
	records, err := s.stream.Load(ctx)
	if err != nil {
		return nil, err
	}
	return reduce.Fold(records, decodeAliasChange)
}

// VarStore reads and writes the variable stream.
type VarStore struct {
	stream store.Stream
}

// NewVarStore returns a var store writing as host.
func NewVarStore(st store.Store, key encryption.Key, host record.HostID, opts ...store.StreamOption) *VarStore {
	return &VarStore{stream: store.NewStream(st, key, host, VarTag, opts...)}
}

// Set creates or overwrites a variable.
func (s *VarStore) Set(ctx context.Context, name, value string, export bool) error {
	name, err := normalizeName(name)
	if err != nil {
		return err
	}
	return s.append(ctx, CreateVar(name, value, export))
}

// Delete removes a variable. Deleting a variable that is not set writes
// nothing.
func (s *VarStore) Delete(ctx context.Context, name string) error {
	name = norm.NFC.String(name)

	state, err := s.state(ctx)
	if err != nil {
		return err
	}
	if _, ok := state.Get(name); !ok {
		return nil
	}
	return s.append(ctx, DeleteVar(name))
}

// Vars returns the current variables sorted by name.
func (s *VarStore) Vars(ctx context.Context) ([]Var, error) {
	state, err := s.state(ctx)
	if err != nil {
		return nil, err
	}
	vars := state.Values()
	sort.Slice(vars, func(i, j int) bool { return vars[i].Name < vars[j].Name })
	return vars, nil
}

// Init renders the current variables for shell.
func (s *VarStore) Init(ctx context.Context, shell Shell) (string, error) {
	vars, err := s.Vars(ctx)
	if err != nil {
		return "", err
	}
	return RenderVars(shell, vars), nil
}

func (s *VarStore) append(ctx context.Context, r VarRecord) error {
	data, err := r.Serialize()
	if err != nil {
		return err
	}
	_, err = s.stream.Append(ctx, VarVersion, data)
	return err
}

func (s *VarStore) state(ctx context.Context) (*reduce.State[string, Var], error) {
	records, err := s.stream.Load(ctx)
	if err != nil {
		return nil, err
	}
	return reduce.Fold(records, decodeVarChange)
}
