// Package kv is a namespaced key-value store kept in the encrypted record
// log. Values written on one host are visible on every synced host.
package kv

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/histsync/internal/encryption"
	"github.com/roach88/histsync/internal/record"
	"github.com/roach88/histsync/internal/reduce"
	"github.com/roach88/histsync/internal/store"
)

const (
	// Tag is the record tag of the kv stream.
	Tag = "kv"

	// VersionSet is the payload version written for sets: [namespace, key, value].
	VersionSet = "v0"

	// VersionDelete is the payload version written for deletes:
	// [namespace, key]. It also reads the three-element set form.
	VersionDelete = "v1"

	// DefaultNamespace is used when no namespace is given.
	DefaultNamespace = "default"
)

// Entry is one stored value.
type Entry struct {
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	Value     string `json:"value"`
}

type entryKey struct {
	namespace string
	key       string
}

// Store reads and writes the kv stream.
type Store struct {
	stream store.Stream
}

// New returns a kv store writing as host.
func New(st store.Store, key encryption.Key, host record.HostID, opts ...store.StreamOption) *Store {
	return &Store{stream: store.NewStream(st, key, host, Tag, opts...)}
}

// Set stores value under (namespace, key).
func (s *Store) Set(ctx context.Context, namespace, key, value string) error {
	namespace, key = normalize(namespace, key)
	if err := validate(namespace, key); err != nil {
		return err
	}
	data, err := encodeStrings(namespace, key, value)
	if err != nil {
		return err
	}
	_, err = s.stream.Append(ctx, VersionSet, data)
	return err
}

// Delete removes (namespace, key). Deleting a missing key writes nothing.
func (s *Store) Delete(ctx context.Context, namespace, key string) error {
	namespace, key = normalize(namespace, key)
	if err := validate(namespace, key); err != nil {
		return err
	}
	state, err := s.state(ctx)
	if err != nil {
		return err
	}
	if _, ok := state.Get(entryKey{namespace, key}); !ok {
		return nil
	}

	data, err := encodeStrings(namespace, key)
	if err != nil {
		return err
	}
	_, err = s.stream.Append(ctx, VersionDelete, data)
	return err
}

// Get returns the value under (namespace, key).
func (s *Store) Get(ctx context.Context, namespace, key string) (string, bool, error) {
	namespace, key = normalize(namespace, key)
	state, err := s.state(ctx)
	if err != nil {
		return "", false, err
	}
	e, ok := state.Get(entryKey{namespace, key})
	return e.Value, ok, nil
}

// List returns the entries of namespace sorted by key. An empty namespace
// lists every namespace, sorted by namespace then key.
func (s *Store) List(ctx context.Context, namespace string) ([]Entry, error) {
	state, err := s.state(ctx)
	if err != nil {
		return nil, err
	}

	namespace = norm.NFC.String(namespace)

	var out []Entry
	for _, e := range state.Values() {
		if namespace == "" || e.Namespace == namespace {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Namespace != out[j].Namespace {
			return out[i].Namespace < out[j].Namespace
		}
		return out[i].Key < out[j].Key
	})
	return out, nil
}

func (s *Store) state(ctx context.Context) (*reduce.State[entryKey, Entry], error) {
	records, err := s.stream.Load(ctx)
	if err != nil {
		return nil, err
	}
	return reduce.Fold(records, decodeChange)
}

// normalize puts namespace and key in NFC so visually equal names match.
func normalize(namespace, key string) (string, string) {
	return norm.NFC.String(namespace), norm.NFC.String(key)
}

func validate(namespace, key string) error {
	if namespace == "" {
		return errors.New("namespace must not be empty")
	}
	if key == "" {
		return errors.New("key must not be empty")
	}
	return nil
}

func encodeStrings(fields ...string) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if err := enc.EncodeArrayLen(len(fields)); err != nil {
		return nil, err
	}
	for _, f := range fields {
		if err := enc.EncodeString(f); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func decodeStrings(data []byte) ([]string, error) {
	r := bytes.NewReader(data)
	dec := msgpack.NewDecoder(r)

	n, err := dec.DecodeArrayLen()
	if err != nil {
		return nil, reduce.Corruption("read array header", err)
	}
	if n < 0 || n > 3 {
		return nil, reduce.Corruption(fmt.Sprintf("kv record has %d fields", n), nil)
	}

	fields := make([]string, n)
	for i := range fields {
		if fields[i], err = reduce.DecodeString(dec, fmt.Sprintf("field %d", i)); err != nil {
			return nil, err
		}
	}
	if r.Len() != 0 {
		return nil, reduce.Corruption(fmt.Sprintf("%d trailing bytes", r.Len()), nil)
	}
	return fields, nil
}

// decodeChange decodes a kv payload. v0 only knows sets; v1 tells sets and
// deletes apart by field count.
func decodeChange(version string, data []byte) (reduce.Change[entryKey, Entry], error) {
	var none reduce.Change[entryKey, Entry]
	if version != VersionSet && version != VersionDelete {
		return none, reduce.UnsupportedVersion(version)
	}

	fields, err := decodeStrings(data)
	if err != nil {
		return none, err
	}

	switch {
	case len(fields) == 3:
		e := Entry{Namespace: fields[0], Key: fields[1], Value: fields[2]}
		return reduce.Set(entryKey{e.Namespace, e.Key}, e), nil
	case len(fields) == 2 && version == VersionDelete:
		return reduce.Delete[entryKey, Entry](entryKey{fields[0], fields[1]}), nil
	default:
		return none, reduce.Corruption(fmt.Sprintf("%s kv record has %d fields", version, len(fields)), nil)
	}
}

// DecodeRecord decodes one kv payload for display. Deletes return an
// entry without a value.
func DecodeRecord(version string, data []byte) (reduce.Op, Entry, error) {
	c, err := decodeChange(version, data)
	if err != nil {
		return 0, Entry{}, err
	}
	if c.Op == reduce.OpDelete {
		return c.Op, Entry{Namespace: c.Key.namespace, Key: c.Key.key}, nil
	}
	return c.Op, c.Value, nil
}
