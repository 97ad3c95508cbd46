// Package reduce folds a tag's decrypted record history into current state.
//
// The fold is last-write-wins by log order: records are applied oldest
// first, a set overwrites the value at its key and a delete removes it.
// Timestamps play no part. Replaying the same sequence always yields the
// same state, and folding a prefix then continuing with the suffix yields
// the same state as one full fold.
package reduce

import (
	"github.com/roach88/histsync/internal/record"
)

// Op is the kind of change an event makes.
type Op int

const (
	// OpSet creates or overwrites the value at a key.
	OpSet Op = iota
	// OpDelete removes a key. Deleting an absent key is a no-op.
	OpDelete
)

func (o Op) String() string {
	switch o {
	case OpSet:
		return "set"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Change is one decoded event.
type Change[K comparable, V any] struct {
	Op    Op
	Key   K
	Value V // zero for OpDelete
}

// Set returns a set change.
func Set[K comparable, V any](key K, value V) Change[K, V] {
	return Change[K, V]{Op: OpSet, Key: key, Value: value}
}

// Delete returns a delete change.
func Delete[K comparable, V any](key K) Change[K, V] {
	return Change[K, V]{Op: OpDelete, Key: key}
}

// DecodeFunc turns a record payload of the given version into a change.
// It returns an error built with UnsupportedVersion for unknown versions and
// Corruption for malformed data.
type DecodeFunc[K comparable, V any] func(version string, data []byte) (Change[K, V], error)

// State is an ordered map from key to value. Keys iterate in the order they
// were first set; a key deleted and set again moves to the end.
type State[K comparable, V any] struct {
	order  []K
	values map[K]V
}

// NewState returns an empty state.
func NewState[K comparable, V any]() *State[K, V] {
	return &State[K, V]{values: make(map[K]V)}
}

// Apply applies one change.
func (s *State[K, V]) Apply(c Change[K, V]) {
	switch c.Op {
	case OpSet:
		if _, ok := s.values[c.Key]; !ok {
			s.order = append(s.order, c.Key)
		}
		s.values[c.Key] = c.Value
	case OpDelete:
		if _, ok := s.values[c.Key]; !ok {
			return
		}
		delete(s.values, c.Key)
		for i, k := range s.order {
			if k == c.Key {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
}

// Get returns the value at key.
func (s *State[K, V]) Get(key K) (V, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Len returns the number of keys.
func (s *State[K, V]) Len() int {
	return len(s.values)
}

// Keys returns the keys in iteration order.
func (s *State[K, V]) Keys() []K {
	return append([]K(nil), s.order...)
}

// Values returns the values in key iteration order.
func (s *State[K, V]) Values() []V {
	out := make([]V, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.values[k])
	}
	return out
}

// Map returns a copy of the state as a plain map.
func (s *State[K, V]) Map() map[K]V {
	out := make(map[K]V, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Clone returns an independent copy of s.
func (s *State[K, V]) Clone() *State[K, V] {
	return &State[K, V]{order: s.Keys(), values: s.Map()}
}

// Fold folds records, in log order, into a fresh state.
// It stops at the first record that fails to decode.
func Fold[K comparable, V any](records []record.Record[record.DecryptedData], decode DecodeFunc[K, V]) (*State[K, V], error) {
	s := NewState[K, V]()
	if err := s.FoldInto(records, decode); err != nil {
		return nil, err
	}
	return s, nil
}

// FoldInto continues folding records into s. On error s holds the changes
// of every record before the failing one.
func (s *State[K, V]) FoldInto(records []record.Record[record.DecryptedData], decode DecodeFunc[K, V]) error {
	for _, r := range records {
		c, err := decode(r.Version, r.Data)
		if err != nil {
			return annotate(err, r)
		}
		s.Apply(c)
	}
	return nil
}
