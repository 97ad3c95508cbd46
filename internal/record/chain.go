package record

import (
	"fmt"
	"time"
)

// Clock supplies record timestamps.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Builder produces the records of one (host, tag) stream.
//
// Builder computes the intended next idx and parent from the last known
// record. It does no locking: callers serialize "read head", "build",
// "push" per stream, and the store rejects a push whose head moved.
type Builder struct {
	Host    HostID
	Tag     string
	Version string

	// Clock defaults to the system clock.
	Clock Clock
}

// Next builds the record that follows head. A nil head means the stream is
// empty and the record gets idx 0 and no parent.
//
// Panics if head belongs to a different stream; that is a caller bug.
func (b Builder) Next(head *Meta, data DecryptedData) Record[DecryptedData] {
	clock := b.Clock
	if clock == nil {
		clock = systemClock{}
	}

	r := Record[DecryptedData]{
		ID:        NewRecordID(),
		Host:      b.Host,
		Timestamp: clock.Now().UnixNano(),
		Version:   b.Version,
		Tag:       b.Tag,
		Data:      data,
	}

	if head != nil {
		if head.Host != b.Host || head.Tag != b.Tag {
			panic(fmt.Sprintf("record: head (%s, %s) does not belong to stream (%s, %s)",
				head.Host, head.Tag, b.Host, b.Tag))
		}
		parent := head.ID
		r.Parent = &parent
		r.Idx = head.Idx + 1
	}

	return r
}

// ChainError reports a break in a stream's idx/parent chain.
type ChainError struct {
	Host   HostID
	Tag    string
	Idx    uint64
	Reason string
}

func (e *ChainError) Error() string {
	return fmt.Sprintf("broken chain at idx %d (host=%s, tag=%s): %s", e.Idx, e.Host, e.Tag, e.Reason)
}

// VerifyChain checks that records form one complete stream in idx order:
// a single (host, tag), idx i at position i, no parent at idx 0, and each
// later parent naming the record before it.
func VerifyChain[T Payload](records []Record[T]) error {
	if len(records) == 0 {
		return nil
	}

	host, tag := records[0].Host, records[0].Tag
	for i, r := range records {
		fail := func(reason string, args ...any) error {
			return &ChainError{Host: host, Tag: tag, Idx: uint64(i), Reason: fmt.Sprintf(reason, args...)}
		}

		if r.Host != host || r.Tag != tag {
			return fail("record %s belongs to stream (%s, %s)", r.ID, r.Host, r.Tag)
		}
		if r.Idx != uint64(i) {
			return fail("record %s has idx %d", r.ID, r.Idx)
		}
		if i == 0 {
			if r.Parent != nil {
				return fail("first record has parent %s", *r.Parent)
			}
			continue
		}
		if r.Parent == nil {
			return fail("record %s has no parent", r.ID)
		}
		if *r.Parent != records[i-1].ID {
			return fail("record %s has parent %s, want %s", r.ID, *r.Parent, records[i-1].ID)
		}
	}
	return nil
}
