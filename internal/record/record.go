package record

import (
	"github.com/google/uuid"
)

// HostID identifies the device that produced a record.
type HostID uuid.UUID

// NewHostID returns a fresh host id.
func NewHostID() HostID {
	return HostID(uuid.Must(uuid.NewV7()))
}

// ParseHostID parses the canonical string form of a host id.
func ParseHostID(s string) (HostID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return HostID{}, err
	}
	return HostID(u), nil
}

func (h HostID) String() string {
	return uuid.UUID(h).String()
}

func (h HostID) MarshalText() ([]byte, error) {
	return uuid.UUID(h).MarshalText()
}

func (h *HostID) UnmarshalText(data []byte) error {
	return (*uuid.UUID)(h).UnmarshalText(data)
}

// RecordID identifies a record. Ids are UUIDv7 and so sort by creation time.
type RecordID uuid.UUID

// NewRecordID returns a fresh, time-sortable record id.
func NewRecordID() RecordID {
	return RecordID(uuid.Must(uuid.NewV7()))
}

// ParseRecordID parses the canonical string form of a record id.
func ParseRecordID(s string) (RecordID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return RecordID{}, err
	}
	return RecordID(u), nil
}

func (id RecordID) String() string {
	return uuid.UUID(id).String()
}

func (id RecordID) MarshalText() ([]byte, error) {
	return uuid.UUID(id).MarshalText()
}

func (id *RecordID) UnmarshalText(data []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(data)
}

// DecryptedData is a plaintext payload. Its format belongs to the caller.
type DecryptedData []byte

// EncryptedData is a sealed payload token.
type EncryptedData []byte

// Payload is the set of payload representations a Record can carry.
type Payload interface {
	DecryptedData | EncryptedData
}

// Record is the atomic unit of the log.
type Record[T Payload] struct {
	ID     RecordID
	Host   HostID
	Parent *RecordID // nil for idx 0
	Idx    uint64

	// Timestamp is creation time in unix nanoseconds. Advisory only;
	// ordering within a stream is by Idx.
	Timestamp int64

	// Version selects the decoder for Data.
	Version string

	// Tag names the logical stream, e.g. "dotfiles-alias".
	Tag string

	Data T
}

// Meta is the part of a record needed to extend its stream.
type Meta struct {
	ID   RecordID
	Host HostID
	Tag  string
	Idx  uint64
}

// Meta returns the stream position of r.
func (r Record[T]) Meta() Meta {
	return Meta{ID: r.ID, Host: r.Host, Tag: r.Tag, Idx: r.Idx}
}

// withData returns a copy of r carrying data. Every other field is copied
// unchanged.
func withData[T, U Payload](r Record[T], data U) Record[U] {
	out := Record[U]{
		ID:        r.ID,
		Host:      r.Host,
		Idx:       r.Idx,
		Timestamp: r.Timestamp,
		Version:   r.Version,
		Tag:       r.Tag,
		Data:      data,
	}
	if r.Parent != nil {
		p := *r.Parent
		out.Parent = &p
	}
	return out
}
