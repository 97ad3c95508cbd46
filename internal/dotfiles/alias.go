package dotfiles

import (
	"fmt"

	"github.com/roach88/histsync/internal/reduce"
)

const (
	// AliasTag is the record tag of the alias stream.
	AliasTag = "dotfiles-alias"

	// AliasVersion is the payload version written for alias records.
	AliasVersion = "v0"
)

// Alias is a shell alias.
type Alias struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// AliasRecord is one change to the alias set.
type AliasRecord struct {
	Op    reduce.Op
	Name  string
	Value string // empty for deletes
}

// CreateAlias returns the record that sets name to value.
func CreateAlias(name, value string) AliasRecord {
	return AliasRecord{Op: reduce.OpSet, Name: name, Value: value}
}

// DeleteAlias returns the record that removes name.
func DeleteAlias(name string) AliasRecord {
	return AliasRecord{Op: reduce.OpDelete, Name: name}
}

// Serialize encodes r as a v0 payload.
func (r AliasRecord) Serialize() ([]byte, error) {
	switch r.Op {
	case reduce.OpSet:
		return encodeTagged(opCreate, r.Name, r.Value)
	case reduce.OpDelete:
		return encodeTagged(opDelete, r.Name)
	default:
		return nil, fmt.Errorf("unknown alias op %d", r.Op)
	}
}

// DecodeAliasRecord decodes an alias payload of the given version.
func DecodeAliasRecord(version string, data []byte) (AliasRecord, error) {
	if version != AliasVersion {
		return AliasRecord{}, reduce.UnsupportedVersion(version)
	}

	d := newTaggedDecoder(data)
	op, n, err := d.header()
	if err != nil {
		return AliasRecord{}, err
	}

	var r AliasRecord
	switch op {
	case opCreate:
		if err := expectLen(op, n, 2); err != nil {
			return AliasRecord{}, err
		}
		if r.Name, err = d.str("name"); err != nil {
			return AliasRecord{}, err
		}
		if r.Value, err = d.str("value"); err != nil {
			return AliasRecord{}, err
		}
		r.Op = reduce.OpSet
	case opDelete:
		if err := expectLen(op, n, 1); err != nil {
			return AliasRecord{}, err
		}
		if r.Name, err = d.str("name"); err != nil {
			return AliasRecord{}, err
		}
		r.Op = reduce.OpDelete
	default:
		return AliasRecord{}, reduce.Corruption(fmt.Sprintf("unknown alias record kind %d", op), nil)
	}

	if err := d.done(); err != nil {
		return AliasRecord{}, err
	}
	return r, nil
}

// decodeAliasChange adapts DecodeAliasRecord to reduce.DecodeFunc.
func decodeAliasChange(version string, data []byte) (reduce.Change[string, Alias], error) {
	r, err := DecodeAliasRecord(version, data)
	if err != nil {
		return reduce.Change[string, Alias]{}, err
	}
	if r.Op == reduce.OpDelete {
		return reduce.Delete[string, Alias](r.Name), nil
	}
	return reduce.Set(r.Name, Alias{Name: r.Name, Value: r.Value}), nil
}
