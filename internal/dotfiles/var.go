package dotfiles

import (
	"fmt"

	"github.com/roach88/histsync/internal/reduce"
)

const (
	// VarTag is the record tag of the environment variable stream.
	VarTag = "dotfiles-var"

	// VarVersion is the payload version written for var records.
	VarVersion = "v0"
)

// Var is a shell variable. Exported variables are visible to child
// processes.
type Var struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Export bool   `json:"export"`
}

// VarRecord is one change to the variable set.
type VarRecord struct {
	Op     reduce.Op
	Name   string
	Value  string
	Export bool
}

// CreateVar returns the record that sets a variable.
func CreateVar(name, value string, export bool) VarRecord {
	return VarRecord{Op: reduce.OpSet, Name: name, Value: value, Export: export}
}

// DeleteVar returns the record that removes name.
func DeleteVar(name string) VarRecord {
	return VarRecord{Op: reduce.OpDelete, Name: name}
}

// Serialize encodes r as a v0 payload.
func (r VarRecord) Serialize() ([]byte, error) {
	switch r.Op {
	case reduce.OpSet:
		return encodeTagged(opCreate, r.Name, r.Value, r.Export)
	case reduce.OpDelete:
		return encodeTagged(opDelete, r.Name)
	default:
		return nil, fmt.Errorf("unknown var op %d", r.Op)
	}
}

// DecodeVarRecord decodes a var payload of the given version.
func DecodeVarRecord(version string, data []byte) (VarRecord, error) {
	if version != VarVersion {
		return VarRecord{}, reduce.UnsupportedVersion(version)
	}

	d := newTaggedDecoder(data)
	op, n, err := d.header()
	if err != nil {
		return VarRecord{}, err
	}

	var r VarRecord
	switch op {
	case opCreate:
		if err := expectLen(op, n, 3); err != nil {
			return VarRecord{}, err
		}
		if r.Name, err = d.str("name"); err != nil {
			return VarRecord{}, err
		}
		if r.Value, err = d.str("value"); err != nil {
			return VarRecord{}, err
		}
		if r.Export, err = d.boolean("export"); err != nil {
			return VarRecord{}, err
		}
		r.Op = reduce.OpSet
	case opDelete:
		if err := expectLen(op, n, 1); err != nil {
			return VarRecord{}, err
		}
		if r.Name, err = d.str("name"); err != nil {
			return VarRecord{}, err
		}
		r.Op = reduce.OpDelete
	default:
		return VarRecord{}, reduce.Corruption(fmt.Sprintf("unknown var record kind %d", op), nil)
	}

	if err := d.done(); err != nil {
		return VarRecord{}, err
	}
	return r, nil
}

func decodeVarChange(version string, data []byte) (reduce.Change[string, Var], error) {
	r, err := DecodeVarRecord(version, data)
	if err != nil {
		return reduce.Change[string, Var]{}, err
	}
	if r.Op == reduce.OpDelete {
		return reduce.Delete[string, Var](r.Name), nil
	}
	return reduce.Set(r.Name, Var{Name: r.Name, Value: r.Value, Export: r.Export}), nil
}
