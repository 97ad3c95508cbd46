// Package recordsync brings two record stores to the same state.
//
// Each store reports the head idx of every (host, tag) stream it holds.
// Streams are append-only, so comparing heads says which side is behind
// and the missing records are exactly those past its head.
package recordsync

import (
	"fmt"
	"sort"

	"github.com/roach88/histsync/internal/record"
)

// Kind says which way records move for one stream.
type Kind int

const (
	Noop Kind = iota
	Upload
	Download
)

func (k Kind) String() string {
	switch k {
	case Upload:
		return "upload"
	case Download:
		return "download"
	default:
		return "noop"
	}
}

// MarshalText renders the kind by name in JSON output.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Operation is the work needed to align one (host, tag) stream. Local and
// Remote are the head idx on each side, nil where the stream is absent.
type Operation struct {
	Kind   Kind          `json:"kind"`
	Host   record.HostID `json:"host"`
	Tag    string        `json:"tag"`
	Local  *uint64       `json:"local"`
	Remote *uint64       `json:"remote"`
}

// Start is the first idx to transfer.
func (op Operation) Start() uint64 {
	behind := op.Remote
	if op.Kind == Download {
		behind = op.Local
	}
	if behind == nil {
		return 0
	}
	return *behind + 1
}

func (op Operation) String() string {
	show := func(p *uint64) string {
		if p == nil {
			return "-"
		}
		return fmt.Sprint(*p)
	}
	return fmt.Sprintf("%s %s/%s local=%s remote=%s", op.Kind, op.Host, op.Tag, show(op.Local), show(op.Remote))
}

// Diff compares two stores' heads and returns one operation per stream
// present on either side, sorted by host then tag.
func Diff(local, remote *record.Status) []Operation {
	type streamKey struct {
		host record.HostID
		tag  string
	}
	seen := make(map[streamKey]bool)
	var ops []Operation

	visit := func(host record.HostID, tag string) {
		k := streamKey{host, tag}
		if seen[k] {
			return
		}
		seen[k] = true

		op := Operation{Host: host, Tag: tag}
		if idx, ok := local.Get(host, tag); ok {
			op.Local = &idx
		}
		if idx, ok := remote.Get(host, tag); ok {
			op.Remote = &idx
		}

		switch {
		case op.Remote == nil || (op.Local != nil && *op.Local > *op.Remote):
			op.Kind = Upload
		case op.Local == nil || *op.Local < *op.Remote:
			op.Kind = Download
		default:
			op.Kind = Noop
		}
		ops = append(ops, op)
	}

	for _, s := range []*record.Status{local, remote} {
		for _, host := range s.Hosts() {
			for _, tag := range s.Tags(host) {
				visit(host, tag)
			}
		}
	}

	sort.Slice(ops, func(i, j int) bool {
		if hi, hj := ops[i].Host.String(), ops[j].Host.String(); hi != hj {
			return hi < hj
		}
		return ops[i].Tag < ops[j].Tag
	})
	return ops
}
