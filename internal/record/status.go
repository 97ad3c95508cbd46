package record

import (
	"bytes"
	"sort"
)

// Status maps every (host, tag) stream to the idx of its last record.
type Status struct {
	heads map[HostID]map[string]uint64
}

// NewStatus returns an empty status.
func NewStatus() *Status {
	return &Status{heads: make(map[HostID]map[string]uint64)}
}

// Set records idx as the head of (host, tag).
func (s *Status) Set(host HostID, tag string, idx uint64) {
	tags, ok := s.heads[host]
	if !ok {
		tags = make(map[string]uint64)
		s.heads[host] = tags
	}
	tags[tag] = idx
}

// Get returns the head idx of (host, tag) and whether the stream exists.
func (s *Status) Get(host HostID, tag string) (uint64, bool) {
	idx, ok := s.heads[host][tag]
	return idx, ok
}

// Hosts returns every host with at least one stream, sorted.
func (s *Status) Hosts() []HostID {
	hosts := make([]HostID, 0, len(s.heads))
	for h := range s.heads {
		hosts = append(hosts, h)
	}
	sort.Slice(hosts, func(i, j int) bool {
		return bytes.Compare(hosts[i][:], hosts[j][:]) < 0
	})
	return hosts
}

// Tags returns the tags of host's streams, sorted.
func (s *Status) Tags(host HostID) []string {
	tags := make([]string, 0, len(s.heads[host]))
	for t := range s.heads[host] {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

// Len returns the number of streams.
func (s *Status) Len() int {
	n := 0
	for _, tags := range s.heads {
		n += len(tags)
	}
	return n
}
