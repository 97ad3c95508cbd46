package testutil

import (
	"fmt"

	"github.com/roach88/histsync/internal/record"
)

// HostID returns a fixed host id derived from n, so tests and golden files
// can name hosts without random ids.
//
//	HostID(1) == 00000000-0000-7000-8000-000000000001
func HostID(n int) record.HostID {
	id, err := record.ParseHostID(fmt.Sprintf("00000000-0000-7000-8000-%012x", n))
	if err != nil {
		panic(err)
	}
	return id
}
