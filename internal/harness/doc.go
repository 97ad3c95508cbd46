// Package harness runs multi-host scenarios against the record stores.
//
// A scenario names a set of hosts, each with its own in-memory store and a
// shared encryption key, then applies a list of steps (alias, var and kv
// changes, and syncs between hosts) and checks assertions on the result.
// Every host uses a deterministic clock, and the trace records stream
// positions rather than record ids, so a run can be compared byte for byte
// with a golden file.
//
// # Scenario Format
//
//	name: two_hosts
//	description: "Aliases set on one host reach the other after a sync"
//	hosts: [laptop, desktop]
//	steps:
//	  - host: laptop
//	    action: alias.set
//	    args: { name: k, value: kubectl }
//	  - host: laptop
//	    action: sync
//	    args: { peer: desktop }
//	  - host: desktop
//	    action: alias.set
//	    args: { name: "bad name", value: x }
//	    expect: { error: "invalid character" }
//	assertions:
//	  - type: aliases
//	    host: desktop
//	    expect: { k: kubectl }
//	  - type: init
//	    host: desktop
//	    shell: bash
//	    output: "alias k='kubectl'"
//	  - type: converged
//
// # Assertion Types
//
//   - aliases: the host's aliases are exactly expect (name: value)
//   - vars: the host's variables are exactly expect (name: value)
//   - kv: the host's entries are exactly expect ("namespace.key": value)
//   - init: alias then var init output for shell equals output
//   - records: the host's store holds count records with tag
//   - trace_count: action appears count times in the trace
//   - converged: every host holds the same stream heads and reduces to
//     the same state
package harness
