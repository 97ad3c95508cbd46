package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario is a multi-host test run.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Hosts lists host names. Each gets its own store; all share one key.
	Hosts []string `yaml:"hosts"`

	// Steps are applied in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the trace and final state.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one change or sync made on a host.
type Step struct {
	// Host is the name of the host acting.
	Host string `yaml:"host"`

	// Action is one of the Action* constants.
	Action string `yaml:"action"`

	// Args are the action arguments:
	//   alias.set: name, value       alias.delete: name
	//   var.set: name, value, export var.delete: name
	//   kv.set: namespace, key, value kv.delete: namespace, key
	//   sync: peer
	Args map[string]string `yaml:"args"`

	// Expect, if set, requires the step to fail with an error containing
	// Expect.Error. Steps without Expect must succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies an expected step failure.
type ExpectClause struct {
	Error string `yaml:"error"`
}

// Assertion validates the trace or a host's final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Host is the host inspected (aliases, vars, kv, init, records).
	Host string `yaml:"host,omitempty"`

	// Expect is the exact expected mapping (aliases, vars, kv).
	Expect map[string]string `yaml:"expect,omitempty"`

	// Shell and Output are used by init.
	Shell  string `yaml:"shell,omitempty"`
	Output string `yaml:"output,omitempty"`

	// Tag is used by records.
	Tag string `yaml:"tag,omitempty"`

	// Action is used by trace_count.
	Action string `yaml:"action,omitempty"`

	// Count is used by records and trace_count.
	Count int `yaml:"count,omitempty"`
}

// Step actions.
const (
	ActionAliasSet    = "alias.set"
	ActionAliasDelete = "alias.delete"
	ActionVarSet      = "var.set"
	ActionVarDelete   = "var.delete"
	ActionKVSet       = "kv.set"
	ActionKVDelete    = "kv.delete"
	ActionSync        = "sync"
)

// Assertion type constants.
const (
	AssertAliases    = "aliases"
	AssertVars       = "vars"
	AssertKV         = "kv"
	AssertInit       = "init"
	AssertRecords    = "records"
	AssertTraceCount = "trace_count"
	AssertConverged  = "converged"
)

// requiredArgs lists the args each action needs.
var requiredArgs = map[string][]string{
	ActionAliasSet:    {"name", "value"},
	ActionAliasDelete: {"name"},
	ActionVarSet:      {"name", "value"},
	ActionVarDelete:   {"name"},
	ActionKVSet:       {"namespace", "key", "value"},
	ActionKVDelete:    {"namespace", "key"},
	ActionSync:        {"peer"},
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and that
// every step and assertion refers to a declared host.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Hosts) == 0 {
		return fmt.Errorf("at least one host is required")
	}

	hosts := make(map[string]bool, len(s.Hosts))
	for _, h := range s.Hosts {
		if h == "" {
			return fmt.Errorf("host names must not be empty")
		}
		if hosts[h] {
			return fmt.Errorf("duplicate host %q", h)
		}
		hosts[h] = true
	}

	for i, step := range s.Steps {
		if !hosts[step.Host] {
			return fmt.Errorf("step %d: unknown host %q", i, step.Host)
		}
		args, ok := requiredArgs[step.Action]
		if !ok {
			return fmt.Errorf("step %d: unknown action %q", i, step.Action)
		}
		for _, arg := range args {
			if _, ok := step.Args[arg]; !ok {
				return fmt.Errorf("step %d: %s requires arg %q", i, step.Action, arg)
			}
		}
		if step.Action == ActionSync {
			peer := step.Args["peer"]
			if !hosts[peer] || peer == step.Host {
				return fmt.Errorf("step %d: invalid sync peer %q", i, peer)
			}
		}
	}

	for i, a := range s.Assertions {
		switch a.Type {
		case AssertAliases, AssertVars, AssertKV, AssertInit, AssertRecords:
			if !hosts[a.Host] {
				return fmt.Errorf("assertion %d: unknown host %q", i, a.Host)
			}
		case AssertTraceCount:
			if _, ok := requiredArgs[a.Action]; !ok {
				return fmt.Errorf("assertion %d: unknown action %q", i, a.Action)
			}
		case AssertConverged:
		default:
			return fmt.Errorf("assertion %d: unknown type %q", i, a.Type)
		}
		if a.Type == AssertInit && a.Shell == "" {
			return fmt.Errorf("assertion %d: init requires shell", i)
		}
		if a.Type == AssertRecords && a.Tag == "" {
			return fmt.Errorf("assertion %d: records requires tag", i)
		}
	}
	return nil
}
