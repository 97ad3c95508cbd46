package harness

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/histsync/internal/dotfiles"
	"github.com/roach88/histsync/internal/recordsync"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s %s\n", event.Step, event.Host, event.Action, formatMap(event.Args))
		}
	}
	return buf.String()
}

// assertState compares one of a host's final maps with the expected one.
// The match is exact: missing and extra names both fail.
func assertState(kind string, actual, expected map[string]string, trace []TraceEvent) error {
	if mapsEqual(actual, expected) {
		return nil
	}
	return &AssertionError{
		Type:     kind,
		Expected: formatMap(expected),
		Actual:   formatMap(actual),
		Trace:    trace,
	}
}

// assertInit renders the host's aliases and vars for a shell and compares
// the concatenation with the expected output. Trailing newlines are ignored.
func assertInit(ctx context.Context, n *node, assertion Assertion) error {
	shell, err := dotfiles.ParseShell(assertion.Shell)
	if err != nil {
		return err
	}
	aliases, err := n.aliases.Init(ctx, shell)
	if err != nil {
		return err
	}
	vars, err := n.vars.Init(ctx, shell)
	if err != nil {
		return err
	}

	var parts []string
	for _, p := range []string{aliases, vars} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	actual := strings.Join(parts, "\n")
	expected := strings.TrimRight(assertion.Output, "\n")
	if actual != expected {
		return &AssertionError{
			Type:     AssertInit,
			Expected: fmt.Sprintf("%s output %q", shell, expected),
			Actual:   fmt.Sprintf("%q", actual),
		}
	}
	return nil
}

// assertRecords checks how many records of a tag the host holds, across
// all producing hosts.
func assertRecords(ctx context.Context, n *node, assertion Assertion) error {
	records, err := n.store.AllTagged(ctx, assertion.Tag)
	if err != nil {
		return err
	}
	if len(records) != assertion.Count {
		return &AssertionError{
			Type:     AssertRecords,
			Expected: fmt.Sprintf("%d %s records on %s", assertion.Count, assertion.Tag, n.name),
			Actual:   fmt.Sprintf("%d records", len(records)),
		}
	}
	return nil
}

// assertTraceCount checks if the action appears exactly the specified number of times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Action == assertion.Action {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Action),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertConverged checks that every host holds the same stream heads and
// the same reduced state.
func assertConverged(ctx context.Context, h *Harness, result *Result) error {
	if len(h.order) < 2 {
		return nil
	}
	first := h.nodes[h.order[0]]
	want, err := first.store.Status(ctx)
	if err != nil {
		return err
	}
	for _, name := range h.order[1:] {
		got, err := h.nodes[name].store.Status(ctx)
		if err != nil {
			return err
		}
		if !recordsync.Compare(want, got) {
			return &AssertionError{
				Type:     AssertConverged,
				Expected: fmt.Sprintf("%s holds the same streams as %s", name, first.name),
				Actual:   fmt.Sprintf("%d streams on %s, %d on %s", want.Len(), first.name, got.Len(), name),
				Trace:    result.Trace,
			}
		}

		a, b := result.State[first.name], result.State[name]
		if !mapsEqual(a.Aliases, b.Aliases) || !mapsEqual(a.Vars, b.Vars) || !mapsEqual(a.KV, b.KV) {
			return &AssertionError{
				Type:     AssertConverged,
				Expected: fmt.Sprintf("%s reduces to the same state as %s", name, first.name),
				Actual:   "state differs",
				Trace:    result.Trace,
			}
		}
	}
	return nil
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(ctx context.Context, result *Result, assertions []Assertion, h *Harness) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error
		n := h.nodes[assertion.Host]

		switch assertion.Type {
		case AssertAliases:
			err = assertState(AssertAliases, result.State[assertion.Host].Aliases, assertion.Expect, result.Trace)
		case AssertVars:
			err = assertState(AssertVars, result.State[assertion.Host].Vars, assertion.Expect, result.Trace)
		case AssertKV:
			err = assertState(AssertKV, result.State[assertion.Host].KV, assertion.Expect, result.Trace)
		case AssertInit:
			err = assertInit(ctx, n, assertion)
		case AssertRecords:
			err = assertRecords(ctx, n, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertConverged:
			err = assertConverged(ctx, h, result)
		default:
			err = fmt.Errorf("unknown assertion type %q", assertion.Type)
		}

		if err != nil {
			errors = append(errors, fmt.Sprintf("assertion[%d]: %v", i, err))
		}
	}

	return errors
}

func mapsEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if w, ok := b[k]; !ok || w != v {
			return false
		}
	}
	return true
}

// formatMap renders a map with sorted keys for deterministic messages.
func formatMap(m map[string]string) string {
	if len(m) == 0 {
		return "{}"
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%q", k, m[k]))
	}
	return "{" + strings.Join(parts, " ") + "}"
}
