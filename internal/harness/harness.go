package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/roach88/histsync/internal/dotfiles"
	"github.com/roach88/histsync/internal/encryption"
	"github.com/roach88/histsync/internal/kv"
	"github.com/roach88/histsync/internal/record"
	"github.com/roach88/histsync/internal/recordsync"
	"github.com/roach88/histsync/internal/store"
	"github.com/roach88/histsync/internal/testutil"
)

// node is one simulated host.
type node struct {
	name    string
	id      record.HostID
	store   *store.MemoryStore
	aliases *dotfiles.AliasStore
	vars    *dotfiles.VarStore
	kv      *kv.Store
}

// Harness is the test execution engine.
// It runs scenarios against in-memory stores with a deterministic clock.
type Harness struct {
	nodes  map[string]*node
	order  []string
	clock  *testutil.DeterministicClock
	logger *slog.Logger
}

// New builds a harness with one node per host. Host i (0-based) gets the
// id testutil.HostID(i+1); all nodes share key.
func New(hosts []string, key encryption.Key) *Harness {
	h := &Harness{
		nodes:  make(map[string]*node, len(hosts)),
		order:  hosts,
		clock:  testutil.NewDeterministicClock(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}
	for i, name := range hosts {
		id := testutil.HostID(i + 1)
		st := store.NewMemoryStore(id)
		aliases := dotfiles.NewAliasStore(st, key, id, store.WithClock(h.clock), store.WithLogger(h.logger))
		vars := dotfiles.NewVarStore(st, key, id, store.WithClock(h.clock), store.WithLogger(h.logger))
		entries := kv.New(st, key, id, store.WithClock(h.clock), store.WithLogger(h.logger))
		h.nodes[name] = &node{
			name:    name,
			id:      id,
			store:   st,
			aliases: aliases,
			vars:    vars,
			kv:      entries,
		}
	}
	return h
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs on fresh in-memory stores for isolation.
//
// Execution flow:
// 1. Create one store per host, all sharing a freshly generated key
// 2. Execute steps in order, checking expect clauses
// 3. Capture each host's final state
// 4. Evaluate assertions
//
// The returned error is reserved for failures of the harness itself; step
// and assertion failures are reported in Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	h := New(scenario.Hosts, encryption.GenerateKey())
	result := NewResult()

	for i, step := range scenario.Steps {
		event, err := h.execute(ctx, i, step)
		if err != nil {
			event.Error = err.Error()
		}
		result.AddTrace(event)
		if msg := checkExpect(i, step, err); msg != "" {
			result.AddError(msg)
		}
	}

	for _, name := range h.order {
		state, err := h.nodes[name].snapshot(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read state of %s: %w", name, err)
		}
		result.State[name] = state
	}

	for _, msg := range EvaluateAssertions(ctx, result, scenario.Assertions, h) {
		result.AddError(msg)
	}
	return result, nil
}

// checkExpect returns a failure message when err does not match the
// step's expectation, or "" when it does.
func checkExpect(i int, step Step, err error) string {
	switch {
	case step.Expect == nil && err != nil:
		return fmt.Sprintf("step %d (%s on %s): unexpected error: %v", i, step.Action, step.Host, err)
	case step.Expect != nil && err == nil:
		return fmt.Sprintf("step %d (%s on %s): expected error containing %q, got success",
			i, step.Action, step.Host, step.Expect.Error)
	case step.Expect != nil && !strings.Contains(err.Error(), step.Expect.Error):
		return fmt.Sprintf("step %d (%s on %s): expected error containing %q, got %q",
			i, step.Action, step.Host, step.Expect.Error, err.Error())
	}
	return ""
}

// execute applies one step and describes it as a trace event.
func (h *Harness) execute(ctx context.Context, i int, step Step) (TraceEvent, error) {
	event := TraceEvent{Step: i, Host: step.Host, Action: step.Action, Args: step.Args}
	n := h.nodes[step.Host]

	var tag string
	var err error
	switch step.Action {
	case ActionAliasSet:
		tag = dotfiles.AliasTag
		err = n.aliases.Set(ctx, step.Args["name"], step.Args["value"])
	case ActionAliasDelete:
		tag = dotfiles.AliasTag
		err = n.aliases.Delete(ctx, step.Args["name"])
	case ActionVarSet:
		tag = dotfiles.VarTag
		export := true
		if raw, ok := step.Args["export"]; ok {
			if export, err = strconv.ParseBool(raw); err != nil {
				return event, fmt.Errorf("invalid export flag %q: %w", raw, err)
			}
		}
		err = n.vars.Set(ctx, step.Args["name"], step.Args["value"], export)
	case ActionVarDelete:
		tag = dotfiles.VarTag
		err = n.vars.Delete(ctx, step.Args["name"])
	case ActionKVSet:
		tag = kv.Tag
		err = n.kv.Set(ctx, step.Args["namespace"], step.Args["key"], step.Args["value"])
	case ActionKVDelete:
		tag = kv.Tag
		err = n.kv.Delete(ctx, step.Args["namespace"], step.Args["key"])
	case ActionSync:
		peer := h.nodes[step.Args["peer"]]
		res, syncErr := recordsync.New(n.store, peer.store, recordsync.WithLogger(h.logger)).Run(ctx)
		event.Uploaded = res.Uploaded
		event.Downloaded = res.Downloaded
		return event, syncErr
	default:
		return event, fmt.Errorf("unknown action %q", step.Action)
	}
	if err != nil {
		return event, err
	}

	event.Tag = tag
	head, err := n.store.Last(ctx, n.id, tag)
	if err != nil {
		return event, err
	}
	if head != nil {
		idx := head.Idx
		event.Head = &idx
	}
	return event, nil
}

// snapshot reduces every stream the node holds.
func (n *node) snapshot(ctx context.Context) (HostState, error) {
	state := HostState{
		Aliases: map[string]string{},
		Vars:    map[string]string{},
		KV:      map[string]string{},
	}

	aliases, err := n.aliases.Aliases(ctx)
	if err != nil {
		return state, err
	}
	for _, a := range aliases {
		state.Aliases[a.Name] = a.Value
	}

	vars, err := n.vars.Vars(ctx)
	if err != nil {
		return state, err
	}
	for _, v := range vars {
		state.Vars[v.Name] = v.Value
	}

	entries, err := n.kv.List(ctx, "")
	if err != nil {
		return state, err
	}
	for _, e := range entries {
		state.KV[e.Namespace+"."+e.Key] = e.Value
	}
	return state, nil
}
