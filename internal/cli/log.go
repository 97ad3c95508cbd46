package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/histsync/internal/dotfiles"
	"github.com/roach88/histsync/internal/encryption"
	"github.com/roach88/histsync/internal/kv"
	"github.com/roach88/histsync/internal/record"
	"github.com/roach88/histsync/internal/reduce"
)

// LogOptions holds flags for the log command.
type LogOptions struct {
	*RootOptions
	Host  string // optional - filter to one producing host
	Limit int    // optional - show only the last N entries
}

// LogEntry is one record in the history timeline.
type LogEntry struct {
	Seq       int       `json:"seq"`
	Host      string    `json:"host"`
	Idx       uint64    `json:"idx"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Op        string    `json:"op,omitempty"`
	Name      string    `json:"name,omitempty"`
	Value     string    `json:"value,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// LogStats holds summary statistics for the history.
type LogStats struct {
	Records int `json:"records"`
	Hosts   int `json:"hosts"`
	Sets    int `json:"sets"`
	Deletes int `json:"deletes"`
	Failed  int `json:"failed"`
}

// LogResult holds the complete log output.
type LogResult struct {
	Tag      string     `json:"tag"`
	Timeline []LogEntry `json:"timeline"`
	Stats    LogStats   `json:"stats"`
}

// logTags maps the short stream names accepted on the command line to tags.
var logTags = map[string]string{
	"alias": dotfiles.AliasTag,
	"var":   dotfiles.VarTag,
	"kv":    kv.Tag,
}

// NewLogCommand creates the log command.
func NewLogCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "log <alias|var|kv>",
		Short: "Show the change history of a stream",
		Long: `Show every change recorded for a stream, in the order this host
applied them, together with the host that made it.

The order shown is the order the current state is reduced in: a later
set or delete of the same name wins.

Examples:
  histsync log alias
  histsync log kv --limit 20
  histsync log var --host 0190d7e2-... --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tag, ok := logTags[args[0]]
			if !ok {
				return NewExitError(ExitCommandError, fmt.Sprintf("unknown stream %q: must be one of alias, var, kv", args[0]))
			}
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				return runLog(ctx, s, opts, tag)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Host, "host", "", "filter to changes made by this host id")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "show only the last N changes")

	return cmd
}

func runLog(ctx context.Context, s *session, opts *LogOptions, tag string) error {
	var hostFilter *record.HostID
	if opts.Host != "" {
		h, err := record.ParseHostID(opts.Host)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --host", err)
		}
		hostFilter = &h
	}

	records, err := s.store.AllTagged(ctx, tag)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read records", err)
	}

	result := LogResult{Tag: tag, Timeline: []LogEntry{}}
	hosts := make(map[record.HostID]bool)
	for i, r := range records {
		if hostFilter != nil && r.Host != *hostFilter {
			continue
		}
		hosts[r.Host] = true

		entry := describeRecord(s, r)
		entry.Seq = i + 1
		switch {
		case entry.Error != "":
			result.Stats.Failed++
		case entry.Op == reduce.OpDelete.String():
			result.Stats.Deletes++
		default:
			result.Stats.Sets++
		}
		result.Timeline = append(result.Timeline, entry)
	}
	result.Stats.Records = len(result.Timeline)
	result.Stats.Hosts = len(hosts)

	if opts.Limit > 0 && len(result.Timeline) > opts.Limit {
		result.Timeline = result.Timeline[len(result.Timeline)-opts.Limit:]
	}

	return s.out.SuccessText(result, formatLog(result, s.host))
}

// describeRecord decrypts r and decodes its change. Failures are kept in
// the entry rather than aborting the listing.
func describeRecord(s *session, r record.Record[record.EncryptedData]) LogEntry {
	entry := LogEntry{
		Host:      r.Host.String(),
		Idx:       r.Idx,
		Timestamp: time.Unix(0, r.Timestamp).UTC(),
		Version:   r.Version,
	}

	plain, err := record.Decrypt(r, s.key)
	if err != nil {
		if encryption.IsSecurityRelevant(err) {
			s.logger.Error("record failed authentication",
				"tag", r.Tag,
				"host", r.Host.String(),
				"id", r.ID.String(),
				"idx", r.Idx,
				"version", r.Version,
			)
		}
		entry.Error = err.Error()
		return entry
	}

	var op reduce.Op
	switch r.Tag {
	case dotfiles.AliasTag:
		var a dotfiles.AliasRecord
		a, err = dotfiles.DecodeAliasRecord(r.Version, plain.Data)
		op, entry.Name, entry.Value = a.Op, a.Name, a.Value
	case dotfiles.VarTag:
		var v dotfiles.VarRecord
		v, err = dotfiles.DecodeVarRecord(r.Version, plain.Data)
		op, entry.Name, entry.Value = v.Op, v.Name, v.Value
	case kv.Tag:
		var e kv.Entry
		op, e, err = kv.DecodeRecord(r.Version, plain.Data)
		entry.Name, entry.Value = e.Namespace+"."+e.Key, e.Value
	}
	if err != nil {
		entry.Error = err.Error()
		return entry
	}
	entry.Op = op.String()
	return entry
}

func formatLog(result LogResult, self record.HostID) string {
	if len(result.Timeline) == 0 {
		return fmt.Sprintf("no changes recorded for %s", result.Tag)
	}

	var b strings.Builder
	for _, e := range result.Timeline {
		host := e.Host
		if host == self.String() {
			host = "this host"
		}
		fmt.Fprintf(&b, "%4d  %s  %s/%d  ", e.Seq, e.Timestamp.Format(time.RFC3339), host, e.Idx)
		switch {
		case e.Error != "":
			fmt.Fprintf(&b, "ERROR %s", e.Error)
		case e.Op == reduce.OpDelete.String():
			fmt.Fprintf(&b, "delete %s", e.Name)
		default:
			fmt.Fprintf(&b, "set %s=%q", e.Name, e.Value)
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "%d changes from %d hosts: %d sets, %d deletes, %d unreadable",
		result.Stats.Records, result.Stats.Hosts, result.Stats.Sets, result.Stats.Deletes, result.Stats.Failed)
	return b.String()
}
