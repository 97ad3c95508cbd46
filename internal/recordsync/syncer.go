package recordsync

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/histsync/internal/record"
	"github.com/roach88/histsync/internal/store"
)

// DefaultPageSize is the number of records moved per Range call.
const DefaultPageSize = 100

// Result summarizes a sync run.
type Result struct {
	Uploaded   int         `json:"uploaded"`
	Downloaded int         `json:"downloaded"`
	Operations []Operation `json:"operations"`
}

// Syncer copies missing records between a local and a remote store.
type Syncer struct {
	local    store.Store
	remote   store.Store
	pageSize int
	logger   *slog.Logger
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithPageSize sets how many records are read per page. Values below 1
// are ignored.
func WithPageSize(n int) Option {
	return func(s *Syncer) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithLogger sets the logger for per-stream progress.
func WithLogger(l *slog.Logger) Option {
	return func(s *Syncer) { s.logger = l }
}

// New returns a syncer between local and remote.
func New(local, remote store.Store, opts ...Option) *Syncer {
	s := &Syncer{
		local:    local,
		remote:   remote,
		pageSize: DefaultPageSize,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Plan compares the two stores without moving anything.
func (s *Syncer) Plan(ctx context.Context) ([]Operation, error) {
	local, err := s.local.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("local status: %w", err)
	}
	remote, err := s.remote.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("remote status: %w", err)
	}
	return Diff(local, remote), nil
}

// Run uploads what the remote lacks and downloads what the local store
// lacks, one stream at a time in idx order. It stops at the first error;
// records moved before it stay moved.
func (s *Syncer) Run(ctx context.Context) (Result, error) {
	ops, err := s.Plan(ctx)
	if err != nil {
		return Result{}, err
	}

	res := Result{Operations: ops}
	for _, op := range ops {
		var n int
		switch op.Kind {
		case Upload:
			n, err = s.copyStream(ctx, s.local, s.remote, op)
			res.Uploaded += n
		case Download:
			n, err = s.copyStream(ctx, s.remote, s.local, op)
			res.Downloaded += n
		default:
			continue
		}
		if err != nil {
			return res, fmt.Errorf("%s: %w", op, err)
		}
		s.logger.Info("stream synced",
			"kind", op.Kind.String(),
			"host", op.Host.String(),
			"tag", op.Tag,
			"records", n,
		)
	}
	return res, nil
}

// copyStream pushes records of op's stream from src to dst starting at the
// first idx dst lacks.
func (s *Syncer) copyStream(ctx context.Context, src, dst store.Store, op Operation) (int, error) {
	next := op.Start()
	moved := 0

	for {
		if err := ctx.Err(); err != nil {
			return moved, err
		}

		page, err := src.Range(ctx, op.Host, op.Tag, next, s.pageSize)
		if err != nil {
			return moved, err
		}
		for _, r := range page {
			if err := dst.Push(ctx, r); err != nil {
				return moved, fmt.Errorf("push idx %d: %w", r.Idx, err)
			}
			moved++
		}
		s.logger.Debug("page copied", "host", op.Host.String(), "tag", op.Tag, "start", next, "records", len(page))

		if len(page) < s.pageSize {
			return moved, nil
		}
		next = page[len(page)-1].Idx + 1
	}
}

// Compare reports whether both stores hold the same streams with the same
// heads.
func Compare(a, b *record.Status) bool {
	for _, op := range Diff(a, b) {
		if op.Kind != Noop {
			return false
		}
	}
	return true
}
