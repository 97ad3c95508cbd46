package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/histsync/internal/config"
	"github.com/roach88/histsync/internal/recordsync"
	"github.com/roach88/histsync/internal/store"
)

// SyncOptions holds flags for the sync command.
type SyncOptions struct {
	*RootOptions
	Remote string
	DryRun bool
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Exchange records with another store",
		Long: `Bring the local store and a remote store to the same state.

Records the remote lacks are uploaded, records the local store lacks are
downloaded. Records stay encrypted in transit; both sides must use the
same key to read them.

Examples:
  histsync sync --remote /mnt/share/histsync/records.db
  histsync sync --dry-run --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				return runSync(ctx, s, opts)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Remote, "remote", "", "remote record database (default sync.remote_path from config)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "show what would be transferred")

	return cmd
}

func runSync(ctx context.Context, s *session, opts *SyncOptions) error {
	remotePath := config.ExpandHome(opts.Remote)
	if remotePath == "" {
		remotePath = s.cfg.Sync.RemotePath
	}
	if remotePath == "" {
		return NewExitError(ExitCommandError, "no remote configured: pass --remote or set sync.remote_path")
	}

	remote, err := store.Open(remotePath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open remote database", err)
	}
	defer remote.Close()

	syncer := recordsync.New(s.store, remote,
		recordsync.WithPageSize(s.cfg.Sync.PageSize),
		recordsync.WithLogger(s.logger),
	)

	if opts.DryRun {
		ops, err := syncer.Plan(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to compare stores", err)
		}
		if ops == nil {
			ops = []recordsync.Operation{}
		}
		return s.out.SuccessText(ops, formatOperations(ops))
	}

	res, err := syncer.Run(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "sync failed", err)
	}
	if res.Operations == nil {
		res.Operations = []recordsync.Operation{}
	}
	s.out.VerboseLog("%s", formatOperations(res.Operations))
	return s.out.SuccessText(res, fmt.Sprintf("uploaded %d, downloaded %d", res.Uploaded, res.Downloaded))
}

func formatOperations(ops []recordsync.Operation) string {
	lines := make([]string, 0, len(ops))
	for _, op := range ops {
		lines = append(lines, op.String())
	}
	return strings.Join(lines, "\n")
}
