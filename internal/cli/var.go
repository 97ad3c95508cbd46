package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/histsync/internal/dotfiles"
	"github.com/roach88/histsync/internal/store"
)

// NewVarCommand creates the var command group.
func NewVarCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "var",
		Short: "Manage synced shell variables",
	}

	var noExport bool
	set := &cobra.Command{
		Use:   "set <name> <value>",
		Short: "Create or replace a variable",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withVars(cmd, rootOpts, func(ctx context.Context, s *session, vars *dotfiles.VarStore) error {
				if err := vars.Set(ctx, args[0], args[1], !noExport); err != nil {
					return WrapExitError(ExitFailure, "failed to set variable", err)
				}
				v := dotfiles.Var{Name: args[0], Value: args[1], Export: !noExport}
				return s.out.SuccessText(v, fmt.Sprintf("set variable %s", v.Name))
			})
		},
	}
	set.Flags().BoolVar(&noExport, "no-export", false, "do not export the variable to child processes")
	cmd.AddCommand(set)

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <name>",
		Short: "Remove a variable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withVars(cmd, rootOpts, func(ctx context.Context, s *session, vars *dotfiles.VarStore) error {
				if err := vars.Delete(ctx, args[0]); err != nil {
					return WrapExitError(ExitFailure, "failed to delete variable", err)
				}
				return s.out.SuccessText(map[string]string{"deleted": args[0]}, fmt.Sprintf("deleted variable %s", args[0]))
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List variables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withVars(cmd, rootOpts, func(ctx context.Context, s *session, vars *dotfiles.VarStore) error {
				list, err := vars.Vars(ctx)
				if err != nil {
					return WrapExitError(ExitFailure, "failed to read variables", err)
				}
				if list == nil {
					list = []dotfiles.Var{}
				}
				return s.out.SuccessText(list, dotfiles.RenderVars(dotfiles.ShellPosix, list))
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:       "init <shell>",
		Short:     "Print variables as shell init code",
		Args:      cobra.ExactArgs(1),
		ValidArgs: shellNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			shell, err := dotfiles.ParseShell(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid shell", err)
			}
			return withVars(cmd, rootOpts, func(ctx context.Context, s *session, vars *dotfiles.VarStore) error {
				script, err := vars.Init(ctx, shell)
				if err != nil {
					return WrapExitError(ExitFailure, "failed to read variables", err)
				}
				if script != "" {
					fmt.Fprintln(cmd.OutOrStdout(), script)
				}
				return nil
			})
		},
	})

	return cmd
}

func withVars(cmd *cobra.Command, rootOpts *RootOptions, fn func(context.Context, *session, *dotfiles.VarStore) error) error {
	return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
		return fn(ctx, s, dotfiles.NewVarStore(s.store, s.key, s.host, store.WithLogger(s.logger)))
	})
}
