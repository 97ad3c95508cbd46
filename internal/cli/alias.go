package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/histsync/internal/dotfiles"
	"github.com/roach88/histsync/internal/store"
)

// NewAliasCommand creates the alias command group.
func NewAliasCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alias",
		Short: "Manage synced shell aliases",
		Long: `Manage shell aliases kept in the record log.

Add the output of "histsync alias init <shell>" to your shell startup file:

  eval "$(histsync alias init bash)"`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set <name> <value>",
		Short: "Create or replace an alias",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAliases(cmd, rootOpts, func(ctx context.Context, s *session, aliases *dotfiles.AliasStore) error {
				if err := aliases.Set(ctx, args[0], args[1]); err != nil {
					return WrapExitError(ExitFailure, "failed to set alias", err)
				}
				a := dotfiles.Alias{Name: args[0], Value: args[1]}
				return s.out.SuccessText(a, fmt.Sprintf("set alias %s", a.Name))
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <name>",
		Short: "Remove an alias",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAliases(cmd, rootOpts, func(ctx context.Context, s *session, aliases *dotfiles.AliasStore) error {
				if err := aliases.Delete(ctx, args[0]); err != nil {
					return WrapExitError(ExitFailure, "failed to delete alias", err)
				}
				return s.out.SuccessText(map[string]string{"deleted": args[0]}, fmt.Sprintf("deleted alias %s", args[0]))
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List aliases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAliases(cmd, rootOpts, func(ctx context.Context, s *session, aliases *dotfiles.AliasStore) error {
				list, err := aliases.Aliases(ctx)
				if err != nil {
					return WrapExitError(ExitFailure, "failed to read aliases", err)
				}
				if list == nil {
					list = []dotfiles.Alias{}
				}
				return s.out.SuccessText(list, dotfiles.RenderAliases(dotfiles.ShellPosix, list))
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:       "init <shell>",
		Short:     "Print aliases as shell init code",
		Args:      cobra.ExactArgs(1),
		ValidArgs: shellNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			shell, err := dotfiles.ParseShell(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid shell", err)
			}
			return withAliases(cmd, rootOpts, func(ctx context.Context, s *session, aliases *dotfiles.AliasStore) error {
				script, err := aliases.Init(ctx, shell)
				if err != nil {
					return WrapExitError(ExitFailure, "failed to read aliases", err)
				}
				// Init output is consumed by the shell, so it is never wrapped in JSON.
				if script != "" {
					fmt.Fprintln(cmd.OutOrStdout(), script)
				}
				return nil
			})
		},
	})

	return cmd
}

func withAliases(cmd *cobra.Command, rootOpts *RootOptions, fn func(context.Context, *session, *dotfiles.AliasStore) error) error {
	return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
		return fn(ctx, s, dotfiles.NewAliasStore(s.store, s.key, s.host, store.WithLogger(s.logger)))
	})
}

func shellNames() []string {
	names := make([]string, 0, len(dotfiles.Shells))
	for _, s := range dotfiles.Shells {
		names = append(names, string(s))
	}
	return names
}
