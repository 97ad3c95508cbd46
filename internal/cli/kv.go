package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/histsync/internal/kv"
	"github.com/roach88/histsync/internal/store"
)

// NewKVCommand creates the kv command group.
func NewKVCommand(rootOpts *RootOptions) *cobra.Command {
	var namespace string

	cmd := &cobra.Command{
		Use:   "kv",
		Short: "Manage synced key-value settings",
	}
	cmd.PersistentFlags().StringVarP(&namespace, "namespace", "n", kv.DefaultNamespace, "namespace")

	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Store a value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withKV(cmd, rootOpts, func(ctx context.Context, s *session, kvs *kv.Store) error {
				if err := kvs.Set(ctx, namespace, args[0], args[1]); err != nil {
					return WrapExitError(ExitFailure, "failed to set value", err)
				}
				e := kv.Entry{Namespace: namespace, Key: args[0], Value: args[1]}
				return s.out.SuccessText(e, fmt.Sprintf("set %s.%s", e.Namespace, e.Key))
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get <key>",
		Short: "Print a value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withKV(cmd, rootOpts, func(ctx context.Context, s *session, kvs *kv.Store) error {
				value, ok, err := kvs.Get(ctx, namespace, args[0])
				if err != nil {
					return WrapExitError(ExitFailure, "failed to read value", err)
				}
				if !ok {
					return NewExitError(ExitFailure, fmt.Sprintf("key %s.%s not found", namespace, args[0]))
				}
				e := kv.Entry{Namespace: namespace, Key: args[0], Value: value}
				return s.out.SuccessText(e, value)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <key>",
		Short: "Remove a value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withKV(cmd, rootOpts, func(ctx context.Context, s *session, kvs *kv.Store) error {
				if err := kvs.Delete(ctx, namespace, args[0]); err != nil {
					return WrapExitError(ExitFailure, "failed to delete value", err)
				}
				return s.out.SuccessText(
					map[string]string{"namespace": namespace, "deleted": args[0]},
					fmt.Sprintf("deleted %s.%s", namespace, args[0]),
				)
			})
		},
	})

	var all bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List values in a namespace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withKV(cmd, rootOpts, func(ctx context.Context, s *session, kvs *kv.Store) error {
				ns := namespace
				if all {
					ns = ""
				}
				entries, err := kvs.List(ctx, ns)
				if err != nil {
					return WrapExitError(ExitFailure, "failed to read values", err)
				}
				if entries == nil {
					entries = []kv.Entry{}
				}

				var b strings.Builder
				for i, e := range entries {
					if i > 0 {
						b.WriteByte('\n')
					}
					fmt.Fprintf(&b, "%s.%s=%s", e.Namespace, e.Key, e.Value)
				}
				return s.out.SuccessText(entries, b.String())
			})
		},
	}
	list.Flags().BoolVar(&all, "all", false, "list every namespace")
	cmd.AddCommand(list)

	return cmd
}

func withKV(cmd *cobra.Command, rootOpts *RootOptions, fn func(context.Context, *session, *kv.Store) error) error {
	return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
		return fn(ctx, s, kv.New(s.store, s.key, s.host, store.WithLogger(s.logger)))
	})
}
