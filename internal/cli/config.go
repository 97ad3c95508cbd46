package cli

import (
	"errors"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/histsync/internal/config"
)

// ConfigCheck is the result of `config validate`.
type ConfigCheck struct {
	Path   string `json:"path"`
	Exists bool   `json:"exists"`
	Valid  bool   `json:"valid"`
	Error  string `json:"error,omitempty"`
}

// NewConfigCommand creates the config command group.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and validate settings",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath(rootOpts)
			return newFormatter(cmd, rootOpts).SuccessText(map[string]string{"path": path}, path)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective settings",
		Long: `Print the settings in effect: the config file merged over the defaults,
with ~ expanded.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			return newFormatter(cmd, rootOpts).SuccessText(cfg, strings.TrimRight(string(data), "\n"))
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Check the config file against the schema",
		Long: `Check the config file against the schema without touching the store.

A missing file is valid: the defaults apply.

Exit codes:
  0 - Config is valid
  1 - Config is invalid
  2 - Config file could not be read`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigValidate(cmd, rootOpts)
		},
	})

	return cmd
}

func configPath(opts *RootOptions) string {
	if opts.ConfigPath != "" {
		return opts.ConfigPath
	}
	return config.DefaultPath()
}

func runConfigValidate(cmd *cobra.Command, opts *RootOptions) error {
	f := newFormatter(cmd, opts)
	check := ConfigCheck{Path: configPath(opts)}

	data, err := os.ReadFile(check.Path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		check.Valid = true
		return f.SuccessText(check, "no config file at "+check.Path+"; defaults apply")
	case err != nil:
		return WrapExitError(ExitCommandError, "failed to read config file", err)
	}
	check.Exists = true

	if _, err := config.Parse(data, config.DefaultConfig()); err != nil {
		return WrapExitError(ExitFailure, check.Path, err)
	}

	check.Valid = true
	return f.SuccessText(check, check.Path+": ok")
}
