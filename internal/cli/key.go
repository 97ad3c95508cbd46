package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/histsync/internal/encryption"
)

// KeyInfo describes the local encryption key.
type KeyInfo struct {
	Path    string `json:"path"`
	KeyID   string `json:"kid"`
	Created bool   `json:"created,omitempty"`
	Encoded string `json:"key,omitempty"`
}

// NewKeyCommand creates the key command group.
func NewKeyCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage the encryption key",
		Long: `Manage the local encryption key.

Every machine that shares records must use the same key. Copy the output of
"histsync key show --reveal" into the key file of each new machine.`,
	}

	cmd.AddCommand(newKeyGenerateCommand(rootOpts))
	cmd.AddCommand(newKeyShowCommand(rootOpts))
	return cmd
}

func newKeyGenerateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "generate",
		Short: "Create the key file if it does not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}

			key, created, err := loadOrCreateKey(cfg.KeyPath)
			if err != nil {
				return err
			}

			info := KeyInfo{Path: cfg.KeyPath, KeyID: encryption.KeyID(key), Created: created}
			text := fmt.Sprintf("key already exists at %s (%s)", info.Path, info.KeyID)
			if created {
				text = fmt.Sprintf("created key at %s (%s)", info.Path, info.KeyID)
			}
			return newFormatter(cmd, rootOpts).SuccessText(info, text)
		},
	}
}

func newKeyShowCommand(rootOpts *RootOptions) *cobra.Command {
	var reveal bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the key id, and with --reveal the key itself",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}

			key, err := encryption.LoadKey(cfg.KeyPath)
			if errors.Is(err, os.ErrNotExist) {
				return WrapExitError(ExitFailure, "no key found; run \"histsync key generate\"", err)
			}
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load key", err)
			}

			info := KeyInfo{Path: cfg.KeyPath, KeyID: encryption.KeyID(key)}
			text := info.KeyID
			if reveal {
				if info.Encoded, err = encryption.EncodeKey(key); err != nil {
					return WrapExitError(ExitCommandError, "failed to encode key", err)
				}
				text = info.Encoded
			}
			return newFormatter(cmd, rootOpts).SuccessText(info, text)
		},
	}

	cmd.Flags().BoolVar(&reveal, "reveal", false, "print the encoded key")
	return cmd
}
