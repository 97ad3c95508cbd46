package cli

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/histsync/internal/config"
	"github.com/roach88/histsync/internal/encryption"
	"github.com/roach88/histsync/internal/record"
	"github.com/roach88/histsync/internal/store"
)

// session is the state a command needs: settings, the local store, this
// host's id and the encryption key.
type session struct {
	cfg    config.Config
	store  *store.SQLiteStore
	host   record.HostID
	key    encryption.Key
	logger *slog.Logger
	out    *OutputFormatter
}

// loadConfig reads the config named by --config, or the default path.
func loadConfig(opts *RootOptions) (config.Config, error) {
	path := opts.ConfigPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	return cfg, nil
}

func newLogger(cmd *cobra.Command, opts *RootOptions, cfg config.Config) *slog.Logger {
	level := cfg.SlogLevel()
	if opts.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

func newFormatter(cmd *cobra.Command, opts *RootOptions) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// openSession loads config, opens the local store and loads the key,
// creating the key on first use. Callers must Close the session.
func openSession(ctx context.Context, cmd *cobra.Command, opts *RootOptions) (*session, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	s := &session{
		cfg:    cfg,
		logger: newLogger(cmd, opts, cfg),
		out:    newFormatter(cmd, opts),
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o700); err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to create data directory", err)
	}
	s.store, err = store.Open(cfg.DBPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	s.host, err = s.store.HostID(ctx)
	if err != nil {
		s.store.Close()
		return nil, WrapExitError(ExitCommandError, "failed to read host id", err)
	}

	var created bool
	s.key, created, err = loadOrCreateKey(cfg.KeyPath)
	if err != nil {
		s.store.Close()
		return nil, err
	}
	if created {
		s.logger.Info("created new encryption key", "path", cfg.KeyPath, "kid", encryption.KeyID(s.key))
	}

	s.logger.Debug("session opened",
		"db", cfg.DBPath,
		"host", s.host.String(),
		"kid", encryption.KeyID(s.key),
	)
	return s, nil
}

func loadOrCreateKey(path string) (encryption.Key, bool, error) {
	key, created, err := encryption.LoadOrCreateKey(path)
	if err != nil {
		return encryption.Key{}, false, WrapExitError(ExitCommandError, "failed to load key", err)
	}
	return key, created, nil
}

func (s *session) Close() error {
	return s.store.Close()
}
