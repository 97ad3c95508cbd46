// Package config loads histsync settings from a YAML file.
//
// Unset fields keep their defaults. The merged result is checked against
// an embedded CUE schema before use, so a typo or out-of-range value fails
// at startup rather than halfway through a sync.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSource string

// Config is the full set of settings.
type Config struct {
	// DBPath is the local record database.
	DBPath string `yaml:"db_path" json:"db_path"`

	// KeyPath is the encryption key file.
	KeyPath string `yaml:"key_path" json:"key_path"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	Sync SyncConfig `yaml:"sync" json:"sync"`
}

// SyncConfig controls `histsync sync`.
type SyncConfig struct {
	// RemotePath is the peer record database. Sync is disabled when empty.
	RemotePath string `yaml:"remote_path" json:"remote_path,omitempty"`

	// PageSize is the number of records moved per page.
	PageSize int `yaml:"page_size" json:"page_size"`
}

// DefaultConfig returns the settings used when no file overrides them.
func DefaultConfig() Config {
	dir := DataDir()
	return Config{
		DBPath:   filepath.Join(dir, "records.db"),
		KeyPath:  filepath.Join(dir, "key"),
		LogLevel: "warn",
		Sync: SyncConfig{
			PageSize: 100,
		},
	}
}

// DataDir is $XDG_DATA_HOME/histsync, falling back to
// ~/.local/share/histsync.
func DataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "histsync")
	}
	return filepath.Join(homeDir(), ".local", "share", "histsync")
}

// DefaultPath is $XDG_CONFIG_HOME/histsync/config.yaml, falling back to
// ~/.config/histsync/config.yaml.
func DefaultPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "histsync", "config.yaml")
	}
	return filepath.Join(homeDir(), ".config", "histsync", "config.yaml")
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

// Load reads the config at path over the defaults. A missing file is not
// an error.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data, cfg)
}

// Parse decodes YAML over base, expands ~/ in paths and validates the
// result.
func Parse(data []byte, base Config) (Config, error) {
	cfg := base

	// Empty documents decode to io.EOF; keep the base.
	if len(bytes.TrimSpace(data)) > 0 {
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}

	cfg.DBPath = ExpandHome(cfg.DBPath)
	cfg.KeyPath = ExpandHome(cfg.KeyPath)
	cfg.Sync.RemotePath = ExpandHome(cfg.Sync.RemotePath)

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cfg against the embedded schema.
func Validate(cfg Config) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	def := schema.LookupPath(cue.ParsePath("#Config"))
	value := def.Unify(ctx.Encode(cfg))
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return &ValidationError{Details: cueerrors.Details(err, nil)}
	}
	return nil
}

// ValidationError reports settings rejected by the schema.
type ValidationError struct {
	Details string
}

func (e *ValidationError) Error() string {
	return "invalid config: " + strings.TrimSpace(e.Details)
}

// ExpandHome replaces a leading ~ or ~/ with the user's home directory.
func ExpandHome(path string) string {
	if path == "~" {
		return homeDir()
	}
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		return filepath.Join(homeDir(), rest)
	}
	return path
}

// SlogLevel maps LogLevel to a slog level. Unknown values map to warn.
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}
