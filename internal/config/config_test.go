package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_UsesXDGDataHome(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/data")

	cfg := DefaultConfig()
	assert.Equal(t, "/data/histsync/records.db", cfg.DBPath)
	assert.Equal(t, "/data/histsync/key", cfg.KeyPath)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 100, cfg.Sync.PageSize)
	assert.Empty(t, cfg.Sync.RemotePath)
	assert.NoError(t, Validate(cfg))
}

func TestDefaultConfig_FallsBackToHome(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "")
	t.Setenv("HOME", "/home/alice")

	assert.Equal(t, "/home/alice/.local/share/histsync", DataDir())
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/cfg")
	assert.Equal(t, "/cfg/histsync/config.yaml", DefaultPath())
}

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	t.Setenv("HOME", "/home/alice")
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
db_path: ~/hist/records.db
log_level: debug
sync:
  remote_path: /mnt/share/records.db
  page_size: 25
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/home/alice/hist/records.db", cfg.DBPath)
	assert.Equal(t, DefaultConfig().KeyPath, cfg.KeyPath)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/mnt/share/records.db", cfg.Sync.RemotePath)
	assert.Equal(t, 25, cfg.Sync.PageSize)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
}

func TestParse_EmptyDocument(t *testing.T) {
	base := DefaultConfig()
	cfg, err := Parse([]byte("  \n"), base)
	require.NoError(t, err)
	assert.Equal(t, base, cfg)
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown field", "db_pth: /tmp/x.db\n"},
		{"unknown nested field", "sync:\n  page: 3\n"},
		{"bad log level", "log_level: verbose\n"},
		{"page size zero", "sync:\n  page_size: 0\n"},
		{"page size too large", "sync:\n  page_size: 5000\n"},
		{"empty db path", "db_path: \"\"\n"},
		{"wrong type", "sync:\n  page_size: lots\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml), DefaultConfig())
			assert.Error(t, err)
		})
	}
}

func TestValidate_ReportsField(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogLevel = "loud"

	err := Validate(cfg)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Error(), "log_level")
}

func TestExpandHome(t *testing.T) {
	t.Setenv("HOME", "/home/alice")

	assert.Equal(t, "/home/alice", ExpandHome("~"))
	assert.Equal(t, "/home/alice/x/y", ExpandHome("~/x/y"))
	assert.Equal(t, "/abs/~/x", ExpandHome("/abs/~/x"))
	assert.Equal(t, "~bob/x", ExpandHome("~bob/x"))
	assert.Equal(t, "", ExpandHome(""))
}

func TestSlogLevel(t *testing.T) {
	for level, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelWarn,
	} {
		assert.Equal(t, want, Config{LogLevel: level}.SlogLevel(), level)
	}
}
