package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "histsync", cmd.Use)
	assert.Contains(t, cmd.Long, "append-only record log")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{
		{"key", "generate"},
		{"key", "show"},
		{"alias", "set"},
		{"alias", "delete"},
		{"alias", "list"},
		{"alias", "init"},
		{"var", "set"},
		{"var", "init"},
		{"kv", "get"},
		{"kv", "list"},
		{"store", "status"},
		{"store", "verify"},
		{"sync"},
		{"log"},
		{"config", "validate"},
		{"config", "show"},
		{"test"},
	}

	for _, path := range commands {
		name := path[len(path)-1]
		t.Run(name, func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err, "Command %v should exist", path)
			require.NotNil(t, subCmd)
			assert.Equal(t, name, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "", configFlag.DefValue)
}

func TestKVCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	getCmd, _, err := cmd.Find([]string{"kv", "get"})
	require.NoError(t, err)

	nsFlag := getCmd.Flags().Lookup("namespace")
	require.NotNil(t, nsFlag)
	assert.Equal(t, "n", nsFlag.Shorthand)
	assert.Equal(t, "default", nsFlag.DefValue)
}

func TestSyncCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	syncCmd, _, err := cmd.Find([]string{"sync"})
	require.NoError(t, err)

	assert.NotNil(t, syncCmd.Flags().Lookup("remote"))
	assert.NotNil(t, syncCmd.Flags().Lookup("dry-run"))
}

func TestIsValidFormat(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))
	assert.False(t, isValidFormat("yaml"))
	assert.False(t, isValidFormat(""))
}
