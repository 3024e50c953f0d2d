package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_Subcommands(t *testing.T) {
	root := NewRootCmd(&bytes.Buffer{})

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"migrate", "grant", "sweep", "status", "promote"}, names)
}

func TestRootCmd_ArgumentErrors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "grant без id", args: []string{"grant"}, wantErr: "accepts 1 arg"},
		{name: "grant с нечисловым id", args: []string{"grant", "abc"}, wantErr: `invalid user id "abc"`},
		{name: "grant с неизвестным видом", args: []string{"grant", "5", "--kind", "gift"}, wantErr: `unknown kind "gift"`},
		{name: "status с отрицательным id", args: []string{"status", "-1"}, wantErr: "unknown shorthand flag"},
		{name: "sweep с аргументом", args: []string{"sweep", "extra"}, wantErr: "unknown command"},
		{name: "конфиг не найден", args: []string{"--config", "/nonexistent.yaml", "sweep"}, wantErr: "does not exist"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := NewRootCmd(&bytes.Buffer{})
			root.SetErr(&bytes.Buffer{})
			root.SetArgs(tt.args)

			err := root.Execute()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadConfig_FlagOverridesEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("env: prod\nstorage_connection_string: postgres://x\njwttoken:\n  jwt_secret_key: s\n"), 0o600))
	t.Setenv("CONFIG_PATH", "/nonexistent.yaml")

	cfg, err := (&options{configPath: path}).loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "prod", cfg.Env)
}

func TestParseUserID(t *testing.T) {
	id, err := parseUserID("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	_, err = parseUserID("0")
	assert.Error(t, err)
}
