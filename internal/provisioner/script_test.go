package provisioner

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/vpn-subscription/internal/config"
)

func writeScript(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("#!/usr/bin/env bash\n"+body+"\n"), 0o700))
	return path
}

func newTestScript(t *testing.T, generate, addPeer string, timeout time.Duration) *Script {
	t.Helper()
	if _, err := exec.LookPath("bash"); err != nil {
		t.Skip("bash not available")
	}
	return New(config.VPN{
		GenerateKeyScript: generate,
		AddPeerScript:     addPeer,
		ScriptTimeout:     timeout,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestProvision_Success(t *testing.T) {
	generate := writeScript(t, "gen.sh", `echo '{"privateKey": "cHJpdmF0ZQ=="}'`)
	addPeer := writeScript(t, "add.sh", `[ "$1" = "cHJpdmF0ZQ==" ] && [ "$2" = "42" ] || exit 3
echo "{\"clientIp\": \"10.8.0.$2\"}"`)

	keys, err := newTestScript(t, generate, addPeer, time.Second).Provision(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "cHJpdmF0ZQ==", keys.PrivateKey)
	assert.Equal(t, "10.8.0.42", keys.ClientAddress)
}

func TestProvision_Failures(t *testing.T) {
	okGen := `echo '{"privateKey": "k"}'`
	okPeer := `echo '{"clientIp": "10.8.0.2"}'`

	tests := []struct {
		name    string
		gen     string
		peer    string
		timeout time.Duration
	}{
		{name: "генерация завершилась с ошибкой", gen: `echo boom >&2; exit 1`, peer: okPeer},
		{name: "некорректный JSON", gen: `echo not-json`, peer: okPeer},
		{name: "пустой ключ", gen: `echo '{}'`, peer: okPeer},
		{name: "ошибка добавления пира", gen: okGen, peer: `exit 2`},
		{name: "пустой адрес", gen: okGen, peer: `echo '{"clientIp": ""}'`},
		{name: "таймаут", gen: `exec sleep 5`, peer: okPeer, timeout: 100 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			timeout := tt.timeout
			if timeout == 0 {
				timeout = time.Second
			}
			s := newTestScript(t, writeScript(t, "gen.sh", tt.gen), writeScript(t, "add.sh", tt.peer), timeout)

			keys, err := s.Provision(context.Background(), 1)
			require.Error(t, err)
			assert.Empty(t, keys.PrivateKey)
		})
	}
}
