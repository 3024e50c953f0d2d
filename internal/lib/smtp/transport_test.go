package smtp

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/vpn-subscription/internal/config"
)

// serveWithoutStartTLS отвечает на EHLO без расширения STARTTLS.
func serveWithoutStartTLS(t *testing.T) (host, port string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)
		_, _ = conn.Write([]byte("220 localhost ESMTP\r\n"))
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			switch cmd := strings.ToUpper(strings.TrimSpace(line)); {
			case strings.HasPrefix(cmd, "EHLO"):
				_, _ = conn.Write([]byte("250-localhost\r\n250 8BITMIME\r\n"))
			case strings.HasPrefix(cmd, "QUIT"):
				_, _ = conn.Write([]byte("221 bye\r\n"))
				return
			default:
				_, _ = conn.Write([]byte("250 ok\r\n"))
			}
		}
	}()

	host, port, err = net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	return host, port
}

func TestTransport_DialRequiresStartTLS(t *testing.T) {
	host, port := serveWithoutStartTLS(t)
	tr := NewTransport(config.SMTP{Host: host, Port: port, User: "u", Password: "p"}, newNoopLogger())

	session, err := tr.Dial(context.Background())
	require.Error(t, err)
	assert.Nil(t, session)
	assert.ErrorIs(t, err, errNoStartTLS)
	assert.Contains(t, err.Error(), "smtp.Dial")
}

func TestTransport_DialCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tr := NewTransport(config.SMTP{Host: "127.0.0.1", Port: "1"}, newNoopLogger())
	_, err := tr.Dial(ctx)
	require.Error(t, err)
}

func TestTransport_From(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.SMTP
		want string
	}{
		{name: "адрес из настроек", cfg: config.SMTP{User: "login", From: "noreply@vpn.example"}, want: "noreply@vpn.example"},
		{name: "имя пользователя по умолчанию", cfg: config.SMTP{User: "login@vpn.example"}, want: "login@vpn.example"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewTransport(tt.cfg, newNoopLogger()).From())
		})
	}
}
