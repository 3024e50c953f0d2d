// Package provisioner выдаёт ключи WireGuard, запуская внешние shell-скрипты.
//
// Скрипт генерации ключа печатает {"privateKey": "..."}, скрипт добавления пира
// принимает ключ и ID пользователя и печатает {"clientIp": "..."}.
package provisioner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/magabrotheeeer/vpn-subscription/internal/config"
	"github.com/magabrotheeeer/vpn-subscription/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-subscription/internal/models"
)

// ErrEmptyOutput скрипт отработал, но не вернул нужное поле.
var ErrEmptyOutput = errors.New("script returned empty value")

// Script провижинер на основе скриптов.
type Script struct {
	shell       string
	generateKey string
	addPeer     string
	timeout     time.Duration
	log         *slog.Logger
}

// New создаёт провижинер по настройкам vpn.
func New(cfg config.VPN, log *slog.Logger) *Script {
	timeout := cfg.ScriptTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Script{
		shell:       "bash",
		generateKey: cfg.GenerateKeyScript,
		addPeer:     cfg.AddPeerScript,
		timeout:     timeout,
		log:         log,
	}
}

type keyOutput struct {
	PrivateKey string `json:"privateKey"`
}

type peerOutput struct {
	ClientIP string `json:"clientIp"`
}

// Provision генерирует ключ пользователя и регистрирует его на сервере WireGuard.
func (s *Script) Provision(ctx context.Context, userID int64) (models.VPNKeys, error) {
	const op = "provisioner.Provision"
	log := s.log.With(slog.String("op", op), slog.Int64("user_id", userID))

	var key keyOutput
	if err := s.run(ctx, s.generateKey, nil, &key); err != nil {
		log.Error("key generation failed", sl.Err(err))
		return models.VPNKeys{}, fmt.Errorf("%s: generate key: %w", op, err)
	}
	if key.PrivateKey == "" {
		return models.VPNKeys{}, fmt.Errorf("%s: generate key: %w", op, ErrEmptyOutput)
	}

	var peer peerOutput
	if err := s.run(ctx, s.addPeer, []string{key.PrivateKey, strconv.FormatInt(userID, 10)}, &peer); err != nil {
		log.Error("adding peer failed", sl.Err(err))
		return models.VPNKeys{}, fmt.Errorf("%s: add peer: %w", op, err)
	}
	if peer.ClientIP == "" {
		return models.VPNKeys{}, fmt.Errorf("%s: add peer: %w", op, ErrEmptyOutput)
	}

	log.Info("vpn key provisioned", slog.String("client_ip", peer.ClientIP))
	return models.VPNKeys{PrivateKey: key.PrivateKey, ClientAddress: peer.ClientIP}, nil
}

func (s *Script) run(ctx context.Context, script string, args []string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, s.shell, append([]string{script}, args...)...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", script, ctx.Err())
		}
		return fmt.Errorf("%s: %w: %s", script, err, strings.TrimSpace(stderr.String()))
	}
	if err := json.Unmarshal(stdout.Bytes(), out); err != nil {
		return fmt.Errorf("%s: invalid output %q: %w", script, strings.TrimSpace(stdout.String()), err)
	}
	return nil
}
