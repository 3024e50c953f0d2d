// Package cli команды администрирования vpnctl: миграции, выдача периодов,
// истечение периодов, статус пользователя и права администратора.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/magabrotheeeer/vpn-subscription/internal/cache"
	"github.com/magabrotheeeer/vpn-subscription/internal/config"
	"github.com/magabrotheeeer/vpn-subscription/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-subscription/internal/services/admin"
	"github.com/magabrotheeeer/vpn-subscription/internal/services/device"
	"github.com/magabrotheeeer/vpn-subscription/internal/services/subscription"
	"github.com/magabrotheeeer/vpn-subscription/internal/storage/repository"
)

type options struct {
	configPath string
	verbose    bool
}

// env зависимости команды, открытые по конфигу.
type env struct {
	cfg           *config.Config
	db            *repository.Storage
	cache         *cache.Cache
	subscriptions *subscription.Service
	devices       *device.Service
	admin         *admin.Service
	log           *slog.Logger
}

func (e *env) Close() {
	if e.cache != nil {
		_ = e.cache.Close()
	}
	if e.db != nil {
		_ = e.db.Close()
	}
}

// NewRootCmd создаёт корневую команду vpnctl.
func NewRootCmd(out io.Writer) *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "vpnctl",
		Short:         "Administration tool for the VPN subscription backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (default $CONFIG_PATH)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log to stderr")

	root.AddCommand(
		newMigrateCmd(opts),
		newGrantCmd(opts),
		newSweepCmd(opts),
		newStatusCmd(opts),
		newPromoteCmd(opts),
	)
	return root
}

// Execute запускает vpnctl с аргументами процесса.
func Execute(ctx context.Context, out io.Writer) error {
	return NewRootCmd(out).ExecuteContext(ctx)
}

func (o *options) logger(cmd *cobra.Command) *slog.Logger {
	if !o.verbose {
		return sl.Discard()
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func (o *options) loadConfig() (*config.Config, error) {
	path := o.configPath
	if path == "" {
		path = config.PathFromEnv()
	}
	return config.Load(path)
}

// openDB подключает только хранилище.
func (o *options) openDB(cmd *cobra.Command) (*env, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, db: db, log: o.logger(cmd)}, nil
}

// open подключает хранилище, кэш и собирает сервисы.
func (o *options) open(cmd *cobra.Command) (*env, error) {
	e, err := o.openDB(cmd)
	if err != nil {
		return nil, err
	}
	e.cache, err = cache.InitServer(cmd.Context(), e.cfg.RedisConnection)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("redis: %w", err)
	}

	clock := clockwork.NewRealClock()
	e.subscriptions = subscription.New(e.db, e.cache, clock, e.log, subscription.Durations{
		TrialDays: e.cfg.Subscription.TrialDays,
		PaidDays:  e.cfg.Subscription.PaidPeriodDays,
	}, e.cfg.Subscription.CacheTTL)
	e.devices = device.New(e.db, clock, e.log, device.Limits{
		Base:     e.cfg.Device.BaseLimit,
		Elevated: e.cfg.Device.ElevatedLimit,
	})
	e.admin = admin.New(e.db, e.subscriptions, clock, e.log)
	return e, nil
}
