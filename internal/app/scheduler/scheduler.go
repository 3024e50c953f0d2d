// Package scheduler собирает планировщик фоновых задач: истечение периодов,
// уведомления о скором окончании подписки и очистку просроченных кодов.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/vpn-subscription/internal/cache"
	"github.com/magabrotheeeer/vpn-subscription/internal/config"
	"github.com/magabrotheeeer/vpn-subscription/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/vpn-subscription/internal/lib/sl"
	schedulerservice "github.com/magabrotheeeer/vpn-subscription/internal/services/scheduler"
	"github.com/magabrotheeeer/vpn-subscription/internal/services/subscription"
	"github.com/magabrotheeeer/vpn-subscription/internal/storage/repository"
)

// App представляет приложение планировщика.
type App struct {
	cron   *cron.Cron
	db     *repository.Storage
	cache  *cache.Cache
	conn   *amqp.Connection
	ch     *amqp.Channel
	logger *slog.Logger
}

// Job задача планировщика.
type Job struct {
	Name string
	Spec string
	Run  func(ctx context.Context) error
}

// Jobs возвращает задачи с расписаниями из конфигурации.
func Jobs(cfg config.Scheduler, svc *schedulerservice.Service) []Job {
	return []Job{
		{Name: "sweep", Spec: cfg.SweepSpec, Run: svc.RunSweep},
		{Name: "expiry_notices", Spec: cfg.NoticeSpec, Run: func(ctx context.Context) error {
			_, err := svc.RunExpiryNotices(ctx)
			return err
		}},
		{Name: "purge", Spec: cfg.PurgeSpec, Run: svc.RunPurge},
	}
}

// New создает новый экземпляр приложения планировщика.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.scheduler.New"

	conn, err := rabbitmq.Connect(ctx, cfg.RabbitMQ.URL, cfg.RabbitMQ.MaxRetries, cfg.RabbitMQ.RetryDelay)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to connect RabbitMQ: %w", op, err)
	}
	app := &App{conn: conn, logger: logger}

	app.ch, err = rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues())
	if err != nil {
		app.close()
		return nil, fmt.Errorf("%s: failed to setup RabbitMQ channel: %w", op, err)
	}

	app.db, err = repository.New(cfg.StorageConnectionString)
	if err != nil {
		app.close()
		return nil, fmt.Errorf("%s: failed to connect storage: %w", op, err)
	}

	app.cache, err = cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		app.close()
		return nil, fmt.Errorf("%s: cache not initialized: %w", op, err)
	}

	clock := clockwork.NewRealClock()
	subscriptions := subscription.New(app.db, app.cache, clock, logger, subscription.Durations{
		TrialDays: cfg.Subscription.TrialDays,
		PaidDays:  cfg.Subscription.PaidPeriodDays,
	}, cfg.Subscription.CacheTTL)
	svc := schedulerservice.New(app.db, subscriptions, rabbitmq.NewPublisher(app.ch), clock, logger, cfg.Scheduler.NoticeWindow)

	app.cron, err = newCron(ctx, Jobs(cfg.Scheduler, svc), logger)
	if err != nil {
		app.close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return app, nil
}

// newCron регистрирует задачи. Запуск задачи пропускается, пока не завершён предыдущий.
func newCron(ctx context.Context, jobs []Job, logger *slog.Logger) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	for _, job := range jobs {
		log := logger.With(slog.String("job", job.Name))
		if _, err := c.AddFunc(job.Spec, func() {
			if err := job.Run(ctx); err != nil {
				log.Error("job failed", sl.Err(err))
			}
		}); err != nil {
			return nil, fmt.Errorf("job %s: invalid spec %q: %w", job.Name, job.Spec, err)
		}
		log.Info("job scheduled", slog.String("spec", job.Spec))
	}
	return c, nil
}

func (a *App) close() {
	if a.ch != nil {
		if err := a.ch.Close(); err != nil {
			a.logger.Error("failed to close channel", sl.Err(err))
		}
	}
	if a.conn != nil {
		if err := a.conn.Close(); err != nil {
			a.logger.Error("failed to close connection", sl.Err(err))
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Error("failed to close redis", sl.Err(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("failed to close storage", sl.Err(err))
		}
	}
}

// Run запускает планировщик и ждёт отмены ctx.
func (a *App) Run(ctx context.Context) error {
	a.cron.Start()
	<-ctx.Done()

	a.logger.Info("shutting down scheduler service")
	<-a.cron.Stop().Done()
	a.close()
	return nil
}
