package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"haulhub_backend/internal/email"
	"haulhub_backend/internal/events"
	"haulhub_backend/internal/haulers"
	"haulhub_backend/internal/jobs"
	jobsrepo "haulhub_backend/internal/jobs/repository"
	"haulhub_backend/internal/notification"
	"haulhub_backend/internal/payments"
	"haulhub_backend/internal/scheduler"
	"haulhub_backend/platform/config"
	"haulhub_backend/platform/db"
	"haulhub_backend/platform/logger"
	"haulhub_backend/platform/validator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	eventBus := events.NewInMemoryBus(log)

	if !cfg.IsStripeEnabled() {
		panic("STRIPE_SECRET_KEY is required: settlement captures payments and pays out pros")
	}
	gateway := payments.NewStripeGateway(cfg)

	var sender email.Sender = email.NoopSender{}
	if cfg.GetEmailEnabled() {
		sender = email.NewSMTPSender(cfg)
	}

	notificationModule := notification.New(pool, sender, log)
	notificationModule.RegisterHandlers(eventBus)

	val := validator.New()

	// Worker-side settlement wiring (no HTTP handlers required).
	taskClient, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize task client", "error", err)
		panic("failed to initialize task client: " + err.Error())
	}
	defer func() { _ = taskClient.Close() }()

	haulersModule := haulers.NewModule(pool, gateway, log, val)
	jobsModule := jobs.NewModule(jobs.Deps{
		Pool:     pool,
		Gateway:  gateway,
		Profiles: haulersModule.Service(),
		Matcher:  haulersModule.Service(),
		Tasks:    taskClient,
		Pricing:  cfg,
		EventBus: eventBus,
		Logger:   log,
		Val:      val,
	})

	dispatcher := scheduler.NewNotificationDispatcher(notificationModule, log)
	go dispatcher.Run(ctx)

	sweeper := scheduler.NewReconciliationSweeper(jobsrepo.New(pool), jobsModule.Settlement(), log)
	go sweeper.Run(ctx)

	worker, err := scheduler.NewWorker(cfg, jobsModule.Settlement(), log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
