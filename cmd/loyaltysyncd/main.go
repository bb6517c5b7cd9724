// Command loyaltysyncd runs the loyalty sync worker daemon: it connects
// to the queue store, registers the built-in export handlers, and drives
// digest passes on cron triggers until terminated.
package main

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/the-line/loyaltysync"
	"github.com/the-line/loyaltysync/alert"
	"github.com/the-line/loyaltysync/connector"
	"github.com/the-line/loyaltysync/dedup"
	"github.com/the-line/loyaltysync/digest"
	"github.com/the-line/loyaltysync/export"
	"github.com/the-line/loyaltysync/handler"
	"github.com/the-line/loyaltysync/hook"
	"github.com/the-line/loyaltysync/parked"
	"github.com/the-line/loyaltysync/ratelimit"
	"github.com/the-line/loyaltysync/retry"
	"github.com/the-line/loyaltysync/store"
	bunstore "github.com/the-line/loyaltysync/store/bun"
	"github.com/the-line/loyaltysync/store/memory"
	"github.com/the-line/loyaltysync/trigger"
)

func setupLogger() *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if err, ok := a.Value.Any().(error); ok {
				aErr := tint.Err(err)
				aErr.Key = a.Key
				return aErr
			}
			return a
		},
	}))
	slog.SetDefault(logger)
	return logger
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func openStore(logger *slog.Logger) store.Store {
	dsn := os.Getenv("DATABASE_DSN")
	if dsn == "" {
		logger.Warn("DATABASE_DSN not set, using in-memory store")
		return memory.New()
	}
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	return bunstore.New(db, bunstore.WithLogger(logger))
}

func buildNotifier(st store.Store, cfg loyaltysync.Config, hooks *hook.Registry, logger *slog.Logger) *alert.Notifier {
	host := os.Getenv("SMTP_HOST")
	if host == "" || len(cfg.AlertRecipients) == 0 {
		return nil
	}
	mailer, err := alert.NewSMTPMailer(alert.SMTPConfig{
		Host:     host,
		Port:     envInt("SMTP_PORT", 587),
		Username: os.Getenv("SMTP_USERNAME"),
		Password: os.Getenv("SMTP_PASSWORD"),
		From:     envString("SMTP_FROM", "loyaltysync@localhost"),
	})
	if err != nil {
		logger.Error("smtp mailer setup failed, alerting disabled", "error", err)
		return nil
	}
	recipients := cfg.AlertRecipients
	if cfg.AlertContact != "" {
		recipients = append(recipients, cfg.AlertContact)
	}
	return alert.NewNotifier(mailer, st, recipients, cfg.AlertCooldown,
		alert.WithLogger(logger),
		alert.WithHooks(hooks))
}

func buildDedup(logger *slog.Logger) dedup.Index {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return dedup.NewMemory()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
	})
	logger.Info("dedup index backed by redis", "addr", addr)
	return dedup.NewRedis(client)
}

func main() {
	logger := setupLogger()

	cfg := loyaltysync.DefaultConfig()
	cfg.CallsPerSecond = envInt("CALLS_PER_SECOND", cfg.CallsPerSecond)
	cfg.BatchSize = envInt("BATCH_SIZE", cfg.BatchSize)
	cfg.LeaseTTL = envDuration("LEASE_TTL", cfg.LeaseTTL)
	cfg.CutoffWindow = envDuration("CUTOFF_WINDOW", cfg.CutoffWindow)
	cfg.AlertCooldown = envDuration("ALERT_COOLDOWN", cfg.AlertCooldown)
	cfg.AlertContact = os.Getenv("ALERT_CONTACT")
	if v := os.Getenv("ALERT_RECIPIENTS"); v != "" {
		cfg.AlertRecipients = strings.Split(v, ",")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st := openStore(logger)
	if err := st.Migrate(ctx); err != nil {
		logger.Error("migrate failed", "error", err)
		os.Exit(1)
	}

	storeID := envString("STORE_ID", "default")
	creds := connector.StaticCredentials{}
	if baseURL := os.Getenv("LOYALTY_BASE_URL"); baseURL != "" {
		creds[storeID] = connector.Credentials{
			BaseURL: baseURL,
			Token:   os.Getenv("LOYALTY_TOKEN"),
		}
	}

	hooks := hook.NewRegistry(logger)

	notifier := buildNotifier(st, cfg, hooks, logger)

	connOpts := []connector.Option{
		connector.WithCallsPerSecond(cfg.CallsPerSecond),
		connector.WithLogger(logger),
	}
	if notifier != nil {
		connOpts = append(connOpts, connector.WithNotifier(notifier))
	}
	conn := connector.New(creds, connOpts...)

	pool := handler.NewPool()
	if err := export.RegisterAll(pool, conn, buildDedup(logger)); err != nil {
		logger.Error("handler registration failed", "error", err)
		os.Exit(1)
	}

	pickup := ratelimit.NewManager(ratelimit.Config{
		StoreID:        storeID,
		MaxConcurrency: envInt("MAX_CONCURRENCY", 0),
		RateLimit:      float64(envInt("PICKUP_RATE", 0)),
	})

	parkedSvc := parked.NewService(st, st, logger)

	runner := digest.New(st, pool,
		digest.WithRetryPolicy(retry.DefaultPolicy()),
		digest.WithParked(parkedSvc),
		digest.WithPickup(pickup),
		digest.WithLeaseTTL(cfg.LeaseTTL),
		digest.WithHooks(hooks),
		digest.WithLogger(logger),
	)

	sched := trigger.NewScheduler(st, runner.Pass, trigger.WithLogger(logger))
	triggers := []trigger.Trigger{
		{
			Name:         "order-export",
			Schedule:     envString("ORDER_EXPORT_SCHEDULE", "@every 1m"),
			StoreID:      storeID,
			CutoffWindow: cfg.CutoffWindow,
			Limit:        cfg.BatchSize,
		},
		{
			Name:         "giftcard-export",
			Schedule:     envString("GIFTCARD_EXPORT_SCHEDULE", "@every 5m"),
			StoreID:      storeID,
			CutoffWindow: cfg.CutoffWindow,
			Limit:        cfg.BatchSize,
		},
		{
			Name:         "contact-sync",
			Schedule:     envString("CONTACT_SYNC_SCHEDULE", "@every 15m"),
			StoreID:      storeID,
			CutoffWindow: cfg.CutoffWindow,
			Limit:        cfg.BatchSize,
		},
	}
	for _, tr := range triggers {
		if err := sched.Register(tr); err != nil {
			logger.Error("trigger registration failed", "trigger", tr.Name, "error", err)
			os.Exit(1)
		}
	}

	syncer, err := loyaltysync.New(
		loyaltysync.WithStore(st),
		loyaltysync.WithLogger(logger),
		loyaltysync.WithConfig(cfg),
	)
	if err != nil {
		logger.Error("syncer setup failed", "error", err)
		os.Exit(1)
	}
	syncer.SetScheduler(sched)
	syncer.SetHooks(hooks)

	if err := syncer.Start(ctx); err != nil {
		logger.Error("start failed", "error", err)
		os.Exit(1)
	}
	logger.Info("loyaltysyncd started",
		"store_id", storeID,
		"batch_size", cfg.BatchSize,
		"lease_ttl", cfg.LeaseTTL)

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	sig := <-signalCh
	logger.Info("received termination signal, shutting down", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := syncer.Stop(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
	logger.Info("loyaltysyncd stopped")
}
