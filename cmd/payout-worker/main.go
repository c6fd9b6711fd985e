package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/beatmarkethq/backend/internal/treasury/bankaccount"
	"github.com/beatmarkethq/backend/internal/treasury/gateway"
	"github.com/beatmarkethq/backend/internal/treasury/ledger"
	"github.com/beatmarkethq/backend/internal/treasury/scheduler"
	"github.com/beatmarkethq/backend/pkg/config"
	"github.com/beatmarkethq/backend/pkg/db"
	"github.com/beatmarkethq/backend/pkg/logger"
	"github.com/beatmarkethq/backend/pkg/metrics"
	"github.com/beatmarkethq/backend/pkg/migrate"
	"github.com/beatmarkethq/backend/pkg/redis"
	stripeclient "github.com/beatmarkethq/backend/pkg/stripe"
)

const payoutLockKeyFormat = "payout:%s"

// payout-worker runs the weekly payout loop without the HTTP surface. It
// shares the Redis lock with the API so only one instance fires per slot.
func main() {
	logg := logger.New(logger.Options{ServiceName: "payout-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "payout-worker"

	logg = logger.New(logger.Options{
		ServiceName: "payout-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	treasuryMetrics := metrics.NewTreasuryMetrics(prometheus.DefaultRegisterer)

	transferGateway, err := buildGateway(cfg, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to build transfer gateway", err)
		os.Exit(1)
	}

	rate, err := cfg.Treasury.Rate()
	if err != nil {
		logg.Error(context.Background(), "invalid commission rate", err)
		os.Exit(1)
	}

	accounts, err := bankaccount.NewRegistry(dbClient, bankaccount.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create bank account registry", err)
		os.Exit(1)
	}

	payoutSchedule, err := buildSchedule(cfg)
	if err != nil {
		logg.Error(context.Background(), "invalid payout schedule", err)
		os.Exit(1)
	}

	ledgerService, err := ledger.NewService(ledger.ServiceParams{
		DB:             dbClient,
		Repo:           ledger.NewRepository(dbClient.DB()),
		Accounts:       accounts,
		Gateway:        transferGateway,
		NextPayout:     payoutSchedule.Next,
		CommissionRate: rate,
		Currency:       cfg.Treasury.Currency,
		Metrics:        treasuryMetrics,
		Logger:         logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	lock, err := scheduler.NewRedisLock(redisClient, redisClient.LockKey(lockKey(cfg.App.Env)), cfg.Payout.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create payout lock", err)
		os.Exit(1)
	}

	payoutScheduler, err := scheduler.NewService(scheduler.ServiceParams{
		Schedule: payoutSchedule,
		Ledger:   ledgerService,
		Lock:     lock,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payout scheduler", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"schedule":    payoutSchedule.Description(),
	})
	logg.Info(ctx, "starting payout worker")

	if err := payoutScheduler.Start(ctx); err != nil {
		logg.Error(ctx, "failed to start payout scheduler", err)
		os.Exit(1)
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var shutdownErr error
	shutdownErr = multierr.Append(shutdownErr, payoutScheduler.Stop(shutdownCtx))
	if shutdownErr != nil {
		logg.Error(ctx, "shutdown finished with errors", shutdownErr)
		os.Exit(1)
	}

	logg.Info(ctx, "payout worker shutting down gracefully")
}

func buildGateway(cfg *config.Config, logg *logger.Logger) (gateway.Gateway, error) {
	switch cfg.Payout.GatewayMode {
	case "stripe":
		if _, err := stripeclient.NewClient(context.Background(), cfg.Stripe, logg); err != nil {
			return nil, err
		}
		return gateway.NewStripe(), nil
	case "simulated", "":
		return gateway.NewSimulated(gateway.SimulatedParams{Delay: cfg.Payout.SimDelay}), nil
	default:
		return nil, fmt.Errorf("unknown payout gateway mode %q", cfg.Payout.GatewayMode)
	}
}

func buildSchedule(cfg *config.Config) (scheduler.Schedule, error) {
	weekday, err := cfg.Payout.Weekday()
	if err != nil {
		return scheduler.Schedule{}, err
	}
	loc, err := cfg.Payout.Location()
	if err != nil {
		return scheduler.Schedule{}, err
	}
	return scheduler.NewSchedule(weekday, cfg.Payout.Hour, loc)
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(payoutLockKeyFormat, env)
}
