package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"slapp/internal/config"
	"slapp/internal/database"
	"slapp/internal/modules/booking"
	"slapp/internal/pkg/clock"
	"slapp/internal/repository"
)

// expiry_sweep expires every PENDING reservation older than PENDING_TTL once
// and exits. Meant for cron when the API runs with several replicas.
func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}
	logger.SetLevel(cfg.LogLevel)

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.WithError(err).Fatal("db connect failed")
	}

	svc := booking.NewService(
		repository.NewCatalog(db),
		repository.NewReservationRepository(db),
		repository.NewGormTxManager(db),
		clock.Real{},
		logger,
		booking.Config{SweepBatch: cfg.SweepBatch, SweepWorkers: cfg.SweepWorkers},
	)
	expirer := booking.NewExpirer(svc, clock.Real{}, logger, cfg.PendingTTL, cfg.SweepInterval)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	n, err := expirer.RunOnce(ctx)
	if err != nil {
		logger.WithError(err).WithField("expired", n).Fatal("expiry sweep failed")
	}
	logger.WithFields(logrus.Fields{
		"expired":     n,
		"pending_ttl": cfg.PendingTTL.String(),
	}).Info("expiry sweep completed")
}
