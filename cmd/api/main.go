package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"slapp/internal/config"
	"slapp/internal/database"
	"slapp/internal/middleware"
	"slapp/internal/modules/booking"
	"slapp/internal/pkg/clock"
	"slapp/internal/pkg/response"
	"slapp/internal/repository"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file found, using process environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}
	logger.SetLevel(cfg.LogLevel)
	logrus.SetLevel(cfg.LogLevel)
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logger.WithFields(cfg.Fields()).Info("configuration loaded")

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.WithError(err).Fatal("database connection failed")
	}
	if err := database.Migrate(db, repository.Models()...); err != nil {
		logger.WithError(err).Fatal("database migration failed")
	}

	catalog := repository.NewCatalog(db)
	reservations := repository.NewReservationRepository(db)
	txManager := repository.NewGormTxManager(db)

	bookingService := booking.NewService(catalog, reservations, txManager, clock.Real{}, logger, booking.Config{
		AllowOverrideOpening: cfg.AllowOverrideOpening,
		SweepBatch:           cfg.SweepBatch,
		SweepWorkers:         cfg.SweepWorkers,
	})
	bookingHandler := booking.NewHandler(bookingService)

	expirer := booking.NewExpirer(bookingService, clock.Real{}, logger, cfg.PendingTTL, cfg.SweepInterval)
	expirer.Start()

	if cfg.AppEnv != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.ErrorLogger(logger))
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	r.GET("/health", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			response.Error(c, http.StatusServiceUnavailable, "DB_UNAVAILABLE", err.Error())
			return
		}
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	bookingHandler.RegisterRoutes(v1)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.WithField("addr", cfg.HTTPAddr).Info("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("http server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("http server shutdown failed")
	}
	expirer.Stop()

	logger.Info("server exited")
}
