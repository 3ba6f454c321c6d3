package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/example/coursepay/internal/api"
	"github.com/example/coursepay/internal/auth"
	"github.com/example/coursepay/internal/checkout"
	"github.com/example/coursepay/internal/config"
	"github.com/example/coursepay/internal/gateway"
	"github.com/example/coursepay/internal/infrastructure/kafka"
	"github.com/example/coursepay/internal/infrastructure/store"
	"github.com/example/coursepay/internal/settlement"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	entry := log.WithField("component", "api")

	cfg, err := config.Load()
	if err != nil {
		entry.WithError(err).Fatal("invalid configuration")
	}

	entry.WithFields(logrus.Fields{
		"addr":     cfg.HTTPAddr,
		"brokers":  cfg.KafkaBrokers,
		"topic":    cfg.KafkaTopic,
		"currency": cfg.Currency,
	}).Info("starting coursepay api")

	db, err := store.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		entry.WithError(err).Fatal("postgres connection failed")
	}
	defer db.Close()

	if err := store.Migrate(cfg.MigrationsPath, cfg.DatabaseURL); err != nil {
		entry.WithError(err).Fatal("migration failed")
	}
	entry.Info("database ready")

	producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	defer producer.Close()

	ledger := store.NewPostgresLedger(db)
	razorpay := gateway.NewRazorpayClient(cfg.RazorpayBaseURL, cfg.RazorpayKeyID, cfg.RazorpayKeySecret)
	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.AccessTokenExpiry, cfg.RefreshTokenExpiry)

	checkoutSvc := checkout.NewService(ledger, razorpay, producer, cfg.Currency, cfg.OrderTTL, log.WithField("component", "checkout"))
	settlementSvc := settlement.NewService(ledger, razorpay, producer, log.WithField("component", "settlement"))

	router := api.NewRouter(api.RouterConfig{
		Handlers:     api.NewHandlers(checkoutSvc, settlementSvc, ledger, log.WithField("component", "http")),
		AuthHandlers: api.NewAuthHandlers(ledger, jwtService, log.WithField("component", "auth")),
		JWTService:   jwtService,
		Log:          log.WithField("component", "http"),
	})

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	go func() {
		entry.WithField("addr", cfg.HTTPAddr).Info("http server listening")
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			entry.WithError(err).Fatal("http server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	entry.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		entry.WithError(err).Warn("shutdown incomplete")
	}
}
