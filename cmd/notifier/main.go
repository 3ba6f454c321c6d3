package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"

	"github.com/example/coursepay/internal/email"
	"github.com/example/coursepay/internal/infrastructure/kafka"
	"github.com/example/coursepay/internal/notification"
)

const consumerGroup = "email-notifier"

// notifierConfig is the slice of the environment the notifier needs. It has no
// database or gateway access, so the api binary's required secrets are not
// demanded here.
type notifierConfig struct {
	KafkaBrokers []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	KafkaTopic   string   `envconfig:"KAFKA_TOPIC" default:"coursepay-events"`

	SMTPHost string `envconfig:"SMTP_HOST" default:"localhost"`
	SMTPPort string `envconfig:"SMTP_PORT" default:"1025"`
	SMTPFrom string `envconfig:"SMTP_FROM" default:"no-reply@coursepay.local"`
}

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	entry := log.WithField("component", "notifier")

	var cfg notifierConfig
	if err := envconfig.Process("", &cfg); err != nil {
		entry.WithError(err).Fatal("invalid configuration")
	}

	entry.WithFields(logrus.Fields{
		"brokers": cfg.KafkaBrokers,
		"topic":   cfg.KafkaTopic,
		"group":   consumerGroup,
		"smtp":    cfg.SMTPHost + ":" + cfg.SMTPPort,
	}).Info("starting coursepay notifier")

	mailer := email.NewService(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom)
	handler := notification.NewHandler(mailer, entry)

	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, consumerGroup)
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		entry.Info("consuming events")
		if err := consumer.Consume(ctx, handler.HandleEvent); err != nil && ctx.Err() == nil {
			entry.WithError(err).Error("consumer stopped")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	entry.Info("shutting down")
	cancel()
}
