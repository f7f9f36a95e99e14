package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/clickhouse"
	"gorm.io/gorm"

	"github.com/navid-fn/ladder/configs"
	"github.com/navid-fn/ladder/internal/ingester"
	"github.com/navid-fn/ladder/internal/repository"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	appConfig := configs.AppLoad()

	db, err := gorm.Open(clickhouse.Open(appConfig.DBDSN), &gorm.Config{})
	if err != nil {
		logger.Fatalf("Failed to connect to DB: %v", err)
	}
	store := repository.NewGormStore(db)

	kafkaReader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        []string{appConfig.Kafka.Broker},
		Topic:          appConfig.Kafka.Topic,
		GroupID:        appConfig.Kafka.GroupID,
		MinBytes:       10e3, // 10KB
		MaxBytes:       10e6, // 10MB
		CommitInterval: 0,    // Important: commits are handled manually in Ingester!
	})
	defer kafkaReader.Close()

	svc := ingester.NewIngester(
		kafkaReader,
		store,
		logger,
		ingester.Config{
			BatchSize:    appConfig.Ingester.BatchSize,
			BatchTimeout: time.Duration(appConfig.Ingester.BatchTimeoutSeconds) * time.Second,
		},
	)

	// Run with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Ingester started successfully")

	if err := svc.Start(ctx); err != nil {
		logger.Fatalf("Ingester stopped with error: %v", err)
	}

	logger.Info("Ingester shutdown complete")
}
