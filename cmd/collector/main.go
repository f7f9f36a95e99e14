package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/navid-fn/ladder/configs"
	"github.com/navid-fn/ladder/internal/collector"
	"github.com/navid-fn/ladder/internal/marketdata"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	appConfig := configs.AppLoad()

	producer, err := collector.NewProducer(appConfig.Kafka.Broker, appConfig.Kafka.Topic, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize Kafka producer: %v", err)
	}
	defer producer.Close()

	svc := collector.New(
		collector.Config{
			Assets:       appConfig.Engine.Assets,
			Interval:     appConfig.Engine.BarInterval,
			BackfillBars: appConfig.Collector.BackfillBars,
			ChunkSize:    appConfig.Collector.ChunkSize,
		},
		producer,
		marketdata.NewBinanceClient(logger),
		logger,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Collector started successfully")

	if err := svc.Run(ctx); err != nil && err != context.Canceled {
		logger.Fatalf("Collector stopped with error: %v", err)
	}

	logger.Info("Collector shutdown complete")
}
