package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/clickhouse"
	"gorm.io/gorm"

	"github.com/navid-fn/ladder/configs"
	"github.com/navid-fn/ladder/internal/engine"
	"github.com/navid-fn/ladder/internal/marketdata"
	"github.com/navid-fn/ladder/internal/position"
	"github.com/navid-fn/ladder/internal/repository"
	"github.com/navid-fn/ladder/internal/sizing"
	"github.com/navid-fn/ladder/internal/venue"
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

	v, err := venue.NewClient(venue.ClientConfig{
		BaseURL:           appConfig.Venue.BaseURL,
		APIKey:            appConfig.Venue.APIKey,
		SecretKey:         appConfig.Venue.SecretKey,
		RequestsPerSecond: appConfig.Venue.RequestsPerSecond,
	}, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize venue client: %v", err)
	}

	eng := engine.New(
		engine.Config{
			Assets:               appConfig.Engine.Assets,
			ReferenceAsset:       appConfig.Engine.ReferenceAsset,
			CycleInterval:        appConfig.Engine.CycleInterval,
			BarInterval:          appConfig.Engine.BarInterval,
			HistoryBars:          appConfig.Engine.HistoryBars,
			PivotWindow:          appConfig.Engine.PivotWindow,
			MaxPriceDiffPct:      appConfig.Engine.MaxPriceDiffPct,
			BreakthroughPct:      appConfig.Engine.BreakthroughPct,
			SupportLineTimeframe: appConfig.Engine.SupportLineTimeframe,
			TimeExtension:        appConfig.Engine.TimeExtension,
			MaxWorkers:           appConfig.Engine.MaxWorkers,
			VolatileWindow:       appConfig.Engine.VolatileWindow,
		},
		marketdata.NewStoreSource(store),
		store,
		v,
		sizing.NewSizer(v, appConfig.Engine.TradeFraction, logger),
		position.NewManager(v, store, logger),
		logger,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := eng.Run(ctx); err != nil && err != context.Canceled {
		logger.Fatalf("Engine stopped with error: %v", err)
	}

	logger.Info("Engine shutdown complete")
}
