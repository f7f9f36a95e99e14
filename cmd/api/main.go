package main

import (
	"github.com/sirupsen/logrus"
	"gorm.io/driver/clickhouse"
	"gorm.io/gorm"

	"github.com/navid-fn/ladder/configs"
	"github.com/navid-fn/ladder/internal/api"
	"github.com/navid-fn/ladder/internal/repository"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	appConfig := configs.AppLoad()

	db, err := gorm.Open(clickhouse.Open(appConfig.DBDSN), &gorm.Config{})
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	store := repository.NewGormStore(db)
	statusService := api.NewStatusService(store)
	statusHandler := api.NewStatusHandler(statusService)

	router := api.NewRouter(&api.Config{
		StatusHandler: statusHandler,
	})

	logger.Infof("Status API listening on %s", appConfig.APIAddr)
	if err := router.Run(appConfig.APIAddr); err != nil {
		logger.Fatalf("Status API stopped with error: %v", err)
	}
}
