package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Config struct {
	StatusHandler *StatusHandler
}

func NewRouter(cfg *Config) *gin.Engine {
	router := gin.Default()

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/v1/")
	registerStatusRoutes(api, cfg.StatusHandler)

	return router
}

func registerStatusRoutes(router *gin.RouterGroup, h *StatusHandler) {
	router.GET("/pivots/:asset", h.GetPivots)
	router.GET("/opportunities/:asset", h.GetOpportunities)

	trades := router.Group("/trades")
	{
		trades.GET("/active", h.GetActiveTrades)
		trades.GET("/:asset", h.GetTrades)
	}
}
