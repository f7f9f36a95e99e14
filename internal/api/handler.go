package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/navid-fn/ladder/internal/repository"
)

type StatusHandler struct {
	statusService *StatusService
}

func NewStatusHandler(service *StatusService) *StatusHandler {
	return &StatusHandler{
		statusService: service,
	}
}

func (h *StatusHandler) GetPivots(c *gin.Context) {
	w := repository.Window{
		Since: queryInt64(c, "since"),
		Until: queryInt64(c, "until"),
	}
	pivots, err := h.statusService.GetPivots(c.Request.Context(), c.Param("asset"), w)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, pivots)
}

func (h *StatusHandler) GetOpportunities(c *gin.Context) {
	openOnly := c.Query("open") == "true"
	opps, err := h.statusService.GetOpportunities(c.Request.Context(), c.Param("asset"), openOnly)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, opps)
}

func (h *StatusHandler) GetActiveTrades(c *gin.Context) {
	trades, err := h.statusService.GetActiveTrades(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, trades)
}

func (h *StatusHandler) GetTrades(c *gin.Context) {
	trades, err := h.statusService.GetTrades(c.Request.Context(), c.Param("asset"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, trades)
}

func queryInt64(c *gin.Context, key string) int64 {
	v, err := strconv.ParseInt(c.Query(key), 10, 64)
	if err != nil {
		return 0
	}
	return v
}
