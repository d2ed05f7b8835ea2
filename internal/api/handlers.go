package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/nvandessel/polaris/internal/agent"
	"github.com/nvandessel/polaris/internal/constants"
	"github.com/nvandessel/polaris/internal/retrieval"
	"github.com/nvandessel/polaris/internal/service"
	"github.com/nvandessel/polaris/internal/simulation"
	"github.com/nvandessel/polaris/internal/store"
)

const maxHistoryLimit = 100

type handlers struct {
	svc     Simulator
	logger  *slog.Logger
	version string
}

type simulateRequest struct {
	Text string `json:"text" binding:"required"`
}

func (h *handlers) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Polaris API is running", "version": h.version})
}

func (h *handlers) health(c *gin.Context) {
	if err := h.svc.Health(c.Request.Context()); err != nil {
		h.logger.Warn("health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "database": "disconnected"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "database": "connected"})
}

func (h *handlers) simulate(c *gin.Context) {
	var req simulateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "request body must be JSON with a text field"})
		return
	}

	resp, err := h.svc.Simulate(c.Request.Context(), req.Text)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handlers) leaders(c *gin.Context) {
	leaders, err := h.svc.Leaders(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, leaders)
}

func (h *handlers) history(c *gin.Context) {
	limit := constants.DefaultHistoryLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxHistoryLimit {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer between 1 and 100"})
			return
		}
		limit = n
	}

	history, err := h.svc.History(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

func (h *handlers) simulation(c *gin.Context) {
	resp, err := h.svc.Simulation(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// fail maps an application error to a status code and a JSON body.
func (h *handlers) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "path", c.FullPath(), "status", status, "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidEvent):
		return http.StatusUnprocessableEntity
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, retrieval.ErrEmbeddingUnavailable), errors.Is(err, simulation.ErrNoProfiles):
		return http.StatusServiceUnavailable
	case errors.Is(err, agent.ErrGenerationFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
