package server

import (
	"context"
	"net/http"
	"time"

	"fittrack/internal/api"
	"fittrack/internal/email"
	"fittrack/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

const healthTimeout = 2 * time.Second

// Health godoc
// @Summary      Health check
// @Description  Pings the database and the other registered dependencies.
// @Tags         system
// @Produce      json
// @Success      200 {object} api.HealthResponse
// @Failure      503 {object} api.HealthResponse
// @Router       /health [get]
func Health(checks map[string]HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
		defer cancel()

		resp := api.HealthResponse{Status: "ok", Checks: make(map[string]string, len(checks))}
		status := http.StatusOK
		for name, check := range checks {
			if err := check(ctx); err != nil {
				logger.Warn("health check failed", "dependency", name, "error", err)
				resp.Checks[name] = "down"
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		c.JSON(status, resp)
	}
}

// TestEmail godoc
// @Summary      Queue a test email
// @Tags         system
// @Produce      json
// @Security     BearerAuth
// @Param        email query string true "Recipient email"
// @Success      202 {object} api.MessageResponse
// @Failure      400 {object} api.ErrorResponse
// @Failure      500 {object} api.ErrorResponse
// @Router       /admin/test-email [post]
func TestEmail(mail *email.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		to := c.Query("email")
		if to == "" {
			api.BadRequest(c, "email parameter required")
			return
		}

		job := email.Job{To: to, Name: "FitTrack admin", Subject: "Test email from FitTrack", Body: "Email delivery is working.", Kind: "test"}
		if err := mail.Enqueue(c.Request.Context(), job); err != nil {
			api.WriteError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, api.MessageResponse{Message: "email queued"})
	}
}

// Metrics godoc
// @Summary      Prometheus metrics
// @Tags         system
// @Produce      plain
// @Success      200 {string} string
// @Router       /metrics [get]
func MetricsHandler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
