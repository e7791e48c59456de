// internal/handler/health_handler.go
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"evactron-service/internal/config"
	"evactron-service/internal/service"
	"evactron-service/internal/utils"
)

// DatabaseChecker is the part of the database the health checks use
type DatabaseChecker interface {
	HealthCheck(ctx context.Context) error
	GetStats() map[string]interface{}
}

// HealthHandler handles health check requests
type HealthHandler struct {
	db              DatabaseChecker
	evactronService *service.EvactronService
	config          *config.Config
	startedAt       time.Time
	logger          *utils.ServiceLogger
}

// NewHealthHandler creates a new health handler. db is nil when readings are
// kept in memory.
func NewHealthHandler(
	db DatabaseChecker,
	evactronService *service.EvactronService,
	config *config.Config,
	logger *zap.Logger,
) *HealthHandler {
	return &HealthHandler{
		db:              db,
		evactronService: evactronService,
		config:          config,
		startedAt:       time.Now(),
		logger:          utils.NewServiceLogger(logger, "health-handler"),
	}
}

// RegisterRoutes registers health check routes
func (h *HealthHandler) RegisterRoutes(router gin.IRoutes) {
	router.GET("/health", h.HealthCheck)
	router.GET("/ready", h.ReadinessCheck)
	router.GET("/live", h.LivenessCheck)
}

// HealthCheck reports storage and session health. A closed session is
// reported but does not make the service unhealthy.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	health := &HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Service:   h.config.App.Name,
		Version:   h.config.App.Version,
		Uptime:    time.Since(h.startedAt).String(),
		Checks:    make(map[string]CheckResult),
	}

	if h.db != nil {
		if err := h.db.HealthCheck(c.Request.Context()); err != nil {
			health.Status = "unhealthy"
			health.Checks["database"] = CheckResult{Status: "unhealthy", Message: err.Error()}
		} else {
			health.Checks["database"] = CheckResult{
				Status:  "healthy",
				Message: "Database connection OK",
				Data:    h.db.GetStats(),
			}
		}
	} else {
		health.Checks["database"] = CheckResult{Status: "disabled", Message: "Using in-memory storage"}
	}

	session := h.evactronService.Session()
	sessionCheck := CheckResult{
		Status: "disconnected",
		Data: map[string]interface{}{
			"library": session.Library,
		},
	}
	if session.Connected {
		sessionCheck.Status = "connected"
		sessionCheck.Data["port"] = session.Port
		sessionCheck.Data["connected_at"] = session.ConnectedAt
	}
	if reading := h.evactronService.LatestReading(); reading != nil {
		sessionCheck.Data["state"] = reading.StateName
		sessionCheck.Data["last_reading_at"] = reading.TakenAt
	}
	health.Checks["device"] = sessionCheck

	statusCode := http.StatusOK
	if health.Status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, health)
}

// ReadinessCheck for readiness probes
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	if h.db != nil {
		if err := h.db.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not ready",
				"reason": "database not available",
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"timestamp": time.Now(),
	})
}

// LivenessCheck for liveness probes
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": time.Now(),
	})
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Service   string                 `json:"service"`
	Version   string                 `json:"version"`
	Uptime    string                 `json:"uptime"`
	Checks    map[string]CheckResult `json:"checks"`
}

// CheckResult represents individual check result
type CheckResult struct {
	Status  string                 `json:"status"`
	Message string                 `json:"message,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
}
