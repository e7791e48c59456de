// internal/handler/evactron_handler.go
package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"evactron-service/internal/model"
	"evactron-service/internal/service"
	"evactron-service/internal/utils"
)

// EvactronHandler handles session, telemetry and configuration requests for
// the attached unit
type EvactronHandler struct {
	evactronService *service.EvactronService
	logger          *utils.ServiceLogger
}

// NewEvactronHandler creates a new Evactron handler
func NewEvactronHandler(evactronService *service.EvactronService, logger *zap.Logger) *EvactronHandler {
	return &EvactronHandler{
		evactronService: evactronService,
		logger:          utils.NewServiceLogger(logger, "evactron-handler"),
	}
}

// RegisterRoutes registers Evactron routes
func (h *EvactronHandler) RegisterRoutes(router *gin.RouterGroup) {
	evactron := router.Group("/evactron")
	{
		evactron.POST("/connect", h.Connect)
		evactron.POST("/disconnect", h.Disconnect)
		evactron.GET("/session", h.GetSession)

		evactron.GET("/readings", h.GetReading)
		evactron.GET("/readings/latest", h.GetLatestReading)
		evactron.GET("/readings/history", h.GetReadingHistory)

		evactron.GET("/config", h.GetConfig)
		evactron.PUT("/config", h.UpdateConfig)
		evactron.GET("/clock", h.GetClock)
		evactron.PUT("/clock", h.SetClock)

		evactron.GET("/faults", h.GetFaults)
		evactron.DELETE("/faults", h.ClearFaults)

		evactron.POST("/enable", h.Enable)
		evactron.POST("/disable", h.Disable)
		evactron.GET("/versions", h.GetVersions)
	}
}

// ConnectRequest selects the port to open. Zero or absent uses the configured port.
type ConnectRequest struct {
	Port int `json:"port" binding:"omitempty,min=1"`
}

// SetClockRequest carries the new unit time
type SetClockRequest struct {
	Time time.Time `json:"time" binding:"required"`
}

// Connect opens the session
func (h *EvactronHandler) Connect(c *gin.Context) {
	var req ConnectRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	session, err := h.evactronService.Connect(c.Request.Context(), req.Port)
	if err != nil {
		respondError(c, h.logger, "Failed to connect", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Connected", session)
}

// Disconnect closes the session
func (h *EvactronHandler) Disconnect(c *gin.Context) {
	if err := h.evactronService.Disconnect(c.Request.Context()); err != nil {
		respondError(c, h.logger, "Failed to disconnect", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Disconnected", h.evactronService.Session())
}

// GetSession reports the session state
func (h *EvactronHandler) GetSession(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Session retrieved", h.evactronService.Session())
}

// GetReading takes a fresh reading
func (h *EvactronHandler) GetReading(c *gin.Context) {
	reading, err := h.evactronService.ReadNow(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "Failed to read device", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Reading taken", reading)
}

// GetLatestReading returns the last polled reading without touching the unit
func (h *EvactronHandler) GetLatestReading(c *gin.Context) {
	reading := h.evactronService.LatestReading()
	if reading == nil {
		utils.ErrorResponse(c, http.StatusNotFound, "No reading available", nil)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Reading retrieved", reading)
}

// GetReadingHistory lists stored readings, newest first
func (h *EvactronHandler) GetReadingHistory(c *gin.Context) {
	filter := &model.ReadingFilter{}

	if port := c.Query("port"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			utils.ErrorResponse(c, http.StatusBadRequest, "Invalid port", err)
			return
		}
		filter.Port = &p
	}
	if limit := c.Query("limit"); limit != "" {
		l, err := strconv.Atoi(limit)
		if err != nil || l <= 0 {
			utils.ErrorResponse(c, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		filter.Limit = l
	}
	var err error
	if filter.Since, err = parseTimeQuery(c, "since"); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid since", err)
		return
	}
	if filter.Until, err = parseTimeQuery(c, "until"); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid until", err)
		return
	}

	readings, err := h.evactronService.ReadingHistory(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.logger, "Failed to list readings", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Readings retrieved", gin.H{
		"count":    len(readings),
		"readings": readings,
	})
}

// GetConfig reads the plasma and purge settings
func (h *EvactronHandler) GetConfig(c *gin.Context) {
	settings, err := h.evactronService.GetSettings(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "Failed to read settings", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Settings retrieved", settings)
}

// UpdateConfig applies a partial settings change
func (h *EvactronHandler) UpdateConfig(c *gin.Context) {
	var update model.SettingsUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	settings, err := h.evactronService.UpdateSettings(c.Request.Context(), &update)
	if err != nil {
		respondError(c, h.logger, "Failed to update settings", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Settings updated", settings)
}

// GetClock reads the unit clock
func (h *EvactronHandler) GetClock(c *gin.Context) {
	clock, err := h.evactronService.GetClock(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "Failed to read clock", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Clock retrieved", clock)
}

// SetClock sets the unit clock
func (h *EvactronHandler) SetClock(c *gin.Context) {
	var req SetClockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Time.IsZero() {
		utils.ErrorResponse(c, http.StatusBadRequest, "time is required", nil)
		return
	}

	if err := h.evactronService.SetClock(c.Request.Context(), req.Time); err != nil {
		respondError(c, h.logger, "Failed to set clock", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Clock set", &model.ClockInfo{Time: req.Time})
}

// GetFaults reads the fault registers
func (h *EvactronHandler) GetFaults(c *gin.Context) {
	faults, err := h.evactronService.Faults(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "Failed to read faults", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Faults retrieved", faults)
}

// ClearFaults acknowledges latched faults
func (h *EvactronHandler) ClearFaults(c *gin.Context) {
	if err := h.evactronService.ClearFaults(c.Request.Context()); err != nil {
		respondError(c, h.logger, "Failed to clear faults", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Faults cleared", nil)
}

// Enable turns the unit on
func (h *EvactronHandler) Enable(c *gin.Context) {
	if err := h.evactronService.Enable(c.Request.Context()); err != nil {
		respondError(c, h.logger, "Failed to enable unit", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Unit enabled", nil)
}

// Disable turns the unit off
func (h *EvactronHandler) Disable(c *gin.Context) {
	if err := h.evactronService.Disable(c.Request.Context()); err != nil {
		respondError(c, h.logger, "Failed to disable unit", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Unit disabled", nil)
}

// GetVersions reads software versions
func (h *EvactronHandler) GetVersions(c *gin.Context) {
	versions, err := h.evactronService.Versions(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "Failed to read versions", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Versions retrieved", versions)
}

func parseTimeQuery(c *gin.Context, key string) (*time.Time, error) {
	value := c.Query(key)
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
