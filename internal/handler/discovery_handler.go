// internal/handler/discovery_handler.go
package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"evactron-service/internal/discovery"
	"evactron-service/internal/service"
	"evactron-service/internal/utils"
)

// DiscoveryHandler handles port discovery and probe requests
type DiscoveryHandler struct {
	discoveryService *service.DiscoveryService
	evactronService  *service.EvactronService
	logger           *utils.ServiceLogger
}

// NewDiscoveryHandler creates a new discovery handler
func NewDiscoveryHandler(
	discoveryService *service.DiscoveryService,
	evactronService *service.EvactronService,
	logger *zap.Logger,
) *DiscoveryHandler {
	return &DiscoveryHandler{
		discoveryService: discoveryService,
		evactronService:  evactronService,
		logger:           utils.NewServiceLogger(logger, "discovery-handler"),
	}
}

// RegisterRoutes registers discovery routes
func (h *DiscoveryHandler) RegisterRoutes(router *gin.RouterGroup) {
	ports := router.Group("/ports")
	{
		ports.GET("", h.ListPorts)
		ports.POST("/:port/probe", h.ProbePort)
	}
}

// ListPorts lists the communication ports of the host
func (h *DiscoveryHandler) ListPorts(c *gin.Context) {
	ports, err := h.discoveryService.ListPorts(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "Failed to scan ports", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Port scan completed", gin.H{
		"ports_found": len(ports),
		"ports":       ports,
	})
}

// ProbePort opens a port briefly and reports what answered. The port may be
// given as a number or as a name such as COM3.
func (h *DiscoveryHandler) ProbePort(c *gin.Context) {
	param := c.Param("port")
	port, err := strconv.Atoi(param)
	if err != nil {
		var ok bool
		if port, ok = discovery.PortNumber(param); !ok {
			utils.ErrorResponse(c, http.StatusBadRequest, "Invalid port", err)
			return
		}
	}

	result, err := h.evactronService.Probe(c.Request.Context(), port)
	if err != nil {
		respondError(c, h.logger, "Probe failed", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Probe completed", result)
}
