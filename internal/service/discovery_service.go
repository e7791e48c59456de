// internal/service/discovery_service.go
package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"evactron-service/internal/discovery"
	"evactron-service/internal/model"
	"evactron-service/internal/utils"
)

// SessionReporter reports the port of the open session, if any
type SessionReporter interface {
	SessionPort() (int, bool)
}

// DiscoveryService lists the communication ports a unit may be attached to
type DiscoveryService struct {
	scanner *discovery.Scanner
	session SessionReporter
	logger  *utils.ServiceLogger
}

// NewDiscoveryService creates a new discovery service instance
func NewDiscoveryService(scanner *discovery.Scanner, session SessionReporter, logger *zap.Logger) *DiscoveryService {
	return &DiscoveryService{
		scanner: scanner,
		session: session,
		logger:  utils.NewServiceLogger(logger, "discovery-service"),
	}
}

// ListPorts scans the host and marks the port held by the session
func (s *DiscoveryService) ListPorts(ctx context.Context) ([]*model.PortInfo, error) {
	ports, err := s.scanner.Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to scan ports: %w", err)
	}

	if s.session != nil {
		if inUse, ok := s.session.SessionPort(); ok {
			for _, p := range ports {
				if p.Number == inUse {
					p.InUse = true
				}
			}
		}
	}

	s.logger.Debug("Port scan completed", zap.Int("ports_found", len(ports)))
	return ports, nil
}
