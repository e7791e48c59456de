// internal/service/evactron_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"evactron-service/internal/config"
	"evactron-service/internal/model"
	"evactron-service/internal/repository"
	"evactron-service/internal/utils"
	"evactron-service/pkg/evactron"
)

// EvactronService owns the long-lived session with one Evactron unit. All
// library calls go through it so commands and telemetry never interleave.
type EvactronService struct {
	lib         evactron.Library
	libraryName string
	readingRepo repository.ReadingRepository
	operations  *OperationService
	events      EventPublisher
	config      *config.DeviceConfig
	logger      *utils.ServiceLogger
	now         func() time.Time

	mu          sync.Mutex
	device      *evactron.Device
	devLogger   *utils.DeviceLogger
	connectedAt time.Time

	readingMu   sync.RWMutex
	lastReading *model.Reading
}

// NewEvactronService creates a new Evactron service instance
func NewEvactronService(
	lib evactron.Library,
	libraryName string,
	readingRepo repository.ReadingRepository,
	operations *OperationService,
	events EventPublisher,
	cfg *config.DeviceConfig,
	logger *zap.Logger,
) *EvactronService {
	if events == nil {
		events = nopPublisher{}
	}
	return &EvactronService{
		lib:         lib,
		libraryName: libraryName,
		readingRepo: readingRepo,
		operations:  operations,
		events:      events,
		config:      cfg,
		logger:      utils.NewServiceLogger(logger, "evactron-service"),
		now:         time.Now,
	}
}

//- Session

// Connect opens the session on port, or on the configured port when port is
// zero. Connecting again to the open port is a no-op.
func (s *EvactronService) Connect(ctx context.Context, port int) (*model.SessionInfo, error) {
	if port == 0 {
		port = s.config.CommPort
	}
	if port <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPort, port)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.device != nil {
		if s.device.Port() == port {
			return s.sessionLocked(), nil
		}
		return nil, fmt.Errorf("%w: port %d", ErrAlreadyConnected, s.device.Port())
	}

	devLogger := utils.NewDeviceLogger(s.logger.Logger, port)
	err := s.operations.Run(ctx, port, model.OperationTypeConnect, nil, func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		dev, err := evactron.Open(s.lib, port, evactron.WithSettleDelay(s.config.SettleDelay))
		if err != nil {
			return err
		}
		s.device = dev
		s.devLogger = devLogger
		s.connectedAt = s.now()
		return nil
	})
	devLogger.LogConnection("connect", err)
	if err != nil {
		s.events.Publish(deviceErrorEvent(port, "connect", err))
		return nil, err
	}

	info := s.sessionLocked()
	s.events.Publish(model.NewDeviceEvent(model.EventDeviceConnected, port, model.SeverityInfo, info))
	return info, nil
}

// Disconnect closes the session. It is a no-op without a session. When the
// library refuses to release the handle the session stays open.
func (s *EvactronService) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.device == nil {
		return nil
	}
	dev := s.device
	port := dev.Port()

	err := s.operations.Run(ctx, port, model.OperationTypeDisconnect, nil, func(context.Context) error {
		return dev.Close()
	})
	s.devLogger.LogConnection("disconnect", err)
	if err != nil {
		s.events.Publish(deviceErrorEvent(port, "disconnect", err))
		return err
	}

	s.device = nil
	s.devLogger = nil
	s.connectedAt = time.Time{}
	s.setLastReading(nil)

	s.events.Publish(model.NewDeviceEvent(model.EventDeviceDisconnected, port, model.SeverityInfo, nil))
	return nil
}

// Session reports the state of the session
func (s *EvactronService) Session() *model.SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionLocked()
}

// SessionPort returns the port of the open session
func (s *EvactronService) SessionPort() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.device == nil {
		return 0, false
	}
	return s.device.Port(), true
}

func (s *EvactronService) sessionLocked() *model.SessionInfo {
	info := &model.SessionInfo{Library: s.libraryName}
	if s.device != nil {
		connectedAt := s.connectedAt
		info.Connected = true
		info.Port = s.device.Port()
		info.ConnectedAt = &connectedAt
	}
	return info
}

// Close ends the session on shutdown
func (s *EvactronService) Close(ctx context.Context) error {
	return s.Disconnect(ctx)
}

//- Readings

// ReadNow takes a fresh reading from the unit
func (s *EvactronService) ReadNow(ctx context.Context) (*model.Reading, error) {
	reading, err := query(ctx, s, func(dev *evactron.Device) (*model.Reading, error) {
		return model.TakeReading(dev, s.now())
	})
	if err != nil {
		return nil, err
	}
	s.setLastReading(reading)
	return reading, nil
}

// LatestReading returns the last reading taken during the session, or nil
func (s *EvactronService) LatestReading() *model.Reading {
	s.readingMu.RLock()
	defer s.readingMu.RUnlock()
	return s.lastReading
}

// ReadingHistory lists stored readings
func (s *EvactronService) ReadingHistory(ctx context.Context, filter *model.ReadingFilter) ([]*model.Reading, error) {
	readings, err := s.readingRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list readings: %w", err)
	}
	return readings, nil
}

func (s *EvactronService) setLastReading(reading *model.Reading) *model.Reading {
	s.readingMu.Lock()
	defer s.readingMu.Unlock()
	previous := s.lastReading
	s.lastReading = reading
	return previous
}

// PollTelemetry takes one reading, stores it and publishes it together with
// any state transition or newly latched fault. It returns
// evactron.ErrNotConnected without a session.
func (s *EvactronService) PollTelemetry(ctx context.Context) (*model.Reading, error) {
	var port int
	reading, err := query(ctx, s, func(dev *evactron.Device) (*model.Reading, error) {
		port = dev.Port()
		return model.TakeReading(dev, s.now())
	})
	if err != nil {
		if !errors.Is(err, evactron.ErrNotConnected) {
			s.logger.Warn("Telemetry poll failed", zap.Int("comm_port", port), zap.Error(err))
			s.events.Publish(deviceErrorEvent(port, "telemetry", err))
		}
		return nil, err
	}

	if err := s.readingRepo.Create(ctx, reading); err != nil {
		s.logger.Error("Failed to store reading", zap.Error(err))
	}

	previous := s.setLastReading(reading)
	s.events.Publish(model.NewDeviceEvent(model.EventTelemetry, reading.Port, model.SeverityInfo, reading))

	if previous == nil || previous.State != reading.State {
		data := &model.StateChangeEventData{To: reading.StateName, Cycle: reading.Cycle}
		if previous != nil {
			data.From = previous.StateName
			s.logStateChange(data)
		}
		s.events.Publish(model.NewDeviceEvent(model.EventStateChange, reading.Port, model.SeverityInfo, data))
	}

	if reading.LatchedFault != nil && (previous == nil || !sameCode(previous.LatchedFault, reading.LatchedFault)) {
		info := &model.FaultInfo{Code: *reading.LatchedFault}
		if fault := evactron.FaultByCode(*reading.LatchedFault); fault != nil {
			info.Message = fault.Message
		}
		s.logger.Warn("Fault latched",
			zap.Int("comm_port", reading.Port),
			zap.Int("fault_code", info.Code),
			zap.String("fault", info.Message),
		)
		s.events.Publish(model.NewDeviceEvent(model.EventFaultRaised, reading.Port, model.SeverityCritical, info))
	}

	return reading, nil
}

// CleanupReadings deletes readings older than the configured retention
func (s *EvactronService) CleanupReadings(ctx context.Context) (int64, error) {
	if s.config.ReadingRetention <= 0 {
		return 0, nil
	}
	deleted, err := s.readingRepo.DeleteOlderThan(ctx, s.now().Add(-s.config.ReadingRetention))
	if err != nil {
		return 0, fmt.Errorf("failed to clean up readings: %w", err)
	}
	return deleted, nil
}

func (s *EvactronService) logStateChange(data *model.StateChangeEventData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.devLogger != nil {
		s.devLogger.LogStateChange(data.From, data.To, data.Cycle)
	}
}

func sameCode(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

//- Configuration

// GetSettings reads the plasma and purge configuration
func (s *EvactronService) GetSettings(ctx context.Context) (*model.Settings, error) {
	return query(ctx, s, model.ReadSettings)
}

// UpdateSettings applies a partial settings change in one disable/enable
// cycle and returns the settings read back from the unit.
func (s *EvactronService) UpdateSettings(ctx context.Context, update *model.SettingsUpdate) (*model.Settings, error) {
	if update == nil || update.Empty() {
		return nil, ErrNothingToUpdate
	}

	var settings *model.Settings
	err := s.command(ctx, model.OperationTypeConfigure, update.Fields(), func(ctx context.Context, dev *evactron.Device) error {
		if err := dev.Reconfigure(ctx, update.Apply); err != nil {
			return err
		}
		var err error
		settings, err = model.ReadSettings(dev)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Device settings updated", zap.Any("changes", update.Fields()))
	return settings, nil
}

// GetClock reads the unit's clock
func (s *EvactronService) GetClock(ctx context.Context) (*model.ClockInfo, error) {
	return query(ctx, s, func(dev *evactron.Device) (*model.ClockInfo, error) {
		t, err := dev.Clock()
		if err != nil {
			return nil, err
		}
		return &model.ClockInfo{Time: t}, nil
	})
}

// SetClock sets the unit's clock
func (s *EvactronService) SetClock(ctx context.Context, t time.Time) error {
	params := model.JSONObject{"time": t.Format(time.RFC3339)}
	return s.command(ctx, model.OperationTypeSetClock, params, func(ctx context.Context, dev *evactron.Device) error {
		return dev.Reconfigure(ctx, func(dev *evactron.Device) error {
			return dev.SetClock(t)
		})
	})
}

//- Faults and power

// Faults reads the fault registers
func (s *EvactronService) Faults(ctx context.Context) (*model.FaultStatus, error) {
	return query(ctx, s, func(dev *evactron.Device) (*model.FaultStatus, error) {
		report, err := dev.Faults()
		if err != nil {
			return nil, err
		}
		return model.NewFaultStatus(report), nil
	})
}

// ClearFaults acknowledges latched faults
func (s *EvactronService) ClearFaults(ctx context.Context) error {
	return s.command(ctx, model.OperationTypeClearFaults, nil, func(_ context.Context, dev *evactron.Device) error {
		return dev.ClearFaults()
	})
}

// Enable turns the unit on
func (s *EvactronService) Enable(ctx context.Context) error {
	return s.command(ctx, model.OperationTypeEnable, nil, func(_ context.Context, dev *evactron.Device) error {
		return dev.Enable()
	})
}

// Disable turns the unit off
func (s *EvactronService) Disable(ctx context.Context) error {
	return s.command(ctx, model.OperationTypeDisable, nil, func(_ context.Context, dev *evactron.Device) error {
		return dev.Disable()
	})
}

// Versions reads the software versions and last clean time
func (s *EvactronService) Versions(ctx context.Context) (*model.Versions, error) {
	return query(ctx, s, model.ReadVersions)
}

//- Probe

// Probe opens port for a single exchange, reads the unit's identity and
// releases the handle again. The port of the open session cannot be probed.
func (s *EvactronService) Probe(ctx context.Context, port int) (*model.ProbeResult, error) {
	if port <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPort, port)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.device != nil && s.device.Port() == port {
		return nil, fmt.Errorf("%w: %d", ErrPortInUse, port)
	}

	if s.config.OperationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.OperationTimeout)
		defer cancel()
	}

	result := &model.ProbeResult{Port: port}
	err := s.operations.Run(ctx, port, model.OperationTypeProbe, nil, func(ctx context.Context) error {
		return evactron.WithDevice(ctx, s.lib, port, func(_ context.Context, dev *evactron.Device) error {
			versions, err := model.ReadVersions(dev)
			if err != nil {
				return err
			}
			status, err := dev.Status()
			if err != nil {
				return err
			}
			result.Connected = true
			result.Versions = versions
			result.State = status.State.String()
			return nil
		})
	})
	result.ProbedAt = s.now()
	if err != nil {
		return nil, err
	}
	return result, nil
}

//- Helpers

func (s *EvactronService) command(
	ctx context.Context,
	opType model.OperationType,
	params model.JSONObject,
	fn func(context.Context, *evactron.Device) error,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.device == nil {
		return evactron.ErrNotConnected
	}
	dev := s.device

	err := s.operations.Run(ctx, dev.Port(), opType, params, func(ctx context.Context) error {
		return fn(ctx, dev)
	})
	if err != nil {
		s.events.Publish(deviceErrorEvent(dev.Port(), string(opType), err))
	}
	return err
}

func query[T any](ctx context.Context, s *EvactronService, fn func(*evactron.Device) (T, error)) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	if s.device == nil {
		return zero, evactron.ErrNotConnected
	}
	return fn(s.device)
}
