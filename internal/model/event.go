// internal/model/event.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of event
type EventType string

const (
	EventTelemetry          EventType = "TELEMETRY"
	EventStateChange        EventType = "STATE_CHANGE"
	EventDeviceConnected    EventType = "DEVICE_CONNECTED"
	EventDeviceDisconnected EventType = "DEVICE_DISCONNECTED"
	EventDeviceError        EventType = "DEVICE_ERROR"
	EventFaultRaised        EventType = "FAULT_RAISED"
	EventOperationCompleted EventType = "OPERATION_COMPLETED"
	EventOperationFailed    EventType = "OPERATION_FAILED"
)

// Severity levels
const (
	SeverityInfo     = "INFO"
	SeverityWarning  = "WARNING"
	SeverityError    = "ERROR"
	SeverityCritical = "CRITICAL"
)

// DeviceEvent represents an event in the system
type DeviceEvent struct {
	ID        uuid.UUID   `json:"id"`
	EventType EventType   `json:"event_type"`
	Port      int         `json:"port"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Source    string      `json:"source"`
	Severity  string      `json:"severity"`
}

// NewDeviceEvent creates an event stamped now.
func NewDeviceEvent(eventType EventType, port int, severity string, data interface{}) DeviceEvent {
	return DeviceEvent{
		ID:        uuid.New(),
		EventType: eventType,
		Port:      port,
		Data:      data,
		Timestamp: time.Now(),
		Source:    "evactron-service",
		Severity:  severity,
	}
}

// StateChangeEventData represents a transition of the operating state
type StateChangeEventData struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Cycle int    `json:"cycle"`
}

// DeviceErrorEventData represents device error event
type DeviceErrorEventData struct {
	Operation    string    `json:"operation,omitempty"`
	ErrorCode    *int      `json:"error_code,omitempty"`
	ErrorMessage string    `json:"error_message"`
	ErrorTime    time.Time `json:"error_time"`
}

// OperationEventData represents operation-related events
type OperationEventData struct {
	OperationID   uuid.UUID       `json:"operation_id"`
	OperationType OperationType   `json:"operation_type"`
	Status        OperationStatus `json:"status"`
	Duration      *int            `json:"duration_ms,omitempty"`
	ErrorMessage  *string         `json:"error_message,omitempty"`
}
