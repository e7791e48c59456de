// internal/model/operation.go
package model

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// OperationType represents the type of operation
type OperationType string

const (
	OperationTypeConnect     OperationType = "CONNECT"
	OperationTypeDisconnect  OperationType = "DISCONNECT"
	OperationTypeConfigure   OperationType = "CONFIGURE"
	OperationTypeSetClock    OperationType = "SET_CLOCK"
	OperationTypeClearFaults OperationType = "CLEAR_FAULTS"
	OperationTypeEnable      OperationType = "ENABLE"
	OperationTypeDisable     OperationType = "DISABLE"
	OperationTypeProbe       OperationType = "PROBE"
)

// OperationStatus represents the status of an operation
type OperationStatus string

const (
	OperationStatusProcessing OperationStatus = "PROCESSING"
	OperationStatusSuccess    OperationStatus = "SUCCESS"
	OperationStatusFailed     OperationStatus = "FAILED"
	OperationStatusTimeout    OperationStatus = "TIMEOUT"
	OperationStatusCancelled  OperationStatus = "CANCELLED"
)

// Operation is an audited command sent to a unit
type Operation struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	Port          int             `json:"port" db:"port"`
	OperationType OperationType   `json:"operation_type" db:"operation_type"`
	Params        JSONObject      `json:"params,omitempty" db:"params"`
	Status        OperationStatus `json:"status" db:"status"`
	StartedAt     time.Time       `json:"started_at" db:"started_at"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty" db:"completed_at"`
	DurationMs    *int            `json:"duration_ms,omitempty" db:"duration_ms"`
	ErrorMessage  *string         `json:"error_message,omitempty" db:"error_message"`
	RequestID     *string         `json:"request_id,omitempty" db:"request_id"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}

// NewOperation starts a new operation record.
func NewOperation(port int, opType OperationType, params JSONObject) *Operation {
	now := time.Now()
	return &Operation{
		ID:            uuid.New(),
		Port:          port,
		OperationType: opType,
		Params:        params,
		Status:        OperationStatusProcessing,
		StartedAt:     now,
		CreatedAt:     now,
	}
}

// Complete records the outcome of the operation.
func (op *Operation) Complete(err error, at time.Time) {
	op.CompletedAt = &at
	ms := int(at.Sub(op.StartedAt) / time.Millisecond)
	op.DurationMs = &ms

	switch {
	case err == nil:
		op.Status = OperationStatusSuccess
		return
	case errors.Is(err, context.DeadlineExceeded):
		op.Status = OperationStatusTimeout
	case errors.Is(err, context.Canceled):
		op.Status = OperationStatusCancelled
	default:
		op.Status = OperationStatusFailed
	}
	msg := err.Error()
	op.ErrorMessage = &msg
}

// IsCompleted checks if operation is completed
func (op *Operation) IsCompleted() bool {
	return op.Status != OperationStatusProcessing
}

// OperationFilter represents operation listing filters
type OperationFilter struct {
	OperationType *OperationType   `json:"operation_type,omitempty"`
	Status        *OperationStatus `json:"status,omitempty"`
	Since         *time.Time       `json:"since,omitempty"`
	Page          int              `json:"page"`
	PerPage       int              `json:"per_page"`
}

// Normalize fills in paging defaults.
func (f *OperationFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 || f.PerPage > 500 {
		f.PerPage = 50
	}
}
