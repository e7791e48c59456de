// internal/repository/interfaces.go
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"evactron-service/internal/model"
)

// ErrNotFound is returned when a record does not exist
var ErrNotFound = errors.New("record not found")

// DefaultReadingLimit caps reading queries without an explicit limit
const DefaultReadingLimit = 500

// ReadingRepository defines telemetry data access operations
type ReadingRepository interface {
	Create(ctx context.Context, reading *model.Reading) error
	List(ctx context.Context, filter *model.ReadingFilter) ([]*model.Reading, error)

	// Cleanup
	DeleteOlderThan(ctx context.Context, olderThan time.Time) (int64, error)
}

// OperationRepository defines audit trail data access operations
type OperationRepository interface {
	Create(ctx context.Context, operation *model.Operation) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Operation, error)
	List(ctx context.Context, filter *model.OperationFilter) ([]*model.Operation, int, error)

	// Cleanup
	DeleteOlderThan(ctx context.Context, olderThan time.Time) (int64, error)
}

func readingLimit(filter *model.ReadingFilter) int {
	if filter.Limit <= 0 || filter.Limit > DefaultReadingLimit {
		return DefaultReadingLimit
	}
	return filter.Limit
}
