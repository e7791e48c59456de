// internal/repository/memory_repository.go
package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"evactron-service/internal/model"
)

// DefaultMemoryCapacity bounds the in-memory stores
const DefaultMemoryCapacity = 10000

// memoryReadingRepository keeps readings in a bounded slice, oldest first
type memoryReadingRepository struct {
	mu       sync.RWMutex
	readings []*model.Reading
	capacity int
}

// NewMemoryReadingRepository creates a reading store used when the database is disabled
func NewMemoryReadingRepository(capacity int) ReadingRepository {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &memoryReadingRepository{capacity: capacity}
}

func (r *memoryReadingRepository) Create(_ context.Context, reading *model.Reading) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *reading
	r.readings = append(r.readings, &copied)
	if over := len(r.readings) - r.capacity; over > 0 {
		r.readings = append([]*model.Reading(nil), r.readings[over:]...)
	}
	return nil
}

func (r *memoryReadingRepository) List(_ context.Context, filter *model.ReadingFilter) ([]*model.Reading, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	limit := readingLimit(filter)
	readings := []*model.Reading{}
	for i := len(r.readings) - 1; i >= 0 && len(readings) < limit; i-- {
		reading := r.readings[i]
		if filter.Port != nil && reading.Port != *filter.Port {
			continue
		}
		if filter.Since != nil && reading.TakenAt.Before(*filter.Since) {
			continue
		}
		if filter.Until != nil && reading.TakenAt.After(*filter.Until) {
			continue
		}
		copied := *reading
		readings = append(readings, &copied)
	}
	return readings, nil
}

func (r *memoryReadingRepository) DeleteOlderThan(_ context.Context, olderThan time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.readings[:0]
	for _, reading := range r.readings {
		if !reading.TakenAt.Before(olderThan) {
			kept = append(kept, reading)
		}
	}
	deleted := int64(len(r.readings) - len(kept))
	for i := len(kept); i < len(r.readings); i++ {
		r.readings[i] = nil
	}
	r.readings = kept
	return deleted, nil
}

// memoryOperationRepository keeps the audit trail in memory
type memoryOperationRepository struct {
	mu         sync.RWMutex
	operations map[uuid.UUID]*model.Operation
	order      []uuid.UUID
	capacity   int
}

// NewMemoryOperationRepository creates an operation store used when the database is disabled
func NewMemoryOperationRepository(capacity int) OperationRepository {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &memoryOperationRepository{
		operations: make(map[uuid.UUID]*model.Operation),
		capacity:   capacity,
	}
}

func (r *memoryOperationRepository) Create(_ context.Context, operation *model.Operation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.operations[operation.ID]; exists {
		return fmt.Errorf("operation %s already exists", operation.ID)
	}

	copied := *operation
	r.operations[operation.ID] = &copied
	r.order = append(r.order, operation.ID)

	for len(r.order) > r.capacity {
		delete(r.operations, r.order[0])
		r.order = r.order[1:]
	}
	return nil
}

func (r *memoryOperationRepository) GetByID(_ context.Context, id uuid.UUID) (*model.Operation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	operation, ok := r.operations[id]
	if !ok {
		return nil, fmt.Errorf("operation %s: %w", id, ErrNotFound)
	}
	copied := *operation
	return &copied, nil
}

func (r *memoryOperationRepository) List(_ context.Context, filter *model.OperationFilter) ([]*model.Operation, int, error) {
	filter.Normalize()

	r.mu.RLock()
	matched := []*model.Operation{}
	for _, operation := range r.operations {
		if filter.OperationType != nil && operation.OperationType != *filter.OperationType {
			continue
		}
		if filter.Status != nil && operation.Status != *filter.Status {
			continue
		}
		if filter.Since != nil && operation.CreatedAt.Before(*filter.Since) {
			continue
		}
		copied := *operation
		matched = append(matched, &copied)
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	start := (filter.Page - 1) * filter.PerPage
	if start >= total {
		return []*model.Operation{}, total, nil
	}
	end := start + filter.PerPage
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (r *memoryOperationRepository) DeleteOlderThan(_ context.Context, olderThan time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted int64
	order := r.order[:0]
	for _, id := range r.order {
		if r.operations[id].CreatedAt.Before(olderThan) {
			delete(r.operations, id)
			deleted++
			continue
		}
		order = append(order, id)
	}
	r.order = order
	return deleted, nil
}
