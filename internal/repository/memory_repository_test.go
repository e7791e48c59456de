package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evactron-service/internal/model"
)

func newReading(port int, at time.Time) *model.Reading {
	return &model.Reading{
		ID:         uuid.New(),
		Port:       port,
		StateName:  "Ready",
		Units:      "Pa",
		PressurePa: decimal.RequireFromString("0.1"),
		TakenAt:    at,
	}
}

func TestMemoryReadingRepository_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryReadingRepository(0)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Create(ctx, newReading(1+i%2, base.Add(time.Duration(i)*time.Minute))))
	}

	all, err := repo.List(ctx, &model.ReadingFilter{})
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, base.Add(4*time.Minute), all[0].TakenAt)
	assert.Equal(t, base, all[4].TakenAt)

	port := 2
	since := base.Add(2 * time.Minute)
	filtered, err := repo.List(ctx, &model.ReadingFilter{Port: &port, Since: &since})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, base.Add(3*time.Minute), filtered[0].TakenAt)

	limited, err := repo.List(ctx, &model.ReadingFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestMemoryReadingRepository_Capacity(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryReadingRepository(3)
	base := time.Now()

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Create(ctx, newReading(1, base.Add(time.Duration(i)*time.Second))))
	}

	all, err := repo.List(ctx, &model.ReadingFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, base.Add(2*time.Second), all[2].TakenAt)
}

func TestMemoryReadingRepository_DeleteOlderThan(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryReadingRepository(0)
	base := time.Now()

	for i := 0; i < 4; i++ {
		require.NoError(t, repo.Create(ctx, newReading(1, base.Add(time.Duration(i)*time.Hour))))
	}

	deleted, err := repo.DeleteOlderThan(ctx, base.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	rest, err := repo.List(ctx, &model.ReadingFilter{})
	require.NoError(t, err)
	assert.Len(t, rest, 2)
}

func TestMemoryReadingRepository_StoresCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryReadingRepository(0)
	reading := newReading(1, time.Now())
	require.NoError(t, repo.Create(ctx, reading))

	reading.Port = 9
	all, err := repo.List(ctx, &model.ReadingFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, all[0].Port)
}

func TestMemoryOperationRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryOperationRepository(0)
	base := time.Now()

	var ids []uuid.UUID
	for i, opType := range []model.OperationType{
		model.OperationTypeConnect,
		model.OperationTypeConfigure,
		model.OperationTypeConfigure,
	} {
		op := model.NewOperation(1, opType, nil)
		op.CreatedAt = base.Add(time.Duration(i) * time.Second)
		op.Complete(nil, op.CreatedAt)
		require.NoError(t, repo.Create(ctx, op))
		ids = append(ids, op.ID)
	}

	got, err := repo.GetByID(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, model.OperationTypeConnect, got.OperationType)

	_, err = repo.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	dup := *got
	assert.Error(t, repo.Create(ctx, &dup))

	configure := model.OperationTypeConfigure
	list, total, err := repo.List(ctx, &model.OperationFilter{OperationType: &configure})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, list, 2)
	assert.Equal(t, ids[2], list[0].ID)

	page, total, err := repo.List(ctx, &model.OperationFilter{Page: 2, PerPage: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 1)
	assert.Equal(t, ids[0], page[0].ID)

	empty, _, err := repo.List(ctx, &model.OperationFilter{Page: 5, PerPage: 2})
	require.NoError(t, err)
	assert.Empty(t, empty)

	deleted, err := repo.DeleteOlderThan(ctx, base.Add(1500*time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)
	_, total, err = repo.List(ctx, &model.OperationFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestMemoryOperationRepository_Capacity(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryOperationRepository(2)

	first := model.NewOperation(1, model.OperationTypeEnable, nil)
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, model.NewOperation(1, model.OperationTypeDisable, nil)))
	require.NoError(t, repo.Create(ctx, model.NewOperation(1, model.OperationTypeEnable, nil)))

	_, err := repo.GetByID(ctx, first.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, total, err := repo.List(ctx, &model.OperationFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}
