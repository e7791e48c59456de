package repository

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"evactron-service/internal/database"
	"evactron-service/internal/model"
)

// openTestDB connects to EVACTRON_TEST_DATABASE_DSN and migrates it. Tests
// using it are skipped when the variable is unset.
func openTestDB(t *testing.T) *database.DB {
	t.Helper()

	dsn := os.Getenv("EVACTRON_TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("EVACTRON_TEST_DATABASE_DSN not set")
	}

	sqlDB, err := sql.Open("postgres", dsn)
	require.NoError(t, err)

	db := database.Wrap(sqlDB, zap.NewNop())
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.NewMigrator(db, zap.NewNop()).Up())
	_, err = db.Exec(`TRUNCATE readings, operations`)
	require.NoError(t, err)
	return db
}

func TestPostgresReadingRepository(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewReadingRepository(db, zap.NewNop())

	base := time.Now().UTC().Truncate(time.Millisecond)
	fault := 7
	for i := 0; i < 3; i++ {
		r := newReading(1, base.Add(time.Duration(i)*time.Minute))
		r.LatchedFault = &fault
		require.NoError(t, repo.Create(ctx, r))
	}

	list, err := repo.List(ctx, &model.ReadingFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.True(t, list[0].TakenAt.Equal(base.Add(2*time.Minute)))
	assert.Equal(t, "0.1", list[0].PressurePa.String())
	require.NotNil(t, list[0].LatchedFault)
	assert.Equal(t, 7, *list[0].LatchedFault)

	deleted, err := repo.DeleteOlderThan(ctx, base.Add(30*time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func TestPostgresOperationRepository(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewOperationRepository(db, zap.NewNop())

	op := model.NewOperation(2, model.OperationTypeConfigure, model.JSONObject{"cycles": 2})
	op.Complete(nil, op.StartedAt.Add(120*time.Millisecond))
	require.NoError(t, repo.Create(ctx, op))

	got, err := repo.GetByID(ctx, op.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OperationStatusSuccess, got.Status)
	assert.Equal(t, float64(2), got.Params["cycles"])
	require.NotNil(t, got.DurationMs)
	assert.Equal(t, 120, *got.DurationMs)

	_, err = repo.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	list, total, err := repo.List(ctx, &model.OperationFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, list, 1)
}
