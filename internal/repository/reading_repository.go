// internal/repository/reading_repository.go
package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"evactron-service/internal/database"
	"evactron-service/internal/model"
)

const readingColumns = `id, port, state, state_name, cycle, units,
	pressure_pa, forward_power_w, reverse_power_w, valve_voltage_v,
	remaining_seconds, elapsed_seconds, latched_fault, dynamic_fault, taken_at`

// readingRepository implements ReadingRepository on PostgreSQL
type readingRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewReadingRepository creates a new reading repository
func NewReadingRepository(db *database.DB, logger *zap.Logger) ReadingRepository {
	return &readingRepository{
		db:     db,
		logger: logger,
	}
}

// Create stores a reading
func (r *readingRepository) Create(ctx context.Context, reading *model.Reading) error {
	query := `INSERT INTO readings (` + readingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err := r.db.ExecContext(ctx, query,
		reading.ID, reading.Port, reading.State, reading.StateName, reading.Cycle, reading.Units,
		reading.PressurePa, reading.ForwardPowerW, reading.ReversePowerW, reading.ValveVoltageV,
		reading.RemainingSeconds, reading.ElapsedSeconds, reading.LatchedFault, reading.DynamicFault,
		reading.TakenAt,
	)
	if err != nil {
		r.logger.Error("Failed to create reading", zap.Error(err))
		return fmt.Errorf("failed to create reading: %w", err)
	}
	return nil
}

// List returns readings newest first
func (r *readingRepository) List(ctx context.Context, filter *model.ReadingFilter) ([]*model.Reading, error) {
	whereConditions := []string{}
	args := []interface{}{}
	argIndex := 1

	if filter.Port != nil {
		whereConditions = append(whereConditions, fmt.Sprintf("port = $%d", argIndex))
		args = append(args, *filter.Port)
		argIndex++
	}
	if filter.Since != nil {
		whereConditions = append(whereConditions, fmt.Sprintf("taken_at >= $%d", argIndex))
		args = append(args, *filter.Since)
		argIndex++
	}
	if filter.Until != nil {
		whereConditions = append(whereConditions, fmt.Sprintf("taken_at <= $%d", argIndex))
		args = append(args, *filter.Until)
		argIndex++
	}

	whereClause := ""
	if len(whereConditions) > 0 {
		whereClause = "WHERE " + strings.Join(whereConditions, " AND ")
	}

	query := fmt.Sprintf(`SELECT %s FROM readings %s ORDER BY taken_at DESC LIMIT $%d`,
		readingColumns, whereClause, argIndex)
	args = append(args, readingLimit(filter))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list readings: %w", err)
	}
	defer rows.Close()

	readings := []*model.Reading{}
	for rows.Next() {
		reading := &model.Reading{}
		err := rows.Scan(
			&reading.ID, &reading.Port, &reading.State, &reading.StateName, &reading.Cycle, &reading.Units,
			&reading.PressurePa, &reading.ForwardPowerW, &reading.ReversePowerW, &reading.ValveVoltageV,
			&reading.RemainingSeconds, &reading.ElapsedSeconds, &reading.LatchedFault, &reading.DynamicFault,
			&reading.TakenAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		readings = append(readings, reading)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate readings: %w", err)
	}

	return readings, nil
}

// DeleteOlderThan removes readings taken before olderThan
func (r *readingRepository) DeleteOlderThan(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM readings WHERE taken_at < $1`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old readings: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected, nil
}
