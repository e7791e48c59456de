// internal/repository/operation_repository.go
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"evactron-service/internal/database"
	"evactron-service/internal/model"
)

const operationColumns = `id, port, operation_type, params, status, started_at,
	completed_at, duration_ms, error_message, request_id, created_at`

// operationRepository implements OperationRepository on PostgreSQL
type operationRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewOperationRepository creates a new operation repository
func NewOperationRepository(db *database.DB, logger *zap.Logger) OperationRepository {
	return &operationRepository{
		db:     db,
		logger: logger,
	}
}

// Create stores a completed operation
func (r *operationRepository) Create(ctx context.Context, operation *model.Operation) error {
	query := `INSERT INTO operations (` + operationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.db.ExecContext(ctx, query,
		operation.ID, operation.Port, operation.OperationType, operation.Params,
		operation.Status, operation.StartedAt, operation.CompletedAt, operation.DurationMs,
		operation.ErrorMessage, operation.RequestID, operation.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create operation", zap.Error(err))
		return fmt.Errorf("failed to create operation: %w", err)
	}
	return nil
}

// GetByID retrieves an operation by ID
func (r *operationRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Operation, error) {
	query := `SELECT ` + operationColumns + ` FROM operations WHERE id = $1`

	operation, err := scanOperation(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("operation %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get operation: %w", err)
	}
	return operation, nil
}

// List retrieves operations with filtering and pagination, newest first
func (r *operationRepository) List(ctx context.Context, filter *model.OperationFilter) ([]*model.Operation, int, error) {
	filter.Normalize()

	whereConditions := []string{}
	args := []interface{}{}
	argIndex := 1

	if filter.OperationType != nil {
		whereConditions = append(whereConditions, fmt.Sprintf("operation_type = $%d", argIndex))
		args = append(args, *filter.OperationType)
		argIndex++
	}
	if filter.Status != nil {
		whereConditions = append(whereConditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, *filter.Status)
		argIndex++
	}
	if filter.Since != nil {
		whereConditions = append(whereConditions, fmt.Sprintf("created_at >= $%d", argIndex))
		args = append(args, *filter.Since)
		argIndex++
	}

	whereClause := ""
	if len(whereConditions) > 0 {
		whereClause = "WHERE " + strings.Join(whereConditions, " AND ")
	}

	// Count total records
	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM operations %s", whereClause)
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count operations: %w", err)
	}

	offset := (filter.Page - 1) * filter.PerPage
	query := fmt.Sprintf(`SELECT %s FROM operations %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, operationColumns, whereClause, argIndex, argIndex+1)
	args = append(args, filter.PerPage, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list operations: %w", err)
	}
	defer rows.Close()

	operations := []*model.Operation{}
	for rows.Next() {
		operation, err := scanOperation(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan operation: %w", err)
		}
		operations = append(operations, operation)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate operations: %w", err)
	}

	return operations, total, nil
}

// DeleteOlderThan removes operations created before olderThan
func (r *operationRepository) DeleteOlderThan(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM operations WHERE created_at < $1`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old operations: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOperation(row rowScanner) (*model.Operation, error) {
	operation := &model.Operation{}
	err := row.Scan(
		&operation.ID, &operation.Port, &operation.OperationType, &operation.Params,
		&operation.Status, &operation.StartedAt, &operation.CompletedAt, &operation.DurationMs,
		&operation.ErrorMessage, &operation.RequestID, &operation.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return operation, nil
}
