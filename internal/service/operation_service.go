// internal/service/operation_service.go
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"evactron-service/internal/model"
	"evactron-service/internal/repository"
	"evactron-service/internal/utils"
)

// OperationService records every command sent to a unit
type OperationService struct {
	operationRepo repository.OperationRepository
	events        EventPublisher
	baseLogger    *zap.Logger
	logger        *utils.ServiceLogger
}

// NewOperationService creates a new operation service instance
func NewOperationService(
	operationRepo repository.OperationRepository,
	events EventPublisher,
	logger *zap.Logger,
) *OperationService {
	if events == nil {
		events = nopPublisher{}
	}
	return &OperationService{
		operationRepo: operationRepo,
		events:        events,
		baseLogger:    logger,
		logger:        utils.NewServiceLogger(logger, "operation-service"),
	}
}

// Run executes fn as an audited operation and returns fn's error unchanged.
// The operation is stored even when ctx has been canceled.
func (s *OperationService) Run(
	ctx context.Context,
	port int,
	opType model.OperationType,
	params model.JSONObject,
	fn func(context.Context) error,
) error {
	operation := model.NewOperation(port, opType, params)
	if requestID := utils.RequestIDFromContext(ctx); requestID != "" {
		operation.RequestID = &requestID
	}

	opLogger := utils.NewOperationLogger(s.baseLogger, string(opType), operation.ID.String())
	opLogger.Start(zap.Int("comm_port", port))

	err := fn(ctx)
	operation.Complete(err, time.Now())

	if err != nil {
		opLogger.Error(err, zap.Int("comm_port", port))
	} else {
		opLogger.Success(zap.Int("comm_port", port))
	}

	if saveErr := s.operationRepo.Create(context.WithoutCancel(ctx), operation); saveErr != nil {
		s.logger.Error("Failed to record operation",
			zap.String("operation_id", operation.ID.String()),
			zap.Error(saveErr),
		)
	}

	s.publish(operation)
	return err
}

func (s *OperationService) publish(operation *model.Operation) {
	eventType := model.EventOperationCompleted
	severity := model.SeverityInfo
	if operation.Status != model.OperationStatusSuccess {
		eventType = model.EventOperationFailed
		severity = model.SeverityWarning
	}

	s.events.Publish(model.NewDeviceEvent(eventType, operation.Port, severity, &model.OperationEventData{
		OperationID:   operation.ID,
		OperationType: operation.OperationType,
		Status:        operation.Status,
		Duration:      operation.DurationMs,
		ErrorMessage:  operation.ErrorMessage,
	}))
}

// GetOperation retrieves operation details
func (s *OperationService) GetOperation(ctx context.Context, operationID uuid.UUID) (*model.Operation, error) {
	operation, err := s.operationRepo.GetByID(ctx, operationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get operation: %w", err)
	}
	return operation, nil
}

// ListOperations lists operations with filtering
func (s *OperationService) ListOperations(ctx context.Context, filter *model.OperationFilter) ([]*model.Operation, *PaginationResult, error) {
	filter.Normalize()

	operations, total, err := s.operationRepo.List(ctx, filter)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list operations: %w", err)
	}

	pagination := &PaginationResult{
		Total:      total,
		Page:       filter.Page,
		PerPage:    filter.PerPage,
		TotalPages: (total + filter.PerPage - 1) / filter.PerPage,
	}
	return operations, pagination, nil
}

// CleanupOperations deletes operations created before olderThan
func (s *OperationService) CleanupOperations(ctx context.Context, olderThan time.Time) (int64, error) {
	deleted, err := s.operationRepo.DeleteOlderThan(ctx, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up operations: %w", err)
	}
	return deleted, nil
}

// PaginationResult represents pagination information
type PaginationResult struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalPages int `json:"total_pages"`
}
