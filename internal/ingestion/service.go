package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/costwatch/costwatch/internal/costengine"
	"github.com/costwatch/costwatch/internal/dlq"
	"github.com/costwatch/costwatch/internal/models"
	"github.com/costwatch/costwatch/internal/pricing"
	"github.com/costwatch/costwatch/pkg/logger"
)

// DLQ item types handled by this package.
const (
	DlqItemUsagePersist = "usage_persist"
	DlqItemUsageCost    = "usage_cost"
)

// ErrBatchSize is returned for empty or oversized batches.
var ErrBatchSize = fmt.Errorf("batch must contain between 1 and %d records", MaxBatchSize)

// Service drives the ingestion pipeline: validate, store, then cost.
// Rate limiting happens upstream in the HTTP layer; throttled requests
// never reach this service and never enter the DLQ.
type Service struct {
	db         *gorm.DB
	validator  *Validator
	catalog    *pricing.Catalog
	calc       *costengine.Calculator
	normalizer *costengine.Normalizer
	queue      TaskQueue
	dlqProc    *dlq.Processor
}

func NewService(db *gorm.DB, catalog *pricing.Catalog, queue TaskQueue, dlqProc *dlq.Processor) *Service {
	s := &Service{
		db:         db,
		validator:  NewValidator(),
		catalog:    catalog,
		calc:       costengine.NewCalculator(),
		normalizer: costengine.NewNormalizer(),
		queue:      queue,
		dlqProc:    dlqProc,
	}
	if dlqProc != nil {
		dlqProc.RegisterHandler(DlqItemUsagePersist, s.handleDlqPersist)
		dlqProc.RegisterHandler(DlqItemUsageCost, s.handleDlqCost)
	}
	return s
}

// HandleSingle processes one payload end to end and reports the outcome.
func (s *Service) HandleSingle(ctx context.Context, payload *UsageWebhookPayload) *IngestionResponse {
	resp := &IngestionResponse{RequestID: payload.RequestID}

	if errs := s.validator.Validate(payload); len(errs) > 0 {
		resp.Status = StatusFailed
		resp.Rejected = 1
		for _, fe := range errs {
			resp.Errors = append(resp.Errors, IngestError{
				Field:   fe.Field,
				Code:    "VALIDATION_ERROR",
				Message: fe.Message,
			})
		}
		return resp
	}

	if payload.RequestID == "" {
		payload.RequestID = uuid.NewString()
	}
	resp.RequestID = payload.RequestID

	if err := s.store(ctx, payload); err != nil {
		// Validation never reaches here, so any failure is a storage
		// problem. Transient ones are parked in the DLQ for retry.
		s.parkInDlq(ctx, payload, err)
		resp.Status = StatusFailed
		resp.Rejected = 1
		resp.Errors = append(resp.Errors, IngestError{
			Code:    "STORAGE_UNAVAILABLE",
			Message: "record could not be stored and was queued for retry",
		})
		return resp
	}

	resp.Status = StatusSuccess
	resp.Accepted = 1
	return resp
}

// HandleBatch processes each payload independently and aggregates the
// outcome. Partial success is normal.
func (s *Service) HandleBatch(ctx context.Context, req *BatchIngestionRequest) (*IngestionResponse, error) {
	if len(req.Records) == 0 || len(req.Records) > MaxBatchSize {
		return nil, ErrBatchSize
	}

	resp := &IngestionResponse{}
	for i := range req.Records {
		single := s.HandleSingle(ctx, &req.Records[i])
		resp.Accepted += single.Accepted
		resp.Rejected += single.Rejected
		for _, e := range single.Errors {
			e.Index = i
			resp.Errors = append(resp.Errors, e)
		}
	}

	switch {
	case resp.Rejected == 0:
		resp.Status = StatusSuccess
	case resp.Accepted == 0:
		resp.Status = StatusFailed
	default:
		resp.Status = StatusPartial
	}
	return resp, nil
}

// store persists the usage record idempotently and schedules costing.
// A duplicate (tenant_id, request_id) is a no-op, not an error.
func (s *Service) store(ctx context.Context, payload *UsageWebhookPayload) error {
	record := payload.toRecord(time.Now().UTC())
	record.ID = uuid.New()

	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "request_id"}, {Name: "tenant_id"}},
		DoNothing: true,
	}).Create(record)
	if res.Error != nil {
		return fmt.Errorf("store usage record: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// Duplicate submission; the original record and its cost stand.
		logger.Debug().Str("tenant_id", record.TenantID).Str("request_id", record.RequestID).
			Msg("duplicate usage record ignored")
		return nil
	}

	task := &CostTask{
		UsageRecordID: record.ID.String(),
		TenantID:      record.TenantID,
		RequestID:     record.RequestID,
	}
	if err := s.queue.Enqueue(task); err != nil {
		logger.Error().Err(err).Str("usage_record_id", task.UsageRecordID).Msg("failed to enqueue cost task")
		// The usage record is durable; costing will be repaired by the DLQ.
		s.parkInDlq(ctx, payload, err)
	}
	return nil
}

// ProcessCost prices one stored usage record. Wired as the task queue
// processor. Safe to run more than once per record. A record with no
// applicable pricing is parked in the DLQ so costing is repaired once the
// catalog catches up.
func (s *Service) ProcessCost(ctx context.Context, task *CostTask) error {
	err := s.costRecord(ctx, task)
	if errors.Is(err, pricing.ErrPricingNotFound) {
		logger.Warn().Err(err).
			Str("usage_record_id", task.UsageRecordID).
			Msg("no pricing for usage record, costing parked for retry")
		s.parkCostInDlq(ctx, task, err)
		return nil
	}
	return err
}

// costRecord loads, normalizes and prices one usage record. Pricing-gap
// failures surface as pricing.ErrPricingNotFound for the caller to park.
func (s *Service) costRecord(ctx context.Context, task *CostTask) error {
	id, err := uuid.Parse(task.UsageRecordID)
	if err != nil {
		return fmt.Errorf("invalid usage record id %q: %w", task.UsageRecordID, err)
	}

	var usage models.UsageRecord
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&usage).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("usage record %s not found", task.UsageRecordID)
		}
		return fmt.Errorf("load usage record: %w", err)
	}

	normalized := s.normalizer.Normalize(&usage)
	if !s.normalizer.ValidateConsistency(normalized) {
		return fmt.Errorf("usage record %s has inconsistent token counts: %d + %d != %d",
			task.UsageRecordID, normalized.PromptTokens, normalized.CompletionTokens, normalized.TotalTokens)
	}

	table, err := s.catalog.Resolve(normalized.Provider, normalized.Model, normalized.Timestamp, "")
	if err != nil {
		return fmt.Errorf("resolve pricing: %w", err)
	}

	cost, err := s.calc.Calculate(normalized, table)
	if err != nil {
		return fmt.Errorf("calculate cost: %w", err)
	}
	cost.ID = uuid.New()

	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "usage_record_id"}},
		DoNothing: true,
	}).Create(cost)
	if res.Error != nil {
		return fmt.Errorf("store cost record: %w", res.Error)
	}
	return nil
}

// parkInDlq converts a transient failure into a DLQ item carrying the
// original payload.
func (s *Service) parkInDlq(ctx context.Context, payload *UsageWebhookPayload, cause error) {
	if s.dlqProc == nil {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		logger.Error().Err(err).Msg("failed to serialize payload for dlq")
		return
	}
	item := &models.DlqItem{
		TenantID:      payload.TenantID,
		Payload:       string(raw),
		ItemType:      DlqItemUsagePersist,
		Source:        payload.Source,
		CorrelationID: payload.RequestID,
		FailureReason: models.DlqReasonStorage,
		ErrorMessage:  cause.Error(),
	}
	if err := s.dlqProc.Submit(ctx, item); err != nil {
		logger.Error().Err(err).Str("request_id", payload.RequestID).Msg("failed to submit dlq item")
	}
}

// parkCostInDlq records a costing gap as a retryable DLQ item carrying the
// cost task. Retries fail until pricing for the model is added, then the
// replay prices the record.
func (s *Service) parkCostInDlq(ctx context.Context, task *CostTask, cause error) {
	if s.dlqProc == nil {
		return
	}
	raw, err := json.Marshal(task)
	if err != nil {
		logger.Error().Err(err).Msg("failed to serialize cost task for dlq")
		return
	}
	item := &models.DlqItem{
		TenantID:      task.TenantID,
		Payload:       string(raw),
		ItemType:      DlqItemUsageCost,
		Source:        models.SourceAPI,
		CorrelationID: task.RequestID,
		FailureReason: models.DlqReasonDownstream,
		ErrorMessage:  cause.Error(),
	}
	if err := s.dlqProc.Submit(ctx, item); err != nil {
		logger.Error().Err(err).Str("usage_record_id", task.UsageRecordID).Msg("failed to submit dlq item")
	}
}

// handleDlqPersist replays a parked payload through the store path.
func (s *Service) handleDlqPersist(ctx context.Context, item *models.DlqItem) error {
	var payload UsageWebhookPayload
	if err := json.Unmarshal([]byte(item.Payload), &payload); err != nil {
		return fmt.Errorf("corrupt dlq payload: %w", err)
	}
	return s.store(ctx, &payload)
}

// handleDlqCost replays a parked cost task. Goes through costRecord, not
// ProcessCost, so a still-missing price fails the attempt and stays on the
// item's own retry schedule instead of parking a second item.
func (s *Service) handleDlqCost(ctx context.Context, item *models.DlqItem) error {
	var task CostTask
	if err := json.Unmarshal([]byte(item.Payload), &task); err != nil {
		return fmt.Errorf("corrupt dlq payload: %w", err)
	}
	return s.costRecord(ctx, &task)
}
