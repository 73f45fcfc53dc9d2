package dlq

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/costwatch/costwatch/internal/config"
	"github.com/costwatch/costwatch/internal/models"
	"github.com/costwatch/costwatch/pkg/logger"
)

// Handler re-processes the payload of a DLQ item. A nil return transitions
// the item to succeeded.
type Handler func(ctx context.Context, item *models.DlqItem) error

var (
	// ErrItemNotFound means no DLQ item exists with the given id.
	ErrItemNotFound = errors.New("dlq item not found")
	// ErrNotRetryable means the item's status forbids a manual retry.
	ErrNotRetryable = errors.New("only failed or expired items can be retried")
)

const claimBatchSize = 50

// Processor periodically retries due DLQ items.
type Processor struct {
	store      Store
	backoff    Backoff
	maxRetries int
	ttl        time.Duration
	interval   time.Duration

	handlers map[string]Handler

	sched   *cron.Cron
	entryID cron.EntryID
}

func NewProcessor(store Store, cfg *config.DLQConfig) *Processor {
	return &Processor{
		store:      store,
		backoff:    BackoffFromConfig(&cfg.Backoff),
		maxRetries: cfg.MaxRetries,
		ttl:        cfg.TTL,
		interval:   cfg.ProcessInterval,
		handlers:   make(map[string]Handler),
	}
}

// RegisterHandler binds a handler to an item type.
func (p *Processor) RegisterHandler(itemType string, h Handler) {
	p.handlers[itemType] = h
}

// Submit enqueues a failed operation. Non-retryable reasons (validation,
// authorization) go straight to failed. Retryable items are scheduled for
// their first retry per the backoff strategy. The original failure counts
// as attempt one; retries are attempts two onward.
func (p *Processor) Submit(ctx context.Context, item *models.DlqItem) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	now := time.Now().UTC()
	item.MaxRetries = p.maxRetries
	item.AttemptCount = 1
	expires := now.Add(p.ttl)
	item.ExpiresAt = &expires

	if !models.DlqReasonRetryable(item.FailureReason) {
		item.Status = models.DlqStatusFailed
		logger.Warn().
			Str("item_id", item.ID.String()).
			Str("reason", item.FailureReason).
			Msg("non-retryable failure, dead-lettered permanently")
		return p.store.Enqueue(ctx, item)
	}

	item.Status = models.DlqStatusPending
	next := now.Add(p.backoff.Delay(0))
	item.NextRetryAt = &next
	return p.store.Enqueue(ctx, item)
}

// Start schedules the processing loop on a cron ticker.
func (p *Processor) Start() error {
	p.sched = cron.New(cron.WithSeconds())
	spec := fmt.Sprintf("@every %s", p.interval)
	id, err := p.sched.AddFunc(spec, func() {
		if err := p.ProcessDue(context.Background()); err != nil {
			logger.Error().Err(err).Msg("dlq processing pass failed")
		}
	})
	if err != nil {
		return err
	}
	p.entryID = id
	p.sched.Start()
	logger.Infof("[DLQ] Processor started, interval: %v, max retries: %d", p.interval, p.maxRetries)
	return nil
}

// Stop halts the processing loop.
func (p *Processor) Stop() {
	if p.sched != nil {
		p.sched.Stop()
	}
}

// ProcessDue runs one pass: claim due items, re-invoke their handlers and
// transition them through the status graph.
func (p *Processor) ProcessDue(ctx context.Context) error {
	now := time.Now().UTC()
	items, err := p.store.ClaimDue(ctx, now, claimBatchSize)
	if err != nil {
		return fmt.Errorf("claim due items: %w", err)
	}
	if len(items) == 0 {
		return nil
	}

	logger.Infof("[DLQ] Processing %d due items", len(items))
	for i := range items {
		p.processOne(ctx, &items[i])
	}
	return nil
}

func (p *Processor) processOne(ctx context.Context, item *models.DlqItem) {
	now := time.Now().UTC()

	// Expiry by age applies before the attempt is made.
	if item.ExpiresAt != nil && now.After(*item.ExpiresAt) {
		item.Status = models.DlqStatusExpired
		item.NextRetryAt = nil
		p.saveTransition(ctx, item, "expired (ttl)")
		return
	}

	handler, ok := p.handlers[item.ItemType]
	if !ok {
		item.Status = models.DlqStatusFailed
		item.ErrorMessage = "no handler registered for item type " + item.ItemType
		p.saveTransition(ctx, item, "failed (no handler)")
		return
	}

	item.AttemptCount++
	err := handler(ctx, item)
	p.recordAttempt(item, now, err)

	if err == nil {
		item.Status = models.DlqStatusSucceeded
		item.ProcessedAt = &now
		item.NextRetryAt = nil
		p.saveTransition(ctx, item, "succeeded")
		return
	}

	item.ErrorMessage = err.Error()
	if item.AttemptCount > item.MaxRetries {
		item.Status = models.DlqStatusExpired
		item.NextRetryAt = nil
		p.saveTransition(ctx, item, "expired (max retries)")
		return
	}

	item.Status = models.DlqStatusPending
	next := now.Add(p.backoff.Delay(item.AttemptCount - 1))
	item.NextRetryAt = &next
	p.saveTransition(ctx, item, "rescheduled")
}

// RetryNow resets a failed or expired item for an immediate attempt.
func (p *Processor) RetryNow(ctx context.Context, id uuid.UUID) error {
	item, err := p.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrItemNotFound
		}
		return err
	}
	switch item.Status {
	case models.DlqStatusFailed, models.DlqStatusExpired:
	default:
		return fmt.Errorf("%w: item %s is %s", ErrNotRetryable, id, item.Status)
	}

	now := time.Now().UTC()
	item.Status = models.DlqStatusPending
	item.AttemptCount = 1
	item.NextRetryAt = &now
	expires := now.Add(p.ttl)
	item.ExpiresAt = &expires
	return p.store.Update(ctx, item)
}

func (p *Processor) recordAttempt(item *models.DlqItem, at time.Time, err error) {
	if item.RetryHistory == nil {
		item.RetryHistory = models.JSONMap{}
	}
	attempts, _ := item.RetryHistory["attempts"].([]interface{})
	entry := map[string]interface{}{
		"attempted_at": at.Format(time.RFC3339),
		"succeeded":    err == nil,
	}
	if err != nil {
		entry["error"] = err.Error()
	}
	item.RetryHistory["attempts"] = append(attempts, entry)
}

func (p *Processor) saveTransition(ctx context.Context, item *models.DlqItem, outcome string) {
	if err := p.store.Update(ctx, item); err != nil {
		logger.Error().Err(err).Str("item_id", item.ID.String()).Msg("failed to persist dlq transition")
		return
	}
	logger.Debug().
		Str("item_id", item.ID.String()).
		Int("attempts", item.AttemptCount).
		Str("outcome", outcome).
		Msg("dlq item transition")
}
