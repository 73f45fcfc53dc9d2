package dlq

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/costwatch/costwatch/internal/config"
	"github.com/costwatch/costwatch/internal/models"
)

// memStore is an in-memory Store for processor tests.
type memStore struct {
	mu    sync.Mutex
	items map[uuid.UUID]*models.DlqItem
}

func newMemStore() *memStore {
	return &memStore{items: make(map[uuid.UUID]*models.DlqItem)}
}

func (s *memStore) Enqueue(_ context.Context, item *models.DlqItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *item
	s.items[item.ID] = &cp
	return nil
}

func (s *memStore) ClaimDue(_ context.Context, now time.Time, limit int) ([]models.DlqItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []models.DlqItem
	for _, item := range s.items {
		if len(due) >= limit {
			break
		}
		if item.Status == models.DlqStatusPending && item.NextRetryAt != nil && !item.NextRetryAt.After(now) {
			item.Status = models.DlqStatusInFlight
			due = append(due, *item)
		}
	}
	return due, nil
}

func (s *memStore) Update(_ context.Context, item *models.DlqItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *item
	s.items[item.ID] = &cp
	return nil
}

func (s *memStore) Get(_ context.Context, id uuid.UUID) (*models.DlqItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *item
	return &cp, nil
}

func (s *memStore) List(_ context.Context, tenant, status string, offset, limit int) ([]models.DlqItem, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.DlqItem
	for _, item := range s.items {
		if tenant != "" && item.TenantID != tenant {
			continue
		}
		if status != "" && item.Status != status {
			continue
		}
		out = append(out, *item)
	}
	return out, int64(len(out)), nil
}

func (s *memStore) get(t *testing.T, id uuid.UUID) *models.DlqItem {
	t.Helper()
	item, err := s.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get(%s): %v", id, err)
	}
	return item
}

func testConfig() *config.DLQConfig {
	return &config.DLQConfig{
		MaxRetries:      3,
		TTL:             time.Hour,
		ProcessInterval: time.Second,
		Backoff: config.BackoffConfig{
			Strategy:   "exponential",
			Base:       100 * time.Millisecond,
			Multiplier: 2,
		},
	}
}

func storageItem() *models.DlqItem {
	return &models.DlqItem{
		ID:            uuid.New(),
		TenantID:      "acme",
		Payload:       `{"tenant_id":"acme"}`,
		ItemType:      "usage_persist",
		FailureReason: models.DlqReasonStorage,
	}
}

func TestSubmitRetryableSchedulesFirstRetry(t *testing.T) {
	store := newMemStore()
	p := NewProcessor(store, testConfig())

	item := storageItem()
	before := time.Now().UTC()
	if err := p.Submit(context.Background(), item); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	got := store.get(t, item.ID)
	if got.Status != models.DlqStatusPending {
		t.Errorf("Status = %s, expected pending", got.Status)
	}
	if got.AttemptCount != 1 {
		t.Errorf("AttemptCount = %d, the original failure counts as attempt one", got.AttemptCount)
	}
	if got.NextRetryAt == nil {
		t.Fatal("NextRetryAt should be set")
	}
	// First retry delay is backoff.Delay(0) = 100ms.
	wantEarliest := before.Add(100 * time.Millisecond)
	if got.NextRetryAt.Before(wantEarliest.Add(-50 * time.Millisecond)) {
		t.Errorf("NextRetryAt = %s, expected about %s", got.NextRetryAt, wantEarliest)
	}
	if got.ExpiresAt == nil {
		t.Error("ExpiresAt should be set from the TTL")
	}
}

func TestSubmitNonRetryableFailsImmediately(t *testing.T) {
	store := newMemStore()
	p := NewProcessor(store, testConfig())

	item := storageItem()
	item.FailureReason = models.DlqReasonValidation
	if err := p.Submit(context.Background(), item); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	got := store.get(t, item.ID)
	if got.Status != models.DlqStatusFailed {
		t.Errorf("Status = %s, validation failures must not be retried", got.Status)
	}
	if got.NextRetryAt != nil {
		t.Error("failed items must not carry a retry schedule")
	}
}

func TestProcessDueSucceedsAndStops(t *testing.T) {
	store := newMemStore()
	p := NewProcessor(store, testConfig())
	calls := 0
	p.RegisterHandler("usage_persist", func(context.Context, *models.DlqItem) error {
		calls++
		return nil
	})

	item := storageItem()
	past := time.Now().UTC().Add(-time.Second)
	item.Status = models.DlqStatusPending
	item.AttemptCount = 1
	item.MaxRetries = 3
	item.NextRetryAt = &past
	if err := store.Enqueue(context.Background(), item); err != nil {
		t.Fatal(err)
	}

	if err := p.ProcessDue(context.Background()); err != nil {
		t.Fatalf("ProcessDue() error = %v", err)
	}
	if calls != 1 {
		t.Fatalf("handler called %d times, expected 1", calls)
	}

	got := store.get(t, item.ID)
	if got.Status != models.DlqStatusSucceeded {
		t.Errorf("Status = %s, expected succeeded", got.Status)
	}
	if got.AttemptCount != 2 {
		t.Errorf("AttemptCount = %d, expected 2", got.AttemptCount)
	}
	if got.ProcessedAt == nil {
		t.Error("ProcessedAt should be set on success")
	}

	// Nothing left to claim.
	if err := p.ProcessDue(context.Background()); err != nil {
		t.Fatalf("ProcessDue() error = %v", err)
	}
	if calls != 1 {
		t.Errorf("succeeded item was claimed again, handler called %d times", calls)
	}
}

func TestProcessDueExhaustsRetriesThenExpires(t *testing.T) {
	store := newMemStore()
	p := NewProcessor(store, testConfig())
	handlerErr := errors.New("still down")
	p.RegisterHandler("usage_persist", func(context.Context, *models.DlqItem) error {
		return handlerErr
	})

	item := storageItem()
	if err := p.Submit(context.Background(), item); err != nil {
		t.Fatal(err)
	}

	// Attempts 2..4 all fail. Attempt 4 exceeds max_retries 3 and expires
	// the item.
	for attempt := 2; attempt <= 4; attempt++ {
		forceDue(t, store, item.ID)
		if err := p.ProcessDue(context.Background()); err != nil {
			t.Fatalf("ProcessDue() error = %v", err)
		}
		got := store.get(t, item.ID)
		if got.AttemptCount != attempt {
			t.Fatalf("AttemptCount = %d, expected %d", got.AttemptCount, attempt)
		}
		if attempt <= 3 {
			if got.Status != models.DlqStatusPending {
				t.Fatalf("after attempt %d: Status = %s, expected pending", attempt, got.Status)
			}
			if got.NextRetryAt == nil {
				t.Fatalf("after attempt %d: NextRetryAt should be rescheduled", attempt)
			}
		}
	}

	got := store.get(t, item.ID)
	if got.Status != models.DlqStatusExpired {
		t.Errorf("Status = %s, expected expired after exhausting retries", got.Status)
	}
	if got.NextRetryAt != nil {
		t.Error("expired items must not carry a retry schedule")
	}
	if got.ErrorMessage != handlerErr.Error() {
		t.Errorf("ErrorMessage = %q, expected %q", got.ErrorMessage, handlerErr.Error())
	}
}

func TestProcessDueExpiresByTTL(t *testing.T) {
	store := newMemStore()
	p := NewProcessor(store, testConfig())
	p.RegisterHandler("usage_persist", func(context.Context, *models.DlqItem) error {
		t.Fatal("handler must not run for ttl-expired items")
		return nil
	})

	item := storageItem()
	past := time.Now().UTC().Add(-time.Second)
	expired := time.Now().UTC().Add(-time.Minute)
	item.Status = models.DlqStatusPending
	item.AttemptCount = 1
	item.MaxRetries = 3
	item.NextRetryAt = &past
	item.ExpiresAt = &expired
	if err := store.Enqueue(context.Background(), item); err != nil {
		t.Fatal(err)
	}

	if err := p.ProcessDue(context.Background()); err != nil {
		t.Fatalf("ProcessDue() error = %v", err)
	}
	got := store.get(t, item.ID)
	if got.Status != models.DlqStatusExpired {
		t.Errorf("Status = %s, expected expired", got.Status)
	}
}

func TestProcessDueNoHandler(t *testing.T) {
	store := newMemStore()
	p := NewProcessor(store, testConfig())

	item := storageItem()
	item.ItemType = "unknown_type"
	past := time.Now().UTC().Add(-time.Second)
	item.Status = models.DlqStatusPending
	item.NextRetryAt = &past
	if err := store.Enqueue(context.Background(), item); err != nil {
		t.Fatal(err)
	}

	if err := p.ProcessDue(context.Background()); err != nil {
		t.Fatalf("ProcessDue() error = %v", err)
	}
	got := store.get(t, item.ID)
	if got.Status != models.DlqStatusFailed {
		t.Errorf("Status = %s, expected failed when no handler is registered", got.Status)
	}
}

func TestRetryNow(t *testing.T) {
	store := newMemStore()
	p := NewProcessor(store, testConfig())

	item := storageItem()
	item.Status = models.DlqStatusExpired
	item.AttemptCount = 4
	if err := store.Enqueue(context.Background(), item); err != nil {
		t.Fatal(err)
	}

	if err := p.RetryNow(context.Background(), item.ID); err != nil {
		t.Fatalf("RetryNow() error = %v", err)
	}
	got := store.get(t, item.ID)
	if got.Status != models.DlqStatusPending {
		t.Errorf("Status = %s, expected pending", got.Status)
	}
	if got.AttemptCount != 1 {
		t.Errorf("AttemptCount = %d, manual retry resets the budget", got.AttemptCount)
	}
	if got.NextRetryAt == nil {
		t.Error("NextRetryAt should be set for an immediate attempt")
	}
}

func TestRetryNowRejectsWrongStatus(t *testing.T) {
	store := newMemStore()
	p := NewProcessor(store, testConfig())

	item := storageItem()
	item.Status = models.DlqStatusSucceeded
	if err := store.Enqueue(context.Background(), item); err != nil {
		t.Fatal(err)
	}

	err := p.RetryNow(context.Background(), item.ID)
	if !errors.Is(err, ErrNotRetryable) {
		t.Errorf("error = %v, expected ErrNotRetryable", err)
	}
}

func TestRetryNowUnknownItem(t *testing.T) {
	p := NewProcessor(newMemStore(), testConfig())
	err := p.RetryNow(context.Background(), uuid.New())
	if !errors.Is(err, ErrItemNotFound) {
		t.Errorf("error = %v, expected ErrItemNotFound", err)
	}
}

// forceDue rewinds an item's retry schedule so the next pass claims it.
func forceDue(t *testing.T, store *memStore, id uuid.UUID) {
	t.Helper()
	item := store.get(t, id)
	if item.Status != models.DlqStatusPending {
		return
	}
	past := time.Now().UTC().Add(-time.Second)
	item.NextRetryAt = &past
	if err := store.Update(context.Background(), item); err != nil {
		t.Fatal(err)
	}
}
