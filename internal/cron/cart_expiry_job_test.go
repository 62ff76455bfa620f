package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lumehaus/liveshop-backend/pkg/db/models"
	"github.com/lumehaus/liveshop-backend/pkg/enums"
	"github.com/lumehaus/liveshop-backend/pkg/logger"
	"github.com/lumehaus/liveshop-backend/pkg/outbox"
)

func TestCartExpiryJobExpiresStaleCarts(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	stale := models.Cart{
		ID:          uuid.New(),
		LiveEventID: uuid.New(),
		Status:      enums.CartStatusAwaitingPayment,
	}
	repo := &fakeCartExpiryRepo{carts: map[uuid.UUID]*models.Cart{stale.ID: &stale}}
	emitter := &fakeCartEmitter{}
	job := newCartExpiryJob(t, repo, []models.Cart{stale}, emitter)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	updates, ok := repo.updates[stale.ID]
	if !ok {
		t.Fatalf("expected stale cart updated")
	}
	if updates["status"] != enums.CartStatusExpired {
		t.Fatalf("expected status expired, got %v", updates["status"])
	}
	if len(emitter.events) != 1 {
		t.Fatalf("expected one event, got %d", len(emitter.events))
	}
	event := emitter.events[0]
	if event.EventType != enums.EventCartExpired {
		t.Fatalf("unexpected event type %s", event.EventType)
	}
	if event.AggregateID != stale.ID {
		t.Fatalf("event aggregate mismatch")
	}
}

func TestCartExpiryJobSkipsCartPaidMeanwhile(t *testing.T) {
	paid := models.Cart{
		ID:          uuid.New(),
		LiveEventID: uuid.New(),
		Status:      enums.CartStatusPaid,
	}
	repo := &fakeCartExpiryRepo{carts: map[uuid.UUID]*models.Cart{paid.ID: &paid}}
	emitter := &fakeCartEmitter{}
	listed := paid
	listed.Status = enums.CartStatusAwaitingPayment
	job := newCartExpiryJob(t, repo, []models.Cart{listed}, emitter)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(repo.updates) != 0 {
		t.Fatalf("cart paid after listing must not be touched")
	}
	if len(emitter.events) != 0 {
		t.Fatalf("no event expected, got %d", len(emitter.events))
	}
}

func TestCartExpiryJobPropagatesReaderError(t *testing.T) {
	repo := &fakeCartExpiryRepo{listErr: errors.New("boom")}
	job := newCartExpiryJob(t, repo, nil, &fakeCartEmitter{})

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func newCartExpiryJob(t *testing.T, repo *fakeCartExpiryRepo, stale []models.Cart, emitter *fakeCartEmitter) *cartExpiryJob {
	t.Helper()
	repo.stale = stale
	jobIface, err := NewCartExpiryJob(CartExpiryJobParams{
		Logger:      logger.New(logger.Options{ServiceName: "test"}),
		DB:          cartExpiryTxRunner{},
		StaleReader: repo,
		Outbox:      emitter,
		TransactionalRepoFactory: func(tx *gorm.DB) transactionalCartRepo {
			return repo
		},
	})
	if err != nil {
		t.Fatalf("NewCartExpiryJob: %v", err)
	}
	job, ok := jobIface.(*cartExpiryJob)
	if !ok {
		t.Fatalf("expected cartExpiryJob, got %T", jobIface)
	}
	return job
}

type fakeCartExpiryRepo struct {
	stale   []models.Cart
	carts   map[uuid.UUID]*models.Cart
	updates map[uuid.UUID]map[string]any
	listErr error
}

func (f *fakeCartExpiryRepo) ListStaleAwaitingPayment(ctx context.Context, cutoff time.Time) ([]models.Cart, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.stale, nil
}

func (f *fakeCartExpiryRepo) FindCartForUpdate(ctx context.Context, cartID uuid.UUID) (*models.Cart, error) {
	cart, ok := f.carts[cartID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return cart, nil
}

func (f *fakeCartExpiryRepo) UpdateCart(ctx context.Context, cartID uuid.UUID, updates map[string]any) error {
	if f.updates == nil {
		f.updates = make(map[uuid.UUID]map[string]any)
	}
	f.updates[cartID] = updates
	return nil
}

type fakeCartEmitter struct {
	events []outbox.DomainEvent
}

func (f *fakeCartEmitter) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	f.events = append(f.events, event)
	return nil
}

type cartExpiryTxRunner struct{}

func (cartExpiryTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}
