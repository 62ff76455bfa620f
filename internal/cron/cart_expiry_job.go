package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lumehaus/liveshop-backend/internal/bags"
	"github.com/lumehaus/liveshop-backend/pkg/db/models"
	"github.com/lumehaus/liveshop-backend/pkg/enums"
	"github.com/lumehaus/liveshop-backend/pkg/logger"
	"github.com/lumehaus/liveshop-backend/pkg/outbox"
	"github.com/lumehaus/liveshop-backend/pkg/outbox/payloads"
)

const cartExpirationDays = 7

// CartExpiryJobParams configure the stale checkout scheduler.
type CartExpiryJobParams struct {
	Logger                   *logger.Logger
	DB                       txRunner
	StaleReader              staleCartReader
	Outbox                   outboxEmitter
	Retention                int
	TransactionalRepoFactory cartRepoFactory
}

type staleCartReader interface {
	ListStaleAwaitingPayment(ctx context.Context, cutoff time.Time) ([]models.Cart, error)
}

type transactionalCartRepo interface {
	FindCartForUpdate(ctx context.Context, cartID uuid.UUID) (*models.Cart, error)
	UpdateCart(ctx context.Context, cartID uuid.UUID, updates map[string]any) error
}

type cartRepoFactory func(tx *gorm.DB) transactionalCartRepo

func defaultCartRepo(tx *gorm.DB) transactionalCartRepo {
	return bags.NewRepository(tx)
}

// NewCartExpiryJob builds the cron job that expires carts stuck in checkout.
func NewCartExpiryJob(params CartExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.StaleReader == nil {
		return nil, fmt.Errorf("stale cart reader required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = cartExpirationDays
	}
	repoFactory := params.TransactionalRepoFactory
	if repoFactory == nil {
		repoFactory = defaultCartRepo
	}
	return &cartExpiryJob{
		logg:        params.Logger,
		db:          params.DB,
		staleReader: params.StaleReader,
		outbox:      params.Outbox,
		retention:   retention,
		repoFactory: repoFactory,
		now:         time.Now,
	}, nil
}

type cartExpiryJob struct {
	logg        *logger.Logger
	db          txRunner
	staleReader staleCartReader
	outbox      outboxEmitter
	retention   int
	repoFactory cartRepoFactory
	now         func() time.Time
}

func (j *cartExpiryJob) Name() string { return "cart-expiry" }

func (j *cartExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-time.Duration(j.retention) * 24 * time.Hour)
	carts, err := j.staleReader.ListStaleAwaitingPayment(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("query stale carts: %w", err)
	}
	count := 0
	for _, cart := range carts {
		if err := j.expireCart(ctx, cart); err != nil {
			return err
		}
		count++
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff": cutoff,
		"count":  count,
	})
	j.logg.Info(logCtx, "cart expiry loop complete")
	return nil
}

func (j *cartExpiryJob) expireCart(ctx context.Context, cart models.Cart) error {
	return j.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := j.repoFactory(tx)
		current, err := repo.FindCartForUpdate(ctx, cart.ID)
		if err != nil {
			return err
		}
		if current.Status != enums.CartStatusAwaitingPayment {
			return nil
		}
		now := j.now().UTC()
		if err := repo.UpdateCart(ctx, cart.ID, map[string]any{
			"status": enums.CartStatusExpired,
		}); err != nil {
			return err
		}
		event := outbox.DomainEvent{
			EventType:     enums.EventCartExpired,
			AggregateType: enums.AggregateCart,
			AggregateID:   cart.ID,
			Version:       1,
			OccurredAt:    now,
			Data: payloads.CartExpiredEvent{
				CartID:      cart.ID,
				LiveEventID: cart.LiveEventID,
				ExpiredAt:   now,
			},
		}
		return j.outbox.Emit(ctx, tx, event)
	})
}
