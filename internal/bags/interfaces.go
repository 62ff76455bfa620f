package bags

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lumehaus/liveshop-backend/internal/changefeed"
	"github.com/lumehaus/liveshop-backend/pkg/db/models"
	"github.com/lumehaus/liveshop-backend/pkg/enums"
	"github.com/lumehaus/liveshop-backend/pkg/outbox"
)

// Repository defines persistence operations for bag assignment and views.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindLiveEvent(ctx context.Context, eventID uuid.UUID) (*models.LiveEvent, error)
	ListLiveEventsByStatus(ctx context.Context, status enums.LiveEventStatus) ([]models.LiveEvent, error)
	FindLiveEventForUpdate(ctx context.Context, eventID uuid.UUID) (*models.LiveEvent, error)
	MaxBagNumber(ctx context.Context, eventID uuid.UUID) (int, error)
	ListUnnumberedActiveCarts(ctx context.Context, eventID uuid.UUID) ([]models.Cart, error)
	ListBags(ctx context.Context, eventID uuid.UUID) ([]models.Cart, error)
	ListStaleAwaitingPayment(ctx context.Context, cutoff time.Time) ([]models.Cart, error)
	FindBag(ctx context.Context, cartID uuid.UUID) (*models.Cart, error)
	FindCartForUpdate(ctx context.Context, cartID uuid.UUID) (*models.Cart, error)
	UpdateCart(ctx context.Context, cartID uuid.UUID, updates map[string]any) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type changeNotifier interface {
	Notify(ctx context.Context, change changefeed.Change)
}
