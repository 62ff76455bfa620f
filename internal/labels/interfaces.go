package labels

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lumehaus/liveshop-backend/internal/changefeed"
	"github.com/lumehaus/liveshop-backend/pkg/db/models"
	"github.com/lumehaus/liveshop-backend/pkg/outbox"
)

// Repository defines persistence operations for label printing.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindBagForUpdate(ctx context.Context, cartID uuid.UUID) (*models.Cart, error)
	CountUnresolvedAttention(ctx context.Context, cartID uuid.UUID) (int64, error)
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
