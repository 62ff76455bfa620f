package separation

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lumehaus/liveshop-backend/internal/changefeed"
	"github.com/lumehaus/liveshop-backend/pkg/db/models"
	"github.com/lumehaus/liveshop-backend/pkg/outbox"
)

// Repository defines persistence operations for the separation workflow.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindCart(ctx context.Context, cartID uuid.UUID) (*models.Cart, error)
	FindCartForUpdate(ctx context.Context, cartID uuid.UUID) (*models.Cart, error)
	FindItem(ctx context.Context, itemID uuid.UUID) (*models.CartItem, error)
	FindItemForUpdate(ctx context.Context, itemID uuid.UUID) (*models.CartItem, error)
	ListItems(ctx context.Context, cartID uuid.UUID) ([]models.CartItem, error)
	CreateItem(ctx context.Context, item *models.CartItem) error
	UpdateItem(ctx context.Context, itemID uuid.UUID, updates map[string]any) error
	UpdateCart(ctx context.Context, cartID uuid.UUID, updates map[string]any) error
	CreateAttentionLog(ctx context.Context, log *models.AttentionLog) error
	FindAttentionLogForUpdate(ctx context.Context, logID uuid.UUID) (*models.AttentionLog, error)
	UpdateAttentionLog(ctx context.Context, logID uuid.UUID, updates map[string]any) error
	CountUnresolvedAttention(ctx context.Context, cartID uuid.UUID) (int64, error)
	ListUnresolvedAttention(ctx context.Context, cartID uuid.UUID) ([]models.AttentionLog, error)
	ListAppliedGifts(ctx context.Context, cartID uuid.UUID) ([]models.AppliedGift, error)
	UpdateAppliedGift(ctx context.Context, appliedGiftID uuid.UUID, updates map[string]any) error
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
