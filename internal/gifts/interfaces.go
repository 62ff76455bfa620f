package gifts

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lumehaus/liveshop-backend/internal/changefeed"
	"github.com/lumehaus/liveshop-backend/pkg/db/models"
	"github.com/lumehaus/liveshop-backend/pkg/outbox"
)

// Repository defines persistence operations for the gift rule engine.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindCart(ctx context.Context, cartID uuid.UUID) (*models.Cart, error)
	FindCartForUpdate(ctx context.Context, cartID uuid.UUID) (*models.Cart, error)
	ListActiveRules(ctx context.Context) ([]models.GiftRule, error)
	ListAppliedGifts(ctx context.Context, cartID uuid.UUID) ([]models.AppliedGift, error)
	CountCustomerRuleAwards(ctx context.Context, customerID, ruleID uuid.UUID) (int64, error)
	CreateAppliedGift(ctx context.Context, applied *models.AppliedGift) error
	UpdateAppliedGift(ctx context.Context, appliedGiftID uuid.UUID, updates map[string]any) error
	RemovePendingAppliedGift(ctx context.Context, appliedGiftID uuid.UUID) (bool, error)
	DeleteAppliedGift(ctx context.Context, appliedGiftID uuid.UUID) error
	FindGift(ctx context.Context, giftID uuid.UUID) (*models.Gift, error)
	DecrementGiftStock(ctx context.Context, giftID uuid.UUID, qty int) (bool, error)
	RestoreGiftStock(ctx context.Context, giftID uuid.UUID, qty int) error
	IncrementRuleAwards(ctx context.Context, ruleID uuid.UUID) (bool, error)
	DecrementRuleAwards(ctx context.Context, ruleID uuid.UUID) error
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
