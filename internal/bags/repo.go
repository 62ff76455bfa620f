package bags

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lumehaus/liveshop-backend/pkg/db/models"
	"github.com/lumehaus/liveshop-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a bags repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindLiveEvent(ctx context.Context, eventID uuid.UUID) (*models.LiveEvent, error) {
	var event models.LiveEvent
	err := r.db.WithContext(ctx).
		Where("id = ?", eventID).
		First(&event).Error
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *repository) ListLiveEventsByStatus(ctx context.Context, status enums.LiveEventStatus) ([]models.LiveEvent, error) {
	var events []models.LiveEvent
	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("starts_at ASC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

// FindLiveEventForUpdate serializes bag number assignment per event.
func (r *repository) FindLiveEventForUpdate(ctx context.Context, eventID uuid.UUID) (*models.LiveEvent, error) {
	var event models.LiveEvent
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", eventID).
		First(&event).Error
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *repository) MaxBagNumber(ctx context.Context, eventID uuid.UUID) (int, error) {
	var max *int
	err := r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("live_event_id = ?", eventID).
		Select("MAX(bag_number)").
		Scan(&max).Error
	if err != nil {
		return 0, err
	}
	if max == nil {
		return 0, nil
	}
	return *max, nil
}

func (r *repository) ListUnnumberedActiveCarts(ctx context.Context, eventID uuid.UUID) ([]models.Cart, error) {
	var carts []models.Cart
	err := r.db.WithContext(ctx).
		Where("live_event_id = ? AND bag_number IS NULL AND status NOT IN ?", eventID, []enums.CartStatus{
			enums.CartStatusCancelled,
			enums.CartStatusExpired,
		}).
		Order("created_at ASC").
		Find(&carts).Error
	if err != nil {
		return nil, err
	}
	return carts, nil
}

func (r *repository) ListStaleAwaitingPayment(ctx context.Context, cutoff time.Time) ([]models.Cart, error) {
	var carts []models.Cart
	err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", enums.CartStatusAwaitingPayment, cutoff).
		Order("updated_at ASC").
		Find(&carts).Error
	if err != nil {
		return nil, err
	}
	return carts, nil
}

func (r *repository) ListBags(ctx context.Context, eventID uuid.UUID) ([]models.Cart, error) {
	var carts []models.Cart
	err := r.db.WithContext(ctx).
		Preload("Customer").
		Preload("Items").
		Preload("AppliedGifts.Gift").
		Preload("AttentionLogs").
		Where("live_event_id = ? AND bag_number IS NOT NULL", eventID).
		Order("bag_number ASC").
		Find(&carts).Error
	if err != nil {
		return nil, err
	}
	return carts, nil
}

func (r *repository) FindBag(ctx context.Context, cartID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).
		Preload("Customer").
		Preload("Items").
		Preload("AppliedGifts.Gift").
		Preload("AttentionLogs").
		Where("id = ?", cartID).
		First(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

func (r *repository) FindCartForUpdate(ctx context.Context, cartID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", cartID).
		First(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

func (r *repository) UpdateCart(ctx context.Context, cartID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ?", cartID).
		Updates(updates).Error
}
