package separation

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lumehaus/liveshop-backend/pkg/db/models"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a separation repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindCart(ctx context.Context, cartID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).
		Preload("Customer").
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

func (r *repository) FindItem(ctx context.Context, itemID uuid.UUID) (*models.CartItem, error) {
	var item models.CartItem
	err := r.db.WithContext(ctx).
		Where("id = ?", itemID).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) FindItemForUpdate(ctx context.Context, itemID uuid.UUID) (*models.CartItem, error) {
	var item models.CartItem
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", itemID).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) ListItems(ctx context.Context, cartID uuid.UUID) ([]models.CartItem, error) {
	var items []models.CartItem
	err := r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Order("created_at ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) CreateItem(ctx context.Context, item *models.CartItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *repository) UpdateItem(ctx context.Context, itemID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("id = ?", itemID).
		Updates(updates).Error
}

func (r *repository) UpdateCart(ctx context.Context, cartID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ?", cartID).
		Updates(updates).Error
}

func (r *repository) CreateAttentionLog(ctx context.Context, log *models.AttentionLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *repository) FindAttentionLogForUpdate(ctx context.Context, logID uuid.UUID) (*models.AttentionLog, error) {
	var log models.AttentionLog
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", logID).
		First(&log).Error
	if err != nil {
		return nil, err
	}
	return &log, nil
}

func (r *repository) UpdateAttentionLog(ctx context.Context, logID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.AttentionLog{}).
		Where("id = ?", logID).
		Updates(updates).Error
}

func (r *repository) CountUnresolvedAttention(ctx context.Context, cartID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.AttentionLog{}).
		Where("cart_id = ? AND resolved_at IS NULL", cartID).
		Count(&count).Error
	return count, err
}

func (r *repository) ListUnresolvedAttention(ctx context.Context, cartID uuid.UUID) ([]models.AttentionLog, error) {
	var logs []models.AttentionLog
	err := r.db.WithContext(ctx).
		Where("cart_id = ? AND resolved_at IS NULL", cartID).
		Order("created_at ASC").
		Find(&logs).Error
	if err != nil {
		return nil, err
	}
	return logs, nil
}

func (r *repository) ListAppliedGifts(ctx context.Context, cartID uuid.UUID) ([]models.AppliedGift, error) {
	var gifts []models.AppliedGift
	err := r.db.WithContext(ctx).
		Preload("Gift").
		Where("cart_id = ?", cartID).
		Order("created_at ASC").
		Find(&gifts).Error
	if err != nil {
		return nil, err
	}
	return gifts, nil
}

func (r *repository) UpdateAppliedGift(ctx context.Context, appliedGiftID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.AppliedGift{}).
		Where("id = ?", appliedGiftID).
		Updates(updates).Error
}
