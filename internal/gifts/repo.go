package gifts

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lumehaus/liveshop-backend/pkg/db/models"
	"github.com/lumehaus/liveshop-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a gifts repository bound to the provided DB.
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

func (r *repository) ListActiveRules(ctx context.Context) ([]models.GiftRule, error) {
	var rules []models.GiftRule
	err := r.db.WithContext(ctx).
		Preload("Gift").
		Where("is_active = ?", true).
		Order("priority DESC").
		Order("created_at ASC").
		Find(&rules).Error
	if err != nil {
		return nil, err
	}
	return rules, nil
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

// CountCustomerRuleAwards counts live awards from the same rule across every
// cart belonging to the customer.
func (r *repository) CountCustomerRuleAwards(ctx context.Context, customerID, ruleID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.AppliedGift{}).
		Joins("JOIN carts ON carts.id = applied_gifts.cart_id").
		Where("carts.customer_id = ? AND applied_gifts.applied_by_rule_id = ? AND applied_gifts.status <> ?",
			customerID, ruleID, enums.AppliedGiftRemoved).
		Count(&count).Error
	return count, err
}

func (r *repository) CreateAppliedGift(ctx context.Context, applied *models.AppliedGift) error {
	return r.db.WithContext(ctx).Create(applied).Error
}

func (r *repository) UpdateAppliedGift(ctx context.Context, appliedGiftID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.AppliedGift{}).
		Where("id = ?", appliedGiftID).
		Updates(updates).Error
}

// RemovePendingAppliedGift marks an award removed only while it is still
// waiting to be packed. Returns false when the gift already left this state.
func (r *repository) RemovePendingAppliedGift(ctx context.Context, appliedGiftID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.AppliedGift{}).
		Where("id = ? AND status = ? AND separation_confirmed = ?",
			appliedGiftID, enums.AppliedGiftPendingSeparation, false).
		Update("status", enums.AppliedGiftRemoved)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) DeleteAppliedGift(ctx context.Context, appliedGiftID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("id = ?", appliedGiftID).
		Delete(&models.AppliedGift{}).Error
}

func (r *repository) FindGift(ctx context.Context, giftID uuid.UUID) (*models.Gift, error) {
	var gift models.Gift
	err := r.db.WithContext(ctx).
		Where("id = ?", giftID).
		First(&gift).Error
	if err != nil {
		return nil, err
	}
	return &gift, nil
}

// DecrementGiftStock atomically takes qty units, refusing to go negative.
// Returns false when stock is insufficient.
func (r *repository) DecrementGiftStock(ctx context.Context, giftID uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Gift{}).
		Where("id = ? AND is_active = ? AND (unlimited_stock = ? OR stock_qty >= ?)", giftID, true, true, qty).
		Update("stock_qty", gorm.Expr("CASE WHEN unlimited_stock THEN stock_qty ELSE stock_qty - ? END", qty))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) RestoreGiftStock(ctx context.Context, giftID uuid.UUID, qty int) error {
	return r.db.WithContext(ctx).
		Model(&models.Gift{}).
		Where("id = ? AND unlimited_stock = ?", giftID, false).
		Update("stock_qty", gorm.Expr("stock_qty + ?", qty)).Error
}

// IncrementRuleAwards bumps the award counter unless the global cap is
// already reached. Returns false when the cap refuses the award.
func (r *repository) IncrementRuleAwards(ctx context.Context, ruleID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.GiftRule{}).
		Where("id = ? AND (max_total_awards IS NULL OR current_awards_count < max_total_awards)", ruleID).
		Update("current_awards_count", gorm.Expr("current_awards_count + 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) DecrementRuleAwards(ctx context.Context, ruleID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.GiftRule{}).
		Where("id = ? AND current_awards_count > 0", ruleID).
		Update("current_awards_count", gorm.Expr("current_awards_count - 1")).Error
}

func (r *repository) UpdateCart(ctx context.Context, cartID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ?", cartID).
		Updates(updates).Error
}
