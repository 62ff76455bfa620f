package separation

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/lumehaus/liveshop-backend/pkg/db/models"
	"github.com/lumehaus/liveshop-backend/pkg/enums"
)

func setupSeparationTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	statements := []string{
		`CREATE TABLE IF NOT EXISTS live_customers (
  id TEXT PRIMARY KEY,
  instagram_handle TEXT NOT NULL,
  name TEXT,
  whatsapp TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS carts (
  id TEXT PRIMARY KEY,
  live_event_id TEXT NOT NULL,
  customer_id TEXT NOT NULL,
  seller_id TEXT,
  status TEXT NOT NULL DEFAULT 'open',
  subtotal TEXT NOT NULL DEFAULT '0',
  bag_number INTEGER,
  separation_status TEXT NOT NULL DEFAULT 'pending',
  label_printed_at DATETIME,
  needs_label_reprint INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS cart_items (
  id TEXT PRIMARY KEY,
  cart_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  product_name TEXT NOT NULL,
  color TEXT,
  size TEXT,
  qty INTEGER NOT NULL,
  unit_price TEXT NOT NULL DEFAULT '0',
  status TEXT NOT NULL DEFAULT 'reserved',
  separation_status TEXT NOT NULL DEFAULT 'pending',
  separated_qty INTEGER NOT NULL DEFAULT 0,
  pending_removal_qty INTEGER NOT NULL DEFAULT 0,
  removal_confirmed_qty INTEGER NOT NULL DEFAULT 0,
  was_separated_before_cancel INTEGER NOT NULL DEFAULT 0,
  is_gift INTEGER NOT NULL DEFAULT 0,
  gift_source TEXT,
  notes TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS attention_logs (
  id TEXT PRIMARY KEY,
  cart_id TEXT NOT NULL,
  item_id TEXT,
  kind TEXT NOT NULL,
  product_name TEXT NOT NULL,
  size TEXT,
  qty INTEGER NOT NULL DEFAULT 1,
  origin_bag_number INTEGER NOT NULL,
  destination_cart_id TEXT,
  destination_bag_number INTEGER,
  description TEXT NOT NULL,
  removed_from_origin INTEGER NOT NULL DEFAULT 0,
  placed_in_destination INTEGER NOT NULL DEFAULT 0,
  resolved_at DATETIME,
  resolved_by TEXT,
  created_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS gifts (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  sku TEXT,
  description TEXT,
  unlimited_stock INTEGER NOT NULL DEFAULT 0,
  stock_qty INTEGER NOT NULL DEFAULT 0,
  is_active INTEGER NOT NULL DEFAULT 1,
  start_at DATETIME,
  end_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS applied_gifts (
  id TEXT PRIMARY KEY,
  cart_id TEXT NOT NULL,
  gift_id TEXT NOT NULL,
  qty INTEGER NOT NULL DEFAULT 1,
  status TEXT NOT NULL DEFAULT 'pending_separation',
  applied_by_rule_id TEXT,
  applied_by_raffle_id TEXT,
  separation_confirmed INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`,
	}
	for _, stmt := range statements {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

func seedCartWithItem(t *testing.T, db *gorm.DB) (*models.Cart, *models.CartItem) {
	t.Helper()

	customer := &models.LiveCustomer{ID: uuid.New(), InstagramHandle: "@maria.compras"}
	require.NoError(t, db.Create(customer).Error)

	bag := 12
	cart := &models.Cart{
		ID:               uuid.New(),
		LiveEventID:      uuid.New(),
		CustomerID:       customer.ID,
		Status:           enums.CartStatusPaid,
		Subtotal:         decimal.NewFromInt(180),
		BagNumber:        &bag,
		SeparationStatus: enums.SeparationBagSeparating,
	}
	require.NoError(t, db.Create(cart).Error)

	item := &models.CartItem{
		ID:          uuid.New(),
		CartID:      cart.ID,
		ProductID:   uuid.New(),
		ProductName: "Saia Plissada",
		Qty:         2,
		UnitPrice:   decimal.NewFromInt(90),
		Status:      enums.CartItemStatusConfirmed,
	}
	require.NoError(t, db.Create(item).Error)
	return cart, item
}

func TestRepositoryCartRoundTrip(t *testing.T) {
	db := setupSeparationTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	cart, item := seedCartWithItem(t, db)

	found, err := repo.FindCart(ctx, cart.ID)
	require.NoError(t, err)
	assert.Equal(t, cart.ID, found.ID)
	require.NotNil(t, found.Customer)
	assert.Equal(t, "@maria.compras", found.Customer.InstagramHandle)

	items, err := repo.ListItems(ctx, cart.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, item.ID, items[0].ID)

	_, err = repo.FindCart(ctx, uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepositoryUpdatesPersist(t *testing.T) {
	db := setupSeparationTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	cart, item := seedCartWithItem(t, db)

	require.NoError(t, repo.UpdateItem(ctx, item.ID, map[string]any{
		"separated_qty":     2,
		"separation_status": enums.SeparationItemSeparated,
	}))
	require.NoError(t, repo.UpdateCart(ctx, cart.ID, map[string]any{
		"separation_status":   enums.SeparationBagSeparated,
		"needs_label_reprint": true,
	}))

	reloaded, err := repo.FindItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, reloaded.SeparatedQty)
	assert.Equal(t, enums.SeparationItemSeparated, reloaded.SeparationStatus)

	freshCart, err := repo.FindCart(ctx, cart.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.SeparationBagSeparated, freshCart.SeparationStatus)
	assert.True(t, freshCart.NeedsReprint)
}

func TestRepositoryAttentionLogQueries(t *testing.T) {
	db := setupSeparationTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	cart, item := seedCartWithItem(t, db)

	open := &models.AttentionLog{
		ID:              uuid.New(),
		CartID:          cart.ID,
		ItemID:          &item.ID,
		Kind:            enums.AttentionCancellation,
		ProductName:     item.ProductName,
		Qty:             1,
		OriginBagNumber: 12,
		Description:     "remove 1 cancelled unit(s) of Saia Plissada from the bag",
	}
	require.NoError(t, repo.CreateAttentionLog(ctx, open))

	now := time.Now()
	closed := &models.AttentionLog{
		ID:                uuid.New(),
		CartID:            cart.ID,
		Kind:              enums.AttentionGeneric,
		ProductName:       "Cinto",
		Qty:               1,
		OriginBagNumber:   12,
		Description:       "checked",
		RemovedFromOrigin: true,
		ResolvedAt:        &now,
	}
	require.NoError(t, repo.CreateAttentionLog(ctx, closed))

	count, err := repo.CountUnresolvedAttention(ctx, cart.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	logs, err := repo.ListUnresolvedAttention(ctx, cart.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, open.ID, logs[0].ID)

	require.NoError(t, repo.UpdateAttentionLog(ctx, open.ID, map[string]any{
		"removed_from_origin": true,
		"resolved_at":         time.Now(),
	}))
	count, err = repo.CountUnresolvedAttention(ctx, cart.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRepositoryAppliedGifts(t *testing.T) {
	db := setupSeparationTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	cart, _ := seedCartWithItem(t, db)

	gift := &models.Gift{ID: uuid.New(), Name: "Brinde Necessaire", UnlimitedStock: true, IsActive: true}
	require.NoError(t, db.Create(gift).Error)
	applied := &models.AppliedGift{
		ID:     uuid.New(),
		CartID: cart.ID,
		GiftID: gift.ID,
		Qty:    1,
		Status: enums.AppliedGiftPendingSeparation,
	}
	require.NoError(t, db.Create(applied).Error)

	gifts, err := repo.ListAppliedGifts(ctx, cart.ID)
	require.NoError(t, err)
	require.Len(t, gifts, 1)
	require.NotNil(t, gifts[0].Gift)
	assert.Equal(t, "Brinde Necessaire", gifts[0].Gift.Name)

	require.NoError(t, repo.UpdateAppliedGift(ctx, applied.ID, map[string]any{
		"status":               enums.AppliedGiftSeparated,
		"separation_confirmed": true,
	}))
	gifts, err = repo.ListAppliedGifts(ctx, cart.ID)
	require.NoError(t, err)
	assert.True(t, gifts[0].SeparationConfirmed)
	assert.Equal(t, enums.AppliedGiftSeparated, gifts[0].Status)
}
