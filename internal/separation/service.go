package separation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/lumehaus/liveshop-backend/internal/changefeed"
	"github.com/lumehaus/liveshop-backend/pkg/db/models"
	"github.com/lumehaus/liveshop-backend/pkg/enums"
	pkgerrors "github.com/lumehaus/liveshop-backend/pkg/errors"
	"github.com/lumehaus/liveshop-backend/pkg/metrics"
	"github.com/lumehaus/liveshop-backend/pkg/outbox"
	"github.com/lumehaus/liveshop-backend/pkg/outbox/payloads"
)

// ReallocateInput moves separated units from one customer's bag to another.
type ReallocateInput struct {
	ItemID            uuid.UUID
	DestinationCartID uuid.UUID
	Qty               int
	Actor             *outbox.ActorRef
}

// ResolveAttentionInput persists confirmation flags on an attention log.
// Flags are monotonic: a true flag never goes back to false through this path.
type ResolveAttentionInput struct {
	LogID            uuid.UUID
	RemovedConfirmed bool
	PlacedConfirmed  bool
	Actor            *outbox.ActorRef
}

// Service drives the per-unit separation state machine.
type Service interface {
	MarkUnitSeparated(ctx context.Context, itemID uuid.UUID, actor *outbox.ActorRef) (*models.CartItem, error)
	MarkItemSeparated(ctx context.Context, itemID uuid.UUID, actor *outbox.ActorRef) (*models.CartItem, error)
	CancelItem(ctx context.Context, itemID uuid.UUID, actor *outbox.ActorRef) (*models.CartItem, error)
	ReduceQuantity(ctx context.Context, itemID uuid.UUID, newQty int, actor *outbox.ActorRef) (*models.CartItem, error)
	ConfirmRemoval(ctx context.Context, itemID uuid.UUID, actor *outbox.ActorRef) (*models.CartItem, error)
	UnconfirmRemoval(ctx context.Context, itemID uuid.UUID, actor *outbox.ActorRef) (*models.CartItem, error)
	Reallocate(ctx context.Context, input ReallocateInput) (*models.AttentionLog, error)
	ResolveAttention(ctx context.Context, input ResolveAttentionInput) (*models.AttentionLog, error)
	CompleteBag(ctx context.Context, cartID uuid.UUID, actor *outbox.ActorRef) (*models.Cart, error)
	MarkBagSeparated(ctx context.Context, cartID uuid.UUID, actor *outbox.ActorRef) (*models.Cart, error)
}

type service struct {
	repo     Repository
	tx       txRunner
	outbox   outboxPublisher
	notifier changeNotifier
	domain   *metrics.DomainMetrics
}

// NewService builds the separation service. Notifier and metrics are
// optional; repo, tx and outbox are not.
func NewService(repo Repository, tx txRunner, outboxSvc outboxPublisher, notifier changeNotifier, domain *metrics.DomainMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("separation repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:     repo,
		tx:       tx,
		outbox:   outboxSvc,
		notifier: notifier,
		domain:   domain,
	}, nil
}

func (s *service) MarkUnitSeparated(ctx context.Context, itemID uuid.UUID, actor *outbox.ActorRef) (*models.CartItem, error) {
	if itemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}

	var (
		result *models.CartItem
		cart   *models.Cart
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		item, err := s.lockActiveItem(ctx, repo, itemID)
		if err != nil {
			return err
		}
		cart, err = repo.FindCartForUpdate(ctx, item.CartID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}

		if item.SeparatedQty >= item.Qty {
			// already fully separated; monotonic no-op
			result = item
			return nil
		}

		updates := map[string]any{"separated_qty": item.SeparatedQty + 1}
		if item.SeparatedQty+1 >= item.Qty {
			updates["separation_status"] = enums.SeparationItemSeparated
		}
		if err := repo.UpdateItem(ctx, item.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update item")
		}
		item.SeparatedQty++
		if item.SeparatedQty >= item.Qty {
			item.SeparationStatus = enums.SeparationItemSeparated
		}
		result = item

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventUnitSeparated,
			AggregateType: enums.AggregateCartItem,
			AggregateID:   item.ID,
			Actor:         actor,
			Data: payloads.UnitSeparatedEvent{
				CartID:       cart.ID,
				ItemID:       item.ID,
				ProductName:  item.ProductName,
				SeparatedQty: item.SeparatedQty,
				TotalQty:     item.Qty,
			},
		}); err != nil {
			return err
		}
		_, err = s.recomputeBag(ctx, repo, cart)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.domain.IncTransition("unit_separated")
	s.notifyItemChange(ctx, cart, itemID)
	return result, nil
}

func (s *service) MarkItemSeparated(ctx context.Context, itemID uuid.UUID, actor *outbox.ActorRef) (*models.CartItem, error) {
	if itemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}

	var (
		result *models.CartItem
		cart   *models.Cart
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		item, err := s.lockActiveItem(ctx, repo, itemID)
		if err != nil {
			return err
		}
		cart, err = repo.FindCartForUpdate(ctx, item.CartID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}

		if item.SeparatedQty >= item.Qty {
			result = item
			return nil
		}

		if err := repo.UpdateItem(ctx, item.ID, map[string]any{
			"separated_qty":     item.Qty,
			"separation_status": enums.SeparationItemSeparated,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update item")
		}
		item.SeparatedQty = item.Qty
		item.SeparationStatus = enums.SeparationItemSeparated
		result = item

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventUnitSeparated,
			AggregateType: enums.AggregateCartItem,
			AggregateID:   item.ID,
			Actor:         actor,
			Data: payloads.UnitSeparatedEvent{
				CartID:       cart.ID,
				ItemID:       item.ID,
				ProductName:  item.ProductName,
				SeparatedQty: item.SeparatedQty,
				TotalQty:     item.Qty,
			},
		}); err != nil {
			return err
		}
		_, err = s.recomputeBag(ctx, repo, cart)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.domain.IncTransition("item_separated")
	s.notifyItemChange(ctx, cart, itemID)
	return result, nil
}

func (s *service) CancelItem(ctx context.Context, itemID uuid.UUID, actor *outbox.ActorRef) (*models.CartItem, error) {
	if itemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}

	var (
		result *models.CartItem
		cart   *models.Cart
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		item, err := s.lockItem(ctx, repo, itemID)
		if err != nil {
			return err
		}
		if !item.Status.IsActive() {
			// cancellation already applied
			result = item
			return nil
		}
		cart, err = repo.FindCartForUpdate(ctx, item.CartID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}

		overlap := item.SeparatedQty
		updates := map[string]any{
			"status":            enums.CartItemStatusCancelled,
			"separation_status": enums.SeparationItemCancelled,
		}
		if overlap > 0 {
			updates["pending_removal_qty"] = item.PendingRemovalQty + overlap
			updates["was_separated_before_cancel"] = true
		}
		if err := repo.UpdateItem(ctx, item.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update item")
		}
		item.Status = enums.CartItemStatusCancelled
		item.SeparationStatus = enums.SeparationItemCancelled
		if overlap > 0 {
			item.PendingRemovalQty += overlap
			item.WasSeparatedBeforeCancel = true

			log := &models.AttentionLog{
				CartID:          cart.ID,
				ItemID:          &item.ID,
				Kind:            enums.AttentionCancellation,
				ProductName:     item.ProductName,
				Size:            item.Size,
				Qty:             overlap,
				OriginBagNumber: bagNumber(cart),
				Description:     fmt.Sprintf("remove %d cancelled unit(s) of %s from the bag", overlap, item.ProductName),
			}
			if err := repo.CreateAttentionLog(ctx, log); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create attention log")
			}
		}
		result = item

		if err := s.markContentsChanged(ctx, repo, cart); err != nil {
			return err
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventItemCancelled,
			AggregateType: enums.AggregateCartItem,
			AggregateID:   item.ID,
			Actor:         actor,
			Data: payloads.ItemCancelledEvent{
				CartID:          cart.ID,
				ItemID:          item.ID,
				ProductName:     item.ProductName,
				RequiresRemoval: overlap > 0,
				RemovalQty:      overlap,
			},
		}); err != nil {
			return err
		}
		_, err = s.recomputeBag(ctx, repo, cart)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.domain.IncTransition("item_cancelled")
	s.notifyItemChange(ctx, cart, itemID)
	return result, nil
}

func (s *service) ReduceQuantity(ctx context.Context, itemID uuid.UUID, newQty int, actor *outbox.ActorRef) (*models.CartItem, error) {
	if itemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}
	if newQty < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "new quantity must be at least 1; cancel the item instead")
	}

	var (
		result *models.CartItem
		cart   *models.Cart
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		item, err := s.lockActiveItem(ctx, repo, itemID)
		if err != nil {
			return err
		}
		if newQty > item.Qty {
			return pkgerrors.New(pkgerrors.CodeValidation, "quantity can only be reduced")
		}
		cart, err = repo.FindCartForUpdate(ctx, item.CartID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		if newQty == item.Qty {
			result = item
			return nil
		}

		oldQty := item.Qty
		overlap := item.SeparatedQty - newQty
		if overlap < 0 {
			overlap = 0
		}
		updates := map[string]any{"qty": newQty}
		if item.SeparatedQty > newQty {
			updates["separated_qty"] = newQty
		}
		if overlap > 0 {
			updates["pending_removal_qty"] = item.PendingRemovalQty + overlap
		}
		if err := repo.UpdateItem(ctx, item.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update item")
		}
		item.Qty = newQty
		if item.SeparatedQty > newQty {
			item.SeparatedQty = newQty
		}
		if overlap > 0 {
			item.PendingRemovalQty += overlap

			log := &models.AttentionLog{
				CartID:          cart.ID,
				ItemID:          &item.ID,
				Kind:            enums.AttentionQuantityReduction,
				ProductName:     item.ProductName,
				Size:            item.Size,
				Qty:             overlap,
				OriginBagNumber: bagNumber(cart),
				Description:     fmt.Sprintf("remove %d unit(s) of %s from the bag after quantity reduction", overlap, item.ProductName),
			}
			if err := repo.CreateAttentionLog(ctx, log); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create attention log")
			}
		}
		result = item

		if err := s.markContentsChanged(ctx, repo, cart); err != nil {
			return err
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventQuantityReduced,
			AggregateType: enums.AggregateCartItem,
			AggregateID:   item.ID,
			Actor:         actor,
			Data: payloads.QuantityReducedEvent{
				CartID:      cart.ID,
				ItemID:      item.ID,
				ProductName: item.ProductName,
				OldQty:      oldQty,
				NewQty:      newQty,
				RemovalQty:  overlap,
			},
		}); err != nil {
			return err
		}
		_, err = s.recomputeBag(ctx, repo, cart)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.domain.IncTransition("quantity_reduced")
	s.notifyItemChange(ctx, cart, itemID)
	return result, nil
}

func (s *service) ConfirmRemoval(ctx context.Context, itemID uuid.UUID, actor *outbox.ActorRef) (*models.CartItem, error) {
	if itemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}

	var (
		result *models.CartItem
		cart   *models.Cart
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		item, err := s.lockItem(ctx, repo, itemID)
		if err != nil {
			return err
		}
		if item.OutstandingRemovals() == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "no outstanding removals for this item")
		}
		cart, err = repo.FindCartForUpdate(ctx, item.CartID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}

		updates := map[string]any{"removal_confirmed_qty": item.RemovalConfirmedQty + 1}
		item.RemovalConfirmedQty++
		if item.OutstandingRemovals() == 0 && item.Status == enums.CartItemStatusCancelled {
			updates["separation_status"] = enums.SeparationItemWithdrawalConfirmed
			item.SeparationStatus = enums.SeparationItemWithdrawalConfirmed
		}
		if err := repo.UpdateItem(ctx, item.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update item")
		}
		if item.OutstandingRemovals() == 0 {
			if err := s.resolveRemovalLogs(ctx, repo, cart.ID, item.ID, actor); err != nil {
				return err
			}
		}
		result = item

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRemovalConfirmed,
			AggregateType: enums.AggregateCartItem,
			AggregateID:   item.ID,
			Actor:         actor,
			Data: payloads.RemovalConfirmedEvent{
				CartID:       cart.ID,
				ItemID:       item.ID,
				ConfirmedQty: item.RemovalConfirmedQty,
				Outstanding:  item.OutstandingRemovals(),
			},
		}); err != nil {
			return err
		}
		_, err = s.recomputeBag(ctx, repo, cart)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.domain.IncTransition("removal_confirmed")
	s.notifyItemChange(ctx, cart, itemID)
	return result, nil
}

func (s *service) UnconfirmRemoval(ctx context.Context, itemID uuid.UUID, actor *outbox.ActorRef) (*models.CartItem, error) {
	if itemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}

	var (
		result *models.CartItem
		cart   *models.Cart
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		item, err := s.lockItem(ctx, repo, itemID)
		if err != nil {
			return err
		}
		if item.RemovalConfirmedQty == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "no confirmed removals to revert")
		}
		cart, err = repo.FindCartForUpdate(ctx, item.CartID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}

		updates := map[string]any{"removal_confirmed_qty": item.RemovalConfirmedQty - 1}
		item.RemovalConfirmedQty--
		if item.SeparationStatus == enums.SeparationItemWithdrawalConfirmed {
			updates["separation_status"] = enums.SeparationItemCancelled
			item.SeparationStatus = enums.SeparationItemCancelled
		}
		if err := repo.UpdateItem(ctx, item.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update item")
		}
		result = item

		_, err = s.recomputeBag(ctx, repo, cart)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.domain.IncTransition("removal_unconfirmed")
	s.notifyItemChange(ctx, cart, itemID)
	return result, nil
}

func (s *service) Reallocate(ctx context.Context, input ReallocateInput) (*models.AttentionLog, error) {
	if input.ItemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}
	if input.DestinationCartID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "destination cart id required")
	}
	qty := input.Qty
	if qty <= 0 {
		qty = 1
	}

	var (
		result  *models.AttentionLog
		origin  *models.Cart
		dest    *models.Cart
		movedID uuid.UUID
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		item, err := s.lockActiveItem(ctx, repo, input.ItemID)
		if err != nil {
			return err
		}
		if item.CartID == input.DestinationCartID {
			return pkgerrors.New(pkgerrors.CodeValidation, "destination must be a different bag")
		}
		if item.SeparatedQty < qty {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only separated units can be reallocated")
		}
		origin, err = repo.FindCartForUpdate(ctx, item.CartID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load origin cart")
		}
		dest, err = repo.FindCartForUpdate(ctx, input.DestinationCartID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "destination cart not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load destination cart")
		}
		if dest.LiveEventID != origin.LiveEventID {
			return pkgerrors.New(pkgerrors.CodeValidation, "destination belongs to another live event")
		}
		if dest.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "destination cart is closed")
		}

		originUpdates := map[string]any{
			"qty":           item.Qty - qty,
			"separated_qty": item.SeparatedQty - qty,
		}
		if item.Qty-qty == 0 {
			originUpdates["status"] = enums.CartItemStatusRemoved
			originUpdates["separation_status"] = enums.SeparationItemCancelled
		}
		if err := repo.UpdateItem(ctx, item.ID, originUpdates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update origin item")
		}

		moved := &models.CartItem{
			CartID:      dest.ID,
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Color:       item.Color,
			Size:        item.Size,
			Qty:         qty,
			UnitPrice:   item.UnitPrice,
			Status:      enums.CartItemStatusConfirmed,
		}
		if err := repo.CreateItem(ctx, moved); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create destination item")
		}
		movedID = moved.ID

		log := &models.AttentionLog{
			CartID:               origin.ID,
			ItemID:               &item.ID,
			Kind:                 enums.AttentionReallocation,
			ProductName:          item.ProductName,
			Size:                 item.Size,
			Qty:                  qty,
			OriginBagNumber:      bagNumber(origin),
			DestinationCartID:    &dest.ID,
			DestinationBagNumber: dest.BagNumber,
			Description:          fmt.Sprintf("move %d unit(s) of %s to bag %d", qty, item.ProductName, bagNumber(dest)),
		}
		if err := repo.CreateAttentionLog(ctx, log); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create attention log")
		}
		result = log

		if err := s.markContentsChanged(ctx, repo, origin); err != nil {
			return err
		}
		if err := s.markContentsChanged(ctx, repo, dest); err != nil {
			return err
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReallocationCreated,
			AggregateType: enums.AggregateCart,
			AggregateID:   origin.ID,
			Actor:         input.Actor,
			Data: payloads.ReallocationCreatedEvent{
				AttentionLogID:       log.ID,
				OriginCartID:         origin.ID,
				OriginBagNumber:      bagNumber(origin),
				DestinationCartID:    &dest.ID,
				DestinationBagNumber: dest.BagNumber,
				ProductName:          item.ProductName,
				Qty:                  qty,
			},
		}); err != nil {
			return err
		}
		if _, err := s.recomputeBag(ctx, repo, origin); err != nil {
			return err
		}
		_, err = s.recomputeBag(ctx, repo, dest)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.domain.IncTransition("reallocation_created")
	s.notifyItemChange(ctx, origin, input.ItemID)
	s.notifyItemChange(ctx, dest, movedID)
	return result, nil
}

func (s *service) ResolveAttention(ctx context.Context, input ResolveAttentionInput) (*models.AttentionLog, error) {
	if input.LogID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "attention log id required")
	}

	var (
		result *models.AttentionLog
		cart   *models.Cart
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		log, err := repo.FindAttentionLogForUpdate(ctx, input.LogID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "attention log not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load attention log")
		}
		if log.Resolved() {
			result = log
			return nil
		}
		cart, err = repo.FindCartForUpdate(ctx, log.CartID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}

		removed := log.RemovedFromOrigin || input.RemovedConfirmed
		placed := log.PlacedInDestination || input.PlacedConfirmed
		if placed && !removed {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "unit must be removed from the origin bag before it is placed")
		}

		updates := map[string]any{
			"removed_from_origin":   removed,
			"placed_in_destination": placed,
		}
		log.RemovedFromOrigin = removed
		log.PlacedInDestination = placed
		if log.Resolvable() {
			now := time.Now()
			updates["resolved_at"] = now
			log.ResolvedAt = &now
			if input.Actor != nil {
				updates["resolved_by"] = input.Actor.ActorID
				log.ResolvedBy = &input.Actor.ActorID
			}
		}
		if err := repo.UpdateAttentionLog(ctx, log.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update attention log")
		}

		// removal-type logs mirror the per-item removal counters
		if removed && log.Kind != enums.AttentionReallocation && log.ItemID != nil {
			if err := s.confirmAllRemovals(ctx, repo, *log.ItemID); err != nil {
				return err
			}
		}
		result = log

		if log.Resolved() {
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventReallocationResolved,
				AggregateType: enums.AggregateCart,
				AggregateID:   cart.ID,
				Actor:         input.Actor,
				Data: payloads.ReallocationResolvedEvent{
					AttentionLogID: log.ID,
					OriginCartID:   cart.ID,
					ResolvedAt:     *log.ResolvedAt,
				},
			}); err != nil {
				return err
			}
		}
		_, err = s.recomputeBag(ctx, repo, cart)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.domain.IncTransition("attention_resolved")
	s.notifyCartChange(ctx, cart)
	return result, nil
}

func (s *service) CompleteBag(ctx context.Context, cartID uuid.UUID, actor *outbox.ActorRef) (*models.Cart, error) {
	if cartID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart id required")
	}

	var cart *models.Cart
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		var err error
		cart, err = s.lockCart(ctx, repo, cartID)
		if err != nil {
			return err
		}
		if cart.SeparationStatus == enums.SeparationBagSeparated {
			return nil
		}
		items, gifts, unresolved, err := s.loadBagState(ctx, repo, cart.ID)
		if err != nil {
			return err
		}
		if bagBlocked(items, unresolved) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "bag has unresolved attention or pending removals")
		}
		for _, item := range items {
			if item.PendingUnits() > 0 {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "bag still has unseparated units")
			}
		}
		for _, gift := range gifts {
			if giftPending(gift) {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "bag still has unseparated gifts")
			}
		}

		if err := repo.UpdateCart(ctx, cart.ID, map[string]any{
			"separation_status": enums.SeparationBagSeparated,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart")
		}
		cart.SeparationStatus = enums.SeparationBagSeparated

		return s.emitBagSeparated(ctx, tx, cart, len(items), actor)
	})
	if err != nil {
		return nil, err
	}

	s.domain.IncTransition("bag_separated")
	s.notifyCartChange(ctx, cart)
	return cart, nil
}

func (s *service) MarkBagSeparated(ctx context.Context, cartID uuid.UUID, actor *outbox.ActorRef) (*models.Cart, error) {
	if cartID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart id required")
	}

	var (
		cart  *models.Cart
		items []models.CartItem
		gifts []models.AppliedGift
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		var err error
		cart, err = s.lockCart(ctx, repo, cartID)
		if err != nil {
			return err
		}
		var unresolved int64
		items, gifts, unresolved, err = s.loadBagState(ctx, repo, cart.ID)
		if err != nil {
			return err
		}
		if bagBlocked(items, unresolved) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "bag has unresolved attention or pending removals")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// each unit transition commits on its own so one bad row does not undo
	// the physical progress already recorded for the rest of the bag
	var errs error
	for i := range items {
		item := items[i]
		if item.PendingUnits() == 0 {
			continue
		}
		itemErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			if err := repo.UpdateItem(ctx, item.ID, map[string]any{
				"separated_qty":     item.Qty,
				"separation_status": enums.SeparationItemSeparated,
			}); err != nil {
				return err
			}
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventUnitSeparated,
				AggregateType: enums.AggregateCartItem,
				AggregateID:   item.ID,
				Actor:         actor,
				Data: payloads.UnitSeparatedEvent{
					CartID:       cart.ID,
					ItemID:       item.ID,
					ProductName:  item.ProductName,
					SeparatedQty: item.Qty,
					TotalQty:     item.Qty,
				},
			})
		})
		if itemErr != nil {
			errs = multierr.Append(errs, fmt.Errorf("item %s: %w", item.ID, itemErr))
		}
	}
	for i := range gifts {
		gift := gifts[i]
		if !giftPending(gift) {
			continue
		}
		giftErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			return repo.UpdateAppliedGift(ctx, gift.ID, map[string]any{
				"status":               enums.AppliedGiftSeparated,
				"separation_confirmed": true,
			})
		})
		if giftErr != nil {
			errs = multierr.Append(errs, fmt.Errorf("gift %s: %w", gift.ID, giftErr))
		}
	}

	finalErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		fresh, err := s.lockCart(ctx, repo, cartID)
		if err != nil {
			return err
		}
		status, err := s.recomputeBag(ctx, repo, fresh)
		if err != nil {
			return err
		}
		cart = fresh
		if status != enums.SeparationBagSeparated {
			return nil
		}
		return s.emitBagSeparated(ctx, tx, fresh, len(items), actor)
	})
	if finalErr != nil {
		errs = multierr.Append(errs, finalErr)
	}
	if errs != nil {
		return cart, pkgerrors.Wrap(pkgerrors.CodeDependency, errs, "mark bag separated")
	}

	s.domain.IncTransition("bag_separated")
	s.notifyCartChange(ctx, cart)
	return cart, nil
}

func (s *service) emitBagSeparated(ctx context.Context, tx *gorm.DB, cart *models.Cart, itemCount int, actor *outbox.ActorRef) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventBagSeparated,
		AggregateType: enums.AggregateCart,
		AggregateID:   cart.ID,
		Actor:         actor,
		Data: payloads.BagSeparatedEvent{
			CartID:      cart.ID,
			LiveEventID: cart.LiveEventID,
			BagNumber:   bagNumber(cart),
			ItemCount:   itemCount,
			SeparatedAt: time.Now(),
		},
	})
}

func (s *service) lockItem(ctx context.Context, repo Repository, itemID uuid.UUID) (*models.CartItem, error) {
	item, err := repo.FindItemForUpdate(ctx, itemID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load item")
	}
	return item, nil
}

func (s *service) lockActiveItem(ctx context.Context, repo Repository, itemID uuid.UUID) (*models.CartItem, error) {
	item, err := s.lockItem(ctx, repo, itemID)
	if err != nil {
		return nil, err
	}
	if !item.Status.IsActive() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "line is no longer active")
	}
	return item, nil
}

func (s *service) lockCart(ctx context.Context, repo Repository, cartID uuid.UUID) (*models.Cart, error) {
	cart, err := repo.FindCartForUpdate(ctx, cartID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return cart, nil
}

func (s *service) loadBagState(ctx context.Context, repo Repository, cartID uuid.UUID) ([]models.CartItem, []models.AppliedGift, int64, error) {
	items, err := repo.ListItems(ctx, cartID)
	if err != nil {
		return nil, nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list items")
	}
	gifts, err := repo.ListAppliedGifts(ctx, cartID)
	if err != nil {
		return nil, nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list applied gifts")
	}
	unresolved, err := repo.CountUnresolvedAttention(ctx, cartID)
	if err != nil {
		return nil, nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count attention logs")
	}
	return items, gifts, unresolved, nil
}

func (s *service) recomputeBag(ctx context.Context, repo Repository, cart *models.Cart) (enums.SeparationBagStatus, error) {
	items, gifts, unresolved, err := s.loadBagState(ctx, repo, cart.ID)
	if err != nil {
		return "", err
	}
	next := computeBagStatus(cart, items, gifts, unresolved)
	if next == cart.SeparationStatus {
		return next, nil
	}
	if err := repo.UpdateCart(ctx, cart.ID, map[string]any{"separation_status": next}); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update bag status")
	}
	cart.SeparationStatus = next
	return next, nil
}

// markContentsChanged flags the label for reprint once contents diverge from
// an already printed label. Never set before the first print.
func (s *service) markContentsChanged(ctx context.Context, repo Repository, cart *models.Cart) error {
	if cart.LabelPrintedAt == nil || cart.NeedsReprint {
		return nil
	}
	if err := repo.UpdateCart(ctx, cart.ID, map[string]any{"needs_label_reprint": true}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "flag label reprint")
	}
	cart.NeedsReprint = true
	return nil
}

// resolveRemovalLogs closes cancellation and reduction logs for an item whose
// outstanding removals just reached zero.
func (s *service) resolveRemovalLogs(ctx context.Context, repo Repository, cartID, itemID uuid.UUID, actor *outbox.ActorRef) error {
	updates := map[string]any{
		"removed_from_origin": true,
		"resolved_at":         time.Now(),
	}
	if actor != nil {
		updates["resolved_by"] = actor.ActorID
	}
	logs, err := repo.ListUnresolvedAttention(ctx, cartID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list attention logs")
	}
	for _, log := range logs {
		if log.Kind == enums.AttentionReallocation || log.ItemID == nil || *log.ItemID != itemID {
			continue
		}
		if err := repo.UpdateAttentionLog(ctx, log.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve attention log")
		}
	}
	return nil
}

// confirmAllRemovals snaps the item counters to fully confirmed when a
// removal log is resolved directly.
func (s *service) confirmAllRemovals(ctx context.Context, repo Repository, itemID uuid.UUID) error {
	item, err := repo.FindItemForUpdate(ctx, itemID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load item")
	}
	if item.OutstandingRemovals() == 0 {
		return nil
	}
	updates := map[string]any{"removal_confirmed_qty": item.PendingRemovalQty}
	if item.Status == enums.CartItemStatusCancelled {
		updates["separation_status"] = enums.SeparationItemWithdrawalConfirmed
	}
	if err := repo.UpdateItem(ctx, item.ID, updates); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update item")
	}
	return nil
}

func (s *service) notifyItemChange(ctx context.Context, cart *models.Cart, itemID uuid.UUID) {
	if s.notifier == nil || cart == nil {
		return
	}
	s.notifier.Notify(ctx, changefeed.Change{
		Table:       "cart_items",
		Op:          changefeed.OpUpdate,
		LiveEventID: cart.LiveEventID,
		RowID:       itemID,
	})
}

func (s *service) notifyCartChange(ctx context.Context, cart *models.Cart) {
	if s.notifier == nil || cart == nil {
		return
	}
	s.notifier.Notify(ctx, changefeed.Change{
		Table:       "carts",
		Op:          changefeed.OpUpdate,
		LiveEventID: cart.LiveEventID,
		RowID:       cart.ID,
	})
}

func bagNumber(cart *models.Cart) int {
	if cart == nil || cart.BagNumber == nil {
		return 0
	}
	return *cart.BagNumber
}
