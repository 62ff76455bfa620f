package separation

import (
	"github.com/lumehaus/liveshop-backend/pkg/db/models"
	"github.com/lumehaus/liveshop-backend/pkg/enums"
)

// outstandingRemovals sums cancelled units still physically inside the bag
// across every line of a cart.
func outstandingRemovals(items []models.CartItem) int {
	total := 0
	for _, item := range items {
		total += item.OutstandingRemovals()
	}
	return total
}

// giftPending reports whether the applied gift still needs to be packed.
func giftPending(gift models.AppliedGift) bool {
	return gift.Status == enums.AppliedGiftPendingSeparation && !gift.SeparationConfirmed
}

// giftCounts reports whether the applied gift contributes to the bag's
// physical contents at all.
func giftCounts(gift models.AppliedGift) bool {
	return gift.Status == enums.AppliedGiftPendingSeparation || gift.Status == enums.AppliedGiftSeparated
}

// computeBagStatus derives the bag status from the cart's lines, gifts and
// open attention obligations. Obligations always win: a bag with unresolved
// attention or unremoved cancelled units is blocked regardless of packing
// progress. A bag emptied of content before anyone committed to it (label
// never printed, never fully separated) collapses to cancelled.
func computeBagStatus(cart *models.Cart, items []models.CartItem, gifts []models.AppliedGift, unresolved int64) enums.SeparationBagStatus {
	if cart.Status.IsTerminal() {
		return enums.SeparationBagCancelled
	}
	if unresolved > 0 || outstandingRemovals(items) > 0 {
		return enums.SeparationBagAttention
	}

	activeUnits := 0
	pendingUnits := 0
	for _, item := range items {
		if !item.Status.IsActive() {
			continue
		}
		activeUnits += item.Qty
		pendingUnits += item.PendingUnits()
	}
	giftUnits := 0
	pendingGifts := 0
	for _, gift := range gifts {
		if !giftCounts(gift) {
			continue
		}
		giftUnits += gift.Qty
		if giftPending(gift) {
			pendingGifts++
		}
	}

	if activeUnits == 0 && giftUnits == 0 {
		return enums.SeparationBagCancelled
	}
	if pendingUnits == 0 && pendingGifts == 0 {
		return enums.SeparationBagSeparated
	}
	if cart.BagNumber != nil {
		return enums.SeparationBagSeparating
	}
	return enums.SeparationBagPending
}

// bagBlocked reports whether manual obligations prevent completing or
// labelling the bag.
func bagBlocked(items []models.CartItem, unresolved int64) bool {
	return unresolved > 0 || outstandingRemovals(items) > 0
}
