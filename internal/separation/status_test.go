package separation

import (
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/lumehaus/liveshop-backend/pkg/db/models"
	"github.com/lumehaus/liveshop-backend/pkg/enums"
)

func TestComputeBagStatus(t *testing.T) {
	bag := 3
	printed := time.Now()

	cases := []struct {
		name       string
		cart       models.Cart
		items      []models.CartItem
		gifts      []models.AppliedGift
		unresolved int64
		want       enums.SeparationBagStatus
	}{
		{
			name: "no bag number yet",
			cart: models.Cart{Status: enums.CartStatusPaid},
			items: []models.CartItem{
				{Qty: 2, Status: enums.CartItemStatusConfirmed},
			},
			want: enums.SeparationBagPending,
		},
		{
			name: "partial progress",
			cart: models.Cart{Status: enums.CartStatusPaid, BagNumber: &bag},
			items: []models.CartItem{
				{Qty: 2, SeparatedQty: 1, Status: enums.CartItemStatusConfirmed},
			},
			want: enums.SeparationBagSeparating,
		},
		{
			name: "all units and gifts done",
			cart: models.Cart{Status: enums.CartStatusPaid, BagNumber: &bag},
			items: []models.CartItem{
				{Qty: 2, SeparatedQty: 2, Status: enums.CartItemStatusConfirmed},
			},
			gifts: []models.AppliedGift{
				{Qty: 1, Status: enums.AppliedGiftSeparated, SeparationConfirmed: true},
			},
			want: enums.SeparationBagSeparated,
		},
		{
			name: "pending gift holds the bag open",
			cart: models.Cart{Status: enums.CartStatusPaid, BagNumber: &bag},
			items: []models.CartItem{
				{Qty: 1, SeparatedQty: 1, Status: enums.CartItemStatusConfirmed},
			},
			gifts: []models.AppliedGift{
				{Qty: 1, Status: enums.AppliedGiftPendingSeparation},
			},
			want: enums.SeparationBagSeparating,
		},
		{
			name: "unresolved attention wins over full separation",
			cart: models.Cart{Status: enums.CartStatusPaid, BagNumber: &bag},
			items: []models.CartItem{
				{Qty: 1, SeparatedQty: 1, Status: enums.CartItemStatusConfirmed},
			},
			unresolved: 1,
			want:       enums.SeparationBagAttention,
		},
		{
			name: "outstanding removals block the bag",
			cart: models.Cart{Status: enums.CartStatusPaid, BagNumber: &bag},
			items: []models.CartItem{
				{Qty: 1, SeparatedQty: 1, Status: enums.CartItemStatusConfirmed},
				{Status: enums.CartItemStatusCancelled, PendingRemovalQty: 2, RemovalConfirmedQty: 1},
			},
			want: enums.SeparationBagAttention,
		},
		{
			name: "emptied before commitment collapses",
			cart: models.Cart{Status: enums.CartStatusPaid, BagNumber: &bag},
			items: []models.CartItem{
				{Qty: 1, Status: enums.CartItemStatusCancelled},
			},
			want: enums.SeparationBagCancelled,
		},
		{
			name: "emptied after print still collapses once obligations clear",
			cart: models.Cart{Status: enums.CartStatusPaid, BagNumber: &bag, LabelPrintedAt: &printed},
			items: []models.CartItem{
				{Qty: 1, Status: enums.CartItemStatusCancelled, PendingRemovalQty: 1, RemovalConfirmedQty: 1},
			},
			want: enums.SeparationBagCancelled,
		},
		{
			name: "terminal cart",
			cart: models.Cart{ID: uuid.New(), Status: enums.CartStatusCancelled, BagNumber: &bag},
			items: []models.CartItem{
				{Qty: 1, SeparatedQty: 1, Status: enums.CartItemStatusConfirmed},
			},
			want: enums.SeparationBagCancelled,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := computeBagStatus(&tc.cart, tc.items, tc.gifts, tc.unresolved)
			if got != tc.want {
				t.Fatalf("got %s want %s", got, tc.want)
			}
		})
	}
}

// Random sequences of attention-log creations, resolutions, cancellations
// and removal confirmations. After every step the bag must read as blocked
// exactly while an obligation is open, and unblock the moment the last one
// clears.
func TestBagBlockedUnderRandomObligationSequences(t *testing.T) {
	bag := 4
	rng := rand.New(rand.NewSource(20250831))

	for run := 0; run < 50; run++ {
		cart := models.Cart{Status: enums.CartStatusPaid, BagNumber: &bag}
		items := []models.CartItem{
			{Qty: 5, SeparatedQty: 1, Status: enums.CartItemStatusConfirmed},
			{Qty: 3, SeparatedQty: 3, Status: enums.CartItemStatusConfirmed},
		}
		var unresolved int64

		for step := 0; step < 40; step++ {
			switch rng.Intn(4) {
			case 0:
				// reallocation opens a log
				unresolved++
			case 1:
				// a log gets resolved
				if unresolved > 0 {
					unresolved--
				}
			case 2:
				// cancellation of already separated units
				idx := rng.Intn(len(items))
				if items[idx].SeparatedQty > 0 && items[idx].Status.IsActive() {
					items[idx].Status = enums.CartItemStatusCancelled
					items[idx].PendingRemovalQty += items[idx].SeparatedQty
				}
			case 3:
				// one removal confirmed
				idx := rng.Intn(len(items))
				if items[idx].OutstandingRemovals() > 0 {
					items[idx].RemovalConfirmedQty++
				}
			}

			wantBlocked := unresolved > 0 || outstandingRemovals(items) > 0
			if got := bagBlocked(items, unresolved); got != wantBlocked {
				t.Fatalf("run %d step %d: bagBlocked=%v want %v (unresolved=%d items=%+v)",
					run, step, got, wantBlocked, unresolved, items)
			}

			status := computeBagStatus(&cart, items, nil, unresolved)
			if wantBlocked && status != enums.SeparationBagAttention {
				t.Fatalf("run %d step %d: blocked bag reported %s", run, step, status)
			}
			if !wantBlocked && status == enums.SeparationBagAttention {
				t.Fatalf("run %d step %d: clear bag still reported attention", run, step)
			}
		}
	}
}
