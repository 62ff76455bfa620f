package bags

import (
	"time"

	"github.com/google/uuid"

	"github.com/lumehaus/liveshop-backend/pkg/db/models"
	"github.com/lumehaus/liveshop-backend/pkg/enums"
)

// BagCustomer is the customer summary shown on every bag card.
type BagCustomer struct {
	ID              uuid.UUID `json:"id"`
	InstagramHandle string    `json:"instagram_handle"`
	Name            *string   `json:"name,omitempty"`
}

// BagItem is one line of a bag with its physical counters.
type BagItem struct {
	ID                  uuid.UUID                  `json:"id"`
	ProductID           uuid.UUID                  `json:"product_id"`
	ProductName         string                     `json:"product_name"`
	Color               *string                    `json:"color,omitempty"`
	Size                *string                    `json:"size,omitempty"`
	Qty                 int                        `json:"qty"`
	Status              enums.CartItemStatus       `json:"status"`
	SeparationStatus    enums.SeparationItemStatus `json:"separation_status"`
	SeparatedQty        int                        `json:"separated_qty"`
	PendingRemovalQty   int                        `json:"pending_removal_qty"`
	RemovalConfirmedQty int                        `json:"removal_confirmed_qty"`
	IsGift              bool                       `json:"is_gift"`
}

// BagGift is a gift attached to the bag.
type BagGift struct {
	ID                  uuid.UUID               `json:"id"`
	GiftID              uuid.UUID               `json:"gift_id"`
	GiftName            string                  `json:"gift_name,omitempty"`
	Qty                 int                     `json:"qty"`
	Status              enums.AppliedGiftStatus `json:"status"`
	SeparationConfirmed bool                    `json:"separation_confirmed"`
}

// BagAttention is an open or resolved obligation on the bag.
type BagAttention struct {
	ID                   uuid.UUID           `json:"id"`
	Kind                 enums.AttentionKind `json:"kind"`
	ProductName          string              `json:"product_name"`
	Qty                  int                 `json:"qty"`
	DestinationBagNumber *int                `json:"destination_bag_number,omitempty"`
	Description          string              `json:"description"`
	RemovedFromOrigin    bool                `json:"removed_from_origin"`
	PlacedInDestination  bool                `json:"placed_in_destination"`
	Resolved             bool                `json:"resolved"`
}

// BagView is the full state of one bag as shown in the packing panel.
type BagView struct {
	CartID              uuid.UUID                 `json:"cart_id"`
	LiveEventID         uuid.UUID                 `json:"live_event_id"`
	BagNumber           *int                      `json:"bag_number,omitempty"`
	Status              enums.SeparationBagStatus `json:"status"`
	Customer            BagCustomer               `json:"customer"`
	Items               []BagItem                 `json:"items"`
	Gifts               []BagGift                 `json:"gifts,omitempty"`
	Attention           []BagAttention            `json:"attention,omitempty"`
	TotalUnits          int                       `json:"total_units"`
	SeparatedUnits      int                       `json:"separated_units"`
	OutstandingRemovals int                       `json:"outstanding_removals"`
	UnresolvedAttention int                       `json:"unresolved_attention"`
	Blocked             bool                      `json:"blocked"`
	LabelPrintedAt      *time.Time                `json:"label_printed_at,omitempty"`
	NeedsReprint        bool                      `json:"needs_label_reprint"`
}

// KPISummary aggregates separation progress across an event.
type KPISummary struct {
	TotalBags         int     `json:"total_bags"`
	Pending           int     `json:"pending"`
	Separating        int     `json:"separating"`
	Separated         int     `json:"separated"`
	Attention         int     `json:"attention"`
	Cancelled         int     `json:"cancelled"`
	TotalUnits        int     `json:"total_units"`
	SeparatedUnits    int     `json:"separated_units"`
	SeparationPercent float64 `json:"separation_percent"`
}

// ProductBagRef locates one product's units inside a specific bag.
type ProductBagRef struct {
	CartID       uuid.UUID `json:"cart_id"`
	BagNumber    *int      `json:"bag_number,omitempty"`
	Handle       string    `json:"instagram_handle"`
	Qty          int       `json:"qty"`
	SeparatedQty int       `json:"separated_qty"`
}

// ProductGroup is the product-first projection of an event's bags, used when
// packing by walking the stock instead of walking the bags.
type ProductGroup struct {
	ProductID      uuid.UUID       `json:"product_id"`
	ProductName    string          `json:"product_name"`
	Size           *string         `json:"size,omitempty"`
	Color          *string         `json:"color,omitempty"`
	TotalUnits     int             `json:"total_units"`
	SeparatedUnits int             `json:"separated_units"`
	Bags           []ProductBagRef `json:"bags"`
}

func newBagView(cart models.Cart) BagView {
	view := BagView{
		CartID:         cart.ID,
		LiveEventID:    cart.LiveEventID,
		BagNumber:      cart.BagNumber,
		Status:         cart.SeparationStatus,
		LabelPrintedAt: cart.LabelPrintedAt,
		NeedsReprint:   cart.NeedsReprint,
	}
	if cart.Customer != nil {
		view.Customer = BagCustomer{
			ID:              cart.Customer.ID,
			InstagramHandle: cart.Customer.InstagramHandle,
			Name:            cart.Customer.Name,
		}
	}
	for _, item := range cart.Items {
		view.Items = append(view.Items, BagItem{
			ID:                  item.ID,
			ProductID:           item.ProductID,
			ProductName:         item.ProductName,
			Color:               item.Color,
			Size:                item.Size,
			Qty:                 item.Qty,
			Status:              item.Status,
			SeparationStatus:    item.SeparationStatus,
			SeparatedQty:        item.SeparatedQty,
			PendingRemovalQty:   item.PendingRemovalQty,
			RemovalConfirmedQty: item.RemovalConfirmedQty,
			IsGift:              item.IsGift,
		})
		if item.Status.IsActive() {
			view.TotalUnits += item.Qty
			view.SeparatedUnits += item.SeparatedQty
		}
		view.OutstandingRemovals += item.OutstandingRemovals()
	}
	for _, gift := range cart.AppliedGifts {
		bagGift := BagGift{
			ID:                  gift.ID,
			GiftID:              gift.GiftID,
			Qty:                 gift.Qty,
			Status:              gift.Status,
			SeparationConfirmed: gift.SeparationConfirmed,
		}
		if gift.Gift != nil {
			bagGift.GiftName = gift.Gift.Name
		}
		view.Gifts = append(view.Gifts, bagGift)
	}
	for _, log := range cart.AttentionLogs {
		view.Attention = append(view.Attention, BagAttention{
			ID:                   log.ID,
			Kind:                 log.Kind,
			ProductName:          log.ProductName,
			Qty:                  log.Qty,
			DestinationBagNumber: log.DestinationBagNumber,
			Description:          log.Description,
			RemovedFromOrigin:    log.RemovedFromOrigin,
			PlacedInDestination:  log.PlacedInDestination,
			Resolved:             log.Resolved(),
		})
		if !log.Resolved() {
			view.UnresolvedAttention++
		}
	}
	view.Blocked = view.UnresolvedAttention > 0 || view.OutstandingRemovals > 0
	return view
}
