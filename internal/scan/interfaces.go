package scan

import (
	"context"

	"github.com/google/uuid"

	"github.com/lumehaus/liveshop-backend/pkg/db/models"
	"github.com/lumehaus/liveshop-backend/pkg/outbox"
)

// Repository resolves scanned references against the event's bag set.
type Repository interface {
	FindBag(ctx context.Context, liveEventID, cartID uuid.UUID) (*models.Cart, error)
}

// separator is the slice of the separation workflow a scan drives.
type separator interface {
	MarkItemSeparated(ctx context.Context, itemID uuid.UUID, actor *outbox.ActorRef) (*models.CartItem, error)
}
