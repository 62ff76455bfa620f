package bags

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lumehaus/liveshop-backend/internal/changefeed"
	"github.com/lumehaus/liveshop-backend/pkg/db/models"
	"github.com/lumehaus/liveshop-backend/pkg/enums"
	pkgerrors "github.com/lumehaus/liveshop-backend/pkg/errors"
	"github.com/lumehaus/liveshop-backend/pkg/metrics"
	"github.com/lumehaus/liveshop-backend/pkg/outbox"
	"github.com/lumehaus/liveshop-backend/pkg/outbox/payloads"
)

// Service assigns bag numbers and serves the packing views.
type Service interface {
	StartSeparation(ctx context.Context, eventID uuid.UUID, actor *outbox.ActorRef) ([]BagView, error)
	AssignNext(ctx context.Context, cartID uuid.UUID, actor *outbox.ActorRef) (*BagView, error)
	BagSet(ctx context.Context, eventID uuid.UUID) ([]BagView, error)
	BagByID(ctx context.Context, cartID uuid.UUID) (*BagView, error)
	KPIs(ctx context.Context, eventID uuid.UUID) (*KPISummary, error)
	ByProduct(ctx context.Context, eventID uuid.UUID) ([]ProductGroup, error)
}

type service struct {
	repo     Repository
	tx       txRunner
	outbox   outboxPublisher
	notifier changeNotifier
	domain   *metrics.DomainMetrics
}

// NewService builds the bags service. Notifier and metrics are optional.
func NewService(repo Repository, tx txRunner, outboxSvc outboxPublisher, notifier changeNotifier, domain *metrics.DomainMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("bags repository required")
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

// StartSeparation hands every active cart of the event a sequential bag
// number. Already numbered carts keep their number; the operation can run
// any number of times as late reservations trickle in.
func (s *service) StartSeparation(ctx context.Context, eventID uuid.UUID, actor *outbox.ActorRef) ([]BagView, error) {
	if eventID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "live event id required")
	}

	assigned := 0
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if _, err := repo.FindLiveEventForUpdate(ctx, eventID); err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "live event not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load live event")
		}
		next, err := repo.MaxBagNumber(ctx, eventID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read max bag number")
		}
		carts, err := repo.ListUnnumberedActiveCarts(ctx, eventID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list carts")
		}
		for _, cart := range carts {
			next++
			if err := s.assignBag(ctx, tx, repo, cart, next, actor); err != nil {
				return err
			}
			assigned++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if assigned > 0 {
		s.domain.IncTransition("separation_started")
		s.notifyEvent(ctx, eventID)
	}
	return s.BagSet(ctx, eventID)
}

// AssignNext numbers a single cart that appeared after separation started.
func (s *service) AssignNext(ctx context.Context, cartID uuid.UUID, actor *outbox.ActorRef) (*BagView, error) {
	if cartID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart id required")
	}

	var eventID uuid.UUID
	assigned := false
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		cart, err := repo.FindCartForUpdate(ctx, cartID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		eventID = cart.LiveEventID
		if cart.BagNumber != nil {
			return nil
		}
		if cart.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cart is closed")
		}
		if _, err := repo.FindLiveEventForUpdate(ctx, cart.LiveEventID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load live event")
		}
		max, err := repo.MaxBagNumber(ctx, cart.LiveEventID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read max bag number")
		}
		if err := s.assignBag(ctx, tx, repo, *cart, max+1, actor); err != nil {
			return err
		}
		assigned = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if assigned {
		s.domain.IncTransition("bag_assigned")
		s.notifyEvent(ctx, eventID)
	}
	return s.BagByID(ctx, cartID)
}

func (s *service) assignBag(ctx context.Context, tx *gorm.DB, repo Repository, cart models.Cart, number int, actor *outbox.ActorRef) error {
	if err := repo.UpdateCart(ctx, cart.ID, map[string]any{
		"bag_number":        number,
		"separation_status": enums.SeparationBagSeparating,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "assign bag number")
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventSeparationStarted,
		AggregateType: enums.AggregateCart,
		AggregateID:   cart.ID,
		Actor:         actor,
		Data: payloads.SeparationStartedEvent{
			CartID:      cart.ID,
			LiveEventID: cart.LiveEventID,
			BagNumber:   number,
		},
	})
}

func (s *service) BagSet(ctx context.Context, eventID uuid.UUID) ([]BagView, error) {
	if eventID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "live event id required")
	}
	carts, err := s.repo.ListBags(ctx, eventID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list bags")
	}
	views := make([]BagView, 0, len(carts))
	for _, cart := range carts {
		views = append(views, newBagView(cart))
	}
	return views, nil
}

func (s *service) BagByID(ctx context.Context, cartID uuid.UUID) (*BagView, error) {
	if cartID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart id required")
	}
	cart, err := s.repo.FindBag(ctx, cartID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "bag not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load bag")
	}
	view := newBagView(*cart)
	return &view, nil
}

func (s *service) KPIs(ctx context.Context, eventID uuid.UUID) (*KPISummary, error) {
	views, err := s.BagSet(ctx, eventID)
	if err != nil {
		return nil, err
	}
	summary := &KPISummary{TotalBags: len(views)}
	for _, view := range views {
		switch view.Status {
		case enums.SeparationBagPending:
			summary.Pending++
		case enums.SeparationBagSeparating:
			summary.Separating++
		case enums.SeparationBagSeparated:
			summary.Separated++
		case enums.SeparationBagAttention:
			summary.Attention++
		case enums.SeparationBagCancelled:
			summary.Cancelled++
		}
		summary.TotalUnits += view.TotalUnits
		summary.SeparatedUnits += view.SeparatedUnits
	}
	if summary.TotalUnits > 0 {
		summary.SeparationPercent = float64(summary.SeparatedUnits) / float64(summary.TotalUnits) * 100
	}
	return summary, nil
}

func (s *service) ByProduct(ctx context.Context, eventID uuid.UUID) ([]ProductGroup, error) {
	if eventID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "live event id required")
	}
	carts, err := s.repo.ListBags(ctx, eventID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list bags")
	}

	groups := make(map[string]*ProductGroup)
	for _, cart := range carts {
		handle := ""
		if cart.Customer != nil {
			handle = cart.Customer.InstagramHandle
		}
		for _, item := range cart.Items {
			if !item.Status.IsActive() {
				continue
			}
			key := item.ProductID.String() + "|" + strOrEmpty(item.Size) + "|" + strOrEmpty(item.Color)
			group, ok := groups[key]
			if !ok {
				group = &ProductGroup{
					ProductID:   item.ProductID,
					ProductName: item.ProductName,
					Size:        item.Size,
					Color:       item.Color,
				}
				groups[key] = group
			}
			group.TotalUnits += item.Qty
			group.SeparatedUnits += item.SeparatedQty
			group.Bags = append(group.Bags, ProductBagRef{
				CartID:       cart.ID,
				BagNumber:    cart.BagNumber,
				Handle:       handle,
				Qty:          item.Qty,
				SeparatedQty: item.SeparatedQty,
			})
		}
	}

	out := make([]ProductGroup, 0, len(groups))
	for _, group := range groups {
		out = append(out, *group)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ProductName != out[j].ProductName {
			return out[i].ProductName < out[j].ProductName
		}
		return strOrEmpty(out[i].Size) < strOrEmpty(out[j].Size)
	})
	return out, nil
}

func (s *service) notifyEvent(ctx context.Context, eventID uuid.UUID) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, changefeed.Change{
		Table:       "carts",
		Op:          changefeed.OpUpdate,
		LiveEventID: eventID,
	})
}

func strOrEmpty(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
