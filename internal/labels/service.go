package labels

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lumehaus/liveshop-backend/internal/changefeed"
	"github.com/lumehaus/liveshop-backend/pkg/config"
	"github.com/lumehaus/liveshop-backend/pkg/db/models"
	"github.com/lumehaus/liveshop-backend/pkg/enums"
	pkgerrors "github.com/lumehaus/liveshop-backend/pkg/errors"
	"github.com/lumehaus/liveshop-backend/pkg/logger"
	"github.com/lumehaus/liveshop-backend/pkg/metrics"
	"github.com/lumehaus/liveshop-backend/pkg/outbox"
	"github.com/lumehaus/liveshop-backend/pkg/outbox/payloads"
)

// BatchFailure reports one bag that could not be printed in a batch.
type BatchFailure struct {
	CartID uuid.UUID `json:"cart_id"`
	Reason string    `json:"reason"`
}

// BatchResult summarizes a batch print run. Failures never abort the batch.
type BatchResult struct {
	Printed []payloads.LabelPrintRequestedEvent `json:"printed"`
	Failed  []BatchFailure                      `json:"failed,omitempty"`
}

// Service decides when a bag label may be (re)printed and records prints.
// Rendering itself is the label worker's job; this service only hands it a
// fully built job.
type Service interface {
	PrintLabel(ctx context.Context, cartID uuid.UUID, actor *outbox.ActorRef) (*payloads.LabelPrintRequestedEvent, error)
	PrintBatch(ctx context.Context, cartIDs []uuid.UUID, actor *outbox.ActorRef) (*BatchResult, error)
}

type service struct {
	repo     Repository
	tx       txRunner
	outbox   outboxPublisher
	notifier changeNotifier
	domain   *metrics.DomainMetrics
	logg     *logger.Logger
	cfg      config.LabelConfig
	now      func() time.Time
}

// NewService builds the label service. Notifier, metrics and logger are optional.
func NewService(repo Repository, tx txRunner, outboxSvc outboxPublisher, notifier changeNotifier, domain *metrics.DomainMetrics, logg *logger.Logger, cfg config.LabelConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("labels repository required")
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
		logg:     logg,
		cfg:      cfg,
		now:      time.Now,
	}, nil
}

// PrintLabel emits a render job for one bag and records the print. A bag
// with unresolved attention may only reprint a label it already has; the
// first print waits until the bag is clean.
func (s *service) PrintLabel(ctx context.Context, cartID uuid.UUID, actor *outbox.ActorRef) (*payloads.LabelPrintRequestedEvent, error) {
	if cartID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart id required")
	}

	var (
		job  payloads.LabelPrintRequestedEvent
		cart *models.Cart
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		var err error
		cart, err = repo.FindBagForUpdate(ctx, cartID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "bag not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load bag")
		}
		if cart.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cart is closed")
		}
		if cart.BagNumber == nil {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "bag has no number yet")
		}

		unresolved, err := repo.CountUnresolvedAttention(ctx, cartID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count attention")
		}
		reprint := cart.LabelPrintedAt != nil
		if bagBlocked(cart, unresolved) && !reprint {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "bag needs attention before its first label print")
		}

		now := s.now()
		job = s.buildJob(cart, reprint, now)
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventLabelPrintRequested,
			AggregateType: enums.AggregateCart,
			AggregateID:   cart.ID,
			Actor:         actor,
			Data:          job,
		}); err != nil {
			return err
		}
		return repo.UpdateCart(ctx, cartID, map[string]any{
			"label_printed_at":    now,
			"needs_label_reprint": false,
		})
	})
	if err != nil {
		return nil, err
	}

	s.domain.IncLabelPrinted()
	s.notifyCart(ctx, cart)
	return &job, nil
}

// PrintBatch prints each bag in its own transaction. One refused or broken
// bag never holds up the rest of the batch.
func (s *service) PrintBatch(ctx context.Context, cartIDs []uuid.UUID, actor *outbox.ActorRef) (*BatchResult, error) {
	if len(cartIDs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one cart id required")
	}

	result := &BatchResult{}
	seen := make(map[uuid.UUID]bool, len(cartIDs))
	for _, cartID := range cartIDs {
		if seen[cartID] {
			continue
		}
		seen[cartID] = true

		job, err := s.PrintLabel(ctx, cartID, actor)
		if err != nil {
			result.Failed = append(result.Failed, BatchFailure{CartID: cartID, Reason: failureReason(err)})
			if s.logg != nil {
				s.logg.Warn(ctx, fmt.Sprintf("batch label print skipped bag %s: %v", cartID, err))
			}
			continue
		}
		result.Printed = append(result.Printed, *job)
	}
	return result, nil
}

func (s *service) buildJob(cart *models.Cart, reprint bool, now time.Time) payloads.LabelPrintRequestedEvent {
	job := payloads.LabelPrintRequestedEvent{
		CartID:      cart.ID,
		LiveEventID: cart.LiveEventID,
		BagNumber:   *cart.BagNumber,
		ShopName:    s.cfg.ShopName,
		Subtotal:    cart.Subtotal.StringFixed(2),
		ScanURL:     strings.TrimRight(s.cfg.BaseURL, "/") + "/bags/" + cart.ID.String(),
		Reprint:     reprint,
		RequestedAt: now,
	}
	if cart.Customer != nil {
		job.CustomerHandle = cart.Customer.InstagramHandle
		if cart.Customer.Name != nil {
			job.CustomerName = *cart.Customer.Name
		}
	}
	for _, item := range cart.Items {
		if !item.Status.IsActive() {
			continue
		}
		line := payloads.LabelLine{
			ProductName: item.ProductName,
			Qty:         item.Qty,
			IsGift:      item.IsGift,
		}
		if item.Size != nil {
			line.Size = *item.Size
		}
		if item.Color != nil {
			line.Color = *item.Color
		}
		job.Lines = append(job.Lines, line)
		job.TotalUnits += item.Qty
	}
	for _, gift := range cart.AppliedGifts {
		if gift.Status != enums.AppliedGiftPendingSeparation && gift.Status != enums.AppliedGiftSeparated {
			continue
		}
		line := payloads.LabelLine{Qty: gift.Qty, IsGift: true}
		if gift.Gift != nil {
			line.ProductName = gift.Gift.Name
		}
		job.Lines = append(job.Lines, line)
		job.TotalUnits += gift.Qty
	}
	return job
}

// bagBlocked mirrors the separation workflow's blocking rule: any unresolved
// attention requirement, including cancelled units still inside the bag.
func bagBlocked(cart *models.Cart, unresolved int64) bool {
	if unresolved > 0 {
		return true
	}
	for _, item := range cart.Items {
		if item.OutstandingRemovals() > 0 {
			return true
		}
	}
	return false
}

func failureReason(err error) string {
	if typed := pkgerrors.As(err); typed != nil {
		return typed.Error()
	}
	return err.Error()
}

func (s *service) notifyCart(ctx context.Context, cart *models.Cart) {
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
