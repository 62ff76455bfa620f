package scan

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/lumehaus/liveshop-backend/pkg/db/models"
	"github.com/lumehaus/liveshop-backend/pkg/enums"
	pkgerrors "github.com/lumehaus/liveshop-backend/pkg/errors"
	"github.com/lumehaus/liveshop-backend/pkg/logger"
	"github.com/lumehaus/liveshop-backend/pkg/metrics"
	"github.com/lumehaus/liveshop-backend/pkg/outbox"
)

// Outcome is the result of one scan, tagged for the operator UI.
type Outcome struct {
	Result    enums.ScanResult `json:"result"`
	CartID    *uuid.UUID       `json:"cart_id,omitempty"`
	BagNumber int              `json:"bag_number,omitempty"`
	Units     int              `json:"units"`
	ScannedAt time.Time        `json:"scanned_at"`
}

// Service turns decoded scanner payloads into bag transitions.
type Service interface {
	Handle(ctx context.Context, liveEventID uuid.UUID, payload string, actor *outbox.ActorRef) (*Outcome, error)
	Trail() []TrailEntry
	ResetTrail()
}

type service struct {
	repo      Repository
	separator separator
	trail     *Trail
	domain    *metrics.DomainMetrics
	logg      *logger.Logger
	now       func() time.Time
}

// NewService builds the scan handler. Metrics and logger are optional.
func NewService(repo Repository, sep separator, trail *Trail, domain *metrics.DomainMetrics, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("scan repository required")
	}
	if sep == nil {
		return nil, fmt.Errorf("separation service required")
	}
	if trail == nil {
		trail = NewTrail(0)
	}
	return &service{
		repo:      repo,
		separator: sep,
		trail:     trail,
		domain:    domain,
		logg:      logg,
		now:       time.Now,
	}, nil
}

// Handle resolves the payload to a bag in the event and separates every
// pending unit on it. Per-item failures never roll back units that already
// transitioned; physical separation has already happened by the time the
// bag is scanned.
func (s *service) Handle(ctx context.Context, liveEventID uuid.UUID, payload string, actor *outbox.ActorRef) (*Outcome, error) {
	if liveEventID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "live event id required")
	}

	outcome := &Outcome{Result: enums.ScanNotFound, ScannedAt: s.now()}

	cartID, ok := ParseBagRef(payload)
	if !ok {
		return s.record(outcome), nil
	}

	cart, err := s.repo.FindBag(ctx, liveEventID, cartID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return s.record(outcome), nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve bag")
	}
	// a closed cart is no longer part of the event's bag set
	if cart.Status.IsTerminal() {
		return s.record(outcome), nil
	}

	outcome.CartID = &cart.ID
	if cart.BagNumber != nil {
		outcome.BagNumber = *cart.BagNumber
	}

	var pending []models.CartItem
	for _, item := range cart.Items {
		if item.PendingUnits() > 0 {
			pending = append(pending, item)
		}
	}
	if len(pending) == 0 {
		outcome.Result = enums.ScanAlreadyDone
		return s.record(outcome), nil
	}

	var errs error
	for _, item := range pending {
		units := item.PendingUnits()
		if _, err := s.separator.MarkItemSeparated(ctx, item.ID, actor); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("item %s: %w", item.ID, err))
			if s.logg != nil {
				s.logg.Error(ctx, fmt.Sprintf("scan separation of item %s", item.ID), err)
			}
			continue
		}
		outcome.Units += units
	}
	if outcome.Units == 0 && errs != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, errs, "scan transition")
	}

	outcome.Result = enums.ScanSuccess
	return s.record(outcome), nil
}

func (s *service) record(outcome *Outcome) *Outcome {
	s.trail.Append(TrailEntry{
		BagNumber: outcome.BagNumber,
		Result:    outcome.Result,
		Units:     outcome.Units,
		ScannedAt: outcome.ScannedAt,
	})
	s.domain.IncScan(string(outcome.Result))
	return outcome
}

func (s *service) Trail() []TrailEntry {
	return s.trail.Entries()
}

func (s *service) ResetTrail() {
	s.trail.Reset()
}
