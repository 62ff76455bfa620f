package gifts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/lumehaus/liveshop-backend/internal/changefeed"
	"github.com/lumehaus/liveshop-backend/pkg/db/models"
	"github.com/lumehaus/liveshop-backend/pkg/enums"
	pkgerrors "github.com/lumehaus/liveshop-backend/pkg/errors"
	"github.com/lumehaus/liveshop-backend/pkg/logger"
	"github.com/lumehaus/liveshop-backend/pkg/metrics"
	"github.com/lumehaus/liveshop-backend/pkg/outbox"
	"github.com/lumehaus/liveshop-backend/pkg/outbox/payloads"
)

// Sentinels for expected per-rule outcomes. They skip the rule, not the pass.
var (
	errOutOfStock    = errors.New("gift out of stock")
	errCapReached    = errors.New("rule award cap reached")
	errCustomerCap   = errors.New("per-customer cap reached")
	errAlreadyPacked = errors.New("gift already separated")
)

// EvaluationSummary reports what one engine pass changed.
type EvaluationSummary struct {
	CartID  uuid.UUID `json:"cart_id"`
	Applied int       `json:"applied"`
	Revoked int       `json:"revoked"`
	Skipped int       `json:"skipped"`
}

// ManualGiftInput awards a gift outside the rule engine.
type ManualGiftInput struct {
	CartID   uuid.UUID
	GiftID   uuid.UUID
	Source   enums.GiftSource
	SourceID *uuid.UUID
	Qty      int
	Actor    *outbox.ActorRef
}

// Engine reconciles a cart's applied gifts against the active rule set.
type Engine interface {
	Evaluate(ctx context.Context, cartID uuid.UUID, actor *outbox.ActorRef) (*EvaluationSummary, error)
	AppliedGifts(ctx context.Context, cartID uuid.UUID) ([]models.AppliedGift, error)
	AddManualGift(ctx context.Context, input ManualGiftInput) (*models.AppliedGift, error)
}

type engine struct {
	repo     Repository
	tx       txRunner
	outbox   outboxPublisher
	notifier changeNotifier
	domain   *metrics.DomainMetrics
	logg     *logger.Logger
	now      func() time.Time
}

// NewEngine builds the gift engine. Notifier, metrics and logger are optional.
func NewEngine(repo Repository, tx txRunner, outboxSvc outboxPublisher, notifier changeNotifier, domain *metrics.DomainMetrics, logg *logger.Logger) (Engine, error) {
	if repo == nil {
		return nil, fmt.Errorf("gifts repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &engine{
		repo:     repo,
		tx:       tx,
		outbox:   outboxSvc,
		notifier: notifier,
		domain:   domain,
		logg:     logg,
		now:      time.Now,
	}, nil
}

// Evaluate runs every active rule against the cart and reconciles awards.
// Each rule commits on its own: one bad rule never undoes another rule's
// award. The returned error aggregates per-rule failures for observability;
// the pass itself is best effort.
func (e *engine) Evaluate(ctx context.Context, cartID uuid.UUID, actor *outbox.ActorRef) (*EvaluationSummary, error) {
	if cartID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart id required")
	}
	start := e.now()
	defer func() { e.domain.ObserveEvaluation(time.Since(start)) }()

	cart, err := e.repo.FindCart(ctx, cartID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	rules, err := e.repo.ListActiveRules(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list gift rules")
	}
	applied, err := e.repo.ListAppliedGifts(ctx, cartID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list applied gifts")
	}
	byRule := make(map[uuid.UUID]*models.AppliedGift)
	for i := range applied {
		gift := &applied[i]
		if gift.AppliedByRuleID != nil && gift.Status != enums.AppliedGiftRemoved {
			byRule[*gift.AppliedByRuleID] = gift
		}
	}

	summary := &EvaluationSummary{CartID: cartID}
	var errs error
	now := e.now()
	for i := range rules {
		rule := rules[i]
		existing := byRule[rule.ID]
		eligible := e.ruleEligible(rule, cart, now, existing != nil)

		switch {
		case eligible && existing == nil:
			err := e.tx.WithTx(ctx, func(tx *gorm.DB) error {
				return e.applyRule(ctx, tx, cart, rule, actor)
			})
			switch {
			case err == nil:
				summary.Applied++
			case isRuleSkip(err):
				summary.Skipped++
				if e.logg != nil {
					e.logg.Warn(ctx, fmt.Sprintf("gift rule %s skipped: %v", rule.Name, err))
				}
			default:
				errs = multierr.Append(errs, fmt.Errorf("rule %s: %w", rule.ID, err))
				if e.logg != nil {
					e.logg.Error(ctx, "apply gift rule", err)
				}
			}
		case !eligible && existing != nil:
			err := e.tx.WithTx(ctx, func(tx *gorm.DB) error {
				return e.revokeRule(ctx, tx, cart, rule, existing, actor)
			})
			switch {
			case err == nil:
				summary.Revoked++
			case isRuleSkip(err):
				// gift already packed; never revoked
				summary.Skipped++
			default:
				errs = multierr.Append(errs, fmt.Errorf("rule %s: %w", rule.ID, err))
				if e.logg != nil {
					e.logg.Error(ctx, "revoke gift rule", err)
				}
			}
		}
	}

	if summary.Applied > 0 || summary.Revoked > 0 {
		e.notifyCart(ctx, cart)
	}
	return summary, errs
}

// hasAward marks that the cart already holds a non-removed award for this
// rule. A first-N winner keeps its slot even once the counter reaches N;
// only the cart's own qualification lapsing revokes it.
func (e *engine) ruleEligible(rule models.GiftRule, cart *models.Cart, now time.Time, hasAward bool) bool {
	if cart.Status.IsTerminal() {
		return false
	}
	if !rule.ChannelScope.MatchesLive() {
		return false
	}
	if rule.ChannelScope == enums.GiftScopeLiveSpecific {
		if rule.LiveEventID == nil || *rule.LiveEventID != cart.LiveEventID {
			return false
		}
	}
	if !rule.WindowContains(now) {
		return false
	}
	switch rule.ConditionType {
	case enums.GiftConditionAllPurchases:
		return true
	case enums.GiftConditionMinValue:
		return rule.ConditionValue != nil && cart.Subtotal.GreaterThanOrEqual(*rule.ConditionValue)
	case enums.GiftConditionFirstNPaid:
		if cart.Status != enums.CartStatusPaid {
			return false
		}
		if hasAward {
			return true
		}
		return rule.ConditionValue != nil && int64(rule.CurrentAwardsCount) < rule.ConditionValue.IntPart()
	case enums.GiftConditionFirstNReserved:
		if hasAward {
			return true
		}
		return rule.ConditionValue != nil && int64(rule.CurrentAwardsCount) < rule.ConditionValue.IntPart()
	default:
		return false
	}
}

// applyRule awards inside one transaction: guarded stock decrement first,
// then the award row, then the guarded counter. Any refusal rolls the whole
// rule back, so stock can never run ahead of recorded awards.
func (e *engine) applyRule(ctx context.Context, tx *gorm.DB, cart *models.Cart, rule models.GiftRule, actor *outbox.ActorRef) error {
	repo := e.repo.WithTx(tx)

	if rule.MaxPerCustomer != nil {
		count, err := repo.CountCustomerRuleAwards(ctx, cart.CustomerID, rule.ID)
		if err != nil {
			return err
		}
		if count >= int64(*rule.MaxPerCustomer) {
			return errCustomerCap
		}
	}
	if rule.GlobalCapReached() {
		return errCapReached
	}

	ok, err := repo.DecrementGiftStock(ctx, rule.GiftID, rule.GiftQty)
	if err != nil {
		return err
	}
	if !ok {
		return errOutOfStock
	}

	award := &models.AppliedGift{
		CartID:          cart.ID,
		GiftID:          rule.GiftID,
		Qty:             rule.GiftQty,
		Status:          enums.AppliedGiftPendingSeparation,
		AppliedByRuleID: &rule.ID,
	}
	if err := repo.CreateAppliedGift(ctx, award); err != nil {
		// explicit compensation; the rollback would cover it, but the
		// ordering invariant is stock >= recorded awards at every step
		_ = repo.RestoreGiftStock(ctx, rule.GiftID, rule.GiftQty)
		return err
	}

	ok, err = repo.IncrementRuleAwards(ctx, rule.ID)
	if err != nil {
		return err
	}
	if !ok {
		if err := repo.DeleteAppliedGift(ctx, award.ID); err != nil {
			return err
		}
		if err := repo.RestoreGiftStock(ctx, rule.GiftID, rule.GiftQty); err != nil {
			return err
		}
		return errCapReached
	}

	if err := e.markReprint(ctx, repo, cart); err != nil {
		return err
	}
	e.domain.IncGiftApplied(rule.ConditionType.String())
	return e.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventGiftApplied,
		AggregateType: enums.AggregateGiftRule,
		AggregateID:   rule.ID,
		Actor:         actor,
		Data: payloads.GiftAppliedEvent{
			CartID:        cart.ID,
			GiftID:        rule.GiftID,
			AppliedGiftID: award.ID,
			RuleID:        &rule.ID,
			ConditionType: rule.ConditionType,
			Qty:           rule.GiftQty,
		},
	})
}

func (e *engine) revokeRule(ctx context.Context, tx *gorm.DB, cart *models.Cart, rule models.GiftRule, existing *models.AppliedGift, actor *outbox.ActorRef) error {
	repo := e.repo.WithTx(tx)

	removed, err := repo.RemovePendingAppliedGift(ctx, existing.ID)
	if err != nil {
		return err
	}
	if !removed {
		return errAlreadyPacked
	}
	if err := repo.RestoreGiftStock(ctx, existing.GiftID, existing.Qty); err != nil {
		return err
	}
	if err := repo.DecrementRuleAwards(ctx, rule.ID); err != nil {
		return err
	}
	if err := e.markReprint(ctx, repo, cart); err != nil {
		return err
	}
	e.domain.IncGiftRevoked()
	return e.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventGiftRevoked,
		AggregateType: enums.AggregateGiftRule,
		AggregateID:   rule.ID,
		Actor:         actor,
		Data: payloads.GiftRevokedEvent{
			CartID:        cart.ID,
			GiftID:        existing.GiftID,
			AppliedGiftID: existing.ID,
			Qty:           existing.Qty,
			Reason:        "rule condition no longer met",
		},
	})
}

func (e *engine) AppliedGifts(ctx context.Context, cartID uuid.UUID) ([]models.AppliedGift, error) {
	if cartID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart id required")
	}
	gifts, err := e.repo.ListAppliedGifts(ctx, cartID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list applied gifts")
	}
	return gifts, nil
}

func (e *engine) AddManualGift(ctx context.Context, input ManualGiftInput) (*models.AppliedGift, error) {
	if input.CartID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart id required")
	}
	if input.GiftID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gift id required")
	}
	if input.Source != enums.GiftSourceManual && input.Source != enums.GiftSourceRaffle {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "source must be manual or raffle")
	}
	qty := input.Qty
	if qty <= 0 {
		qty = 1
	}

	var (
		award *models.AppliedGift
		cart  *models.Cart
	)
	err := e.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := e.repo.WithTx(tx)

		var err error
		cart, err = repo.FindCartForUpdate(ctx, input.CartID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		if cart.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cart is closed")
		}

		ok, err := repo.DecrementGiftStock(ctx, input.GiftID, qty)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement gift stock")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "gift is out of stock")
		}

		award = &models.AppliedGift{
			CartID: cart.ID,
			GiftID: input.GiftID,
			Qty:    qty,
			Status: enums.AppliedGiftPendingSeparation,
		}
		if input.Source == enums.GiftSourceRaffle {
			award.AppliedByRaffleID = input.SourceID
		}
		if err := repo.CreateAppliedGift(ctx, award); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create applied gift")
		}
		if err := e.markReprint(ctx, repo, cart); err != nil {
			return err
		}
		return e.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventGiftApplied,
			AggregateType: enums.AggregateCart,
			AggregateID:   cart.ID,
			Actor:         input.Actor,
			Data: payloads.GiftAppliedEvent{
				CartID:        cart.ID,
				GiftID:        input.GiftID,
				AppliedGiftID: award.ID,
				Qty:           qty,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	e.domain.IncGiftApplied(string(input.Source))
	e.notifyCart(ctx, cart)
	return award, nil
}

func (e *engine) markReprint(ctx context.Context, repo Repository, cart *models.Cart) error {
	if cart.LabelPrintedAt == nil || cart.NeedsReprint {
		return nil
	}
	if err := repo.UpdateCart(ctx, cart.ID, map[string]any{"needs_label_reprint": true}); err != nil {
		return err
	}
	cart.NeedsReprint = true
	return nil
}

func (e *engine) notifyCart(ctx context.Context, cart *models.Cart) {
	if e.notifier == nil || cart == nil {
		return
	}
	e.notifier.Notify(ctx, changefeed.Change{
		Table:       "applied_gifts",
		Op:          changefeed.OpUpdate,
		LiveEventID: cart.LiveEventID,
		RowID:       cart.ID,
	})
}

func isRuleSkip(err error) bool {
	return errors.Is(err, errOutOfStock) || errors.Is(err, errCapReached) ||
		errors.Is(err, errCustomerCap) || errors.Is(err, errAlreadyPacked)
}
