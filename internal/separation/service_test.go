package separation

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lumehaus/liveshop-backend/pkg/db/models"
	"github.com/lumehaus/liveshop-backend/pkg/enums"
	pkgerrors "github.com/lumehaus/liveshop-backend/pkg/errors"
	"github.com/lumehaus/liveshop-backend/pkg/outbox"
)

type stubSeparationRepo struct {
	carts []*models.Cart
	items []*models.CartItem
	logs  []*models.AttentionLog
	gifts []*models.AppliedGift
}

func (s *stubSeparationRepo) WithTx(tx *gorm.DB) Repository {
	return s
}

func (s *stubSeparationRepo) cart(id uuid.UUID) *models.Cart {
	for _, cart := range s.carts {
		if cart.ID == id {
			return cart
		}
	}
	return nil
}

func (s *stubSeparationRepo) item(id uuid.UUID) *models.CartItem {
	for _, item := range s.items {
		if item.ID == id {
			return item
		}
	}
	return nil
}

// Finders hand out copies so the service's snapshot never aliases the
// stored row, same as a query hydrating a fresh struct.
func (s *stubSeparationRepo) FindCart(ctx context.Context, cartID uuid.UUID) (*models.Cart, error) {
	if cart := s.cart(cartID); cart != nil {
		snapshot := *cart
		return &snapshot, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubSeparationRepo) FindCartForUpdate(ctx context.Context, cartID uuid.UUID) (*models.Cart, error) {
	return s.FindCart(ctx, cartID)
}

func (s *stubSeparationRepo) FindItem(ctx context.Context, itemID uuid.UUID) (*models.CartItem, error) {
	if item := s.item(itemID); item != nil {
		snapshot := *item
		return &snapshot, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubSeparationRepo) FindItemForUpdate(ctx context.Context, itemID uuid.UUID) (*models.CartItem, error) {
	return s.FindItem(ctx, itemID)
}

func (s *stubSeparationRepo) ListItems(ctx context.Context, cartID uuid.UUID) ([]models.CartItem, error) {
	var out []models.CartItem
	for _, item := range s.items {
		if item.CartID == cartID {
			out = append(out, *item)
		}
	}
	return out, nil
}

func (s *stubSeparationRepo) CreateItem(ctx context.Context, item *models.CartItem) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	s.items = append(s.items, item)
	return nil
}

func (s *stubSeparationRepo) UpdateItem(ctx context.Context, itemID uuid.UUID, updates map[string]any) error {
	item := s.item(itemID)
	if item == nil {
		return gorm.ErrRecordNotFound
	}
	for key, value := range updates {
		switch key {
		case "qty":
			item.Qty = value.(int)
		case "separated_qty":
			item.SeparatedQty = value.(int)
		case "pending_removal_qty":
			item.PendingRemovalQty = value.(int)
		case "removal_confirmed_qty":
			item.RemovalConfirmedQty = value.(int)
		case "was_separated_before_cancel":
			item.WasSeparatedBeforeCancel = value.(bool)
		case "status":
			item.Status = value.(enums.CartItemStatus)
		case "separation_status":
			item.SeparationStatus = value.(enums.SeparationItemStatus)
		}
	}
	return nil
}

func (s *stubSeparationRepo) UpdateCart(ctx context.Context, cartID uuid.UUID, updates map[string]any) error {
	cart := s.cart(cartID)
	if cart == nil {
		return gorm.ErrRecordNotFound
	}
	for key, value := range updates {
		switch key {
		case "separation_status":
			cart.SeparationStatus = value.(enums.SeparationBagStatus)
		case "needs_label_reprint":
			cart.NeedsReprint = value.(bool)
		}
	}
	return nil
}

func (s *stubSeparationRepo) CreateAttentionLog(ctx context.Context, log *models.AttentionLog) error {
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	s.logs = append(s.logs, log)
	return nil
}

func (s *stubSeparationRepo) FindAttentionLogForUpdate(ctx context.Context, logID uuid.UUID) (*models.AttentionLog, error) {
	for _, log := range s.logs {
		if log.ID == logID {
			return log, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubSeparationRepo) UpdateAttentionLog(ctx context.Context, logID uuid.UUID, updates map[string]any) error {
	log, err := s.FindAttentionLogForUpdate(ctx, logID)
	if err != nil {
		return err
	}
	for key, value := range updates {
		switch key {
		case "removed_from_origin":
			log.RemovedFromOrigin = value.(bool)
		case "placed_in_destination":
			log.PlacedInDestination = value.(bool)
		case "resolved_at":
			at := value.(time.Time)
			log.ResolvedAt = &at
		case "resolved_by":
			by := value.(uuid.UUID)
			log.ResolvedBy = &by
		}
	}
	return nil
}

func (s *stubSeparationRepo) CountUnresolvedAttention(ctx context.Context, cartID uuid.UUID) (int64, error) {
	var count int64
	for _, log := range s.logs {
		if log.CartID == cartID && !log.Resolved() {
			count++
		}
	}
	return count, nil
}

func (s *stubSeparationRepo) ListUnresolvedAttention(ctx context.Context, cartID uuid.UUID) ([]models.AttentionLog, error) {
	var out []models.AttentionLog
	for _, log := range s.logs {
		if log.CartID == cartID && !log.Resolved() {
			out = append(out, *log)
		}
	}
	return out, nil
}

func (s *stubSeparationRepo) ListAppliedGifts(ctx context.Context, cartID uuid.UUID) ([]models.AppliedGift, error) {
	var out []models.AppliedGift
	for _, gift := range s.gifts {
		if gift.CartID == cartID {
			out = append(out, *gift)
		}
	}
	return out, nil
}

func (s *stubSeparationRepo) UpdateAppliedGift(ctx context.Context, appliedGiftID uuid.UUID, updates map[string]any) error {
	for _, gift := range s.gifts {
		if gift.ID != appliedGiftID {
			continue
		}
		for key, value := range updates {
			switch key {
			case "status":
				gift.Status = value.(enums.AppliedGiftStatus)
			case "separation_confirmed":
				gift.SeparationConfirmed = value.(bool)
			}
		}
		return nil
	}
	return gorm.ErrRecordNotFound
}

type recordingOutbox struct {
	events []outbox.DomainEvent
	err    error
}

func (r *recordingOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, event)
	return nil
}

func (r *recordingOutbox) last() *outbox.DomainEvent {
	if len(r.events) == 0 {
		return nil
	}
	return &r.events[len(r.events)-1]
}

func (r *recordingOutbox) has(eventType enums.OutboxEventType) bool {
	for _, event := range r.events {
		if event.EventType == eventType {
			return true
		}
	}
	return false
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func intPtr(v int) *int { return &v }

func newBag(repo *stubSeparationRepo, bag int) *models.Cart {
	cart := &models.Cart{
		ID:               uuid.New(),
		LiveEventID:      uuid.New(),
		CustomerID:       uuid.New(),
		Status:           enums.CartStatusPaid,
		BagNumber:        intPtr(bag),
		SeparationStatus: enums.SeparationBagSeparating,
	}
	repo.carts = append(repo.carts, cart)
	return cart
}

func newItem(repo *stubSeparationRepo, cart *models.Cart, qty, separated int) *models.CartItem {
	item := &models.CartItem{
		ID:               uuid.New(),
		CartID:           cart.ID,
		ProductID:        uuid.New(),
		ProductName:      "Vestido Midi",
		Qty:              qty,
		SeparatedQty:     separated,
		Status:           enums.CartItemStatusConfirmed,
		SeparationStatus: enums.SeparationItemPending,
	}
	if separated >= qty {
		item.SeparationStatus = enums.SeparationItemSeparated
	}
	repo.items = append(repo.items, item)
	return item
}

func newSeparationService(t *testing.T, repo *stubSeparationRepo, sink *recordingOutbox) Service {
	t.Helper()
	svc, err := NewService(repo, stubTxRunner{}, sink, nil, nil)
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	return svc
}

func TestMarkUnitSeparatedProgressesLine(t *testing.T) {
	repo := &stubSeparationRepo{}
	cart := newBag(repo, 7)
	item := newItem(repo, cart, 2, 0)
	sink := &recordingOutbox{}
	svc := newSeparationService(t, repo, sink)

	got, err := svc.MarkUnitSeparated(context.Background(), item.ID, nil)
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if got.SeparatedQty != 1 || got.SeparationStatus != enums.SeparationItemPending {
		t.Fatalf("unexpected item state %+v", got)
	}
	if cart.SeparationStatus != enums.SeparationBagSeparating {
		t.Fatalf("unexpected bag status %s", cart.SeparationStatus)
	}
	if !sink.has(enums.EventUnitSeparated) {
		t.Fatal("expected unit separated event")
	}

	got, err = svc.MarkUnitSeparated(context.Background(), item.ID, nil)
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if got.SeparatedQty != 2 || got.SeparationStatus != enums.SeparationItemSeparated {
		t.Fatalf("unexpected item state %+v", got)
	}
	if cart.SeparationStatus != enums.SeparationBagSeparated {
		t.Fatalf("expected bag separated got %s", cart.SeparationStatus)
	}
}

func TestMarkUnitSeparatedIdempotentWhenFull(t *testing.T) {
	repo := &stubSeparationRepo{}
	cart := newBag(repo, 1)
	item := newItem(repo, cart, 1, 1)
	sink := &recordingOutbox{}
	svc := newSeparationService(t, repo, sink)

	got, err := svc.MarkUnitSeparated(context.Background(), item.ID, nil)
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if got.SeparatedQty != 1 {
		t.Fatalf("separated qty must not grow past total, got %d", got.SeparatedQty)
	}
	if len(sink.events) != 0 {
		t.Fatalf("no event expected on a no-op, got %d", len(sink.events))
	}
}

func TestMarkItemSeparatedFinishesRemainingUnits(t *testing.T) {
	repo := &stubSeparationRepo{}
	cart := newBag(repo, 3)
	item := newItem(repo, cart, 5, 2)
	sink := &recordingOutbox{}
	svc := newSeparationService(t, repo, sink)

	got, err := svc.MarkItemSeparated(context.Background(), item.ID, nil)
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if got.SeparatedQty != 5 || got.SeparationStatus != enums.SeparationItemSeparated {
		t.Fatalf("unexpected item state %+v", got)
	}
	if cart.SeparationStatus != enums.SeparationBagSeparated {
		t.Fatalf("expected bag separated got %s", cart.SeparationStatus)
	}
}

func TestCancelItemWithoutSeparatedUnits(t *testing.T) {
	repo := &stubSeparationRepo{}
	cart := newBag(repo, 4)
	item := newItem(repo, cart, 2, 0)
	newItem(repo, cart, 1, 0)
	sink := &recordingOutbox{}
	svc := newSeparationService(t, repo, sink)

	got, err := svc.CancelItem(context.Background(), item.ID, nil)
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if got.Status != enums.CartItemStatusCancelled || got.SeparationStatus != enums.SeparationItemCancelled {
		t.Fatalf("unexpected item state %+v", got)
	}
	if got.PendingRemovalQty != 0 || got.WasSeparatedBeforeCancel {
		t.Fatalf("no removal expected for unseparated units %+v", got)
	}
	if len(repo.logs) != 0 {
		t.Fatalf("no attention log expected, got %d", len(repo.logs))
	}
	if cart.SeparationStatus != enums.SeparationBagSeparating {
		t.Fatalf("unexpected bag status %s", cart.SeparationStatus)
	}
}

func TestCancelItemAfterSeparationCreatesAttention(t *testing.T) {
	repo := &stubSeparationRepo{}
	cart := newBag(repo, 9)
	printedAt := time.Now().Add(-time.Hour)
	cart.LabelPrintedAt = &printedAt
	item := newItem(repo, cart, 3, 2)
	newItem(repo, cart, 1, 0)
	sink := &recordingOutbox{}
	svc := newSeparationService(t, repo, sink)

	got, err := svc.CancelItem(context.Background(), item.ID, nil)
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if got.PendingRemovalQty != 2 || !got.WasSeparatedBeforeCancel {
		t.Fatalf("unexpected removal state %+v", got)
	}
	if len(repo.logs) != 1 {
		t.Fatalf("expected one attention log got %d", len(repo.logs))
	}
	log := repo.logs[0]
	if log.Kind != enums.AttentionCancellation || log.Qty != 2 || log.OriginBagNumber != 9 {
		t.Fatalf("unexpected attention log %+v", log)
	}
	if cart.SeparationStatus != enums.SeparationBagAttention {
		t.Fatalf("expected bag attention got %s", cart.SeparationStatus)
	}
	if !cart.NeedsReprint {
		t.Fatal("expected reprint flag after content change on printed label")
	}
}

func TestCancelLastItemCollapsesUncommittedBag(t *testing.T) {
	repo := &stubSeparationRepo{}
	cart := newBag(repo, 2)
	item := newItem(repo, cart, 1, 0)
	sink := &recordingOutbox{}
	svc := newSeparationService(t, repo, sink)

	if _, err := svc.CancelItem(context.Background(), item.ID, nil); err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if cart.SeparationStatus != enums.SeparationBagCancelled {
		t.Fatalf("expected bag cancelled got %s", cart.SeparationStatus)
	}
	if cart.NeedsReprint {
		t.Fatal("reprint flag must never be set before the first print")
	}
}

func TestReduceQuantityCreatesRemovalOverlap(t *testing.T) {
	repo := &stubSeparationRepo{}
	cart := newBag(repo, 5)
	item := newItem(repo, cart, 3, 3)
	sink := &recordingOutbox{}
	svc := newSeparationService(t, repo, sink)

	got, err := svc.ReduceQuantity(context.Background(), item.ID, 1, nil)
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if got.Qty != 1 || got.SeparatedQty != 1 || got.PendingRemovalQty != 2 {
		t.Fatalf("unexpected item state %+v", got)
	}
	if len(repo.logs) != 1 || repo.logs[0].Kind != enums.AttentionQuantityReduction {
		t.Fatalf("expected reduction attention log got %+v", repo.logs)
	}
	if cart.SeparationStatus != enums.SeparationBagAttention {
		t.Fatalf("expected bag attention got %s", cart.SeparationStatus)
	}
}

func TestReduceQuantityValidation(t *testing.T) {
	repo := &stubSeparationRepo{}
	cart := newBag(repo, 5)
	item := newItem(repo, cart, 2, 0)
	svc := newSeparationService(t, repo, &recordingOutbox{})

	if _, err := svc.ReduceQuantity(context.Background(), item.ID, 0, nil); err == nil {
		t.Fatal("expected validation error for zero quantity")
	}
	if _, err := svc.ReduceQuantity(context.Background(), item.ID, 5, nil); err == nil {
		t.Fatal("expected validation error for increase")
	}
	if cart.SeparationStatus != enums.SeparationBagSeparating {
		t.Fatalf("cart must be untouched, got %s", cart.SeparationStatus)
	}
}

func TestConfirmRemovalLifecycle(t *testing.T) {
	repo := &stubSeparationRepo{}
	cart := newBag(repo, 8)
	item := newItem(repo, cart, 2, 2)
	newItem(repo, cart, 1, 1)
	sink := &recordingOutbox{}
	svc := newSeparationService(t, repo, sink)

	if _, err := svc.CancelItem(context.Background(), item.ID, nil); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if cart.SeparationStatus != enums.SeparationBagAttention {
		t.Fatalf("expected bag attention got %s", cart.SeparationStatus)
	}

	got, err := svc.ConfirmRemoval(context.Background(), item.ID, nil)
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if got.RemovalConfirmedQty != 1 || got.OutstandingRemovals() != 1 {
		t.Fatalf("unexpected counters %+v", got)
	}
	if cart.SeparationStatus != enums.SeparationBagAttention {
		t.Fatalf("bag must stay blocked got %s", cart.SeparationStatus)
	}

	actor := &outbox.ActorRef{ActorID: uuid.New()}
	got, err = svc.ConfirmRemoval(context.Background(), item.ID, actor)
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if got.SeparationStatus != enums.SeparationItemWithdrawalConfirmed {
		t.Fatalf("expected withdrawal confirmed got %s", got.SeparationStatus)
	}
	if !repo.logs[0].Resolved() {
		t.Fatal("expected cancellation log auto-resolved with the last removal")
	}
	if cart.SeparationStatus != enums.SeparationBagSeparated {
		t.Fatalf("expected bag unblocked got %s", cart.SeparationStatus)
	}

	if _, err := svc.ConfirmRemoval(context.Background(), item.ID, nil); err == nil {
		t.Fatal("expected state conflict with nothing left to confirm")
	}
}

func TestUnconfirmRemovalReopensWithdrawal(t *testing.T) {
	repo := &stubSeparationRepo{}
	cart := newBag(repo, 6)
	item := &models.CartItem{
		ID:                  uuid.New(),
		CartID:              cart.ID,
		ProductName:         "Calça Jeans",
		Qty:                 1,
		Status:              enums.CartItemStatusCancelled,
		SeparationStatus:    enums.SeparationItemWithdrawalConfirmed,
		PendingRemovalQty:   1,
		RemovalConfirmedQty: 1,
	}
	repo.items = append(repo.items, item)
	newItem(repo, cart, 1, 0)
	svc := newSeparationService(t, repo, &recordingOutbox{})

	got, err := svc.UnconfirmRemoval(context.Background(), item.ID, nil)
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if got.RemovalConfirmedQty != 0 || got.SeparationStatus != enums.SeparationItemCancelled {
		t.Fatalf("unexpected item state %+v", got)
	}
	if cart.SeparationStatus != enums.SeparationBagAttention {
		t.Fatalf("expected bag blocked again got %s", cart.SeparationStatus)
	}

	_, err = svc.UnconfirmRemoval(context.Background(), got.ID, nil)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict got %v", err)
	}
}

func TestReallocateMovesSeparatedUnit(t *testing.T) {
	repo := &stubSeparationRepo{}
	origin := newBag(repo, 1)
	dest := newBag(repo, 2)
	dest.LiveEventID = origin.LiveEventID
	item := newItem(repo, origin, 2, 2)
	sink := &recordingOutbox{}
	svc := newSeparationService(t, repo, sink)

	log, err := svc.Reallocate(context.Background(), ReallocateInput{
		ItemID:            item.ID,
		DestinationCartID: dest.ID,
		Qty:               1,
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if item.Qty != 1 || item.SeparatedQty != 1 {
		t.Fatalf("unexpected origin item %+v", item)
	}
	moved := repo.items[len(repo.items)-1]
	if moved.CartID != dest.ID || moved.Qty != 1 || moved.SeparationStatus != enums.SeparationItemPending {
		t.Fatalf("unexpected destination item %+v", moved)
	}
	if log.Kind != enums.AttentionReallocation || log.DestinationCartID == nil || *log.DestinationCartID != dest.ID {
		t.Fatalf("unexpected attention log %+v", log)
	}
	if origin.SeparationStatus != enums.SeparationBagAttention {
		t.Fatalf("expected origin blocked got %s", origin.SeparationStatus)
	}
	if dest.SeparationStatus != enums.SeparationBagSeparating {
		t.Fatalf("expected destination separating got %s", dest.SeparationStatus)
	}
	if !sink.has(enums.EventReallocationCreated) {
		t.Fatal("expected reallocation created event")
	}
}

func TestReallocateRejectsUnseparatedUnits(t *testing.T) {
	repo := &stubSeparationRepo{}
	origin := newBag(repo, 1)
	dest := newBag(repo, 2)
	dest.LiveEventID = origin.LiveEventID
	item := newItem(repo, origin, 2, 0)
	svc := newSeparationService(t, repo, &recordingOutbox{})

	_, err := svc.Reallocate(context.Background(), ReallocateInput{
		ItemID:            item.ID,
		DestinationCartID: dest.ID,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict got %v", err)
	}
}

func TestReallocateRejectsCrossEventDestination(t *testing.T) {
	repo := &stubSeparationRepo{}
	origin := newBag(repo, 1)
	dest := newBag(repo, 2)
	item := newItem(repo, origin, 1, 1)
	svc := newSeparationService(t, repo, &recordingOutbox{})

	_, err := svc.Reallocate(context.Background(), ReallocateInput{
		ItemID:            item.ID,
		DestinationCartID: dest.ID,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error got %v", err)
	}
}

func TestResolveAttentionRejectsPlacedBeforeRemoved(t *testing.T) {
	repo := &stubSeparationRepo{}
	origin := newBag(repo, 1)
	dest := newBag(repo, 2)
	dest.LiveEventID = origin.LiveEventID
	item := newItem(repo, origin, 1, 1)
	svc := newSeparationService(t, repo, &recordingOutbox{})

	log, err := svc.Reallocate(context.Background(), ReallocateInput{
		ItemID:            item.ID,
		DestinationCartID: dest.ID,
	})
	if err != nil {
		t.Fatalf("reallocate failed: %v", err)
	}

	_, err = svc.ResolveAttention(context.Background(), ResolveAttentionInput{
		LogID:           log.ID,
		PlacedConfirmed: true,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict got %v", err)
	}
}

func TestResolveAttentionTwoStepFlow(t *testing.T) {
	repo := &stubSeparationRepo{}
	origin := newBag(repo, 1)
	dest := newBag(repo, 2)
	dest.LiveEventID = origin.LiveEventID
	item := newItem(repo, origin, 1, 1)
	sink := &recordingOutbox{}
	svc := newSeparationService(t, repo, sink)

	log, err := svc.Reallocate(context.Background(), ReallocateInput{
		ItemID:            item.ID,
		DestinationCartID: dest.ID,
	})
	if err != nil {
		t.Fatalf("reallocate failed: %v", err)
	}

	got, err := svc.ResolveAttention(context.Background(), ResolveAttentionInput{
		LogID:            log.ID,
		RemovedConfirmed: true,
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if got.Resolved() {
		t.Fatal("reallocation must not resolve before placement")
	}
	if origin.SeparationStatus != enums.SeparationBagAttention {
		t.Fatalf("origin must stay blocked got %s", origin.SeparationStatus)
	}

	actor := &outbox.ActorRef{ActorID: uuid.New(), Name: "Paula"}
	got, err = svc.ResolveAttention(context.Background(), ResolveAttentionInput{
		LogID:           log.ID,
		PlacedConfirmed: true,
		Actor:           actor,
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if !got.Resolved() || got.ResolvedBy == nil || *got.ResolvedBy != actor.ActorID {
		t.Fatalf("unexpected resolution %+v", got)
	}
	if !sink.has(enums.EventReallocationResolved) {
		t.Fatal("expected reallocation resolved event")
	}
	if origin.SeparationStatus == enums.SeparationBagAttention {
		t.Fatalf("origin must be unblocked got %s", origin.SeparationStatus)
	}

	again, err := svc.ResolveAttention(context.Background(), ResolveAttentionInput{LogID: log.ID, RemovedConfirmed: true})
	if err != nil {
		t.Fatalf("resolving a resolved log must be a no-op, got %v", err)
	}
	if again.ResolvedAt == nil {
		t.Fatal("resolution must stick")
	}
}

func TestResolveRemovalLogSyncsItemCounters(t *testing.T) {
	repo := &stubSeparationRepo{}
	cart := newBag(repo, 3)
	item := newItem(repo, cart, 2, 2)
	newItem(repo, cart, 1, 1)
	svc := newSeparationService(t, repo, &recordingOutbox{})

	if _, err := svc.CancelItem(context.Background(), item.ID, nil); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	log := repo.logs[0]

	got, err := svc.ResolveAttention(context.Background(), ResolveAttentionInput{
		LogID:            log.ID,
		RemovedConfirmed: true,
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if !got.Resolved() {
		t.Fatal("removal log must resolve on removed confirmation alone")
	}
	if item.OutstandingRemovals() != 0 || item.SeparationStatus != enums.SeparationItemWithdrawalConfirmed {
		t.Fatalf("counters must snap to confirmed %+v", item)
	}
	if cart.SeparationStatus != enums.SeparationBagSeparated {
		t.Fatalf("expected bag unblocked got %s", cart.SeparationStatus)
	}
}

func TestCompleteBagRefusesWhileBlocked(t *testing.T) {
	repo := &stubSeparationRepo{}
	cart := newBag(repo, 4)
	item := newItem(repo, cart, 2, 2)
	newItem(repo, cart, 1, 1)
	svc := newSeparationService(t, repo, &recordingOutbox{})

	if _, err := svc.CancelItem(context.Background(), item.ID, nil); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	_, err := svc.CompleteBag(context.Background(), cart.ID, nil)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict got %v", err)
	}
}

func TestCompleteBagRefusesWithUnseparatedUnits(t *testing.T) {
	repo := &stubSeparationRepo{}
	cart := newBag(repo, 4)
	newItem(repo, cart, 2, 1)
	svc := newSeparationService(t, repo, &recordingOutbox{})

	_, err := svc.CompleteBag(context.Background(), cart.ID, nil)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict got %v", err)
	}
}

func TestCompleteBagSucceeds(t *testing.T) {
	repo := &stubSeparationRepo{}
	cart := newBag(repo, 4)
	newItem(repo, cart, 2, 2)
	repo.gifts = append(repo.gifts, &models.AppliedGift{
		ID:                  uuid.New(),
		CartID:              cart.ID,
		GiftID:              uuid.New(),
		Qty:                 1,
		Status:              enums.AppliedGiftSeparated,
		SeparationConfirmed: true,
	})
	sink := &recordingOutbox{}
	svc := newSeparationService(t, repo, sink)

	got, err := svc.CompleteBag(context.Background(), cart.ID, nil)
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if got.SeparationStatus != enums.SeparationBagSeparated {
		t.Fatalf("expected separated got %s", got.SeparationStatus)
	}
	if !sink.has(enums.EventBagSeparated) {
		t.Fatal("expected bag separated event")
	}

	// second call is a no-op
	before := len(sink.events)
	if _, err := svc.CompleteBag(context.Background(), cart.ID, nil); err != nil {
		t.Fatalf("expected idempotent success got %v", err)
	}
	if len(sink.events) != before {
		t.Fatal("no event expected on repeat completion")
	}
}

func TestMarkBagSeparatedBulk(t *testing.T) {
	repo := &stubSeparationRepo{}
	cart := newBag(repo, 11)
	first := newItem(repo, cart, 3, 1)
	second := newItem(repo, cart, 2, 0)
	gift := &models.AppliedGift{
		ID:     uuid.New(),
		CartID: cart.ID,
		GiftID: uuid.New(),
		Qty:    1,
		Status: enums.AppliedGiftPendingSeparation,
	}
	repo.gifts = append(repo.gifts, gift)
	sink := &recordingOutbox{}
	svc := newSeparationService(t, repo, sink)

	got, err := svc.MarkBagSeparated(context.Background(), cart.ID, nil)
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if first.SeparatedQty != 3 || second.SeparatedQty != 2 {
		t.Fatalf("expected all units separated: %+v %+v", first, second)
	}
	if !gift.SeparationConfirmed || gift.Status != enums.AppliedGiftSeparated {
		t.Fatalf("expected gift confirmed %+v", gift)
	}
	if got.SeparationStatus != enums.SeparationBagSeparated {
		t.Fatalf("expected bag separated got %s", got.SeparationStatus)
	}
	if !sink.has(enums.EventBagSeparated) {
		t.Fatal("expected bag separated event")
	}
}

func TestMarkBagSeparatedRefusesWhileBlocked(t *testing.T) {
	repo := &stubSeparationRepo{}
	cart := newBag(repo, 11)
	item := newItem(repo, cart, 2, 2)
	newItem(repo, cart, 2, 0)
	svc := newSeparationService(t, repo, &recordingOutbox{})

	if _, err := svc.CancelItem(context.Background(), item.ID, nil); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	_, err := svc.MarkBagSeparated(context.Background(), cart.ID, nil)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict got %v", err)
	}
}
