package scan

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lumehaus/liveshop-backend/pkg/db/models"
	"github.com/lumehaus/liveshop-backend/pkg/enums"
	pkgerrors "github.com/lumehaus/liveshop-backend/pkg/errors"
	"github.com/lumehaus/liveshop-backend/pkg/outbox"
)

type stubScanRepo struct {
	carts []*models.Cart
}

func (s *stubScanRepo) FindBag(ctx context.Context, liveEventID, cartID uuid.UUID) (*models.Cart, error) {
	for _, cart := range s.carts {
		if cart.ID == cartID && cart.LiveEventID == liveEventID {
			return cart, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

type stubSeparator struct {
	calls   []uuid.UUID
	failFor map[uuid.UUID]error
}

func (s *stubSeparator) MarkItemSeparated(ctx context.Context, itemID uuid.UUID, actor *outbox.ActorRef) (*models.CartItem, error) {
	s.calls = append(s.calls, itemID)
	if err, ok := s.failFor[itemID]; ok {
		return nil, err
	}
	return &models.CartItem{ID: itemID}, nil
}

func intPtr(v int) *int { return &v }

func seedScanBag(repo *stubScanRepo, eventID uuid.UUID, bagNumber int, items ...models.CartItem) *models.Cart {
	cart := &models.Cart{
		ID:          uuid.New(),
		LiveEventID: eventID,
		Status:      enums.CartStatusPaid,
		BagNumber:   intPtr(bagNumber),
		Items:       items,
	}
	repo.carts = append(repo.carts, cart)
	return cart
}

func newScanService(t *testing.T, repo *stubScanRepo, sep *stubSeparator) Service {
	t.Helper()
	svc, err := NewService(repo, sep, NewTrail(10), nil, nil)
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	return svc
}

func TestParseBagRef(t *testing.T) {
	id := uuid.New()
	cases := []struct {
		name    string
		payload string
		want    uuid.UUID
		ok      bool
	}{
		{"url path", "https://liveshop.app/bags/" + id.String(), id, true},
		{"bare path", "/bags/" + id.String(), id, true},
		{"uppercase", "/BAGS/" + id.String(), id, true},
		{"legacy json", `{"bagId":"` + id.String() + `"}`, id, true},
		{"garbage", "hello world", uuid.Nil, false},
		{"empty", "", uuid.Nil, false},
		{"bad uuid in json", `{"bagId":"nope"}`, uuid.Nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ParseBagRef(tc.payload)
			if ok != tc.ok || got != tc.want {
				t.Fatalf("ParseBagRef(%q) = %s, %v", tc.payload, got, ok)
			}
		})
	}
}

func TestHandleSeparatesPendingUnits(t *testing.T) {
	eventID := uuid.New()
	repo := &stubScanRepo{}
	cart := seedScanBag(repo, eventID, 7,
		models.CartItem{ID: uuid.New(), Qty: 2, SeparatedQty: 1, Status: enums.CartItemStatusConfirmed},
		models.CartItem{ID: uuid.New(), Qty: 1, Status: enums.CartItemStatusReserved},
	)
	sep := &stubSeparator{}
	svc := newScanService(t, repo, sep)

	outcome, err := svc.Handle(context.Background(), eventID, "/bags/"+cart.ID.String(), nil)
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if outcome.Result != enums.ScanSuccess || outcome.Units != 2 {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	if outcome.BagNumber != 7 {
		t.Fatalf("unexpected bag number %d", outcome.BagNumber)
	}
	if len(sep.calls) != 2 {
		t.Fatalf("expected both items transitioned, got %d calls", len(sep.calls))
	}
	trail := svc.Trail()
	if len(trail) != 1 || trail[0].Result != enums.ScanSuccess || trail[0].Units != 2 {
		t.Fatalf("unexpected trail %+v", trail)
	}
}

func TestHandleAlreadyDoneIsIdempotent(t *testing.T) {
	eventID := uuid.New()
	repo := &stubScanRepo{}
	cart := seedScanBag(repo, eventID, 3,
		models.CartItem{ID: uuid.New(), Qty: 2, SeparatedQty: 2, Status: enums.CartItemStatusConfirmed},
	)
	sep := &stubSeparator{}
	svc := newScanService(t, repo, sep)

	outcome, err := svc.Handle(context.Background(), eventID, "/bags/"+cart.ID.String(), nil)
	if err != nil {
		t.Fatalf("expected clean outcome got %v", err)
	}
	if outcome.Result != enums.ScanAlreadyDone {
		t.Fatalf("expected already_done got %s", outcome.Result)
	}
	if len(sep.calls) != 0 {
		t.Fatal("done bag must not trigger transitions")
	}
}

func TestHandleUnparseablePayload(t *testing.T) {
	repo := &stubScanRepo{}
	sep := &stubSeparator{}
	svc := newScanService(t, repo, sep)

	outcome, err := svc.Handle(context.Background(), uuid.New(), "not a qr code", nil)
	if err != nil {
		t.Fatalf("expected clean outcome got %v", err)
	}
	if outcome.Result != enums.ScanNotFound {
		t.Fatalf("expected not_found got %s", outcome.Result)
	}
	if len(sep.calls) != 0 {
		t.Fatal("no store mutation expected")
	}
	trail := svc.Trail()
	if len(trail) != 1 || trail[0].Result != enums.ScanNotFound {
		t.Fatalf("trail must record the miss, got %+v", trail)
	}
}

func TestHandleBagFromAnotherEvent(t *testing.T) {
	repo := &stubScanRepo{}
	cart := seedScanBag(repo, uuid.New(), 1,
		models.CartItem{ID: uuid.New(), Qty: 1, Status: enums.CartItemStatusConfirmed},
	)
	sep := &stubSeparator{}
	svc := newScanService(t, repo, sep)

	outcome, err := svc.Handle(context.Background(), uuid.New(), "/bags/"+cart.ID.String(), nil)
	if err != nil {
		t.Fatalf("expected clean outcome got %v", err)
	}
	if outcome.Result != enums.ScanNotFound {
		t.Fatalf("scanner is event scoped, expected not_found got %s", outcome.Result)
	}
}

func TestHandleClosedCart(t *testing.T) {
	eventID := uuid.New()
	repo := &stubScanRepo{}
	cart := seedScanBag(repo, eventID, 4,
		models.CartItem{ID: uuid.New(), Qty: 1, Status: enums.CartItemStatusConfirmed},
	)
	cart.Status = enums.CartStatusCancelled
	svc := newScanService(t, repo, &stubSeparator{})

	outcome, err := svc.Handle(context.Background(), eventID, "/bags/"+cart.ID.String(), nil)
	if err != nil {
		t.Fatalf("expected clean outcome got %v", err)
	}
	if outcome.Result != enums.ScanNotFound {
		t.Fatalf("expected not_found got %s", outcome.Result)
	}
}

func TestHandleKeepsPartialProgress(t *testing.T) {
	eventID := uuid.New()
	repo := &stubScanRepo{}
	bad := models.CartItem{ID: uuid.New(), Qty: 1, Status: enums.CartItemStatusConfirmed}
	good := models.CartItem{ID: uuid.New(), Qty: 2, Status: enums.CartItemStatusConfirmed}
	cart := seedScanBag(repo, eventID, 9, bad, good)
	sep := &stubSeparator{failFor: map[uuid.UUID]error{bad.ID: errors.New("row lock timeout")}}
	svc := newScanService(t, repo, sep)

	outcome, err := svc.Handle(context.Background(), eventID, "/bags/"+cart.ID.String(), nil)
	if err != nil {
		t.Fatalf("partial progress must still succeed, got %v", err)
	}
	if outcome.Result != enums.ScanSuccess || outcome.Units != 2 {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
}

func TestHandleAllFailuresIsRetryable(t *testing.T) {
	eventID := uuid.New()
	repo := &stubScanRepo{}
	item := models.CartItem{ID: uuid.New(), Qty: 1, Status: enums.CartItemStatusConfirmed}
	cart := seedScanBag(repo, eventID, 2, item)
	sep := &stubSeparator{failFor: map[uuid.UUID]error{item.ID: errors.New("connection reset")}}
	svc := newScanService(t, repo, sep)

	_, err := svc.Handle(context.Background(), eventID, "/bags/"+cart.ID.String(), nil)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error got %v", err)
	}
}

func TestTrailEvictionAndReset(t *testing.T) {
	trail := NewTrail(2)
	trail.Append(TrailEntry{BagNumber: 1})
	trail.Append(TrailEntry{BagNumber: 2})
	trail.Append(TrailEntry{BagNumber: 3})

	entries := trail.Entries()
	if len(entries) != 2 || entries[0].BagNumber != 3 || entries[1].BagNumber != 2 {
		t.Fatalf("unexpected entries %+v", entries)
	}

	trail.Reset()
	if len(trail.Entries()) != 0 {
		t.Fatal("reset must clear the trail")
	}
}
