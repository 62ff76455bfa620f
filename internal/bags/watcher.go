package bags

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/lumehaus/liveshop-backend/internal/changefeed"
	"github.com/lumehaus/liveshop-backend/pkg/db/models"
	"github.com/lumehaus/liveshop-backend/pkg/enums"
	pkgerrors "github.com/lumehaus/liveshop-backend/pkg/errors"
	"github.com/lumehaus/liveshop-backend/pkg/logger"
	"github.com/lumehaus/liveshop-backend/pkg/outbox"
)

const defaultWatchRefresh = 15 * time.Second

type feedSubscriber interface {
	Subscribe(ctx context.Context, liveEventID string, filter changefeed.Filter) (*changefeed.Subscription, error)
}

type bagAssigner interface {
	AssignNext(ctx context.Context, cartID uuid.UUID, actor *outbox.ActorRef) (*BagView, error)
}

type watcherRepo interface {
	ListLiveEventsByStatus(ctx context.Context, status enums.LiveEventStatus) ([]models.LiveEvent, error)
	ListUnnumberedActiveCarts(ctx context.Context, eventID uuid.UUID) ([]models.Cart, error)
}

// WatcherParams configure the cart assignment watcher.
type WatcherParams struct {
	Logger  *logger.Logger
	Feed    feedSubscriber
	Bags    bagAssigner
	Repo    watcherRepo
	Refresh time.Duration
}

// Watcher numbers carts that appear mid-event. It follows the change feed of
// every live event and sweeps unnumbered carts whenever the cart set changes.
type Watcher struct {
	logg    *logger.Logger
	feed    feedSubscriber
	bags    bagAssigner
	repo    watcherRepo
	refresh time.Duration
	subs    map[uuid.UUID]*changefeed.Subscription
}

// NewWatcher builds a watcher.
func NewWatcher(params WatcherParams) (*Watcher, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Feed == nil {
		return nil, errors.New("change feed is required")
	}
	if params.Bags == nil {
		return nil, errors.New("bag assigner is required")
	}
	if params.Repo == nil {
		return nil, errors.New("repository is required")
	}
	refresh := params.Refresh
	if refresh <= 0 {
		refresh = defaultWatchRefresh
	}
	return &Watcher{
		logg:    params.Logger,
		feed:    params.Feed,
		bags:    params.Bags,
		repo:    params.Repo,
		refresh: refresh,
		subs:    make(map[uuid.UUID]*changefeed.Subscription),
	}, nil
}

// Run follows live events until the context is canceled.
func (w *Watcher) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	defer w.closeAll()

	w.refreshSubscriptions(ctx)
	ticker := time.NewTicker(w.refresh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logg.Info(ctx, "cart watcher context canceled")
			return ctx.Err()
		case <-ticker.C:
			w.refreshSubscriptions(ctx)
		}
	}
}

func (w *Watcher) refreshSubscriptions(ctx context.Context) {
	events, err := w.repo.ListLiveEventsByStatus(ctx, enums.LiveEventLive)
	if err != nil {
		w.logg.Error(ctx, "failed to list live events", err)
		return
	}

	active := make(map[uuid.UUID]struct{}, len(events))
	for _, event := range events {
		active[event.ID] = struct{}{}
		if _, ok := w.subs[event.ID]; ok {
			continue
		}
		sub, err := w.feed.Subscribe(ctx, event.ID.String(), changefeed.Filter{Tables: []string{"carts"}})
		if err != nil {
			w.logg.Error(ctx, "failed to subscribe to event feed", err)
			continue
		}
		w.subs[event.ID] = sub
		go w.follow(ctx, event.ID, sub)
		// carts created before the subscription opened
		w.sweep(ctx, event.ID)
	}

	for eventID, sub := range w.subs {
		if _, ok := active[eventID]; ok {
			continue
		}
		sub.Close()
		delete(w.subs, eventID)
	}
}

func (w *Watcher) follow(ctx context.Context, eventID uuid.UUID, sub *changefeed.Subscription) {
	logCtx := w.logg.WithField(ctx, "live_event_id", eventID.String())
	for range sub.C {
		w.sweep(logCtx, eventID)
	}
}

// sweep assigns bag numbers to every unnumbered active cart of the event.
func (w *Watcher) sweep(ctx context.Context, eventID uuid.UUID) {
	carts, err := w.repo.ListUnnumberedActiveCarts(ctx, eventID)
	if err != nil {
		w.logg.Error(ctx, "failed to list unnumbered carts", err)
		return
	}
	for _, cart := range carts {
		if _, err := w.bags.AssignNext(ctx, cart.ID, nil); err != nil {
			if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeStateConflict {
				continue
			}
			logCtx := w.logg.WithField(ctx, "cart_id", cart.ID.String())
			w.logg.Error(logCtx, "failed to assign bag number", err)
		}
	}
}

func (w *Watcher) closeAll() {
	for eventID, sub := range w.subs {
		sub.Close()
		delete(w.subs, eventID)
	}
}
