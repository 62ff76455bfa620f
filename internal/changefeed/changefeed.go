package changefeed

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/lumehaus/liveshop-backend/pkg/logger"
)

// Op names the mutation kind carried by a change notification.
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Change is the notification repositories publish after a committed write.
type Change struct {
	Table       string    `json:"table"`
	Op          Op        `json:"op"`
	LiveEventID uuid.UUID `json:"live_event_id"`
	RowID       uuid.UUID `json:"row_id"`
}

// Filter restricts a subscription to the tables a view cares about.
// An empty table list matches everything.
type Filter struct {
	Tables []string
}

// Relevant reports whether the change affects a view described by the filter.
func (f Filter) Relevant(change Change) bool {
	if change.Table == "" {
		return false
	}
	if len(f.Tables) == 0 {
		return true
	}
	for _, table := range f.Tables {
		if table == change.Table {
			return true
		}
	}
	return false
}

// State accumulates relevant changes between refetch signals.
type State struct {
	Dirty     bool
	Coalesced int
	LastTable string
}

// Reduce folds one change into the pending state. Irrelevant changes leave
// the state untouched.
func Reduce(state State, change Change, filter Filter) State {
	if !filter.Relevant(change) {
		return state
	}
	state.Dirty = true
	state.Coalesced++
	state.LastTable = change.Table
	return state
}

// Signal tells a subscriber its view is stale and should be refetched.
type Signal struct {
	Coalesced int
	LastTable string
	At        time.Time
}

type publisher interface {
	Publish(ctx context.Context, channel string, payload any) error
	ChangefeedChannel(liveEventID string) string
}

// Notifier publishes change notifications after commit. Publish failures are
// logged, never surfaced: the write already committed.
type Notifier struct {
	client publisher
	logg   *logger.Logger
}

func NewNotifier(client publisher, logg *logger.Logger) *Notifier {
	return &Notifier{client: client, logg: logg}
}

// Notify publishes the change on the live event's channel.
func (n *Notifier) Notify(ctx context.Context, change Change) {
	if n == nil || n.client == nil {
		return
	}
	payload, err := json.Marshal(change)
	if err != nil {
		if n.logg != nil {
			n.logg.Error(ctx, "marshal changefeed notification", err)
		}
		return
	}
	channel := n.client.ChangefeedChannel(change.LiveEventID.String())
	if err := n.client.Publish(ctx, channel, payload); err != nil && n.logg != nil {
		n.logg.Error(ctx, "publish changefeed notification", err)
	}
}
