package changefeed

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterRelevant(t *testing.T) {
	change := Change{Table: "cart_items", Op: OpUpdate, RowID: uuid.New()}

	assert.True(t, Filter{}.Relevant(change), "empty filter matches everything")
	assert.True(t, Filter{Tables: []string{"carts", "cart_items"}}.Relevant(change))
	assert.False(t, Filter{Tables: []string{"gifts"}}.Relevant(change))
	assert.False(t, Filter{}.Relevant(Change{}), "missing table is never relevant")
}

func TestReduceCoalescesRelevantChanges(t *testing.T) {
	filter := Filter{Tables: []string{"carts", "cart_items"}}

	state := State{}
	state = Reduce(state, Change{Table: "cart_items", Op: OpUpdate}, filter)
	state = Reduce(state, Change{Table: "gifts", Op: OpInsert}, filter)
	state = Reduce(state, Change{Table: "carts", Op: OpUpdate}, filter)

	assert.True(t, state.Dirty)
	assert.Equal(t, 2, state.Coalesced, "irrelevant change must not count")
	assert.Equal(t, "carts", state.LastTable)
}

func TestReduceLeavesCleanStateForIrrelevantChange(t *testing.T) {
	filter := Filter{Tables: []string{"carts"}}
	state := Reduce(State{}, Change{Table: "attention_logs", Op: OpInsert}, filter)
	assert.False(t, state.Dirty)
	assert.Zero(t, state.Coalesced)
}

type fakePublisher struct {
	channel string
	payload []byte
	err     error
}

func (f *fakePublisher) Publish(_ context.Context, channel string, payload any) error {
	f.channel = channel
	if raw, ok := payload.([]byte); ok {
		f.payload = raw
	}
	return f.err
}

func (f *fakePublisher) ChangefeedChannel(liveEventID string) string {
	return "ls:changefeed:" + liveEventID
}

func TestNotifierPublishesOnEventChannel(t *testing.T) {
	pub := &fakePublisher{}
	notifier := NewNotifier(pub, nil)

	eventID := uuid.New()
	rowID := uuid.New()
	notifier.Notify(context.Background(), Change{
		Table:       "carts",
		Op:          OpUpdate,
		LiveEventID: eventID,
		RowID:       rowID,
	})

	require.Equal(t, "ls:changefeed:"+eventID.String(), pub.channel)

	var decoded Change
	require.NoError(t, json.Unmarshal(pub.payload, &decoded))
	assert.Equal(t, "carts", decoded.Table)
	assert.Equal(t, OpUpdate, decoded.Op)
	assert.Equal(t, rowID, decoded.RowID)
}

func TestNotifierSwallowsPublishErrors(t *testing.T) {
	pub := &fakePublisher{err: assert.AnError}
	notifier := NewNotifier(pub, nil)
	notifier.Notify(context.Background(), Change{Table: "carts", Op: OpInsert, LiveEventID: uuid.New()})
	// no panic, no error surfaced
}

func TestNilNotifierIsSafe(t *testing.T) {
	var notifier *Notifier
	notifier.Notify(context.Background(), Change{Table: "carts"})
}
