package changefeed

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"

	"github.com/lumehaus/liveshop-backend/pkg/config"
	"github.com/lumehaus/liveshop-backend/pkg/logger"
)

type subscriberClient interface {
	Subscribe(ctx context.Context, channels ...string) (*goredis.PubSub, error)
	ChangefeedChannel(liveEventID string) string
}

// Feed hands out debounced per-event subscriptions over Redis pub/sub.
type Feed struct {
	client   subscriberClient
	debounce time.Duration
	buffer   int
	logg     *logger.Logger
}

// NewFeed builds a feed with the configured debounce window.
func NewFeed(client subscriberClient, cfg config.ChangefeedConfig, logg *logger.Logger) (*Feed, error) {
	if client == nil {
		return nil, errors.New("redis client required")
	}
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = 250 * time.Millisecond
	}
	buffer := cfg.BufferSize
	if buffer <= 0 {
		buffer = 32
	}
	return &Feed{client: client, debounce: debounce, buffer: buffer, logg: logg}, nil
}

// Subscription delivers refetch signals until Close or context cancellation.
type Subscription struct {
	C      <-chan Signal
	cancel context.CancelFunc
}

// Close stops delivery. Safe to call more than once.
func (s *Subscription) Close() {
	if s != nil && s.cancel != nil {
		s.cancel()
	}
}

// Subscribe opens a filtered subscription for one live event. Relevant
// changes arriving within the debounce window are coalesced into a single
// signal.
func (f *Feed) Subscribe(ctx context.Context, liveEventID string, filter Filter) (*Subscription, error) {
	if liveEventID == "" {
		return nil, errors.New("live event id required")
	}
	channel := f.client.ChangefeedChannel(liveEventID)
	pubsub, err := f.client.Subscribe(ctx, channel)
	if err != nil {
		return nil, err
	}

	subCtx, cancel := context.WithCancel(ctx)
	out := make(chan Signal, f.buffer)

	go f.pump(subCtx, pubsub, filter, out)

	return &Subscription{C: out, cancel: cancel}, nil
}

func (f *Feed) pump(ctx context.Context, pubsub *goredis.PubSub, filter Filter, out chan<- Signal) {
	defer close(out)
	defer func() { _ = pubsub.Close() }()

	var (
		state State
		timer *time.Timer
		fire  <-chan time.Time
	)

	msgs := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case <-fire:
			f.deliver(out, &state)
			fire = nil
		case msg, ok := <-msgs:
			if !ok {
				// pubsub dropped; try to re-establish before giving up
				reconnected := f.resync(ctx, pubsub)
				if !reconnected {
					if state.Dirty {
						f.deliver(out, &state)
					}
					return
				}
				msgs = pubsub.Channel()
				continue
			}
			var change Change
			if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
				if f.logg != nil {
					f.logg.Error(ctx, "decode changefeed payload", err)
				}
				continue
			}
			next := Reduce(state, change, filter)
			if next.Dirty && !state.Dirty {
				if timer == nil {
					timer = time.NewTimer(f.debounce)
				} else {
					timer.Reset(f.debounce)
				}
				fire = timer.C
			}
			state = next
		}
	}
}

func (f *Feed) deliver(out chan<- Signal, state *State) {
	if !state.Dirty {
		return
	}
	signal := Signal{Coalesced: state.Coalesced, LastTable: state.LastTable, At: time.Now()}
	select {
	case out <- signal:
	default:
		// slow consumer; the next signal carries fresh state anyway
	}
	*state = State{}
}

func (f *Feed) resync(ctx context.Context, pubsub *goredis.PubSub) bool {
	backoff := retry.WithMaxRetries(5, retry.NewExponential(100*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := pubsub.Ping(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil && f.logg != nil {
		f.logg.Error(ctx, "changefeed resync failed", err)
	}
	return err == nil
}
