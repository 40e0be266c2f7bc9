package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Store event types. Subscribers treat every event as "recompute the summary".
const (
	EventRegisterOpened      = "register.opened"
	EventRegisterTransaction = "register.transaction"
	EventRegisterClosed      = "register.closed"
	EventRegisterReopened    = "register.reopened"
	EventOrderChanged        = "order.changed"
)

// StoreEvent is published on the store's channel after every committed change.
type StoreEvent struct {
	Type       string    `json:"type"`
	StoreID    string    `json:"store_id"`
	RegisterID string    `json:"register_id,omitempty"`
	OrderID    string    `json:"order_id,omitempty"`
	At         time.Time `json:"at"`
}

// StoreChannel is the pub/sub channel of one store.
func StoreChannel(storeID string) string {
	return fmt.Sprintf("caixapdv:store:%s:events", storeID)
}

// EventBus fans store events out through Redis pub/sub so every API replica
// can push them to its own SSE clients.
type EventBus struct {
	rdb *redis.Client
}

func NewEventBus(rdb *redis.Client) *EventBus {
	return &EventBus{rdb: rdb}
}

func (b *EventBus) Publish(ctx context.Context, ev StoreEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, StoreChannel(ev.StoreID), payload).Err()
}

// Subscribe delivers the store's events until ctx is cancelled. The returned
// channel is closed when the subscription ends.
func (b *EventBus) Subscribe(ctx context.Context, storeID string) (<-chan StoreEvent, error) {
	ps := b.rdb.Subscribe(ctx, StoreChannel(storeID))
	// Wait for the subscription confirmation so no event published after
	// Subscribe returns is missed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	out := make(chan StoreEvent, 16)
	go func() {
		defer close(out)
		defer ps.Close()
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev StoreEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					log.Warn().Err(err).Str("channel", msg.Channel).Msg("events: dropping malformed payload")
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
