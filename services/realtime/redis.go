package realtimesvc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/learnsmart/core"
)

// envelope is what travels through the Redis channel.
type envelope struct {
	UserID string          `json:"user_id"`
	Type   string          `json:"type"`
	Data   json.RawMessage `json:"data,omitempty"`
	SentAt time.Time       `json:"sent_at"`
}

// RedisBridge publishes events on a Redis channel and replays what it receives into the local Hub,
// so that a subscriber connected to any instance gets every event.
type RedisBridge struct {
	hub     *Hub
	client  *redis.Client
	channel string
	logger  core.Logger
}

func NewRedisBridge(hub *Hub, client *redis.Client, channel string, logger core.Logger) *RedisBridge {
	return &RedisBridge{hub: hub, client: client, channel: channel, logger: logger}
}

func (b *RedisBridge) Publish(ctx context.Context, userID, event string, payload interface{}) error {
	if userID == "" || event == "" {
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "encoding event data")
	}
	body, err := json.Marshal(envelope{UserID: userID, Type: event, Data: data, SentAt: time.Now().UTC()})
	if err != nil {
		return errors.Wrap(err, "encoding envelope")
	}
	return errors.Wrap(b.client.Publish(ctx, b.channel, body).Err(), "publishing event")
}

// Run forwards the channel's messages into the hub until ctx is done.
// ready, if not nil, is closed once the subscription is established.
func (b *RedisBridge) Run(ctx context.Context, ready chan<- struct{}) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return errors.Wrapf(err, "subscribing to %s", b.channel)
	}
	if ready != nil {
		close(ready)
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				b.logger.Warn(fmt.Sprintf("realtime: decoding message on %s", b.channel), err)
				continue
			}
			if env.UserID == "" || env.Type == "" {
				continue
			}
			b.hub.Broadcast(env.UserID, Event{Type: env.Type, Data: env.Data})
		}
	}
}
