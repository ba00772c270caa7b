package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Redis relays events through a pub/sub channel so several server
// instances share one live view.
type Redis struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

func NewRedis(client *redis.Client, channel string, logger *zap.Logger) *Redis {
	return &Redis{client: client, channel: channel, logger: logger}
}

func (b *Redis) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

func (b *Redis) Subscribe(ctx context.Context) (<-chan Event, func(), error) {
	pubsub := b.client.Subscribe(ctx, b.channel)

	// Wait for the subscription confirmation so no publish after return is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, nil, fmt.Errorf("subscribe %s: %w", b.channel, err)
	}

	out := make(chan Event, 1)
	done := make(chan struct{})

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			pubsub.Close()
		})
	}

	go func() {
		defer close(out)
		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				cancel()
				return
			case <-done:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					b.logger.Warn("dropping malformed change event", zap.String("channel", msg.Channel), zap.Error(err))
					continue
				}
				offer(out, ev)
			}
		}
	}()

	return out, cancel, nil
}

// Close is a no-op; the client is owned by the caller.
func (b *Redis) Close() error {
	return nil
}
