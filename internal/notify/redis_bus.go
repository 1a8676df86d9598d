package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// DefaultRedisChannel is the channel every instance publishes to and listens on.
const DefaultRedisChannel = "room:events"

// RedisBus implements Bus on Redis PUBLISH/SUBSCRIBE.
type RedisBus struct {
	rdb     redis.UniversalClient
	channel string

	mu     sync.Mutex
	pubsub *redis.PubSub
	done   chan struct{}
}

// NewRedisBus creates a RedisBus on channel.
func NewRedisBus(rdb redis.UniversalClient, channel string) *RedisBus {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return &RedisBus{rdb: rdb, channel: channel}
}

// Publish sends n on the channel.
func (b *RedisBus) Publish(ctx context.Context, n Notification) error {
	data, err := Encode(n)
	if err != nil {
		return err
	}
	if err := b.rdb.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", b.channel, err)
	}
	return nil
}

// Subscribe blocks until Redis confirms the subscription, then delivers
// messages to h on a background goroutine until ctx ends or Close is called.
func (b *RedisBus) Subscribe(ctx context.Context, h Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pubsub != nil {
		return ErrAlreadySubscribed
	}

	ps := b.rdb.Subscribe(ctx, b.channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return fmt.Errorf("subscribe to %s: %w", b.channel, err)
	}
	b.pubsub = ps
	b.done = make(chan struct{})

	go b.listen(ctx, ps.Channel(), h, b.done)
	log.Info().Str("channel", b.channel).Msg("Subscribed to notification channel")
	return nil
}

func (b *RedisBus) listen(ctx context.Context, ch <-chan *redis.Message, h Handler, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			n, err := Decode([]byte(msg.Payload))
			if err != nil {
				log.Warn().Err(err).Str("channel", msg.Channel).Msg("Dropping undecodable notification")
				continue
			}
			h(ctx, n)
		}
	}
}

// Close ends the subscription, if any.
func (b *RedisBus) Close() error {
	b.mu.Lock()
	ps, done := b.pubsub, b.done
	b.pubsub = nil
	b.mu.Unlock()

	if ps == nil {
		return nil
	}
	err := ps.Close()
	<-done
	return err
}
