package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// DefaultNATSSubject is used when no subject is configured.
const DefaultNATSSubject = "chat.events"

// NATSBus implements Bus on NATS core subjects. No queue group is used:
// every instance must see every notification.
type NATSBus struct {
	nc      *nats.Conn
	subject string

	mu  sync.Mutex
	sub *nats.Subscription
}

// NewNATSBus creates a NATSBus on subject.
func NewNATSBus(nc *nats.Conn, subject string) *NATSBus {
	if subject == "" {
		subject = DefaultNATSSubject
	}
	return &NATSBus{nc: nc, subject: subject}
}

// Publish sends n on the subject.
func (b *NATSBus) Publish(_ context.Context, n Notification) error {
	data, err := Encode(n)
	if err != nil {
		return err
	}
	if err := b.nc.Publish(b.subject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", b.subject, err)
	}
	return nil
}

// Subscribe delivers every message on the subject to h.
func (b *NATSBus) Subscribe(ctx context.Context, h Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sub != nil {
		return ErrAlreadySubscribed
	}

	sub, err := b.nc.Subscribe(b.subject, func(msg *nats.Msg) {
		n, err := Decode(msg.Data)
		if err != nil {
			log.Warn().Err(err).Str("subject", msg.Subject).Msg("Dropping undecodable notification")
			return
		}
		h(ctx, n)
	})
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", b.subject, err)
	}
	if err := b.nc.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return fmt.Errorf("flush subscription to %s: %w", b.subject, err)
	}
	b.sub = sub

	log.Info().Str("subject", b.subject).Msg("Subscribed to notification subject")
	return nil
}

// Close drops the subscription. The connection belongs to the caller.
func (b *NATSBus) Close() error {
	b.mu.Lock()
	sub := b.sub
	b.sub = nil
	b.mu.Unlock()

	if sub == nil {
		return nil
	}
	return sub.Unsubscribe()
}
