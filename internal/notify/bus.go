//go:generate go run go.uber.org/mock/mockgen -source=bus.go -destination=../../mocks/mock_bus.go -package=mocks

// Package notify carries payload-free "data changed" signals between server
// instances. Receivers re-query state; a notification never carries data.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Kind names what changed. Wire values are shared with existing clients.
type Kind string

const (
	MessagesUpdated Kind = "messagesUpdated"
	UsersUpdated    Kind = "activeUsersUpdated"
)

var (
	ErrUnknownKind       = errors.New("unknown notification kind")
	ErrAlreadySubscribed = errors.New("bus already has a subscriber")
)

// Notification is the only message exchanged on the bus.
type Notification struct {
	Type Kind `json:"type"`
}

// Encode serializes n for the wire.
func Encode(n Notification) ([]byte, error) {
	if !n.Type.valid() {
		return nil, fmt.Errorf("encode %q: %w", n.Type, ErrUnknownKind)
	}
	return json.Marshal(n)
}

// Decode parses a wire payload.
func Decode(data []byte) (Notification, error) {
	var n Notification
	if err := json.Unmarshal(data, &n); err != nil {
		return Notification{}, fmt.Errorf("decode notification: %w", err)
	}
	if !n.Type.valid() {
		return Notification{}, fmt.Errorf("decode %q: %w", n.Type, ErrUnknownKind)
	}
	return n, nil
}

func (k Kind) valid() bool {
	return k == MessagesUpdated || k == UsersUpdated
}

// Handler receives notifications. It must be idempotent: delivery is at-least-once.
type Handler func(ctx context.Context, n Notification)

// Bus is a cross-instance publish/subscribe channel.
// Each instance registers exactly one handler.
type Bus interface {
	Publish(ctx context.Context, n Notification) error
	Subscribe(ctx context.Context, h Handler) error
	Close() error
}

// Publisher emits notifications without reporting failures to the caller.
type Publisher interface {
	Notify(ctx context.Context, kind Kind)
}
