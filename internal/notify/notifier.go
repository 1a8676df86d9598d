package notify

import (
	"context"

	"github.com/duynhne/chat-service/internal/metrics"
	pkgzerolog "github.com/duynhne/chat-service/pkg/logger/zerolog"
)

// Notifier publishes on a Bus and swallows failures.
// State changes are committed before Notify is called; a lost signal only
// delays when peers notice them.
type Notifier struct {
	bus Bus
}

// NewNotifier creates a Notifier publishing on bus.
func NewNotifier(bus Bus) *Notifier {
	return &Notifier{bus: bus}
}

// Notify publishes kind, logging and counting failures.
func (n *Notifier) Notify(ctx context.Context, kind Kind) {
	err := n.bus.Publish(ctx, Notification{Type: kind})
	if err != nil {
		metrics.NotificationsFailed.WithLabelValues(string(kind)).Inc()
		pkgzerolog.FromContext(ctx).Warn().Err(err).Str("kind", string(kind)).Msg("Notification publish failed")
		return
	}
	metrics.NotificationsPublished.WithLabelValues(string(kind)).Inc()
}
