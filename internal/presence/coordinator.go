// Package presence tracks which users are online across server instances
// and turns transport lifecycle events into JOIN/LEAVE log entries.
package presence

import (
	"context"
	"fmt"

	"github.com/moby/locker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/duynhne/chat-service/internal/core/domain"
	"github.com/duynhne/chat-service/internal/metrics"
	"github.com/duynhne/chat-service/internal/notify"
	"github.com/duynhne/chat-service/middleware"
	pkgzerolog "github.com/duynhne/chat-service/pkg/logger/zerolog"
)

// EventKind is a transport lifecycle event.
type EventKind int

const (
	EventConnect EventKind = iota
	EventSubscribe
	EventUnsubscribe
	EventDisconnect
)

func (k EventKind) String() string {
	switch k {
	case EventConnect:
		return "connect"
	case EventSubscribe:
		return "subscribe"
	case EventUnsubscribe:
		return "unsubscribe"
	case EventDisconnect:
		return "disconnect"
	}
	return "unknown"
}

// Event is one message delivered by the transport layer.
// UserID is only meaningful for EventConnect, Destination for (un)subscribe.
type Event struct {
	Kind        EventKind
	SessionID   string
	UserID      int64
	Destination string
}

// transitions lists the events each session state accepts and the state
// reached. Events missing from a row are ignored.
var transitions = map[State]map[EventKind]State{
	Disconnected: {
		EventConnect: Connected,
	},
	Connected: {
		EventConnect:     Connected,
		EventSubscribe:   Subscribed,
		EventUnsubscribe: Connected,
		EventDisconnect:  Disconnected,
	},
	Subscribed: {
		EventConnect:     Subscribed,
		EventSubscribe:   Subscribed,
		EventUnsubscribe: Subscribed,
		EventDisconnect:  Disconnected,
	},
}

// Coordinator applies lifecycle events to the session directory, the
// presence registry and the message log.
type Coordinator struct {
	sessions  *Directory
	users     domain.UserRepository
	messages  domain.MessageRepository
	registry  Registry
	publisher notify.Publisher
	locks     *locker.Locker
}

// NewCoordinator creates a Coordinator over the given session directory.
func NewCoordinator(sessions *Directory, users domain.UserRepository, messages domain.MessageRepository, registry Registry, publisher notify.Publisher) *Coordinator {
	return &Coordinator{
		sessions:  sessions,
		users:     users,
		messages:  messages,
		registry:  registry,
		publisher: publisher,
		locks:     locker.New(),
	}
}

// Handle applies ev. Events for one session are serialized; events for
// different sessions run concurrently. Missing users and sessions are logged
// and skipped; store or registry failures are returned unretried.
func (c *Coordinator) Handle(ctx context.Context, ev Event) error {
	ctx, span := middleware.StartSpan(ctx, "presence."+ev.Kind.String(), trace.WithAttributes(
		attribute.String("layer", "presence"),
		attribute.String("session.id", ev.SessionID),
	))
	defer span.End()

	c.locks.Lock(ev.SessionID)
	defer func() { _ = c.locks.Unlock(ev.SessionID) }()

	current := c.sessions.State(ev.SessionID)
	next, ok := transitions[current][ev.Kind]
	if !ok {
		metrics.SessionEvents.WithLabelValues(ev.Kind.String(), "ignored").Inc()
		pkgzerolog.FromContext(ctx).Debug().
			Str("session_id", ev.SessionID).
			Stringer("state", current).
			Stringer("event", ev.Kind).
			Msg("Ignoring event with no transition")
		return nil
	}

	var err error
	switch ev.Kind {
	case EventConnect:
		err = c.connect(ctx, ev.SessionID, ev.UserID, next)
	case EventSubscribe, EventUnsubscribe:
		err = c.refresh(ctx, ev, next)
	case EventDisconnect:
		err = c.disconnect(ctx, ev.SessionID)
	}
	metrics.ActiveSessions.Set(float64(c.sessions.Len()))

	if err != nil {
		span.RecordError(err)
		metrics.SessionEvents.WithLabelValues(ev.Kind.String(), "error").Inc()
		return err
	}
	metrics.SessionEvents.WithLabelValues(ev.Kind.String(), "ok").Inc()
	return nil
}

func (c *Coordinator) connect(ctx context.Context, sessionID string, userID int64, next State) error {
	logger := pkgzerolog.FromContext(ctx)

	user, err := c.users.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("connect session %s: find user %d: %w", sessionID, userID, err)
	}
	if user == nil {
		logger.Warn().Str("session_id", sessionID).Int64("user_id", userID).Msg("User not found, connect ignored")
		return nil
	}

	prev, existed := c.sessions.Get(sessionID)
	if existed && prev == user.ID {
		logger.Debug().Str("session_id", sessionID).Int64("user_id", userID).Msg("Session already connected")
		return nil
	}
	if existed {
		// The session now belongs to someone else: the previous user leaves first.
		if err := c.leave(ctx, prev); err != nil {
			return fmt.Errorf("connect session %s: %w", sessionID, err)
		}
		c.sessions.Remove(sessionID)
		next = Connected
	}

	// The session is mapped only once the user is registered and joined,
	// so a failed connect can be retried from Disconnected.
	if err := c.registry.AddUser(ctx, user.ID); err != nil {
		return fmt.Errorf("connect session %s: %w", sessionID, err)
	}
	if _, err := c.messages.Append(ctx, domain.NewJoinEntry(*user)); err != nil {
		if rmErr := c.registry.RemoveUser(ctx, user.ID); rmErr != nil {
			logger.Warn().Err(rmErr).Int64("user_id", user.ID).Msg("Failed to roll back presence")
		}
		return fmt.Errorf("connect session %s: append join: %w", sessionID, err)
	}

	c.sessions.Put(sessionID, user.ID)
	c.sessions.SetState(sessionID, next)
	metrics.PresenceEntries.WithLabelValues(string(domain.EntryJoin)).Inc()
	c.publisher.Notify(ctx, notify.MessagesUpdated)

	logger.Info().Str("session_id", sessionID).Int64("user_id", user.ID).Msg("User connected")
	return nil
}

// refresh is the heartbeat: every (un)subscription extends the user's TTL.
func (c *Coordinator) refresh(ctx context.Context, ev Event, next State) error {
	userID, ok := c.sessions.Get(ev.SessionID)
	if !ok {
		return nil
	}
	if err := c.registry.RefreshTimeout(ctx, userID); err != nil {
		return fmt.Errorf("%s session %s: %w", ev.Kind, ev.SessionID, err)
	}
	c.sessions.SetState(ev.SessionID, next)

	pkgzerolog.FromContext(ctx).Debug().
		Str("session_id", ev.SessionID).
		Int64("user_id", userID).
		Str("destination", ev.Destination).
		Stringer("event", ev.Kind).
		Msg("Presence refreshed")
	return nil
}

func (c *Coordinator) disconnect(ctx context.Context, sessionID string) error {
	userID, ok := c.sessions.Remove(sessionID)
	if !ok {
		return nil
	}
	if err := c.leave(ctx, userID); err != nil {
		return fmt.Errorf("disconnect session %s: %w", sessionID, err)
	}
	pkgzerolog.FromContext(ctx).Info().Str("session_id", sessionID).Int64("user_id", userID).Msg("User disconnected")
	return nil
}

// leave records the LEAVE entry and announces it before the user drops out
// of the registry, so history shows "X left" no later than the user list changes.
func (c *Coordinator) leave(ctx context.Context, userID int64) error {
	user, err := c.users.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("find user %d: %w", userID, err)
	}
	if user == nil {
		pkgzerolog.FromContext(ctx).Warn().Int64("user_id", userID).Msg("User not found, leave skipped")
		return nil
	}

	if _, err := c.messages.Append(ctx, domain.NewLeaveEntry(*user)); err != nil {
		return fmt.Errorf("append leave: %w", err)
	}
	metrics.PresenceEntries.WithLabelValues(string(domain.EntryLeave)).Inc()
	c.publisher.Notify(ctx, notify.MessagesUpdated)

	return c.registry.RemoveUser(ctx, user.ID)
}
