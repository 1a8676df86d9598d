package v1

import (
	"context"
	"fmt"

	"github.com/samber/lo/mutable"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/duynhne/chat-service/internal/core/domain"
	"github.com/duynhne/chat-service/internal/notify"
	"github.com/duynhne/chat-service/middleware"
	pkgzerolog "github.com/duynhne/chat-service/pkg/logger/zerolog"
)

const (
	DefaultRecentLimit = 20
	DefaultPageLimit   = 20
	MaxPageLimit       = 100
)

// DefaultUsers are seeded by EnsureDefaultUsers.
var DefaultUsers = []domain.User{
	{Name: "System", Email: "system@chat.local"},
	{Name: "Guest", Email: "guest@chat.local"},
}

// DefaultUser is the user AddDefaultUser creates on first use.
var DefaultUser = domain.User{Name: "Default User", Email: "default@example.com"}

// ChatService implements the chat use cases behind the REST API.
// It depends on repository interfaces only and never touches SQL.
type ChatService struct {
	users       domain.UserRepository
	messages    domain.MessageRepository
	presence    Presence
	publisher   notify.Publisher
	recentLimit int
}

// NewChatService creates a ChatService. A non positive recentLimit falls back to DefaultRecentLimit.
func NewChatService(users domain.UserRepository, messages domain.MessageRepository, presence Presence, publisher notify.Publisher, recentLimit int) *ChatService {
	if recentLimit <= 0 {
		recentLimit = DefaultRecentLimit
	}
	return &ChatService{
		users:       users,
		messages:    messages,
		presence:    presence,
		publisher:   publisher,
		recentLimit: recentLimit,
	}
}

// CreateMessage appends a message authored by an existing user and tells
// every instance the log changed.
func (s *ChatService) CreateMessage(ctx context.Context, req domain.CreateMessageRequest) (*domain.ChatEntry, error) {
	ctx, span := middleware.StartSpan(ctx, "chat.create_message", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.Int64("sender.id", req.Sender.ID),
	))
	defer span.End()

	kind := domain.EntryChat
	if req.Type != "" {
		k, ok := domain.ParseEntryKind(req.Type)
		if !ok {
			return nil, fmt.Errorf("create message: type %q: %w", req.Type, ErrInvalidEntryType)
		}
		kind = k
	}

	sender, err := s.users.FindByID(ctx, req.Sender.ID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("find sender %d: %w", req.Sender.ID, err)
	}
	if sender == nil {
		return nil, fmt.Errorf("create message: sender %d: %w", req.Sender.ID, ErrSenderNotFound)
	}

	entry, err := s.messages.Append(ctx, domain.ChatEntry{Sender: *sender, Content: req.Content, Kind: kind})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("append message: %w", err)
	}
	s.publisher.Notify(ctx, notify.MessagesUpdated)

	span.SetAttributes(attribute.Int64("message.id", entry.ID))
	return &entry, nil
}

// RecentMessages returns the newest entries, newest first.
func (s *ChatService) RecentMessages(ctx context.Context) ([]domain.ChatEntry, error) {
	ctx, span := middleware.StartSpan(ctx, "chat.recent_messages", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	entries, err := s.messages.Recent(ctx, s.recentLimit)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("recent messages: %w", err)
	}
	return entries, nil
}

// MessagesBefore returns up to limit entries older than beforeID in
// chronological order, ready to be prepended to a client's history.
// beforeID is an exclusive upper bound and need not exist: a cursor at or
// below the oldest id yields an empty page.
func (s *ChatService) MessagesBefore(ctx context.Context, beforeID int64, limit int) ([]domain.ChatEntry, error) {
	ctx, span := middleware.StartSpan(ctx, "chat.messages_before", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.Int64("cursor", beforeID),
		attribute.Int("limit", limit),
	))
	defer span.End()

	if limit <= 0 {
		return []domain.ChatEntry{}, nil
	}
	limit = min(limit, MaxPageLimit)

	entries, err := s.messages.Before(ctx, beforeID, limit)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("messages before %d: %w", beforeID, err)
	}
	mutable.Reverse(entries)
	return entries, nil
}

// ActiveUsers returns the users currently present on any instance.
func (s *ChatService) ActiveUsers(ctx context.Context) ([]domain.User, error) {
	ctx, span := middleware.StartSpan(ctx, "chat.active_users", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	users, err := s.presence.ListActiveUsers(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("active users: %w", err)
	}
	span.SetAttributes(attribute.Int("users.active", len(users)))
	return users, nil
}

// ListUsers returns every user ordered by id.
func (s *ChatService) ListUsers(ctx context.Context) ([]domain.User, error) {
	users, err := s.users.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// GetUser returns the user with id or an error wrapping ErrUserNotFound.
func (s *ChatService) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find user %d: %w", id, err)
	}
	if user == nil {
		return nil, fmt.Errorf("get user %d: %w", id, ErrUserNotFound)
	}
	return user, nil
}

// CreateUser stores a user and marks them active right away. A taken email
// returns ErrUserExists. A presence failure is logged; the user is still created.
func (s *ChatService) CreateUser(ctx context.Context, req domain.CreateUserRequest) (*domain.User, error) {
	ctx, span := middleware.StartSpan(ctx, "chat.create_user", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.String("user.email", req.Email),
	))
	defer span.End()

	existing, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("check email %q: %w", req.Email, err)
	}
	if existing != nil {
		return nil, fmt.Errorf("create user %q: %w", req.Email, ErrUserExists)
	}

	user, err := s.users.Create(ctx, req.Name, req.Email)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("create user %q: %w", req.Email, err)
	}

	s.markActive(ctx, span, user.ID)
	return user, nil
}

// AddDefaultUser returns DefaultUser, creating it on first use, and marks
// it active.
func (s *ChatService) AddDefaultUser(ctx context.Context) (*domain.User, error) {
	ctx, span := middleware.StartSpan(ctx, "chat.add_default_user", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	user, err := s.users.FindByEmail(ctx, DefaultUser.Email)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("find default user: %w", err)
	}
	if user == nil {
		if user, err = s.users.Create(ctx, DefaultUser.Name, DefaultUser.Email); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("create default user: %w", err)
		}
	}

	s.markActive(ctx, span, user.ID)
	return user, nil
}

func (s *ChatService) markActive(ctx context.Context, span trace.Span, userID int64) {
	if err := s.presence.AddUser(ctx, userID); err != nil {
		span.RecordError(err)
		pkgzerolog.FromContext(ctx).Warn().Err(err).Int64("user_id", userID).Msg("Failed to mark user active")
	}
}

// EnsureDefaultUsers seeds DefaultUsers if missing and returns all users.
func (s *ChatService) EnsureDefaultUsers(ctx context.Context) ([]domain.User, error) {
	users, err := s.users.EnsureDefaults(ctx, DefaultUsers)
	if err != nil {
		return nil, fmt.Errorf("ensure default users: %w", err)
	}
	return users, nil
}
