package v1_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/duynhne/chat-service/internal/core/domain"
	logicv1 "github.com/duynhne/chat-service/internal/logic/v1"
	"github.com/duynhne/chat-service/internal/notify"
	"github.com/duynhne/chat-service/mocks"
)

var alice = domain.User{ID: 1, Name: "Alice", Email: "alice@example.com"}

type fixture struct {
	svc       *logicv1.ChatService
	users     *mocks.MockUserRepository
	messages  *mocks.MockMessageRepository
	presence  *mocks.MockPresence
	publisher *mocks.MockPublisher
}

func newService(t *testing.T) fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := fixture{
		users:     mocks.NewMockUserRepository(ctrl),
		messages:  mocks.NewMockMessageRepository(ctrl),
		presence:  mocks.NewMockPresence(ctrl),
		publisher: mocks.NewMockPublisher(ctrl),
	}
	f.svc = logicv1.NewChatService(f.users, f.messages, f.presence, f.publisher, 20)
	return f
}

// descending builds the store's newest-first answer for ids from..to.
func descending(from, to int64) []domain.ChatEntry {
	var out []domain.ChatEntry
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for id := from; id >= to; id-- {
		out = append(out, domain.ChatEntry{ID: id, Sender: alice, Kind: domain.EntryChat, CreatedAt: base.Add(time.Duration(id) * time.Second)})
	}
	return out
}

func entryIDs(entries []domain.ChatEntry) []int64 {
	out := make([]int64, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ID)
	}
	return out
}

func TestChatService_CreateMessage(t *testing.T) {
	t.Run("should append a CHAT entry and notify", func(t *testing.T) {
		req := require.New(t)
		f := newService(t)
		f.users.EXPECT().FindByID(gomock.Any(), alice.ID).Return(&alice, nil)
		f.messages.EXPECT().
			Append(gomock.Any(), domain.ChatEntry{Sender: alice, Content: "hi", Kind: domain.EntryChat}).
			Return(domain.ChatEntry{ID: 42, Sender: alice, Content: "hi", Kind: domain.EntryChat}, nil)
		f.publisher.EXPECT().Notify(gomock.Any(), notify.MessagesUpdated).Times(1)

		got, err := f.svc.CreateMessage(context.Background(), domain.CreateMessageRequest{
			Sender:  domain.SenderRef{ID: alice.ID},
			Content: "hi",
		})
		req.NoError(err)
		req.Equal(int64(42), got.ID)
	})

	t.Run("should reject an unknown sender", func(t *testing.T) {
		f := newService(t)
		f.users.EXPECT().FindByID(gomock.Any(), int64(9)).Return(nil, nil)

		_, err := f.svc.CreateMessage(context.Background(), domain.CreateMessageRequest{Sender: domain.SenderRef{ID: 9}, Content: "hi"})
		require.ErrorIs(t, err, logicv1.ErrSenderNotFound)
	})

	t.Run("should reject an unknown type before touching the store", func(t *testing.T) {
		f := newService(t)

		_, err := f.svc.CreateMessage(context.Background(), domain.CreateMessageRequest{Sender: domain.SenderRef{ID: 1}, Content: "hi", Type: "SHOUT"})
		require.ErrorIs(t, err, logicv1.ErrInvalidEntryType)
	})

	t.Run("should not notify when the append fails", func(t *testing.T) {
		f := newService(t)
		f.users.EXPECT().FindByID(gomock.Any(), alice.ID).Return(&alice, nil)
		f.messages.EXPECT().Append(gomock.Any(), gomock.Any()).Return(domain.ChatEntry{}, errors.New("db down"))

		_, err := f.svc.CreateMessage(context.Background(), domain.CreateMessageRequest{Sender: domain.SenderRef{ID: alice.ID}, Content: "hi"})
		require.Error(t, err)
	})
}

func TestChatService_MessagesBefore(t *testing.T) {
	t.Run("should page backwards in chronological order", func(t *testing.T) {
		req := require.New(t)
		f := newService(t)
		f.messages.EXPECT().Recent(gomock.Any(), 20).Return(descending(50, 31), nil)
		f.messages.EXPECT().Before(gomock.Any(), int64(31), 10).Return(descending(30, 21), nil)
		ctx := context.Background()

		recent, err := f.svc.RecentMessages(ctx)
		req.NoError(err)
		req.Equal(int64(50), recent[0].ID)
		req.Equal(int64(31), recent[len(recent)-1].ID)

		older, err := f.svc.MessagesBefore(ctx, recent[len(recent)-1].ID, 10)
		req.NoError(err)
		req.Equal([]int64{21, 22, 23, 24, 25, 26, 27, 28, 29, 30}, entryIDs(older))
	})

	t.Run("should return an empty page at the start of history", func(t *testing.T) {
		f := newService(t)
		f.messages.EXPECT().Before(gomock.Any(), int64(1), 20).Return([]domain.ChatEntry{}, nil)

		got, err := f.svc.MessagesBefore(context.Background(), 1, 20)
		require.NoError(t, err)
		require.Empty(t, got)
	})

	t.Run("should clamp the limit", func(t *testing.T) {
		f := newService(t)
		f.messages.EXPECT().Before(gomock.Any(), int64(500), logicv1.MaxPageLimit).Return(nil, nil)

		_, err := f.svc.MessagesBefore(context.Background(), 500, 10_000)
		require.NoError(t, err)
	})

	t.Run("should short-circuit a non positive limit", func(t *testing.T) {
		got, err := newService(t).svc.MessagesBefore(context.Background(), 5, 0)
		require.NoError(t, err)
		require.NotNil(t, got)
		require.Empty(t, got)
	})

	t.Run("should treat a zero cursor as a plain bound", func(t *testing.T) {
		f := newService(t)
		f.messages.EXPECT().Before(gomock.Any(), int64(0), 10).Return([]domain.ChatEntry{}, nil)

		got, err := f.svc.MessagesBefore(context.Background(), 0, 10)
		require.NoError(t, err)
		require.Empty(t, got)
	})
}

func TestChatService_Users(t *testing.T) {
	t.Run("should map a missing user to ErrUserNotFound", func(t *testing.T) {
		f := newService(t)
		f.users.EXPECT().FindByID(gomock.Any(), int64(5)).Return(nil, nil)

		_, err := f.svc.GetUser(context.Background(), 5)
		require.ErrorIs(t, err, logicv1.ErrUserNotFound)
	})

	t.Run("should mark a created user active", func(t *testing.T) {
		req := require.New(t)
		f := newService(t)
		gomock.InOrder(
			f.users.EXPECT().FindByEmail(gomock.Any(), "alice@example.com").Return(nil, nil),
			f.users.EXPECT().Create(gomock.Any(), "Alice", "alice@example.com").Return(&alice, nil),
			f.presence.EXPECT().AddUser(gomock.Any(), alice.ID).Return(nil),
		)

		got, err := f.svc.CreateUser(context.Background(), domain.CreateUserRequest{Name: "Alice", Email: "alice@example.com"})
		req.NoError(err)
		req.Equal(alice, *got)
	})

	t.Run("should still create the user when presence fails", func(t *testing.T) {
		f := newService(t)
		f.users.EXPECT().FindByEmail(gomock.Any(), gomock.Any()).Return(nil, nil)
		f.users.EXPECT().Create(gomock.Any(), gomock.Any(), gomock.Any()).Return(&alice, nil)
		f.presence.EXPECT().AddUser(gomock.Any(), alice.ID).Return(errors.New("redis down"))

		got, err := f.svc.CreateUser(context.Background(), domain.CreateUserRequest{Name: "Alice", Email: "alice@example.com"})
		require.NoError(t, err)
		require.Equal(t, alice.ID, got.ID)
	})

	t.Run("should refuse an email that is already registered", func(t *testing.T) {
		f := newService(t)
		f.users.EXPECT().FindByEmail(gomock.Any(), "alice@example.com").Return(&alice, nil)

		_, err := f.svc.CreateUser(context.Background(), domain.CreateUserRequest{Name: "Alice", Email: "alice@example.com"})
		require.ErrorIs(t, err, logicv1.ErrUserExists)
	})

	t.Run("should create the default user on first use", func(t *testing.T) {
		req := require.New(t)
		f := newService(t)
		created := domain.User{ID: 7, Name: logicv1.DefaultUser.Name, Email: logicv1.DefaultUser.Email}
		gomock.InOrder(
			f.users.EXPECT().FindByEmail(gomock.Any(), logicv1.DefaultUser.Email).Return(nil, nil),
			f.users.EXPECT().Create(gomock.Any(), logicv1.DefaultUser.Name, logicv1.DefaultUser.Email).Return(&created, nil),
			f.presence.EXPECT().AddUser(gomock.Any(), created.ID).Return(nil),
		)

		got, err := f.svc.AddDefaultUser(context.Background())
		req.NoError(err)
		req.Equal(created, *got)
	})

	t.Run("should reuse an existing default user", func(t *testing.T) {
		f := newService(t)
		existing := domain.User{ID: 7, Name: logicv1.DefaultUser.Name, Email: logicv1.DefaultUser.Email}
		f.users.EXPECT().FindByEmail(gomock.Any(), logicv1.DefaultUser.Email).Return(&existing, nil)
		f.presence.EXPECT().AddUser(gomock.Any(), existing.ID).Return(nil)

		got, err := f.svc.AddDefaultUser(context.Background())
		require.NoError(t, err)
		require.Equal(t, existing.ID, got.ID)
	})

	t.Run("should seed the default users", func(t *testing.T) {
		f := newService(t)
		f.users.EXPECT().EnsureDefaults(gomock.Any(), logicv1.DefaultUsers).Return([]domain.User{alice}, nil)

		got, err := f.svc.EnsureDefaultUsers(context.Background())
		require.NoError(t, err)
		require.Len(t, got, 1)
	})

	t.Run("should return the active users from presence", func(t *testing.T) {
		f := newService(t)
		f.presence.EXPECT().ListActiveUsers(gomock.Any()).Return([]domain.User{alice}, nil)

		got, err := f.svc.ActiveUsers(context.Background())
		require.NoError(t, err)
		require.Equal(t, []domain.User{alice}, got)
	})
}
