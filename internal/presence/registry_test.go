package presence_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/duynhne/chat-service/internal/core/domain"
	"github.com/duynhne/chat-service/internal/notify"
	"github.com/duynhne/chat-service/internal/presence"
	"github.com/duynhne/chat-service/mocks"
)

const ttl = 10 * time.Second

type registryFixture struct {
	mr        *miniredis.Miniredis
	registry  *presence.RedisRegistry
	users     *mocks.MockUserRepository
	publisher *mocks.MockPublisher
}

func newRegistry(t *testing.T) registryFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	ctrl := gomock.NewController(t)
	users := mocks.NewMockUserRepository(ctrl)
	publisher := mocks.NewMockPublisher(ctrl)

	return registryFixture{
		mr:        mr,
		registry:  presence.NewRedisRegistry(rdb, users, publisher, "activeUsers", ttl),
		users:     users,
		publisher: publisher,
	}
}

// resolveAll answers FindAllByID with synthesized users for the requested ids.
func resolveAll(_ context.Context, ids []int64) ([]domain.User, error) {
	out := make([]domain.User, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.User{ID: id, Name: "u"})
	}
	return out, nil
}

func ids(users []domain.User) []int64 {
	out := make([]int64, 0, len(users))
	for _, u := range users {
		out = append(out, u.ID)
	}
	return out
}

func TestRedisRegistry_AddUser(t *testing.T) {
	t.Run("should write the set member and the ttl key and announce it", func(t *testing.T) {
		req := require.New(t)
		f := newRegistry(t)
		f.publisher.EXPECT().Notify(gomock.Any(), notify.UsersUpdated).Times(1)

		req.NoError(f.registry.AddUser(context.Background(), 7))

		ok, err := f.mr.SIsMember("activeUsers", "7")
		req.NoError(err)
		req.True(ok)
		req.True(f.mr.Exists("activeUsers:user:7"))
		req.Equal(ttl, f.mr.TTL("activeUsers:user:7"))
	})

	t.Run("should return an error when redis is down", func(t *testing.T) {
		f := newRegistry(t)
		f.mr.Close()

		require.Error(t, f.registry.AddUser(context.Background(), 7))
	})
}

func TestRedisRegistry_RemoveUser(t *testing.T) {
	t.Run("should drop both structures and announce it", func(t *testing.T) {
		req := require.New(t)
		f := newRegistry(t)
		f.publisher.EXPECT().Notify(gomock.Any(), notify.UsersUpdated).Times(2)
		ctx := context.Background()

		req.NoError(f.registry.AddUser(ctx, 7))
		req.NoError(f.registry.RemoveUser(ctx, 7))

		req.False(f.mr.Exists("activeUsers:user:7"))
		ok, _ := f.mr.SIsMember("activeUsers", "7")
		req.False(ok)
	})
}

func TestRedisRegistry_RefreshTimeout(t *testing.T) {
	t.Run("should reset a live key to the full window", func(t *testing.T) {
		req := require.New(t)
		f := newRegistry(t)
		f.publisher.EXPECT().Notify(gomock.Any(), gomock.Any()).AnyTimes()
		ctx := context.Background()

		req.NoError(f.registry.AddUser(ctx, 7))
		f.mr.FastForward(8 * time.Second)
		req.Equal(2*time.Second, f.mr.TTL("activeUsers:user:7"))

		req.NoError(f.registry.RefreshTimeout(ctx, 7))
		req.Equal(ttl, f.mr.TTL("activeUsers:user:7"))
	})

	t.Run("should not resurrect an expired user", func(t *testing.T) {
		req := require.New(t)
		f := newRegistry(t)
		f.publisher.EXPECT().Notify(gomock.Any(), gomock.Any()).AnyTimes()
		ctx := context.Background()

		req.NoError(f.registry.AddUser(ctx, 7))
		f.mr.FastForward(ttl + time.Second)

		req.NoError(f.registry.RefreshTimeout(ctx, 7))
		req.False(f.mr.Exists("activeUsers:user:7"))
	})
}

func TestRedisRegistry_ListActiveUsers(t *testing.T) {
	t.Run("should return an empty list when nobody is online", func(t *testing.T) {
		f := newRegistry(t)

		got, err := f.registry.ListActiveUsers(context.Background())
		require.NoError(t, err)
		require.NotNil(t, got)
		require.Empty(t, got)
	})

	t.Run("should hide and prune users whose key expired", func(t *testing.T) {
		req := require.New(t)
		f := newRegistry(t)
		f.publisher.EXPECT().Notify(gomock.Any(), gomock.Any()).AnyTimes()
		f.users.EXPECT().FindAllByID(gomock.Any(), []int64{2}).DoAndReturn(resolveAll).Times(1)
		ctx := context.Background()

		req.NoError(f.registry.AddUser(ctx, 1))
		f.mr.FastForward(6 * time.Second)
		req.NoError(f.registry.AddUser(ctx, 2))
		f.mr.FastForward(6 * time.Second)

		got, err := f.registry.ListActiveUsers(ctx)
		req.NoError(err)
		req.Equal([]int64{2}, ids(got))

		stale, _ := f.mr.SIsMember("activeUsers", "1")
		req.False(stale)
	})

	t.Run("should drop members written without a ttl key", func(t *testing.T) {
		req := require.New(t)
		f := newRegistry(t)
		_, err := f.mr.SetAdd("activeUsers", "3", "not-a-number")
		req.NoError(err)

		got, err := f.registry.ListActiveUsers(context.Background())
		req.NoError(err)
		req.Empty(got)

		members, _ := f.mr.Members("activeUsers")
		req.Empty(members)
	})

	t.Run("should resolve live members through the user store", func(t *testing.T) {
		req := require.New(t)
		f := newRegistry(t)
		f.publisher.EXPECT().Notify(gomock.Any(), gomock.Any()).AnyTimes()
		f.users.EXPECT().
			FindAllByID(gomock.Any(), gomock.Any()).
			DoAndReturn(func(ctx context.Context, in []int64) ([]domain.User, error) {
				req.ElementsMatch([]int64{1, 2, 3}, in)
				return []domain.User{{ID: 1}, {ID: 2}, {ID: 3}}, nil
			}).
			Times(1)
		ctx := context.Background()

		for _, id := range []int64{3, 1, 2} {
			req.NoError(f.registry.AddUser(ctx, id))
		}

		got, err := f.registry.ListActiveUsers(ctx)
		req.NoError(err)
		req.Equal([]int64{1, 2, 3}, ids(got))
	})

	t.Run("should keep a member whose key survives", func(t *testing.T) {
		req := require.New(t)
		f := newRegistry(t)
		f.publisher.EXPECT().Notify(gomock.Any(), gomock.Any()).AnyTimes()
		f.users.EXPECT().FindAllByID(gomock.Any(), []int64{5}).DoAndReturn(resolveAll).Times(2)
		ctx := context.Background()

		req.NoError(f.registry.AddUser(ctx, 5))
		for range 2 {
			f.mr.FastForward(ttl / 2)
			req.NoError(f.registry.RefreshTimeout(ctx, 5))

			got, err := f.registry.ListActiveUsers(ctx)
			req.NoError(err)
			req.Equal([]int64{5}, ids(got))
		}
	})
}
