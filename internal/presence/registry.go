package presence

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"

	"github.com/duynhne/chat-service/internal/core/domain"
	"github.com/duynhne/chat-service/internal/metrics"
	"github.com/duynhne/chat-service/internal/notify"
	pkgzerolog "github.com/duynhne/chat-service/pkg/logger/zerolog"
)

const (
	DefaultKeyPrefix = "activeUsers"
	DefaultTTL       = 300 * time.Second
)

// pruneStale removes a member from the active-set only if its TTL key is
// still absent, so a user re-added between the read and the prune survives.
var pruneStale = redis.NewScript(`
if redis.call('EXISTS', KEYS[2]) == 0 then
	return redis.call('SREM', KEYS[1], ARGV[1])
end
return 0
`)

// RedisRegistry tracks active users across instances with two structures:
// a set of candidate user ids (enumerable) and one expiring key per user
// (authoritative liveness). A set member without a live key is stale and is
// never returned to callers.
type RedisRegistry struct {
	rdb       redis.UniversalClient
	users     domain.UserRepository
	publisher notify.Publisher
	setKey    string
	ttl       time.Duration
}

// NewRedisRegistry creates a RedisRegistry whose keys start with keyPrefix and expire after ttl.
func NewRedisRegistry(rdb redis.UniversalClient, users domain.UserRepository, publisher notify.Publisher, keyPrefix string, ttl time.Duration) *RedisRegistry {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisRegistry{rdb: rdb, users: users, publisher: publisher, setKey: keyPrefix, ttl: ttl}
}

func (r *RedisRegistry) userKey(member string) string {
	return r.setKey + ":user:" + member
}

func member(userID int64) string {
	return strconv.FormatInt(userID, 10)
}

// AddUser marks userID active for one TTL window and announces the change.
func (r *RedisRegistry) AddUser(ctx context.Context, userID int64) error {
	m := member(userID)
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, r.setKey, m)
		pipe.Set(ctx, r.userKey(m), "1", r.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("add user %d: %w", userID, err)
	}

	r.publisher.Notify(ctx, notify.UsersUpdated)
	return nil
}

// RemoveUser drops userID from both structures and announces the change.
func (r *RedisRegistry) RemoveUser(ctx context.Context, userID int64) error {
	m := member(userID)
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SRem(ctx, r.setKey, m)
		pipe.Del(ctx, r.userKey(m))
		return nil
	})
	if err != nil {
		return fmt.Errorf("remove user %d: %w", userID, err)
	}

	r.publisher.Notify(ctx, notify.UsersUpdated)
	return nil
}

// RefreshTimeout extends a live TTL key to the full window.
// EXPIRE is a no-op on a missing key, so an expired user is not resurrected.
func (r *RedisRegistry) RefreshTimeout(ctx context.Context, userID int64) error {
	refreshed, err := r.rdb.Expire(ctx, r.userKey(member(userID)), r.ttl).Result()
	if err != nil {
		return fmt.Errorf("refresh user %d: %w", userID, err)
	}
	if !refreshed {
		pkgzerolog.FromContext(ctx).Debug().Int64("user_id", userID).Msg("Presence key already expired, not refreshed")
	}
	return nil
}

// ListActiveUsers returns the live members of the active-set resolved
// against the user store, ordered by id. Stale members are filtered out and
// pruned from the set.
func (r *RedisRegistry) ListActiveUsers(ctx context.Context) ([]domain.User, error) {
	members, err := r.rdb.SMembers(ctx, r.setKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list active set: %w", err)
	}
	if len(members) == 0 {
		return []domain.User{}, nil
	}

	exists := make([]*redis.IntCmd, len(members))
	_, err = r.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, m := range members {
			exists[i] = pipe.Exists(ctx, r.userKey(m))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("check presence keys: %w", err)
	}

	var ids []int64
	var stale []string
	for i, m := range members {
		id, parseErr := strconv.ParseInt(m, 10, 64)
		if parseErr != nil || exists[i].Val() == 0 {
			stale = append(stale, m)
			continue
		}
		ids = append(ids, id)
	}
	r.prune(ctx, stale)

	if len(ids) == 0 {
		return []domain.User{}, nil
	}
	users, err := r.users.FindAllByID(ctx, lo.Uniq(ids))
	if err != nil {
		return nil, fmt.Errorf("resolve active users: %w", err)
	}
	return users, nil
}

// prune is best-effort: a failure leaves stale members that the next read filters again.
func (r *RedisRegistry) prune(ctx context.Context, stale []string) {
	logger := pkgzerolog.FromContext(ctx)
	for _, m := range stale {
		removed, err := pruneStale.Run(ctx, r.rdb, []string{r.setKey, r.userKey(m)}, m).Int()
		if err != nil {
			logger.Warn().Err(err).Str("member", m).Msg("Failed to prune stale presence member")
			continue
		}
		if removed > 0 {
			metrics.StalePresencePruned.Inc()
			logger.Debug().Str("member", m).Msg("Pruned stale presence member")
		}
	}
}
