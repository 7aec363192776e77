package progresscache

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is the production Store implementation. Keys follow the
// w#<watcherID>#<watchSessionID> scheme so one watcher's sessions stay
// prefix-scannable for debugging.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis wraps an existing client. A zero ttl keeps entries forever.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func watchedTimeKey(watcherID, watchSessionID string) string {
	return "w#" + watcherID + "#" + watchSessionID
}

func (r *Redis) SetWatchedTime(ctx context.Context, watcherID, watchSessionID string, watchedTimeMs int64) error {
	return r.client.Set(ctx, watchedTimeKey(watcherID, watchSessionID), watchedTimeMs, r.ttl).Err()
}

func (r *Redis) GetWatchedTime(ctx context.Context, watcherID, watchSessionID string) (int64, error) {
	val, err := r.client.Get(ctx, watchedTimeKey(watcherID, watchSessionID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, err
	}
	ms, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		// Treat a corrupt entry like a miss; the next report rewrites it.
		return 0, nil
	}
	return ms, nil
}
