package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Connect opens and pings a redis client. Callers decide whether a
// failure is fatal; nothing here holds package-level state.
func Connect(addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		return nil, err
	}
	return rdb, nil
}
