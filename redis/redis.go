package redis

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Connect returns a client for addr, or nil when Redis does not answer a
// ping. Callers run without a cache in that case.
func Connect(ctx context.Context, addr string) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		slog.Warn("redis not available, running without cache", "addr", addr, "error", err)
		_ = client.Close()
		return nil
	}

	slog.Info("redis connected", "addr", addr)
	return client
}
