// Package redis holds the optional Redis-backed caches: the idempotency
// fast path and the request rate limiter.
package redis

import (
	"context"
	"fmt"
	"time"

	"purposepay/config"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	connectTimeout = 3 * time.Second
	// Commands are small key operations; a slow Redis must not hold a
	// money-moving request longer than this.
	commandTimeout = 500 * time.Millisecond
)

func clientOptions(cfg config.RedisConfig) *goredis.Options {
	return &goredis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  connectTimeout,
		ReadTimeout:  commandTimeout,
		WriteTimeout: commandTimeout,
	}
}

// NewClient connects to Redis and returns an error if the first PING fails.
func NewClient(ctx context.Context, cfg config.RedisConfig, log zerolog.Logger) (*goredis.Client, error) {
	client := goredis.NewClient(clientOptions(cfg))

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis at %s: %w", cfg.Addr(), err)
	}

	log.Info().Str("addr", cfg.Addr()).Int("db", cfg.DB).Msg("Redis client ready")
	return client, nil
}
