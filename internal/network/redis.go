package network

import (
	"context"
	"net"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

// NewRedisClient creates a Redis client. dial is optional, e.g. a SOCKS
// proxy from DialerFunc.
func NewRedisClient(cfg RedisConfig, dial DialFunc) *redis.Client {
	opts := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if dial != nil {
		opts.Dialer = func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dial(ctx, network, addr)
		}
	}
	return redis.NewClient(opts)
}
