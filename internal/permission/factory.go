package permission

import (
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"locationagent/internal/location"
)

// Config selects and configures an authorizer.
type Config struct {
	Type       string // "static", "file" or "redis"
	Coarse     bool
	Fine       bool
	GrantsPath string
	RedisKey   string
	AgentID    string
}

// New creates the authorizer selected by cfg.Type. client is required for
// the redis type only.
func New(cfg Config, client redis.Cmdable) (location.Authorizer, error) {
	switch strings.ToLower(cfg.Type) {
	case "", "static":
		return Static{Coarse: cfg.Coarse, Fine: cfg.Fine}, nil
	case "file":
		if cfg.GrantsPath == "" {
			return nil, fmt.Errorf("file authorization requires a grants path")
		}
		return NewFileAuthorizer(cfg.GrantsPath), nil
	case "redis":
		if client == nil {
			return nil, fmt.Errorf("redis authorization requires a Redis client")
		}
		return NewRedisAuthorizer(client, cfg.RedisKey, cfg.AgentID), nil
	default:
		return nil, fmt.Errorf("unsupported authorization type: %s (supported: static, file, redis)", cfg.Type)
	}
}
