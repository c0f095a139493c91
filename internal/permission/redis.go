package permission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"locationagent/internal/logger"
)

// DefaultGrantsKey is the Redis hash holding per-agent grants.
const DefaultGrantsKey = "LOCATION_GRANTS"

const redisQueryTimeout = 5 * time.Second

// RedisAuthorizer looks up the agent's grants with HGET <key> <agentID>.
// The value is a grant list such as "coarse,fine"; a missing field grants
// nothing.
type RedisAuthorizer struct {
	client  redis.Cmdable
	key     string
	agentID string
}

// NewRedisAuthorizer creates the authorizer. An empty key means
// DefaultGrantsKey.
func NewRedisAuthorizer(client redis.Cmdable, key, agentID string) *RedisAuthorizer {
	if key == "" {
		key = DefaultGrantsKey
	}
	return &RedisAuthorizer{client: client, key: key, agentID: agentID}
}

// Fetch returns the grants stored for the agent.
func (r *RedisAuthorizer) Fetch(ctx context.Context) (Grants, error) {
	queryCtx, cancel := context.WithTimeout(ctx, redisQueryTimeout)
	defer cancel()

	value, err := r.client.HGet(queryCtx, r.key, r.agentID).Result()
	if errors.Is(err, redis.Nil) {
		return Grants{}, nil
	}
	if err != nil {
		return Grants{}, fmt.Errorf("Redis HGET %s %s failed: %w", r.key, r.agentID, err)
	}
	return ParseGrants(value), nil
}

func (r *RedisAuthorizer) HasPositioningAuthorization(ctx context.Context) bool {
	log := logger.WithComponent("permission")

	g, err := r.Fetch(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Location grants unavailable")
		return false
	}
	log.Debug().
		Str("agent_id", r.agentID).
		Bool("coarse", g.Coarse).
		Bool("fine", g.Fine).
		Msg("Location grants fetched")
	return g.Sufficient()
}
