package command

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"locationagent/internal/logger"
)

// RedisSource receives commands published on a Redis channel.
type RedisSource struct {
	client  *redis.Client
	channel string
}

// NewRedisSource creates a source subscribed to channel.
func NewRedisSource(client *redis.Client, channel string) *RedisSource {
	return &RedisSource{client: client, channel: channel}
}

func (s *RedisSource) Name() string { return "redis" }

// Run subscribes to the channel and forwards messages until ctx is done.
func (s *RedisSource) Run(ctx context.Context, sink Sink) error {
	log := logger.WithComponent("command-redis")

	pubsub := s.client.Subscribe(ctx, s.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to subscribe to %s: %w", s.channel, err)
	}
	log.Info().Str("channel", s.channel).Msg("Subscribed to command channel")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			cmd := Parse(msg.Payload)
			if cmd == Unknown {
				log.Debug().Str("payload", msg.Payload).Msg("Ignoring unknown command")
				continue
			}
			sink(cmd)
		}
	}
}

// Publish sends cmd on channel.
func Publish(ctx context.Context, client *redis.Client, channel string, cmd Command) (int64, error) {
	if cmd == Unknown {
		return 0, fmt.Errorf("refusing to publish unknown command")
	}
	n, err := client.Publish(ctx, channel, cmd.String()).Result()
	if err != nil {
		return 0, fmt.Errorf("Redis PUBLISH %s failed: %w", channel, err)
	}
	return n, nil
}
