package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// Channel returns the pub/sub channel for a key prefix.
func Channel(prefix string) string {
	return prefix + ":events"
}

// RedisPublisher publishes events as JSON on a Redis pub/sub channel.
type RedisPublisher struct {
	rdb     redis.UniversalClient
	channel string
	logger  *slog.Logger
}

var _ Publisher = (*RedisPublisher)(nil)

// NewRedisPublisher creates a publisher writing to channel.
func NewRedisPublisher(rdb redis.UniversalClient, channel string, logger *slog.Logger) *RedisPublisher {
	return &RedisPublisher{
		rdb:     rdb,
		channel: channel,
		logger:  logger.With("component", "redis_event_publisher", "channel", channel),
	}
}

// Publish implements Publisher.
func (p *RedisPublisher) Publish(ctx context.Context, event *Event) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding event %s: %w", event.ID, err)
	}

	receivers, err := p.rdb.Publish(ctx, p.channel, raw).Result()
	if err != nil {
		return fmt.Errorf("publishing %s: %w", event.Type, err)
	}

	p.logger.DebugContext(ctx, "event published",
		"event_id", event.ID,
		"event_type", event.Type,
		"receivers", receivers)
	return nil
}
