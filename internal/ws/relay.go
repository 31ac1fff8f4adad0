package ws

import (
	"context"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const channelPattern = "conversation.*"

// RedisRelay carries conversation events between service instances over
// Redis pub/sub, using the conversation channel name as the Redis channel.
type RedisRelay struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisRelay(client *redis.Client, logger *zap.Logger) *RedisRelay {
	return &RedisRelay{client: client, logger: logger}
}

func (r *RedisRelay) Publish(ctx context.Context, channel string, payload []byte) error {
	return r.client.Publish(ctx, channel, payload).Err()
}

// Run delivers every relayed event to deliver until ctx is cancelled. It
// returns once the subscription is confirmed through ready, if non-nil.
func (r *RedisRelay) Run(ctx context.Context, deliver func(conversationID int64, payload []byte) int, ready chan<- struct{}) error {
	pubsub := r.client.PSubscribe(ctx, channelPattern)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	if ready != nil {
		close(ready)
	}
	r.logger.Info("realtime relay subscribed", zap.String("pattern", channelPattern))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			conversationID, ok := ParseChannelName(msg.Channel)
			if !ok {
				r.logger.Warn("relay message on unexpected channel", zap.String("channel", msg.Channel))
				continue
			}
			deliver(conversationID, []byte(msg.Payload))
		}
	}
}

// ParseChannelName extracts the conversation id of a "conversation.{id}" channel.
func ParseChannelName(channel string) (int64, bool) {
	raw, ok := strings.CutPrefix(channel, "conversation.")
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
