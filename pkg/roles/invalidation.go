package roles

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v8"

	"github.com/weavy/weavy/pkg/observability"
)

// Invalidator broadcasts role cache evictions between instances
type Invalidator interface {
	// Publish announces that the role row changed
	Publish(ctx context.Context, id int64) error

	// Subscribe calls evict for every announced id until ctx is done
	Subscribe(ctx context.Context, evict func(id int64)) error
}

// InvalidationChannel is the Redis pub/sub channel carrying evicted role ids
const InvalidationChannel = "weavy:roles:evict"

// RedisInvalidator publishes evictions over Redis pub/sub
type RedisInvalidator struct {
	client  *redis.Client
	channel string
}

// NewRedisInvalidator creates an invalidator on InvalidationChannel
func NewRedisInvalidator(client *redis.Client) *RedisInvalidator {
	return &RedisInvalidator{client: client, channel: InvalidationChannel}
}

// Publish sends the role id to every subscribed instance
func (i *RedisInvalidator) Publish(ctx context.Context, id int64) error {
	if err := i.client.Publish(ctx, i.channel, strconv.FormatInt(id, 10)).Err(); err != nil {
		return fmt.Errorf("failed to publish role eviction: %w", err)
	}
	return nil
}

// Subscribe blocks, evicting announced ids, until ctx is done or the
// subscription closes. Malformed payloads are skipped.
func (i *RedisInvalidator) Subscribe(ctx context.Context, evict func(id int64)) error {
	sub := i.client.Subscribe(ctx, i.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to subscribe to role evictions: %w", err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			id, err := strconv.ParseInt(msg.Payload, 10, 64)
			if err != nil {
				observability.FromContext(ctx).WithField("payload", msg.Payload).Warn("Ignoring malformed role eviction")
				continue
			}
			evict(id)
		}
	}
}
