package mailbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"cvintake/internal/notify/models"
)

const defaultKey = "cvintake:ingress:notifications"

// RedisMailbox keeps the retained list in a capped Redis list so multiple
// ingress replicas share one mailbox. Same contract as InMemory: newest
// first, FIFO eviction at capacity.
type RedisMailbox struct {
	client   redis.Cmdable
	key      string
	capacity int
}

// NewRedis creates a Redis-backed mailbox.
func NewRedis(client redis.Cmdable, capacity int) *RedisMailbox {
	if capacity <= 0 {
		capacity = 100
	}
	return &RedisMailbox{client: client, key: defaultKey, capacity: capacity}
}

// Append pushes a completion to the head and trims to capacity.
func (m *RedisMailbox) Append(ctx context.Context, n models.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal ingress notification: %w", err)
	}

	pipe := m.client.TxPipeline()
	pipe.LPush(ctx, m.key, payload)
	pipe.LTrim(ctx, m.key, 0, int64(m.capacity-1))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append ingress notification: %w", err)
	}
	return nil
}

// List returns the retained entries, newest first.
func (m *RedisMailbox) List(ctx context.Context) ([]models.Notification, error) {
	raw, err := m.client.LRange(ctx, m.key, 0, int64(m.capacity-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("list ingress notifications: %w", err)
	}

	out := make([]models.Notification, 0, len(raw))
	for _, item := range raw {
		var n models.Notification
		if err := json.Unmarshal([]byte(item), &n); err != nil {
			return nil, fmt.Errorf("decode ingress notification: %w", err)
		}
		out = append(out, n)
	}
	return out, nil
}

// Reset clears the mailbox.
func (m *RedisMailbox) Reset(ctx context.Context) error {
	if err := m.client.Del(ctx, m.key).Err(); err != nil {
		return fmt.Errorf("reset ingress mailbox: %w", err)
	}
	return nil
}

// FetchNotifications satisfies the syncer Fetcher interface.
func (m *RedisMailbox) FetchNotifications(ctx context.Context) ([]models.Notification, error) {
	return m.List(ctx)
}
