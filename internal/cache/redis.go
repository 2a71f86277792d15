package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/journeygate/config"
	"github.com/redis/go-redis/v9"
)

// ReceiptTTL is how long a confirmed order's receipt outlives its flow.
const ReceiptTTL = 24 * time.Hour

// RedisStorage keeps each flow in one hash, one field per stored item, so a
// whole flow expires together and multi-field writes are atomic. Receipts
// live under their own key prefix.
type RedisStorage struct {
	client     *redis.Client
	sessionTTL time.Duration
}

func NewRedisStorage(cfg config.RedisConfig, sessionTTL time.Duration) *RedisStorage {
	return NewRedisStorageWithClient(
		redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
		sessionTTL,
	)
}

func NewRedisStorageWithClient(client *redis.Client, sessionTTL time.Duration) *RedisStorage {
	return &RedisStorage{client: client, sessionTTL: sessionTTL}
}

func (c *RedisStorage) Load(ctx context.Context, flowID string) (map[string][]byte, error) {
	values, err := c.client.HGetAll(ctx, flowKey(flowID)).Result()
	if err != nil {
		return nil, err
	}

	items := make(map[string][]byte, len(values))
	for field, v := range values {
		items[field] = []byte(v)
	}
	return items, nil
}

// Save writes the items and refreshes the flow's expiry in one transaction.
func (c *RedisStorage) Save(ctx context.Context, flowID string, items map[string][]byte) error {
	if len(items) == 0 {
		return nil
	}

	key := flowKey(flowID)
	values := make([]interface{}, 0, len(items)*2)
	for field, v := range items {
		values = append(values, field, v)
	}

	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, values...)
		if c.sessionTTL > 0 {
			pipe.Expire(ctx, key, c.sessionTTL)
		}
		return nil
	})
	return err
}

func (c *RedisStorage) Remove(ctx context.Context, flowID string, fields ...string) error {
	if len(fields) == 0 {
		return c.client.Del(ctx, flowKey(flowID)).Err()
	}
	return c.client.HDel(ctx, flowKey(flowID), fields...).Err()
}

func (c *RedisStorage) SaveReceipt(ctx context.Context, orderID string, data []byte) error {
	return c.client.Set(ctx, receiptKey(orderID), data, ReceiptTTL).Err()
}

// LoadReceipt returns nil when the order has no receipt.
func (c *RedisStorage) LoadReceipt(ctx context.Context, orderID string) ([]byte, error) {
	data, err := c.client.Get(ctx, receiptKey(orderID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return data, err
}

func (c *RedisStorage) AcquireLock(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, lockKey(name), "locked", ttl).Result()
}

func (c *RedisStorage) ReleaseLock(ctx context.Context, name string) error {
	return c.client.Del(ctx, lockKey(name)).Err()
}

func (c *RedisStorage) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisStorage) Close() error {
	return c.client.Close()
}

func flowKey(flowID string) string {
	return fmt.Sprintf("flow:%s", flowID)
}

func receiptKey(orderID string) string {
	return fmt.Sprintf("receipt:%s", orderID)
}

func lockKey(name string) string {
	return fmt.Sprintf("lock:%s", name)
}
