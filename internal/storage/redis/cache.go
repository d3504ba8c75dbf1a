package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"mailsync/backend/internal/domain"
)

// ErrCacheMiss 缓存未命中错误
var ErrCacheMiss = errors.New("cache miss")

// Cache 聚合结果的 Redis 快照缓存。
//
// 会话、联系人、订阅三类聚合都是读取时重算的派生模型，
// 这里只做短 TTL 的快照缓存，过期后由读路径重新计算。
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache 创建 Redis 缓存实例。
func NewCache(addr, password string, db int, ttl time.Duration) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
		PoolSize: 10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Cache{client: client, ttl: ttl}, nil
}

// CacheConversations 缓存用户的会话聚合快照。
func (c *Cache) CacheConversations(ctx context.Context, ownerID string, conversations []domain.Conversation) error {
	return c.set(ctx, conversationKey(ownerID), conversations)
}

// GetCachedConversations 读取缓存的会话聚合快照。
func (c *Cache) GetCachedConversations(ctx context.Context, ownerID string) ([]domain.Conversation, error) {
	var out []domain.Conversation
	if err := c.get(ctx, conversationKey(ownerID), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CacheContacts 缓存用户的联系人目录快照。
func (c *Cache) CacheContacts(ctx context.Context, ownerID string, contacts []domain.Contact) error {
	return c.set(ctx, contactKey(ownerID), contacts)
}

// GetCachedContacts 读取缓存的联系人目录快照。
func (c *Cache) GetCachedContacts(ctx context.Context, ownerID string) ([]domain.Contact, error) {
	var out []domain.Contact
	if err := c.get(ctx, contactKey(ownerID), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CacheSubscriptions 缓存用户的订阅汇总快照。
func (c *Cache) CacheSubscriptions(ctx context.Context, ownerID string, subs []domain.Subscription) error {
	return c.set(ctx, subscriptionKey(ownerID), subs)
}

// GetCachedSubscriptions 读取缓存的订阅汇总快照。
func (c *Cache) GetCachedSubscriptions(ctx context.Context, ownerID string) ([]domain.Subscription, error) {
	var out []domain.Subscription
	if err := c.get(ctx, subscriptionKey(ownerID), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// InvalidateOwner 清除某用户的全部聚合快照（同步写入新数据后调用）。
func (c *Cache) InvalidateOwner(ctx context.Context, ownerID string) error {
	return c.client.Del(ctx,
		conversationKey(ownerID),
		contactKey(ownerID),
		subscriptionKey(ownerID),
	).Err()
}

// Close 关闭 Redis 连接。
func (c *Cache) Close() error { return c.client.Close() }

// Health 检查 Redis 连接健康状态。
func (c *Cache) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return c.client.Ping(ctx).Err()
}

func (c *Cache) set(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

func (c *Cache) get(ctx context.Context, key string, out interface{}) error {
	data, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return ErrCacheMiss
		}
		return err
	}
	return json.Unmarshal([]byte(data), out)
}

func conversationKey(ownerID string) string { return fmt.Sprintf("agg:conversations:%s", ownerID) }
func contactKey(ownerID string) string      { return fmt.Sprintf("agg:contacts:%s", ownerID) }
func subscriptionKey(ownerID string) string { return fmt.Sprintf("agg:subscriptions:%s", ownerID) }
