package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"mailsync/backend/internal/domain"
)

// ErrCacheMiss 缓存未命中错误
var ErrCacheMiss = errors.New("cache miss")

// LocalCache 聚合快照的本地内存缓存
//
// 未启用 Redis 时的进程内替代实现：
// - 使用 sync.Map 实现无锁读取
// - 支持 TTL 过期
// - 自动清理过期条目
type LocalCache struct {
	data sync.Map
	ttl  time.Duration
}

type cacheEntry struct {
	value     interface{}
	expiresAt time.Time
}

// NewLocalCache 创建本地聚合快照缓存
func NewLocalCache(ttl time.Duration) *LocalCache {
	c := &LocalCache{ttl: ttl}

	// 启动定期清理
	go c.cleanupLoop()

	return c
}

// CacheConversations 缓存用户的会话聚合快照。
func (c *LocalCache) CacheConversations(_ context.Context, ownerID string, conversations []domain.Conversation) error {
	c.set("conversations:"+ownerID, conversations)
	return nil
}

// GetCachedConversations 读取缓存的会话聚合快照。
func (c *LocalCache) GetCachedConversations(_ context.Context, ownerID string) ([]domain.Conversation, error) {
	val, ok := c.get("conversations:" + ownerID)
	if !ok {
		return nil, ErrCacheMiss
	}
	return val.([]domain.Conversation), nil
}

// CacheContacts 缓存用户的联系人目录快照。
func (c *LocalCache) CacheContacts(_ context.Context, ownerID string, contacts []domain.Contact) error {
	c.set("contacts:"+ownerID, contacts)
	return nil
}

// GetCachedContacts 读取缓存的联系人目录快照。
func (c *LocalCache) GetCachedContacts(_ context.Context, ownerID string) ([]domain.Contact, error) {
	val, ok := c.get("contacts:" + ownerID)
	if !ok {
		return nil, ErrCacheMiss
	}
	return val.([]domain.Contact), nil
}

// CacheSubscriptions 缓存用户的订阅汇总快照。
func (c *LocalCache) CacheSubscriptions(_ context.Context, ownerID string, subs []domain.Subscription) error {
	c.set("subscriptions:"+ownerID, subs)
	return nil
}

// GetCachedSubscriptions 读取缓存的订阅汇总快照。
func (c *LocalCache) GetCachedSubscriptions(_ context.Context, ownerID string) ([]domain.Subscription, error) {
	val, ok := c.get("subscriptions:" + ownerID)
	if !ok {
		return nil, ErrCacheMiss
	}
	return val.([]domain.Subscription), nil
}

// InvalidateOwner 清除某用户的全部聚合快照。
func (c *LocalCache) InvalidateOwner(_ context.Context, ownerID string) error {
	c.data.Delete("conversations:" + ownerID)
	c.data.Delete("contacts:" + ownerID)
	c.data.Delete("subscriptions:" + ownerID)
	return nil
}

func (c *LocalCache) set(key string, value interface{}) {
	c.data.Store(key, &cacheEntry{
		value:     value,
		expiresAt: time.Now().Add(c.ttl),
	})
}

func (c *LocalCache) get(key string) (interface{}, bool) {
	val, ok := c.data.Load(key)
	if !ok {
		return nil, false
	}

	entry := val.(*cacheEntry)
	if time.Now().After(entry.expiresAt) {
		c.data.Delete(key)
		return nil, false
	}
	return entry.value, true
}

// cleanupLoop 定期清理过期条目
func (c *LocalCache) cleanupLoop() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		now := time.Now()
		c.data.Range(func(key, value interface{}) bool {
			entry := value.(*cacheEntry)
			if now.After(entry.expiresAt) {
				c.data.Delete(key)
			}
			return true
		})
	}
}
