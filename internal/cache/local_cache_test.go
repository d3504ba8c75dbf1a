package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"mailsync/backend/internal/domain"
)

func TestLocalCache(t *testing.T) {
	ctx := context.Background()

	t.Run("写入后命中", func(t *testing.T) {
		c := NewLocalCache(time.Minute)
		convs := []domain.Conversation{{Key: "thread:T1", MessageCount: 2}}

		assert.NoError(t, c.CacheConversations(ctx, "owner-1", convs))

		got, err := c.GetCachedConversations(ctx, "owner-1")
		assert.NoError(t, err)
		assert.Equal(t, convs, got)
	})

	t.Run("未写入时返回缓存未命中", func(t *testing.T) {
		c := NewLocalCache(time.Minute)
		_, err := c.GetCachedContacts(ctx, "owner-1")
		assert.ErrorIs(t, err, ErrCacheMiss)
	})

	t.Run("过期后返回缓存未命中", func(t *testing.T) {
		c := NewLocalCache(10 * time.Millisecond)
		assert.NoError(t, c.CacheSubscriptions(ctx, "owner-1", []domain.Subscription{{SenderAddress: "news@shop.example"}}))

		time.Sleep(20 * time.Millisecond)

		_, err := c.GetCachedSubscriptions(ctx, "owner-1")
		assert.ErrorIs(t, err, ErrCacheMiss)
	})

	t.Run("按用户清除全部快照", func(t *testing.T) {
		c := NewLocalCache(time.Minute)
		assert.NoError(t, c.CacheConversations(ctx, "owner-1", []domain.Conversation{{Key: "k"}}))
		assert.NoError(t, c.CacheContacts(ctx, "owner-1", []domain.Contact{{Address: "a@x.com"}}))
		assert.NoError(t, c.CacheContacts(ctx, "owner-2", []domain.Contact{{Address: "b@x.com"}}))

		assert.NoError(t, c.InvalidateOwner(ctx, "owner-1"))

		_, err := c.GetCachedConversations(ctx, "owner-1")
		assert.ErrorIs(t, err, ErrCacheMiss)
		_, err = c.GetCachedContacts(ctx, "owner-1")
		assert.ErrorIs(t, err, ErrCacheMiss)

		// 其他用户不受影响
		got, err := c.GetCachedContacts(ctx, "owner-2")
		assert.NoError(t, err)
		assert.Len(t, got, 1)
	})
}
