package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"mailsync/backend/internal/domain"
	"mailsync/backend/internal/storage/memory"
)

func boolPtr(b bool) *bool { return &b }

func TestCacheWriter_WriteBatch(t *testing.T) {
	t.Run("规范化并写入一批邮件", func(t *testing.T) {
		store := memory.NewStore()
		writer := NewCacheWriter(store, zap.NewNop())

		written, err := writer.WriteBatch("owner-1", []domain.RawMessage{
			{
				ID:           "m1",
				From:         "Ada Lovelace <Ada@Example.com>",
				To:           "me@example.com",
				Subject:      "hello",
				InternalDate: 1700000000000,
				Unread:       boolPtr(true),
			},
		})

		assert.NoError(t, err)
		assert.Equal(t, 1, written)

		msg, err := store.GetMessage("owner-1", "m1")
		assert.NoError(t, err)
		assert.Equal(t, "ada@example.com", msg.FromAddress)
		assert.Equal(t, "Ada Lovelace", msg.FromName)
		assert.Equal(t, time.UnixMilli(1700000000000).UTC(), msg.SentAt)
		assert.True(t, msg.Unread)
	})

	t.Run("缺少ID的记录被跳过不影响其余记录", func(t *testing.T) {
		store := memory.NewStore()
		writer := NewCacheWriter(store, zap.NewNop())

		written, err := writer.WriteBatch("owner-1", []domain.RawMessage{
			{Subject: "no id"},
			{ID: "m1", Subject: "ok"},
		})

		assert.NoError(t, err)
		assert.Equal(t, 1, written)
	})

	t.Run("重复同步同一封邮件幂等", func(t *testing.T) {
		store := memory.NewStore()
		writer := NewCacheWriter(store, zap.NewNop())
		raw := domain.RawMessage{ID: "m1", Subject: "hello"}

		_, err := writer.WriteBatch("owner-1", []domain.RawMessage{raw})
		assert.NoError(t, err)
		_, err = writer.WriteBatch("owner-1", []domain.RawMessage{raw})
		assert.NoError(t, err)

		msgs, err := store.ListMessagesByOwner("owner-1")
		assert.NoError(t, err)
		assert.Len(t, msgs, 1)
	})

	t.Run("来源未给出未读标记时保留已有值", func(t *testing.T) {
		store := memory.NewStore()
		writer := NewCacheWriter(store, zap.NewNop())

		_, err := writer.WriteBatch("owner-1", []domain.RawMessage{
			{ID: "m1", Unread: boolPtr(true)},
		})
		assert.NoError(t, err)

		// 第二次同步不带 unread 字段
		_, err = writer.WriteBatch("owner-1", []domain.RawMessage{{ID: "m1"}})
		assert.NoError(t, err)

		msg, err := store.GetMessage("owner-1", "m1")
		assert.NoError(t, err)
		assert.True(t, msg.Unread)

		// 来源显式给出 false 则覆盖
		_, err = writer.WriteBatch("owner-1", []domain.RawMessage{
			{ID: "m1", Unread: boolPtr(false)},
		})
		assert.NoError(t, err)

		msg, err = store.GetMessage("owner-1", "m1")
		assert.NoError(t, err)
		assert.False(t, msg.Unread)
	})

	t.Run("重新同步保留首次抓取序号", func(t *testing.T) {
		store := memory.NewStore()
		writer := NewCacheWriter(store, zap.NewNop())

		_, err := writer.WriteBatch("owner-1", []domain.RawMessage{
			{ID: "m1"}, {ID: "m2"},
		})
		assert.NoError(t, err)

		// 第二批中 m2 出现在首位，但已有序号不变
		_, err = writer.WriteBatch("owner-1", []domain.RawMessage{
			{ID: "m2"}, {ID: "m1"},
		})
		assert.NoError(t, err)

		m1, err := store.GetMessage("owner-1", "m1")
		assert.NoError(t, err)
		m2, err := store.GetMessage("owner-1", "m2")
		assert.NoError(t, err)
		assert.Less(t, m1.FetchSeq, m2.FetchSeq)
	})

	t.Run("从ListUnsubscribe头提取退订链接", func(t *testing.T) {
		store := memory.NewStore()
		writer := NewCacheWriter(store, zap.NewNop())

		_, err := writer.WriteBatch("owner-1", []domain.RawMessage{
			{
				ID:              "m1",
				ListUnsubscribe: "<https://shop.example/unsub?u=1>, <mailto:unsub@shop.example>",
			},
			{
				ID:              "m2",
				ListUnsubscribe: "<mailto:unsub@shop.example>",
			},
		})
		assert.NoError(t, err)

		m1, err := store.GetMessage("owner-1", "m1")
		assert.NoError(t, err)
		assert.True(t, m1.HasUnsubscribe)
		assert.Equal(t, "https://shop.example/unsub?u=1", m1.UnsubscribeURL)

		// 只有 mailto 形式时没有可提取的链接，但退订信号仍然成立
		m2, err := store.GetMessage("owner-1", "m2")
		assert.NoError(t, err)
		assert.True(t, m2.HasUnsubscribe)
		assert.Empty(t, m2.UnsubscribeURL)
	})
}

func TestCacheWriter_ResolveSentAt(t *testing.T) {
	writer := NewCacheWriter(memory.NewStore(), zap.NewNop())
	fallback := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("internalDate优先", func(t *testing.T) {
		got := writer.resolveSentAt(domain.RawMessage{
			InternalDate: 1700000000000,
			Date:         "Mon, 02 Jan 2006 15:04:05 -0700",
		}, fallback)
		assert.Equal(t, time.UnixMilli(1700000000000).UTC(), got)
	})

	t.Run("解析RFC5322日期头", func(t *testing.T) {
		got := writer.resolveSentAt(domain.RawMessage{
			Date: "Mon, 02 Jan 2006 15:04:05 -0700",
		}, fallback)
		assert.Equal(t, time.Date(2006, 1, 2, 22, 4, 5, 0, time.UTC), got)
	})

	t.Run("解析RFC3339日期", func(t *testing.T) {
		got := writer.resolveSentAt(domain.RawMessage{
			Date: "2026-03-01T10:00:00Z",
		}, fallback)
		assert.Equal(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), got)
	})

	t.Run("无法解析时退回给定时间", func(t *testing.T) {
		got := writer.resolveSentAt(domain.RawMessage{Date: "not a date"}, fallback)
		assert.Equal(t, fallback, got)
	})
}
