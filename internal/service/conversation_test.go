package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"mailsync/backend/internal/domain"
	"mailsync/backend/internal/storage/memory"
)

func TestConversationAssembler_Assemble(t *testing.T) {
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	seed := func(t *testing.T, msgs ...domain.CachedMessage) *memory.Store {
		t.Helper()
		store := memory.NewStore()
		for i := range msgs {
			msgs[i].OwnerID = "owner-1"
			msgs[i].FetchSeq = int64(i)
			assert.NoError(t, store.UpsertMessage(&msgs[i]))
		}
		return store
	}

	t.Run("相同线索ID的邮件归入同一会话", func(t *testing.T) {
		store := seed(t,
			domain.CachedMessage{ID: "m1", ThreadID: "T1", Subject: "plan", SentAt: base},
			domain.CachedMessage{ID: "m2", ThreadID: "T1", Subject: "Re: plan", SentAt: base.Add(time.Hour)},
			domain.CachedMessage{ID: "m3", ThreadID: "T2", Subject: "other", SentAt: base.Add(2 * time.Hour)},
		)
		assembler := NewConversationAssembler(store, zap.NewNop())

		convs, err := assembler.Assemble("owner-1")
		assert.NoError(t, err)
		assert.Len(t, convs, 2)

		// 会话按最近时间倒序
		assert.Equal(t, "thread:T2", convs[0].Key)
		assert.Equal(t, "thread:T1", convs[1].Key)

		t1 := convs[1]
		assert.Equal(t, 2, t1.MessageCount)
		// 成员按发送时间升序
		assert.Equal(t, "m1", t1.Messages[0].ID)
		assert.Equal(t, "m2", t1.Messages[1].ID)
		// 会话主题取最早一封邮件的主题
		assert.Equal(t, "plan", t1.Subject)
		assert.Equal(t, base.Add(time.Hour), t1.LastDate)
	})

	t.Run("缺少线索ID时按参与者与主题派生分组", func(t *testing.T) {
		store := seed(t,
			domain.CachedMessage{
				ID: "m1", FromAddress: "alice@example.com", ToAddress: "me@example.com",
				Subject: "Budget", SentAt: base,
			},
			domain.CachedMessage{
				ID: "m2", FromAddress: "me@example.com", ToAddress: "alice@example.com",
				Subject: "Re: Budget", SentAt: base.Add(time.Minute),
			},
			domain.CachedMessage{
				ID: "m3", FromAddress: "alice@example.com", ToAddress: "me@example.com",
				Subject: "Lunch", SentAt: base.Add(2 * time.Minute),
			},
		)
		assembler := NewConversationAssembler(store, zap.NewNop())

		convs, err := assembler.Assemble("owner-1")
		assert.NoError(t, err)
		assert.Len(t, convs, 2)

		// 方向相反、主题含 Re: 前缀的邮件落入同一派生会话
		assert.Equal(t, 2, convs[1].MessageCount)
		assert.Equal(t, []string{"alice@example.com", "me@example.com"}, convs[1].Participants)
	})

	t.Run("每封邮件恰好属于一个会话", func(t *testing.T) {
		store := seed(t,
			domain.CachedMessage{ID: "m1", ThreadID: "T1", SentAt: base},
			domain.CachedMessage{ID: "m2", FromAddress: "a@x.com", Subject: "s", SentAt: base},
			domain.CachedMessage{ID: "m3", FromAddress: "b@x.com", Subject: "s", SentAt: base},
		)
		assembler := NewConversationAssembler(store, zap.NewNop())

		convs, err := assembler.Assemble("owner-1")
		assert.NoError(t, err)

		total := 0
		for _, conv := range convs {
			total += conv.MessageCount
		}
		assert.Equal(t, 3, total)
	})

	t.Run("聚合未读与附件标记", func(t *testing.T) {
		store := seed(t,
			domain.CachedMessage{ID: "m1", ThreadID: "T1", Unread: true, SentAt: base},
			domain.CachedMessage{
				ID: "m2", ThreadID: "T1", SentAt: base.Add(time.Minute),
				Attachments: []domain.Attachment{{Filename: "a.pdf", ContentType: "application/pdf"}},
			},
		)
		assembler := NewConversationAssembler(store, zap.NewNop())

		convs, err := assembler.Assemble("owner-1")
		assert.NoError(t, err)
		assert.Len(t, convs, 1)
		assert.Equal(t, 1, convs[0].UnreadCount)
		assert.True(t, convs[0].HasAttachments)
	})

	t.Run("时间戳相同保持抓取顺序", func(t *testing.T) {
		store := seed(t,
			domain.CachedMessage{ID: "m1", ThreadID: "T1", SentAt: base},
			domain.CachedMessage{ID: "m2", ThreadID: "T1", SentAt: base},
		)
		assembler := NewConversationAssembler(store, zap.NewNop())

		convs, err := assembler.Assemble("owner-1")
		assert.NoError(t, err)
		assert.Equal(t, "m1", convs[0].Messages[0].ID)
		assert.Equal(t, "m2", convs[0].Messages[1].ID)
	})

	t.Run("没有邮件时返回空列表", func(t *testing.T) {
		assembler := NewConversationAssembler(memory.NewStore(), zap.NewNop())
		convs, err := assembler.Assemble("owner-1")
		assert.NoError(t, err)
		assert.Empty(t, convs)
	})
}
