package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"mailsync/backend/internal/domain"
	"mailsync/backend/internal/pool"
	"mailsync/backend/internal/storage/memory"
)

// fakeSummarizer 为指定发件人返回固定摘要的测试协作方。
type fakeSummarizer struct {
	summaries map[string]string
	err       error
}

func (f *fakeSummarizer) Summarize(_ context.Context, sub domain.Subscription) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.summaries[sub.SenderAddress], nil
}

func TestSubscriptionAnalyzer_Analyze(t *testing.T) {
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	seed := func(t *testing.T, store *memory.Store, msgs ...domain.CachedMessage) {
		t.Helper()
		for i := range msgs {
			msgs[i].OwnerID = "owner-1"
			msgs[i].FetchSeq = int64(i)
			assert.NoError(t, store.UpsertMessage(&msgs[i]))
		}
	}

	t.Run("只统计带退订信号的邮件", func(t *testing.T) {
		store := memory.NewStore()
		seed(t, store,
			domain.CachedMessage{
				ID: "m1", FromAddress: "news@shop.example", HasUnsubscribe: true,
				UnsubscribeURL: "https://shop.example/unsub", SentAt: base,
			},
			domain.CachedMessage{
				ID: "m2", FromAddress: "friend@example.com", SentAt: base,
			},
		)

		analyzer := NewSubscriptionAnalyzer(store, nil, nil, zap.NewNop())
		subs, err := analyzer.Analyze("owner-1")
		assert.NoError(t, err)

		assert.Len(t, subs, 1)
		assert.Equal(t, "news@shop.example", subs[0].SenderAddress)
		assert.Equal(t, "https://shop.example/unsub", subs[0].UnsubscribeURL)
	})

	t.Run("按发件地址分组不跨同域合并", func(t *testing.T) {
		store := memory.NewStore()
		seed(t, store,
			domain.CachedMessage{ID: "m1", FromAddress: "news@shop.example", HasUnsubscribe: true, SentAt: base},
			domain.CachedMessage{ID: "m2", FromAddress: "offers@shop.example", HasUnsubscribe: true, SentAt: base},
			domain.CachedMessage{ID: "m3", FromAddress: "news@shop.example", HasUnsubscribe: true, SentAt: base},
		)

		analyzer := NewSubscriptionAnalyzer(store, nil, nil, zap.NewNop())
		subs, err := analyzer.Analyze("owner-1")
		assert.NoError(t, err)

		assert.Len(t, subs, 2)
		// 邮件量倒序
		assert.Equal(t, "news@shop.example", subs[0].SenderAddress)
		assert.Equal(t, 2, subs[0].MessageCount)
		assert.Equal(t, 1, subs[1].MessageCount)
	})

	t.Run("只有头信号没有链接时标记HasHeaderOptOut", func(t *testing.T) {
		store := memory.NewStore()
		seed(t, store,
			domain.CachedMessage{ID: "m1", FromAddress: "news@shop.example", HasUnsubscribe: true, SentAt: base},
		)

		analyzer := NewSubscriptionAnalyzer(store, nil, nil, zap.NewNop())
		subs, err := analyzer.Analyze("owner-1")
		assert.NoError(t, err)

		assert.Len(t, subs, 1)
		assert.True(t, subs[0].HasHeaderOptOut)
		assert.Empty(t, subs[0].UnsubscribeURL)
	})
}

func TestSubscriptionAnalyzer_AnnotateSummaries(t *testing.T) {
	subs := []domain.Subscription{
		{SenderAddress: "news@shop.example", MessageCount: 3},
		{SenderAddress: "digest@blog.example", MessageCount: 1},
	}

	t.Run("通过协程池填充摘要", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		workers := pool.NewWorkerPool(2, 8, zap.NewNop())
		workers.Start(ctx)

		summarizer := &fakeSummarizer{summaries: map[string]string{
			"news@shop.example": "每周促销邮件",
		}}
		analyzer := NewSubscriptionAnalyzer(memory.NewStore(), summarizer, workers, zap.NewNop())

		annotated := analyzer.AnnotateSummaries(ctx, append([]domain.Subscription(nil), subs...))
		assert.Equal(t, "每周促销邮件", annotated[0].Summary)
		assert.Empty(t, annotated[1].Summary)
	})

	t.Run("摘要失败不是错误", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		workers := pool.NewWorkerPool(1, 4, zap.NewNop())
		workers.Start(ctx)

		summarizer := &fakeSummarizer{err: errors.New("upstream unavailable")}
		analyzer := NewSubscriptionAnalyzer(memory.NewStore(), summarizer, workers, zap.NewNop())

		annotated := analyzer.AnnotateSummaries(ctx, append([]domain.Subscription(nil), subs...))
		assert.Len(t, annotated, 2)
		assert.Empty(t, annotated[0].Summary)
	})

	t.Run("没有摘要协作方时原样返回", func(t *testing.T) {
		analyzer := NewSubscriptionAnalyzer(memory.NewStore(), nil, nil, zap.NewNop())
		annotated := analyzer.AnnotateSummaries(context.Background(), subs)
		assert.Equal(t, subs, annotated)
	})
}
