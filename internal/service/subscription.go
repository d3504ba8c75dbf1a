package service

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"mailsync/backend/internal/domain"
	"mailsync/backend/internal/pool"
	"mailsync/backend/internal/storage"
)

// Summarizer 外部文本摘要协作方。
//
// 为订阅条目生成自然语言摘要；返回内容对本服务不透明。
type Summarizer interface {
	Summarize(ctx context.Context, sub domain.Subscription) (string, error)
}

// SubscriptionAnalyzer 统计某用户的订阅/营销邮件来源。
//
// 只统计带退订信号（List-Unsubscribe 头或提取出的退订链接）的
// 邮件，按发件地址粒度分组，不跨同域地址合并。
type SubscriptionAnalyzer struct {
	messages   storage.MessageRepository
	summarizer Summarizer
	workers    *pool.WorkerPool
	log        *zap.Logger
}

// NewSubscriptionAnalyzer 创建订阅分析器。
//
// summarizer 与 workers 均可为 nil，此时跳过摘要标注。
func NewSubscriptionAnalyzer(
	messages storage.MessageRepository,
	summarizer Summarizer,
	workers *pool.WorkerPool,
	log *zap.Logger,
) *SubscriptionAnalyzer {
	return &SubscriptionAnalyzer{
		messages:   messages,
		summarizer: summarizer,
		workers:    workers,
		log:        log,
	}
}

// Analyze 计算指定用户的订阅汇总，按邮件数量倒序返回。
func (a *SubscriptionAnalyzer) Analyze(ownerID string) ([]domain.Subscription, error) {
	msgs, err := a.messages.ListMessagesByOwner(ownerID)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].FetchSeq < msgs[j].FetchSeq })

	entries := make(map[string]*domain.Subscription)
	lastSeen := make(map[string]int) // 发件人 -> 其最新一封邮件的下标
	var order []string

	for i, msg := range msgs {
		if !msg.HasUnsubscribe {
			continue
		}
		sender := domain.NormalizeAddress(msg.FromAddress)
		if sender == "" {
			continue
		}

		sub, ok := entries[sender]
		if !ok {
			sub = &domain.Subscription{
				SenderAddress: sender,
				DisplayName:   displayNameOrLocalPart(msg.FromName, sender),
			}
			entries[sender] = sub
			lastSeen[sender] = i
			order = append(order, sender)
		}

		sub.MessageCount++
		if msg.UnsubscribeURL != "" {
			sub.UnsubscribeURL = msg.UnsubscribeURL
		}
		sub.HasHeaderOptOut = sub.HasHeaderOptOut || msg.UnsubscribeURL == ""

		// 显示名同样采用最近优先策略
		prev := msgs[lastSeen[sender]]
		if msg.SentAt.After(prev.SentAt) {
			lastSeen[sender] = i
			sub.DisplayName = displayNameOrLocalPart(msg.FromName, sender)
		}
	}

	out := make([]domain.Subscription, 0, len(order))
	for _, sender := range order {
		out = append(out, *entries[sender])
	}

	// 邮件量倒序；数量相同保持首次出现顺序（稳定排序）
	sort.SliceStable(out, func(i, j int) bool { return out[i].MessageCount > out[j].MessageCount })
	return out, nil
}

// AnnotateSummaries 通过协程池为订阅条目填充摘要。
//
// 摘要来自外部协作方，获取失败或池满被拒绝都只记录日志；
// 缺失摘要不是错误。
func (a *SubscriptionAnalyzer) AnnotateSummaries(ctx context.Context, subs []domain.Subscription) []domain.Subscription {
	if a.summarizer == nil || a.workers == nil || len(subs) == 0 {
		return subs
	}

	results := make([]string, len(subs))
	var wg sync.WaitGroup
	for i := range subs {
		i := i
		wg.Add(1)
		submitted := a.workers.TrySubmit(func() {
			defer wg.Done()
			summary, err := a.summarizer.Summarize(ctx, subs[i])
			if err != nil {
				a.log.Debug("subscription summary unavailable",
					zap.String("sender", subs[i].SenderAddress),
					zap.Error(err),
				)
				return
			}
			results[i] = summary
		})
		if !submitted {
			wg.Done()
			a.log.Debug("summary queue full, skipping",
				zap.String("sender", subs[i].SenderAddress),
			)
		}
	}
	wg.Wait()

	for i := range subs {
		if results[i] != "" {
			subs[i].Summary = results[i]
		}
	}
	return subs
}
