package service

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"mailsync/backend/internal/domain"
	"mailsync/backend/internal/storage"
)

// ConversationAssembler 将某用户的缓存邮件聚合成会话。
//
// 纯读侧聚合：基于缓存的时点快照重新计算，不做任何外部调用，
// 结果也不落库。分组构成缓存邮件集合的一个完整划分——每封邮件
// 恰好属于一个会话。
type ConversationAssembler struct {
	messages storage.MessageRepository
	log      *zap.Logger
}

// NewConversationAssembler 创建会话聚合器。
func NewConversationAssembler(messages storage.MessageRepository, log *zap.Logger) *ConversationAssembler {
	return &ConversationAssembler{messages: messages, log: log}
}

// Assemble 计算指定用户的全部会话，按最近时间倒序返回。
func (a *ConversationAssembler) Assemble(ownerID string) ([]domain.Conversation, error) {
	msgs, err := a.messages.ListMessagesByOwner(ownerID)
	if err != nil {
		return nil, err
	}

	// 按首次抓取顺序遍历，保证相同时间戳时的排序稳定
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].FetchSeq < msgs[j].FetchSeq })

	groups := make(map[string]*domain.Conversation)
	var order []string
	for _, msg := range msgs {
		key := conversationKey(msg)
		conv, ok := groups[key]
		if !ok {
			conv = &domain.Conversation{Key: key}
			groups[key] = conv
			order = append(order, key)
		}
		conv.Messages = append(conv.Messages, msg)
	}

	out := make([]domain.Conversation, 0, len(order))
	for _, key := range order {
		conv := groups[key]
		finalizeConversation(conv)
		out = append(out, *conv)
	}

	// 会话列表按最近一封邮件的时间倒序
	sort.SliceStable(out, func(i, j int) bool { return out[i].LastDate.After(out[j].LastDate) })
	return out, nil
}

// conversationKey 计算邮件的会话分组键。
//
// 优先使用线索 ID；缺失时由去重排序后的参与者地址集合
// 加规范化主题派生。
func conversationKey(msg domain.CachedMessage) string {
	if msg.ThreadID != "" {
		return "thread:" + msg.ThreadID
	}
	return "derived:" + strings.Join(participantSet(msg), ",") + "#" + domain.NormalizeSubject(msg.Subject)
}

// participantSet 返回邮件参与者地址的去重排序集合。
func participantSet(msg domain.CachedMessage) []string {
	seen := make(map[string]bool, 2)
	var out []string
	for _, addr := range []string{msg.FromAddress, msg.ToAddress} {
		addr = domain.NormalizeAddress(addr)
		if addr == "" || seen[addr] {
			continue
		}
		seen[addr] = true
		out = append(out, addr)
	}
	sort.Strings(out)
	return out
}

// finalizeConversation 排序成员并计算聚合字段。
func finalizeConversation(conv *domain.Conversation) {
	// 成员按发送时间升序；时间相同保持抓取顺序（稳定排序）
	sort.SliceStable(conv.Messages, func(i, j int) bool {
		return conv.Messages[i].SentAt.Before(conv.Messages[j].SentAt)
	})

	participants := make(map[string]bool)
	for i := range conv.Messages {
		msg := &conv.Messages[i]
		if msg.Unread {
			conv.UnreadCount++
		}
		if msg.HasAttachments() {
			conv.HasAttachments = true
		}
		for _, addr := range []string{msg.FromAddress, msg.ToAddress} {
			if addr != "" && !participants[addr] {
				participants[addr] = true
				conv.Participants = append(conv.Participants, addr)
			}
		}
	}
	sort.Strings(conv.Participants)

	conv.MessageCount = len(conv.Messages)
	if conv.MessageCount > 0 {
		conv.Subject = conv.Messages[0].Subject
		conv.LastDate = conv.Messages[conv.MessageCount-1].SentAt
	}
}
