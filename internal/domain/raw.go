package domain

import (
	"errors"
	"strings"
)

// ErrRawMessageInvalid 原始邮件记录缺少必填字段。
var ErrRawMessageInvalid = errors.New("raw message missing required id")

// RawMessage 表示远程邮箱 API 返回的原始邮件记录。
//
// 必填字段仅有 ID，其余均为可选；反序列化时未知字段被直接忽略，
// 不会导致整条记录失败。
type RawMessage struct {
	ID           string `json:"id"`
	ThreadID     string `json:"threadId,omitempty"`
	From         string `json:"from,omitempty"` // 可能是 "Name <addr>" 形式
	To           string `json:"to,omitempty"`
	Subject      string `json:"subject,omitempty"`
	Snippet      string `json:"snippet,omitempty"`
	Date         string `json:"date,omitempty"`         // RFC 5322 日期头
	InternalDate int64  `json:"internalDate,omitempty"` // Unix 毫秒，优先于 Date
	// 未读标记仅在来源显式给出时才生效
	Unread          *bool           `json:"unread,omitempty"`
	ListUnsubscribe string          `json:"listUnsubscribe,omitempty"` // List-Unsubscribe 头原文
	UnsubscribeURL  string          `json:"unsubscribeUrl,omitempty"`
	Body            string          `json:"body,omitempty"`
	Attachments     []RawAttachment `json:"attachments,omitempty"`
}

// RawAttachment 原始附件元数据。
type RawAttachment struct {
	Filename     string `json:"filename"`
	MimeType     string `json:"mimeType"`
	Size         int64  `json:"size"`
	AttachmentID string `json:"attachmentId"`
}

// Validate 校验记录是否满足最低要求。
func (r *RawMessage) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return ErrRawMessageInvalid
	}
	return nil
}
