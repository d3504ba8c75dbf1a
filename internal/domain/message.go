package domain

import "time"

// CachedMessage 表示一封已同步到本地缓存的邮件。
//
// 仅由 CacheWriter 创建和更新；除未读标记外，一经同步不再变更。
// (OwnerID, ID) 在缓存内唯一。
type CachedMessage struct {
	ID          string `json:"id" gorm:"primaryKey;type:varchar(128)"`
	OwnerID     string `json:"ownerId" gorm:"primaryKey;type:varchar(36);index"`
	ThreadID    string `json:"threadId,omitempty" gorm:"type:varchar(128);index"`
	FromAddress string `json:"fromAddress" gorm:"type:varchar(255);index"`
	FromName    string `json:"fromName,omitempty" gorm:"type:varchar(255)"`
	ToAddress   string `json:"toAddress" gorm:"type:varchar(255)"`
	ToName      string `json:"toName,omitempty" gorm:"type:varchar(255)"`
	Subject     string `json:"subject" gorm:"type:varchar(500)"`
	Snippet     string `json:"snippet,omitempty" gorm:"type:varchar(500)"`
	// 正文按需拉取，可能为空
	Body   string    `json:"body,omitempty" gorm:"type:text"`
	SentAt time.Time `json:"sentAt" gorm:"index"`
	Unread bool      `json:"unread" gorm:"default:false;index"`
	// 退订信号（订阅分析使用）
	HasUnsubscribe bool   `json:"hasUnsubscribe" gorm:"default:false;index"`
	UnsubscribeURL string `json:"unsubscribeUrl,omitempty" gorm:"type:varchar(1024)"`
	// 附件描述符列表（内容保存在远端，仅保留引用）
	Attachments []Attachment `json:"attachments,omitempty" gorm:"serializer:json"`
	// 首次抓取时的批内序号，时间戳相同时用于稳定排序
	FetchSeq  int64     `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// HasAttachments 返回该邮件是否携带附件。
func (m *CachedMessage) HasAttachments() bool {
	return len(m.Attachments) > 0
}

// Attachment 附件元数据描述符。
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
	RemoteRef   string `json:"remoteRef,omitempty"` // 远端附件引用，用于按需下载
}
