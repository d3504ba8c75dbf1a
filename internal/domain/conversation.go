package domain

import "time"

// Conversation 表示按线索聚合出的一组邮件会话。
//
// 派生读模型：每次读取时重新计算，除分组键外没有持久化身份。
type Conversation struct {
	Key            string          `json:"key"`
	Subject        string          `json:"subject"`
	Participants   []string        `json:"participants"`
	Messages       []CachedMessage `json:"messages"`
	MessageCount   int             `json:"messageCount"`
	UnreadCount    int             `json:"unreadCount"`
	LastDate       time.Time       `json:"lastDate"`
	HasAttachments bool            `json:"hasAttachments"`
}
