package domain

import "time"

// Contact 表示从缓存邮件中提取出的联系人条目。
//
// 派生读模型；持久化的联系人由外部模块维护，本服务只交叉比对
// 以设置 AlreadyKnown 标记。
type Contact struct {
	Address      string    `json:"address"` // 规范化（小写）后的地址，作为查找键
	DisplayName  string    `json:"displayName"`
	MessageCount int       `json:"messageCount"`
	LastSeen     time.Time `json:"lastSeen"`
	AlreadyKnown bool      `json:"alreadyKnown"`
}
