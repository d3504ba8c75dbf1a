package domain

import "time"

// MailboxConnection 表示用户关联的一个远程邮箱账号。
//
// 记录由账号关联流程创建、由撤销流程停用，本服务只读不写。
type MailboxConnection struct {
	ID            string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OwnerID       string    `json:"ownerId" gorm:"type:varchar(36);index;not null"`
	Address       string    `json:"address" gorm:"type:varchar(255)"`
	CredentialRef string    `json:"-" gorm:"type:varchar(512)"` // 访问凭证引用，内容对本服务不透明
	Provider      string    `json:"provider" gorm:"type:varchar(32)"`
	Active        bool      `json:"active" gorm:"default:true;index"`
	CreatedAt     time.Time `json:"createdAt"`
}
