package storage

import (
	"errors"

	"mailsync/backend/internal/domain"
)

var (
	// ErrConnectionNotFound 邮箱连接未找到错误
	ErrConnectionNotFound = errors.New("mailbox connection not found")
	// ErrMessageNotFound 邮件未找到错误
	ErrMessageNotFound = errors.New("cached message not found")
)

// ConnectionRepository 定义邮箱连接数据存取操作。
//
// 连接的生命周期（创建、停用）由外部账号模块维护，
// 同步核心只读取；Save 仅供外部写入方和测试使用。
type ConnectionRepository interface {
	SaveConnection(conn *domain.MailboxConnection) error
	GetConnection(id string) (*domain.MailboxConnection, error)
	ListActiveConnections() ([]domain.MailboxConnection, error)
	ListConnectionsByOwner(ownerID string) ([]domain.MailboxConnection, error)
}

// MessageRepository 定义缓存邮件数据存取操作。
type MessageRepository interface {
	// UpsertMessage 以 (OwnerID, ID) 为键写入，重复写入幂等
	UpsertMessage(message *domain.CachedMessage) error
	ListMessagesByOwner(ownerID string) ([]domain.CachedMessage, error)
	GetMessage(ownerID, messageID string) (*domain.CachedMessage, error)
	MarkMessageRead(ownerID, messageID string) error
}

// ContactRepository 定义持久化联系人的查询操作。
//
// 持久化联系人由外部模块维护，本服务只用于交叉比对。
type ContactRepository interface {
	SaveKnownContact(ownerID, address string) error
	ListKnownContactAddresses(ownerID string) ([]string, error)
}

// Store 聚合所有存储接口
type Store interface {
	ConnectionRepository
	MessageRepository
	ContactRepository

	Close() error
	Health() error
}
