package memory

import (
	"sort"
	"sync"
	"time"

	"mailsync/backend/internal/domain"
	"mailsync/backend/internal/storage"
)

// Store 使用内存保存连接、缓存邮件与联系人数据，主要用于开发与测试。
//
// 所有读操作返回副本，保证读侧聚合永远不会观察到写了一半的邮件。
type Store struct {
	mu          sync.RWMutex
	connections map[string]*domain.MailboxConnection        // connectionID -> connection
	byOwner     map[string][]string                         // ownerID -> connectionIDs
	messages    map[string]map[string]*domain.CachedMessage // ownerID -> messageID -> message
	msgOrder    map[string][]string                         // ownerID -> messageIDs，按首次写入顺序
	contacts    map[string]map[string]time.Time             // ownerID -> 已知联系人地址（小写）
}

// NewStore 创建一个内存存储实例。
func NewStore() *Store {
	return &Store{
		connections: make(map[string]*domain.MailboxConnection),
		byOwner:     make(map[string][]string),
		messages:    make(map[string]map[string]*domain.CachedMessage),
		msgOrder:    make(map[string][]string),
		contacts:    make(map[string]map[string]time.Time),
	}
}

// SaveConnection 保存邮箱连接。
func (s *Store) SaveConnection(conn *domain.MailboxConnection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.connections[conn.ID]; !exists {
		s.byOwner[conn.OwnerID] = append(s.byOwner[conn.OwnerID], conn.ID)
	}
	cloned := *conn
	s.connections[conn.ID] = &cloned
	return nil
}

// GetConnection 根据 ID 获取邮箱连接。
func (s *Store) GetConnection(id string) (*domain.MailboxConnection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conn, ok := s.connections[id]
	if !ok {
		return nil, storage.ErrConnectionNotFound
	}
	cloned := *conn
	return &cloned, nil
}

// ListActiveConnections 列出所有活跃的邮箱连接。
func (s *Store) ListActiveConnections() ([]domain.MailboxConnection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.MailboxConnection, 0, len(s.connections))
	for _, conn := range s.connections {
		if conn.Active {
			out = append(out, *conn)
		}
	}
	// map 遍历顺序不稳定，按 ID 排序保证批次顺序可预测
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListConnectionsByOwner 列出指定用户的全部邮箱连接。
func (s *Store) ListConnectionsByOwner(ownerID string) ([]domain.MailboxConnection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byOwner[ownerID]
	out := make([]domain.MailboxConnection, 0, len(ids))
	for _, id := range ids {
		if conn, ok := s.connections[id]; ok {
			out = append(out, *conn)
		}
	}
	return out, nil
}

// UpsertMessage 以 (OwnerID, ID) 为键写入缓存邮件，重复写入幂等。
func (s *Store) UpsertMessage(message *domain.CachedMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	owned, ok := s.messages[message.OwnerID]
	if !ok {
		owned = make(map[string]*domain.CachedMessage)
		s.messages[message.OwnerID] = owned
	}

	if _, exists := owned[message.ID]; !exists {
		s.msgOrder[message.OwnerID] = append(s.msgOrder[message.OwnerID], message.ID)
	}

	cloned := *message
	cloned.Attachments = append([]domain.Attachment(nil), message.Attachments...)
	owned[message.ID] = &cloned
	return nil
}

// ListMessagesByOwner 列出指定用户的全部缓存邮件，按首次写入顺序返回。
func (s *Store) ListMessagesByOwner(ownerID string) ([]domain.CachedMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	owned := s.messages[ownerID]
	out := make([]domain.CachedMessage, 0, len(owned))
	for _, id := range s.msgOrder[ownerID] {
		if msg, ok := owned[id]; ok {
			cloned := *msg
			cloned.Attachments = append([]domain.Attachment(nil), msg.Attachments...)
			out = append(out, cloned)
		}
	}
	return out, nil
}

// GetMessage 获取指定用户的单封缓存邮件。
func (s *Store) GetMessage(ownerID, messageID string) (*domain.CachedMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msg, ok := s.messages[ownerID][messageID]
	if !ok {
		return nil, storage.ErrMessageNotFound
	}
	cloned := *msg
	cloned.Attachments = append([]domain.Attachment(nil), msg.Attachments...)
	return &cloned, nil
}

// MarkMessageRead 将邮件标记为已读。
func (s *Store) MarkMessageRead(ownerID, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[ownerID][messageID]
	if !ok {
		return storage.ErrMessageNotFound
	}
	msg.Unread = false
	msg.UpdatedAt = time.Now().UTC()
	return nil
}

// SaveKnownContact 记录一个已知联系人地址（供外部写入方和测试使用）。
func (s *Store) SaveKnownContact(ownerID, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	known, ok := s.contacts[ownerID]
	if !ok {
		known = make(map[string]time.Time)
		s.contacts[ownerID] = known
	}
	known[domain.NormalizeAddress(address)] = time.Now().UTC()
	return nil
}

// ListKnownContactAddresses 列出指定用户的已知联系人地址。
func (s *Store) ListKnownContactAddresses(ownerID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	known := s.contacts[ownerID]
	out := make([]string, 0, len(known))
	for addr := range known {
		out = append(out, addr)
	}
	sort.Strings(out)
	return out, nil
}

// Close 关闭存储（内存实现为空操作）。
func (s *Store) Close() error { return nil }

// Health 检查存储健康状态（内存实现恒为健康）。
func (s *Store) Health() error { return nil }
