package postgres

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"mailsync/backend/internal/config"
	"mailsync/backend/internal/domain"
	"mailsync/backend/internal/storage"
)

// knownContact 持久化联系人表（由外部联系人模块写入，本服务只查询）。
type knownContact struct {
	OwnerID   string    `gorm:"primaryKey;type:varchar(36)"`
	Address   string    `gorm:"primaryKey;type:varchar(255)"`
	CreatedAt time.Time
}

func (knownContact) TableName() string { return "known_contacts" }

// Store SQL 数据库存储实现（支持 PostgreSQL 和 MySQL）
type Store struct {
	db *gorm.DB
}

// NewStore 根据数据库配置创建存储实例。
func NewStore(cfg config.DatabaseConfig) (*Store, error) {
	var dialector gorm.Dialector
	switch cfg.Type {
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database type: %q", cfg.Type)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	// 自动迁移缓存相关表结构
	if err := db.AutoMigrate(
		&domain.MailboxConnection{},
		&domain.CachedMessage{},
		&knownContact{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return &Store{db: db}, nil
}

// SaveConnection 保存邮箱连接。
func (s *Store) SaveConnection(conn *domain.MailboxConnection) error {
	return s.db.Save(conn).Error
}

// GetConnection 根据 ID 获取邮箱连接。
func (s *Store) GetConnection(id string) (*domain.MailboxConnection, error) {
	var conn domain.MailboxConnection
	if err := s.db.First(&conn, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, storage.ErrConnectionNotFound
		}
		return nil, err
	}
	return &conn, nil
}

// ListActiveConnections 列出所有活跃的邮箱连接。
func (s *Store) ListActiveConnections() ([]domain.MailboxConnection, error) {
	var conns []domain.MailboxConnection
	if err := s.db.Where("active = ?", true).Order("id").Find(&conns).Error; err != nil {
		return nil, err
	}
	return conns, nil
}

// ListConnectionsByOwner 列出指定用户的全部邮箱连接。
func (s *Store) ListConnectionsByOwner(ownerID string) ([]domain.MailboxConnection, error) {
	var conns []domain.MailboxConnection
	if err := s.db.Where("owner_id = ?", ownerID).Order("created_at").Find(&conns).Error; err != nil {
		return nil, err
	}
	return conns, nil
}

// UpsertMessage 以 (owner_id, id) 为键写入缓存邮件，冲突时更新。
func (s *Store) UpsertMessage(message *domain.CachedMessage) error {
	return s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}, {Name: "owner_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"thread_id", "from_address", "from_name", "to_address", "to_name",
			"subject", "snippet", "body", "sent_at", "unread",
			"has_unsubscribe", "unsubscribe_url", "attachments", "updated_at",
		}),
	}).Create(message).Error
}

// ListMessagesByOwner 列出指定用户的全部缓存邮件，按首次抓取顺序返回。
func (s *Store) ListMessagesByOwner(ownerID string) ([]domain.CachedMessage, error) {
	var messages []domain.CachedMessage
	if err := s.db.Where("owner_id = ?", ownerID).Order("fetch_seq").Find(&messages).Error; err != nil {
		return nil, err
	}
	return messages, nil
}

// GetMessage 获取指定用户的单封缓存邮件。
func (s *Store) GetMessage(ownerID, messageID string) (*domain.CachedMessage, error) {
	var message domain.CachedMessage
	err := s.db.Where("owner_id = ? AND id = ?", ownerID, messageID).First(&message).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, storage.ErrMessageNotFound
		}
		return nil, err
	}
	return &message, nil
}

// MarkMessageRead 将邮件标记为已读。
func (s *Store) MarkMessageRead(ownerID, messageID string) error {
	result := s.db.Model(&domain.CachedMessage{}).
		Where("owner_id = ? AND id = ?", ownerID, messageID).
		Update("unread", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.ErrMessageNotFound
	}
	return nil
}

// SaveKnownContact 记录一个已知联系人地址。
func (s *Store) SaveKnownContact(ownerID, address string) error {
	contact := knownContact{
		OwnerID: ownerID,
		Address: domain.NormalizeAddress(address),
	}
	return s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&contact).Error
}

// ListKnownContactAddresses 列出指定用户的已知联系人地址。
func (s *Store) ListKnownContactAddresses(ownerID string) ([]string, error) {
	var addresses []string
	err := s.db.Model(&knownContact{}).
		Where("owner_id = ?", ownerID).
		Order("address").
		Pluck("address", &addresses).Error
	if err != nil {
		return nil, err
	}
	return addresses, nil
}

// Close 关闭数据库连接。
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Health 检查数据库连接健康状态。
func (s *Store) Health() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
