package service

import (
	"sort"

	"go.uber.org/zap"

	"mailsync/backend/internal/domain"
	"mailsync/backend/internal/storage"
)

// ContactExtractor 从某用户的缓存邮件中提取去重的联系人目录。
//
// 发件与收件地址各自独立计入；属于用户自己的地址（账号邮箱与
// 各关联邮箱地址）一律排除。显示名采用最近优先策略：同一地址
// 的显示名随最新一封邮件的署名变化。
type ContactExtractor struct {
	messages    storage.MessageRepository
	connections storage.ConnectionRepository
	contacts    storage.ContactRepository
	log         *zap.Logger
}

// NewContactExtractor 创建联系人提取器。
func NewContactExtractor(
	messages storage.MessageRepository,
	connections storage.ConnectionRepository,
	contacts storage.ContactRepository,
	log *zap.Logger,
) *ContactExtractor {
	return &ContactExtractor{
		messages:    messages,
		connections: connections,
		contacts:    contacts,
		log:         log,
	}
}

// Extract 计算指定用户的联系人目录，按邮件数量倒序返回。
//
// ownAddresses 为用户的额外自有地址（如账号邮箱）；各关联邮箱
// 的地址会自动并入排除集合。
func (e *ContactExtractor) Extract(ownerID string, ownAddresses []string) ([]domain.Contact, error) {
	msgs, err := e.messages.ListMessagesByOwner(ownerID)
	if err != nil {
		return nil, err
	}

	owned := make(map[string]bool, len(ownAddresses))
	for _, addr := range ownAddresses {
		if folded := domain.NormalizeAddress(addr); folded != "" {
			owned[folded] = true
		}
	}
	conns, err := e.connections.ListConnectionsByOwner(ownerID)
	if err != nil {
		return nil, err
	}
	for _, conn := range conns {
		if folded := domain.NormalizeAddress(conn.Address); folded != "" {
			owned[folded] = true
		}
	}

	// 按首次抓取顺序扫描，保证并列计数时输出顺序稳定
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].FetchSeq < msgs[j].FetchSeq })

	entries := make(map[string]*domain.Contact)
	var order []string
	for _, msg := range msgs {
		e.observe(entries, &order, owned, msg.FromAddress, msg.FromName, msg)
		e.observe(entries, &order, owned, msg.ToAddress, msg.ToName, msg)
	}

	// 与持久化联系人交叉比对，标记已存在的条目
	known, err := e.contacts.ListKnownContactAddresses(ownerID)
	if err != nil {
		return nil, err
	}
	knownSet := make(map[string]bool, len(known))
	for _, addr := range known {
		knownSet[domain.NormalizeAddress(addr)] = true
	}

	out := make([]domain.Contact, 0, len(order))
	for _, addr := range order {
		entry := entries[addr]
		entry.AlreadyKnown = knownSet[addr]
		out = append(out, *entry)
	}

	// 邮件数量倒序；数量相同保持首次出现顺序（稳定排序）
	sort.SliceStable(out, func(i, j int) bool { return out[i].MessageCount > out[j].MessageCount })
	return out, nil
}

// observe 将一次地址出现合并进联系人条目。
func (e *ContactExtractor) observe(
	entries map[string]*domain.Contact,
	order *[]string,
	owned map[string]bool,
	address, name string,
	msg domain.CachedMessage,
) {
	folded := domain.NormalizeAddress(address)
	if folded == "" || owned[folded] {
		return
	}

	entry, ok := entries[folded]
	if !ok {
		entries[folded] = &domain.Contact{
			Address:      folded,
			DisplayName:  displayNameOrLocalPart(name, folded),
			MessageCount: 1,
			LastSeen:     msg.SentAt,
		}
		*order = append(*order, folded)
		return
	}

	entry.MessageCount++
	// 最近优先：严格更新的时间戳才覆盖显示名与最后出现时间
	if msg.SentAt.After(entry.LastSeen) {
		entry.LastSeen = msg.SentAt
		entry.DisplayName = displayNameOrLocalPart(name, folded)
	}
}

// displayNameOrLocalPart 返回头字段中的显示名，缺失时退回地址本地部分。
func displayNameOrLocalPart(name, address string) string {
	if name != "" {
		return name
	}
	return domain.LocalPart(address)
}
