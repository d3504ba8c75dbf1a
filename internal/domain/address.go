package domain

import (
	"net/mail"
	"strings"
)

// NormalizeAddress 将邮箱地址规范化为小写查找键。
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// SplitAddress 从 "Name <addr>" 形式的头字段中拆出显示名与地址。
//
// 优先使用 RFC 5322 解析；解析失败时按第一个 '<' 手工切分，
// 两者都失败则将原文整体视为地址。
func SplitAddress(header string) (name, address string) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ""
	}

	if parsed, err := mail.ParseAddress(header); err == nil {
		return strings.TrimSpace(parsed.Name), strings.TrimSpace(parsed.Address)
	}

	// 手工回退：按第一个 '<' 切分
	if idx := strings.Index(header, "<"); idx >= 0 {
		name = strings.Trim(strings.TrimSpace(header[:idx]), `"`)
		address = strings.TrimSpace(strings.Trim(header[idx:], "<> "))
		return name, address
	}

	return "", header
}

// LocalPart 返回地址 @ 之前的本地部分；没有 @ 时返回原地址。
func LocalPart(address string) string {
	if idx := strings.Index(address, "@"); idx >= 0 {
		return address[:idx]
	}
	return address
}

// NormalizeSubject 去除主题中前导的回复/转发标记并小写，用于会话分组。
//
// 标记可以叠加出现（如 "Re: Fwd: Re: Hi"），逐层剥离。
func NormalizeSubject(subject string) string {
	s := strings.TrimSpace(subject)
	for {
		lower := strings.ToLower(s)
		stripped := false
		for _, prefix := range []string{"re:", "fwd:", "fw:"} {
			if strings.HasPrefix(lower, prefix) {
				s = strings.TrimSpace(s[len(prefix):])
				stripped = true
				break
			}
		}
		if !stripped {
			break
		}
	}
	return strings.ToLower(s)
}
