package security

import (
	"bytes"
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"mailsync/backend/internal/domain"
)

// AttachmentScreen 出站附件安全检查器
//
// 在附件进入 MIME 编码之前拦截明显不该外发的内容：
// 危险扩展名、无法解析的 MIME 类型、可执行文件魔数。
type AttachmentScreen struct {
	dangerousExtensions map[string]bool
}

// NewAttachmentScreen 创建附件安全检查器
func NewAttachmentScreen() *AttachmentScreen {
	return &AttachmentScreen{
		dangerousExtensions: map[string]bool{
			".exe": true,
			".bat": true,
			".cmd": true,
			".scr": true,
			".pif": true,
			".com": true,
			".vbs": true,
			".jar": true,
			".msi": true,
		},
	}
}

// Check 检查单个待发送附件，不通过时返回原因。
func (s *AttachmentScreen) Check(att domain.AttachmentBlob) error {
	if strings.TrimSpace(att.Filename) == "" {
		return fmt.Errorf("attachment filename must not be empty")
	}

	ext := strings.ToLower(filepath.Ext(att.Filename))
	if s.dangerousExtensions[ext] {
		return fmt.Errorf("dangerous file extension: %s", ext)
	}

	if _, _, err := mime.ParseMediaType(att.ContentType); err != nil {
		return fmt.Errorf("invalid content type %q: %v", att.ContentType, err)
	}

	if sig := executableSignature(att.Content); sig != "" {
		return fmt.Errorf("executable content detected (%s)", sig)
	}

	return nil
}

// executableSignature 识别常见可执行文件的魔数。
func executableSignature(content []byte) string {
	signatures := []struct {
		magic []byte
		name  string
	}{
		{[]byte{0x4D, 0x5A}, "PE"},
		{[]byte{0x7F, 0x45, 0x4C, 0x46}, "ELF"},
		{[]byte{0xFE, 0xED, 0xFA, 0xCE}, "Mach-O"},
		{[]byte{0xCE, 0xFA, 0xED, 0xFE}, "Mach-O"},
	}

	for _, sig := range signatures {
		if bytes.HasPrefix(content, sig.magic) {
			return sig.name
		}
	}
	return ""
}
