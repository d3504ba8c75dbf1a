package domain

// OutboundMessageSpec 描述一封待发送的邮件。
//
// 瞬态对象，仅在一次发送操作期间存在。
type OutboundMessageSpec struct {
	To          string           `json:"to"`
	Subject     string           `json:"subject"`
	Body        string           `json:"body"`
	Attachments []AttachmentBlob `json:"attachments,omitempty"`
}

// AttachmentBlob 待发送附件的原始内容。
type AttachmentBlob struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Content     []byte `json:"content"`
}

// TotalAttachmentSize 返回所有附件的字节数之和。
func (s *OutboundMessageSpec) TotalAttachmentSize() int64 {
	var total int64
	for _, att := range s.Attachments {
		total += int64(len(att.Content))
	}
	return total
}

// Envelope 序列化并完成传输编码后的邮件信封。
type Envelope struct {
	Raw string `json:"raw"` // URL-safe base64（无填充）编码的完整报文
}

// SendResult 远程 API 发送操作的返回结果。
type SendResult struct {
	ProviderMessageID string `json:"id"`
}
