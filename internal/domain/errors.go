package domain

import (
	"fmt"
	"time"
)

// TransportError 远程 API 不可达或返回非 2xx 状态。
//
// 本服务只向上传播，不做重试。
type TransportError struct {
	Op         string // 发生错误的操作，如 "list"、"send"
	StatusCode int    // HTTP 状态码，网络层失败时为 0
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("mail api %s: unexpected status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("mail api %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// AuthError 访问凭证无效或权限不足。
//
// 向上传播；调用方应将对应连接标记为不活跃。
type AuthError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("mail api %s: credential rejected (status %d)", e.Op, e.StatusCode)
}

func (e *AuthError) Unwrap() error { return e.Err }

// ValidationError 出站邮件参数不合法，在任何网络调用之前被拒绝。
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid outbound spec: %s %s", e.Field, e.Reason)
}

// PayloadTooLargeError 附件总大小超过提供方上限，在任何编码工作之前被拒绝。
type PayloadTooLargeError struct {
	Size  int64
	Limit int64
}

func (e *PayloadTooLargeError) Error() string {
	return fmt.Sprintf("attachment payload %d bytes exceeds limit %d", e.Size, e.Limit)
}

// TimeoutError 发送操作超出执行截止时间。
//
// 本服务不自动重试，重试策略属于调用方。
type TimeoutError struct {
	Op       string
	Deadline time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s exceeded deadline of %s", e.Op, e.Deadline)
}

// PartialBatchFailure 同步批次中有部分连接失败。
//
// 批次整体仍视为成功，失败计数随摘要上报。
type PartialBatchFailure struct {
	Processed int
	Failed    int
}

func (e *PartialBatchFailure) Error() string {
	return fmt.Sprintf("sync batch: %d of %d connections failed", e.Failed, e.Processed)
}
