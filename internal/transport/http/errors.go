package httptransport

import (
	"errors"

	"github.com/gin-gonic/gin"

	"mailsync/backend/internal/domain"
	"mailsync/backend/internal/storage"
)

// respondError 将领域错误映射为对应的 HTTP 响应。
//
// 校验类错误返回 4xx；远程 API 的传输/凭证错误作为网关类
// 错误透传；其余一律 500。
func respondError(c *gin.Context, err error) {
	var (
		validationErr *domain.ValidationError
		tooLargeErr   *domain.PayloadTooLargeError
		timeoutErr    *domain.TimeoutError
		authErr       *domain.AuthError
		transportErr  *domain.TransportError
	)

	switch {
	case errors.As(err, &validationErr):
		BadRequest(c, validationErr.Error())
	case errors.As(err, &tooLargeErr):
		PayloadTooLarge(c, tooLargeErr.Error())
	case errors.As(err, &timeoutErr):
		GatewayTimeout(c, timeoutErr.Error())
	case errors.As(err, &authErr):
		BadGateway(c, "remote mailbox rejected the stored credential")
	case errors.As(err, &transportErr):
		BadGateway(c, "remote mailbox API unavailable")
	case errors.Is(err, storage.ErrMessageNotFound):
		NotFound(c, "message not found")
	case errors.Is(err, storage.ErrConnectionNotFound):
		NotFound(c, "mailbox connection not found")
	default:
		InternalError(c, "internal server error")
	}
}
