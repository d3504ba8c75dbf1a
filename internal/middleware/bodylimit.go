package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// BodySizeLimit 限制请求体大小
//
// 超过 maxBytes 的请求体在读取时会失败，处理函数应把
// 对应错误映射为 413。
func BodySizeLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
