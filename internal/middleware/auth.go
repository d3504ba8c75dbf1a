package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"mailsync/backend/internal/config"
)

// ownerClaims 外部认证服务签发的访问令牌负载。
//
// 令牌的签发与刷新由外部认证服务负责，本服务只做校验
// 并从中取出账号标识。
type ownerClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// TokenAuth 访问令牌校验中间件
type TokenAuth struct {
	cfg config.JWTConfig
	log *zap.Logger
}

// NewTokenAuth 创建访问令牌校验中间件
func NewTokenAuth(cfg config.JWTConfig, log *zap.Logger) *TokenAuth {
	return &TokenAuth{cfg: cfg, log: log}
}

// RequireAuth 要求请求携带有效的 Bearer 令牌
//
// 校验通过后将账号标识写入上下文的 "ownerID"，账号邮箱（如令牌
// 携带）写入 "ownerEmail"。
func (ta *TokenAuth) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := ta.extractToken(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		claims := &ownerClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return []byte(ta.cfg.Secret), nil
		}, jwt.WithIssuer(ta.cfg.Issuer))
		if err != nil || !token.Valid || claims.Subject == "" {
			ta.log.Warn("rejected access token",
				zap.String("ip", c.ClientIP()),
				zap.Error(err),
			)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		c.Set("ownerID", claims.Subject)
		if claims.Email != "" {
			c.Set("ownerEmail", claims.Email)
		}
		c.Next()
	}
}

// extractToken 从 Authorization 头中取出 Bearer 令牌
func (ta *TokenAuth) extractToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
