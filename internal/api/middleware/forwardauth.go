package middleware

import (
	"github.com/gin-gonic/gin"

	"gitbridge/internal/pkg/config"
	pkgErrors "gitbridge/pkg/errors"
	"gitbridge/pkg/responses"
)

// 上下文键
const (
	ContextUserID      = "user_id"
	ContextUserEmail   = "user_email"
	ContextAccessToken = "access_token"
)

// ForwardAuthMiddleware 前置认证中间件。
// 服务部署在认证代理（oauth2-proxy等）之后，请求头即信任边界：
// 代理已完成认证并注入用户标识，这里只读取不验证。
// 按配置的候选请求头顺序取第一个非空值，取不到用户标识返回401
func ForwardAuthMiddleware(cfg *config.AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := firstHeader(c, cfg.UserHeaders)
		if userID == "" {
			responses.ErrorWithCode(c, pkgErrors.CodeUnauthorized, "缺少用户身份")
			c.Abort()
			return
		}

		c.Set(ContextUserID, userID)
		if email := firstHeader(c, cfg.EmailHeaders); email != "" {
			c.Set(ContextUserEmail, email)
		}
		if token := firstHeader(c, cfg.TokenHeaders); token != "" {
			c.Set(ContextAccessToken, token)
		}

		c.Next()
	}
}

func firstHeader(c *gin.Context, names []string) string {
	for _, name := range names {
		if v := c.GetHeader(name); v != "" {
			return v
		}
	}
	return ""
}

// CurrentUserID 从上下文取用户标识
func CurrentUserID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}
