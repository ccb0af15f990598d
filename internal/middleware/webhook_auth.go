package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// WebhookTokenHeader ERPNext webhook 携带共享密钥的请求头
const WebhookTokenHeader = "X-Webhook-Token"

// WebhookAuth webhook 共享密钥校验中间件
// secret 为空时放行（本地调试场景），生产环境必须配置
func WebhookAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}

		token := c.GetHeader(WebhookTokenHeader)
		if subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{
				"code":    401,
				"message": "webhook 鉴权失败",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
