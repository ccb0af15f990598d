package router

import (
	"github.com/gin-gonic/gin"

	"storefront_sync/internal/controller"
	"storefront_sync/internal/middleware"
)

// Controllers 路由依赖的控制器集合
type Controllers struct {
	Sync    *controller.SyncController
	Webhook *controller.WebhookController
}

// SetupRouter 注册所有路由
func SetupRouter(ctls *Controllers, webhookSecret string) *gin.Engine {
	r := gin.Default()

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1")
	{
		// sync 手动同步
		sync := api.Group("/sync")
		{
			// POST /api/v1/sync/full
			sync.POST("/full",
				middleware.SyncRateLimit(middleware.SyncTypeFull, 0),
				ctls.Sync.TriggerFullSync)

			// GET /api/v1/sync/status
			sync.GET("/status", ctls.Sync.Status)
		}

		// webhooks ERPNext 变更回调
		webhooks := api.Group("/webhooks/erpnext", middleware.WebhookAuth(webhookSecret))
		{
			webhooks.POST("/items", ctls.Webhook.ItemChanged)
			webhooks.POST("/item-groups", ctls.Webhook.ItemGroupChanged)
			webhooks.POST("/brands", ctls.Webhook.BrandChanged)
		}
	}

	return r
}
