package controller

import (
	"log"

	"github.com/gin-gonic/gin"

	"storefront_sync/internal/service"
	"storefront_sync/pkg/erpnext"
)

// WebhookController ERPNext webhook 接收器
// 文档保存后由 ERPNext 推送变更，走单条同步路径（只增改，不删除）
type WebhookController struct {
	syncSvc *service.SyncService
	source  service.SourceClient
}

// NewWebhookController 创建 webhook 控制器
func NewWebhookController(syncSvc *service.SyncService, source service.SourceClient) *WebhookController {
	return &WebhookController{syncSvc: syncSvc, source: source}
}

// ==================== Handler 实现 ====================

// ItemChanged 商品变更回调
// @Summary ERPNext Item 变更回调
// @Tags Webhook
// @Accept json
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Router /api/v1/webhooks/erpnext/items [post]
func (c *WebhookController) ItemChanged(ctx *gin.Context) {
	var item erpnext.Item
	if err := ctx.ShouldBindJSON(&item); err != nil || item.Name == "" {
		ctx.JSON(400, gin.H{"code": 400, "message": "无效的 Item 负载"})
		return
	}

	// 价格单独拉取；失败降级为空价目表，回退 standard_rate
	prices, err := c.source.GetItemPrices(ctx.Request.Context(), item.ItemCode)
	if err != nil {
		log.Printf("[Webhook] 拉取价格失败 item=%s: %v", item.ItemCode, err)
		prices = nil
	}

	result, err := c.syncSvc.SyncSingleItem(ctx.Request.Context(), item, prices)
	if err != nil {
		ctx.JSON(500, gin.H{"code": 500, "message": err.Error()})
		return
	}

	ctx.JSON(200, gin.H{"code": 200, "message": "商品已同步", "data": result})
}

// ItemGroupChanged 分组变更回调
// @Summary ERPNext Item Group 变更回调
// @Tags Webhook
// @Accept json
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Router /api/v1/webhooks/erpnext/item-groups [post]
func (c *WebhookController) ItemGroupChanged(ctx *gin.Context) {
	var group erpnext.ItemGroup
	if err := ctx.ShouldBindJSON(&group); err != nil || group.Name == "" {
		ctx.JSON(400, gin.H{"code": 400, "message": "无效的 Item Group 负载"})
		return
	}

	result, err := c.syncSvc.SyncSingleItemGroup(ctx.Request.Context(), group)
	if err != nil {
		ctx.JSON(500, gin.H{"code": 500, "message": err.Error()})
		return
	}

	ctx.JSON(200, gin.H{"code": 200, "message": "分类已同步", "data": result})
}

// BrandChanged 品牌变更回调
// @Summary ERPNext Brand 变更回调
// @Tags Webhook
// @Accept json
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Router /api/v1/webhooks/erpnext/brands [post]
func (c *WebhookController) BrandChanged(ctx *gin.Context) {
	var brand erpnext.Brand
	if err := ctx.ShouldBindJSON(&brand); err != nil || brand.Name == "" {
		ctx.JSON(400, gin.H{"code": 400, "message": "无效的 Brand 负载"})
		return
	}

	result, err := c.syncSvc.SyncSingleBrand(ctx.Request.Context(), brand)
	if err != nil {
		ctx.JSON(500, gin.H{"code": 500, "message": err.Error()})
		return
	}

	ctx.JSON(200, gin.H{"code": 200, "message": "品牌已同步", "data": result})
}
