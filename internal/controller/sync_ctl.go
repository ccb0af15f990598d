package controller

import (
	"github.com/gin-gonic/gin"

	"storefront_sync/internal/repository"
	"storefront_sync/internal/service"
)

// SyncController 同步控制器
type SyncController struct {
	fullSyncSvc *service.FullSyncService
	logRepo     repository.SyncLogRepository
}

// NewSyncController 创建同步控制器
func NewSyncController(fullSyncSvc *service.FullSyncService, logRepo repository.SyncLogRepository) *SyncController {
	return &SyncController{fullSyncSvc: fullSyncSvc, logRepo: logRepo}
}

// ==================== Handler 实现 ====================

// TriggerFullSync 手动触发全量同步
// 同步执行，返回三种实体的聚合结果
// @Summary 手动触发全量同步
// @Tags Sync
// @Param dry_run query bool false "只计算差异不写入"
// @Success 200 {object} map[string]interface{}
// @Failure 429 {object} map[string]interface{} "冷却中"
// @Failure 500 {object} map[string]interface{}
// @Router /api/v1/sync/full [post]
func (c *SyncController) TriggerFullSync(ctx *gin.Context) {
	opts := service.SyncOptions{
		DryRun: ctx.Query("dry_run") == "true",
	}

	result, err := c.fullSyncSvc.RunFullSync(ctx.Request.Context(), opts)
	if err != nil {
		ctx.JSON(500, gin.H{"status": "error", "error": err.Error()})
		return
	}

	ctx.JSON(200, gin.H{
		"status":      "ok",
		"dry_run":     opts.DryRun,
		"brands":      result.Brands,
		"categories":  result.Categories,
		"products":    result.Products,
		"duration_ms": result.DurationMs,
	})
}

// Status 查询同步状态
// @Summary 查询各实体类型的同步水位与最近日志
// @Tags Sync
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/sync/status [get]
func (c *SyncController) Status(ctx *gin.Context) {
	states, err := c.logRepo.ListStates(ctx.Request.Context())
	if err != nil {
		ctx.JSON(500, gin.H{"code": 500, "message": err.Error()})
		return
	}

	recent, err := c.logRepo.Recent(ctx.Request.Context(), 20)
	if err != nil {
		ctx.JSON(500, gin.H{"code": 500, "message": err.Error()})
		return
	}

	ctx.JSON(200, gin.H{
		"code": 200,
		"data": gin.H{
			"states": states,
			"recent": recent,
		},
	})
}
