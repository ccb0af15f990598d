package task

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"storefront_sync/internal/service"
)

// ==================== FullSyncTask 全量同步任务 ====================

// FullSyncTask 定时全量同步
// 同步策略：默认每日凌晨 3 点整轮全量对账；失败只记日志不重试，
// 下一轮调度即是重试机制
type FullSyncTask struct {
	fullSyncSvc *service.FullSyncService
	cron        *cron.Cron

	spec       string
	timeout    time.Duration
	runOnStart bool
}

// NewFullSyncTask 创建全量同步任务
func NewFullSyncTask(fullSyncSvc *service.FullSyncService) *FullSyncTask {
	return &FullSyncTask{
		fullSyncSvc: fullSyncSvc,
		cron:        cron.New(cron.WithSeconds()),
		spec:        "0 0 3 * * *",
		timeout:     2 * time.Hour,
		runOnStart:  false,
	}
}

// SetSchedule 覆盖 cron 表达式（秒级，6 段）
func (t *FullSyncTask) SetSchedule(spec string) {
	if spec != "" {
		t.spec = spec
	}
}

// SetRunOnStart 启动后延迟执行一次首轮同步
func (t *FullSyncTask) SetRunOnStart(enabled bool) {
	t.runOnStart = enabled
}

// Start 启动定时任务
func (t *FullSyncTask) Start() {
	if t.runOnStart {
		// 首次执行（延迟 30 秒，等服务就绪）
		go func() {
			time.Sleep(30 * time.Second)
			log.Println("[FullSyncTask] 执行首轮全量同步...")
			t.runOnce()
		}()
	}

	if _, err := t.cron.AddFunc(t.spec, t.runOnce); err != nil {
		log.Printf("[FullSyncTask] cron 表达式无效 %q: %v", t.spec, err)
		return
	}

	t.cron.Start()
	log.Printf("[FullSyncTask] 已启动 (cron %q)", t.spec)
}

// Stop 停止任务，等待在跑的一轮结束
func (t *FullSyncTask) Stop() {
	ctx := t.cron.Stop()
	<-ctx.Done()
	log.Println("[FullSyncTask] 已停止")
}

// RunNow 立即异步触发一轮全量同步
func (t *FullSyncTask) RunNow() {
	go t.runOnce()
}

// runOnce 执行一轮全量同步
// 定时触发是 fire-and-forget：任何错误只记日志，绝不向外抛；
// 丢掉一轮可接受，下一轮从头对账
func (t *FullSyncTask) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()

	result, err := t.fullSyncSvc.RunFullSync(ctx, service.SyncOptions{})
	if err != nil {
		log.Printf("[FullSyncTask] 全量同步失败: %v", err)
		return
	}

	log.Printf("[FullSyncTask] 全量同步完成: 品牌 %d/%d/%d, 分类 %d/%d/%d, 商品 %d/%d/%d (新增/更新/删除), 耗时 %dms",
		result.Brands.Created, result.Brands.Updated, result.Brands.Deleted,
		result.Categories.Created, result.Categories.Updated, result.Categories.Deleted,
		result.Products.Created, result.Products.Updated, result.Products.Deleted,
		result.DurationMs)
}
