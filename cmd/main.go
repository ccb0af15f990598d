package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"gorm.io/gorm"

	"storefront_sync/internal/controller"
	"storefront_sync/internal/model"
	"storefront_sync/internal/repository"
	"storefront_sync/internal/router"
	"storefront_sync/internal/service"
	"storefront_sync/internal/task"
	"storefront_sync/pkg/database"
	"storefront_sync/pkg/erpnext"
)

func main() {
	// .env 存在则加载，缺失不报错
	_ = godotenv.Load()

	// 1. 初始化数据库
	db := initDatabase()

	// 2. 初始化依赖
	deps := initDependencies(db)

	// 3. 启动定时任务
	deps.SyncTask.Start()

	// 4. 初始化路由
	r := router.SetupRouter(deps.Controllers, getEnv("WEBHOOK_SECRET", ""))

	// 5. 启动服务
	startServer(r, deps)
}

// ==================== 依赖容器 ====================

// Dependencies 依赖容器
type Dependencies struct {
	DB          *gorm.DB
	Repos       *Repositories
	Source      *erpnext.Client
	SyncSvc     *service.SyncService
	FullSyncSvc *service.FullSyncService
	SyncTask    *task.FullSyncTask
	Controllers *router.Controllers
}

// Repositories 仓库集合
type Repositories struct {
	Product  repository.ProductRepository
	Category repository.CategoryRepository
	Brand    repository.BrandRepository
	SyncLog  repository.SyncLogRepository
}

// ==================== 初始化函数 ====================

// initDatabase 初始化数据库
func initDatabase() *gorm.DB {
	return database.InitDB(
		getEnv("STOREFRONT_DB_PATH", "storefront.db"),
		// Storefront
		&model.StorefrontBrand{}, &model.StorefrontCategory{}, &model.StorefrontProduct{},
		// Audit
		&model.SyncLog{}, &model.SyncState{},
	)
}

// initDependencies 初始化所有依赖
func initDependencies(db *gorm.DB) *Dependencies {
	// -------- Repo 层 --------
	repos := &Repositories{
		Product:  repository.NewProductRepository(db),
		Category: repository.NewCategoryRepository(db),
		Brand:    repository.NewBrandRepository(db),
		SyncLog:  repository.NewSyncLogRepository(db),
	}

	// -------- 源系统客户端 --------
	source := erpnext.NewClient(&erpnext.Config{
		BaseURL:   getEnv("ERPNEXT_BASE_URL", "http://localhost:8000"),
		APIKey:    getEnv("ERPNEXT_API_KEY", ""),
		APISecret: getEnv("ERPNEXT_API_SECRET", ""),
		Retries:   2,
	})

	// -------- 业务服务 --------
	syncSvc := service.NewSyncService(
		repos.Product, repos.Category, repos.Brand, repos.SyncLog,
		service.NewTransformer(),
	)
	fullSyncSvc := service.NewFullSyncService(source, syncSvc)
	fullSyncSvc.SetPaging(
		getEnvInt("SYNC_PAGE_SIZE", 100),
		getEnvInt("SYNC_PRICE_CONCURRENCY", 10),
	)

	// -------- 定时任务 --------
	syncTask := task.NewFullSyncTask(fullSyncSvc)
	syncTask.SetSchedule(getEnv("SYNC_CRON_SPEC", ""))
	syncTask.SetRunOnStart(getEnv("SYNC_RUN_ON_START", "") == "true")

	// -------- Controller 层 --------
	controllers := &router.Controllers{
		Sync:    controller.NewSyncController(fullSyncSvc, repos.SyncLog),
		Webhook: controller.NewWebhookController(syncSvc, source),
	}

	return &Dependencies{
		DB:          db,
		Repos:       repos,
		Source:      source,
		SyncSvc:     syncSvc,
		FullSyncSvc: fullSyncSvc,
		SyncTask:    syncTask,
		Controllers: controllers,
	}
}

// ==================== 服务启动 ====================

// startServer 启动服务并处理优雅退出
func startServer(r *gin.Engine, deps *Dependencies) {
	port := getEnv("SERVER_PORT", "8080")

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	// 异步启动服务
	go func() {
		log.Printf("服务启动在 :%s", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("服务启动失败: %v", err)
		}
	}()

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("正在关闭服务...")
	deps.SyncTask.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("服务强制关闭: %v", err)
	}

	log.Println("服务已退出")
}

// ==================== 工具函数 ====================

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
