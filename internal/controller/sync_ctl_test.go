package controller_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"storefront_sync/internal/controller"
	"storefront_sync/internal/middleware"
	"storefront_sync/internal/model"
	"storefront_sync/internal/repository"
	"storefront_sync/internal/router"
	"storefront_sync/internal/service"
	"storefront_sync/pkg/erpnext"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ==================== 测试夹具 ====================

// stubSource 内存数据源桩
type stubSource struct {
	brands []erpnext.Brand
	groups []erpnext.ItemGroup
	items  []erpnext.Item
	prices map[string][]erpnext.ItemPrice

	failPrices bool
}

func (s *stubSource) GetBrands(ctx context.Context) ([]erpnext.Brand, error) {
	return s.brands, nil
}

func (s *stubSource) GetItemGroups(ctx context.Context) ([]erpnext.ItemGroup, error) {
	return s.groups, nil
}

func (s *stubSource) GetItems(ctx context.Context, page, limit int) ([]erpnext.Item, *erpnext.Pagination, error) {
	if page > 1 {
		return nil, &erpnext.Pagination{Page: page, Limit: limit}, nil
	}
	return s.items, &erpnext.Pagination{Page: page, Limit: limit}, nil
}

func (s *stubSource) GetItemPrices(ctx context.Context, itemCode string) ([]erpnext.ItemPrice, error) {
	if s.failPrices {
		return nil, errors.New("price list unavailable")
	}
	return s.prices[itemCode], nil
}

// newTestRouter 组装完整依赖并返回路由与底层 db
func newTestRouter(t *testing.T, source service.SourceClient, webhookSecret string) (*gin.Engine, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("打开测试数据库失败: %v", err)
	}
	// 与生产初始化一致：单连接 + 显式打开外键约束
	// （pragma 按连接生效，内存库也按连接隔离）
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("获取底层 SQL DB 失败: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	db.Exec("PRAGMA foreign_keys = ON")
	err = db.AutoMigrate(
		&model.StorefrontProduct{},
		&model.StorefrontCategory{},
		&model.StorefrontBrand{},
		&model.SyncLog{},
		&model.SyncState{},
	)
	if err != nil {
		t.Fatalf("建表失败: %v", err)
	}

	logRepo := repository.NewSyncLogRepository(db)
	syncSvc := service.NewSyncService(
		repository.NewProductRepository(db),
		repository.NewCategoryRepository(db),
		repository.NewBrandRepository(db),
		logRepo,
		nil,
	)
	fullSyncSvc := service.NewFullSyncService(source, syncSvc)

	// 全局限流器跨测试共享，先清干净
	middleware.GetLimiter().Reset(middleware.SyncKey(middleware.SyncTypeFull))

	r := router.SetupRouter(&router.Controllers{
		Sync:    controller.NewSyncController(fullSyncSvc, logRepo),
		Webhook: controller.NewWebhookController(syncSvc, source),
	}, webhookSecret)
	return r, db
}

func doJSON(r *gin.Engine, method, path string, body any, header map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ==================== 健康检查 ====================

func TestHealthz(t *testing.T) {
	r, _ := newTestRouter(t, &stubSource{}, "")

	w := doJSON(r, http.MethodGet, "/healthz", nil, nil)
	if w.Code != http.StatusOK {
		t.Errorf("healthz status = %d, want 200", w.Code)
	}
}

// ==================== 全量同步触发 ====================

func TestTriggerFullSync(t *testing.T) {
	src := &stubSource{
		brands: []erpnext.Brand{{Name: "Sol-Ark", Brand: "Sol-Ark"}},
		groups: []erpnext.ItemGroup{
			{Name: "Inverters", ItemGroupName: "Inverters", ParentItemGroup: erpnext.ItemGroupRoot},
		},
		items: []erpnext.Item{{
			Name: "ITEM-0001", ItemCode: "SOL-15K", ItemName: "Sol-Ark 15K",
			ItemGroup: "Inverters", Brand: "Sol-Ark", StandardRate: 7999,
		}},
	}
	r, db := newTestRouter(t, src, "")

	w := doJSON(r, http.MethodPost, "/api/v1/sync/full", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		Status string              `json:"status"`
		DryRun bool                `json:"dry_run"`
		Brands *service.SyncResult `json:"brands"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("响应解析失败: %v", err)
	}
	if resp.Status != "ok" || resp.DryRun || resp.Brands.Created != 1 {
		t.Errorf("响应不符: %s", w.Body.String())
	}

	var count int64
	db.Model(&model.StorefrontProduct{}).Count(&count)
	if count != 1 {
		t.Errorf("商品表 %d 条, want 1", count)
	}

	// 冷却期内再次触发：429 且带 retry_after
	w = doJSON(r, http.MethodPost, "/api/v1/sync/full", nil, nil)
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("冷却期内 status = %d, want 429", w.Code)
	}
}

func TestTriggerFullSync_DryRun(t *testing.T) {
	src := &stubSource{brands: []erpnext.Brand{{Name: "Sol-Ark", Brand: "Sol-Ark"}}}
	r, db := newTestRouter(t, src, "")

	w := doJSON(r, http.MethodPost, "/api/v1/sync/full?dry_run=true", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		DryRun bool                `json:"dry_run"`
		Brands *service.SyncResult `json:"brands"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("响应解析失败: %v", err)
	}
	if !resp.DryRun || resp.Brands.Created != 1 {
		t.Errorf("dry run 响应不符: %s", w.Body.String())
	}

	var count int64
	db.Model(&model.StorefrontBrand{}).Count(&count)
	if count != 0 {
		t.Errorf("dry run 不应写入, 品牌表 %d 条", count)
	}
}

// ==================== 同步状态 ====================

func TestSyncStatus(t *testing.T) {
	src := &stubSource{brands: []erpnext.Brand{{Name: "Sol-Ark", Brand: "Sol-Ark"}}}
	r, _ := newTestRouter(t, src, "")

	if w := doJSON(r, http.MethodPost, "/api/v1/sync/full", nil, nil); w.Code != http.StatusOK {
		t.Fatalf("全量同步失败: %s", w.Body.String())
	}

	w := doJSON(r, http.MethodGet, "/api/v1/sync/status", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var resp struct {
		Code int `json:"code"`
		Data struct {
			States []model.SyncState `json:"states"`
			Recent []model.SyncLog   `json:"recent"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("响应解析失败: %v", err)
	}
	if len(resp.Data.States) == 0 {
		t.Error("同步水位应非空")
	}
	if len(resp.Data.Recent) == 0 {
		t.Error("最近日志应非空")
	}
}

// ==================== Webhook ====================

func TestWebhookAuth(t *testing.T) {
	r, _ := newTestRouter(t, &stubSource{}, "topsecret")
	payload := gin.H{"name": "Sol-Ark", "brand": "Sol-Ark"}

	// 缺 token：401
	w := doJSON(r, http.MethodPost, "/api/v1/webhooks/erpnext/brands", payload, nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("无 token status = %d, want 401", w.Code)
	}

	// token 错误：401
	w = doJSON(r, http.MethodPost, "/api/v1/webhooks/erpnext/brands", payload,
		map[string]string{middleware.WebhookTokenHeader: "wrong"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("错误 token status = %d, want 401", w.Code)
	}

	// token 正确：200
	w = doJSON(r, http.MethodPost, "/api/v1/webhooks/erpnext/brands", payload,
		map[string]string{middleware.WebhookTokenHeader: "topsecret"})
	if w.Code != http.StatusOK {
		t.Errorf("正确 token status = %d, want 200, body = %s", w.Code, w.Body.String())
	}
}

func TestWebhookBrandChanged(t *testing.T) {
	r, db := newTestRouter(t, &stubSource{}, "")

	w := doJSON(r, http.MethodPost, "/api/v1/webhooks/erpnext/brands",
		gin.H{"name": "Sol-Ark", "brand": "Sol-Ark"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		Code int                       `json:"code"`
		Data *service.SingleSyncResult `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("响应解析失败: %v", err)
	}
	if resp.Data.Action != service.SingleActionCreated {
		t.Errorf("action = %s, want created", resp.Data.Action)
	}

	var count int64
	db.Model(&model.StorefrontBrand{}).Count(&count)
	if count != 1 {
		t.Errorf("品牌表 %d 条, want 1", count)
	}

	// 同一负载重发：skipped
	w = doJSON(r, http.MethodPost, "/api/v1/webhooks/erpnext/brands",
		gin.H{"name": "Sol-Ark", "brand": "Sol-Ark"}, nil)
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("响应解析失败: %v", err)
	}
	if resp.Data.Action != service.SingleActionSkipped {
		t.Errorf("重发 action = %s, want skipped", resp.Data.Action)
	}
}

func TestWebhookItemChanged(t *testing.T) {
	src := &stubSource{
		prices: map[string][]erpnext.ItemPrice{
			"SKU-1": {{ItemCode: "SKU-1", PriceList: erpnext.PriceListStandard, PriceListRate: 450}},
		},
	}
	r, db := newTestRouter(t, src, "")

	w := doJSON(r, http.MethodPost, "/api/v1/webhooks/erpnext/items",
		gin.H{"name": "ITEM-0001", "item_code": "SKU-1", "item_name": "Battery", "standard_rate": 500}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var p model.StorefrontProduct
	if err := db.First(&p, "erpnext_name = ?", "ITEM-0001").Error; err != nil {
		t.Fatalf("查询商品失败: %v", err)
	}
	if p.Price != 450 {
		t.Errorf("price = %v, want 450 (价目表覆盖)", p.Price)
	}
}

func TestWebhookItemChanged_PriceFailureDegrades(t *testing.T) {
	// 价格拉取失败：降级为空价目表，回退 standard_rate，仍然 200
	r, db := newTestRouter(t, &stubSource{failPrices: true}, "")

	w := doJSON(r, http.MethodPost, "/api/v1/webhooks/erpnext/items",
		gin.H{"name": "ITEM-0001", "item_code": "SKU-1", "item_name": "Battery", "standard_rate": 500}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var p model.StorefrontProduct
	if err := db.First(&p, "erpnext_name = ?", "ITEM-0001").Error; err != nil {
		t.Fatalf("查询商品失败: %v", err)
	}
	if p.Price != 500 {
		t.Errorf("price = %v, want 500 (回退 standard_rate)", p.Price)
	}
}

func TestWebhookInvalidPayload(t *testing.T) {
	r, _ := newTestRouter(t, &stubSource{}, "")

	// 缺 name：400
	for _, path := range []string{
		"/api/v1/webhooks/erpnext/items",
		"/api/v1/webhooks/erpnext/item-groups",
		"/api/v1/webhooks/erpnext/brands",
	} {
		w := doJSON(r, http.MethodPost, path, gin.H{"item_name": "no-name"}, nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s status = %d, want 400", path, w.Code)
		}
	}
}
