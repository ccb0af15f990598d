package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"storefront_sync/pkg/erpnext"
)

// ==================== 依赖接口 ====================

// SourceClient ERPNext 数据源（pkg/erpnext.Client 的同步所需子集）
type SourceClient interface {
	GetBrands(ctx context.Context) ([]erpnext.Brand, error)
	GetItemGroups(ctx context.Context) ([]erpnext.ItemGroup, error)
	GetItems(ctx context.Context, page, limit int) ([]erpnext.Item, *erpnext.Pagination, error)
	GetItemPrices(ctx context.Context, itemCode string) ([]erpnext.ItemPrice, error)
}

// ==================== FullSyncService ====================

// FullSyncResult 一轮全量同步三种实体的汇总
type FullSyncResult struct {
	Brands     *SyncResult `json:"brands"`
	Categories *SyncResult `json:"categories"`
	Products   *SyncResult `json:"products"`
	DurationMs int64       `json:"duration_ms"`
}

// FullSyncService 全量同步编排器
// 商品通过已解析的品牌/分类 ID 引用外键，因此必须按
// 品牌 -> 分类 -> 商品 的顺序依次执行，前一阶段完成后才开始下一阶段
type FullSyncService struct {
	source  SourceClient
	syncSvc *SyncService

	// 商品分页与价格拉取并发度
	pageSize         int
	priceConcurrency int
}

// NewFullSyncService 创建全量同步编排器
func NewFullSyncService(source SourceClient, syncSvc *SyncService) *FullSyncService {
	return &FullSyncService{
		source:           source,
		syncSvc:          syncSvc,
		pageSize:         100,
		priceConcurrency: 10,
	}
}

// SetPaging 配置商品分页大小与价格拉取并发度
func (s *FullSyncService) SetPaging(pageSize, priceConcurrency int) {
	if pageSize > 0 {
		s.pageSize = pageSize
	}
	if priceConcurrency > 0 {
		s.priceConcurrency = priceConcurrency
	}
}

// RunFullSync 执行一轮全量同步并聚合结果
// 任一阶段的不可恢复错误直接向上抛，由调用方决定如何处置
func (s *FullSyncService) RunFullSync(ctx context.Context, opts SyncOptions) (*FullSyncResult, error) {
	start := time.Now()
	log.Println("[FullSync] 开始全量同步...")

	brands, err := s.source.GetBrands(ctx)
	if err != nil {
		return nil, fmt.Errorf("拉取品牌失败: %w", err)
	}
	brandResult, err := s.syncSvc.SyncBrands(ctx, brands, opts)
	if err != nil {
		return nil, err
	}
	log.Printf("[FullSync] 品牌: 新增 %d, 更新 %d, 删除 %d, 跳过 %d",
		brandResult.Created, brandResult.Updated, brandResult.Deleted, brandResult.Skipped)

	groups, err := s.source.GetItemGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("拉取分组失败: %w", err)
	}
	categoryResult, err := s.syncSvc.SyncCategories(ctx, groups, opts)
	if err != nil {
		return nil, err
	}
	log.Printf("[FullSync] 分类: 新增 %d, 更新 %d, 删除 %d, 跳过 %d",
		categoryResult.Created, categoryResult.Updated, categoryResult.Deleted, categoryResult.Skipped)

	items, prices, err := s.fetchItems(ctx)
	if err != nil {
		return nil, err
	}
	productResult, err := s.syncSvc.SyncProducts(ctx, items, prices, opts)
	if err != nil {
		return nil, err
	}
	log.Printf("[FullSync] 商品: 新增 %d, 更新 %d, 删除 %d, 跳过 %d",
		productResult.Created, productResult.Updated, productResult.Deleted, productResult.Skipped)

	result := &FullSyncResult{
		Brands:     brandResult,
		Categories: categoryResult,
		Products:   productResult,
		DurationMs: time.Since(start).Milliseconds(),
	}
	log.Printf("[FullSync] 全量同步完成，耗时 %v", time.Since(start))
	return result, nil
}

// fetchItems 分页拉取全部商品，并为每页并发拉取价目表
// 单个商品的价格拉取失败降级为空价目表，不中断整轮同步
func (s *FullSyncService) fetchItems(ctx context.Context) ([]erpnext.Item, map[string][]erpnext.ItemPrice, error) {
	var all []erpnext.Item
	prices := make(map[string][]erpnext.ItemPrice)
	var mu sync.Mutex

	page := 1
	for {
		items, pg, err := s.source.GetItems(ctx, page, s.pageSize)
		if err != nil {
			return nil, nil, fmt.Errorf("拉取商品第 %d 页失败: %w", page, err)
		}
		all = append(all, items...)

		sem := make(chan struct{}, s.priceConcurrency)
		var wg sync.WaitGroup
		for i := range items {
			item := items[i]
			sem <- struct{}{}
			wg.Add(1)

			go func() {
				defer wg.Done()
				defer func() { <-sem }()

				entries, err := s.source.GetItemPrices(ctx, item.ItemCode)
				if err != nil {
					log.Printf("[FullSync] 拉取价格失败 item=%s: %v，按空价目表处理", item.ItemCode, err)
					entries = nil
				}
				mu.Lock()
				prices[item.ItemCode] = entries
				mu.Unlock()
			}()
		}
		wg.Wait()

		if pg == nil || !pg.HasMore {
			break
		}
		page++
	}

	return all, prices, nil
}
