package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"storefront_sync/internal/model"
	"storefront_sync/internal/repository"
	"storefront_sync/pkg/erpnext"
)

// DefaultBatchSize 单次 upsert/delete 语句的最大行数
const DefaultBatchSize = 50

// ==================== 结果类型 ====================

// SyncError 一次批量或单条写入失败的记录
// ID 为批次合成标识（batch_N）或记录的 erpnext_name
type SyncError struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// SyncResult 一种实体类型一轮同步的汇总
type SyncResult struct {
	EntityType string      `json:"entity_type"`
	Created    int         `json:"created"`
	Updated    int         `json:"updated"`
	Deleted    int         `json:"deleted"`
	Skipped    int         `json:"skipped"`
	Errors     []SyncError `json:"errors,omitempty"`
	DurationMs int64       `json:"duration_ms"`
}

// SyncOptions 同步选项
type SyncOptions struct {
	// BatchSize 为 0 时使用 DefaultBatchSize
	BatchSize int
	// DryRun 只计算 create/update/skip，不产生任何写入
	DryRun bool
}

func (o SyncOptions) batchSize() int {
	if o.BatchSize > 0 {
		return o.BatchSize
	}
	return DefaultBatchSize
}

// 单条同步（webhook 路径）的动作结果
const (
	SingleActionCreated = "created"
	SingleActionUpdated = "updated"
	SingleActionSkipped = "skipped"
)

// SingleSyncResult 单条记录同步的结果
type SingleSyncResult struct {
	Action string `json:"action"`
	ID     string `json:"id"`
}

// logAction upsert 阶段待记录的审计动作
type logAction struct {
	targetID string
	action   string
}

// ==================== SyncService ====================

// SyncService 按实体类型做一轮幂等对账：
// 加载已有目标记录 -> 转换+变更检测 -> 批量 upsert -> 删除消失的记录
// -> 写审计日志和同步水位
//
// 跨实体的依赖顺序（品牌/分类先于商品）由 FullSyncService 负责，
// 这里不做校验
type SyncService struct {
	productRepo  repository.ProductRepository
	categoryRepo repository.CategoryRepository
	brandRepo    repository.BrandRepository
	logRepo      repository.SyncLogRepository
	transformer  *Transformer
}

// NewSyncService 创建同步服务
func NewSyncService(
	productRepo repository.ProductRepository,
	categoryRepo repository.CategoryRepository,
	brandRepo repository.BrandRepository,
	logRepo repository.SyncLogRepository,
	transformer *Transformer,
) *SyncService {
	if transformer == nil {
		transformer = NewTransformer()
	}
	return &SyncService{
		productRepo:  productRepo,
		categoryRepo: categoryRepo,
		brandRepo:    brandRepo,
		logRepo:      logRepo,
		transformer:  transformer,
	}
}

// ==================== 品牌同步 ====================

// SyncBrands 全量对账品牌集合
func (s *SyncService) SyncBrands(ctx context.Context, brands []erpnext.Brand, opts SyncOptions) (*SyncResult, error) {
	start := time.Now()
	result := &SyncResult{EntityType: model.EntityTypeBrand}

	existingList, err := s.brandRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("加载已有品牌失败: %w", err)
	}
	existing := make(map[string]*model.StorefrontBrand, len(existingList))
	for i := range existingList {
		existing[existingList[i].ERPNextName] = &existingList[i]
	}

	// 转换 + 变更检测
	seen := make(map[string]bool, len(brands))
	var upserts []model.StorefrontBrand
	var actions []logAction
	for _, src := range brands {
		seen[src.Name] = true

		old := existing[src.Name]
		existingID := ""
		if old != nil {
			existingID = old.ID
		}
		fresh := s.transformer.TransformBrand(src, existingID)

		if old != nil {
			if !HasBrandChanged(old, fresh) {
				result.Skipped++
				continue
			}
			upserts = append(upserts, *fresh)
			actions = append(actions, logAction{targetID: fresh.ID, action: model.SyncActionUpdate})
		} else {
			upserts = append(upserts, *fresh)
			actions = append(actions, logAction{targetID: fresh.ID, action: model.SyncActionCreate})
		}
	}

	logs := s.applyUpserts(ctx, result, opts, model.EntityTypeBrand, len(upserts), actions,
		func(ctx context.Context, lo, hi int) error {
			return s.brandRepo.BatchUpsert(ctx, upserts[lo:hi])
		})

	// 源端消失的品牌删除
	var deleteIDs []string
	for name, old := range existing {
		if !seen[name] {
			deleteIDs = append(deleteIDs, old.ID)
		}
	}
	logs = append(logs, s.applyBatchDeletes(ctx, result, opts, model.EntityTypeBrand, deleteIDs,
		func(ctx context.Context, ids []string) error {
			return s.brandRepo.DeleteByIDs(ctx, ids)
		})...)

	if err := s.finishRun(ctx, opts, model.EntityTypeBrand, logs); err != nil {
		return result, err
	}

	result.DurationMs = time.Since(start).Milliseconds()
	return result, nil
}

// ==================== 分类同步 ====================

// SyncCategories 全量对账分类集合
// 先给所有源记录预分配 ID，再按层级排序后写入，保证自引用外键的
// 父行先于子行；删除时子先父后，并在删父前解链残余子引用
func (s *SyncService) SyncCategories(ctx context.Context, groups []erpnext.ItemGroup, opts SyncOptions) (*SyncResult, error) {
	start := time.Now()
	result := &SyncResult{EntityType: model.EntityTypeCategory}

	existingList, err := s.categoryRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("加载已有分类失败: %w", err)
	}
	existing := make(map[string]*model.StorefrontCategory, len(existingList))
	for i := range existingList {
		existing[existingList[i].ERPNextName] = &existingList[i]
	}

	// 预分配 ID：复用已有 ID，新记录先生成
	// 这样 parent_id 可以在转换阶段一次性解析
	idByName := make(map[string]string, len(groups))
	for _, g := range groups {
		if old := existing[g.Name]; old != nil {
			idByName[g.Name] = old.ID
		} else {
			idByName[g.Name] = s.transformer.NewID()
		}
	}

	sorted := SortItemGroupsByHierarchy(groups)

	seen := make(map[string]bool, len(groups))
	var upserts []model.StorefrontCategory
	var actions []logAction
	for _, g := range sorted {
		seen[g.Name] = true

		fresh := s.transformer.TransformItemGroup(g, TransformItemGroupOptions{
			ExistingID: idByName[g.Name],
			ParentMap:  idByName,
		})

		if old := existing[g.Name]; old != nil {
			if !HasCategoryChanged(old, fresh) {
				result.Skipped++
				continue
			}
			upserts = append(upserts, *fresh)
			actions = append(actions, logAction{targetID: fresh.ID, action: model.SyncActionUpdate})
		} else {
			upserts = append(upserts, *fresh)
			actions = append(actions, logAction{targetID: fresh.ID, action: model.SyncActionCreate})
		}
	}

	logs := s.applyUpserts(ctx, result, opts, model.EntityTypeCategory, len(upserts), actions,
		func(ctx context.Context, lo, hi int) error {
			return s.categoryRepo.BatchUpsert(ctx, upserts[lo:hi])
		})

	// 删除：子先父后 + 删前解链
	var toDelete []*model.StorefrontCategory
	for name, old := range existing {
		if !seen[name] {
			toDelete = append(toDelete, old)
		}
	}
	logs = append(logs, s.deleteCategories(ctx, result, opts, toDelete)...)

	if err := s.finishRun(ctx, opts, model.EntityTypeCategory, logs); err != nil {
		return result, err
	}

	result.DurationMs = time.Since(start).Milliseconds()
	return result, nil
}

// deleteCategories 按子先父后的顺序逐条删除分类
// 即使子分类同批被删，也保留“先解链后删除”的两步，避免外键违例
func (s *SyncService) deleteCategories(ctx context.Context, result *SyncResult, opts SyncOptions, toDelete []*model.StorefrontCategory) []model.SyncLog {
	if opts.DryRun || len(toDelete) == 0 {
		return nil
	}

	var logs []model.SyncLog
	for _, c := range sortCategoriesForDeletion(toDelete) {
		// 先把仍指向它的子分类解链，再删自身
		err := s.categoryRepo.ClearParentRefs(ctx, c.ID)
		if err == nil {
			err = s.categoryRepo.DeleteByID(ctx, c.ID)
		}

		if err != nil {
			result.Errors = append(result.Errors, SyncError{ID: c.ERPNextName, Error: err.Error()})
			logs = append(logs, model.SyncLog{
				EntityType:   model.EntityTypeCategory,
				EntityID:     c.ID,
				Action:       model.SyncActionDelete,
				Status:       model.SyncStatusFailed,
				ErrorMessage: err.Error(),
			})
			continue
		}

		result.Deleted++
		logs = append(logs, model.SyncLog{
			EntityType: model.EntityTypeCategory,
			EntityID:   c.ID,
			Action:     model.SyncActionDelete,
			Status:     model.SyncStatusSuccess,
		})
	}
	return logs
}

// sortCategoriesForDeletion 逐层剥叶子：每轮取出不再被剩余记录引用为
// 父的节点。出现环时兜底按原顺序追加
func sortCategoriesForDeletion(toDelete []*model.StorefrontCategory) []*model.StorefrontCategory {
	ordered := make([]*model.StorefrontCategory, 0, len(toDelete))
	remaining := toDelete

	for len(remaining) > 0 {
		referenced := make(map[string]bool, len(remaining))
		for _, c := range remaining {
			if c.ParentID != nil {
				referenced[*c.ParentID] = true
			}
		}

		var next, rest []*model.StorefrontCategory
		for _, c := range remaining {
			if !referenced[c.ID] {
				next = append(next, c)
			} else {
				rest = append(rest, c)
			}
		}

		if len(next) == 0 {
			ordered = append(ordered, remaining...)
			break
		}
		ordered = append(ordered, next...)
		remaining = rest
	}

	return ordered
}

// ==================== 商品同步 ====================

// SyncProducts 全量对账商品集合
// prices 以 item_code 为键；品牌/分类外键映射从目标库现读，
// 调用方必须先完成品牌与分类同步
func (s *SyncService) SyncProducts(ctx context.Context, items []erpnext.Item, prices map[string][]erpnext.ItemPrice, opts SyncOptions) (*SyncResult, error) {
	start := time.Now()
	result := &SyncResult{EntityType: model.EntityTypeProduct}

	existingList, err := s.productRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("加载已有商品失败: %w", err)
	}
	existing := make(map[string]*model.StorefrontProduct, len(existingList))
	for i := range existingList {
		existing[existingList[i].ERPNextName] = &existingList[i]
	}

	brandMap, err := s.brandRepo.NameIDMap(ctx)
	if err != nil {
		return nil, fmt.Errorf("加载品牌映射失败: %w", err)
	}
	categoryMap, err := s.categoryRepo.NameIDMap(ctx)
	if err != nil {
		return nil, fmt.Errorf("加载分类映射失败: %w", err)
	}

	seen := make(map[string]bool, len(items))
	var upserts []model.StorefrontProduct
	var actions []logAction
	for _, item := range items {
		seen[item.Name] = true

		old := existing[item.Name]
		existingID := ""
		if old != nil {
			existingID = old.ID
		}
		fresh := s.transformer.TransformItem(item, TransformItemOptions{
			ExistingID:  existingID,
			Prices:      prices[item.ItemCode],
			BrandMap:    brandMap,
			CategoryMap: categoryMap,
		})

		if old != nil {
			if !HasProductChanged(old, fresh) {
				result.Skipped++
				continue
			}
			upserts = append(upserts, *fresh)
			actions = append(actions, logAction{targetID: fresh.ID, action: model.SyncActionUpdate})
		} else {
			upserts = append(upserts, *fresh)
			actions = append(actions, logAction{targetID: fresh.ID, action: model.SyncActionCreate})
		}
	}

	logs := s.applyUpserts(ctx, result, opts, model.EntityTypeProduct, len(upserts), actions,
		func(ctx context.Context, lo, hi int) error {
			return s.productRepo.BatchUpsert(ctx, upserts[lo:hi])
		})

	var deleteIDs []string
	for name, old := range existing {
		if !seen[name] {
			deleteIDs = append(deleteIDs, old.ID)
		}
	}
	logs = append(logs, s.applyBatchDeletes(ctx, result, opts, model.EntityTypeProduct, deleteIDs,
		func(ctx context.Context, ids []string) error {
			return s.productRepo.DeleteByIDs(ctx, ids)
		})...)

	if err := s.finishRun(ctx, opts, model.EntityTypeProduct, logs); err != nil {
		return result, err
	}

	result.DurationMs = time.Since(start).Milliseconds()
	return result, nil
}

// ==================== 单条同步（webhook 路径） ====================

// SyncSingleBrand 同步单个品牌，绝不触发删除
func (s *SyncService) SyncSingleBrand(ctx context.Context, brand erpnext.Brand) (*SingleSyncResult, error) {
	old, err := s.brandRepo.GetByERPNextName(ctx, brand.Name)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("查询品牌失败: %w", err)
	}

	existingID := ""
	if old != nil {
		existingID = old.ID
	}
	fresh := s.transformer.TransformBrand(brand, existingID)

	if old != nil && !HasBrandChanged(old, fresh) {
		return &SingleSyncResult{Action: SingleActionSkipped, ID: old.ID}, nil
	}

	action := model.SyncActionCreate
	if old != nil {
		action = model.SyncActionUpdate
	}
	if err := s.brandRepo.BatchUpsert(ctx, []model.StorefrontBrand{*fresh}); err != nil {
		return nil, fmt.Errorf("写入品牌失败: %w", err)
	}
	if err := s.appendSingleLog(ctx, model.EntityTypeBrand, fresh.ID, action); err != nil {
		return nil, err
	}

	return &SingleSyncResult{Action: singleAction(action), ID: fresh.ID}, nil
}

// SyncSingleItemGroup 同步单个分类，绝不触发删除
func (s *SyncService) SyncSingleItemGroup(ctx context.Context, group erpnext.ItemGroup) (*SingleSyncResult, error) {
	old, err := s.categoryRepo.GetByERPNextName(ctx, group.Name)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("查询分类失败: %w", err)
	}

	parentMap, err := s.categoryRepo.NameIDMap(ctx)
	if err != nil {
		return nil, fmt.Errorf("加载分类映射失败: %w", err)
	}

	existingID := ""
	if old != nil {
		existingID = old.ID
	}
	fresh := s.transformer.TransformItemGroup(group, TransformItemGroupOptions{
		ExistingID: existingID,
		ParentMap:  parentMap,
	})

	if old != nil && !HasCategoryChanged(old, fresh) {
		return &SingleSyncResult{Action: SingleActionSkipped, ID: old.ID}, nil
	}

	action := model.SyncActionCreate
	if old != nil {
		action = model.SyncActionUpdate
	}
	if err := s.categoryRepo.BatchUpsert(ctx, []model.StorefrontCategory{*fresh}); err != nil {
		return nil, fmt.Errorf("写入分类失败: %w", err)
	}
	if err := s.appendSingleLog(ctx, model.EntityTypeCategory, fresh.ID, action); err != nil {
		return nil, err
	}

	return &SingleSyncResult{Action: singleAction(action), ID: fresh.ID}, nil
}

// SyncSingleItem 同步单个商品，绝不触发删除
// prices 为该 item_code 的价目表条目，可为空
func (s *SyncService) SyncSingleItem(ctx context.Context, item erpnext.Item, prices []erpnext.ItemPrice) (*SingleSyncResult, error) {
	old, err := s.productRepo.GetByERPNextName(ctx, item.Name)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("查询商品失败: %w", err)
	}

	brandMap, err := s.brandRepo.NameIDMap(ctx)
	if err != nil {
		return nil, fmt.Errorf("加载品牌映射失败: %w", err)
	}
	categoryMap, err := s.categoryRepo.NameIDMap(ctx)
	if err != nil {
		return nil, fmt.Errorf("加载分类映射失败: %w", err)
	}

	existingID := ""
	if old != nil {
		existingID = old.ID
	}
	fresh := s.transformer.TransformItem(item, TransformItemOptions{
		ExistingID:  existingID,
		Prices:      prices,
		BrandMap:    brandMap,
		CategoryMap: categoryMap,
	})

	if old != nil && !HasProductChanged(old, fresh) {
		return &SingleSyncResult{Action: SingleActionSkipped, ID: old.ID}, nil
	}

	action := model.SyncActionCreate
	if old != nil {
		action = model.SyncActionUpdate
	}
	if err := s.productRepo.BatchUpsert(ctx, []model.StorefrontProduct{*fresh}); err != nil {
		return nil, fmt.Errorf("写入商品失败: %w", err)
	}
	if err := s.appendSingleLog(ctx, model.EntityTypeProduct, fresh.ID, action); err != nil {
		return nil, err
	}

	return &SingleSyncResult{Action: singleAction(action), ID: fresh.ID}, nil
}

// ==================== 公共片段 ====================

// applyUpserts 分批执行 upsert，单批失败只记录不中断
// 返回待落库的审计日志；dry run 只累计计数
func (s *SyncService) applyUpserts(
	ctx context.Context,
	result *SyncResult,
	opts SyncOptions,
	entityType string,
	total int,
	actions []logAction,
	upsertRange func(ctx context.Context, lo, hi int) error,
) []model.SyncLog {
	batchSize := opts.batchSize()
	var logs []model.SyncLog

	for lo := 0; lo < total; lo += batchSize {
		hi := lo + batchSize
		if hi > total {
			hi = total
		}
		chunkActions := actions[lo:hi]

		if opts.DryRun {
			countActions(result, chunkActions)
			continue
		}

		if err := upsertRange(ctx, lo, hi); err != nil {
			batchID := fmt.Sprintf("batch_%d", lo/batchSize)
			result.Errors = append(result.Errors, SyncError{ID: batchID, Error: err.Error()})
			logs = append(logs, actionLogs(entityType, chunkActions, model.SyncStatusFailed, err.Error())...)
			continue
		}

		countActions(result, chunkActions)
		logs = append(logs, actionLogs(entityType, chunkActions, model.SyncStatusSuccess, "")...)
	}

	return logs
}

// applyBatchDeletes 分批删除，单批失败只记录不中断；dry run 不删
func (s *SyncService) applyBatchDeletes(
	ctx context.Context,
	result *SyncResult,
	opts SyncOptions,
	entityType string,
	ids []string,
	deleteIDs func(ctx context.Context, ids []string) error,
) []model.SyncLog {
	if opts.DryRun || len(ids) == 0 {
		return nil
	}

	batchSize := opts.batchSize()
	var logs []model.SyncLog

	for lo := 0; lo < len(ids); lo += batchSize {
		hi := lo + batchSize
		if hi > len(ids) {
			hi = len(ids)
		}
		chunk := ids[lo:hi]

		if err := deleteIDs(ctx, chunk); err != nil {
			batchID := fmt.Sprintf("delete_batch_%d", lo/batchSize)
			result.Errors = append(result.Errors, SyncError{ID: batchID, Error: err.Error()})
			for _, id := range chunk {
				logs = append(logs, model.SyncLog{
					EntityType:   entityType,
					EntityID:     id,
					Action:       model.SyncActionDelete,
					Status:       model.SyncStatusFailed,
					ErrorMessage: err.Error(),
				})
			}
			continue
		}

		result.Deleted += len(chunk)
		for _, id := range chunk {
			logs = append(logs, model.SyncLog{
				EntityType: entityType,
				EntityID:   id,
				Action:     model.SyncActionDelete,
				Status:     model.SyncStatusSuccess,
			})
		}
	}

	return logs
}

// finishRun 落库审计日志并推进同步水位；dry run 不写
func (s *SyncService) finishRun(ctx context.Context, opts SyncOptions, entityType string, logs []model.SyncLog) error {
	if opts.DryRun {
		return nil
	}
	if err := s.logRepo.Append(ctx, logs); err != nil {
		return fmt.Errorf("写入同步日志失败: %w", err)
	}
	if err := s.logRepo.SetLastSync(ctx, entityType, time.Now().UTC()); err != nil {
		return fmt.Errorf("更新同步水位失败: %w", err)
	}
	return nil
}

func (s *SyncService) appendSingleLog(ctx context.Context, entityType, targetID, action string) error {
	err := s.logRepo.Append(ctx, []model.SyncLog{{
		EntityType: entityType,
		EntityID:   targetID,
		Action:     action,
		Status:     model.SyncStatusSuccess,
	}})
	if err != nil {
		return fmt.Errorf("写入同步日志失败: %w", err)
	}
	return nil
}

func countActions(result *SyncResult, actions []logAction) {
	for _, a := range actions {
		if a.action == model.SyncActionCreate {
			result.Created++
		} else {
			result.Updated++
		}
	}
}

func actionLogs(entityType string, actions []logAction, status, errMsg string) []model.SyncLog {
	logs := make([]model.SyncLog, 0, len(actions))
	for _, a := range actions {
		logs = append(logs, model.SyncLog{
			EntityType:   entityType,
			EntityID:     a.targetID,
			Action:       a.action,
			Status:       status,
			ErrorMessage: errMsg,
		})
	}
	return logs
}

func singleAction(action string) string {
	if action == model.SyncActionCreate {
		return SingleActionCreated
	}
	return SingleActionUpdated
}
