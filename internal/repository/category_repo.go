package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"storefront_sync/internal/model"
)

// ==================== 接口定义 ====================

// CategoryRepository 分类仓储接口
type CategoryRepository interface {
	ListAll(ctx context.Context) ([]model.StorefrontCategory, error)
	GetByERPNextName(ctx context.Context, name string) (*model.StorefrontCategory, error)

	// NameIDMap 返回 erpnext_name -> id 的映射，供商品同步解析外键
	NameIDMap(ctx context.Context) (map[string]string, error)

	// BatchUpsert 按 id 冲突更新；调用方必须保证切片内父行排在子行之前
	BatchUpsert(ctx context.Context, categories []model.StorefrontCategory) error

	// ClearParentRefs 将所有指向 parentID 的子分类的 parent_id 置空
	// 删除父分类前的解链步骤
	ClearParentRefs(ctx context.Context, parentID string) error
	DeleteByID(ctx context.Context, id string) error

	Count(ctx context.Context) (int64, error)
}

// categoryUpsertColumns id 冲突时刷新的列
var categoryUpsertColumns = []string{
	"erpnext_name", "title", "slug", "parent_id",
	"is_visible", "sort_order", "image_url",
	"updated_at",
}

// ==================== 仓储实现 ====================

type categoryRepo struct {
	db *gorm.DB
}

// NewCategoryRepository 创建分类仓储
func NewCategoryRepository(db *gorm.DB) CategoryRepository {
	return &categoryRepo{db: db}
}

func (r *categoryRepo) ListAll(ctx context.Context) ([]model.StorefrontCategory, error) {
	var categories []model.StorefrontCategory
	if err := r.db.WithContext(ctx).Find(&categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}

func (r *categoryRepo) GetByERPNextName(ctx context.Context, name string) (*model.StorefrontCategory, error) {
	var category model.StorefrontCategory
	err := r.db.WithContext(ctx).
		Where("erpnext_name = ?", name).
		First(&category).Error
	if err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *categoryRepo) NameIDMap(ctx context.Context) (map[string]string, error) {
	var rows []struct {
		ID          string `gorm:"column:id"`
		ERPNextName string `gorm:"column:erpnext_name"`
	}
	err := r.db.WithContext(ctx).
		Model(&model.StorefrontCategory{}).
		Select("id", "erpnext_name").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	m := make(map[string]string, len(rows))
	for _, row := range rows {
		m[row.ERPNextName] = row.ID
	}
	return m, nil
}

func (r *categoryRepo) BatchUpsert(ctx context.Context, categories []model.StorefrontCategory) error {
	if len(categories) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(categoryUpsertColumns),
	}).Create(&categories).Error
}

func (r *categoryRepo) ClearParentRefs(ctx context.Context, parentID string) error {
	return r.db.WithContext(ctx).
		Model(&model.StorefrontCategory{}).
		Where("parent_id = ?", parentID).
		Update("parent_id", nil).Error
}

func (r *categoryRepo) DeleteByID(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&model.StorefrontCategory{}).Error
}

func (r *categoryRepo) Count(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&model.StorefrontCategory{}).Count(&total).Error
	return total, err
}
