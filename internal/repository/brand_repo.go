package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"storefront_sync/internal/model"
)

// ==================== 接口定义 ====================

// BrandRepository 品牌仓储接口
type BrandRepository interface {
	ListAll(ctx context.Context) ([]model.StorefrontBrand, error)
	GetByERPNextName(ctx context.Context, name string) (*model.StorefrontBrand, error)

	// NameIDMap 返回 erpnext_name -> id 的映射，供商品同步解析外键
	NameIDMap(ctx context.Context) (map[string]string, error)

	BatchUpsert(ctx context.Context, brands []model.StorefrontBrand) error
	DeleteByIDs(ctx context.Context, ids []string) error

	Count(ctx context.Context) (int64, error)
}

// brandUpsertColumns id 冲突时刷新的列
var brandUpsertColumns = []string{
	"erpnext_name", "title", "slug", "description", "logo_url",
	"is_visible", "updated_at",
}

// ==================== 仓储实现 ====================

type brandRepo struct {
	db *gorm.DB
}

// NewBrandRepository 创建品牌仓储
func NewBrandRepository(db *gorm.DB) BrandRepository {
	return &brandRepo{db: db}
}

func (r *brandRepo) ListAll(ctx context.Context) ([]model.StorefrontBrand, error) {
	var brands []model.StorefrontBrand
	if err := r.db.WithContext(ctx).Find(&brands).Error; err != nil {
		return nil, err
	}
	return brands, nil
}

func (r *brandRepo) GetByERPNextName(ctx context.Context, name string) (*model.StorefrontBrand, error) {
	var brand model.StorefrontBrand
	err := r.db.WithContext(ctx).
		Where("erpnext_name = ?", name).
		First(&brand).Error
	if err != nil {
		return nil, err
	}
	return &brand, nil
}

func (r *brandRepo) NameIDMap(ctx context.Context) (map[string]string, error) {
	var rows []struct {
		ID          string `gorm:"column:id"`
		ERPNextName string `gorm:"column:erpnext_name"`
	}
	err := r.db.WithContext(ctx).
		Model(&model.StorefrontBrand{}).
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

func (r *brandRepo) BatchUpsert(ctx context.Context, brands []model.StorefrontBrand) error {
	if len(brands) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(brandUpsertColumns),
	}).Create(&brands).Error
}

func (r *brandRepo) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Delete(&model.StorefrontBrand{}).Error
}

func (r *brandRepo) Count(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&model.StorefrontBrand{}).Count(&total).Error
	return total, err
}
