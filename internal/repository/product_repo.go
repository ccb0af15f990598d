package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"storefront_sync/internal/model"
)

// ==================== 接口定义 ====================

// ProductRepository 商品仓储接口
type ProductRepository interface {
	ListAll(ctx context.Context) ([]model.StorefrontProduct, error)
	GetByERPNextName(ctx context.Context, name string) (*model.StorefrontProduct, error)

	// BatchUpsert 按 id 冲突更新，整批一条语句
	BatchUpsert(ctx context.Context, products []model.StorefrontProduct) error
	DeleteByIDs(ctx context.Context, ids []string) error

	Count(ctx context.Context) (int64, error)
}

// productUpsertColumns id 冲突时刷新的列
// 注意：不要更新 created_at
var productUpsertColumns = []string{
	"erpnext_name", "item_code", "title", "description", "slug", "image_url",
	"price", "sale_price", "brand_id", "categories",
	"is_visible", "is_featured", "search_boost",
	"has_variants", "variant_of",
	"weight_lbs", "ship_length_in", "ship_width_in", "ship_height_in",
	"is_hazmat", "is_oversized", "ships_free", "ltl_freight_only",
	"updated_at",
}

// ==================== 仓储实现 ====================

type productRepo struct {
	db *gorm.DB
}

// NewProductRepository 创建商品仓储
func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepo{db: db}
}

func (r *productRepo) ListAll(ctx context.Context) ([]model.StorefrontProduct, error) {
	var products []model.StorefrontProduct
	if err := r.db.WithContext(ctx).Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

func (r *productRepo) GetByERPNextName(ctx context.Context, name string) (*model.StorefrontProduct, error) {
	var product model.StorefrontProduct
	err := r.db.WithContext(ctx).
		Where("erpnext_name = ?", name).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepo) BatchUpsert(ctx context.Context, products []model.StorefrontProduct) error {
	if len(products) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(productUpsertColumns),
	}).Create(&products).Error
}

func (r *productRepo) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Delete(&model.StorefrontProduct{}).Error
}

func (r *productRepo) Count(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&model.StorefrontProduct{}).Count(&total).Error
	return total, err
}
