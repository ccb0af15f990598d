package model

import (
	"time"

	"gorm.io/datatypes"
)

// StorefrontProduct 商品读模型（ERPNext Item 的扁平化投影）
// ID 在首次同步时本地生成，之后永不变更；ERPNextName 是跨同步的稳定关联键
type StorefrontProduct struct {
	// --- 身份标识 ---
	ID          string `gorm:"primaryKey;size:36" json:"id"`
	ERPNextName string `gorm:"column:erpnext_name;size:140;uniqueIndex;not null" json:"erpnext_name"`
	ItemCode    string `gorm:"size:140;index" json:"item_code"` // SKU

	// --- 展示信息 ---
	Title       string `gorm:"size:255" json:"title"`
	Description string `gorm:"type:text" json:"description"`
	Slug        string `gorm:"size:255;index" json:"slug"`
	ImageURL    string `gorm:"size:512" json:"image_url"`

	// --- 价格 ---
	Price     float64  `gorm:"default:0" json:"price"`
	SalePrice *float64 `json:"sale_price,omitempty"` // 无促销价时为 NULL

	// --- 分类与品牌 ---
	BrandID *string `gorm:"size:36;index" json:"brand_id,omitempty"`
	// Categories 为 JSON 编码的分类 ID 数组
	// item_group 无法解析时保持 NULL（不是空数组 "[]"）
	Categories datatypes.JSON `json:"categories,omitempty"`

	// --- 可见性与运营 ---
	IsVisible   bool    `gorm:"default:true" json:"is_visible"`
	IsFeatured  bool    `gorm:"default:false" json:"is_featured"`
	SearchBoost float64 `gorm:"default:1" json:"search_boost"`

	// --- 变体 ---
	HasVariants bool    `gorm:"default:false" json:"has_variants"`
	VariantOf   *string `gorm:"size:140" json:"variant_of,omitempty"`

	// --- 物流 ---
	WeightLbs      *float64 `json:"weight_lbs,omitempty"` // 统一为磅
	ShipLengthIn   *float64 `json:"ship_length_in,omitempty"`
	ShipWidthIn    *float64 `json:"ship_width_in,omitempty"`
	ShipHeightIn   *float64 `json:"ship_height_in,omitempty"`
	IsHazmat       bool     `gorm:"default:false" json:"is_hazmat"`
	IsOversized    bool     `gorm:"default:false" json:"is_oversized"`
	ShipsFree      bool     `gorm:"default:false" json:"ships_free"`
	LTLFreightOnly bool     `gorm:"column:ltl_freight_only;default:false" json:"ltl_freight_only"`

	// --- 时间戳 ---
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (StorefrontProduct) TableName() string {
	return "storefront_products"
}
