package model

import "time"

// StorefrontBrand 品牌读模型（ERPNext Brand 的扁平化投影）
type StorefrontBrand struct {
	ID          string `gorm:"primaryKey;size:36" json:"id"`
	ERPNextName string `gorm:"column:erpnext_name;size:140;uniqueIndex;not null" json:"erpnext_name"`
	Title       string `gorm:"size:255" json:"title"`
	Slug        string `gorm:"size:255;index" json:"slug"`
	Description string `gorm:"type:text" json:"description"`
	LogoURL     string `gorm:"size:512" json:"logo_url"`
	IsVisible   bool   `gorm:"default:true" json:"is_visible"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (StorefrontBrand) TableName() string {
	return "storefront_brands"
}
