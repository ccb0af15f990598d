package model

import "time"

// StorefrontCategory 分类读模型（ERPNext Item Group 的扁平化投影）
// ParentID 自引用外键，写入时必须保证父行先于子行存在
type StorefrontCategory struct {
	ID          string  `gorm:"primaryKey;size:36" json:"id"`
	ERPNextName string  `gorm:"column:erpnext_name;size:140;uniqueIndex;not null" json:"erpnext_name"`
	Title       string  `gorm:"size:255" json:"title"`
	Slug        string  `gorm:"size:255;index" json:"slug"`
	ParentID    *string `gorm:"size:36;index" json:"parent_id,omitempty"` // 根分类为 NULL
	IsVisible   bool    `gorm:"default:true" json:"is_visible"`
	SortOrder   int     `gorm:"default:0" json:"sort_order"`
	ImageURL    string  `gorm:"size:512" json:"image_url"`

	// 自引用外键约束：建表时生成 REFERENCES storefront_categories(id)
	// 删除走"先解链后删"的两步，不依赖级联
	Parent *StorefrontCategory `gorm:"foreignKey:ParentID;references:ID" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (StorefrontCategory) TableName() string {
	return "storefront_categories"
}
