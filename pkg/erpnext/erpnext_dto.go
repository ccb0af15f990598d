package erpnext

// ==================== DTO：ERPNext REST API 原始记录 ====================

// 商品转换时识别的两个价目表
const (
	PriceListStandard = "Standard Selling"
	PriceListSale     = "Sale Price"
)

// ItemGroupRoot ERPNext 分组树的约定根节点
// 直接挂在它下面的分组是店面根分类
const ItemGroupRoot = "All Item Groups"

// Item ERPNext 商品文档（商品或变体）
// Name 是不可变的文档标识；ItemCode 是 SKU
type Item struct {
	Name          string  `json:"name"`
	ItemCode      string  `json:"item_code"`
	ItemName      string  `json:"item_name"`
	Description   string  `json:"description"`
	ItemGroup     string  `json:"item_group"`
	Brand         string  `json:"brand"`
	StandardRate  float64 `json:"standard_rate"`
	Disabled      int     `json:"disabled"`
	HasVariants   int     `json:"has_variants"`
	VariantOf     string  `json:"variant_of"`
	WeightPerUnit float64 `json:"weight_per_unit"`
	WeightUOM     string  `json:"weight_uom"`
	Image         string  `json:"image"`

	// 店面自定义字段。ShowInWebsite 用指针：字段缺失表示可见，
	// 与显式 0 不同
	ShowInWebsite      *int     `json:"custom_show_in_website"`
	Featured           int      `json:"custom_featured"`
	FeaturedInCategory string   `json:"custom_featured_in_category"`
	SearchBoost        *float64 `json:"custom_search_boost"`
	Slug               string   `json:"custom_slug"`

	// 物流属性
	IsHazmat       int      `json:"custom_is_hazmat"`
	IsOversized    int      `json:"custom_oversized"`
	ShipsFree      int      `json:"custom_ships_free"`
	LTLFreightOnly int      `json:"custom_ltl_freight_only"`
	ShipLengthIn   *float64 `json:"custom_ship_length_in"`
	ShipWidthIn    *float64 `json:"custom_ship_width_in"`
	ShipHeightIn   *float64 `json:"custom_ship_height_in"`
}

// ItemGroup ERPNext 分组文档（分类）
type ItemGroup struct {
	Name            string `json:"name"`
	ItemGroupName   string `json:"item_group_name"`
	ParentItemGroup string `json:"parent_item_group"`
	Image           string `json:"image"`

	ShowInWebsite *int   `json:"custom_show_in_website"`
	SortOrder     int    `json:"custom_sort_order"`
	Slug          string `json:"custom_slug"`
}

// Brand ERPNext 品牌文档
type Brand struct {
	Name        string `json:"name"`
	Brand       string `json:"brand"`
	Description string `json:"description"`
	Image       string `json:"image"`

	ShowInWebsite *int `json:"custom_show_in_website"`
	// WebsiteURL 可选的 slug 覆盖值，可能带斜杠（"/sol-ark/"）
	WebsiteURL string `json:"custom_website_url"`
}

// ItemPrice 一条 (item_code, price_list, rate) 价目记录
// 同一商品可出现在多个价目表中
type ItemPrice struct {
	ItemCode      string  `json:"item_code"`
	PriceList     string  `json:"price_list"`
	PriceListRate float64 `json:"price_list_rate"`
}

// Pagination 商品列表单页的位置信息
type Pagination struct {
	Page    int  `json:"page"`
	Limit   int  `json:"limit"`
	HasMore bool `json:"has_more"`
}

// listResponse ERPNext 列表查询的响应外壳
type listResponse[T any] struct {
	Data []T `json:"data"`
}
