package service

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"storefront_sync/internal/model"
	"storefront_sync/pkg/erpnext"
)

// kgToLbs 千克转磅系数
const kgToLbs = 2.20462

// ==================== Transformer ====================

// Transformer 纯转换层：把单条 ERPNext 记录映射为可落库的目标记录
// 不做任何 I/O；外键映射与已存在的目标 ID 由调用方注入
// NewID 可注入，测试时替换为确定性生成器
type Transformer struct {
	NewID func() string
}

// NewTransformer 创建转换器，默认使用 UUID 生成目标 ID
func NewTransformer() *Transformer {
	return &Transformer{NewID: uuid.NewString}
}

// ==================== 商品转换 ====================

// TransformItemOptions 商品转换的上下文
type TransformItemOptions struct {
	// ExistingID 已存在的目标 ID，为空则新生成
	ExistingID string
	// Prices 该 item_code 的全部价目表条目
	Prices []erpnext.ItemPrice
	// BrandMap 品牌名 -> 目标品牌 ID
	BrandMap map[string]string
	// CategoryMap 分组名 -> 目标分类 ID
	CategoryMap map[string]string
}

// TransformItem 把一个 ERPNext Item 转换为商品读模型
func (t *Transformer) TransformItem(item erpnext.Item, opts TransformItemOptions) *model.StorefrontProduct {
	id := opts.ExistingID
	if id == "" {
		id = t.NewID()
	}

	title := item.ItemName
	if title == "" {
		title = item.Name
	}

	slug := item.Slug
	if slug == "" {
		slug = Slugify(title)
	}

	// 零售价优先取 Standard Selling 价目表，缺失时回退 standard_rate
	// 促销价仅在 Sale Price 条目存在时设置
	price := item.StandardRate
	var salePrice *float64
	for _, p := range opts.Prices {
		switch p.PriceList {
		case erpnext.PriceListStandard:
			price = p.PriceListRate
		case erpnext.PriceListSale:
			rate := p.PriceListRate
			salePrice = &rate
		}
	}

	var brandID *string
	if item.Brand != "" {
		if bid, ok := opts.BrandMap[item.Brand]; ok {
			brandID = &bid
		}
	}

	// item_group 解析成功时 categories 为单元素数组
	// 解析失败保持 nil，落库为 NULL（与空数组语义不同）
	var categories datatypes.JSON
	if cid, ok := opts.CategoryMap[item.ItemGroup]; ok {
		raw, _ := json.Marshal([]string{cid})
		categories = raw
	}

	// 指定了可解析的 featured_in_category 时自动标记为精选
	// 避免两处源字段各自维护
	featured := item.Featured == 1
	if item.FeaturedInCategory != "" {
		if _, ok := opts.CategoryMap[item.FeaturedInCategory]; ok {
			featured = true
		}
	}

	var variantOf *string
	if item.VariantOf != "" {
		v := item.VariantOf
		variantOf = &v
	}

	boost := 1.0
	if item.SearchBoost != nil {
		boost = *item.SearchBoost
	}

	return &model.StorefrontProduct{
		ID:          id,
		ERPNextName: item.Name,
		ItemCode:    item.ItemCode,
		Title:       title,
		Description: item.Description,
		Slug:        slug,
		ImageURL:    item.Image,

		Price:     price,
		SalePrice: salePrice,

		BrandID:    brandID,
		Categories: categories,

		IsVisible:   item.Disabled != 1 && showInWebsite(item.ShowInWebsite),
		IsFeatured:  featured,
		SearchBoost: boost,

		HasVariants: item.HasVariants == 1,
		VariantOf:   variantOf,

		WeightLbs:      normalizeWeight(item.WeightPerUnit, item.WeightUOM),
		ShipLengthIn:   item.ShipLengthIn,
		ShipWidthIn:    item.ShipWidthIn,
		ShipHeightIn:   item.ShipHeightIn,
		IsHazmat:       item.IsHazmat == 1,
		IsOversized:    item.IsOversized == 1,
		ShipsFree:      item.ShipsFree == 1,
		LTLFreightOnly: item.LTLFreightOnly == 1,
	}
}

// ==================== 分类转换 ====================

// TransformItemGroupOptions 分类转换的上下文
type TransformItemGroupOptions struct {
	ExistingID string
	// ParentMap 分组名 -> 目标分类 ID，不包含根哨兵
	ParentMap map[string]string
}

// TransformItemGroup 把一个 ERPNext Item Group 转换为分类读模型
func (t *Transformer) TransformItemGroup(group erpnext.ItemGroup, opts TransformItemGroupOptions) *model.StorefrontCategory {
	id := opts.ExistingID
	if id == "" {
		id = t.NewID()
	}

	title := group.ItemGroupName
	if title == "" {
		title = group.Name
	}

	slug := group.Slug
	if slug == "" {
		slug = Slugify(title)
	}

	// 父分组缺失或无法映射时视为根分类
	var parentID *string
	if group.ParentItemGroup != "" && group.ParentItemGroup != erpnext.ItemGroupRoot {
		if pid, ok := opts.ParentMap[group.ParentItemGroup]; ok {
			parentID = &pid
		}
	}

	return &model.StorefrontCategory{
		ID:          id,
		ERPNextName: group.Name,
		Title:       title,
		Slug:        slug,
		ParentID:    parentID,
		IsVisible:   showInWebsite(group.ShowInWebsite),
		SortOrder:   group.SortOrder,
		ImageURL:    group.Image,
	}
}

// ==================== 品牌转换 ====================

// TransformBrand 把一个 ERPNext Brand 转换为品牌读模型
func (t *Transformer) TransformBrand(brand erpnext.Brand, existingID string) *model.StorefrontBrand {
	id := existingID
	if id == "" {
		id = t.NewID()
	}

	title := brand.Brand
	if title == "" {
		title = brand.Name
	}

	// URL 覆盖值可能带首尾斜杠（"/sol-ark/"），清理后直接采用
	slug := strings.Trim(strings.TrimSpace(brand.WebsiteURL), "/")
	if slug == "" {
		slug = Slugify(title)
	}

	return &model.StorefrontBrand{
		ID:          id,
		ERPNextName: brand.Name,
		Title:       title,
		Slug:        slug,
		Description: brand.Description,
		LogoURL:     brand.Image,
		IsVisible:   showInWebsite(brand.ShowInWebsite),
	}
}

// ==================== 变更检测 ====================

// HasProductChanged 逐字段比较已落库商品与新转换结果
// categories 按排序后的规范形式比较，元素顺序不同不算变更
func HasProductChanged(existing, fresh *model.StorefrontProduct) bool {
	if existing.ERPNextName != fresh.ERPNextName ||
		existing.ItemCode != fresh.ItemCode ||
		existing.Title != fresh.Title ||
		existing.Description != fresh.Description ||
		existing.Slug != fresh.Slug ||
		existing.ImageURL != fresh.ImageURL {
		return true
	}
	if existing.Price != fresh.Price || !floatPtrEqual(existing.SalePrice, fresh.SalePrice) {
		return true
	}
	if !strPtrEqual(existing.BrandID, fresh.BrandID) {
		return true
	}
	if !categoriesEqual(existing.Categories, fresh.Categories) {
		return true
	}
	if existing.IsVisible != fresh.IsVisible ||
		existing.IsFeatured != fresh.IsFeatured ||
		existing.SearchBoost != fresh.SearchBoost {
		return true
	}
	if existing.HasVariants != fresh.HasVariants || !strPtrEqual(existing.VariantOf, fresh.VariantOf) {
		return true
	}
	if !floatPtrEqual(existing.WeightLbs, fresh.WeightLbs) ||
		!floatPtrEqual(existing.ShipLengthIn, fresh.ShipLengthIn) ||
		!floatPtrEqual(existing.ShipWidthIn, fresh.ShipWidthIn) ||
		!floatPtrEqual(existing.ShipHeightIn, fresh.ShipHeightIn) {
		return true
	}
	if existing.IsHazmat != fresh.IsHazmat ||
		existing.IsOversized != fresh.IsOversized ||
		existing.ShipsFree != fresh.ShipsFree ||
		existing.LTLFreightOnly != fresh.LTLFreightOnly {
		return true
	}
	return false
}

// HasCategoryChanged 逐字段比较已落库分类与新转换结果
func HasCategoryChanged(existing, fresh *model.StorefrontCategory) bool {
	return existing.ERPNextName != fresh.ERPNextName ||
		existing.Title != fresh.Title ||
		existing.Slug != fresh.Slug ||
		!strPtrEqual(existing.ParentID, fresh.ParentID) ||
		existing.IsVisible != fresh.IsVisible ||
		existing.SortOrder != fresh.SortOrder ||
		existing.ImageURL != fresh.ImageURL
}

// HasBrandChanged 逐字段比较已落库品牌与新转换结果
func HasBrandChanged(existing, fresh *model.StorefrontBrand) bool {
	return existing.ERPNextName != fresh.ERPNextName ||
		existing.Title != fresh.Title ||
		existing.Slug != fresh.Slug ||
		existing.Description != fresh.Description ||
		existing.LogoURL != fresh.LogoURL ||
		existing.IsVisible != fresh.IsVisible
}

// ==================== 工具函数 ====================

// Slugify 由展示标题生成 URL slug
// 小写、去非字母数字、空白转连字符、折叠、去首尾；幂等
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))

	var b strings.Builder
	b.Grow(len(s))
	lastHyphen := false
	for _, r := range s {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastHyphen = false
		case r == ' ' || r == '\t' || r == '\n' || r == '-' || r == '_':
			if !lastHyphen && b.Len() > 0 {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
		// 其余字符直接丢弃
	}

	return strings.TrimRight(b.String(), "-")
}

// showInWebsite 缺省可见，仅显式 0 隐藏
func showInWebsite(flag *int) bool {
	return flag == nil || *flag != 0
}

// normalizeWeight 重量统一为磅；千克按 2.20462 换算，其他单位原样透传
func normalizeWeight(weight float64, uom string) *float64 {
	if weight <= 0 {
		return nil
	}
	switch strings.ToLower(uom) {
	case "kg", "kgs", "kilogram":
		weight *= kgToLbs
	}
	return &weight
}

func strPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// categoriesEqual 比较两个 JSON 分类数组的规范形式
// NULL 与空数组是不同语义，存在性不同即为变更
func categoriesEqual(a, b datatypes.JSON) bool {
	av, aOK := decodeCategories(a)
	bv, bOK := decodeCategories(b)
	if aOK != bOK {
		return false
	}
	if !aOK {
		return true
	}
	if len(av) != len(bv) {
		return false
	}
	sort.Strings(av)
	sort.Strings(bv)
	for i := range av {
		if av[i] != bv[i] {
			return false
		}
	}
	return true
}

// decodeCategories 第二个返回值表示该字段是否存在（非 NULL）
func decodeCategories(raw datatypes.JSON) ([]string, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, false
	}
	var v []string
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, false
	}
	return v, true
}
