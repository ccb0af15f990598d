package erpnext

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// ==================== Client ====================

// Config ERPNext 连接配置
type Config struct {
	BaseURL   string
	APIKey    string
	APISecret string
	Timeout   time.Duration
	Retries   int
}

// Client ERPNext REST API（/api/resource/{doctype}）的轻量类型化封装
// 响应直接解码进 DTO；同步层把它当作不透明数据源使用
type Client struct {
	http *resty.Client
}

// NewClient 创建带 token 认证的 ERPNext API 客户端
func NewClient(cfg *Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	c := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.Retries).
		SetHeader("Accept", "application/json").
		SetHeader("Authorization", fmt.Sprintf("token %s:%s", cfg.APIKey, cfg.APISecret))

	return &Client{http: c}
}

// 每种 doctype 请求的字段集。ERPNext 默认只回 name，
// 消费到的列都必须显式列出
var (
	itemFields = []string{
		"name", "item_code", "item_name", "description", "item_group", "brand",
		"standard_rate", "disabled", "has_variants", "variant_of",
		"weight_per_unit", "weight_uom", "image",
		"custom_show_in_website", "custom_featured", "custom_featured_in_category",
		"custom_search_boost", "custom_slug",
		"custom_is_hazmat", "custom_oversized", "custom_ships_free",
		"custom_ltl_freight_only",
		"custom_ship_length_in", "custom_ship_width_in", "custom_ship_height_in",
	}
	itemGroupFields = []string{
		"name", "item_group_name", "parent_item_group", "image",
		"custom_show_in_website", "custom_sort_order", "custom_slug",
	}
	brandFields = []string{
		"name", "brand", "description", "image",
		"custom_show_in_website", "custom_website_url",
	}
	itemPriceFields = []string{"item_code", "price_list", "price_list_rate"}
)

// GetBrands 拉取全部品牌
func (c *Client) GetBrands(ctx context.Context) ([]Brand, error) {
	var res listResponse[Brand]
	if err := c.getList(ctx, "Brand", brandFields, "", 0, 0, &res); err != nil {
		return nil, err
	}
	return res.Data, nil
}

// GetItemGroups 拉取全部分组
func (c *Client) GetItemGroups(ctx context.Context) ([]ItemGroup, error) {
	var res listResponse[ItemGroup]
	if err := c.getList(ctx, "Item Group", itemGroupFields, "", 0, 0, &res); err != nil {
		return nil, err
	}
	return res.Data, nil
}

// GetItems 拉取商品的一页，page 从 1 开始
func (c *Client) GetItems(ctx context.Context, page, limit int) ([]Item, *Pagination, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 100
	}

	var res listResponse[Item]
	offset := (page - 1) * limit
	if err := c.getList(ctx, "Item", itemFields, "", offset, limit, &res); err != nil {
		return nil, nil, err
	}

	return res.Data, &Pagination{
		Page:    page,
		Limit:   limit,
		HasMore: len(res.Data) == limit,
	}, nil
}

// GetItemPrices 拉取单个 item_code 的全部价目表条目
func (c *Client) GetItemPrices(ctx context.Context, itemCode string) ([]ItemPrice, error) {
	filters := fmt.Sprintf(`[["item_code","=",%q]]`, itemCode)

	var res listResponse[ItemPrice]
	if err := c.getList(ctx, "Item Price", itemPriceFields, filters, 0, 0, &res); err != nil {
		return nil, err
	}
	return res.Data, nil
}

// getList 执行一次 /api/resource/{doctype} 列表查询
// limit 为 0 表示不分页（ERPNext 的 limit_page_length=0）
func (c *Client) getList(ctx context.Context, doctype string, fields []string, filters string, offset, limit int, out any) error {
	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return err
	}

	req := c.http.R().
		SetContext(ctx).
		SetQueryParam("fields", string(fieldsJSON)).
		SetQueryParam("limit_start", fmt.Sprintf("%d", offset)).
		SetQueryParam("limit_page_length", fmt.Sprintf("%d", limit)).
		SetResult(out)
	if filters != "" {
		req.SetQueryParam("filters", filters)
	}

	resp, err := req.Get("/api/resource/" + doctype)
	if err != nil {
		return fmt.Errorf("请求 ERPNext 失败: %w", err)
	}
	if resp.StatusCode() != 200 {
		return fmt.Errorf("ERPNext API 错误 [%d]: %s", resp.StatusCode(), resp.String())
	}
	return nil
}
