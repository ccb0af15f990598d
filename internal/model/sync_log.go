package model

import "time"

// ==================== 同步常量 ====================

// 同步动作
const (
	SyncActionCreate = "create"
	SyncActionUpdate = "update"
	SyncActionDelete = "delete"
)

// 同步结果状态
const (
	SyncStatusSuccess = "success"
	SyncStatusFailed  = "failed"
)

// 实体类型（sync_log 与 sync_state 共用）
const (
	EntityTypeProduct  = "product"
	EntityTypeCategory = "category"
	EntityTypeBrand    = "brand"
)

// ==================== 同步审计 ====================

// SyncLog 同步审计日志（仅追加）
// 每执行（或尝试执行）一次 create/update/delete 写入一行
type SyncLog struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	EntityType   string    `gorm:"size:20;index;not null" json:"entity_type"`
	EntityID     string    `gorm:"size:140;index" json:"entity_id"`
	Action       string    `gorm:"size:10;not null" json:"action"`
	Status       string    `gorm:"size:10;not null" json:"status"`
	ErrorMessage string    `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func (SyncLog) TableName() string {
	return "sync_log"
}

// SyncState 每种实体类型一行，记录最近一次同步完成时间
// 仅用于观测：全量同步始终重读完整源数据，不做增量过滤
type SyncState struct {
	EntityType string    `gorm:"primaryKey;size:20" json:"entity_type"`
	LastSyncAt time.Time `json:"last_sync_at"`
}

func (SyncState) TableName() string {
	return "sync_state"
}
