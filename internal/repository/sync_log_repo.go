package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"storefront_sync/internal/model"
)

// ==================== 接口定义 ====================

// SyncLogRepository 同步审计仓储接口（sync_log + sync_state）
type SyncLogRepository interface {
	// Append 批量追加审计日志
	Append(ctx context.Context, entries []model.SyncLog) error

	// Recent 按时间倒序返回最近 limit 条日志
	Recent(ctx context.Context, limit int) ([]model.SyncLog, error)

	// SetLastSync 写入实体类型的最近同步水位
	SetLastSync(ctx context.Context, entityType string, at time.Time) error

	// ListStates 返回所有实体类型的同步水位
	ListStates(ctx context.Context) ([]model.SyncState, error)
}

// ==================== 仓储实现 ====================

type syncLogRepo struct {
	db *gorm.DB
}

// NewSyncLogRepository 创建同步审计仓储
func NewSyncLogRepository(db *gorm.DB) SyncLogRepository {
	return &syncLogRepo{db: db}
}

func (r *syncLogRepo) Append(ctx context.Context, entries []model.SyncLog) error {
	if len(entries) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&entries).Error
}

func (r *syncLogRepo) Recent(ctx context.Context, limit int) ([]model.SyncLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var entries []model.SyncLog
	err := r.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *syncLogRepo) SetLastSync(ctx context.Context, entityType string, at time.Time) error {
	state := model.SyncState{
		EntityType: entityType,
		LastSyncAt: at,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "entity_type"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_sync_at"}),
	}).Create(&state).Error
}

func (r *syncLogRepo) ListStates(ctx context.Context) ([]model.SyncState, error) {
	var states []model.SyncState
	if err := r.db.WithContext(ctx).Find(&states).Error; err != nil {
		return nil, err
	}
	return states, nil
}
