package middleware

import (
	"sync"
	"time"
)

// ==================== SyncRateLimiter 同步限流器 ====================

// SyncRateLimiter 手动同步的冷却限流器
// 防止频繁触发全量同步压垮 ERPNext，同时兜底避免两轮全量同步重叠执行
type SyncRateLimiter struct {
	locks sync.Map // key -> *lockEntry
}

type lockEntry struct {
	lastTime time.Time
	mu       sync.Mutex
}

// 全局限流器实例
var globalLimiter = &SyncRateLimiter{}

// GetLimiter 获取全局限流器
func GetLimiter() *SyncRateLimiter {
	return globalLimiter
}

// ==================== 限流检查 ====================

// CheckResult 检查结果
type CheckResult struct {
	Allowed    bool          // 是否允许
	RetryAfter time.Duration // 剩余冷却时间
}

// Check 检查是否允许执行，允许时顺带更新最后执行时间
func (r *SyncRateLimiter) Check(key string, interval time.Duration) CheckResult {
	actual, _ := r.locks.LoadOrStore(key, &lockEntry{})
	entry := actual.(*lockEntry)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(entry.lastTime)

	if elapsed < interval {
		return CheckResult{
			Allowed:    false,
			RetryAfter: interval - elapsed,
		}
	}

	entry.lastTime = now
	return CheckResult{Allowed: true}
}

// Reset 重置指定 key 的限流
func (r *SyncRateLimiter) Reset(key string) {
	r.locks.Delete(key)
}

// ==================== Key 与默认冷却间隔 ====================

// SyncType 同步类型
type SyncType string

const (
	SyncTypeFull    SyncType = "full"
	SyncTypeWebhook SyncType = "webhook"
)

// GetInterval 每种同步类型的默认冷却间隔
func GetInterval(syncType SyncType) time.Duration {
	switch syncType {
	case SyncTypeFull:
		return 5 * time.Minute
	case SyncTypeWebhook:
		return time.Second
	default:
		return time.Minute
	}
}

// SyncKey 生成同步限流 Key
func SyncKey(syncType SyncType) string {
	return "sync:" + string(syncType)
}
