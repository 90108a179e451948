package upstream

import (
	"sync"
	"time"
)

const (
	// EWMA 的 alpha 因子
	latencyAlpha = 0.2
	// 首次记录前的默认延迟
	initialLatency = 200 * time.Millisecond
	// DefaultFailureThreshold 连续失败多少次后判定为不健康
	DefaultFailureThreshold = 3
)

// ServerHealth 单个上游服务器的运行时健康状态
// 查询结果与周期性探测结果都汇入这里
type ServerHealth struct {
	mu sync.RWMutex

	name    string
	address string

	// 是否健康：任意一次成功立即恢复 true，
	// 连续失败达到阈值后变为 false
	healthy bool

	// 连续失败次数，成功时归零
	consecutiveFailures int

	// 累计计数
	totalSuccesses int64
	totalFailures  int64

	// 平均延迟（EWMA）
	latency     time.Duration
	sampled     bool
	lastSuccess time.Time
	lastFailure time.Time
	lastReason  string

	failureThreshold int
}

// HealthSnapshot ServerHealth 某一时刻的只读快照
type HealthSnapshot struct {
	Name                string
	Address             string
	Healthy             bool
	ConsecutiveFailures int
	TotalSuccesses      int64
	TotalFailures       int64
	Latency             time.Duration
	LastSuccessTime     time.Time
	LastFailureTime     time.Time
	LastFailureReason   string
}

// SuccessRate 累计成功率，没有任何记录时返回 0
func (s HealthSnapshot) SuccessRate() float64 {
	total := s.TotalSuccesses + s.TotalFailures
	if total == 0 {
		return 0
	}
	return float64(s.TotalSuccesses) / float64(total)
}

// NewServerHealth 创建健康状态记录
func NewServerHealth(name, address string, failureThreshold int) *ServerHealth {
	if failureThreshold <= 0 {
		failureThreshold = DefaultFailureThreshold
	}
	return &ServerHealth{
		name:             name,
		address:          address,
		healthy:          true,
		latency:          initialLatency,
		failureThreshold: failureThreshold,
	}
}

// MarkSuccess 记录一次成功及其延迟
func (h *ServerHealth) MarkSuccess(latency time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.consecutiveFailures = 0
	h.totalSuccesses++
	h.healthy = true
	h.lastSuccess = time.Now()

	if latency > 0 {
		if !h.sampled {
			h.latency = latency
			h.sampled = true
		} else {
			// EWMA: new_avg = alpha * new_value + (1 - alpha) * old_avg
			h.latency = time.Duration(latencyAlpha*float64(latency) + (1.0-latencyAlpha)*float64(h.latency))
		}
	}
}

// MarkFailure 记录一次失败及原因
func (h *ServerHealth) MarkFailure(reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.consecutiveFailures++
	h.totalFailures++
	h.lastFailure = time.Now()
	h.lastReason = reason

	if h.consecutiveFailures >= h.failureThreshold {
		h.healthy = false
	}
}

// IsHealthy 当前是否健康
func (h *ServerHealth) IsHealthy() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.healthy
}

// Latency 当前的平均延迟（EWMA）
func (h *ServerHealth) Latency() time.Duration {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.latency
}

// Snapshot 取出当前状态的只读快照
func (h *ServerHealth) Snapshot() HealthSnapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return HealthSnapshot{
		Name:                h.name,
		Address:             h.address,
		Healthy:             h.healthy,
		ConsecutiveFailures: h.consecutiveFailures,
		TotalSuccesses:      h.totalSuccesses,
		TotalFailures:       h.totalFailures,
		Latency:             h.latency,
		LastSuccessTime:     h.lastSuccess,
		LastFailureTime:     h.lastFailure,
		LastFailureReason:   h.lastReason,
	}
}

// Reset 重置为初始健康状态
func (h *ServerHealth) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.healthy = true
	h.consecutiveFailures = 0
	h.totalSuccesses = 0
	h.totalFailures = 0
	h.latency = initialLatency
	h.sampled = false
	h.lastSuccess = time.Time{}
	h.lastFailure = time.Time{}
	h.lastReason = ""
}
