package upstream

import (
	"time"

	"easydns/logger"
)

// ScoreTable 所有上游服务器的健康状态表
// 上游集合在构造时固定，之后只更新各条目的状态
type ScoreTable struct {
	order   []string
	entries map[string]*ServerHealth
}

// NewScoreTable 为给定的上游集合建表
func NewScoreTable(servers []*Server, failureThreshold int) *ScoreTable {
	t := &ScoreTable{
		entries: make(map[string]*ServerHealth, len(servers)),
	}
	for _, srv := range servers {
		t.order = append(t.order, srv.Name())
		t.entries[srv.Name()] = NewServerHealth(srv.Name(), srv.Address(), failureThreshold)
	}
	return t
}

// Get 按名称取健康记录，未知名称返回 nil
func (t *ScoreTable) Get(name string) *ServerHealth {
	return t.entries[name]
}

// RecordSuccess 记录一次成功
func (t *ScoreTable) RecordSuccess(name string, latency time.Duration) {
	if h := t.entries[name]; h != nil {
		h.MarkSuccess(latency)
		logger.Debugf("[健康表] %s 查询成功, 延迟=%v", name, latency)
	}
}

// RecordFailure 记录一次失败
func (t *ScoreTable) RecordFailure(name string, reason string) {
	if h := t.entries[name]; h != nil {
		h.MarkFailure(reason)
		snap := h.Snapshot()
		if !snap.Healthy {
			logger.Warnf("[健康表] ⚠️ %s 已连续失败 %d 次, 标记为不健康: %s",
				name, snap.ConsecutiveFailures, reason)
		}
	}
}

// Snapshots 按配置顺序返回所有条目的快照
func (t *ScoreTable) Snapshots() []HealthSnapshot {
	result := make([]HealthSnapshot, 0, len(t.order))
	for _, name := range t.order {
		result = append(result, t.entries[name].Snapshot())
	}
	return result
}

// HealthMap 返回 名称 -> 是否健康 的映射
func (t *ScoreTable) HealthMap() map[string]bool {
	result := make(map[string]bool, len(t.order))
	for _, name := range t.order {
		result[name] = t.entries[name].IsHealthy()
	}
	return result
}

// AllUnhealthy 是否所有上游都不健康
func (t *ScoreTable) AllUnhealthy() bool {
	for _, h := range t.entries {
		if h.IsHealthy() {
			return false
		}
	}
	return len(t.entries) > 0
}

// HealthyCount 健康上游的数量
func (t *ScoreTable) HealthyCount() int {
	count := 0
	for _, h := range t.entries {
		if h.IsHealthy() {
			count++
		}
	}
	return count
}

// ResetAll 重置所有条目
func (t *ScoreTable) ResetAll() {
	for _, h := range t.entries {
		h.Reset()
	}
}
