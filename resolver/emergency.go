package resolver

import (
	"fmt"
	"runtime"
	"sort"
	"time"

	"easydns/upstream"

	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

// FailedUpstream 不健康上游的失败详情
type FailedUpstream struct {
	Name                string
	Address             string
	ConsecutiveFailures int
	LastFailureTime     time.Time
	Reason              string
}

// SystemSnapshot 生成应急信息时的本机资源快照
// 用于区分是网络问题还是本机资源耗尽
type SystemSnapshot struct {
	MemoryUsedPercent float64
	Load1             float64
	NumCPU            int
	NumGoroutine      int
}

// EmergencyInfo 全量失败时的应急诊断信息
type EmergencyInfo struct {
	// 是否所有上游都不健康
	AllUpstreamsFailed bool
	// 所有上游的累计失败总数
	TotalFailureCount int64
	// 不健康的上游，按连续失败次数降序
	FailedUpstreams []FailedUpstream
	// 最近一次成功过的上游名称，可能为空
	LastWorkingServer string
	// 面向用户的说明文字
	Message string
	// 本机资源快照
	System      *SystemSnapshot
	GeneratedAt time.Time
}

// BuildEmergencyInfo 根据健康表生成应急诊断
func BuildEmergencyInfo(table *upstream.ScoreTable) EmergencyInfo {
	snapshots := table.Snapshots()

	info := EmergencyInfo{
		AllUpstreamsFailed: table.AllUnhealthy(),
		GeneratedAt:        time.Now(),
		System:             collectSystemSnapshot(),
	}

	var lastWorkingTime time.Time
	for _, snap := range snapshots {
		info.TotalFailureCount += snap.TotalFailures

		if !snap.Healthy {
			info.FailedUpstreams = append(info.FailedUpstreams, FailedUpstream{
				Name:                snap.Name,
				Address:             snap.Address,
				ConsecutiveFailures: snap.ConsecutiveFailures,
				LastFailureTime:     snap.LastFailureTime,
				Reason:              snap.LastFailureReason,
			})
		}

		if !snap.LastSuccessTime.IsZero() && snap.LastSuccessTime.After(lastWorkingTime) {
			lastWorkingTime = snap.LastSuccessTime
			info.LastWorkingServer = snap.Name
		}
	}

	sort.Slice(info.FailedUpstreams, func(i, j int) bool {
		return info.FailedUpstreams[i].ConsecutiveFailures > info.FailedUpstreams[j].ConsecutiveFailures
	})

	info.Message = buildEmergencyMessage(len(snapshots), info)
	return info
}

func buildEmergencyMessage(total int, info EmergencyInfo) string {
	if info.AllUpstreamsFailed {
		return fmt.Sprintf("DNS解析服务暂时不可用：所有%d个上游服务器均无响应。请检查网络连接或稍后重试。", total)
	}

	if len(info.FailedUpstreams) > 0 {
		worst := info.FailedUpstreams[0]
		return fmt.Sprintf("部分上游服务器异常：%d/%d 个不健康，最严重的是 %s（连续失败 %d 次）。",
			len(info.FailedUpstreams), total, worst.Name, worst.ConsecutiveFailures)
	}

	return fmt.Sprintf("所有%d个上游服务器状态正常。", total)
}

func collectSystemSnapshot() *SystemSnapshot {
	snap := &SystemSnapshot{
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		snap.MemoryUsedPercent = vm.UsedPercent
	}
	if avg, err := load.Avg(); err == nil {
		snap.Load1 = avg.Load1
	}

	return snap
}
