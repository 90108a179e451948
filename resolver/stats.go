package resolver

import "time"

// UpstreamStats 单个上游的统计摘要
type UpstreamStats struct {
	Name           string
	Address        string
	Healthy        bool
	TotalSuccesses int64
	TotalFailures  int64
	SuccessRate    float64
	AvgLatencyMs   float64
}

// Stats 解析器整体统计
type Stats struct {
	Strategy          string
	TotalQueries      int64
	SuccessfulQueries int64
	FailedQueries     int64
	HealthyUpstreams  int
	Upstreams         []UpstreamStats
	// 平均延迟最低/最高且有过成功记录的上游
	FastestUpstream string
	SlowestUpstream string
}

// Stats 汇总当前统计
func (r *Resolver) Stats() Stats {
	stats := Stats{
		Strategy:          r.strategy.String(),
		TotalQueries:      r.totalQueries.Load(),
		SuccessfulQueries: r.successfulQueries.Load(),
		FailedQueries:     r.failedQueries.Load(),
	}

	var fastest, slowest time.Duration
	for _, snap := range r.table.Snapshots() {
		if snap.Healthy {
			stats.HealthyUpstreams++
		}

		stats.Upstreams = append(stats.Upstreams, UpstreamStats{
			Name:           snap.Name,
			Address:        snap.Address,
			Healthy:        snap.Healthy,
			TotalSuccesses: snap.TotalSuccesses,
			TotalFailures:  snap.TotalFailures,
			SuccessRate:    snap.SuccessRate(),
			AvgLatencyMs:   float64(snap.Latency.Microseconds()) / 1000.0,
		})

		if snap.TotalSuccesses == 0 {
			continue
		}
		if fastest == 0 || snap.Latency < fastest {
			fastest = snap.Latency
			stats.FastestUpstream = snap.Name
		}
		if snap.Latency > slowest {
			slowest = snap.Latency
			stats.SlowestUpstream = snap.Name
		}
	}

	return stats
}

// ResetStats 清零查询计数并重置所有上游的健康记录
func (r *Resolver) ResetStats() {
	r.totalQueries.Store(0)
	r.successfulQueries.Store(0)
	r.failedQueries.Store(0)
	r.table.ResetAll()
}
