package resolver

import (
	"context"
	"sort"
	"time"

	"easydns/logger"
	"easydns/upstream"

	"github.com/miekg/dns"
)

const (
	// 综合评分的权重分配
	smartSuccessWeight = 0.5
	smartLatencyWeight = 0.3
	smartPenaltyWeight = 0.2

	// 最近成功的加成窗口与系数
	smartRecentWindow = 60 * time.Second
	smartRecentBonus  = 1.1
)

// smartScore 计算单个上游的综合评分
// 成功率、延迟、连续失败惩罚按固定权重合成，再乘配置权重与最近成功加成
func smartScore(snap upstream.HealthSnapshot, weight int) float64 {
	successScore := snap.SuccessRate()
	if snap.TotalSuccesses+snap.TotalFailures == 0 {
		// 新上游给一个中等偏上的基础分，让它有机会被选中
		successScore = 0.8
	}

	latencyMs := float64(snap.Latency.Milliseconds())
	latencyScore := 1000.0 / (latencyMs + 100.0)
	if latencyScore > 1.0 {
		latencyScore = 1.0
	}

	penaltyScore := 1.0 - 0.2*float64(snap.ConsecutiveFailures)
	if penaltyScore < 0.1 {
		penaltyScore = 0.1
	}

	score := smartSuccessWeight*successScore +
		smartLatencyWeight*latencyScore +
		smartPenaltyWeight*penaltyScore

	score *= float64(weight)

	if !snap.LastSuccessTime.IsZero() && time.Since(snap.LastSuccessTime) < smartRecentWindow {
		score *= smartRecentBonus
	}

	return score
}

// rankServers 按评分从高到低排出候选上游
// 默认只排健康的上游；全部不健康时所有上游都是候选（优雅降级）
func (r *Resolver) rankServers() []*upstream.Server {
	type scored struct {
		srv   *upstream.Server
		score float64
	}

	allUnhealthy := r.table.AllUnhealthy()

	var candidates []scored
	for _, srv := range r.servers {
		snap := r.table.Get(srv.Name()).Snapshot()
		if !allUnhealthy && !snap.Healthy {
			continue
		}
		candidates = append(candidates, scored{srv: srv, score: smartScore(snap, srv.Weight())})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	ranked := make([]*upstream.Server, 0, len(candidates))
	for _, c := range candidates {
		ranked = append(ranked, c.srv)
	}
	return ranked
}

// querySmart 智能策略：按评分依次尝试候选上游
func (r *Resolver) querySmart(ctx context.Context, domain string, qtype uint16) (*dns.Msg, error) {
	ranked := r.rankServers()
	msg := r.buildQuery(domain, qtype)

	var attempts []string
	var lastErr error

	for _, srv := range ranked {
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}

		attempts = append(attempts, srv.Name())

		reply, err := r.attempt(ctx, srv, msg)
		if err != nil {
			logger.Debugf("[智能] %s 失败, 尝试次优: %v", srv.Name(), err)
			lastErr = err
			continue
		}

		logger.Debugf("[智能] %s 应答: %s", srv.Name(), domain)
		return reply, nil
	}

	return nil, r.allFailedError(domain, attempts, lastErr)
}
