package resolver

import (
	"context"
	"time"

	"easydns/logger"
	"easydns/upstream"

	"github.com/miekg/dns"
)

// buildWeightedRing 把权重展开成索引环：权重为 n 的上游在环中出现 n 次
// 全部权重为 0 时退化为每个上游一格
func buildWeightedRing(servers []*upstream.Server) []int {
	var ring []int
	for i, srv := range servers {
		for n := 0; n < srv.Weight(); n++ {
			ring = append(ring, i)
		}
	}
	if len(ring) == 0 {
		for i := range servers {
			ring = append(ring, i)
		}
	}
	return ring
}

// queryRoundRobin 加权轮询策略：游标在权重环上前进，失败时顺延到后续上游
// 最多尝试每个上游一次，绝不在环上绕第二圈
func (r *Resolver) queryRoundRobin(ctx context.Context, domain string, qtype uint16) (*dns.Msg, error) {
	msg := r.buildQuery(domain, qtype)
	start := r.rrCursor.Add(1) - 1

	allUnhealthy := r.table.AllUnhealthy()

	var attempts []string
	var lastErr error
	tried := make(map[int]bool, len(r.servers))

	for offset := 0; offset < len(r.rrRing); offset++ {
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}

		idx := r.rrRing[(start+uint64(offset))%uint64(len(r.rrRing))]
		if tried[idx] {
			continue
		}
		tried[idx] = true

		srv := r.servers[idx]

		// 不健康的上游顺延，除非已经无健康上游可选
		if !allUnhealthy && !r.table.Get(srv.Name()).IsHealthy() {
			logger.Debugf("[轮询] 跳过不健康的上游: %s", srv.Name())
			continue
		}

		// 故障切换前稍作等待，避免瞬时抖动放大
		if len(attempts) > 0 && r.rrRetryDelay > 0 {
			select {
			case <-time.After(r.rrRetryDelay):
			case <-ctx.Done():
				return nil, r.allFailedError(domain, attempts, ctx.Err())
			}
		}

		attempts = append(attempts, srv.Name())

		reply, err := r.attempt(ctx, srv, msg)
		if err != nil {
			logger.Debugf("[轮询] %s 失败, 顺延: %v", srv.Name(), err)
			lastErr = err
			continue
		}

		logger.Debugf("[轮询] %s 应答: %s", srv.Name(), domain)
		return reply, nil
	}

	return nil, r.allFailedError(domain, attempts, lastErr)
}
