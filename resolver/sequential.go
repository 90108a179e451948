package resolver

import (
	"context"

	"easydns/logger"

	"github.com/miekg/dns"
)

// querySequential 顺序策略：严格按配置顺序逐个尝试，拿到成功结果即停止
// 任一时刻只有一个在途请求
func (r *Resolver) querySequential(ctx context.Context, domain string, qtype uint16) (*dns.Msg, error) {
	msg := r.buildQuery(domain, qtype)

	var attempts []string
	var lastErr error

	for _, srv := range r.servers {
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}

		attempts = append(attempts, srv.Name())

		reply, err := r.attempt(ctx, srv, msg)
		if err != nil {
			logger.Debugf("[顺序] %s 失败, 切换下一个: %v", srv.Name(), err)
			lastErr = err
			continue
		}

		// 成功或确定性 NXDOMAIN 都直接返回，不再尝试后续上游
		logger.Debugf("[顺序] %s 应答: %s", srv.Name(), domain)
		return reply, nil
	}

	return nil, r.allFailedError(domain, attempts, lastErr)
}
