package resolver

import (
	"context"
	"sync"

	"easydns/logger"
	"easydns/upstream"

	"github.com/miekg/dns"
)

// queryFanout 竞速策略：同时向所有上游发起查询，最先返回的成功结果获胜
// 获胜后取消其余在途请求；在取消前完成的尝试仍会反馈到健康表
func (r *Resolver) queryFanout(ctx context.Context, domain string, qtype uint16) (*dns.Msg, error) {
	raceCtx, cancelAll := context.WithCancel(ctx)
	defer cancelAll()

	msg := r.buildQuery(domain, qtype)

	resultChan := make(chan *dns.Msg, 1)
	errorChan := make(chan error, len(r.servers))

	var wg sync.WaitGroup
	var winnerOnce sync.Once

	// 先全部发出，再等待第一个结果
	for _, srv := range r.servers {
		wg.Add(1)
		go func(srv *upstream.Server) {
			defer wg.Done()

			reply, err := r.attempt(raceCtx, srv, msg)
			if err != nil {
				select {
				case errorChan <- err:
				case <-raceCtx.Done():
				}
				return
			}

			winnerOnce.Do(func() {
				select {
				case resultChan <- reply:
					logger.Debugf("[竞速] %s 获胜: %s", srv.Name(), domain)
				default:
				}
				// 已分胜负，放弃其余在途请求
				cancelAll()
			})
		}(srv)
	}

	// 所有尝试结束后关闭错误通道，便于收尾
	doneChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(errorChan)
		close(doneChan)
	}()

	select {
	case reply := <-resultChan:
		return reply, nil
	case <-doneChan:
		// 没有任何上游成功，收集最后一个错误
		select {
		case reply := <-resultChan:
			return reply, nil
		default:
		}

		var lastErr error
		for err := range errorChan {
			if err != context.Canceled {
				lastErr = err
			}
		}
		return nil, r.allFailedError(domain, r.serverNames(), lastErr)
	case <-ctx.Done():
		// 调用方主动取消不归咎于上游
		if ctx.Err() == context.Canceled {
			return nil, ctx.Err()
		}
		return nil, r.allFailedError(domain, r.serverNames(), ctx.Err())
	}
}

func (r *Resolver) serverNames() []string {
	names := make([]string, 0, len(r.servers))
	for _, srv := range r.servers {
		names = append(names, srv.Name())
	}
	return names
}
