package upstream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"easydns/logger"

	"github.com/miekg/dns"
	"golang.org/x/sync/semaphore"
)

// MonitorConfig 周期性健康探测的参数
type MonitorConfig struct {
	Interval     time.Duration
	ProbeTimeout time.Duration
	ProbeDomain  string
	MaxProbes    int64
}

// Monitor 周期性地向所有上游发起探测查询，并把结果写入健康表
type Monitor struct {
	servers []*Server
	table   *ScoreTable
	cfg     MonitorConfig
	sem     *semaphore.Weighted

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewMonitor 创建健康探测器
func NewMonitor(servers []*Server, table *ScoreTable, cfg MonitorConfig) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 1 * time.Second
	}
	if cfg.ProbeDomain == "" {
		cfg.ProbeDomain = "www.gstatic.com"
	}
	if cfg.MaxProbes <= 0 {
		cfg.MaxProbes = 8
	}

	return &Monitor{
		servers:  servers,
		table:    table,
		cfg:      cfg,
		sem:      semaphore.NewWeighted(cfg.MaxProbes),
		stopChan: make(chan struct{}),
	}
}

// Start 启动探测循环
func (m *Monitor) Start() {
	m.wg.Add(1)
	go m.loop()
	logger.Infof("[健康探测] 已启动, 周期=%v, 探测域名=%s", m.cfg.Interval, m.cfg.ProbeDomain)
}

// Stop 停止探测循环并等待在途探测结束
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopChan)
	})
	m.wg.Wait()
	logger.Infof("[健康探测] 已停止")
}

func (m *Monitor) loop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopChan:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), m.cfg.Interval)
			m.ProbeAll(ctx)
			cancel()
		}
	}
}

// ProbeAll 对所有上游并发探测一轮，阻塞到本轮全部结束
// 单个慢探测只占用一个并发额度，不会拖住其他探测
func (m *Monitor) ProbeAll(ctx context.Context) {
	var wg sync.WaitGroup

	for _, srv := range m.servers {
		if err := m.sem.Acquire(ctx, 1); err != nil {
			logger.Debugf("[健康探测] 本轮提前结束: %v", err)
			break
		}

		wg.Add(1)
		go func(srv *Server) {
			defer wg.Done()
			defer m.sem.Release(1)
			m.probeOne(ctx, srv)
		}(srv)
	}

	wg.Wait()
}

// probeOne 探测单个上游
func (m *Monitor) probeOne(ctx context.Context, srv *Server) {
	probeCtx, cancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout)
	defer cancel()

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(m.cfg.ProbeDomain), dns.TypeA)
	msg.RecursionDesired = true

	start := time.Now()
	reply, err := srv.Exchange(probeCtx, msg)
	latency := time.Since(start)

	if err != nil {
		m.table.RecordFailure(srv.Name(), fmt.Sprintf("探测失败: %v", err))
		return
	}

	// 探测只要求服务器在响应，NXDOMAIN 也算活着
	if reply.Rcode != dns.RcodeSuccess && reply.Rcode != dns.RcodeNameError {
		m.table.RecordFailure(srv.Name(), fmt.Sprintf("探测返回 rcode=%d", reply.Rcode))
		return
	}

	m.table.RecordSuccess(srv.Name(), latency)
	logger.Debugf("[健康探测] %s 正常, 延迟=%v", srv.Name(), latency)
}
