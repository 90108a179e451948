package resolver

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"easydns/config"
	util "easydns/internal"
	"easydns/logger"
	"easydns/upstream"
	"easydns/upstream/bootstrap"

	"github.com/miekg/dns"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Resolver 多上游 DNS 解析器
// 上游集合与策略在构造时固定，查询结果持续反馈到健康表
type Resolver struct {
	cfg      *config.Config
	strategy Strategy
	servers  []*upstream.Server
	table    *upstream.ScoreTable
	monitor  *upstream.Monitor

	// 相同查询的在途合并
	group singleflight.Group

	// round_robin 的权重环与游标
	rrRing       []int
	rrCursor     atomic.Uint64
	rrRetryDelay time.Duration

	totalQueries      atomic.Int64
	successfulQueries atomic.Int64
	failedQueries     atomic.Int64

	closeOnce sync.Once
}

// New 根据配置构造解析器，健康探测按配置自动启动
func New(cfg *config.Config) (*Resolver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger.SetLevel(cfg.LogLevel)

	strategy, err := ParseStrategy(cfg.Strategy)
	if err != nil {
		return nil, err
	}

	boot := bootstrap.NewResolver(cfg.Query.BootstrapDNS)

	servers := make([]*upstream.Server, 0, len(cfg.Upstreams))
	for _, upCfg := range cfg.Upstreams {
		srv, err := upstream.NewServerFromConfig(upCfg, boot)
		if err != nil {
			return nil, err
		}
		servers = append(servers, srv)
		logger.Infof("[解析器] 已加载上游: %s (%s, 权重=%d)", srv.Name(), srv.Address(), srv.Weight())
	}

	r := newResolver(cfg, strategy, servers)

	if cfg.HealthCheckEnabled() {
		r.monitor = upstream.NewMonitor(servers, r.table, upstream.MonitorConfig{
			Interval:     time.Duration(cfg.HealthCheck.IntervalSeconds) * time.Second,
			ProbeTimeout: time.Duration(cfg.HealthCheck.ProbeTimeoutMs) * time.Millisecond,
			ProbeDomain:  cfg.HealthCheck.ProbeDomain,
			MaxProbes:    int64(cfg.HealthCheck.MaxConcurrentProbes),
		})
		r.monitor.Start()
	}

	logger.Infof("[解析器] 启动完成, 策略=%s, 上游数=%d", strategy, len(servers))
	return r, nil
}

// newResolver 组装解析器核心，不启动探测（测试也走这里）
func newResolver(cfg *config.Config, strategy Strategy, servers []*upstream.Server) *Resolver {
	r := &Resolver{
		cfg:          cfg,
		strategy:     strategy,
		servers:      servers,
		table:        upstream.NewScoreTable(servers, cfg.HealthCheck.FailureThreshold),
		rrRing:       buildWeightedRing(servers),
		rrRetryDelay: time.Duration(cfg.RoundRobin.RetryDelayMs) * time.Millisecond,
	}
	return r
}

// Resolve 解析任意记录类型，返回应答中的资源记录
// NXDOMAIN 视为确定性结果，返回空列表而不是错误
func (r *Resolver) Resolve(ctx context.Context, domain string, qtype uint16) ([]dns.RR, error) {
	reply, err := r.resolveMsg(ctx, domain, qtype)
	if err != nil {
		return nil, err
	}
	if reply.Rcode == dns.RcodeNameError {
		return nil, nil
	}
	return reply.Answer, nil
}

// ResolveA 解析 IPv4 地址
func (r *Resolver) ResolveA(ctx context.Context, domain string) ([]string, error) {
	records, err := r.Resolve(ctx, domain, dns.TypeA)
	if err != nil {
		return nil, err
	}
	return util.FilterIPv4(extractIPs(records)), nil
}

// ResolveAAAA 解析 IPv6 地址
func (r *Resolver) ResolveAAAA(ctx context.Context, domain string) ([]string, error) {
	records, err := r.Resolve(ctx, domain, dns.TypeAAAA)
	if err != nil {
		return nil, err
	}
	return util.FilterIPv6(extractIPs(records)), nil
}

// ResolveCNAME 解析 CNAME 目标
func (r *Resolver) ResolveCNAME(ctx context.Context, domain string) ([]string, error) {
	records, err := r.Resolve(ctx, domain, dns.TypeCNAME)
	if err != nil {
		return nil, err
	}
	var targets []string
	for _, rr := range records {
		if cname, ok := rr.(*dns.CNAME); ok {
			targets = append(targets, util.NormalizeDomain(cname.Target))
		}
	}
	return targets, nil
}

// ResolveMX 解析 MX 记录，格式为 "优先级 交换机"
func (r *Resolver) ResolveMX(ctx context.Context, domain string) ([]string, error) {
	records, err := r.Resolve(ctx, domain, dns.TypeMX)
	if err != nil {
		return nil, err
	}
	var result []string
	for _, rr := range records {
		if mx, ok := rr.(*dns.MX); ok {
			result = append(result, fmt.Sprintf("%d %s", mx.Preference, util.NormalizeDomain(mx.Mx)))
		}
	}
	return result, nil
}

// ResolveTXT 解析 TXT 记录，每条记录的分段拼接为一个字符串
func (r *Resolver) ResolveTXT(ctx context.Context, domain string) ([]string, error) {
	records, err := r.Resolve(ctx, domain, dns.TypeTXT)
	if err != nil {
		return nil, err
	}
	var result []string
	for _, rr := range records {
		if txt, ok := rr.(*dns.TXT); ok {
			result = append(result, strings.Join(txt.Txt, ""))
		}
	}
	return result, nil
}

// BatchResolve 批量解析 A 记录
// 返回值与输入一一对应，单个失败不影响其他域名
func (r *Resolver) BatchResolve(ctx context.Context, domains []string) []Result {
	results := make([]Result, len(domains))

	g := new(errgroup.Group)
	g.SetLimit(r.cfg.Query.BatchConcurrency)

	for i, domain := range domains {
		i, domain := i, domain
		g.Go(func() error {
			ips, err := r.ResolveA(ctx, domain)
			if err != nil {
				results[i] = Err(domain, err)
			} else {
				results[i] = Ok(domain, ips)
			}
			return nil
		})
	}

	g.Wait()
	return results
}

// GetHealthStatus 返回 上游名称 -> 是否健康
func (r *Resolver) GetHealthStatus() map[string]bool {
	return r.table.HealthMap()
}

// HealthSnapshots 返回所有上游的详细健康快照
func (r *Resolver) HealthSnapshots() []upstream.HealthSnapshot {
	return r.table.Snapshots()
}

// GetEmergencyResponseInfo 生成当前的应急诊断信息
func (r *Resolver) GetEmergencyResponseInfo() EmergencyInfo {
	return BuildEmergencyInfo(r.table)
}

// Close 停止健康探测并释放所有上游连接
func (r *Resolver) Close() error {
	r.closeOnce.Do(func() {
		if r.monitor != nil {
			r.monitor.Stop()
		}
		for _, srv := range r.servers {
			srv.Close()
		}
		logger.Infof("[解析器] 已关闭")
	})
	return nil
}

// resolveMsg 校验输入、应用总超时、合并在途查询后按策略分发
func (r *Resolver) resolveMsg(ctx context.Context, domain string, qtype uint16) (*dns.Msg, error) {
	normalized := util.NormalizeDomain(domain)
	if !util.IsValidDomain(normalized) {
		r.failedQueries.Add(1)
		return nil, newInvalidInputError(domain, "域名格式不合法")
	}

	r.totalQueries.Add(1)

	queryCtx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.Query.TimeoutMs)*time.Millisecond)
	defer cancel()

	key := fmt.Sprintf("%s:%d:%t", normalized, qtype, r.cfg.Query.EnableEDNS)
	v, err, shared := r.group.Do(key, func() (interface{}, error) {
		return r.dispatch(queryCtx, normalized, qtype)
	})
	if shared {
		logger.Debugf("[解析器] 合并了重复查询: %s", key)
	}

	if err != nil {
		r.failedQueries.Add(1)
		return nil, err
	}

	r.successfulQueries.Add(1)
	return v.(*dns.Msg), nil
}

func (r *Resolver) dispatch(ctx context.Context, domain string, qtype uint16) (*dns.Msg, error) {
	switch r.strategy {
	case StrategyFIFO, StrategyParallel:
		return r.queryFanout(ctx, domain, qtype)
	case StrategySequential:
		return r.querySequential(ctx, domain, qtype)
	case StrategyRoundRobin:
		return r.queryRoundRobin(ctx, domain, qtype)
	case StrategySmart:
		return r.querySmart(ctx, domain, qtype)
	default:
		return r.queryFanout(ctx, domain, qtype)
	}
}

// buildQuery 构造查询消息
func (r *Resolver) buildQuery(domain string, qtype uint16) *dns.Msg {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(domain), qtype)
	msg.RecursionDesired = true
	if r.cfg.Query.EnableEDNS {
		msg.SetEdns0(1232, false)
	}
	return msg
}

// attempt 对单个上游执行一次查询并把结果反馈到健康表
// 上层主动取消（竞速已分胜负）不计入上游失败
func (r *Resolver) attempt(ctx context.Context, srv *upstream.Server, msg *dns.Msg) (*dns.Msg, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.Query.AttemptTimeoutMs)*time.Millisecond)
	defer cancel()

	start := time.Now()
	reply, err := srv.Exchange(attemptCtx, msg.Copy())
	latency := time.Since(start)

	if err != nil {
		if ctx.Err() == context.Canceled {
			return nil, ctx.Err()
		}
		r.table.RecordFailure(srv.Name(), err.Error())
		return nil, err
	}

	if reply.Rcode != dns.RcodeSuccess && reply.Rcode != dns.RcodeNameError {
		rcodeErr := fmt.Errorf("dns rcode=%d (%s)", reply.Rcode, dns.RcodeToString[reply.Rcode])
		r.table.RecordFailure(srv.Name(), rcodeErr.Error())
		return nil, rcodeErr
	}

	r.table.RecordSuccess(srv.Name(), latency)
	return reply, nil
}

// allFailedError 构造整次查询失败的错误，必要时附带应急诊断
// 只尝试了一个上游时直接用传输层的分类，信息更具体
func (r *Resolver) allFailedError(domain string, attempts []string, lastErr error) *ResolveError {
	kind := KindAllUpstreamsFailed
	if len(attempts) == 1 && lastErr != nil {
		kind = kindFromError(lastErr)
	}

	re := &ResolveError{
		Kind:     kind,
		Strategy: r.strategy,
		Domain:   domain,
		Attempts: attempts,
		Err:      lastErr,
	}
	if r.table.AllUnhealthy() {
		info := BuildEmergencyInfo(r.table)
		re.Emergency = &info
		logger.Errorf("[解析器] 🚨 所有上游均不可用: %s", info.Message)
	}
	return re
}

func extractIPs(records []dns.RR) []string {
	var ips []string
	for _, rr := range records {
		switch v := rr.(type) {
		case *dns.A:
			ips = append(ips, v.A.String())
		case *dns.AAAA:
			ips = append(ips, v.AAAA.String())
		}
	}
	return ips
}
