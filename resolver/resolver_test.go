package resolver

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"easydns/config"
	"easydns/upstream"

	"github.com/miekg/dns"
)

// mockTransport 按脚本应答的传输
type mockTransport struct {
	addr  string
	delay time.Duration
	err   error
	rcode int
	ips   []string
	txts  [][]string
	calls atomic.Int32
}

func (m *mockTransport) Exchange(ctx context.Context, msg *dns.Msg) (*dns.Msg, error) {
	m.calls.Add(1)

	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if m.err != nil {
		return nil, m.err
	}

	reply := new(dns.Msg)
	reply.SetReply(msg)
	reply.Rcode = m.rcode

	for _, ip := range m.ips {
		parsed := net.ParseIP(ip)
		if parsed.To4() != nil {
			reply.Answer = append(reply.Answer, &dns.A{
				Hdr: dns.RR_Header{Name: msg.Question[0].Name, Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 60},
				A:   parsed,
			})
		} else {
			reply.Answer = append(reply.Answer, &dns.AAAA{
				Hdr:  dns.RR_Header{Name: msg.Question[0].Name, Rrtype: dns.TypeAAAA, Class: dns.ClassINET, Ttl: 60},
				AAAA: parsed,
			})
		}
	}

	for _, segs := range m.txts {
		reply.Answer = append(reply.Answer, &dns.TXT{
			Hdr: dns.RR_Header{Name: msg.Question[0].Name, Rrtype: dns.TypeTXT, Class: dns.ClassINET, Ttl: 60},
			Txt: segs,
		})
	}

	return reply, nil
}

func (m *mockTransport) Address() string  { return "mock://" + m.addr }
func (m *mockTransport) Protocol() string { return "mock" }

// newTestResolver 组装使用 mock 传输的解析器，不启动健康探测
func newTestResolver(strategy Strategy, servers ...*upstream.Server) *Resolver {
	cfg := &config.Config{
		Strategy: strategy.String(),
		Query: config.QueryConfig{
			TimeoutMs:        2000,
			AttemptTimeoutMs: 500,
			BatchConcurrency: 8,
		},
		HealthCheck: config.HealthCheckConfig{FailureThreshold: 3},
		RoundRobin:  config.RoundRobinConfig{RetryDelayMs: 1},
	}
	return newResolver(cfg, strategy, servers)
}

func mkServer(name string, weight int, tr upstream.Transport) *upstream.Server {
	return upstream.NewServer(name, weight, tr)
}

// TestResolveA 基本的 A 记录解析
func TestResolveA(t *testing.T) {
	r := newTestResolver(StrategySequential,
		mkServer("a", 1, &mockTransport{addr: "a", ips: []string{"1.2.3.4", "5.6.7.8"}}))

	ips, err := r.ResolveA(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("ResolveA 失败: %v", err)
	}
	if len(ips) != 2 || ips[0] != "1.2.3.4" || ips[1] != "5.6.7.8" {
		t.Errorf("ResolveA = %v", ips)
	}
}

// TestResolveAFiltersIPv6 A 查询结果只保留 IPv4
func TestResolveAFiltersIPv6(t *testing.T) {
	r := newTestResolver(StrategySequential,
		mkServer("a", 1, &mockTransport{addr: "a", ips: []string{"1.2.3.4", "2001:db8::1"}}))

	ips, err := r.ResolveA(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("ResolveA 失败: %v", err)
	}
	if len(ips) != 1 || ips[0] != "1.2.3.4" {
		t.Errorf("应当只保留 IPv4, got %v", ips)
	}
}

// TestResolveTXT 单条 TXT 记录的多个分段拼接为一个字符串
func TestResolveTXT(t *testing.T) {
	r := newTestResolver(StrategySequential,
		mkServer("a", 1, &mockTransport{addr: "a", txts: [][]string{
			{"v=spf1 ", "include:example.com ", "~all"},
			{"single"},
		}}))

	records, err := r.ResolveTXT(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("ResolveTXT 失败: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %v", records)
	}
	if records[0] != "v=spf1 include:example.com ~all" {
		t.Errorf("多段记录应当拼接, got %q", records[0])
	}
	if records[1] != "single" {
		t.Errorf("records[1] = %q", records[1])
	}
}

// TestInvalidDomain 非法域名不应当发出查询
func TestInvalidDomain(t *testing.T) {
	tr := &mockTransport{addr: "a", ips: []string{"1.2.3.4"}}
	r := newTestResolver(StrategySequential, mkServer("a", 1, tr))

	for _, domain := range []string{"", "bad..domain", "-bad.com"} {
		_, err := r.ResolveA(context.Background(), domain)
		if err == nil {
			t.Errorf("域名 %q 应当报错", domain)
			continue
		}
		if kind, ok := KindOf(err); !ok || kind != KindInvalidInput {
			t.Errorf("域名 %q 的错误分类 = %v, want KindInvalidInput", domain, err)
		}
	}

	if tr.calls.Load() != 0 {
		t.Errorf("非法域名不应当触发上游查询, calls=%d", tr.calls.Load())
	}
}

// TestNXDOMAIN 确定性的 NXDOMAIN 返回空结果而不是错误
func TestNXDOMAIN(t *testing.T) {
	r := newTestResolver(StrategySequential,
		mkServer("a", 1, &mockTransport{addr: "a", rcode: dns.RcodeNameError}),
		mkServer("b", 1, &mockTransport{addr: "b", ips: []string{"1.2.3.4"}}))

	ips, err := r.ResolveA(context.Background(), "nonexistent.example.com")
	if err != nil {
		t.Fatalf("NXDOMAIN 不应当报错: %v", err)
	}
	if len(ips) != 0 {
		t.Errorf("NXDOMAIN 应当返回空结果, got %v", ips)
	}
}

// TestBatchResolve 批量解析保持顺序且单点失败互不影响
func TestBatchResolve(t *testing.T) {
	r := newTestResolver(StrategySequential,
		mkServer("a", 1, &mockTransport{addr: "a", ips: []string{"1.2.3.4"}}))

	domains := []string{"one.example.com", "bad..domain", "two.example.com"}
	results := r.BatchResolve(context.Background(), domains)

	if len(results) != len(domains) {
		t.Fatalf("结果数量 = %d, want %d", len(results), len(domains))
	}

	for i, res := range results {
		if res.Domain() != domains[i] {
			t.Errorf("第 %d 个结果的域名 = %q, want %q", i, res.Domain(), domains[i])
		}
	}

	if !results[0].IsOk() || !results[2].IsOk() {
		t.Error("合法域名应当解析成功")
	}
	if !results[1].IsErr() {
		t.Error("非法域名的槽位应当是失败")
	}
	if kind, _ := KindOf(results[1].UnwrapErr()); kind != KindInvalidInput {
		t.Errorf("失败槽位的错误分类 = %v", kind)
	}
}

// TestBatchResolveEmpty 空输入返回空切片
func TestBatchResolveEmpty(t *testing.T) {
	r := newTestResolver(StrategySequential,
		mkServer("a", 1, &mockTransport{addr: "a"}))

	results := r.BatchResolve(context.Background(), nil)
	if len(results) != 0 {
		t.Errorf("空输入应当返回空结果, got %d", len(results))
	}
}

// TestSingleflightDedup 相同的在途查询只发出一次
func TestSingleflightDedup(t *testing.T) {
	tr := &mockTransport{addr: "a", delay: 50 * time.Millisecond, ips: []string{"1.2.3.4"}}
	r := newTestResolver(StrategySequential, mkServer("a", 1, tr))

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ips, err := r.ResolveA(context.Background(), "dedup.example.com")
			if err != nil || len(ips) != 1 {
				t.Errorf("并发查询失败: %v %v", ips, err)
			}
		}()
	}
	wg.Wait()

	if tr.calls.Load() != 1 {
		t.Errorf("5 个并发的相同查询应当合并为 1 次上游请求, calls=%d", tr.calls.Load())
	}
}

// TestGetHealthStatus 健康状态随查询结果变化
func TestGetHealthStatus(t *testing.T) {
	r := newTestResolver(StrategySequential,
		mkServer("bad", 1, &mockTransport{addr: "bad", err: fmt.Errorf("connection refused")}),
		mkServer("good", 1, &mockTransport{addr: "good", ips: []string{"1.2.3.4"}}))

	for i := 0; i < 3; i++ {
		r.ResolveA(context.Background(), fmt.Sprintf("d%d.example.com", i))
	}

	status := r.GetHealthStatus()
	if status["bad"] {
		t.Error("连续失败 3 次的上游应当不健康")
	}
	if !status["good"] {
		t.Error("一直成功的上游应当健康")
	}
}

// TestStats 统计计数与最快上游
func TestStats(t *testing.T) {
	r := newTestResolver(StrategySequential,
		mkServer("a", 1, &mockTransport{addr: "a", ips: []string{"1.2.3.4"}}))

	r.ResolveA(context.Background(), "one.example.com")
	r.ResolveA(context.Background(), "bad..domain")

	stats := r.Stats()
	if stats.TotalQueries != 1 {
		t.Errorf("TotalQueries = %d, want 1 (非法输入不计入)", stats.TotalQueries)
	}
	if stats.SuccessfulQueries != 1 || stats.FailedQueries != 1 {
		t.Errorf("成功=%d 失败=%d", stats.SuccessfulQueries, stats.FailedQueries)
	}
	if stats.FastestUpstream != "a" {
		t.Errorf("FastestUpstream = %q", stats.FastestUpstream)
	}

	r.ResetStats()
	stats = r.Stats()
	if stats.TotalQueries != 0 || len(stats.Upstreams) != 1 || stats.Upstreams[0].TotalSuccesses != 0 {
		t.Error("ResetStats 后计数应当清零")
	}
}
