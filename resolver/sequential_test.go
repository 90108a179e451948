package resolver

import (
	"context"
	"fmt"
	"testing"
	"time"

	"easydns/config"
	"easydns/upstream"
)

// TestSequentialStopsAtFirstSuccess 第一个成功即停止，后续上游不被打扰
func TestSequentialStopsAtFirstSuccess(t *testing.T) {
	first := &mockTransport{addr: "first", ips: []string{"1.1.1.1"}}
	second := &mockTransport{addr: "second", ips: []string{"2.2.2.2"}}

	r := newTestResolver(StrategySequential,
		mkServer("first", 1, first),
		mkServer("second", 1, second))

	ips, err := r.ResolveA(context.Background(), "seq.example.com")
	if err != nil {
		t.Fatalf("顺序查询失败: %v", err)
	}
	if len(ips) != 1 || ips[0] != "1.1.1.1" {
		t.Errorf("got %v", ips)
	}

	if first.calls.Load() != 1 {
		t.Errorf("first.calls = %d", first.calls.Load())
	}
	if second.calls.Load() != 0 {
		t.Errorf("第一个成功后不应当查询第二个, second.calls = %d", second.calls.Load())
	}
}

// TestSequentialFallsThrough 失败时严格按配置顺序顺延
func TestSequentialFallsThrough(t *testing.T) {
	a := &mockTransport{addr: "a", err: fmt.Errorf("connection refused")}
	b := &mockTransport{addr: "b", err: fmt.Errorf("i/o timeout")}
	c := &mockTransport{addr: "c", ips: []string{"3.3.3.3"}}

	r := newTestResolver(StrategySequential,
		mkServer("a", 1, a),
		mkServer("b", 1, b),
		mkServer("c", 1, c))

	ips, err := r.ResolveA(context.Background(), "fallthrough.example.com")
	if err != nil {
		t.Fatalf("顺序查询失败: %v", err)
	}
	if len(ips) != 1 || ips[0] != "3.3.3.3" {
		t.Errorf("got %v", ips)
	}

	if a.calls.Load() != 1 || b.calls.Load() != 1 || c.calls.Load() != 1 {
		t.Errorf("calls: a=%d b=%d c=%d", a.calls.Load(), b.calls.Load(), c.calls.Load())
	}
}

// TestSequentialNXDOMAINIsFinal NXDOMAIN 是确定性结果，不再顺延
func TestSequentialNXDOMAINIsFinal(t *testing.T) {
	nx := &mockTransport{addr: "nx", rcode: 3} // NXDOMAIN
	next := &mockTransport{addr: "next", ips: []string{"1.1.1.1"}}

	r := newTestResolver(StrategySequential,
		mkServer("nx", 1, nx),
		mkServer("next", 1, next))

	ips, err := r.ResolveA(context.Background(), "gone.example.com")
	if err != nil {
		t.Fatalf("NXDOMAIN 不应当报错: %v", err)
	}
	if len(ips) != 0 {
		t.Errorf("got %v", ips)
	}
	if next.calls.Load() != 0 {
		t.Error("NXDOMAIN 后不应当继续尝试其他上游")
	}
}

// TestSequentialAllFail 全部失败时错误中列出所有尝试过的上游
func TestSequentialAllFail(t *testing.T) {
	r := newTestResolver(StrategySequential,
		mkServer("a", 1, &mockTransport{addr: "a", err: fmt.Errorf("refused")}),
		mkServer("b", 1, &mockTransport{addr: "b", err: fmt.Errorf("refused")}))

	_, err := r.ResolveA(context.Background(), "doomed.example.com")
	if err == nil {
		t.Fatal("全部失败应当报错")
	}

	var re *ResolveError
	if !asResolveError(err, &re) {
		t.Fatalf("应当是 *ResolveError, got %T", err)
	}
	if re.Kind != KindAllUpstreamsFailed {
		t.Errorf("Kind = %v", re.Kind)
	}
	if len(re.Attempts) != 2 || re.Attempts[0] != "a" || re.Attempts[1] != "b" {
		t.Errorf("Attempts = %v", re.Attempts)
	}
}

// TestSequentialTotalTimeout 总超时先于尝试完所有上游时整体截断
// 耗时上限由 Query.TimeoutMs 决定，而不是 上游数 x 单次超时
func TestSequentialTotalTimeout(t *testing.T) {
	var servers []*upstream.Server
	for i := 0; i < 4; i++ {
		name := fmt.Sprintf("s%d", i)
		servers = append(servers, mkServer(name, 1, &mockTransport{addr: name, delay: time.Second}))
	}

	cfg := &config.Config{
		Strategy: StrategySequential.String(),
		Query: config.QueryConfig{
			TimeoutMs:        250,
			AttemptTimeoutMs: 200,
			BatchConcurrency: 8,
		},
		HealthCheck: config.HealthCheckConfig{FailureThreshold: 3},
	}
	r := newResolver(cfg, StrategySequential, servers)

	start := time.Now()
	_, err := r.ResolveA(context.Background(), "slowchain.example.com")
	elapsed := time.Since(start)

	if err == nil {
		t.Fatal("全部超时应当报错")
	}
	if elapsed > 600*time.Millisecond {
		t.Errorf("应当在总超时 (250ms) 附近截断, 耗时 %v", elapsed)
	}

	var re *ResolveError
	if !asResolveError(err, &re) {
		t.Fatalf("应当是 *ResolveError, got %T", err)
	}
	if re.Kind != KindAllUpstreamsFailed {
		t.Errorf("Kind = %v, want KindAllUpstreamsFailed", re.Kind)
	}
	if len(re.Attempts) == 0 || len(re.Attempts) >= 4 {
		t.Errorf("应当在尝试完所有上游之前被截断, Attempts = %v", re.Attempts)
	}
}

// TestSequentialOneInFlight 任一时刻只有一个在途请求
func TestSequentialOneInFlight(t *testing.T) {
	slow := &mockTransport{addr: "slow", delay: 30 * time.Millisecond, ips: []string{"1.1.1.1"}}
	other := &mockTransport{addr: "other", ips: []string{"2.2.2.2"}}

	r := newTestResolver(StrategySequential,
		mkServer("slow", 1, slow),
		mkServer("other", 1, other))

	if _, err := r.ResolveA(context.Background(), "serial.example.com"); err != nil {
		t.Fatalf("查询失败: %v", err)
	}

	// 第一个在途时第二个不应当被发起
	if other.calls.Load() != 0 {
		t.Errorf("other.calls = %d", other.calls.Load())
	}
}
