package resolver

import (
	"context"
	"fmt"
	"testing"

	"easydns/upstream"
)

// TestBuildWeightedRing 权重环的展开
func TestBuildWeightedRing(t *testing.T) {
	servers := []*upstream.Server{
		mkServer("a", 2, &mockTransport{addr: "a"}),
		mkServer("b", 1, &mockTransport{addr: "b"}),
	}

	ring := buildWeightedRing(servers)
	if len(ring) != 3 {
		t.Fatalf("环长度 = %d, want 3", len(ring))
	}

	counts := map[int]int{}
	for _, idx := range ring {
		counts[idx]++
	}
	if counts[0] != 2 || counts[1] != 1 {
		t.Errorf("权重展开错误: %v", counts)
	}
}

// TestWeightedDistribution 查询按权重比例分摊
func TestWeightedDistribution(t *testing.T) {
	heavy := &mockTransport{addr: "heavy", ips: []string{"1.1.1.1"}}
	light := &mockTransport{addr: "light", ips: []string{"2.2.2.2"}}

	r := newTestResolver(StrategyRoundRobin,
		mkServer("heavy", 2, heavy),
		mkServer("light", 1, light))

	for i := 0; i < 30; i++ {
		domain := fmt.Sprintf("d%d.example.com", i)
		if _, err := r.ResolveA(context.Background(), domain); err != nil {
			t.Fatalf("查询 %s 失败: %v", domain, err)
		}
	}

	// 环为 [heavy, heavy, light]，游标逐次前进，30 次查询正好 20:10
	if heavy.calls.Load() != 20 || light.calls.Load() != 10 {
		t.Errorf("分布错误: heavy=%d light=%d, want 20:10", heavy.calls.Load(), light.calls.Load())
	}
}

// TestRoundRobinFailover 失败时顺延到下一个上游
func TestRoundRobinFailover(t *testing.T) {
	bad := &mockTransport{addr: "bad", err: fmt.Errorf("connection refused")}
	good := &mockTransport{addr: "good", ips: []string{"1.1.1.1"}}

	r := newTestResolver(StrategyRoundRobin,
		mkServer("bad", 1, bad),
		mkServer("good", 1, good))

	ips, err := r.ResolveA(context.Background(), "failover.example.com")
	if err != nil {
		t.Fatalf("应当顺延成功: %v", err)
	}
	if len(ips) != 1 || ips[0] != "1.1.1.1" {
		t.Errorf("got %v", ips)
	}
}

// TestRoundRobinSkipsUnhealthy 不健康的上游被顺延跳过
func TestRoundRobinSkipsUnhealthy(t *testing.T) {
	sick := &mockTransport{addr: "sick", ips: []string{"9.9.9.9"}}
	fine := &mockTransport{addr: "fine", ips: []string{"1.1.1.1"}}

	r := newTestResolver(StrategyRoundRobin,
		mkServer("sick", 1, sick),
		mkServer("fine", 1, fine))

	// 把 sick 打到不健康
	for i := 0; i < 3; i++ {
		r.table.RecordFailure("sick", "探测失败")
	}

	for i := 0; i < 4; i++ {
		domain := fmt.Sprintf("skip%d.example.com", i)
		if _, err := r.ResolveA(context.Background(), domain); err != nil {
			t.Fatalf("查询失败: %v", err)
		}
	}

	if sick.calls.Load() != 0 {
		t.Errorf("不健康的上游不应当接到查询, calls=%d", sick.calls.Load())
	}
	if fine.calls.Load() != 4 {
		t.Errorf("fine.calls = %d, want 4", fine.calls.Load())
	}
}

// TestRoundRobinBounded 全部失败时每个上游最多尝试一次，绝不绕第二圈
func TestRoundRobinBounded(t *testing.T) {
	a := &mockTransport{addr: "a", err: fmt.Errorf("refused")}
	b := &mockTransport{addr: "b", err: fmt.Errorf("refused")}

	r := newTestResolver(StrategyRoundRobin,
		mkServer("a", 3, a),
		mkServer("b", 2, b))

	_, err := r.ResolveA(context.Background(), "bounded.example.com")
	if err == nil {
		t.Fatal("全部失败应当报错")
	}

	if a.calls.Load() != 1 || b.calls.Load() != 1 {
		t.Errorf("每个上游最多尝试一次: a=%d b=%d", a.calls.Load(), b.calls.Load())
	}

	var re *ResolveError
	if !asResolveError(err, &re) || re.Kind != KindAllUpstreamsFailed {
		t.Errorf("错误分类错误: %v", err)
	}
}

// TestRoundRobinAllUnhealthyStillTries 全不健康时仍然发起尝试（优雅降级）
func TestRoundRobinAllUnhealthyStillTries(t *testing.T) {
	a := &mockTransport{addr: "a", ips: []string{"1.1.1.1"}}

	r := newTestResolver(StrategyRoundRobin, mkServer("a", 1, a))

	for i := 0; i < 3; i++ {
		r.table.RecordFailure("a", "探测失败")
	}

	ips, err := r.ResolveA(context.Background(), "degraded.example.com")
	if err != nil {
		t.Fatalf("全不健康时仍应当尝试: %v", err)
	}
	if len(ips) != 1 {
		t.Errorf("got %v", ips)
	}
}
