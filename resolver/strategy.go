package resolver

import (
	"fmt"
	"strings"
)

// Strategy 查询策略
type Strategy int

const (
	// StrategyFIFO 并发竞速，最先返回的成功结果获胜
	StrategyFIFO Strategy = iota
	// StrategyParallel 与 FIFO 同义（历史名称）
	StrategyParallel
	// StrategySequential 按配置顺序逐个尝试
	StrategySequential
	// StrategyRoundRobin 按权重轮询分摊查询
	StrategyRoundRobin
	// StrategySmart 按健康评分选择最优上游
	StrategySmart
)

func (s Strategy) String() string {
	switch s {
	case StrategyFIFO:
		return "fifo"
	case StrategyParallel:
		return "parallel"
	case StrategySequential:
		return "sequential"
	case StrategyRoundRobin:
		return "round_robin"
	case StrategySmart:
		return "smart"
	default:
		return "unknown"
	}
}

// ParseStrategy 解析策略名称
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "fifo":
		return StrategyFIFO, nil
	case "parallel":
		return StrategyParallel, nil
	case "sequential":
		return StrategySequential, nil
	case "round_robin", "roundrobin":
		return StrategyRoundRobin, nil
	case "smart":
		return StrategySmart, nil
	default:
		return StrategyFIFO, fmt.Errorf("未知的查询策略: %q", name)
	}
}
