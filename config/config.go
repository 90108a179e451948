package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadConfig 从 YAML 文件加载配置，文件不存在时返回默认配置
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return LoadFromBytes([]byte(DefaultConfigContent))
		}
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}
	return LoadFromBytes(data)
}

// LoadFromBytes 从字节内容加载配置
func LoadFromBytes(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	setDefaultValues(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setDefaultValues 设置配置文件中缺失字段的默认值
func setDefaultValues(cfg *Config) {
	if cfg.Strategy == "" {
		cfg.Strategy = "fifo"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	if cfg.Query.TimeoutMs == 0 {
		cfg.Query.TimeoutMs = 5000
	}
	if cfg.Query.AttemptTimeoutMs == 0 {
		cfg.Query.AttemptTimeoutMs = 2000
	}
	if cfg.Query.BatchConcurrency == 0 {
		cfg.Query.BatchConcurrency = 16
	}
	if len(cfg.Query.BootstrapDNS) == 0 {
		// 用于解析 DoH/DoT 服务器域名的公共 DNS
		cfg.Query.BootstrapDNS = []string{"223.5.5.5", "8.8.8.8", "1.1.1.1"}
	}

	if cfg.HealthCheck.IntervalSeconds == 0 {
		cfg.HealthCheck.IntervalSeconds = 30
	}
	if cfg.HealthCheck.ProbeTimeoutMs == 0 {
		cfg.HealthCheck.ProbeTimeoutMs = 1000
	}
	if cfg.HealthCheck.FailureThreshold == 0 {
		cfg.HealthCheck.FailureThreshold = 3
	}
	if cfg.HealthCheck.ProbeDomain == "" {
		cfg.HealthCheck.ProbeDomain = "www.gstatic.com"
	}
	if cfg.HealthCheck.MaxConcurrentProbes == 0 {
		cfg.HealthCheck.MaxConcurrentProbes = 8
	}

	if cfg.RoundRobin.RetryDelayMs == 0 {
		cfg.RoundRobin.RetryDelayMs = 50
	}

	// 每个上游的默认值
	for i := range cfg.Upstreams {
		up := &cfg.Upstreams[i]
		if up.Name == "" {
			up.Name = up.Address
		}
		if up.Weight == 0 {
			up.Weight = 1
		}
	}
}

var validStrategies = map[string]bool{
	"fifo":        true,
	"parallel":    true,
	"sequential":  true,
	"round_robin": true,
	"smart":       true,
}

// Validate 校验配置的合法性
func (c *Config) Validate() error {
	if len(c.Upstreams) == 0 {
		return fmt.Errorf("配置错误: 至少需要一个上游服务器")
	}

	if !validStrategies[strings.ToLower(c.Strategy)] {
		return fmt.Errorf("配置错误: 未知的查询策略 %q", c.Strategy)
	}

	seen := make(map[string]bool)
	for _, up := range c.Upstreams {
		if up.Address == "" {
			return fmt.Errorf("配置错误: 上游 %q 缺少地址", up.Name)
		}
		if up.Weight < 0 {
			return fmt.Errorf("配置错误: 上游 %q 权重不能为负数", up.Name)
		}
		if seen[up.Name] {
			return fmt.Errorf("配置错误: 上游名称 %q 重复", up.Name)
		}
		seen[up.Name] = true

		switch strings.ToLower(up.Type) {
		case "", "udp", "tcp", "dot", "doh":
		default:
			return fmt.Errorf("配置错误: 上游 %q 传输类型 %q 不支持", up.Name, up.Type)
		}
	}

	if c.Query.TimeoutMs < 0 || c.Query.AttemptTimeoutMs < 0 {
		return fmt.Errorf("配置错误: 超时时间不能为负数")
	}

	return nil
}
