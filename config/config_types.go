package config

// Config 解析核心的完整配置
type Config struct {
	Upstreams   []UpstreamConfig  `yaml:"upstreams" json:"upstreams"`
	Strategy    string            `yaml:"strategy" json:"strategy"` // fifo, parallel, sequential, round_robin, smart
	Query       QueryConfig       `yaml:"query" json:"query"`
	HealthCheck HealthCheckConfig `yaml:"health_check" json:"health_check"`
	RoundRobin  RoundRobinConfig  `yaml:"round_robin" json:"round_robin"`
	LogLevel    string            `yaml:"log_level,omitempty" json:"log_level"`
}

// UpstreamConfig 单个上游服务器的静态配置
type UpstreamConfig struct {
	// 显示名称，缺省时使用地址
	Name string `yaml:"name,omitempty" json:"name"`
	// 传输类型：udp, tcp, dot, doh；缺省时由地址 scheme 推断
	Type string `yaml:"type,omitempty" json:"type"`
	// 服务器地址，如 "223.5.5.5"、"tls://dns.google:853"、"https://dns.alidns.com/dns-query"
	Address string `yaml:"address" json:"address"`
	// 权重，用于 round_robin 和 smart 策略，默认 1
	Weight int `yaml:"weight,omitempty" json:"weight"`
}

// QueryConfig 查询行为配置
type QueryConfig struct {
	// 单次解析的总超时（毫秒）
	TimeoutMs int `yaml:"timeout_ms,omitempty" json:"timeout_ms"`
	// 单个上游一次尝试的超时（毫秒）
	AttemptTimeoutMs int `yaml:"attempt_timeout_ms,omitempty" json:"attempt_timeout_ms"`
	// 是否在查询中附带 EDNS0
	EnableEDNS bool `yaml:"enable_edns" json:"enable_edns"`
	// 批量解析的并发上限
	BatchConcurrency int `yaml:"batch_concurrency,omitempty" json:"batch_concurrency"`
	// 引导 DNS，用于解析 DoH/DoT 服务器自身的域名，必须是纯 IP
	BootstrapDNS []string `yaml:"bootstrap_dns,omitempty" json:"bootstrap_dns"`
}

// HealthCheckConfig 健康检查配置
type HealthCheckConfig struct {
	// 是否启用周期性探测（未配置时默认启用）
	Enabled *bool `yaml:"enabled,omitempty" json:"enabled"`
	// 探测周期（秒）
	IntervalSeconds int `yaml:"interval_seconds,omitempty" json:"interval_seconds"`
	// 单次探测超时（毫秒），通常短于正常查询
	ProbeTimeoutMs int `yaml:"probe_timeout_ms,omitempty" json:"probe_timeout_ms"`
	// 连续失败多少次后判定为不健康
	FailureThreshold int `yaml:"failure_threshold,omitempty" json:"failure_threshold"`
	// 探测使用的域名
	ProbeDomain string `yaml:"probe_domain,omitempty" json:"probe_domain"`
	// 同时进行的探测数量上限
	MaxConcurrentProbes int `yaml:"max_concurrent_probes,omitempty" json:"max_concurrent_probes"`
}

// RoundRobinConfig round_robin 策略的调优参数
type RoundRobinConfig struct {
	// 故障切换到下一个上游前的等待（毫秒）
	RetryDelayMs int `yaml:"retry_delay_ms,omitempty" json:"retry_delay_ms"`
}

// HealthCheckEnabled 健康检查是否启用（未配置时默认启用）
func (c *Config) HealthCheckEnabled() bool {
	if c.HealthCheck.Enabled == nil {
		return true
	}
	return *c.HealthCheck.Enabled
}
