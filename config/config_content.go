package config

import "os"

// DefaultConfigContent 默认配置文件内容，包含详细说明
const DefaultConfigContent = `# EasyDNS 配置文件

# 上游 DNS 服务器列表
# 地址支持多种协议格式:
# - UDP: "223.5.5.5" 或 "223.5.5.5:53"（默认端口 53）
# - TCP: "tcp://8.8.8.8:53"
# - DoT: "tls://dns.google:853"
# - DoH: "https://dns.alidns.com/dns-query"
# type 可省略，由地址 scheme 推断；weight 用于 round_robin / smart 策略
upstreams:
  - name: "ali-udp"
    address: "223.5.5.5"
    weight: 2
  - name: "google-dot"
    address: "tls://dns.google:853"
    weight: 1
  - name: "ali-doh"
    address: "https://dns.alidns.com/dns-query"
    weight: 1

# 查询策略：fifo、parallel、sequential、round_robin、smart
strategy: "fifo"

query:
  # 单次解析的总超时（毫秒）
  timeout_ms: 5000
  # 单个上游一次尝试的超时（毫秒）
  attempt_timeout_ms: 2000
  # 是否附带 EDNS0
  enable_edns: true
  # 批量解析并发上限
  batch_concurrency: 16
  # 引导 DNS，用于解析 DoH/DoT 服务器自身的域名（必须是纯 IP）
  bootstrap_dns:
    - "223.5.5.5"
    - "8.8.8.8"

health_check:
  # 是否启用周期性探测
  enabled: true
  # 探测周期（秒）
  interval_seconds: 30
  # 单次探测超时（毫秒）
  probe_timeout_ms: 1000
  # 连续失败多少次后判定为不健康
  failure_threshold: 3
  # 探测域名
  probe_domain: "www.gstatic.com"
  # 并发探测上限
  max_concurrent_probes: 8

round_robin:
  # 故障切换前的等待（毫秒）
  retry_delay_ms: 50

# 日志级别：debug、info、warn、error
log_level: "info"
`

// CreateDefaultConfig 创建默认配置文件
func CreateDefaultConfig(filePath string) error {
	return os.WriteFile(filePath, []byte(DefaultConfigContent), 0644)
}
