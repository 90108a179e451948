package upstream

import (
	"fmt"
	"net/url"
	"strings"

	"easydns/config"
	"easydns/upstream/bootstrap"
	"easydns/upstream/transport"
)

// NewServerFromConfig 根据配置构造上游服务器
// 传输类型优先取 cfg.Type，缺省时由地址 scheme 推断，无 scheme 默认 UDP
func NewServerFromConfig(cfg config.UpstreamConfig, boot *bootstrap.Resolver) (*Server, error) {
	tr, err := buildTransport(cfg, boot)
	if err != nil {
		return nil, fmt.Errorf("构建上游 %q 失败: %w", cfg.Name, err)
	}
	return NewServer(cfg.Name, cfg.Weight, tr), nil
}

func buildTransport(cfg config.UpstreamConfig, boot *bootstrap.Resolver) (Transport, error) {
	addr := cfg.Address
	typ := strings.ToLower(cfg.Type)

	if typ == "" {
		typ = inferType(addr)
	}

	// 去掉 scheme 前缀，DoH 保留完整 URL
	host := addr
	if strings.Contains(addr, "://") {
		u, err := url.Parse(addr)
		if err != nil {
			return nil, err
		}
		host = u.Host
	}

	switch typ {
	case "udp":
		return transport.NewUDP(host), nil
	case "tcp":
		return transport.NewTCP(host), nil
	case "dot":
		return transport.NewDoT(host), nil
	case "doh":
		u := addr
		if strings.HasPrefix(u, "doh://") {
			u = "https://" + strings.TrimPrefix(u, "doh://")
		}
		if !strings.HasPrefix(u, "https://") {
			return nil, fmt.Errorf("doh 地址必须是 https URL: %s", addr)
		}
		return transport.NewDoH(u, boot)
	default:
		return nil, fmt.Errorf("不支持的传输类型: %s", typ)
	}
}

func inferType(addr string) string {
	switch {
	case strings.HasPrefix(addr, "udp://"):
		return "udp"
	case strings.HasPrefix(addr, "tcp://"):
		return "tcp"
	case strings.HasPrefix(addr, "tls://"), strings.HasPrefix(addr, "dot://"):
		return "dot"
	case strings.HasPrefix(addr, "https://"), strings.HasPrefix(addr, "doh://"):
		return "doh"
	default:
		return "udp"
	}
}
