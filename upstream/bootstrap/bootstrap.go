package bootstrap

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/miekg/dns"
)

const (
	minCacheTTL = 1 * time.Minute
	maxCacheTTL = 1 * time.Hour
)

// Resolver 引导解析器：用纯 IP 的 DNS 服务器解析 DoH/DoT 上游自身的域名
type Resolver struct {
	servers []string
	cache   sync.Map // host -> *cacheEntry
}

type cacheEntry struct {
	ip        string
	expiresAt time.Time
}

// NewResolver 创建引导解析器，servers 必须是纯 IP（可带端口）
func NewResolver(servers []string) *Resolver {
	return &Resolver{servers: servers}
}

// Resolve 将主机名解析为 IP，依次尝试各引导服务器
func (r *Resolver) Resolve(ctx context.Context, host string) (string, error) {
	// 本身就是 IP 则直接返回
	if ip := net.ParseIP(host); ip != nil {
		return host, nil
	}

	if val, ok := r.cache.Load(host); ok {
		entry := val.(*cacheEntry)
		if time.Now().Before(entry.expiresAt) {
			return entry.ip, nil
		}
		r.cache.Delete(host)
	}

	var lastErr error
	for _, server := range r.servers {
		ip, ttl, err := r.queryOne(ctx, server, host)
		if err != nil {
			lastErr = err
			continue
		}

		r.cache.Store(host, &cacheEntry{
			ip:        ip,
			expiresAt: time.Now().Add(clampTTL(ttl)),
		})
		return ip, nil
	}

	if lastErr != nil {
		return "", fmt.Errorf("引导解析 %s 失败: %w", host, lastErr)
	}
	return "", fmt.Errorf("没有可用的引导 DNS 服务器")
}

func (r *Resolver) queryOne(ctx context.Context, server, host string) (string, time.Duration, error) {
	c := &dns.Client{Net: "udp"}

	if _, _, err := net.SplitHostPort(server); err != nil {
		server = net.JoinHostPort(server, "53")
	}

	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(host), dns.TypeA)
	m.RecursionDesired = true

	reply, _, err := c.ExchangeContext(ctx, m, server)
	if err != nil {
		return "", 0, err
	}

	if reply.Rcode != dns.RcodeSuccess {
		return "", 0, fmt.Errorf("dns query failed with rcode: %d", reply.Rcode)
	}

	for _, ans := range reply.Answer {
		if a, ok := ans.(*dns.A); ok {
			return a.A.String(), time.Duration(a.Hdr.Ttl) * time.Second, nil
		}
	}

	return "", 0, fmt.Errorf("no A record found for %s", host)
}

func clampTTL(ttl time.Duration) time.Duration {
	if ttl < minCacheTTL {
		return minCacheTTL
	}
	if ttl > maxCacheTTL {
		return maxCacheTTL
	}
	return ttl
}
