package transport

import (
	"context"
	"crypto/tls"
	"net"
	"time"

	"github.com/miekg/dns"
)

// DoT DNS over TLS 传输，复用 TLS 连接池
type DoT struct {
	address    string
	serverName string
	pool       *connPool
}

// NewDoT 创建 DoT 传输
// addr 形如 "dns.google" 或 "dns.google:853"，主机名用作 SNI
func NewDoT(addr string) *DoT {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
		port = "853"
	}
	if port == "" {
		port = "853"
	}
	address := net.JoinHostPort(host, port)

	dial := func(ctx context.Context) (net.Conn, error) {
		d := &tls.Dialer{
			NetDialer: &net.Dialer{Timeout: 5 * time.Second},
			Config: &tls.Config{
				ServerName: host,
				MinVersion: tls.VersionTLS12,
			},
		}
		return d.DialContext(ctx, "tcp", address)
	}

	return &DoT{
		address:    address,
		serverName: host,
		pool:       newConnPool(dial, defaultPoolSize, defaultIdleTimeout),
	}
}

func (t *DoT) Exchange(ctx context.Context, msg *dns.Msg) (*dns.Msg, error) {
	return t.pool.Exchange(ctx, msg)
}

func (t *DoT) Address() string {
	return "tls://" + t.address
}

func (t *DoT) Protocol() string {
	return "dot"
}

// Close 关闭连接池
func (t *DoT) Close() error {
	return t.pool.Close()
}
