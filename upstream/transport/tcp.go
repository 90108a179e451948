package transport

import (
	"context"
	"net"
	"time"

	"github.com/miekg/dns"
)

// TCP 明文 TCP 传输，复用连接池
type TCP struct {
	address string
	pool    *connPool
}

func NewTCP(address string) *TCP {
	addr := ensurePort(address, "53")

	dial := func(ctx context.Context) (net.Conn, error) {
		d := &net.Dialer{Timeout: 5 * time.Second}
		return d.DialContext(ctx, "tcp", addr)
	}

	return &TCP{
		address: addr,
		pool:    newConnPool(dial, defaultPoolSize, defaultIdleTimeout),
	}
}

func (t *TCP) Exchange(ctx context.Context, msg *dns.Msg) (*dns.Msg, error) {
	return t.pool.Exchange(ctx, msg)
}

func (t *TCP) Address() string {
	return "tcp://" + t.address
}

func (t *TCP) Protocol() string {
	return "tcp"
}

// Close 关闭连接池
func (t *TCP) Close() error {
	return t.pool.Close()
}
