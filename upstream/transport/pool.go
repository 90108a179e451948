package transport

import (
	"context"
	"fmt"
	"net"
	"time"

	"easydns/logger"

	"github.com/miekg/dns"
)

const (
	defaultPoolSize    = 8
	defaultIdleTimeout = 5 * time.Minute
	defaultIOTimeout   = 3 * time.Second
)

type dialFunc func(ctx context.Context) (net.Conn, error)

// pooledConn 带最后使用时间的连接
type pooledConn struct {
	conn     *dns.Conn
	lastUsed time.Time
}

// connPool 面向单个上游的小型连接池，TCP 与 DoT 共用
// 只复用健康连接：任何读写错误都直接销毁连接
type connPool struct {
	dial        dialFunc
	idle        chan *pooledConn
	idleTimeout time.Duration
}

func newConnPool(dial dialFunc, size int, idleTimeout time.Duration) *connPool {
	if size <= 0 {
		size = defaultPoolSize
	}
	if idleTimeout <= 0 {
		idleTimeout = defaultIdleTimeout
	}
	return &connPool{
		dial:        dial,
		idle:        make(chan *pooledConn, size),
		idleTimeout: idleTimeout,
	}
}

// Exchange 在池化连接上执行一次查询
func (p *connPool) Exchange(ctx context.Context, msg *dns.Msg) (*dns.Msg, error) {
	pc, err := p.get(ctx)
	if err != nil {
		return nil, err
	}

	reply, err := p.exchangeOn(ctx, pc.conn, msg)
	if err != nil {
		// 出错的连接不再复用，防止残留数据污染下一个请求
		pc.conn.Close()
		return nil, err
	}

	pc.lastUsed = time.Now()
	select {
	case p.idle <- pc:
	default:
		pc.conn.Close()
	}

	return reply, nil
}

// get 取出一个可用连接，空闲过期的连接直接丢弃
func (p *connPool) get(ctx context.Context) (*pooledConn, error) {
	for {
		select {
		case pc := <-p.idle:
			if time.Since(pc.lastUsed) > p.idleTimeout {
				logger.Debugf("[连接池] 清理空闲过期连接")
				pc.conn.Close()
				continue
			}
			return pc, nil
		default:
			raw, err := p.dial(ctx)
			if err != nil {
				return nil, fmt.Errorf("dial failed: %w", err)
			}
			if tcpConn, ok := raw.(*net.TCPConn); ok {
				tcpConn.SetNoDelay(true)
			}
			return &pooledConn{conn: &dns.Conn{Conn: raw}, lastUsed: time.Now()}, nil
		}
	}
}

func (p *connPool) exchangeOn(ctx context.Context, conn *dns.Conn, msg *dns.Msg) (*dns.Msg, error) {
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	} else {
		conn.SetDeadline(time.Now().Add(defaultIOTimeout))
	}

	if err := conn.WriteMsg(msg); err != nil {
		return nil, fmt.Errorf("write failed: %w", err)
	}

	reply, err := conn.ReadMsg()
	if err != nil {
		return nil, fmt.Errorf("read failed: %w", err)
	}

	conn.SetDeadline(time.Time{})

	// 校验 Transaction ID，防串号
	if reply.Id != msg.Id {
		return nil, fmt.Errorf("dns id mismatch: request=%d, response=%d", msg.Id, reply.Id)
	}

	return reply, nil
}

// Close 关闭所有空闲连接
func (p *connPool) Close() error {
	for {
		select {
		case pc := <-p.idle:
			pc.conn.Close()
		default:
			return nil
		}
	}
}
