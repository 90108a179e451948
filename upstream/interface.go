package upstream

import (
	"context"
	"io"

	"github.com/miekg/dns"
)

// Transport 表示一种 DNS 消息的传输方式（UDP/TCP/DoT/DoH）
// Exchange 执行一次完整的请求-响应往返，不做任何重试，
// 超时由调用方通过 ctx 的 deadline 控制
type Transport interface {
	Exchange(ctx context.Context, msg *dns.Msg) (*dns.Msg, error)
	Address() string
	Protocol() string
}

// Server 将传输与上游的静态元信息（名称、权重）绑定在一起
type Server struct {
	name      string
	weight    int
	transport Transport
}

// NewServer 创建上游服务器实例
func NewServer(name string, weight int, tr Transport) *Server {
	if weight <= 0 {
		weight = 1
	}
	return &Server{
		name:      name,
		weight:    weight,
		transport: tr,
	}
}

// Exchange 执行一次查询，错误统一归一化为 *TransportError
func (s *Server) Exchange(ctx context.Context, msg *dns.Msg) (*dns.Msg, error) {
	reply, err := s.transport.Exchange(ctx, msg)
	if err != nil {
		return nil, ClassifyError(s.transport.Address(), err)
	}
	return reply, nil
}

// Name 返回配置的显示名称
func (s *Server) Name() string {
	return s.name
}

// Address 返回带协议前缀的服务器地址
func (s *Server) Address() string {
	return s.transport.Address()
}

// Protocol 返回传输协议名
func (s *Server) Protocol() string {
	return s.transport.Protocol()
}

// Weight 返回配置的权重
func (s *Server) Weight() int {
	return s.weight
}

// Close 释放传输持有的连接资源
func (s *Server) Close() error {
	if c, ok := s.transport.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
