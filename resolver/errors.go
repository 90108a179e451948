package resolver

import (
	"errors"
	"fmt"
	"strings"

	"easydns/upstream"
)

// ErrorKind 解析错误的分类
type ErrorKind int

const (
	// KindInvalidInput 输入的域名或参数不合法，查询未发出
	KindInvalidInput ErrorKind = iota
	// KindUpstreamTimeout 上游超时
	KindUpstreamTimeout
	// KindUpstreamConnection 上游连接失败
	KindUpstreamConnection
	// KindUpstreamProtocol 上游协议异常
	KindUpstreamProtocol
	// KindUpstreamTLS 上游 TLS 握手或证书问题
	KindUpstreamTLS
	// KindAllUpstreamsFailed 本次查询尝试的所有上游全部失败
	KindAllUpstreamsFailed
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindUpstreamTimeout:
		return "upstream_timeout"
	case KindUpstreamConnection:
		return "upstream_connection"
	case KindUpstreamProtocol:
		return "upstream_protocol"
	case KindUpstreamTLS:
		return "upstream_tls"
	case KindAllUpstreamsFailed:
		return "all_upstreams_failed"
	default:
		return "unknown"
	}
}

// ResolveError 解析失败的详细信息
type ResolveError struct {
	Kind     ErrorKind
	Strategy Strategy
	Domain   string
	// 本次查询实际尝试过的上游名称
	Attempts []string
	// 所有上游都不健康时附带的应急诊断
	Emergency *EmergencyInfo
	Err       error
}

func (e *ResolveError) Error() string {
	var sb strings.Builder

	if e.Kind == KindInvalidInput {
		fmt.Fprintf(&sb, "无效的查询输入 %q: %v", e.Domain, e.Err)
		return sb.String()
	}

	fmt.Fprintf(&sb, "查询 %s 失败 (策略: %s)", e.Domain, e.Strategy)
	if len(e.Attempts) > 0 {
		fmt.Fprintf(&sb, ", 已尝试: %s", strings.Join(e.Attempts, ", "))
	}
	if e.Err != nil {
		fmt.Fprintf(&sb, ": %v", e.Err)
	}
	if e.Emergency != nil {
		fmt.Fprintf(&sb, "\n🚨 应急信息: %s", e.Emergency.Message)
	}
	return sb.String()
}

func (e *ResolveError) Unwrap() error {
	return e.Err
}

// KindOf 取出错误的分类，非 ResolveError 返回 false
func KindOf(err error) (ErrorKind, bool) {
	var re *ResolveError
	if errors.As(err, &re) {
		return re.Kind, true
	}
	return 0, false
}

// newInvalidInputError 构造输入校验错误
func newInvalidInputError(domain string, reason string) *ResolveError {
	return &ResolveError{
		Kind:   KindInvalidInput,
		Domain: domain,
		Err:    errors.New(reason),
	}
}

// kindFromError 从底层错误推导分类
func kindFromError(err error) ErrorKind {
	var te *upstream.TransportError
	if errors.As(err, &te) {
		switch te.Cause {
		case upstream.CauseTimeout:
			return KindUpstreamTimeout
		case upstream.CauseConnection:
			return KindUpstreamConnection
		case upstream.CauseTLS:
			return KindUpstreamTLS
		default:
			return KindUpstreamProtocol
		}
	}
	return KindUpstreamProtocol
}
