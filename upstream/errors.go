package upstream

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrCause 传输层错误的归一化分类
type ErrCause int

const (
	// CauseTimeout 超时（包括 ctx deadline 到期）
	CauseTimeout ErrCause = iota
	// CauseConnection 连接层失败（拒绝、重置、不可达等）
	CauseConnection
	// CauseProtocol 协议层异常（解包失败、ID 不匹配、HTTP 状态码异常等）
	CauseProtocol
	// CauseTLS TLS 握手或证书问题
	CauseTLS
)

func (c ErrCause) String() string {
	switch c {
	case CauseTimeout:
		return "timeout"
	case CauseConnection:
		return "connection"
	case CauseProtocol:
		return "protocol"
	case CauseTLS:
		return "tls"
	default:
		return "unknown"
	}
}

// TransportError 归一化后的传输层错误，携带上游地址与原始错误
type TransportError struct {
	Cause ErrCause
	Addr  string
	Err   error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("上游 %s 传输失败 (%s): %v", e.Addr, e.Cause, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Timeout 实现 net.Error 风格的超时判断
func (e *TransportError) Timeout() bool {
	return e.Cause == CauseTimeout
}

var tlsKeywords = []string{
	"tls",
	"x509",
	"certificate",
	"handshake",
}

var connectionKeywords = []string{
	"connection refused",
	"connection reset",
	"no such host",
	"network unreachable",
	"host unreachable",
	"broken pipe",
	"dial",
}

// ClassifyError 将底层错误归一化为 *TransportError
// 已经归一化过的错误原样返回
func ClassifyError(addr string, err error) *TransportError {
	if err == nil {
		return nil
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te
	}

	return &TransportError{
		Cause: classifyCause(err),
		Addr:  addr,
		Err:   err,
	}
}

func classifyCause(err error) ErrCause {
	if errors.Is(err, context.DeadlineExceeded) {
		return CauseTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CauseTimeout
	}

	errStr := strings.ToLower(err.Error())

	for _, kw := range tlsKeywords {
		if strings.Contains(errStr, kw) {
			return CauseTLS
		}
	}

	if strings.Contains(errStr, "timeout") {
		return CauseTimeout
	}

	for _, kw := range connectionKeywords {
		if strings.Contains(errStr, kw) {
			return CauseConnection
		}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return CauseConnection
	}

	// 其余视为协议层异常（解包失败、ID 不匹配等）
	return CauseProtocol
}

// IsNetworkError 判断是否是网络层错误（超时或连接失败）
// 应用层错误（如 SERVFAIL）不属于网络错误
func IsNetworkError(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Cause == CauseTimeout || te.Cause == CauseConnection
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}
