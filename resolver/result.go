package resolver

import "fmt"

// Result 批量解析中单个域名的结果
// 成功持有 IP 列表，失败持有错误，二者互斥
type Result struct {
	domain string
	ips    []string
	err    error
}

// Ok 构造成功结果
func Ok(domain string, ips []string) Result {
	return Result{domain: domain, ips: ips}
}

// Err 构造失败结果
func Err(domain string, err error) Result {
	return Result{domain: domain, err: err}
}

// Domain 对应的查询域名
func (r Result) Domain() string {
	return r.domain
}

// IsOk 是否成功
func (r Result) IsOk() bool {
	return r.err == nil
}

// IsErr 是否失败
func (r Result) IsErr() bool {
	return r.err != nil
}

// Unwrap 取出成功的 IP 列表，在失败结果上调用会 panic
func (r Result) Unwrap() []string {
	if r.err != nil {
		panic(fmt.Sprintf("在失败结果上调用 Unwrap (%s): %v", r.domain, r.err))
	}
	return r.ips
}

// UnwrapErr 取出失败的错误，在成功结果上调用会 panic
func (r Result) UnwrapErr() error {
	if r.err == nil {
		panic(fmt.Sprintf("在成功结果上调用 UnwrapErr (%s)", r.domain))
	}
	return r.err
}

// UnwrapOr 成功时返回 IP 列表，失败时返回给定的默认值
func (r Result) UnwrapOr(def []string) []string {
	if r.err != nil {
		return def
	}
	return r.ips
}
