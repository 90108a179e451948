package resolver

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestResultOk 成功结果的各种取值方式
func TestResultOk(t *testing.T) {
	r := Ok("example.com", []string{"1.2.3.4"})

	assert.Equal(t, "example.com", r.Domain())
	assert.True(t, r.IsOk())
	assert.False(t, r.IsErr())
	assert.Equal(t, []string{"1.2.3.4"}, r.Unwrap())
	assert.Equal(t, []string{"1.2.3.4"}, r.UnwrapOr([]string{"fallback"}))

	assert.Panics(t, func() { r.UnwrapErr() }, "成功结果上调用 UnwrapErr 应当 panic")
}

// TestResultErr 失败结果的各种取值方式
func TestResultErr(t *testing.T) {
	cause := errors.New("查询超时")
	r := Err("example.com", cause)

	assert.True(t, r.IsErr())
	assert.False(t, r.IsOk())
	assert.Equal(t, cause, r.UnwrapErr())
	assert.Equal(t, []string{"fallback"}, r.UnwrapOr([]string{"fallback"}))

	assert.Panics(t, func() { r.Unwrap() }, "失败结果上调用 Unwrap 应当 panic")
}

// TestResultOkEmpty 空 IP 列表也是合法的成功结果
func TestResultOkEmpty(t *testing.T) {
	r := Ok("empty.example.com", nil)

	assert.True(t, r.IsOk())
	assert.Empty(t, r.Unwrap())
	assert.Empty(t, r.UnwrapOr([]string{"fallback"}))
}
