package provider

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind AI调用错误分类
type ErrorKind string

const (
	ErrRateLimited     ErrorKind = "rate_limited"     // 触发限流，可换密钥重试
	ErrAuth            ErrorKind = "auth_error"       // 认证失败，密钥应立即停用
	ErrTimeout         ErrorKind = "timeout"          // 调用超时，可重试一次
	ErrProvider        ErrorKind = "provider_error"   // 提供商服务异常，可退避重试
	ErrInvalidResponse ErrorKind = "invalid_response" // 响应内容不可用，不重试
	ErrCanceled        ErrorKind = "cancelled"        // 调用方取消（任务取消或服务停止），不算密钥的错
)

// Error 带分类的AI调用错误
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Retryable 判断该类错误是否值得换密钥重试
func (e *Error) Retryable() bool {
	switch e.Kind {
	case ErrRateLimited, ErrTimeout, ErrProvider:
		return true
	}
	return false
}

// NewError 创建分类错误
func NewError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// FromStatusCode 根据HTTP状态码分类错误
func FromStatusCode(code int, body string) *Error {
	switch {
	case code == 429:
		return NewError(ErrRateLimited, "状态码 429: %s", body)
	case code == 401 || code == 403:
		return NewError(ErrAuth, "状态码 %d: %s", code, body)
	case code >= 500:
		return NewError(ErrProvider, "状态码 %d: %s", code, body)
	default:
		return NewError(ErrProvider, "状态码 %d: %s", code, body)
	}
}

// AsError 把任意错误规整为分类错误；上下文超时归类为 timeout，
// 上下文取消归类为 cancelled（与提供商故障区分开，不应牵连密钥）
func AsError(err error) *Error {
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(ErrTimeout, "调用超时: %v", err)
	}
	if errors.Is(err, context.Canceled) {
		return NewError(ErrCanceled, "调用被取消: %v", err)
	}
	return NewError(ErrProvider, "%v", err)
}
