package provider

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromStatusCode(t *testing.T) {
	tests := []struct {
		code int
		want ErrorKind
	}{
		{429, ErrRateLimited},
		{401, ErrAuth},
		{403, ErrAuth},
		{500, ErrProvider},
		{503, ErrProvider},
		{400, ErrProvider},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("状态码%d", tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, FromStatusCode(tt.code, "body").Kind)
		})
	}
}

func TestRetryable(t *testing.T) {
	assert.True(t, NewError(ErrRateLimited, "限流").Retryable())
	assert.True(t, NewError(ErrTimeout, "超时").Retryable())
	assert.True(t, NewError(ErrProvider, "服务异常").Retryable())

	assert.False(t, NewError(ErrAuth, "认证失败").Retryable())
	assert.False(t, NewError(ErrInvalidResponse, "响应为空").Retryable())
	assert.False(t, NewError(ErrCanceled, "调用被取消").Retryable())
}

func TestAsError(t *testing.T) {
	// 已分类的错误原样返回
	classified := NewError(ErrRateLimited, "限流")
	assert.Equal(t, classified, AsError(classified))

	// 包装过的分类错误能解开
	wrapped := fmt.Errorf("调用失败: %w", NewError(ErrAuth, "密钥无效"))
	assert.Equal(t, ErrAuth, AsError(wrapped).Kind)

	// 上下文超时归类为timeout
	assert.Equal(t, ErrTimeout, AsError(context.DeadlineExceeded).Kind)
	assert.Equal(t, ErrTimeout, AsError(fmt.Errorf("请求失败: %w", context.DeadlineExceeded)).Kind)

	// 上下文取消归类为cancelled，与提供商故障区分开
	assert.Equal(t, ErrCanceled, AsError(context.Canceled).Kind)
	assert.Equal(t, ErrCanceled, AsError(fmt.Errorf("请求失败: %w", context.Canceled)).Kind)

	// 其他错误兜底为提供商错误
	assert.Equal(t, ErrProvider, AsError(errors.New("连接被重置")).Kind)
}

func TestErrorMessage(t *testing.T) {
	err := NewError(ErrRateLimited, "状态码 %d", 429)
	assert.Equal(t, "rate_limited: 状态码 429", err.Error())
}
