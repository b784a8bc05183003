package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrRateLimit 供应商限流（429），瞬时错误可重试
type ErrRateLimit struct {
	RetryAfter time.Duration
	Err        error
}

func (e *ErrRateLimit) Error() string {
	return fmt.Sprintf("rate limited (retry after %s): %v", e.RetryAfter, e.Err)
}

func (e *ErrRateLimit) Unwrap() error { return e.Err }

// ErrProviderUnavailable 供应商不可达或5xx，瞬时错误可重试
type ErrProviderUnavailable struct {
	Err error
}

func (e *ErrProviderUnavailable) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("AI provider unavailable: %v", e.Err)
	}
	return "AI provider unavailable"
}

func (e *ErrProviderUnavailable) Unwrap() error { return e.Err }

// ErrAuthFailed 鉴权失败（401/403），永久错误不重试
type ErrAuthFailed struct {
	Err error
}

func (e *ErrAuthFailed) Error() string {
	return fmt.Sprintf("AI provider authentication failed: %v", e.Err)
}

func (e *ErrAuthFailed) Unwrap() error { return e.Err }

// ErrQuotaExceeded 额度耗尽，永久错误不重试
type ErrQuotaExceeded struct {
	Err error
}

func (e *ErrQuotaExceeded) Error() string {
	return fmt.Sprintf("AI provider quota exceeded: %v", e.Err)
}

func (e *ErrQuotaExceeded) Unwrap() error { return e.Err }

// ErrInvalidResponse 模型返回的内容不符合请求的schema
type ErrInvalidResponse struct {
	Content json.RawMessage
	Err     error
}

func (e *ErrInvalidResponse) Error() string {
	return fmt.Sprintf("invalid AI response: %v", e.Err)
}

func (e *ErrInvalidResponse) Unwrap() error { return e.Err }

// ErrMaxTokensExceeded 响应因达到MaxTokens被截断
type ErrMaxTokensExceeded struct {
	Content json.RawMessage
}

func (e *ErrMaxTokensExceeded) Error() string {
	return "AI response truncated: max tokens exceeded"
}

// IsRetryable 判定错误是否值得重试；上层编排只依赖这一个口径
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var auth *ErrAuthFailed
	if errors.As(err, &auth) {
		return false
	}
	var quota *ErrQuotaExceeded
	if errors.As(err, &quota) {
		return false
	}
	var maxTok *ErrMaxTokensExceeded
	if errors.As(err, &maxTok) {
		return false
	}

	// 限流、不可达、schema不符以及其它网络类错误均视为瞬时
	return true
}
