package llm

import (
	"context"
	"time"
)

// TimeoutProvider 装饰器：给单次Generate套上限时，外层取消同样生效
type TimeoutProvider struct {
	inner   Provider
	timeout time.Duration
}

// WithTimeout 给Provider包一层调用限时
func WithTimeout(p Provider, timeout time.Duration) Provider {
	return &TimeoutProvider{inner: p, timeout: timeout}
}

func (t *TimeoutProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}
	return t.inner.Generate(ctx, req)
}

func (t *TimeoutProvider) ModelID() string {
	return t.inner.ModelID()
}
