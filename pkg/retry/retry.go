// Package retry 为外部服务调用提供单次超时和有限次数的退避重试。
package retry

import (
	"context"
	"errors"
	"net"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy 描述一次外部调用的超时与重试策略。
type Policy struct {
	// Timeout 是每一次尝试的超时时间，0 表示不额外设置超时。
	Timeout time.Duration
	// MaxRetries 是失败后的最大重试次数（不含第一次调用）。
	MaxRetries int
	// InitialInterval 是第一次重试前的等待时间。
	InitialInterval time.Duration
}

// NewPolicy 由配置中的秒/毫秒数构造 Policy。
func NewPolicy(timeoutSeconds, maxRetries, initialIntervalMS int) Policy {
	return Policy{
		Timeout:         time.Duration(timeoutSeconds) * time.Second,
		MaxRetries:      maxRetries,
		InitialInterval: time.Duration(initialIntervalMS) * time.Millisecond,
	}
}

// StatusError 表示远端返回了非成功的 HTTP 状态码。
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return "unexpected status " + strconv.Itoa(e.StatusCode)
	}
	return "unexpected status " + strconv.Itoa(e.StatusCode) + ": " + e.Body
}

// IsTransient 判断错误是否值得重试：网络错误、单次超时、429 和 5xx。
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode == 429 || se.StatusCode >= 500
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// Do 在 Policy 约束下执行 op。classify 为 nil 时使用 IsTransient。
// 父 ctx 被取消时立即返回；非瞬时错误不会重试。
func Do(ctx context.Context, p Policy, classify func(error) bool, op func(ctx context.Context) error) error {
	if classify == nil {
		classify = IsTransient
	}

	eb := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		eb.InitialInterval = p.InitialInterval
	}
	eb.MaxElapsedTime = 0
	maxRetries := p.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(maxRetries)), ctx)

	return backoff.Retry(func() error {
		attemptCtx := ctx
		if p.Timeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, p.Timeout)
			defer cancel()
		}
		err := op(attemptCtx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || !classify(err) {
			return backoff.Permanent(err)
		}
		return err
	}, b)
}
