package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jpillora/backoff"
)

// ErrPermanent 标记不应重试的错误
var ErrPermanent = errors.New("permanent failure")

// Permanent 包装 err，使 Do 立即返回而不再重试
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// IsPermanent 判断是否为不可重试的错误
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanent)
}

// Policy 指数退避重试策略
type Policy struct {
	MaxRetries int           `yaml:"max_retries" validate:"gte=0"` // 首次失败后的最大重试次数
	Min        time.Duration `yaml:"min" validate:"gt=0"`
	Max        time.Duration `yaml:"max" validate:"gtefield=Min"`
	Factor     float64       `yaml:"factor" validate:"gte=1"`
	Jitter     bool          `yaml:"jitter"`
}

// Operation 单次尝试，attempt 从 0 开始
type Operation func(ctx context.Context, attempt int) error

// Notify 每次重试等待前调用
type Notify func(err error, wait time.Duration)

// Do 执行 op，失败时按策略退避重试，直到成功、遇到不可重试错误、
// 重试次数用尽或 ctx 取消
func (p Policy) Do(ctx context.Context, op Operation, notify Notify) error {
	b := &backoff.Backoff{
		Min:    p.Min,
		Max:    p.Max,
		Factor: p.Factor,
		Jitter: p.Jitter,
	}

	for attempt := 0; ; attempt++ {
		err := op(ctx, attempt)
		if err == nil {
			return nil
		}
		if IsPermanent(err) || attempt >= p.MaxRetries {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		wait := b.Duration()
		if notify != nil {
			notify(err, wait)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
