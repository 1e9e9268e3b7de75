package tail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/afero"
)

// ErrWaitTimeout 等待文件超时
var ErrWaitTimeout = errors.New("wait for file timed out")

// WaitForFile 按 interval 轮询直到文件存在，maxWait 为 0 时一直等待
func WaitForFile(ctx context.Context, fs afero.Fs, path string, interval, maxWait time.Duration, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = time.Second
	}

	var deadline <-chan time.Time
	if maxWait > 0 {
		timer := time.NewTimer(maxWait)
		defer timer.Stop()
		deadline = timer.C
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logged := false
	for {
		exists, err := afero.Exists(fs, path)
		if err != nil {
			return fmt.Errorf("检查文件失败: %w", err)
		}
		if exists {
			if logged {
				logger.Info("日志文件已就绪", "path", path)
			}
			return nil
		}
		if !logged {
			logger.Info("等待日志文件创建", "path", path, "interval", interval)
			logged = true
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return fmt.Errorf("%w: %s", ErrWaitTimeout, path)
		case <-ticker.C:
		}
	}
}
