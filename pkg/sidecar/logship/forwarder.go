package logship

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/dushixiang/sidecar/internal/protocol"
	"github.com/dushixiang/sidecar/pkg/sidecar/tail"
)

// Pusher 推送单条日志
type Pusher interface {
	Push(ctx context.Context, record []byte) error
}

// PusherFunc 函数形式的 Pusher
type PusherFunc func(ctx context.Context, record []byte) error

func (f PusherFunc) Push(ctx context.Context, record []byte) error {
	return f(ctx, record)
}

// Stats 转发统计
type Stats struct {
	Read      int64 `json:"read"`
	Forwarded int64 `json:"forwarded"`
	Malformed int64 `json:"malformed"`
	Failed    int64 `json:"failed"`
}

// Forwarder 读取日志文件、注入身份信息并推送到聚合器
type Forwarder struct {
	follower *tail.Follower
	pusher   Pusher
	identity protocol.Identity
	logger   *slog.Logger

	read      atomic.Int64
	forwarded atomic.Int64
	malformed atomic.Int64
	failed    atomic.Int64
}

// NewForwarder 创建日志转发器
func NewForwarder(follower *tail.Follower, pusher Pusher, identity protocol.Identity, logger *slog.Logger) *Forwarder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Forwarder{
		follower: follower,
		pusher:   pusher,
		identity: identity,
		logger:   logger,
	}
}

// Run 持续转发直到 ctx 取消，格式错误或推送失败的行记录日志后跳过
func (f *Forwarder) Run(ctx context.Context) error {
	f.logger.Info("日志转发已启动", "service_name", f.identity.ServiceName, "environment", f.identity.Environment)
	err := f.follower.Run(ctx, f.handle)

	stats := f.Stats()
	f.logger.Info("日志转发已停止",
		"read", stats.Read,
		"forwarded", stats.Forwarded,
		"malformed", stats.Malformed,
		"failed", stats.Failed,
	)

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (f *Forwarder) handle(ctx context.Context, line tail.Line) error {
	if len(line.Text) == 0 {
		return nil
	}
	f.read.Add(1)

	record, err := Enrich(line.Text, f.identity)
	if err != nil {
		f.malformed.Add(1)
		f.logger.Warn("日志格式错误，已跳过", "offset", line.Offset, "error", err)
		return nil
	}

	if err := f.pusher.Push(ctx, record); err != nil {
		// ctx 取消时不推进偏移量，下次启动可继续
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		f.failed.Add(1)
		f.logger.Error("推送日志失败，已丢弃", "offset", line.Offset, "error", err)
		return nil
	}

	f.forwarded.Add(1)
	f.logger.Debug("日志已转发", "offset", line.Offset)
	return nil
}

// Stats 返回转发统计
func (f *Forwarder) Stats() Stats {
	return Stats{
		Read:      f.read.Load(),
		Forwarded: f.forwarded.Load(),
		Malformed: f.malformed.Load(),
		Failed:    f.failed.Load(),
	}
}
