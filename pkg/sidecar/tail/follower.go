package tail

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
)

// StartPosition 首次打开文件时的读取位置
type StartPosition string

const (
	StartBeginning StartPosition = "beginning"
	StartEnd       StartPosition = "end"
	StartResume    StartPosition = "resume"
)

const (
	defaultPollInterval = 100 * time.Millisecond
	defaultMaxLineBytes = 1 << 20
)

// Line 一行完整的日志
type Line struct {
	Text   []byte // 不含行尾的 \n 或 \r\n，handle 返回后不再有效
	Offset int64  // 行首偏移量
	Next   int64  // 下一行的偏移量
}

// Handler 处理一行日志，返回错误时 Follower 停止
type Handler func(ctx context.Context, line Line) error

// Options Follower 配置
type Options struct {
	Path          string
	StartPosition StartPosition
	WaitInterval  time.Duration
	MaxWait       time.Duration
	PollInterval  time.Duration
	MaxLineBytes  int
	Checkpoints   CheckpointStore
	Fs            afero.Fs
	Logger        *slog.Logger
	// DisableWatcher 只使用轮询
	DisableWatcher bool
}

// Follower 持续读取追加写入的日志文件
type Follower struct {
	opts   Options
	logger *slog.Logger
}

// NewFollower 创建 Follower
func NewFollower(opts Options) *Follower {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Checkpoints == nil {
		opts.Checkpoints = NopCheckpoints{}
	}
	if opts.StartPosition == "" {
		opts.StartPosition = StartResume
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.MaxLineBytes <= 0 {
		opts.MaxLineBytes = defaultMaxLineBytes
	}
	return &Follower{
		opts:   opts,
		logger: opts.Logger.With("path", opts.Path),
	}
}

// Run 等待文件出现后按起始策略定位，逐行交给 handle，直到 ctx 取消或 handle 返回错误
func (f *Follower) Run(ctx context.Context, handle Handler) error {
	if err := WaitForFile(ctx, f.opts.Fs, f.opts.Path, f.opts.WaitInterval, f.opts.MaxWait, f.logger); err != nil {
		return err
	}

	file, err := f.opts.Fs.Open(f.opts.Path)
	if err != nil {
		return fmt.Errorf("打开日志文件失败: %w", err)
	}
	defer file.Close()

	offset, err := f.startOffset(file)
	if err != nil {
		return err
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("移动文件位置失败: %w", err)
	}
	f.logger.Info("开始读取日志文件", "start", f.opts.StartPosition, "offset", offset)

	wake, stop := f.watch()
	defer stop()

	reader := bufio.NewReaderSize(file, 64*1024)
	var (
		pending  []byte // 尚未读到行尾的数据
		skipping bool   // 正在丢弃超长行
	)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		chunk, err := reader.ReadSlice('\n')
		if len(chunk) > 0 {
			complete := chunk[len(chunk)-1] == '\n'

			if skipping {
				offset += int64(len(chunk))
				if complete {
					skipping = false
					f.save(offset)
				}
			} else {
				pending = append(pending, chunk...)
				switch {
				case complete && len(bytes.TrimRight(pending, "\r\n")) > f.opts.MaxLineBytes:
					f.logger.Warn("单行超过长度限制，已丢弃", "offset", offset, "limit", f.opts.MaxLineBytes)
					offset += int64(len(pending))
					pending = pending[:0]
					f.save(offset)
				case complete:
					next := offset + int64(len(pending))
					line := Line{
						Text:   bytes.TrimRight(pending, "\r\n"),
						Offset: offset,
						Next:   next,
					}
					if err := handle(ctx, line); err != nil {
						return err
					}
					offset = next
					pending = pending[:0]
					f.save(offset)
				case len(pending) > f.opts.MaxLineBytes:
					f.logger.Warn("单行超过长度限制，已丢弃", "offset", offset, "limit", f.opts.MaxLineBytes)
					offset += int64(len(pending))
					pending = pending[:0]
					skipping = true
				}
			}
		}

		switch {
		case err == nil, errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
		default:
			return fmt.Errorf("读取日志文件失败: %w", err)
		}

		// 已读到文件末尾
		truncated, err := f.truncated(file, offset+int64(len(pending)))
		if err != nil {
			f.logger.Warn("获取文件信息失败", "error", err)
		}
		if truncated {
			f.logger.Warn("日志文件被截断，从头开始读取", "offset", offset)
			if _, err := file.Seek(0, io.SeekStart); err != nil {
				return fmt.Errorf("移动文件位置失败: %w", err)
			}
			reader.Reset(file)
			offset, pending, skipping = 0, pending[:0], false
			f.save(0)
			continue
		}

		if err := f.sleep(ctx, wake); err != nil {
			return err
		}
	}
}

func (f *Follower) startOffset(file afero.File) (int64, error) {
	info, err := file.Stat()
	if err != nil {
		return 0, fmt.Errorf("获取文件信息失败: %w", err)
	}
	size := info.Size()

	switch f.opts.StartPosition {
	case StartBeginning:
		return 0, nil
	case StartEnd:
		return size, nil
	case StartResume:
		offset, ok, err := f.opts.Checkpoints.Load(f.opts.Path)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, nil
		}
		if offset > size {
			f.logger.Warn("检查点超出文件大小，从头开始读取", "checkpoint", offset, "size", size)
			return 0, nil
		}
		return offset, nil
	default:
		return 0, fmt.Errorf("未知的起始位置: %s", f.opts.StartPosition)
	}
}

func (f *Follower) truncated(file afero.File, readPos int64) (bool, error) {
	info, err := file.Stat()
	if err != nil {
		return false, err
	}
	return info.Size() < readPos, nil
}

func (f *Follower) save(offset int64) {
	if err := f.opts.Checkpoints.Save(f.opts.Path, offset); err != nil {
		f.logger.Warn("保存检查点失败", "offset", offset, "error", err)
	}
}

// sleep 等待轮询间隔或写入事件
func (f *Follower) sleep(ctx context.Context, wake <-chan struct{}) error {
	timer := time.NewTimer(f.opts.PollInterval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-wake:
	case <-timer.C:
	}
	return nil
}

// watch 监听文件写入事件，无法创建监控器时退化为纯轮询
func (f *Follower) watch() (<-chan struct{}, func()) {
	if f.opts.DisableWatcher {
		return nil, func() {}
	}
	if _, ok := f.opts.Fs.(*afero.OsFs); !ok {
		return nil, func() {}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		f.logger.Warn("创建文件监控器失败，使用轮询", "error", err)
		return nil, func() {}
	}
	if err := watcher.Add(f.opts.Path); err != nil {
		f.logger.Warn("添加文件监控失败，使用轮询", "error", err)
		_ = watcher.Close()
		return nil, func() {}
	}

	wake := make(chan struct{}, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Write) {
					select {
					case wake <- struct{}{}:
					default:
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				f.logger.Warn("文件监控错误", "error", err)
			}
		}
	}()

	return wake, func() {
		_ = watcher.Close()
		<-done
	}
}
