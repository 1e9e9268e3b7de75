package scrape

import (
	"context"
	"log/slog"
	"time"

	"github.com/dushixiang/sidecar/internal/scheduler"
	"github.com/dushixiang/sidecar/pkg/sidecar/relabel"
)

const taskID = "scrape"

// Source 指标来源
type Source interface {
	Fetch(ctx context.Context) (string, error)
}

// Scraper 定时抓取、重写指标并更新快照
type Scraper struct {
	source    Source
	relabeler *relabel.Relabeler
	snapshot  *Snapshot
	interval  time.Duration
	scheduler *scheduler.Scheduler
	logger    *slog.Logger
}

// NewScraper 创建 Scraper
func NewScraper(source Source, relabeler *relabel.Relabeler, snapshot *Snapshot, interval time.Duration, logger *slog.Logger) *Scraper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scraper{
		source:    source,
		relabeler: relabeler,
		snapshot:  snapshot,
		interval:  interval,
		scheduler: scheduler.New(logger),
		logger:    logger,
	}
}

// RunOnce 抓取一次，失败时保留上一次的快照
func (s *Scraper) RunOnce(ctx context.Context) {
	start := time.Now()
	raw, err := s.source.Fetch(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Warn("抓取指标失败，保留上次快照", "error", err, "snapshot_updated_at", s.snapshot.UpdatedAt())
		return
	}

	text := s.relabeler.Text(raw)
	s.snapshot.Store(text)
	s.logger.Debug("指标快照已更新", "bytes", len(text), "duration", time.Since(start))
}

// Start 立即抓取一次，之后按间隔定时抓取
func (s *Scraper) Start(ctx context.Context) error {
	s.RunOnce(ctx)

	if err := s.scheduler.AddTask(taskID, s.interval, s.RunOnce); err != nil {
		return err
	}
	s.scheduler.Start(ctx)
	s.logger.Info("指标抓取已启动", "interval", s.interval)
	return nil
}

// Stop 停止定时抓取，等待正在进行的抓取结束
func (s *Scraper) Stop() {
	s.scheduler.Stop()
	s.logger.Info("指标抓取已停止")
}

// NextRun 下一次抓取时间
func (s *Scraper) NextRun() (time.Time, bool) {
	return s.scheduler.NextRun(taskID)
}

// Run 启动定时抓取并阻塞到 ctx 取消
func (s *Scraper) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	s.Stop()
	return nil
}
