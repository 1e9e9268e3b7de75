package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dushixiang/sidecar/internal/handler"
	"github.com/dushixiang/sidecar/internal/server"
	"github.com/dushixiang/sidecar/pkg/sidecar/config"
	"github.com/dushixiang/sidecar/pkg/sidecar/logship"
	"github.com/dushixiang/sidecar/pkg/sidecar/relabel"
	"github.com/dushixiang/sidecar/pkg/sidecar/scrape"
	"github.com/dushixiang/sidecar/pkg/sidecar/tail"
	"github.com/sourcegraph/conc/pool"
)

// Mode 需要启动的转发器
type Mode struct {
	Logs    bool
	Metrics bool
}

var (
	ModeLogs    = Mode{Logs: true}
	ModeMetrics = Mode{Metrics: true}
	ModeAll     = Mode{Logs: true, Metrics: true}
)

func (m Mode) String() string {
	switch m {
	case ModeAll:
		return "all"
	case ModeLogs:
		return "logs"
	case ModeMetrics:
		return "metrics"
	default:
		return "none"
	}
}

// Sidecar 组合日志转发与指标转发
type Sidecar struct {
	cfg    *config.Config
	mode   Mode
	logger *slog.Logger

	checkpoints tail.CheckpointStore
	forwarder   *logship.Forwarder

	snapshot *scrape.Snapshot
	scraper  *scrape.Scraper
	server   *server.Server
}

// New 根据配置构建各组件，配置非法或检查点库无法打开时返回错误
func New(cfg *config.Config, mode Mode, logger *slog.Logger) (*Sidecar, error) {
	if !mode.Logs && !mode.Metrics {
		return nil, errors.New("至少需要启用一个转发器")
	}
	if err := cfg.Validate(mode.Logs, mode.Metrics); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Sidecar{
		cfg:         cfg,
		mode:        mode,
		logger:      logger,
		checkpoints: tail.NopCheckpoints{},
	}
	if mode.Logs {
		if err := s.buildLogs(); err != nil {
			return nil, err
		}
	}
	if mode.Metrics {
		s.buildMetrics()
	}
	return s, nil
}

func (s *Sidecar) buildLogs() error {
	logs := s.cfg.Logs
	logger := s.logger.With("component", "logs")

	if logs.CheckpointFile != "" {
		store, err := tail.OpenBoltCheckpoints(logs.CheckpointFile)
		if err != nil {
			return err
		}
		s.checkpoints = store
	} else if logs.StartPosition == config.StartResume {
		logger.Warn("未配置检查点文件，重启后将从头读取")
	}

	follower := tail.NewFollower(tail.Options{
		Path:          logs.File,
		StartPosition: tail.StartPosition(logs.StartPosition),
		WaitInterval:  logs.WaitInterval,
		MaxWait:       logs.MaxWait,
		PollInterval:  logs.PollInterval,
		MaxLineBytes:  logs.MaxLineBytes,
		Checkpoints:   s.checkpoints,
		Logger:        logger,
	})
	client := logship.NewClient(logship.ClientOptions{
		URL:      logs.AggregatorURL,
		Timeout:  logs.PushTimeout,
		Compress: logs.Compress,
		Retry:    logs.Retry,
		Logger:   logger,
	})
	s.forwarder = logship.NewForwarder(follower, client, s.cfg.Identity, logger)
	return nil
}

func (s *Sidecar) buildMetrics() {
	metrics := s.cfg.Metrics
	logger := s.logger.With("component", "metrics")

	fetcher := scrape.NewFetcher(scrape.FetcherOptions{
		URL:          metrics.UpstreamURL,
		Timeout:      metrics.ScrapeTimeout,
		MaxBodyBytes: metrics.MaxBodyBytes,
		Retry:        metrics.Retry,
		Logger:       logger,
	})
	s.snapshot = scrape.NewSnapshot()
	s.scraper = scrape.NewScraper(fetcher, relabel.New(s.cfg.Identity), s.snapshot, metrics.ScrapeInterval, logger)

	s.server = server.New(metrics.ListenAddr, server.SlogRequestLogger(logger))
	handler.NewMetricsHandler(s.snapshot).Register(s.server.Echo())
}

// Snapshot 指标快照，未启用指标转发时为 nil
func (s *Sidecar) Snapshot() *scrape.Snapshot {
	return s.snapshot
}

// LogStats 日志转发统计
func (s *Sidecar) LogStats() (logship.Stats, bool) {
	if s.forwarder == nil {
		return logship.Stats{}, false
	}
	return s.forwarder.Stats(), true
}

// Run 并发运行已启用的转发器，直到 ctx 取消或任一组件出错
func (s *Sidecar) Run(ctx context.Context) error {
	defer func() {
		if err := s.checkpoints.Close(); err != nil {
			s.logger.Warn("关闭检查点数据库失败", "error", err)
		}
	}()

	s.logger.Info("边车启动",
		"mode", s.mode.String(),
		"service_name", s.cfg.Identity.ServiceName,
		"environment", s.cfg.Identity.Environment,
	)

	p := pool.New().WithContext(ctx).WithCancelOnError()
	if s.mode.Logs {
		p.Go(s.forwarder.Run)
	}
	if s.mode.Metrics {
		p.Go(s.scraper.Run)
		p.Go(func(ctx context.Context) error {
			s.logger.Info("指标服务已启动", "addr", s.server.Addr())
			if err := s.server.Run(ctx); err != nil {
				return fmt.Errorf("指标服务运行失败: %w", err)
			}
			return nil
		})
	}

	err := p.Wait()
	s.logger.Info("边车已停止")
	return err
}
