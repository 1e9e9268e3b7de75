package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dushixiang/sidecar/pkg/sidecar"
	"github.com/dushixiang/sidecar/pkg/sidecar/config"
	"github.com/kardianos/service"
)

const stopTimeout = 15 * time.Second

// program 实现 service.Interface
type program struct {
	cfg    *config.Config
	cancel context.CancelFunc
	done   chan struct{}
}

// Start 启动服务
func (p *program) Start(s service.Service) error {
	logger := sidecar.InitLogger(&p.cfg.Log)
	logger.Info("边车服务启动中...", "version", sidecar.Version)

	sc, err := New(p.cfg, ModeAll, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})

	go func() {
		defer close(p.done)
		if err := sc.Run(ctx); err != nil {
			logger.Error("边车运行出错", "error", err)
		}
	}()
	return nil
}

// Stop 停止服务
func (p *program) Stop(s service.Service) error {
	slog.Info("边车服务停止中...")
	if p.cancel != nil {
		p.cancel()
	}
	if p.done != nil {
		select {
		case <-p.done:
		case <-time.After(stopTimeout):
			slog.Warn("等待边车停止超时")
		}
	}
	slog.Info("边车服务已停止")
	return nil
}

// ServiceManager 系统服务管理器
type ServiceManager struct {
	cfg     *config.Config
	service service.Service
}

// NewServiceManager 创建服务管理器
func NewServiceManager(cfg *config.Config) (*ServiceManager, error) {
	execPath, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("获取可执行文件路径失败: %w", err)
	}

	svcConfig := &service.Config{
		Name:        "telemetry-sidecar",
		DisplayName: "Telemetry Sidecar",
		Description: "转发应用日志与指标，并注入服务身份信息",
		Arguments:   serviceArguments(cfg.Path),
		Executable:  execPath,
		Option: service.KeyValue{
			// Linux systemd
			"Restart":            "always",
			"RestartSec":         "10",
			"StartLimitInterval": "0",
			"KillMode":           "process",

			// Windows
			"OnFailure":    "restart",
			"ResetPeriod":  86400,
			"RestartDelay": 10000,

			// upstart/launchd
			"KeepAlive": true,
			"RunAtLoad": true,
		},
	}

	s, err := service.New(&program{cfg: cfg}, svcConfig)
	if err != nil {
		return nil, fmt.Errorf("创建服务失败: %w", err)
	}

	return &ServiceManager{
		cfg:     cfg,
		service: s,
	}, nil
}

func serviceArguments(cfgPath string) []string {
	if cfgPath == "" {
		return []string{"run"}
	}
	return []string{"run", "--config", cfgPath}
}

// Install 安装服务
func (m *ServiceManager) Install() error {
	return m.service.Install()
}

// Uninstall 卸载服务
func (m *ServiceManager) Uninstall() error {
	_ = m.service.Stop()
	return m.service.Uninstall()
}

// Start 启动服务
func (m *ServiceManager) Start() error {
	return m.service.Start()
}

// Stop 停止服务
func (m *ServiceManager) Stop() error {
	return m.service.Stop()
}

// Restart 重启服务
func (m *ServiceManager) Restart() error {
	return m.service.Restart()
}

// Status 查看服务状态
func (m *ServiceManager) Status() (string, error) {
	status, err := m.service.Status()
	if err != nil {
		return "", err
	}
	return statusText(status), nil
}

func statusText(status service.Status) string {
	switch status {
	case service.StatusRunning:
		return "运行中 (Running)"
	case service.StatusStopped:
		return "已停止 (Stopped)"
	case service.StatusUnknown:
		return "未知 (Unknown)"
	default:
		return fmt.Sprintf("状态: %d", status)
	}
}

// Run 在服务管理器控制下运行，交互模式下前台运行直到收到中断信号
func (m *ServiceManager) Run() error {
	if !service.Interactive() {
		return m.service.Run()
	}
	return RunForeground(m.cfg, ModeAll)
}

// RunForeground 前台运行指定的转发器，收到 SIGINT/SIGTERM 后退出
func RunForeground(cfg *config.Config, mode Mode) error {
	logger := sidecar.InitLogger(&cfg.Log)

	sc, err := New(cfg, mode, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return sc.Run(ctx)
}
