package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/dushixiang/sidecar/pkg/sidecar"
	"github.com/dushixiang/sidecar/pkg/sidecar/config"
	"github.com/dushixiang/sidecar/pkg/sidecar/service"
	"github.com/go-errors/errors"
	"github.com/spf13/cobra"
)

var configPath string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "错误:", err)
		var stackErr *errors.Error
		if errors.As(err, &stackErr) {
			slog.Debug("错误堆栈", "stack", stackErr.ErrorStack())
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "sidecar",
		Short:         "日志与指标转发边车",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "配置文件路径（可选）")

	root.AddCommand(
		newForwardCmd("logs", "跟踪日志文件并推送到聚合器", service.ModeLogs),
		newForwardCmd("metrics", "抓取应用指标并注入身份标签后重新暴露", service.ModeMetrics),
		newRunCmd(),
		newServiceCmd(),
		newVersionCmd(),
	)
	return root
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, errors.WrapPrefix(err, "加载配置失败", 0)
	}
	return cfg, nil
}

func newForwardCmd(use, short string, mode service.Mode) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := service.RunForeground(cfg, mode); err != nil {
				return errors.WrapPrefix(err, use+" 运行失败", 0)
			}
			return nil
		},
	}
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "同时运行日志转发与指标转发（支持作为系统服务运行）",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := newManager()
			if err != nil {
				return err
			}
			if err := mgr.Run(); err != nil {
				return errors.WrapPrefix(err, "运行失败", 0)
			}
			return nil
		},
	}
}

func newManager() (*service.ServiceManager, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	mgr, err := service.NewServiceManager(cfg)
	if err != nil {
		return nil, errors.Wrap(err, 0)
	}
	return mgr, nil
}

func newServiceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "管理系统服务",
	}

	action := func(use, short, done string, fn func(*service.ServiceManager) error) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			RunE: func(cmd *cobra.Command, args []string) error {
				mgr, err := newManager()
				if err != nil {
					return err
				}
				if err := fn(mgr); err != nil {
					return errors.WrapPrefix(err, short+"失败", 0)
				}
				cmd.Println(done)
				return nil
			},
		}
	}

	cmd.AddCommand(
		action("install", "安装服务", "服务已安装", (*service.ServiceManager).Install),
		action("uninstall", "卸载服务", "服务已卸载", (*service.ServiceManager).Uninstall),
		action("start", "启动服务", "服务已启动", (*service.ServiceManager).Start),
		action("stop", "停止服务", "服务已停止", (*service.ServiceManager).Stop),
		action("restart", "重启服务", "服务已重启", (*service.ServiceManager).Restart),
		&cobra.Command{
			Use:   "status",
			Short: "查看服务状态",
			RunE: func(cmd *cobra.Command, args []string) error {
				mgr, err := newManager()
				if err != nil {
					return err
				}
				status, err := mgr.Status()
				if err != nil {
					return errors.WrapPrefix(err, "获取服务状态失败", 0)
				}
				cmd.Println("服务状态:", status)
				return nil
			},
		},
	)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "显示版本",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println(sidecar.Version)
		},
	}
}
