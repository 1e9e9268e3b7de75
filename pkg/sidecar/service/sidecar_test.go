package service

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dushixiang/sidecar/pkg/sidecar/config"
	"github.com/kardianos/service"
)

func testConfig(t *testing.T, upstream, aggregator string) *config.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Identity.ServiceName = "api"
	cfg.Identity.Environment = "prod"
	cfg.Logs.File = filepath.Join(dir, "app.log")
	cfg.Logs.AggregatorURL = aggregator
	cfg.Logs.StartPosition = config.StartBeginning
	cfg.Logs.CheckpointFile = filepath.Join(dir, "offsets.db")
	cfg.Logs.WaitInterval = 10 * time.Millisecond
	cfg.Logs.PollInterval = 10 * time.Millisecond
	cfg.Logs.Retry.Min = time.Millisecond
	cfg.Logs.Retry.Max = 5 * time.Millisecond
	cfg.Metrics.UpstreamURL = upstream
	cfg.Metrics.ListenAddr = "127.0.0.1:0"
	cfg.Metrics.Retry.Min = time.Millisecond
	cfg.Metrics.Retry.Max = 5 * time.Millisecond
	return cfg
}

func TestSidecarRun(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("# TYPE up gauge\nup 1\n"))
	}))
	defer upstream.Close()

	var (
		mu       sync.Mutex
		received []string
	)
	aggregator := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		received = append(received, string(body))
		mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
	}))
	defer aggregator.Close()

	cfg := testConfig(t, upstream.URL, aggregator.URL+"/logs")
	line := `{"level":"info","message":"Root endpoint accessed on api","timestamp":"2024-01-01T00:00:00"}` + "\n"
	if err := os.WriteFile(cfg.Logs.File, []byte(line), 0o644); err != nil {
		t.Fatal(err)
	}

	sc, err := New(cfg, ModeAll, nil)
	if err != nil {
		t.Fatalf("New() = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sc.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for {
		mu.Lock()
		n := len(received)
		mu.Unlock()
		if n > 0 && sc.Snapshot().Load() != "" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("等待转发超时: received=%d snapshot=%q", n, sc.Snapshot().Load())
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() = %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("Run() 未在 ctx 取消后返回")
	}

	if got := sc.Snapshot().Load(); got != `up{service_name="api",environment="prod"} 1` {
		t.Errorf("snapshot = %q", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if !strings.Contains(received[0], `"service_name":"api"`) || !strings.Contains(received[0], `"environment":"prod"`) {
		t.Errorf("日志未注入身份信息: %s", received[0])
	}
	if stats, ok := sc.LogStats(); !ok || stats.Forwarded != 1 {
		t.Errorf("LogStats() = %+v, %v", stats, ok)
	}
}

func TestNewRejects(t *testing.T) {
	t.Run("no mode", func(t *testing.T) {
		if _, err := New(config.Default(), Mode{}, nil); err == nil {
			t.Error("未启用任何转发器时应返回错误")
		}
	})
	t.Run("invalid config", func(t *testing.T) {
		cfg := config.Default()
		cfg.Metrics.UpstreamURL = "::bad"
		if _, err := New(cfg, ModeMetrics, nil); err == nil {
			t.Error("配置非法时应返回错误")
		}
	})
	t.Run("logs only ignores metrics config", func(t *testing.T) {
		cfg := config.Default()
		cfg.Metrics.UpstreamURL = ""
		cfg.Logs.CheckpointFile = ""
		sc, err := New(cfg, ModeLogs, nil)
		if err != nil {
			t.Fatalf("New() = %v", err)
		}
		if sc.Snapshot() != nil {
			t.Error("未启用指标转发时不应创建快照")
		}
	})
}

func TestModeString(t *testing.T) {
	tests := map[Mode]string{ModeAll: "all", ModeLogs: "logs", ModeMetrics: "metrics", {}: "none"}
	for mode, want := range tests {
		if got := mode.String(); got != want {
			t.Errorf("%+v.String() = %q, want %q", mode, got, want)
		}
	}
}

func TestServiceArguments(t *testing.T) {
	if got := serviceArguments(""); len(got) != 1 || got[0] != "run" {
		t.Errorf("serviceArguments(\"\") = %v", got)
	}
	got := serviceArguments("/etc/sidecar.yaml")
	if strings.Join(got, " ") != "run --config /etc/sidecar.yaml" {
		t.Errorf("serviceArguments() = %v", got)
	}
}

func TestStatusText(t *testing.T) {
	if statusText(service.StatusRunning) != "运行中 (Running)" {
		t.Error(statusText(service.StatusRunning))
	}
	if statusText(service.StatusStopped) != "已停止 (Stopped)" {
		t.Error(statusText(service.StatusStopped))
	}
}
