package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(true, true); err != nil {
		t.Fatalf("默认配置应通过校验: %v", err)
	}
	if cfg.Logs.StartPosition != StartResume {
		t.Errorf("默认起始位置 = %q", cfg.Logs.StartPosition)
	}
	if cfg.Metrics.ScrapeInterval != 15*time.Second {
		t.Errorf("默认抓取间隔 = %v", cfg.Metrics.ScrapeInterval)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sidecar.yaml")
	content := `
identity:
  service_name: api
  environment: staging
logs:
  file: /tmp/app.log
  start_position: end
  retry:
    max_retries: 5
    min: 100ms
    max: 2s
    factor: 1.5
metrics:
  scrape_interval: 30s
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := load(path, envMap(map[string]string{
		"ENVIRONMENT":        "prod",
		"LOG_AGGREGATOR_URL": "http://agg:8080/logs",
		"PORT":               "9200",
	}))
	if err != nil {
		t.Fatalf("load() 返回错误: %v", err)
	}

	if cfg.Identity.ServiceName != "api" {
		t.Errorf("ServiceName = %q", cfg.Identity.ServiceName)
	}
	if cfg.Identity.Environment != "prod" {
		t.Errorf("环境变量应覆盖文件值, Environment = %q", cfg.Identity.Environment)
	}
	if cfg.Logs.StartPosition != StartEnd {
		t.Errorf("StartPosition = %q", cfg.Logs.StartPosition)
	}
	if cfg.Logs.Retry.MaxRetries != 5 || cfg.Logs.Retry.Min != 100*time.Millisecond || cfg.Logs.Retry.Factor != 1.5 {
		t.Errorf("Retry = %+v", cfg.Logs.Retry)
	}
	if cfg.Logs.AggregatorURL != "http://agg:8080/logs" {
		t.Errorf("AggregatorURL = %q", cfg.Logs.AggregatorURL)
	}
	if cfg.Metrics.ListenAddr != ":9200" {
		t.Errorf("ListenAddr = %q", cfg.Metrics.ListenAddr)
	}
	if cfg.Metrics.ScrapeInterval != 30*time.Second {
		t.Errorf("ScrapeInterval = %v", cfg.Metrics.ScrapeInterval)
	}
	if cfg.Metrics.UpstreamURL != "http://localhost:3000/metrics" {
		t.Errorf("未覆盖的字段应保留默认值, UpstreamURL = %q", cfg.Metrics.UpstreamURL)
	}
}

func TestLoadRejectsBadEnv(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"port", map[string]string{"PORT": "abc"}},
		{"interval", map[string]string{"SIDECAR_SCRAPE_INTERVAL": "soon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := load("", envMap(tt.env)); err == nil {
				t.Error("应返回错误")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := load(filepath.Join(t.TempDir(), "missing.yaml"), envMap(nil)); err == nil {
		t.Error("配置文件不存在时应返回错误")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		logs    bool
		metrics bool
		field   string
	}{
		{"bad start position", func(c *Config) { c.Logs.StartPosition = "middle" }, true, false, "start_position"},
		{"bad aggregator url", func(c *Config) { c.Logs.AggregatorURL = "not a url" }, true, false, "aggregator_url"},
		{"missing service", func(c *Config) { c.Identity.ServiceName = "" }, false, true, "service_name"},
		{"zero interval", func(c *Config) { c.Metrics.ScrapeInterval = 0 }, false, true, "scrape_interval"},
		{"max below min", func(c *Config) { c.Metrics.Retry.Max = time.Millisecond }, false, true, "max"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate(tt.logs, tt.metrics)
			if err == nil {
				t.Fatal("应校验失败")
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("错误信息应包含 %q: %v", tt.field, err)
			}
		})
	}
}

func TestValidateSkipsUnselected(t *testing.T) {
	cfg := Default()
	cfg.Metrics.UpstreamURL = ""
	if err := cfg.Validate(true, false); err != nil {
		t.Errorf("未启用指标转发时不应校验指标配置: %v", err)
	}
}
