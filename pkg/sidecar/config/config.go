package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/dushixiang/sidecar/internal/protocol"
	"github.com/dushixiang/sidecar/pkg/sidecar"
	"github.com/dushixiang/sidecar/pkg/sidecar/retry"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// 起始读取位置
const (
	StartBeginning = "beginning"
	StartEnd       = "end"
	StartResume    = "resume"
)

// Config 边车配置
type Config struct {
	Path     string            `yaml:"-"`
	Identity protocol.Identity `yaml:"identity"`
	Logs     LogsConfig        `yaml:"logs"`
	Metrics  MetricsConfig     `yaml:"metrics"`
	Log      sidecar.LogConfig `yaml:"log"`
}

// LogsConfig 日志转发配置
type LogsConfig struct {
	File           string        `yaml:"file" validate:"required"`
	AggregatorURL  string        `yaml:"aggregator_url" validate:"required,url"`
	StartPosition  string        `yaml:"start_position" validate:"oneof=beginning end resume"`
	CheckpointFile string        `yaml:"checkpoint_file"`
	WaitInterval   time.Duration `yaml:"wait_interval" validate:"gt=0"`
	MaxWait        time.Duration `yaml:"max_wait" validate:"gte=0"` // 0 表示一直等待
	PollInterval   time.Duration `yaml:"poll_interval" validate:"gt=0"`
	MaxLineBytes   int           `yaml:"max_line_bytes" validate:"gt=0"`
	PushTimeout    time.Duration `yaml:"push_timeout" validate:"gt=0"`
	Compress       bool          `yaml:"compress"`
	Retry          retry.Policy  `yaml:"retry"`
}

// MetricsConfig 指标转发配置
type MetricsConfig struct {
	UpstreamURL    string        `yaml:"upstream_url" validate:"required,url"`
	ListenAddr     string        `yaml:"listen_addr" validate:"required"`
	ScrapeInterval time.Duration `yaml:"scrape_interval" validate:"gt=0"`
	ScrapeTimeout  time.Duration `yaml:"scrape_timeout" validate:"gt=0"`
	MaxBodyBytes   int64         `yaml:"max_body_bytes" validate:"gt=0"`
	Retry          retry.Policy  `yaml:"retry"`
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		Identity: protocol.Identity{
			ServiceName: "app",
			Environment: "development",
		},
		Logs: LogsConfig{
			File:          "/var/log/app/app.log",
			AggregatorURL: "http://localhost:8080/logs",
			StartPosition: StartResume,
			WaitInterval:  time.Second,
			PollInterval:  100 * time.Millisecond,
			MaxLineBytes:  1 << 20,
			PushTimeout:   10 * time.Second,
			Retry: retry.Policy{
				MaxRetries: 3,
				Min:        200 * time.Millisecond,
				Max:        5 * time.Second,
				Factor:     2,
				Jitter:     true,
			},
		},
		Metrics: MetricsConfig{
			UpstreamURL:    "http://localhost:3000/metrics",
			ListenAddr:     ":9100",
			ScrapeInterval: 15 * time.Second,
			ScrapeTimeout:  10 * time.Second,
			MaxBodyBytes:   10 << 20,
			Retry: retry.Policy{
				MaxRetries: 2,
				Min:        500 * time.Millisecond,
				Max:        5 * time.Second,
				Factor:     2,
				Jitter:     true,
			},
		},
		Log: sidecar.LogConfig{
			Level:      "info",
			Format:     "text",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     7,
		},
	}
}

// Load 加载配置：默认值、配置文件（可选）、环境变量依次覆盖
func Load(path string) (*Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()
	cfg.Path = path

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("解析配置文件失败: %w", err)
		}
	}

	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv 使用环境变量覆盖配置
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	setString := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	setString("SERVICE_NAME", &c.Identity.ServiceName)
	setString("ENVIRONMENT", &c.Identity.Environment)
	setString("LOG_FILE_PATH", &c.Logs.File)
	setString("LOG_AGGREGATOR_URL", &c.Logs.AggregatorURL)
	setString("SIDECAR_START_POSITION", &c.Logs.StartPosition)
	setString("SIDECAR_CHECKPOINT_FILE", &c.Logs.CheckpointFile)
	setString("APP_METRICS_URL", &c.Metrics.UpstreamURL)
	setString("SIDECAR_LOG_LEVEL", &c.Log.Level)
	setString("SIDECAR_LOG_FILE", &c.Log.File)

	if v, ok := lookup("PORT"); ok && v != "" {
		port, err := cast.ToIntE(v)
		if err != nil {
			return fmt.Errorf("PORT 无效: %w", err)
		}
		c.Metrics.ListenAddr = fmt.Sprintf(":%d", port)
	}
	if v, ok := lookup("SIDECAR_SCRAPE_INTERVAL"); ok && v != "" {
		d, err := cast.ToDurationE(v)
		if err != nil {
			return fmt.Errorf("SIDECAR_SCRAPE_INTERVAL 无效: %w", err)
		}
		c.Metrics.ScrapeInterval = d
	}
	return nil
}

// Validate 校验配置，logs/metrics 指定需要校验的转发器
func (c *Config) Validate(logs, metrics bool) error {
	v, trans := newValidator()

	targets := []any{&c.Identity}
	if logs {
		targets = append(targets, &c.Logs)
	}
	if metrics {
		targets = append(targets, &c.Metrics)
	}

	var msgs []string
	for _, target := range targets {
		err := v.Struct(target)
		if err == nil {
			continue
		}
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			msgs = append(msgs, fe.Translate(trans))
		}
	}
	if len(msgs) > 0 {
		return fmt.Errorf("配置校验失败: %s", strings.Join(msgs, "; "))
	}
	return nil
}

func newValidator() (*validator.Validate, ut.Translator) {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	enLocale := en.New()
	trans, _ := ut.New(enLocale, enLocale).GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(v, trans)
	return v, trans
}
