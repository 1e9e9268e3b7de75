package config

import (
	"os"
	"time"

	"github.com/spf13/cast"
)

// LogConfig 日志配置
type LogConfig struct {
	Level      string `json:"Level"`      // debug/info/warn/error
	File       string `json:"File"`       // 为空时输出到标准输出
	MaxSize    int    `json:"MaxSize"`    // 单个文件大小(MB)
	MaxBackups int    `json:"MaxBackups"` // 保留的旧文件数
	MaxAge     int    `json:"MaxAge"`     // 保留天数
	Compress   bool   `json:"Compress"`   // 是否压缩旧文件
}

// AggregatorConfig 模拟聚合器配置
type AggregatorConfig struct {
	Addr         string        `json:"Addr"`         // 监听地址
	Capacity     int           `json:"Capacity"`     // 内存中保留的日志条数
	DedupeWindow time.Duration `json:"DedupeWindow"` // 去重窗口，0 表示不去重
	BodyLimit    string        `json:"BodyLimit"`    // 请求体大小上限，如 1M
	Log          LogConfig     `json:"Log"`
}

// AppConfig 示例应用配置
type AppConfig struct {
	Addr        string    `json:"Addr"`        // 监听地址
	ServiceName string    `json:"ServiceName"` // 服务名
	LogFile     string    `json:"LogFile"`     // 应用日志文件
	Log         LogConfig `json:"Log"`
}

// LoadAggregator 从环境变量加载聚合器配置
func LoadAggregator() AggregatorConfig {
	return loadAggregator(os.LookupEnv)
}

// LoadApp 从环境变量加载示例应用配置
func LoadApp() AppConfig {
	return loadApp(os.LookupEnv)
}

type lookupFunc func(string) (string, bool)

func loadAggregator(lookup lookupFunc) AggregatorConfig {
	env := envReader{lookup: lookup}
	return AggregatorConfig{
		Addr:         ":" + env.str("PORT", "8080"),
		Capacity:     env.integer("AGGREGATOR_CAPACITY", 10),
		DedupeWindow: env.duration("AGGREGATOR_DEDUPE_WINDOW", 0),
		BodyLimit:    env.str("AGGREGATOR_BODY_LIMIT", "1M"),
		Log:          env.logConfig(),
	}
}

func loadApp(lookup lookupFunc) AppConfig {
	env := envReader{lookup: lookup}
	return AppConfig{
		Addr:        ":" + env.str("PORT", "3000"),
		ServiceName: env.str("SERVICE_NAME", "app"),
		LogFile:     env.str("LOG_FILE_PATH", "/var/log/app/app.log"),
		Log:         env.logConfig(),
	}
}

type envReader struct {
	lookup lookupFunc
}

func (e envReader) str(key, def string) string {
	if v, ok := e.lookup(key); ok && v != "" {
		return v
	}
	return def
}

func (e envReader) integer(key string, def int) int {
	if v, ok := e.lookup(key); ok && v != "" {
		if n, err := cast.ToIntE(v); err == nil {
			return n
		}
	}
	return def
}

func (e envReader) duration(key string, def time.Duration) time.Duration {
	if v, ok := e.lookup(key); ok && v != "" {
		if d, err := cast.ToDurationE(v); err == nil {
			return d
		}
	}
	return def
}

func (e envReader) boolean(key string, def bool) bool {
	if v, ok := e.lookup(key); ok && v != "" {
		if b, err := cast.ToBoolE(v); err == nil {
			return b
		}
	}
	return def
}

func (e envReader) logConfig() LogConfig {
	return LogConfig{
		Level:      e.str("LOG_LEVEL", "info"),
		File:       e.str("LOG_FILE", ""),
		MaxSize:    e.integer("LOG_MAX_SIZE", 100),
		MaxBackups: e.integer("LOG_MAX_BACKUPS", 3),
		MaxAge:     e.integer("LOG_MAX_AGE", 7),
		Compress:   e.boolean("LOG_COMPRESS", false),
	}
}
