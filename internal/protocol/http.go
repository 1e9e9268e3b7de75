package protocol

// HTTP 路由
const (
	HealthPath    = "/health"
	MetricsPath   = "/metrics"
	LogsPath      = "/logs"
	LogStreamPath = "/logs/stream"
	StatsPath     = "/stats"
)

// ExpositionContentType Prometheus 文本格式
const ExpositionContentType = "text/plain; version=0.0.4; charset=utf-8"

// HeaderSnapshotAge 指标快照距上次成功抓取的秒数
const HeaderSnapshotAge = "X-Snapshot-Age"
