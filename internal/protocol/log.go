package protocol

// 日志记录字段
const (
	FieldLevel       = "level"
	FieldMessage     = "message"
	FieldTimestamp   = "timestamp"
	FieldServiceName = "service_name"
	FieldEnvironment = "environment"
)

// TimestampLayout 应用写入日志使用的时间格式（本地时间，不带时区）
const TimestampLayout = "2006-01-02T15:04:05"

// StatusAccepted 聚合器接收成功时返回的状态
const StatusAccepted = "accepted"

// HeaderRequestID 推送请求携带的请求ID
const HeaderRequestID = "X-Request-Id"

// Identity 边车注入到日志与指标中的身份信息
type Identity struct {
	ServiceName string `json:"service_name" yaml:"service_name" validate:"required"`
	Environment string `json:"environment" yaml:"environment" validate:"required"`
}

// AppLogRecord 应用写入日志文件的单行记录
type AppLogRecord struct {
	Level     string `json:"level"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// IngestResponse 聚合器接收日志后的响应
type IngestResponse struct {
	Status string `json:"status"`
}
