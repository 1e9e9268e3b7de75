package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dushixiang/sidecar/internal/protocol"
	"github.com/labstack/echo/v4"
)

// SnapshotSource 指标快照
type SnapshotSource interface {
	Load() string
	UpdatedAt() time.Time
}

// MetricsHandler 边车指标处理器
type MetricsHandler struct {
	snapshot SnapshotSource
}

// NewMetricsHandler 创建处理器
func NewMetricsHandler(snapshot SnapshotSource) *MetricsHandler {
	return &MetricsHandler{snapshot: snapshot}
}

// Register 注册路由
func (h *MetricsHandler) Register(e *echo.Echo) {
	e.GET(protocol.MetricsPath, h.Metrics)
	e.GET(protocol.HealthPath, Health)
}

// Metrics 原样返回最近一次的指标快照
// GET /metrics
func (h *MetricsHandler) Metrics(c echo.Context) error {
	text := h.snapshot.Load()
	if updatedAt := h.snapshot.UpdatedAt(); !updatedAt.IsZero() {
		age := int64(time.Since(updatedAt).Seconds())
		c.Response().Header().Set(protocol.HeaderSnapshotAge, strconv.FormatInt(age, 10))
	}
	return c.Blob(http.StatusOK, protocol.ExpositionContentType, []byte(text))
}

// Health 健康检查
// GET /health
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}
