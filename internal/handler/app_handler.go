package handler

import (
	"net/http"

	"github.com/dushixiang/sidecar/internal/demo"
	"github.com/dushixiang/sidecar/internal/protocol"
	"github.com/labstack/echo/v4"
	"github.com/valyala/fasttemplate"
	"go.uber.org/zap"
)

var (
	greetingTemplate   = fasttemplate.New("Hello from {{service}}", "{{", "}}")
	rootAccessTemplate = fasttemplate.New("Root endpoint accessed on {{service}}", "{{", "}}")
)

// AppHandler 演示应用处理器
type AppHandler struct {
	logger   *zap.Logger
	writer   *demo.LogWriter
	metrics  *demo.Metrics
	greeting string
	message  string
}

// NewAppHandler 创建处理器
func NewAppHandler(logger *zap.Logger, serviceName string, writer *demo.LogWriter, metrics *demo.Metrics) *AppHandler {
	vars := map[string]any{"service": serviceName}
	return &AppHandler{
		logger:   logger,
		writer:   writer,
		metrics:  metrics,
		greeting: greetingTemplate.ExecuteString(vars),
		message:  rootAccessTemplate.ExecuteString(vars),
	}
}

// Register 注册路由
func (h *AppHandler) Register(e *echo.Echo) {
	e.GET("/", h.Root)
	e.GET(protocol.MetricsPath, h.Metrics)
	e.GET(protocol.HealthPath, Health)
}

// Root 记录一条访问日志并返回问候语
// GET /
func (h *AppHandler) Root(c echo.Context) error {
	if err := h.writer.Write("info", h.message); err != nil {
		h.logger.Error("写入应用日志失败", zap.String("path", h.writer.Path()), zap.Error(err))
		return c.String(http.StatusInternalServerError, "failed to write log")
	}
	return c.String(http.StatusOK, h.greeting)
}

// Metrics 返回演示指标
// GET /metrics
func (h *AppHandler) Metrics(c echo.Context) error {
	return c.Blob(http.StatusOK, protocol.ExpositionContentType, []byte(h.metrics.Render()))
}
