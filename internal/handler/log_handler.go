package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dushixiang/sidecar/internal/aggregator"
	"github.com/dushixiang/sidecar/internal/protocol"
	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/gzip"
	"github.com/labstack/echo/v4"
	"github.com/sourcegraph/conc"
	"go.uber.org/zap"
)

const (
	streamBuffer  = 64
	maxDecodedLog = 8 << 20
)

// LogHandler 聚合器日志处理器
type LogHandler struct {
	logger   *zap.Logger
	store    *aggregator.Store
	upgrader websocket.Upgrader
}

// NewLogHandler 创建处理器
func NewLogHandler(logger *zap.Logger, store *aggregator.Store) *LogHandler {
	return &LogHandler{
		logger: logger,
		store:  store,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Register 注册路由
func (h *LogHandler) Register(e *echo.Echo) {
	e.POST(protocol.LogsPath, h.Ingest)
	e.GET(protocol.LogsPath, h.List)
	e.GET(protocol.LogStreamPath, h.Stream)
	e.GET(protocol.StatsPath, h.Stats)
	e.GET(protocol.HealthPath, Health)
}

// Ingest 接收一条日志
// POST /logs
func (h *LogHandler) Ingest(c echo.Context) error {
	body, err := readBody(c.Request())
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "读取请求体失败",
		})
	}
	if !json.Valid(body) {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid JSON",
		})
	}

	stored := h.store.Add(body)
	h.logger.Info("Received Log",
		zap.ByteString("record", body),
		zap.String("request_id", c.Request().Header.Get(protocol.HeaderRequestID)),
		zap.Bool("duplicate", !stored),
	)

	return c.JSON(http.StatusAccepted, protocol.IngestResponse{Status: protocol.StatusAccepted})
}

// List 按接收顺序返回最近的日志
// GET /logs
func (h *LogHandler) List(c echo.Context) error {
	records := h.store.List()
	if records == nil {
		records = []json.RawMessage{}
	}
	return c.JSON(http.StatusOK, records)
}

// Stats 返回接收计数
// GET /stats
func (h *LogHandler) Stats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.store.Stats())
}

// Stream 通过 WebSocket 实时推送新接收的日志
// GET /logs/stream
func (h *LogHandler) Stream(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("WebSocket 升级失败", zap.Error(err))
		return nil
	}
	defer conn.Close()

	records, unsubscribe := h.store.Subscribe(streamBuffer)
	defer unsubscribe()

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	remote := c.RealIP()
	h.logger.Info("日志订阅已连接", zap.String("remote", remote))

	var wg conc.WaitGroup
	// 读取客户端消息以感知断开
	wg.Go(func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	func() {
		for {
			select {
			case <-ctx.Done():
				return
			case record, ok := <-records:
				if !ok {
					h.logger.Warn("订阅者处理过慢，已断开", zap.String("remote", remote))
					return
				}
				if err := conn.WriteMessage(websocket.TextMessage, record); err != nil {
					return
				}
			}
		}
	}()

	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	_ = conn.Close()
	wg.Wait()

	h.logger.Info("日志订阅已断开", zap.String("remote", remote))
	return nil
}

func readBody(r *http.Request) ([]byte, error) {
	var reader io.Reader = r.Body
	if strings.EqualFold(r.Header.Get("Content-Encoding"), "gzip") {
		zr, err := gzip.NewReader(r.Body)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		reader = zr
	}
	return io.ReadAll(io.LimitReader(reader, maxDecodedLog))
}
