package logship

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/dushixiang/sidecar/internal/protocol"
	"github.com/dushixiang/sidecar/pkg/sidecar/retry"
	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
)

// ClientOptions 推送客户端配置
type ClientOptions struct {
	URL        string
	Timeout    time.Duration // 单次请求超时
	Compress   bool
	Retry      retry.Policy
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client 将日志记录推送到聚合器
type Client struct {
	url        string
	timeout    time.Duration
	compress   bool
	retry      retry.Policy
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient 创建推送客户端
func NewClient(opts ClientOptions) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		url:        opts.URL,
		timeout:    timeout,
		compress:   opts.Compress,
		retry:      opts.Retry,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Push 推送一条日志，仅当聚合器返回 202 时视为成功
func (c *Client) Push(ctx context.Context, record []byte) error {
	body := record
	if c.compress {
		compressed, err := gzipBytes(record)
		if err != nil {
			return fmt.Errorf("压缩日志失败: %w", err)
		}
		body = compressed
	}

	requestID := uuid.NewString()
	return c.retry.Do(ctx, func(ctx context.Context, attempt int) error {
		return c.send(ctx, requestID, body)
	}, func(err error, wait time.Duration) {
		c.logger.Warn("推送日志失败，准备重试", "request_id", requestID, "wait", wait, "error", err)
	})
}

func (c *Client) send(ctx context.Context, requestID string, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return retry.Permanent(fmt.Errorf("创建请求失败: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(protocol.HeaderRequestID, requestID)
	if c.compress {
		req.Header.Set("Content-Encoding", "gzip")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("请求聚合器失败: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return retry.CheckStatus(resp.StatusCode, http.StatusAccepted, string(bytes.TrimSpace(respBody)))
}

func gzipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
