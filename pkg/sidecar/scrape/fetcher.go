package scrape

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/dushixiang/sidecar/pkg/sidecar/retry"
)

const acceptHeader = "text/plain;version=0.0.4;q=0.9,*/*;q=0.1"

// FetcherOptions 抓取配置
type FetcherOptions struct {
	URL          string
	Timeout      time.Duration // 单次请求超时
	MaxBodyBytes int64
	Retry        retry.Policy
	HTTPClient   *http.Client
	Logger       *slog.Logger
}

// Fetcher 从上游应用拉取指标文本
type Fetcher struct {
	url          string
	timeout      time.Duration
	maxBodyBytes int64
	retry        retry.Policy
	httpClient   *http.Client
	logger       *slog.Logger
}

// NewFetcher 创建 Fetcher
func NewFetcher(opts FetcherOptions) *Fetcher {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &http.Transport{
				Proxy:             http.ProxyFromEnvironment,
				DisableKeepAlives: true,
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				return nil
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
	maxBody := opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 10 << 20
	}
	return &Fetcher{
		url:          opts.URL,
		timeout:      timeout,
		maxBodyBytes: maxBody,
		retry:        opts.Retry,
		httpClient:   httpClient,
		logger:       logger,
	}
}

// Fetch 获取上游指标文本，仅 200 视为成功
func (f *Fetcher) Fetch(ctx context.Context) (string, error) {
	var text string
	err := f.retry.Do(ctx, func(ctx context.Context, attempt int) error {
		var err error
		text, err = f.fetchOnce(ctx)
		return err
	}, func(err error, wait time.Duration) {
		f.logger.Warn("抓取指标失败，准备重试", "url", f.url, "wait", wait, "error", err)
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

func (f *Fetcher) fetchOnce(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return "", retry.Permanent(fmt.Errorf("创建请求失败: %w", err))
	}
	req.Header.Set("Accept", acceptHeader)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("请求上游失败: %w", err)
	}
	defer resp.Body.Close()

	if err := retry.CheckStatus(resp.StatusCode, http.StatusOK, ""); err != nil {
		return "", err
	}

	// 多读一个字节用于判断是否超限
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodyBytes+1))
	if err != nil {
		return "", fmt.Errorf("读取响应失败: %w", err)
	}
	if int64(len(body)) > f.maxBodyBytes {
		return "", retry.Permanent(fmt.Errorf("响应超过大小限制 %d 字节", f.maxBodyBytes))
	}
	return string(body), nil
}
