package logship

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dushixiang/sidecar/internal/protocol"
	"github.com/dushixiang/sidecar/pkg/sidecar/retry"
	"github.com/klauspost/compress/gzip"
)

var fastRetry = retry.Policy{MaxRetries: 3, Min: time.Millisecond, Max: 5 * time.Millisecond, Factor: 2}

func TestClientPushAccepted(t *testing.T) {
	var got []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		if r.Header.Get(protocol.HeaderRequestID) == "" {
			t.Error("缺少请求ID")
		}
		got, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"status":"accepted"}`))
	}))
	defer srv.Close()

	c := NewClient(ClientOptions{URL: srv.URL + "/logs", Retry: fastRetry})
	if err := c.Push(context.Background(), []byte(`{"level":"info"}`)); err != nil {
		t.Fatalf("Push() = %v", err)
	}
	if string(got) != `{"level":"info"}` {
		t.Errorf("body = %s", got)
	}
}

func TestClientPushRetriesServerErrors(t *testing.T) {
	var (
		calls atomic.Int32
		mu    sync.Mutex
		ids   = map[string]struct{}{}
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		ids[r.Header.Get(protocol.HeaderRequestID)] = struct{}{}
		mu.Unlock()
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := NewClient(ClientOptions{URL: srv.URL, Retry: fastRetry})
	if err := c.Push(context.Background(), []byte(`{}`)); err != nil {
		t.Fatalf("Push() = %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("请求次数 = %d, want 3", calls.Load())
	}
	if len(ids) != 1 {
		t.Errorf("重试应复用同一个请求ID, got %d", len(ids))
	}
}

func TestClientPushDoesNotRetryBadRequest(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "invalid json", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(ClientOptions{URL: srv.URL, Retry: fastRetry})
	err := c.Push(context.Background(), []byte(`{}`))

	var se *retry.StatusError
	if !errors.As(err, &se) || se.Code != http.StatusBadRequest {
		t.Fatalf("Push() = %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("400 不应重试, 请求次数 = %d", calls.Load())
	}
}

func TestClientPushRejectsOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(ClientOptions{URL: srv.URL, Retry: fastRetry})
	if err := c.Push(context.Background(), []byte(`{}`)); err == nil {
		t.Error("只有 202 视为成功")
	}
}

func TestClientPushGivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(ClientOptions{URL: srv.URL, Retry: fastRetry})
	if err := c.Push(context.Background(), []byte(`{}`)); err == nil {
		t.Fatal("应返回错误")
	}
	if calls.Load() != int32(fastRetry.MaxRetries+1) {
		t.Errorf("请求次数 = %d", calls.Load())
	}
}

func TestClientPushGzip(t *testing.T) {
	var got []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Encoding") != "gzip" {
			t.Errorf("Content-Encoding = %q", r.Header.Get("Content-Encoding"))
		}
		zr, err := gzip.NewReader(r.Body)
		if err != nil {
			t.Errorf("gzip 解码失败: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		got, _ = io.ReadAll(zr)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := NewClient(ClientOptions{URL: srv.URL, Compress: true, Retry: fastRetry})
	if err := c.Push(context.Background(), []byte(`{"message":"zipped"}`)); err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"message":"zipped"}` {
		t.Errorf("body = %s", got)
	}
}
