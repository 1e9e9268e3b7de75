package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dushixiang/sidecar/internal/protocol"
	"github.com/labstack/echo/v4"
)

type staticSnapshot struct {
	text string
	at   time.Time
}

func (s staticSnapshot) Load() string         { return s.text }
func (s staticSnapshot) UpdatedAt() time.Time { return s.at }

func TestMetricsServesSnapshotVerbatim(t *testing.T) {
	text := `up{service_name="api",environment="prod"} 1` + "\n" + `x{service_name="api",environment="prod"} 2`
	h := NewMetricsHandler(staticSnapshot{text: text, at: time.Now().Add(-3 * time.Second)})

	e := echo.New()
	h.Register(e)

	req := httptest.NewRequest(http.MethodGet, protocol.MetricsPath, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Body.String() != text {
		t.Errorf("body = %q, want %q", rec.Body.String(), text)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); ct != protocol.ExpositionContentType {
		t.Errorf("Content-Type = %q", ct)
	}
	if age := rec.Header().Get(protocol.HeaderSnapshotAge); age != "3" && age != "2" && age != "4" {
		t.Errorf("%s = %q", protocol.HeaderSnapshotAge, age)
	}
}

func TestMetricsEmptySnapshot(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, protocol.MetricsPath, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := NewMetricsHandler(staticSnapshot{}).Metrics(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusOK || rec.Body.Len() != 0 {
		t.Errorf("status = %d, body = %q", rec.Code, rec.Body.String())
	}
	if rec.Header().Get(protocol.HeaderSnapshotAge) != "" {
		t.Error("从未抓取成功时不应返回快照时长")
	}
}

func TestHealth(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, protocol.HealthPath, nil), rec)

	if err := Health(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Errorf("status = %d, body = %q", rec.Code, rec.Body.String())
	}
}
