package demo

import (
	"strings"
	"testing"
)

func TestMetricsRender(t *testing.T) {
	m := NewMetrics()
	m.counter = func() int { return 42 }

	out := m.Render()
	if !strings.Contains(out, `http_requests_total{method="GET", path="/"} 42`+"\n") {
		t.Errorf("缺少请求计数: %s", out)
	}
}

func TestMetricsCounterRange(t *testing.T) {
	m := NewMetrics()
	for i := 0; i < 200; i++ {
		if v := m.counter(); v < 10 || v > 100 {
			t.Fatalf("counter() = %d, 超出 10..100", v)
		}
	}
}
