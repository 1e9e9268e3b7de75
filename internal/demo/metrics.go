package demo

import (
	"fmt"
	"math/rand"
	"os"
	"strings"

	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/process"
)

// Metrics 演示应用的指标
type Metrics struct {
	proc    *process.Process
	counter func() int
}

// NewMetrics 创建指标源，无法获取当前进程信息时只输出请求计数
func NewMetrics() *Metrics {
	m := &Metrics{
		counter: func() int { return rand.Intn(91) + 10 },
	}
	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		m.proc = proc
	}
	return m
}

// Render 输出 Prometheus 文本格式
func (m *Metrics) Render() string {
	var sb strings.Builder

	sb.WriteString("# HELP http_requests_total Total HTTP requests.\n")
	sb.WriteString("# TYPE http_requests_total counter\n")
	fmt.Fprintf(&sb, "http_requests_total{method=\"GET\", path=\"/\"} %d\n", m.counter())

	if m.proc != nil {
		if mem, err := m.proc.MemoryInfo(); err == nil && mem != nil {
			sb.WriteString("# TYPE process_resident_memory_bytes gauge\n")
			fmt.Fprintf(&sb, "process_resident_memory_bytes %d\n", mem.RSS)
		}
		if cpu, err := m.proc.CPUPercent(); err == nil {
			sb.WriteString("# TYPE process_cpu_percent gauge\n")
			fmt.Fprintf(&sb, "process_cpu_percent %g\n", cpu)
		}
		// 部分系统不支持
		if fds, err := m.proc.NumFDs(); err == nil {
			sb.WriteString("# TYPE process_open_fds gauge\n")
			fmt.Fprintf(&sb, "process_open_fds %d\n", fds)
		}
	}

	if avg, err := load.Avg(); err == nil && avg != nil {
		sb.WriteString("# TYPE node_load1 gauge\n")
		fmt.Fprintf(&sb, "node_load1 %g\n", avg.Load1)
	}

	return sb.String()
}
