package demo

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dushixiang/sidecar/internal/protocol"
	"github.com/spf13/afero"
)

// LogWriter 以 JSON Lines 格式追加写入应用日志，并发安全
type LogWriter struct {
	mu   sync.Mutex
	fs   afero.Fs
	path string
	now  func() time.Time
}

// NewLogWriter 创建日志写入器，fs 为空时使用本地文件系统
func NewLogWriter(fs afero.Fs, path string) *LogWriter {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &LogWriter{fs: fs, path: path, now: time.Now}
}

// Path 日志文件路径
func (w *LogWriter) Path() string {
	return w.path
}

// Write 追加一条日志，父目录不存在时自动创建
func (w *LogWriter) Write(level, message string) error {
	line, err := json.Marshal(protocol.AppLogRecord{
		Level:     level,
		Message:   message,
		Timestamp: w.now().Format(protocol.TimestampLayout),
	})
	if err != nil {
		return err
	}
	line = append(line, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.fs.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return fmt.Errorf("创建日志目录失败: %w", err)
	}
	f, err := w.fs.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("打开日志文件失败: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("写入日志失败: %w", err)
	}
	return nil
}
