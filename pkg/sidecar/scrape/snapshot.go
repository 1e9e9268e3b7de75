package scrape

import (
	"sync/atomic"
	"time"
)

type snapshotValue struct {
	text      string
	updatedAt time.Time
}

// Snapshot 最近一次成功抓取并重写后的指标文本，整体原子替换，读取不加锁
type Snapshot struct {
	v atomic.Pointer[snapshotValue]
}

// NewSnapshot 创建初始值为空字符串的快照
func NewSnapshot() *Snapshot {
	s := &Snapshot{}
	s.v.Store(&snapshotValue{})
	return s
}

// Load 返回当前指标文本
func (s *Snapshot) Load() string {
	if v := s.v.Load(); v != nil {
		return v.text
	}
	return ""
}

// Store 替换指标文本
func (s *Snapshot) Store(text string) {
	s.v.Store(&snapshotValue{text: text, updatedAt: time.Now()})
}

// UpdatedAt 返回最近一次替换的时间，从未替换时为零值
func (s *Snapshot) UpdatedAt() time.Time {
	if v := s.v.Load(); v != nil {
		return v.updatedAt
	}
	return time.Time{}
}
