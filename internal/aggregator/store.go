package aggregator

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dushixiang/sidecar/internal/ring"
	"github.com/go-orz/cache"
	"github.com/zeebo/blake3"
)

// DefaultCapacity 默认保留的日志条数
const DefaultCapacity = 10

// Stats 聚合器计数
type Stats struct {
	Accepted    uint64 `json:"accepted"`
	Duplicates  uint64 `json:"duplicates"`
	Stored      int    `json:"stored"`
	Subscribers int    `json:"subscribers"`
}

// Store 内存中的日志存储，只保留最近 capacity 条
type Store struct {
	records *ring.Ring[json.RawMessage]

	dedupeWindow time.Duration
	seen         cache.Cache[string, struct{}]

	subMu sync.Mutex
	subs  map[chan json.RawMessage]struct{}

	accepted   atomic.Uint64
	duplicates atomic.Uint64
}

// NewStore 创建存储，dedupeWindow 大于 0 时在窗口内丢弃内容相同的记录
func NewStore(capacity int, dedupeWindow time.Duration) *Store {
	s := &Store{
		records:      ring.New[json.RawMessage](capacity),
		dedupeWindow: dedupeWindow,
		subs:         make(map[chan json.RawMessage]struct{}),
	}
	if dedupeWindow > 0 {
		s.seen = cache.New[string, struct{}](time.Minute)
	}
	return s
}

// Add 保存一条记录并推送给订阅者，返回 false 表示该记录在去重窗口内已出现过
func (s *Store) Add(record json.RawMessage) bool {
	s.accepted.Add(1)

	compacted := compact(record)
	if s.seen != nil {
		key := fingerprint(compacted)
		if _, ok := s.seen.Get(key); ok {
			s.duplicates.Add(1)
			return false
		}
		s.seen.Set(key, struct{}{}, s.dedupeWindow)
	}

	s.records.Push(compacted)
	s.publish(compacted)
	return true
}

// List 按接收顺序返回当前保留的记录
func (s *Store) List() []json.RawMessage {
	return s.records.Snapshot()
}

// Subscribe 订阅新记录，返回的取消函数可重复调用
//
// 订阅者处理过慢导致缓冲区写满时会被移除，通道随之关闭
func (s *Store) Subscribe(buffer int) (<-chan json.RawMessage, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan json.RawMessage, buffer)

	s.subMu.Lock()
	s.subs[ch] = struct{}{}
	s.subMu.Unlock()

	return ch, func() { s.unsubscribe(ch) }
}

// Stats 返回计数快照
func (s *Store) Stats() Stats {
	s.subMu.Lock()
	subscribers := len(s.subs)
	s.subMu.Unlock()

	return Stats{
		Accepted:    s.accepted.Load(),
		Duplicates:  s.duplicates.Load(),
		Stored:      s.records.Len(),
		Subscribers: subscribers,
	}
}

func (s *Store) publish(record json.RawMessage) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for ch := range s.subs {
		select {
		case ch <- record:
		default:
			delete(s.subs, ch)
			close(ch)
		}
	}
}

func (s *Store) unsubscribe(ch chan json.RawMessage) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	if _, ok := s.subs[ch]; ok {
		delete(s.subs, ch)
		close(ch)
	}
}

func compact(record json.RawMessage) json.RawMessage {
	var buf bytes.Buffer
	if err := json.Compact(&buf, record); err != nil {
		return append(json.RawMessage(nil), record...)
	}
	return buf.Bytes()
}

func fingerprint(record []byte) string {
	sum := blake3.Sum256(record)
	return hex.EncodeToString(sum[:])
}
