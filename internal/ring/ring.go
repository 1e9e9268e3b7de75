package ring

import "sync"

// Ring 固定容量的先进先出队列，写满后淘汰最旧的元素
//
// 所有方法并发安全
type Ring[T any] struct {
	mu    sync.Mutex
	items []T
	head  int // 最旧元素的位置
	size  int
}

// New 创建容量为 capacity 的队列，capacity 小于 1 时按 1 处理
func New[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{
		items: make([]T, capacity),
	}
}

// Push 追加元素，队列已满时返回被淘汰的最旧元素
func (r *Ring[T]) Push(v T) (evicted T, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	capacity := len(r.items)
	if r.size < capacity {
		r.items[(r.head+r.size)%capacity] = v
		r.size++
		return evicted, false
	}

	evicted = r.items[r.head]
	r.items[r.head] = v
	r.head = (r.head + 1) % capacity
	return evicted, true
}

// Snapshot 按写入顺序（从旧到新）返回当前元素的副本
func (r *Ring[T]) Snapshot() []T {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]T, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.items[(r.head+i)%len(r.items)]
	}
	return out
}

// Len 当前元素个数
func (r *Ring[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

// Cap 队列容量
func (r *Ring[T]) Cap() int {
	return len(r.items)
}
