// Package dedupe tracks idempotency keys of mutating requests so replays
// can be told apart from first deliveries.
package dedupe

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
)

// defaultMaxSize bounds the ledger when no option is given.
const defaultMaxSize = 50000

// Deduper records idempotency keys.
type Deduper interface {
	// SeenAndRecord atomically checks if key was seen and records it if not.
	// Returns true if key was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, key string) bool

	// Forget removes a key so the next delivery counts as new again.
	Forget(ctx context.Context, key string)

	Size() int64
}

// ledger is a bounded in-memory Deduper. When full, the oldest key is evicted.
// maxSize <= 0 means unbounded.
type ledger struct {
	mu      sync.Mutex
	index   map[string]*list.Element
	order   *list.List // front = newest
	maxSize int
	size    atomic.Int64
}

// NewLedger creates a new in-memory idempotency ledger.
func NewLedger(opts ...Option) Deduper {
	l := &ledger{
		maxSize: defaultMaxSize,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.index = make(map[string]*list.Element)
	l.order = list.New()
	return l
}

func (l *ledger) SeenAndRecord(_ context.Context, key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.index[key]; ok {
		return true
	}
	if l.maxSize > 0 && l.order.Len() >= l.maxSize {
		l.evictOldest()
	}
	l.index[key] = l.order.PushFront(key)
	l.size.Add(1)
	return false
}

func (l *ledger) Forget(_ context.Context, key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if el, ok := l.index[key]; ok {
		l.order.Remove(el)
		delete(l.index, key)
		l.size.Add(-1)
	}
}

// evictOldest drops the back of the list. Caller holds l.mu.
func (l *ledger) evictOldest() {
	el := l.order.Back()
	if el == nil {
		return
	}
	l.order.Remove(el)
	delete(l.index, el.Value.(string))
	l.size.Add(-1)
}

func (l *ledger) Size() int64 {
	return l.size.Load()
}
