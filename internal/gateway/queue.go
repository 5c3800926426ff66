package gateway

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"llm-gateway/internal/llm"
)

type result struct {
	resp *llm.ChatResponse
	err  error
}

// queuedItem wraps one submission while it sits in the queue. The
// ordering key (priority, enqueuedAt, seq) is fixed at enqueue time.
// The caller's context doubles as the abandonment signal: once it is
// done nobody is waiting on resultCh anymore.
type queuedItem struct {
	priority   llm.Priority
	enqueuedAt time.Time
	seq        uint64
	id         string
	request    *llm.ChatRequest
	backend    string // explicit pin, may be empty
	complexity string
	ctx        context.Context
	resultCh   chan result
}

// deliver resolves the item's result handle exactly once. The 1-buffered
// channel makes delivery safe even when nobody is listening.
func (it *queuedItem) deliver(resp *llm.ChatResponse, err error) {
	select {
	case it.resultCh <- result{resp: resp, err: err}:
	default:
	}
}

func (it *queuedItem) abandoned() bool {
	return it.ctx.Err() != nil
}

// itemHeap orders by priority (lower value first), then arrival time,
// then a monotonic sequence that keeps FIFO stable when timestamps collide.
type itemHeap []*queuedItem

func (h itemHeap) Len() int { return len(h) }

func (h itemHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority < h[j].priority
	}
	if !h[i].enqueuedAt.Equal(h[j].enqueuedAt) {
		return h[i].enqueuedAt.Before(h[j].enqueuedAt)
	}
	return h[i].seq < h[j].seq
}

func (h itemHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *itemHeap) Push(x any) { *h = append(*h, x.(*queuedItem)) }

func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return it
}

// priorityQueue is a bounded priority queue shared between submitters
// and workers. Push fails fast at capacity instead of blocking.
type priorityQueue struct {
	mu       sync.Mutex
	items    itemHeap
	capacity int
	seq      uint64
	notify   chan struct{}
}

func newPriorityQueue(capacity int) *priorityQueue {
	return &priorityQueue{
		capacity: capacity,
		notify:   make(chan struct{}, 1),
	}
}

func (q *priorityQueue) push(it *queuedItem) error {
	q.mu.Lock()
	if len(q.items) >= q.capacity {
		q.mu.Unlock()
		return ErrQueueFull
	}
	it.seq = q.seq
	q.seq++
	heap.Push(&q.items, it)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

func (q *priorityQueue) pop() *queuedItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	return heap.Pop(&q.items).(*queuedItem)
}

// popWait dequeues the highest-priority item, waiting at most timeout
// for one to arrive. Returns nil on timeout or stop so the caller can
// observe shutdown promptly.
func (q *priorityQueue) popWait(timeout time.Duration, stop <-chan struct{}) *queuedItem {
	if it := q.pop(); it != nil {
		return it
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-stop:
			return nil
		case <-timer.C:
			return nil
		case <-q.notify:
			if it := q.pop(); it != nil {
				return it
			}
		}
	}
}

func (q *priorityQueue) size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
