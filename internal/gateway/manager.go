package gateway

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"llm-gateway/internal/backend"
	"llm-gateway/internal/config"
	"llm-gateway/internal/llm"
	"llm-gateway/internal/routing"
)

// pollInterval bounds how long a worker waits on an empty queue before
// re-checking the stop signal
const pollInterval = 1 * time.Second

// SubmitOptions carries the optional routing hints of one submission
type SubmitOptions struct {
	Backend    string // explicit backend pin
	Complexity string // routing hint: low/high/ultra/einstein
}

// Completion describes one finished request, successful or not. It is
// handed to the optional completion hook after the result is delivered.
type Completion struct {
	ID         string
	Backend    string
	Model      string
	Priority   llm.Priority
	Complexity string
	Duration   time.Duration
	Usage      llm.Usage
	Err        error
}

// CompletionFunc observes finished requests, e.g. for the history log
type CompletionFunc func(Completion)

// Option configures a QueueManager
type Option func(*QueueManager)

// WithCompletionFunc installs a hook called after every processed request
func WithCompletionFunc(fn CompletionFunc) Option {
	return func(m *QueueManager) { m.onComplete = fn }
}

// QueueManager serializes access to the shared inference backends. It
// accepts submissions into a bounded priority queue and drains it with
// a fixed number of workers (one by default, full serialization).
type QueueManager struct {
	registry *backend.Registry
	router   *routing.Router

	queue       *priorityQueue
	semaphore   chan struct{} // limits concurrent backend calls
	concurrency int
	timeout     time.Duration

	stats      statsTracker
	onComplete CompletionFunc

	mu        sync.Mutex
	running   bool
	startedAt time.Time
	stopCh    chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New builds a QueueManager from config. Call Start before submitting.
func New(cfg *config.Config, reg *backend.Registry, router *routing.Router, opts ...Option) *QueueManager {
	queueSize := cfg.Gateway.MaxQueueSize
	if queueSize < 1 {
		queueSize = 100
	}
	concurrency := cfg.Gateway.MaxConcurrentRequests
	if concurrency < 1 {
		concurrency = 1
	}
	timeout := cfg.RequestTimeout()
	if timeout <= 0 {
		timeout = 300 * time.Second
	}

	m := &QueueManager{
		registry:    reg,
		router:      router,
		queue:       newPriorityQueue(queueSize),
		semaphore:   make(chan struct{}, concurrency),
		concurrency: concurrency,
		timeout:     timeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start launches the worker loop. Calling it twice is a no-op.
func (m *QueueManager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		log.Printf("[Gateway] Start called while already running, ignoring")
		return
	}
	m.running = true
	m.startedAt = time.Now()
	m.stopCh = make(chan struct{})

	for i := 0; i < m.concurrency; i++ {
		m.wg.Add(1)
		go m.worker()
	}
	log.Printf("[Gateway] Started with %d worker(s), queue capacity %d, request timeout %s",
		m.concurrency, m.queue.capacity, m.timeout)
}

// Stop cancels the worker loop, waits for it to drain in-flight work,
// fails anything still queued, and closes the backend clients exactly
// once. Safe to call repeatedly.
func (m *QueueManager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.stopCh)
	m.mu.Unlock()

	m.wg.Wait()

	// Anything still queued gets the cancellation outcome rather than
	// hanging until its submit timeout
	for it := m.queue.pop(); it != nil; it = m.queue.pop() {
		it.deliver(nil, ErrNotRunning)
	}

	m.closeOnce.Do(func() {
		if err := m.registry.CloseAll(); err != nil {
			log.Printf("[Gateway] Error closing backend clients: %v", err)
		}
	})
	log.Printf("[Gateway] Stopped")
}

// IsRunning reports whether the worker loop is active
func (m *QueueManager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// QueueSize reports how many items are currently queued
func (m *QueueManager) QueueSize() int {
	return m.queue.size()
}

// GetStats returns a snapshot of the live counters
func (m *QueueManager) GetStats() GatewayStats {
	m.mu.Lock()
	startedAt, running := m.startedAt, m.running
	m.mu.Unlock()
	return m.stats.snapshot(m.queue.size(), startedAt, running)
}

// Submit enqueues a request and waits for its result, bounded by the
// configured timeout. The request itself is never mutated. At capacity
// it fails immediately with ErrQueueFull instead of blocking.
func (m *QueueManager) Submit(ctx context.Context, req *llm.ChatRequest, priority llm.Priority, opts SubmitOptions) (*llm.ChatResponse, error) {
	if !m.IsRunning() {
		return nil, ErrNotRunning
	}

	waitCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	it := &queuedItem{
		priority:   priority,
		enqueuedAt: time.Now(),
		id:         uuid.NewString(),
		request:    req,
		backend:    opts.Backend,
		complexity: opts.Complexity,
		ctx:        waitCtx,
		resultCh:   make(chan result, 1),
	}

	if err := m.queue.push(it); err != nil {
		log.Printf("[Gateway] WARNING: queue full, rejecting %s request %s", priority, it.id)
		return nil, err
	}

	// Stop may have drained the queue between the running check and the
	// push; fail leftovers fast instead of waiting out the timeout
	if !m.IsRunning() {
		for drained := m.queue.pop(); drained != nil; drained = m.queue.pop() {
			drained.deliver(nil, ErrNotRunning)
		}
	}

	select {
	case res := <-it.resultCh:
		return res.resp, res.err
	case <-waitCtx.Done():
		// The item may still be queued or mid-flight; whoever processes
		// it will see the abandoned context and discard the stale result
		if errors.Is(waitCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			log.Printf("[Gateway] Request %s timed out after %s", it.id, m.timeout)
			return nil, ErrRequestTimeout
		}
		return nil, ctx.Err()
	}
}

// worker drains the queue in (priority, arrival) order. Each iteration
// polls with a short timeout so the stop signal is observed promptly.
func (m *QueueManager) worker() {
	defer m.wg.Done()

	for {
		select {
		case <-m.stopCh:
			return
		default:
		}

		it := m.queue.popWait(pollInterval, m.stopCh)
		if it == nil {
			continue
		}
		m.process(it)
	}
}

// process runs one dequeued item through router, registry and backend.
// A panic in the surrounding bookkeeping is logged and must never kill
// the worker.
func (m *QueueManager) process(it *queuedItem) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("[Gateway] ERROR: worker panic processing request %s: %v", it.id, rec)
			it.deliver(nil, errors.New("internal error processing request"))
		}
	}()

	// Caller may have given up while the item sat in the queue
	if it.abandoned() {
		log.Printf("[Gateway] Skipping abandoned request %s", it.id)
		return
	}

	select {
	case m.semaphore <- struct{}{}:
	case <-m.stopCh:
		it.deliver(nil, ErrNotRunning)
		return
	}
	defer func() { <-m.semaphore }()

	// Re-check: time may have passed waiting for the slot
	if it.abandoned() {
		log.Printf("[Gateway] Skipping request %s abandoned while waiting for a slot", it.id)
		return
	}

	m.stats.recordStart()
	start := time.Now()
	resp, backendName, err := m.dispatch(it)
	elapsed := time.Since(start)

	// Update counters before unblocking the caller so a stats snapshot
	// taken right after Submit returns already includes this request
	m.stats.recordDone(it.priority, elapsed)
	it.deliver(resp, err)

	if err != nil {
		log.Printf("[Gateway] Request %s failed on %q after %s: %v", it.id, backendName, elapsed, err)
	} else {
		log.Printf("[Gateway] Request %s completed on %q in %s", it.id, backendName, elapsed)
	}

	if m.onComplete != nil {
		completion := Completion{
			ID:         it.id,
			Backend:    backendName,
			Priority:   it.priority,
			Complexity: it.complexity,
			Duration:   elapsed,
			Err:        err,
		}
		if resp != nil {
			completion.Model = resp.Model
			completion.Usage = resp.Usage
		} else {
			completion.Model = it.request.Model
		}
		m.onComplete(completion)
	}
}

// dispatch resolves the backend for one item and invokes it. Backend
// errors pass through unchanged; retry policy belongs to the client.
func (m *QueueManager) dispatch(it *queuedItem) (*llm.ChatResponse, string, error) {
	name, err := m.router.ResolveBackend(it.priority, it.complexity, it.backend, nil)
	if err != nil {
		return nil, it.backend, err
	}

	client, err := m.registry.GetClient(name)
	if err != nil {
		return nil, name, err
	}

	req := it.request
	if req.Model == "" {
		// Shallow copy so the caller-owned request stays untouched
		filled := *req
		filled.Model = m.registry.Model(name)
		req = &filled
	}

	resp, err := client.ChatCompletion(it.ctx, req)
	return resp, name, err
}
