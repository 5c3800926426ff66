package gateway

import (
	"sync"
	"time"

	"llm-gateway/internal/llm"
)

// responseTimeWindow bounds the rolling average over recent completions
const responseTimeWindow = 100

// GatewayStats is a read-only snapshot of queue state and counters
type GatewayStats struct {
	QueueSize            int     `json:"queue_size"`
	RequestsProcessed    int64   `json:"requests_processed"`
	RequestsHighPriority int64   `json:"requests_high_priority"`
	RequestsLowPriority  int64   `json:"requests_low_priority"`
	AvgResponseTimeMs    float64 `json:"avg_response_time_ms"`
	IsProcessing         bool    `json:"is_processing"`
	UptimeSeconds        float64 `json:"uptime_seconds"`
}

// statsTracker is the single mutation point for counters. A mutex keeps
// it safe when max_concurrent_requests is raised above 1.
type statsTracker struct {
	mu        sync.Mutex
	processed int64
	high      int64
	low       int64
	inFlight  int
	samples   []float64
	next      int
}

func (s *statsTracker) recordStart() {
	s.mu.Lock()
	s.inFlight++
	s.mu.Unlock()
}

func (s *statsTracker) recordDone(p llm.Priority, elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.inFlight--
	s.processed++
	if p == llm.PriorityHigh {
		s.high++
	} else {
		s.low++
	}

	ms := float64(elapsed.Milliseconds())
	if len(s.samples) < responseTimeWindow {
		s.samples = append(s.samples, ms)
	} else {
		s.samples[s.next] = ms
		s.next = (s.next + 1) % responseTimeWindow
	}
}

func (s *statsTracker) snapshot(queueSize int, startedAt time.Time, running bool) GatewayStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	var avg float64
	if len(s.samples) > 0 {
		var sum float64
		for _, v := range s.samples {
			sum += v
		}
		avg = sum / float64(len(s.samples))
	}

	var uptime float64
	if running {
		uptime = time.Since(startedAt).Seconds()
	}

	return GatewayStats{
		QueueSize:            queueSize,
		RequestsProcessed:    s.processed,
		RequestsHighPriority: s.high,
		RequestsLowPriority:  s.low,
		AvgResponseTimeMs:    avg,
		IsProcessing:         s.inFlight > 0,
		UptimeSeconds:        uptime,
	}
}
