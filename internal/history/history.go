package history

import (
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"llm-gateway/internal/gateway"
)

// RequestLog is one completed request, success or failure. This is an
// observability record, not queue state: pending items are never stored.
type RequestLog struct {
	ID               string `gorm:"primaryKey"`
	Backend          string
	Model            string
	Priority         string
	Complexity       string
	Status           string // "ok" or "error"
	ErrorKind        string
	DurationMs       int64
	PromptTokens     int
	CompletionTokens int
	CreatedAt        time.Time
}

// Store persists request logs to sqlite
type Store struct {
	db *gorm.DB
}

// Open opens (or creates) the history database and migrates the schema
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&RequestLog{}); err != nil {
		return nil, err
	}
	log.Printf("[History] Database ready at %s", path)
	return &Store{db: db}, nil
}

// Record writes one entry. Failures are logged, never propagated; the
// history log must not interfere with request processing.
func (s *Store) Record(entry RequestLog) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if err := s.db.Create(&entry).Error; err != nil {
		log.Printf("[History] Failed to record request %s: %v", entry.ID, err)
	}
}

// Recent returns the newest entries, up to limit
func (s *Store) Recent(limit int) ([]RequestLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var entries []RequestLog
	err := s.db.Order("created_at desc").Limit(limit).Find(&entries).Error
	return entries, err
}

// Recorder adapts the store to the queue manager's completion hook
func Recorder(s *Store) gateway.CompletionFunc {
	return func(c gateway.Completion) {
		entry := RequestLog{
			ID:         c.ID,
			Backend:    c.Backend,
			Model:      c.Model,
			Priority:   c.Priority.String(),
			Complexity: c.Complexity,
			DurationMs: c.Duration.Milliseconds(),
		}
		if c.Err != nil {
			entry.Status = "error"
			entry.ErrorKind = gateway.ErrorKind(c.Err)
		} else {
			entry.Status = "ok"
			entry.PromptTokens = c.Usage.PromptTokens
			entry.CompletionTokens = c.Usage.CompletionTokens
		}
		// Write off the worker goroutine so a slow disk never stalls
		// the queue
		go s.Record(entry)
	}
}
