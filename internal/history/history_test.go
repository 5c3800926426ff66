package history

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"llm-gateway/internal/gateway"
	"llm-gateway/internal/llm"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return store
}

func TestRecordAndRecent(t *testing.T) {
	store := openTestStore(t)

	store.Record(RequestLog{
		Backend:    "local",
		Model:      "llama-3",
		Priority:   "high",
		Status:     "ok",
		DurationMs: 120,
	})
	store.Record(RequestLog{
		Backend:   "cloud",
		Model:     "gpt-4o",
		Priority:  "low",
		Status:    "error",
		ErrorKind: "backend_timeout",
		CreatedAt: time.Now().Add(time.Second),
	})

	entries, err := store.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Backend != "cloud" {
		t.Errorf("expected newest entry first, got %+v", entries[0])
	}
	if entries[1].ID == "" {
		t.Errorf("missing generated ID on entry without one")
	}
}

func TestRecent_Limit(t *testing.T) {
	store := openTestStore(t)
	for i := 0; i < 5; i++ {
		store.Record(RequestLog{Backend: "local", Status: "ok"})
	}

	entries, err := store.Recent(3)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("limit not applied: got %d entries", len(entries))
	}
}

func TestRecorder_MapsCompletion(t *testing.T) {
	store := openTestStore(t)
	record := Recorder(store)

	record(gateway.Completion{
		ID:       "req-1",
		Backend:  "local",
		Model:    "llama-3",
		Priority: llm.PriorityHigh,
		Duration: 250 * time.Millisecond,
		Usage:    llm.Usage{PromptTokens: 10, CompletionTokens: 20},
	})
	record(gateway.Completion{
		ID:       "req-2",
		Backend:  "local",
		Priority: llm.PriorityLow,
		Err:      errors.New("boom"),
	})

	// Recorder writes asynchronously
	var entries []RequestLog
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		var err error
		entries, err = store.Recent(10)
		if err == nil && len(entries) == 2 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 recorded completions, got %d", len(entries))
	}

	byID := map[string]RequestLog{}
	for _, e := range entries {
		byID[e.ID] = e
	}
	ok := byID["req-1"]
	if ok.Status != "ok" || ok.Priority != "high" || ok.PromptTokens != 10 || ok.DurationMs != 250 {
		t.Errorf("unexpected success entry: %+v", ok)
	}
	failed := byID["req-2"]
	if failed.Status != "error" || failed.ErrorKind != "internal" {
		t.Errorf("unexpected failure entry: %+v", failed)
	}
}
