package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"llm-gateway/internal/config"
	"llm-gateway/internal/llm"
)

func clientFor(url string, timeout time.Duration) *HTTPClient {
	return NewHTTPClient(config.BackendConfig{
		Name:   "test",
		Type:   TypeLocal,
		APIURL: url,
	}, timeout)
}

func testChatRequest() *llm.ChatRequest {
	return &llm.ChatRequest{
		Model:       "test-model",
		Messages:    []llm.ChatMessage{{Role: "user", Content: "hi"}},
		MaxTokens:   16,
		Temperature: 0.5,
	}
}

func TestChatCompletion_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req llm.ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request payload: %v", err)
		}
		json.NewEncoder(w).Encode(llm.ChatResponse{
			ID:    "chatcmpl-1",
			Model: req.Model,
			Choices: []llm.Choice{
				{Message: llm.ChatMessage{Role: "assistant", Content: "hello"}, FinishReason: "stop"},
			},
			Usage: llm.Usage{PromptTokens: 3, CompletionTokens: 2, TotalTokens: 5},
		})
	}))
	defer srv.Close()

	c := clientFor(srv.URL, 5*time.Second)
	resp, err := c.ChatCompletion(context.Background(), testChatRequest())
	if err != nil {
		t.Fatalf("ChatCompletion: %v", err)
	}
	if resp.ID != "chatcmpl-1" || len(resp.Choices) != 1 {
		t.Errorf("unexpected response: %+v", resp)
	}
	if resp.Usage.TotalTokens != 5 {
		t.Errorf("usage not forwarded: %+v", resp.Usage)
	}
}

func TestChatCompletion_BadStatusIsProtocolError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := clientFor(srv.URL, 5*time.Second)
	_, err := c.ChatCompletion(context.Background(), testChatRequest())

	var protoErr *ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("expected ProtocolError, got %v", err)
	}
	if protoErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d, want 500", protoErr.StatusCode)
	}
}

func TestChatCompletion_BadJSONIsProtocolError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json at all"))
	}))
	defer srv.Close()

	c := clientFor(srv.URL, 5*time.Second)
	_, err := c.ChatCompletion(context.Background(), testChatRequest())

	var protoErr *ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("expected ProtocolError, got %v", err)
	}
}

func TestChatCompletion_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listening anymore

	c := clientFor(srv.URL, time.Second)
	_, err := c.ChatCompletion(context.Background(), testChatRequest())

	var connErr *ConnectionError
	if !errors.As(err, &connErr) {
		t.Fatalf("expected ConnectionError, got %v", err)
	}
}

func TestChatCompletion_Timeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	c := clientFor(srv.URL, 100*time.Millisecond)
	_, err := c.ChatCompletion(context.Background(), testChatRequest())

	var timeoutErr *TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("expected TimeoutError, got %v", err)
	}
}

func TestChatCompletion_ContextDeadline(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	c := clientFor(srv.URL, 10*time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.ChatCompletion(ctx, testChatRequest())
	var timeoutErr *TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("expected TimeoutError on context deadline, got %v", err)
	}
}

func TestListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"object":"list","data":[{"id":"llama-3"},{"id":"llama-3-70b"}]}`))
	}))
	defer srv.Close()

	c := clientFor(srv.URL, 5*time.Second)
	models, err := c.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if len(models) != 2 || models[0] != "llama-3" {
		t.Errorf("models = %v", models)
	}
}

func TestHealthCheck(t *testing.T) {
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"object":"list","data":[]}`))
	}))
	defer up.Close()

	if !clientFor(up.URL, 5*time.Second).HealthCheck(context.Background()) {
		t.Errorf("expected healthy for responsive server")
	}

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	down.Close()
	if clientFor(down.URL, time.Second).HealthCheck(context.Background()) {
		t.Errorf("expected unhealthy for unreachable server")
	}
}

func TestAPIKeyHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q, want bearer token", got)
		}
		json.NewEncoder(w).Encode(llm.ChatResponse{ID: "ok"})
	}))
	defer srv.Close()

	c := NewHTTPClient(config.BackendConfig{Name: "cloud", Type: TypeCloud, APIURL: srv.URL, APIKey: "sk-test"}, 5*time.Second)
	if _, err := c.ChatCompletion(context.Background(), testChatRequest()); err != nil {
		t.Fatalf("ChatCompletion: %v", err)
	}
}

func TestClose_Idempotent(t *testing.T) {
	c := clientFor("http://127.0.0.1:1", time.Second)
	if err := c.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestBaseURLDerivation(t *testing.T) {
	hostPort := config.BackendConfig{Host: "10.0.0.5", Port: 8081}
	if got := hostPort.BaseURL(); got != "http://10.0.0.5:8081" {
		t.Errorf("BaseURL = %q", got)
	}
	withURL := config.BackendConfig{Host: "ignored", Port: 1, APIURL: "https://api.deepseek.com"}
	if got := withURL.BaseURL(); got != "https://api.deepseek.com" {
		t.Errorf("BaseURL = %q, api_url should win", got)
	}
}
