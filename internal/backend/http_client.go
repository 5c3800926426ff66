package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"llm-gateway/internal/config"
	"llm-gateway/internal/llm"
)

const healthCheckTimeout = 5 * time.Second

// HTTPClient speaks the OpenAI-compatible chat completion protocol that
// local llama.cpp/vLLM servers and the cloud endpoints all expose. One
// implementation covers every configured backend type; only base URL,
// API key and model differ.
type HTTPClient struct {
	name      string
	baseURL   string
	apiKey    string
	client    *http.Client
	closeOnce sync.Once
}

// NewHTTPClient builds a client for one backend entry
func NewHTTPClient(cfg config.BackendConfig, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		name:    cfg.Name,
		baseURL: cfg.BaseURL(),
		apiKey:  cfg.APIKey,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				ResponseHeaderTimeout: timeout,
				IdleConnTimeout:       90 * time.Second,
				MaxIdleConns:          10,
				DisableKeepAlives:     false,
			},
		},
	}
}

// Name returns the backend name this client serves
func (h *HTTPClient) Name() string { return h.name }

// ChatCompletion posts the request to /v1/chat/completions
func (h *HTTPClient) ChatCompletion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, &ProtocolError{Backend: h.name, Err: fmt.Errorf("failed to marshal payload: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		h.baseURL+"/v1/chat/completions", bytes.NewBuffer(payload))
	if err != nil {
		return nil, &ProtocolError{Backend: h.name, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if h.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+h.apiKey)
	}

	httpResp, err := h.client.Do(httpReq)
	if err != nil {
		return nil, h.classifyTransportError(err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &ConnectionError{Backend: h.name, Err: fmt.Errorf("failed to read response: %w", err)}
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, &ProtocolError{
			Backend:    h.name,
			StatusCode: httpResp.StatusCode,
			Err:        fmt.Errorf("unexpected status: %s", truncate(body, 200)),
		}
	}

	var resp llm.ChatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &ProtocolError{Backend: h.name, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return &resp, nil
}

// HealthCheck probes /v1/models with a short deadline. Never errors.
func (h *HTTPClient) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+"/v1/models", nil)
	if err != nil {
		return false
	}
	if h.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.apiKey)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

// ListModels fetches the model list from /v1/models
func (h *HTTPClient) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+"/v1/models", nil)
	if err != nil {
		return nil, &ProtocolError{Backend: h.name, Err: err}
	}
	if h.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.apiKey)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, h.classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &ProtocolError{Backend: h.name, StatusCode: resp.StatusCode, Err: errors.New("unexpected status")}
	}

	var result struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &ProtocolError{Backend: h.name, Err: fmt.Errorf("failed to decode model list: %w", err)}
	}

	models := make([]string, 0, len(result.Data))
	for _, m := range result.Data {
		models = append(models, m.ID)
	}
	return models, nil
}

// Close drops idle connections. Safe to call more than once.
func (h *HTTPClient) Close() error {
	h.closeOnce.Do(func() {
		h.client.CloseIdleConnections()
	})
	return nil
}

func (h *HTTPClient) classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Backend: h.name, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TimeoutError{Backend: h.name, Err: err}
	}
	return &ConnectionError{Backend: h.name, Err: err}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
