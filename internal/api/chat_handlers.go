package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"llm-gateway/internal/backend"
	"llm-gateway/internal/cache"
	"llm-gateway/internal/gateway"
	"llm-gateway/internal/llm"
	"llm-gateway/internal/routing"
)

const (
	defaultMaxTokens   = 1024
	maxTokensCeiling   = 8192
	defaultTemperature = 0.7
)

// chatCompletionBody is the OpenAI chat request plus gateway extensions.
// Pointers distinguish "absent" from zero for the bounded numeric fields.
type chatCompletionBody struct {
	Model       string            `json:"model"`
	Messages    []llm.ChatMessage `json:"messages"`
	MaxTokens   *int              `json:"max_tokens"`
	Temperature *float64          `json:"temperature"`
	Priority    string            `json:"priority"`
	Complexity  string            `json:"complexity"`
	Backend     string            `json:"backend"`
}

// POST /v1/chat/completions
func ChatCompletionsHandler(mgr *gateway.QueueManager, respCache *cache.ResponseCache) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body chatCompletionBody
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if len(body.Messages) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "messages must not be empty"})
			return
		}

		maxTokens := defaultMaxTokens
		if body.MaxTokens != nil {
			maxTokens = *body.MaxTokens
		}
		if maxTokens < 1 || maxTokens > maxTokensCeiling {
			c.JSON(http.StatusBadRequest, gin.H{"error": "max_tokens must be between 1 and 8192"})
			return
		}

		temperature := defaultTemperature
		if body.Temperature != nil {
			temperature = *body.Temperature
		}
		if temperature < 0.0 || temperature > 2.0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "temperature must be between 0.0 and 2.0"})
			return
		}

		// Headers work as a fallback for clients that cannot extend the body
		priorityTag := body.Priority
		if priorityTag == "" {
			priorityTag = c.GetHeader("X-Priority")
		}
		complexity := body.Complexity
		if complexity == "" {
			complexity = c.GetHeader("X-Complexity")
		}
		backendName := body.Backend
		if backendName == "" {
			backendName = c.GetHeader("X-Backend")
		}

		req := &llm.ChatRequest{
			Model:       body.Model,
			Messages:    body.Messages,
			MaxTokens:   maxTokens,
			Temperature: temperature,
		}

		if respCache != nil {
			if resp, hit := respCache.Get(c.Request.Context(), req); hit {
				c.Header("X-Cache", "hit")
				c.JSON(http.StatusOK, resp)
				return
			}
		}

		resp, err := mgr.Submit(c.Request.Context(), req, llm.ParsePriority(priorityTag), gateway.SubmitOptions{
			Backend:    backendName,
			Complexity: complexity,
		})
		if err != nil {
			status, msg := mapSubmitError(err)
			c.JSON(status, gin.H{"error": msg})
			return
		}

		if respCache != nil {
			respCache.Set(c.Request.Context(), req, resp)
		}
		c.JSON(http.StatusOK, resp)
	}
}

// mapSubmitError translates the gateway error taxonomy to HTTP statuses
func mapSubmitError(err error) (int, string) {
	var connErr *backend.ConnectionError
	var timeoutErr *backend.TimeoutError
	var protoErr *backend.ProtocolError

	switch {
	case errors.Is(err, gateway.ErrQueueFull):
		return http.StatusServiceUnavailable, "queue full, retry later"
	case errors.Is(err, gateway.ErrNotRunning):
		return http.StatusServiceUnavailable, "gateway not running"
	case errors.Is(err, gateway.ErrRequestTimeout):
		return http.StatusGatewayTimeout, "request timed out"
	case errors.Is(err, routing.ErrUnknownBackend),
		errors.Is(err, backend.ErrNotConfigured):
		return http.StatusBadRequest, err.Error()
	case errors.As(err, &timeoutErr):
		return http.StatusGatewayTimeout, err.Error()
	case errors.As(err, &connErr):
		return http.StatusBadGateway, err.Error()
	case errors.As(err, &protoErr):
		return http.StatusBadGateway, err.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
