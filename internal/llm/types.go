package llm

import "strings"

// Priority levels (just 2). Lower value is served first.
type Priority int

const (
	PriorityHigh Priority = 1 // interactive conversations
	PriorityLow  Priority = 5 // background jobs
)

func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityLow:
		return "low"
	default:
		return "unknown"
	}
}

// ParsePriority maps a caller-supplied tag to a priority class.
// Anything that is not "high" is background work.
func ParsePriority(s string) Priority {
	if strings.EqualFold(strings.TrimSpace(s), "high") {
		return PriorityHigh
	}
	return PriorityLow
}

// Complexity hints a caller can attach to steer routing.
const (
	ComplexityLow      = "low"
	ComplexityHigh     = "high"
	ComplexityUltra    = "ultra"
	ComplexityEinstein = "einstein"
)

// ChatMessage is a single turn in a conversation
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is what callers submit. The gateway never mutates it.
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

// Usage reports token accounting from the backend
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Choice is one completion alternative
type Choice struct {
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

// ChatResponse is the backend's answer, forwarded unaltered to the caller
type ChatResponse struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}
