package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// BackendConfig describes one inference backend entry
type BackendConfig struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
	Type    string `json:"type"`
	Host    string `json:"host"`
	Port    int    `json:"port"`
	APIURL  string `json:"api_url"`
	APIKey  string `json:"api_key"`
	Model   string `json:"model"`
}

// BaseURL returns the endpoint root: api_url wins, else host+port
func (b BackendConfig) BaseURL() string {
	if b.APIURL != "" {
		return b.APIURL
	}
	return fmt.Sprintf("http://%s:%d", b.Host, b.Port)
}

// GatewayConfig controls queue behavior
type GatewayConfig struct {
	MaxQueueSize          int `json:"max_queue_size"`
	RequestTimeoutSeconds int `json:"request_timeout_seconds"`
	MaxConcurrentRequests int `json:"max_concurrent_requests"`
}

type Config struct {
	Server struct {
		Host   string `json:"host"`
		Port   int    `json:"port"`
		APIKey string `json:"api_key"`
	} `json:"server"`
	Gateway        GatewayConfig   `json:"gateway"`
	Backends       []BackendConfig `json:"backends"`
	DefaultBackend string          `json:"default_backend"`
	// Legacy single-endpoint settings, used as the implicit local
	// fallback when no backend entries survive filtering
	LLM struct {
		Host  string `json:"host"`
		Port  int    `json:"port"`
		Model string `json:"model"`
	} `json:"llm"`
	Redis struct {
		Enabled         bool   `json:"enabled"`
		Addr            string `json:"addr"`
		Password        string `json:"password"`
		DB              int    `json:"db"`
		CacheTTLSeconds int    `json:"cache_ttl_seconds"`
	} `json:"redis"`
	Sqlite struct {
		Path string `json:"path"`
	} `json:"sqlite"`
}

// LoadConfig reads a JSON config file from disk. The returned struct is
// passed explicitly to every constructor that needs it.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var c Config
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("invalid config format: %w", err)
	}
	c.applyDefaults()
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Gateway.MaxQueueSize <= 0 {
		c.Gateway.MaxQueueSize = 100
	}
	if c.Gateway.RequestTimeoutSeconds <= 0 {
		c.Gateway.RequestTimeoutSeconds = 300
	}
	if c.Gateway.MaxConcurrentRequests <= 0 {
		c.Gateway.MaxConcurrentRequests = 1
	}
	if c.LLM.Host == "" {
		c.LLM.Host = "127.0.0.1"
	}
	if c.LLM.Port == 0 {
		c.LLM.Port = 8081
	}
	if c.Redis.CacheTTLSeconds <= 0 {
		c.Redis.CacheTTLSeconds = 300
	}
	if c.Sqlite.Path == "" {
		c.Sqlite.Path = "gateway.db"
	}
}

// RequestTimeout is the per-submit wait bound
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Gateway.RequestTimeoutSeconds) * time.Second
}

// CacheTTL is how long cached responses stay valid
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Redis.CacheTTLSeconds) * time.Second
}
