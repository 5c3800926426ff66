package api

import (
	"github.com/gin-gonic/gin"

	"llm-gateway/internal/backend"
	"llm-gateway/internal/cache"
	"llm-gateway/internal/config"
	"llm-gateway/internal/gateway"
	"llm-gateway/internal/history"
)

// Deps bundles what the handlers need. History and cache are optional.
type Deps struct {
	Manager  *gateway.QueueManager
	Registry *backend.Registry
	History  *history.Store
	Cache    *cache.ResponseCache
}

func SetupRouter(cfg *config.Config, deps Deps) *gin.Engine {
	r := gin.Default()

	r.GET("/health", healthHandler)
	r.GET("/health/backends", backendHealthHandler(deps.Registry))

	authed := r.Group("/")
	if cfg.Server.APIKey != "" {
		authed.Use(apiKeyMiddleware(cfg.Server.APIKey))
	}
	{
		authed.POST("/v1/chat/completions", ChatCompletionsHandler(deps.Manager, deps.Cache))
		authed.GET("/v1/models", modelsHandler(deps.Registry))
		authed.GET("/stats", statsHandler(deps.Manager, deps.Registry))
		authed.GET("/history", historyHandler(deps.History))
	}

	return r
}
