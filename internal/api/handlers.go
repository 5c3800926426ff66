package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"llm-gateway/internal/backend"
	"llm-gateway/internal/gateway"
	"llm-gateway/internal/history"
)

// GET /health
func healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// GET /health/backends
func backendHealthHandler(reg *backend.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		results := reg.HealthCheckAll(ctx)
		healthy := true
		for _, ok := range results {
			if !ok {
				healthy = false
				break
			}
		}

		status := http.StatusOK
		if !healthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"backends": results,
			"default":  reg.DefaultBackend(),
		})
	}
}

// GET /stats
func statsHandler(mgr *gateway.QueueManager, reg *backend.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"stats":              mgr.GetStats(),
			"available_backends": reg.AvailableBackends(),
			"default_backend":    reg.DefaultBackend(),
		})
	}
}

// GET /v1/models — aggregated model list across backends, OpenAI shape
func modelsHandler(reg *backend.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		type modelEntry struct {
			ID      string `json:"id"`
			Object  string `json:"object"`
			OwnedBy string `json:"owned_by"`
		}
		data := []modelEntry{}

		for _, name := range reg.AvailableBackends() {
			client, err := reg.GetClient(name)
			if err != nil {
				continue
			}
			models, err := client.ListModels(ctx)
			if err != nil {
				// One offline backend must not hide the others
				continue
			}
			for _, id := range models {
				data = append(data, modelEntry{ID: id, Object: "model", OwnedBy: name})
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"object": "list",
			"data":   data,
		})
	}
}

// GET /history?limit=N
func historyHandler(store *history.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if store == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "request history disabled"})
			return
		}
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		entries, err := store.Recent(limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load history"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"requests": entries})
	}
}

// apiKeyMiddleware enforces a static bearer token when one is configured
func apiKeyMiddleware(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if header == "" || token == header || token != key {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid API key"})
			return
		}
		c.Next()
	}
}
