package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"llm-gateway/internal/api"
	"llm-gateway/internal/backend"
	"llm-gateway/internal/cache"
	"llm-gateway/internal/config"
	"llm-gateway/internal/gateway"
	"llm-gateway/internal/history"
	"llm-gateway/internal/routing"
)

func main() {
	configPath := "config.json"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	store, err := history.Open(cfg.Sqlite.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "History DB error: %v\n", err)
		os.Exit(1)
	}

	registry := backend.NewRegistry(cfg)
	router := routing.NewRouter(registry)

	manager := gateway.New(cfg, registry, router,
		gateway.WithCompletionFunc(history.Recorder(store)))
	manager.Start()

	var respCache *cache.ResponseCache
	if cfg.Redis.Enabled {
		rdb := cache.NewClient(cfg)
		respCache = cache.NewResponseCache(rdb, cfg.CacheTTL())
		log.Printf("[Main] Response cache enabled (redis %s, ttl %s)", cfg.Redis.Addr, cfg.CacheTTL())
	} else {
		log.Printf("[Main] Response cache disabled")
	}

	r := api.SetupRouter(cfg, api.Deps{
		Manager:  manager,
		Registry: registry,
		History:  store,
		Cache:    respCache,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		fmt.Printf("Starting gateway on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("[Main] Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("[Main] HTTP shutdown error: %v", err)
	}
	manager.Stop()
	log.Printf("[Main] Shutdown complete")
}
