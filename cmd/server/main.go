package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hls-proxy/internal/platform/config"
	"hls-proxy/internal/platform/logger"
	"hls-proxy/internal/platform/metrics"
	"hls-proxy/internal/proxy"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()
	cfg := config.FromEnv()

	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	met := metrics.New()

	fetcher := proxy.NewFetcher(cfg.UpstreamTimeout, cfg.UpstreamMaxBodyBytes)
	cache, err := proxy.NewSegmentCache(fetcher, proxy.CacheOptions{
		MaxBytes:     cfg.CacheMaxBytes,
		TTL:          cfg.CacheTTL,
		Workers:      cfg.PrefetchWorkers,
		FetchTimeout: cfg.UpstreamTimeout,
	}, log, met)
	if err != nil {
		log.Error("segment cache init failed", "error", err)
		os.Exit(1)
	}

	sessions := proxy.NewSessionStore(cfg.SessionTimeout, log)
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	go sessions.Run(sweepCtx, cfg.SessionSweepInterval)

	svc := proxy.NewService(fetcher, cache, sessions, log, met)
	h := proxy.NewHandler(svc, proxy.NewAuthorizer(cfg.ProxyToken), log, cfg.Version)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "HEAD", "POST", "PUT", "PATCH", "DELETE"},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"*"},
		MaxAge:         300,
	}))
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		met.Handler(func() { met.SetActiveSessions(sessions.Len()) }).ServeHTTP(w, r)
	})
	r.Get("/m3u8-proxy", h.Playlist)
	r.Get("/ts-proxy", h.Segment)
	r.Head("/ts-proxy", h.Segment)
	r.HandleFunc("/", h.Forward)

	addr := ":" + cfg.Port
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("server starting",
		"port", cfg.Port,
		"version", cfg.Version,
		"cache_max_bytes", cfg.CacheMaxBytes,
		"prefetch_workers", cfg.PrefetchWorkers,
		"session_timeout", cfg.SessionTimeout.String(),
		"log_level", cfg.LogLevel,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining connections")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	stopSweep()
	cache.Close()

	log.Info("server stopped")
}
