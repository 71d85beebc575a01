package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"edugate.org/internal/config"
	"edugate.org/internal/httpapi"
	"edugate.org/internal/obs"
	"edugate.org/internal/ratelimit"
	"edugate.org/internal/router"
	"edugate.org/internal/token"
)

var (
	version = "0.4.1"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Shared stores when Redis is configured, in-process maps otherwise.
	var (
		rdb          *redis.Client
		revocations  token.RevocationStore
		counterStore ratelimit.CounterStore
	)
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, pingCancel := context.WithTimeout(ctx, 2*time.Second)
		err := rdb.Ping(pingCtx).Err()
		pingCancel()
		if err != nil {
			log.Fatalf("redis ping: %v", err)
		}
		revocations = token.NewRedisRevocations(rdb)
		counterStore = ratelimit.NewRedisStore(rdb)
	} else {
		memRevocations := token.NewMemoryRevocations()
		memRevocations.StartJanitor(ctx, time.Minute)
		revocations = memRevocations

		memCounters := ratelimit.NewMemoryStore()
		memCounters.StartJanitor(ctx, time.Minute)
		counterStore = memCounters
	}

	tokens, err := token.NewService(cfg.AuthSecret,
		token.WithIssuer(cfg.AuthIssuer),
		token.WithAccessTTL(cfg.AccessTTL),
		token.WithRefreshTTL(cfg.RefreshTTL),
		token.WithRevocationStore(revocations),
	)
	if err != nil {
		log.Fatalf("token service: %v", err)
	}

	limiter, err := ratelimit.New(counterStore, cfg.RateLimit, cfg.RateWindow)
	if err != nil {
		log.Fatalf("rate limiter: %v", err)
	}

	routes := router.New()
	for name, baseURL := range cfg.Services {
		routes.RegisterService(name, baseURL)
	}
	if err := router.WithDefaults(routes); err != nil {
		log.Fatalf("route table: %v", err)
	}

	api := httpapi.New(httpapi.Options{
		Tokens:       tokens,
		Limiter:      limiter,
		Router:       routes,
		Probe:        httpapi.ReadyProbe{Redis: rdb},
		Version:      version,
		RateStrategy: cfg.RateStrategy,
		AuthExclude:  cfg.AuthExclude,
	})
	defer api.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting edugate-gateway %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Println("Stopped")
}
