// Command example-server runs a small HTTP server demonstrating per-client
// rate limiting with the tokenbucket middleware. The storage backend is
// selected via RATE_LIMIT_STORAGE: "memory" (default) or "redis".
package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/dmitrymomot/tokenbucket"
	tbredis "github.com/dmitrymomot/tokenbucket/redis"
)

type config struct {
	Addr            string        `env:"ADDR" envDefault:":8080"`
	Rate            float64       `env:"RATE_LIMIT_RATE" envDefault:"10"`
	Capacity        int64         `env:"RATE_LIMIT_CAPACITY" envDefault:"20"`
	Storage         string        `env:"RATE_LIMIT_STORAGE" envDefault:"memory"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	Redis tbredis.Config
}

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// The .env file is optional; real environment variables win either way.
	_ = godotenv.Load()

	cfg, err := env.ParseAs[config]()
	if err != nil {
		log.Error("failed to parse config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	storage, err := newStorage(ctx, cfg)
	if err != nil {
		log.Error("failed to set up storage", "backend", cfg.Storage, "error", err)
		os.Exit(1)
	}

	limiter, err := tokenbucket.NewLimiter(cfg.Rate, cfg.Capacity, storage)
	if err != nil {
		log.Error("failed to create limiter", "error", err)
		os.Exit(1)
	}

	r := chi.NewRouter()
	r.Use(tokenbucket.Middleware(limiter, clientKey))
	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("pong\n"))
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown failed", "error", err)
		}
	}()

	log.Info("server listening",
		"addr", cfg.Addr,
		"storage", cfg.Storage,
		"rate", cfg.Rate,
		"capacity", cfg.Capacity,
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func newStorage(ctx context.Context, cfg config) (tokenbucket.Storage, error) {
	switch cfg.Storage {
	case "redis":
		client, err := tbredis.Connect(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		return tbredis.NewStorage(client, tbredis.WithTTL(time.Hour)), nil
	default:
		return tokenbucket.NewMemoryStorage(), nil
	}
}

// clientKey buckets requests by client IP, falling back to the raw
// RemoteAddr when it has no port part.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
