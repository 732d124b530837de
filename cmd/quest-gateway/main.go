package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pribylovaa/quest-gateway/internal/clients/backend"
	"github.com/pribylovaa/quest-gateway/internal/config"
	"github.com/pribylovaa/quest-gateway/internal/cookie"
	gwhttp "github.com/pribylovaa/quest-gateway/internal/http"
	"github.com/pribylovaa/quest-gateway/internal/metrics"
	"github.com/pribylovaa/quest-gateway/internal/observability"
	"github.com/pribylovaa/quest-gateway/internal/session"
	"github.com/pribylovaa/quest-gateway/internal/storage"
	"github.com/pribylovaa/quest-gateway/internal/storage/memory"
	"github.com/pribylovaa/quest-gateway/internal/storage/redis"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.Parse()

	// .env необязателен: в проде переменные приходят из окружения.
	_ = godotenv.Load()

	cfg := config.MustLoad(configPath)

	log := setupLogger(cfg.Env)
	slog.SetDefault(log)
	log.Info("starting quest-gateway", "env", cfg.Env)

	if err := observability.InitSentry(cfg.Sentry.DSN, cfg.Env); err != nil {
		log.Warn("sentry_init_failed", slog.String("err", err.Error()))
	}
	defer observability.FlushSentry()

	rootCtx, rootCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer rootCancel()

	m := metrics.New(prometheus.DefaultRegisterer)

	bc, err := backend.New(cfg.Backend, log, m)
	if err != nil {
		log.Error("backend_client_init_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}

	st, err := newStore(rootCtx, cfg)
	if err != nil {
		log.Error("session_store_init_failed", slog.String("store", cfg.Session.Store), slog.String("err", err.Error()))
		os.Exit(1)
	}

	defer func() {
		if cerr := st.Close(); cerr != nil {
			log.Warn("session_store_close_failed", slog.String("err", cerr.Error()))
		}
	}()

	log.Info("session_store_initialized", slog.String("store", cfg.Session.Store))

	reg := session.NewRegistry(bc, st, session.Config{
		AccessTokenTTL: cfg.Auth.AccessTokenTTL,
		Providers:      cfg.Auth.Providers,
		Metrics:        m,
	})

	startSessionJanitor(rootCtx, st, reg, log, cfg.Session.JanitorPeriod)

	opts := gwhttp.Options{
		Logger:        log,
		Timeout:       cfg.Timeouts.Service,
		MaxImageBytes: cfg.Upload.MaxImageBytes,
		PagesDir:      cfg.Pages.Dir,
	}

	appHandler := gwhttp.NewRouter(reg, cookie.New(cfg.Session), opts)

	var ready int32 // 0 - not ready; 1 - ready

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if atomic.LoadInt32(&ready) == 1 {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
			return
		}

		http.Error(w, "not ready", http.StatusServiceUnavailable)
	})

	mux.Handle("/metrics", promhttp.Handler())

	mux.Handle("/", appHandler)

	httpAddr := cfg.HTTP.Addr()
	httpSrv := &http.Server{
		Addr:              httpAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ln, err := net.Listen("tcp", httpAddr)
	if err != nil {
		log.Error("http_listen_failed", slog.String("addr", httpAddr), slog.String("err", err.Error()))
		os.Exit(1)
	}

	log.Info("http_listen_start", slog.String("addr", httpAddr))

	serveErrCh := make(chan error, 1)
	go func() {
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrCh <- err
		}
		close(serveErrCh)
	}()

	atomic.StoreInt32(&ready, 1)
	log.Info("gateway_ready")

	select {
	case <-rootCtx.Done():
		log.Info("shutdown_requested")
	case err := <-serveErrCh:
		if err != nil {
			log.Error("http_serve_failed", slog.String("err", err.Error()))
		}
	}

	atomic.StoreInt32(&ready, 0)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http_shutdown_incomplete", slog.String("err", err.Error()))
	} else {
		log.Info("http_stopped")
	}

	log.Info("service_stopped")
}

func setupLogger(env string) *slog.Logger {
	switch env {
	case envLocal:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envDev:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envProd:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}

func newStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.Session.Store {
	case config.StoreMemory:
		return memory.New(cfg.Session.MaxAge), nil
	case config.StoreRedis:
		return redis.New(ctx, cfg.Redis.URL, cfg.Redis.Prefix, cfg.Session.MaxAge)
	default:
		return nil, fmt.Errorf("unknown session store %q", cfg.Session.Store)
	}
}

// startSessionJanitor периодически удаляет истёкшие сессии (если хранилище
// само их не вытесняет) и выгружает из памяти Manager'ы удалённых сессий.
func startSessionJanitor(ctx context.Context, st storage.Store, reg *session.Registry, log *slog.Logger, period time.Duration) {
	if period <= 0 {
		return
	}

	sweeper, _ := st.(storage.Sweeper)

	go func() {
		t := time.NewTicker(period)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				expired, evicted, err := reg.Cleanup(ctx, sweeper)
				if err != nil {
					log.Error("session_janitor_failed", slog.String("err", err.Error()))
					continue
				}
				if expired > 0 || evicted > 0 {
					log.Debug("session_janitor_done", slog.Int("expired", expired), slog.Int("evicted", evicted))
				}
			}
		}
	}()
}
