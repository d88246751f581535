package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/castlemilk/pointsledger/internal/app"
	"github.com/castlemilk/pointsledger/internal/auth"
	"github.com/castlemilk/pointsledger/internal/config"
	"github.com/castlemilk/pointsledger/internal/service"
	"github.com/castlemilk/pointsledger/internal/session"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := app.NewLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer backend.Close()

	registry := session.NewRegistry(ctx, backend.Deps(cfg))
	defer registry.Close()

	svc := service.NewLedgerService(registry, service.Options{
		Exporter:        backend.Exporter,
		SchedulerSecret: cfg.Recurring.SchedulerSecret,
	})

	// Debug impersonation runs first so the auth interceptors see its claims.
	interceptors := []connect.Interceptor{auth.DebugAuthInterceptor(cfg.Auth.SkipAuth)}
	if backend.Verifier != nil {
		interceptors = append(interceptors, auth.AuthInterceptor(backend.Verifier, service.ProcessRecurringProcedure))
	} else {
		logger.Info("using mock authentication for local development")
		interceptors = append(interceptors, auth.LocalDevInterceptor())
	}

	path, handler := service.NewLedgerServiceHandler(svc, connect.WithInterceptors(interceptors...))

	mux := http.NewServeMux()
	mux.Handle(path, handler)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:     h2c.NewHandler(newCORS(cfg.CORS).Handler(mux), &http2.Server{}),
		ReadTimeout: cfg.Server.ReadTimeout,
		IdleTimeout: cfg.Server.IdleTimeout,
	}

	if cfg.Recurring.WorkerEnabled {
		go runRecurringWorker(ctx, svc.Processor(), cfg.Recurring.Interval, logger)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "port", cfg.Server.Port, "memory_store", cfg.Store.UseMemory)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server stopped", "live_sessions", registry.Len())
	return nil
}

func newCORS(cfg config.CORSConfig) *cors.Cors {
	return cors.New(cors.Options{
		AllowedOrigins: cfg.Origins(),
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Connect-Protocol-Version",
			"Connect-Timeout-Ms",
			"Content-Type",
			"Grpc-Timeout",
			"User-Agent",
			"X-Grpc-Web",
			"X-User-Agent",
			auth.ImpersonateHeader,
			auth.SchedulerSecretHeader,
		},
		ExposedHeaders: []string{
			"Grpc-Status",
			"Grpc-Message",
			"Grpc-Status-Details-Bin",
			service.ErrorKindHeader,
			service.ErrorMessageHeader,
		},
		AllowCredentials: true,
	})
}

// runRecurringWorker fires due recurring definitions once at start and then
// on every tick until ctx is cancelled.
func runRecurringWorker(ctx context.Context, p *service.RecurringProcessor, interval time.Duration, logger *slog.Logger) {
	logger.Info("recurring worker started", "interval", interval)

	process := func() {
		if _, err := p.ProcessAll(ctx); err != nil && ctx.Err() == nil {
			logger.Error("recurring run failed", "error", err)
		}
	}
	process()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("recurring worker stopped")
			return
		case <-ticker.C:
			process()
		}
	}
}
