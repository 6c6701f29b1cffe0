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

	"golang.org/x/sync/errgroup"

	"rollcall/internal/platform/config"
	"rollcall/internal/platform/httpserver"
	"rollcall/internal/platform/logger"
	"rollcall/internal/platform/metrics"
	ratelimit "rollcall/internal/ratelimit/middleware"
	"rollcall/internal/ratelimit/models"
	"rollcall/internal/student/handler"
	"rollcall/internal/student/identity"
	"rollcall/internal/student/service"
	"rollcall/pkg/platform/audit/publisher"
)

// main loads configuration and keeps the process lifecycle small. Wiring
// lives in run and wiring.go; business logic lives in internal packages.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Server.IsDevelopment())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited", "error", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	m := metrics.New()

	verifier, err := newVerifier(ctx, cfg.Token)
	if err != nil {
		return err
	}

	deps, err := openDependencies(ctx, cfg, log, m)
	if err != nil {
		return err
	}
	defer deps.close(log)

	auditPublisher := publisher.NewPublisher(deps.auditSink,
		publisher.WithAsyncBuffer(cfg.Server.AuditBufferSize),
		publisher.WithLogger(log),
		publisher.WithDropRecorder(m),
	)
	defer func() { _ = auditPublisher.Close() }()

	students, err := service.New(deps.profiles, verifier,
		service.WithLogger(log),
		service.WithAuditPublisher(auditPublisher),
		service.WithMetrics(m),
		service.WithParser(identity.NewParser(cfg.Identity.Domain)),
	)
	if err != nil {
		return fmt.Errorf("student service: %w", err)
	}

	limiter := ratelimit.New(deps.buckets, log,
		ratelimit.WithMetrics(m),
		ratelimit.WithDisabled(!cfg.RateLimit.Enabled),
	)
	opts := []handler.Option{
		handler.WithDevelopmentErrors(cfg.Server.IsDevelopment()),
		handler.WithSignInLimit(limiter.RateLimitIP("POST /auth/verify", models.Limit{
			RequestsPerWindow: cfg.RateLimit.SignInRequests,
			Window:            cfg.RateLimit.Window,
		})),
	}
	if cfg.Server.RequireOwnerToken {
		opts = append(opts, handler.WithOwnerVerifier(verifier))
	}
	studentHandler := handler.New(students, log, opts...)

	srv := httpserver.New(cfg.Server.Addr, newRouter(cfg.Server, log, m, deps.checks, studentHandler))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting rollcall",
			"addr", cfg.Server.Addr,
			"store", cfg.Store.Backend,
			"verifier", cfg.Token.Verifier,
			"domain", cfg.Identity.Domain,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})
	return g.Wait()
}
