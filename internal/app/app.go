package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/appmart/checkout-core/internal/backendclient"
	"github.com/appmart/checkout-core/internal/domain/checkout"
	"github.com/appmart/checkout-core/internal/handler"
	"github.com/appmart/checkout-core/internal/kv"
	"github.com/appmart/checkout-core/internal/observer"
	"github.com/appmart/checkout-core/internal/storage/postgres"
	redisstore "github.com/appmart/checkout-core/internal/storage/redis"
	"github.com/appmart/checkout-core/pkg/health"
	"github.com/appmart/checkout-core/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server and the
// reconciliation consumer, recovers any pending reconciliation, and handles
// graceful shutdown. It is the single wiring point of the service.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("storage", cfg.Storage.Driver),
	)

	healthSvc := health.New()

	// Durable state store.
	var store kv.Store
	switch cfg.Storage.Driver {
	case "redis":
		client, err := redisstore.NewClient(ctx, cfg.Storage.RedisURL)
		if err != nil {
			return errors.Wrap(err, "connect redis")
		}
		defer func() { _ = client.Close() }()

		store = redisstore.NewKV(client, cfg.Storage.KeyPrefix)
		healthSvc.AddReadinessCheck("redis", 5*time.Second, func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
	case "postgres":
		pool, err := postgres.NewPool(ctx, cfg.Storage.DatabaseURL)
		if err != nil {
			return errors.Wrap(err, "create db pool")
		}
		defer pool.Close()

		if err := postgres.RunMigrations(ctx, pool); err != nil {
			return errors.Wrap(err, "run migrations")
		}
		store = postgres.NewKV(pool)
		healthSvc.AddReadinessCheck("postgres", 5*time.Second, pool.Ping)
	default:
		store = kv.NewMemory()
	}

	// Collaborator clients.
	payments := backendclient.NewPaymentClient(cfg.PaymentBackendURL)
	orders := backendclient.NewOrderClient(cfg.OrderBackendURL)
	cart := backendclient.NewCartClient(cfg.CartBackendURL)

	// Reconciliation core.
	intents := checkout.NewIntentStore(store)
	finalizer := checkout.NewOrderFinalizer(intents, orders, cart)
	canceller := checkout.NewCancellationHandler(intents)
	gate := checkout.NewGate(finalizer, canceller)
	pollers := observer.NewPollerSet(ctx, gate, intents, payments, cfg.Poll.Interval)
	flow := checkout.NewFlow(
		checkout.NewCodeFactory(),
		intents,
		checkout.NewPaymentInitiator(payments),
		cart,
		gate,
		finalizer,
		pollers,
	)
	surface := observer.NewSurface(gate, intents)
	resume := observer.NewResumeWatcher(gate, intents, payments)

	// HTTP surface.
	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	handler.New(flow, surface, resume).Register(mux)

	metrics, err := httpmiddleware.Metrics(m.MeterProvider())
	if err != nil {
		return errors.Wrap(err, "create metrics middleware")
	}

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			metrics,
			httpmiddleware.LogRequests(),
		),
	}

	g, gctx := errgroup.WithContext(ctx)

	// Single consumer of accepted reconciliation reports.
	g.Go(func() error {
		if err := gate.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return errors.Wrap(err, "gate")
		}
		return nil
	})

	g.Go(func() error {
		// Restart observation for a reconciliation left pending by a crash,
		// then open for traffic.
		if code, ok, err := flow.Recover(gctx); err != nil {
			lg.Warn("Pending reconciliation recovery failed", zap.Error(err))
		} else if ok {
			lg.Info("Resumed pending reconciliation", zap.String("order_code", code))
		}
		healthSvc.SetReady(true)
		return nil
	})

	// Graceful shutdown: flip readiness, drain, stop the server.
	g.Go(func() error {
		<-gctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		return nil
	})

	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})

	err = g.Wait()
	pollers.Wait()
	return err
}
