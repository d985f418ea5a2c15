package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/acmeshop/storefront/internal/broker"
	"github.com/acmeshop/storefront/internal/domain/order"
	"github.com/acmeshop/storefront/internal/httpapi"
	"github.com/acmeshop/storefront/internal/repository"
	"github.com/acmeshop/storefront/pkg/health"
	"github.com/acmeshop/storefront/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server and the fulfillment
// subscriber, and handles graceful shutdown. It is the single wiring point
// for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	defer healthSvc.Stop()

	// Broker transport.
	kafka, err := broker.NewKafka(ctx, broker.KafkaConfig{
		Seeds:    cfg.Broker.Seeds,
		Group:    cfg.Broker.Group,
		ClientID: "storefront-api",
		Topics:   []string{cfg.Broker.CompletionTopic},
	})
	if err != nil {
		return errors.Wrap(err, "create broker client")
	}
	defer kafka.Close()

	// Order coordinator: correlation store, completion subscriber, service.
	catalog := repository.NewProductRepository(pool)
	store := order.NewStore()
	subscriber := order.NewSubscriber(store, kafka, cfg.Broker.CompletionTopic)
	orderSvc := order.NewService(
		catalog,
		kafka,
		store,
		cfg.Broker.RequestTopic,
		cfg.Fulfillment.WaitTimeout,
	)

	// Background work: janitor sweep and the single shared subscription.
	bgCtx, stopBg := context.WithCancel(zctx.Base(ctx, lg))
	defer stopBg()
	g, gctx := errgroup.WithContext(bgCtx)
	g.Go(func() error {
		store.RunJanitor(gctx,
			cfg.Fulfillment.JanitorInterval,
			cfg.Fulfillment.CompletedTTL,
			cfg.Fulfillment.PendingTTL,
		)
		return nil
	})
	g.Go(func() error {
		// A dead subscription is not fatal for the rest of the service:
		// submissions then always fall through to the pending path.
		if err := subscriber.Run(gctx); err != nil {
			lg.Error("completion subscription stopped", zap.Error(err))
		}
		return nil
	})

	// HTTP surface.
	h := httpapi.NewHandler(catalog, orderSvc)
	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/api/", h.Routes())

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		// Write timeout must exceed the fulfillment wait deadline, or inline
		// completions get cut off mid-response.
		WriteTimeout:   cfg.Fulfillment.WaitTimeout + 10*time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
		Addr:           cfg.Addr,
		Handler: httpmiddleware.Wrap(
			otelhttp.NewHandler(mux, "storefront-api",
				otelhttp.WithTracerProvider(m.TracerProvider()),
				otelhttp.WithMeterProvider(m.MeterProvider()),
			),
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.LogRequests(),
		),
	}

	healthSvc.SetReady(true)

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone

	stopBg()
	return g.Wait()
}
