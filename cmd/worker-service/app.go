package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"logworker/internal/broker"
	"logworker/internal/config"
	"logworker/internal/constants"
	"logworker/internal/logger"
	"logworker/internal/orchestrator"
	"logworker/internal/processing"
	"logworker/internal/push"
	"logworker/internal/redaction"
	"logworker/internal/store"
	"logworker/pkg/bootstrap"
	"logworker/pkg/health"
	"logworker/pkg/metrics"
	"logworker/pkg/models"
	"logworker/pkg/ratelimit"
	"logworker/pkg/tracing"
)

type App struct {
	*bootstrap.Base
	store          store.Store
	orchestrator   *orchestrator.Orchestrator
	limiter        *ratelimit.ClientLimiter
	tracerProvider *tracing.TracerProvider
	server         *http.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName(constants.ServiceName)
	}
	return &App{
		Base: bootstrap.NewBase(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	tp, err := tracing.Init(a.Config.Tracing, constants.ServiceName)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	metrics.Register()

	if err := a.InitDatabases(ctx); err != nil {
		return fmt.Errorf("failed to initialize databases: %w", err)
	}

	st, err := store.New(a.Config.Storage, a.Config.CircuitBreaker, a.Databases.StoreClients())
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	a.store = st

	if err := a.InitDeadLetter(); err != nil {
		return err
	}

	proc := processing.NewProcessor(
		processing.NewSimulator(a.Config.Processing.DelayPerChar),
		redaction.New(),
		a.Logger,
	)
	a.orchestrator = orchestrator.New(proc, a.store, a.DeadLetter, a.Logger, orchestrator.Options{
		MaxConcurrency: a.Config.Processing.MaxConcurrency,
		Timeout:        a.Config.Processing.Timeout,
	})

	if err := a.InitConsumer(); err != nil {
		return err
	}

	a.initHTTPServer()
	return nil
}

func (a *App) initHTTPServer() {
	gin.SetMode(gin.ReleaseMode)

	healthRegistry := health.NewCheckerRegistry()
	a.Databases.RegisterCheckers(healthRegistry)

	if a.Config.Ingress.RateLimit.Enabled {
		a.limiter = ratelimit.NewClientLimiter(a.Config.Ingress.RateLimit)
		a.Logger.Infow("Rate limiting enabled",
			"rps", a.Config.Ingress.RateLimit.RPS,
			"burst", a.Config.Ingress.RateLimit.Burst,
		)
	}

	router := push.NewRouter(push.RouterOptions{
		Handler:     push.NewHandler(a.orchestrator, a.store, a.Logger, a.Config.Server.RequestTimeout),
		Health:      healthRegistry,
		RateLimiter: a.limiter,
		Logger:      a.Logger,
		Tracing:     a.Config.Tracing.Enabled,
		Swagger:     true,
	})

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
	}
}

// consumerHandler labels pull deliveries with the broker type before they reach the orchestrator.
func (a *App) consumerHandler() broker.HandlerFunc {
	handle := a.orchestrator.Func()
	transport := a.Config.Broker.Type
	return func(ctx context.Context, env models.PushEnvelope) error {
		return handle(orchestrator.WithTransport(ctx, transport), env)
	}
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfowCtx(ctx, "HTTP server starting", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	if a.limiter != nil {
		g.Go(func() error {
			a.limiter.Run(gCtx)
			return nil
		})
	}

	if a.Consumer != nil {
		g.Go(func() error {
			a.Logger.InfowCtx(ctx, "Consumer starting",
				"broker", a.Config.Broker.Type,
				"source", broker.Destination(a.Config.Broker),
			)
			if err := a.Consumer.Consume(gCtx, a.consumerHandler()); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("consumer error: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gCtx.Done()
		return a.stopServer()
	})

	err := g.Wait()
	if shutdownErr := a.Shutdown(context.Background()); shutdownErr != nil {
		err = errors.Join(err, shutdownErr)
	}
	return err
}

func (a *App) stopServer() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	return nil
}

// Shutdown runs after the consumer has drained; it closes the remaining clients.
func (a *App) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, constants.ShutdownTimeout)
	defer cancel()

	return a.Base.Shutdown(shutdownCtx, func(ctx context.Context) []error {
		var errs []error

		if a.server != nil {
			if err := a.server.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
			}
		}

		if a.tracerProvider != nil {
			if err := a.tracerProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
			}
		}

		return errs
	})
}
