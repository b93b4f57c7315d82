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

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"golang.org/x/net/http2"
	"golang.org/x/sync/errgroup"

	"kosera-ai-service/internal/adapter/embed_http"
	"kosera-ai-service/internal/di"
	"kosera-ai-service/internal/infra/config"
	"kosera-ai-service/internal/infra/logger"
	"kosera-ai-service/internal/infra/otel"
	appmiddleware "kosera-ai-service/internal/middleware"
)

func main() {
	// Handle healthcheck subcommand (for Docker healthcheck in distroless image)
	if len(os.Args) > 1 && os.Args[1] == "healthcheck" {
		if err := runHealthcheck(); err != nil {
			fmt.Fprintf(os.Stderr, "Healthcheck failed: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	otelCfg := otel.ConfigFromEnv()
	otelShutdown, err := otel.InitProvider(ctx, otelCfg)
	if err != nil {
		slog.Warn("failed to initialize OpenTelemetry, continuing without tracing", "error", err)
		otelCfg.Enabled = false
		otelShutdown = func(context.Context) error { return nil }
	}

	log := logger.NewWithOTel(otelCfg.Enabled)

	cfg, err := config.Load()
	if err != nil {
		log.ErrorContext(ctx, "failed to load configuration", "error", err)
		os.Exit(1)
	}

	log.InfoContext(ctx, "configuration loaded",
		"port", cfg.Port,
		"model", cfg.Model.Name,
		"backend", cfg.Model.Backend,
		"h2c", cfg.HTTP.H2C,
		"dimension", cfg.Model.Dimension,
		"max_batch_size", cfg.Inference.MaxBatchSize,
	)

	comps, err := di.NewApplicationComponents(cfg, log)
	if err != nil {
		log.ErrorContext(ctx, "failed to wire application", "error", err)
		os.Exit(1)
	}

	// The server accepts traffic while the model loads; embed requests get 503
	// until readiness flips.
	go func() {
		loadCtx, cancel := context.WithTimeout(ctx, cfg.Model.LoadTimeout)
		defer cancel()
		_ = comps.Handle.Load(loadCtx, comps.Loader)
	}()

	e := newEcho(cfg, otelCfg, log)

	var embedMiddleware []echo.MiddlewareFunc
	if comps.RateLimiter != nil {
		embedMiddleware = append(embedMiddleware, comps.RateLimiter.Middleware())
	}
	embed_http.RegisterRoutes(e, comps.Handler, embedMiddleware...)

	address := fmt.Sprintf(":%s", cfg.Port)
	log.InfoContext(ctx, "starting embedding server", "address", address)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		if cfg.HTTP.H2C {
			err = e.StartH2CServer(address, &http2.Server{})
		} else {
			err = e.Start(address)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		log.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		err := e.Shutdown(shutdownCtx)
		if comps.RateLimiter != nil {
			comps.RateLimiter.Stop()
		}
		return errors.Join(err, comps.Handle.Close())
	})

	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return otelShutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	log.Info("server exited properly")
}

func newEcho(cfg *config.Config, otelCfg otel.Config, log *slog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = embed_http.NewErrorHandler(log)

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string { return uuid.NewString() },
	}))

	if otelCfg.Enabled {
		e.Use(otelecho.Middleware(otelCfg.ServiceName))
		e.Use(appmiddleware.OTelStatusMiddleware())
	}

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			switch c.Request().URL.Path {
			case "/health", "/healthz", "/readyz", "/metrics":
				return true
			}
			return false
		},
		LogStatus:    true,
		LogURI:       true,
		LogError:     true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			rctx := c.Request().Context()
			if v.Error == nil {
				log.InfoContext(rctx, "request completed",
					"method", v.Method,
					"uri", v.URI,
					"status", v.Status,
					"request_id", v.RequestID,
					"latency_ms", v.Latency.Milliseconds())
			} else {
				log.WarnContext(rctx, "request failed",
					"method", v.Method,
					"uri", v.URI,
					"status", v.Status,
					"request_id", v.RequestID,
					"latency_ms", v.Latency.Milliseconds(),
					"error", v.Error.Error())
			}
			return nil
		},
	}))

	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.HTTP.CORSAllowOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderXRequestID},
	}))
	e.Use(middleware.BodyLimit(cfg.HTTP.BodyLimit))

	return e
}

// runHealthcheck performs a health check against the local server.
func runHealthcheck() error {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8000"
	}

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://127.0.0.1:%s/health", port))
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health endpoint returned status: %d", resp.StatusCode)
	}
	return nil
}
