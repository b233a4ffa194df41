package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/richxcame/traffic-api/internal/browser"
	"github.com/richxcame/traffic-api/internal/traffic"
	"github.com/richxcame/traffic-api/pkg/cache"
	"github.com/richxcame/traffic-api/pkg/config"
	"github.com/richxcame/traffic-api/pkg/errors"
	"github.com/richxcame/traffic-api/pkg/eventbus"
	"github.com/richxcame/traffic-api/pkg/health"
	"github.com/richxcame/traffic-api/pkg/logger"
	"github.com/richxcame/traffic-api/pkg/middleware"
	redisClient "github.com/richxcame/traffic-api/pkg/redis"
	"github.com/richxcame/traffic-api/pkg/resilience"
	"github.com/richxcame/traffic-api/pkg/tracing"
	"go.uber.org/zap"
)

const (
	serviceName = "traffic-api"
	version     = "1.0.0"

	// breakerService names the upstream in CB_SERVICE_OVERRIDES
	breakerService = "map-directions"
)

func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	if err := logger.Init(cfg.Server.Environment, serviceName); err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("Starting traffic service",
		zap.String("version", version),
		zap.String("environment", cfg.Server.Environment),
	)

	sentryConfig := errors.DefaultSentryConfig()
	sentryConfig.ServerName = serviceName
	sentryConfig.Release = version
	if err := errors.InitSentry(sentryConfig); err != nil {
		logger.Warn("Sentry disabled, continuing without error tracking", zap.Error(err))
	} else {
		defer errors.Flush(2 * time.Second)
		logger.Info("Sentry error tracking initialized")
	}

	tracerCfg := tracing.ConfigFromEnv(serviceName, version, cfg.Server.Environment)
	if _, err := tracing.InitTracer(tracerCfg, logger.Get()); err != nil {
		logger.Warn("Failed to initialize tracer, continuing without tracing", zap.Error(err))
		tracerCfg.Enabled = false
	} else if tracerCfg.Enabled {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracing.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Failed to shutdown tracer", zap.Error(err))
			}
		}()
	}

	loader := browser.NewLoader(cfg.Browser)
	if err := loader.Ping(context.Background()); err != nil {
		logger.Warn("Browser executable not resolved, lookups will report errors", zap.Error(err))
		errors.CaptureErrorWithContext(context.Background(), err,
			map[string]string{"component": "browser", "stage": "startup"},
			map[string]interface{}{"exec_path": cfg.Browser.ExecPath},
		)
	}

	service := traffic.NewService(loader)
	service.SetTimeout(cfg.Browser.Timeout())
	limiter := traffic.NewSessionLimiter(cfg.Browser.MaxSessions)
	service.SetLimiter(limiter)
	logger.Info("Browser sessions configured",
		zap.Duration("timeout", cfg.Browser.Timeout()),
		zap.Int("max_sessions", limiter.Limit()),
	)

	readiness := map[string]health.Checker{
		"browser": health.PingChecker("browser", loader),
	}

	if cfg.Cache.Enabled {
		redis, err := redisClient.NewRedisClient(&cfg.Redis)
		if err != nil {
			logger.Warn("Redis unavailable, result cache disabled", zap.Error(err))
		} else {
			defer redis.Close()
			service.SetCache(cache.NewManager(redis), cfg.Cache.TTL())
			readiness["redis"] = health.PingChecker("redis", health.PingerFunc(redis.Check))
			logger.Info("Result cache enabled",
				zap.String("addr", cfg.Redis.RedisAddr()),
				zap.Duration("ttl", cfg.Cache.TTL()),
			)
		}
	}

	if cfg.Resilience.CircuitBreaker.Enabled {
		cbCfg := cfg.Resilience.CircuitBreaker.SettingsFor(breakerService)
		settings := resilience.BuildSettings(breakerService, cbCfg.IntervalSeconds, cbCfg.TimeoutSeconds, cbCfg.FailureThreshold, cbCfg.SuccessThreshold)
		settings.IsFailure = traffic.CountsAgainstBrowser
		service.SetCircuitBreaker(resilience.NewCircuitBreaker(settings, nil))
		logger.Info("Circuit breaker enabled for browser lookups")
	}

	if cfg.Events.Enabled {
		bus, err := eventbus.New(context.Background(), eventbus.Config{
			URL:        cfg.Events.URL,
			Name:       serviceName,
			StreamName: cfg.Events.StreamName,
		})
		if err != nil {
			logger.Warn("NATS unavailable, lookup events disabled", zap.Error(err))
		} else {
			defer bus.Close()
			service.SetEventPublisher(bus)
			readiness["nats"] = health.PingChecker("nats", health.PingerFunc(func(context.Context) error {
				return bus.Check()
			}))
		}
	}

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.ResponseHeaders())
	router.Use(middleware.RecoveryWithSentry())
	router.Use(middleware.SentryMiddleware())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestLogger(serviceName))
	router.Use(middleware.Metrics(serviceName))
	if tracerCfg.Enabled {
		router.Use(middleware.TracingMiddleware(serviceName))
	}
	router.Use(middleware.ErrorHandler())

	router.GET("/health/ready", health.ReadinessProbe(serviceName, version, readiness))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	traffic.NewHandler(service).RegisterRoutes(router)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("Server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Browser.Timeout()+5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server stopped")
}
