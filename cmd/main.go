package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "time/tzdata"

	"tableorder-service/internal/aggregator"
	"tableorder-service/internal/handler"
	mid "tableorder-service/internal/middleware"
	"tableorder-service/internal/service"
	"tableorder-service/pkg/bridge"
	"tableorder-service/pkg/config"
	"tableorder-service/pkg/database"
	"tableorder-service/pkg/jwtutil"
	"tableorder-service/pkg/logger"
	"tableorder-service/pkg/messaging"
	"tableorder-service/prometheus"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	appConfig, err := config.Load("tableorder-service")
	if err != nil {
		// Can't use structured logger yet since it's not initialized
		panic("Failed to load configuration: " + err.Error())
	}

	if err := logger.InitLogger(&logger.LogConfig{
		Level:       appConfig.Log.Level,
		Environment: appConfig.Server.Env,
		ServiceName: appConfig.ServiceName,
	}); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	log := logger.GetLogger()
	defer log.Sync()

	log.Info("Starting tableorder-service", appConfig.LogConfig()...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(logger.WithContext(ctx, log), appConfig); err != nil {
		log.Fatal("Service stopped with error", zap.Error(err))
	}
	log.Info("Service stopped")
}

func run(ctx context.Context, appConfig *config.Config) error {
	log := logger.FromContext(ctx)

	prometheus.InitMetrics(appConfig)
	log.Info("Prometheus metrics initialized", zap.String("metrics_prefix", appConfig.Metrics.Prefix))

	db, err := database.InitDB(&appConfig.DB)
	if err != nil {
		return err
	}
	log.Info("Database connection established")

	events, closeEvents := newPublisher(appConfig, log)
	defer closeEvents()

	numbers, err := service.NewDailySequence(appConfig.Order.DefaultTimezone)
	if err != nil {
		return err
	}
	sessions := service.NewSessionManager(db, appConfig.Session)
	orders := service.NewOrderService(service.OrderServiceConfig{
		DB:             db,
		Sessions:       sessions,
		Numbers:        numbers,
		Catalog:        service.NewGormCatalog(db),
		Settings:       service.NewGormSettings(db),
		Events:         events,
		NumberAttempts: appConfig.Order.NumberAttempts,
	})
	engine := aggregator.NewEngine(aggregator.EngineConfig{
		DB:              db,
		Bridge:          bridge.NewClient(&appConfig.Bridge, log.Named("bridge")),
		Orders:          orders,
		Interval:        appConfig.Bridge.PollInterval,
		DefaultPrepTime: appConfig.Bridge.DefaultPrepTime,
	})

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(mid.RequestIDMiddleware)
	e.Use(logger.Middleware())
	e.Use(mid.MetricsMiddleware)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	handler.RegisterRoutes(e, handler.Dependencies{
		DB:           db,
		Orders:       orders,
		Tables:       service.NewTableService(db, sessions),
		Online:       engine,
		JWT:          jwtutil.NewJWTUtil(&jwtutil.JWTConfig{SigningKey: appConfig.JWT.SigningKey, ExpirationHours: appConfig.JWT.ExpirationHours}),
		BridgeSecret: appConfig.Bridge.WebhookSecret,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		port := appConfig.Server.Port
		log.Info("Starting server", zap.String("port", port))
		if err := e.Start(":" + port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if appConfig.Bridge.Enabled {
		g.Go(func() error {
			engine.Run(gctx)
			return nil
		})
	} else {
		log.Info("Aggregator sync disabled")
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// newPublisher connects the order event publisher. Without a broker URL, or when the
// broker is unreachable at startup, events are dropped.
func newPublisher(appConfig *config.Config, log *zap.Logger) (messaging.Publisher, func()) {
	if appConfig.AMQP.URL == "" {
		log.Info("Order events disabled")
		return messaging.NoopPublisher{}, func() {}
	}
	publisher, err := messaging.NewAMQPPublisher(appConfig.AMQP.URL, appConfig.AMQP.Exchange)
	if err != nil {
		log.Warn("Order event broker unavailable, events disabled", zap.Error(err))
		return messaging.NoopPublisher{}, func() {}
	}
	log.Info("Order events enabled", zap.String("exchange", appConfig.AMQP.Exchange))
	return publisher, func() {
		if err := publisher.Close(); err != nil {
			log.Warn("Failed to close order event publisher", zap.Error(err))
		}
	}
}
