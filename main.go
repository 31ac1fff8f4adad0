package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	grpc "google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"messaging-service/internal/auth"
	"messaging-service/internal/clock"
	"messaging-service/internal/config"
	"messaging-service/internal/db"
	grpcclient "messaging-service/internal/grpc"
	"messaging-service/internal/handlers"
	"messaging-service/internal/logger"
	"messaging-service/internal/middleware"
	"messaging-service/internal/notifications"
	"messaging-service/internal/observability"
	"messaging-service/internal/rabbitmq"
	"messaging-service/internal/repositories"
	"messaging-service/internal/service"
	"messaging-service/internal/telemetry"
	"messaging-service/internal/ws"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", os.Getenv("MESSAGING_CONFIG"), "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, zl); err != nil {
		zl.Fatal("service stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, zl *zap.Logger) error {
	shutdownTracing, err := observability.InitTracing(ctx, cfg.Telemetry)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	clk := clock.NewMonotonic(nil)
	conversations, messages, closeStore, err := openStore(ctx, cfg, clk, zl)
	if err != nil {
		return err
	}
	defer closeStore()

	publisher := rabbitmq.NewPublisher(cfg.Notifications.AMQPURL, cfg.Notifications.Exchange, zl.Named("rabbitmq"))
	defer publisher.Close()
	zl.Info("event publisher ready",
		zap.String("mode", rabbitmq.PublisherMode(publisher)),
		zap.String("noop_reason", rabbitmq.PublisherNoopReason(publisher)))
	observability.SetPublisher(publisher)
	audit := telemetry.NewAuditEmitter(publisher, cfg.Notifications.AuditRoutingKey, cfg.Telemetry.ServiceName, cfg.Telemetry.Environment, zl.Named("audit"))

	var sink notifications.Sink = notifications.NewAMQPSink(publisher)
	if cfg.Notifications.Transport == "kafka" {
		kafkaSink := notifications.NewKafkaSink(cfg.Notifications.KafkaBrokers, cfg.Notifications.KafkaTopic)
		defer kafkaSink.Close()
		sink = kafkaSink
	}
	sink = notifications.NewBreakerSink(sink, cfg.Notifications.BreakerMaxFailures, cfg.Notifications.BreakerOpenTimeout, zl.Named("notifications"))

	userConn, err := dial(cfg.Users.GRPCAddr)
	if err != nil {
		return err
	}
	defer userConn.Close()
	users := grpcclient.NewUserClient(userConn, cfg.Users.Timeout)

	var validator middleware.TokenValidator
	if cfg.Auth.Mode == "jwt" {
		validator = auth.NewJWTValidator(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer)
	} else {
		authConn, err := dial(cfg.Auth.GRPCAddr)
		if err != nil {
			return err
		}
		defer authConn.Close()
		validator = grpcclient.NewAuthClient(authConn)
	}

	hub := ws.NewHub(conversations, ws.Options{
		QueueSize:    cfg.Realtime.QueueSize,
		WriteTimeout: cfg.Realtime.WriteTimeout,
		PingInterval: cfg.Realtime.PingInterval,
		PongTimeout:  cfg.Realtime.PongTimeout,
	}, zl.Named("ws"))
	defer hub.Close()

	if cfg.Realtime.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Realtime.Redis.Addr,
			Password: cfg.Realtime.Redis.Password,
			DB:       cfg.Realtime.Redis.DB,
		})
		defer rdb.Close()
		relay := ws.NewRedisRelay(rdb, zl.Named("relay"))
		hub.SetRelay(relay)
		go func() {
			if err := relay.Run(ctx, hub.Deliver, nil); err != nil {
				zl.Error("realtime relay stopped", zap.Error(err))
			}
		}()
	}

	unread := service.NewUnreadCoordinator(messages, sink, clk, zl.Named("unread"))
	resolver := service.NewResolver(conversations, users, zl.Named("resolver"))
	messaging := service.NewMessageService(resolver, conversations, messages, hub, unread, clk, service.MessageOptions{
		MaxBodyLength:     cfg.Messaging.MaxBodyLength,
		DefaultPageSize:   cfg.Messaging.DefaultPageSize,
		MaxPageSize:       cfg.Messaging.MaxPageSize,
		SideEffectTimeout: cfg.Server.SideEffectTimeout,
	}, zl.Named("messages"))

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.Telemetry.ServiceName))
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(zl.Named("http")))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws/conversations/:id", ws.NewConversationWebSocketHandler(hub, validator).Handle)
	handlers.RegisterDebugRoutes(router, audit, hub, cfg.Server.DebugRoutes)

	api := router.Group("/")
	api.Use(middleware.AuthMiddleware(validator), middleware.Timeout(cfg.Server.RequestTimeout))
	limiter := middleware.NewUserRateLimiter(cfg.Messaging.SendRatePerSecond, cfg.Messaging.SendBurst)
	handlers.NewConversationHandler(messaging, unread, audit).Register(api, limiter.Middleware())

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zl.Info("http server listening", zap.String("addr", srv.Addr))
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

	zl.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg *config.Config, clk clock.Clock, zl *zap.Logger) (repositories.ConversationRepository, repositories.MessageRepository, func(), error) {
	if cfg.Database.Driver == "memory" {
		zl.Warn("using in-memory store; data is lost on restart")
		store := repositories.NewMemoryStore(clk)
		return store, store, func() {}, nil
	}

	database, err := db.Connect(ctx, cfg.Database, zl.Named("db"))
	if err != nil {
		return nil, nil, nil, err
	}
	return repositories.NewConversationRepo(database, cfg.Database.ReadRetries),
		repositories.NewMessageRepo(database, cfg.Database.ReadRetries, clk),
		func() { _ = database.Close() },
		nil
}

func dial(addr string) (*grpc.ClientConn, error) {
	return grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	)
}
