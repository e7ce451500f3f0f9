package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"studybuddy-chat/internal/auth"
	"studybuddy-chat/internal/config"
	"studybuddy-chat/internal/db"
	"studybuddy-chat/internal/grpcserver"
	"studybuddy-chat/internal/handlers"
	"studybuddy-chat/internal/middleware"
	"studybuddy-chat/internal/observability"
	"studybuddy-chat/internal/presence"
	"studybuddy-chat/internal/rabbitmq"
	"studybuddy-chat/internal/repositories"
	"studybuddy-chat/internal/telemetry"
	"studybuddy-chat/internal/tracing"
	"studybuddy-chat/internal/ws"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, cfg.OTLPEndpoint, cfg.ServiceName, cfg.Environment)
	if err != nil {
		log.Fatalf("failed to set up tracing: %v", err)
	}

	database, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}
	defer database.Close()

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	log.Printf("event publisher mode=%s reason=%s", rabbitmq.PublisherMode(publisher), rabbitmq.PublisherNoopReason(publisher))
	observability.SetPublisher(publisher)
	audit := telemetry.NewAuditEmitter(publisher, cfg.AuditRoutingKey, cfg.ServiceName, cfg.Environment)

	userRepo := repositories.NewUserRepo(database)
	groupRepo := repositories.NewGroupRepo(database)
	groupMessageRepo := repositories.NewGroupMessageRepo(database)

	tracker := presence.NewTracker()
	if err := observability.RegisterPresenceGauges(prometheus.DefaultRegisterer, func() (int, int) {
		stats := tracker.Stats()
		return stats.BoundUsers, stats.Rooms
	}); err != nil {
		log.Fatalf("failed to register presence gauges: %v", err)
	}

	hub := ws.NewHub(tracker, cfg.WSSendBuffer)
	eventRouter := ws.NewEventRouter(hub, groupRepo)
	fanout := ws.NewFanout(hub, groupRepo, groupMessageRepo)

	tokens := auth.NewJWTManager(auth.JWTConfig{SecretKey: cfg.JWTSecret, Issuer: cfg.JWTIssuer, TTL: cfg.JWTTTL})
	authenticator := auth.NewAuthenticator(tokens, userRepo)

	groupHandler := handlers.NewGroupHandler(groupRepo, groupMessageRepo, userRepo, eventRouter, fanout, audit)
	wsHandler := ws.NewHandler(hub, eventRouter, fanout, authenticator, cfg.WSAllowedOrigins)

	router := gin.Default()

	// middlewares
	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(observability.HTTPMetricsMiddleware())

	handlers.RegisterHealthRoutes(router)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handlers.RegisterDebugRoutes(router, audit, tracker, cfg.DebugRoutes)

	api := router.Group("/", middleware.AuthMiddleware(authenticator))
	groupHandler.Register(api)

	router.GET("/ws", wsHandler.Handle)

	grpcSrv := grpcserver.New(cfg.ServiceName)
	go func() {
		if err := grpcSrv.ListenAndServe(net.JoinHostPort("", cfg.GRPCPort)); err != nil {
			log.Printf("grpc server error: %v", err)
		}
	}()

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}
	go func() {
		log.Printf("chat service listening port=%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	grpcSrv.SetServing(false)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown error: %v", err)
	}
	hub.Shutdown()
	grpcSrv.Stop(shutdownCtx)
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Printf("tracing shutdown error: %v", err)
	}
}
