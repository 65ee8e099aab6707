package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"CardArena/global"
	"CardArena/logger"
	"CardArena/middleware"
	"CardArena/module/message"
	"CardArena/module/user"
	userservice "CardArena/module/user/service"
	"CardArena/service/auth"
	"CardArena/service/kafka"
	"CardArena/service/natsx"
	"CardArena/service/relay"
	"CardArena/service/relay/handlers"
	"CardArena/service/storage"
	"CardArena/service/storage/mgo"
	storageredis "CardArena/service/storage/redis"
)

func main() {
	if err := global.Load(os.Getenv("ARENA_CONFIG")); err != nil {
		logger.Errorf("load config: %v", err)
		os.Exit(1)
	}
	cfg := global.Global

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Relational user store: the verifier and the drain loop resolve
	// identities against it.
	users, err := userservice.Dial(ctx, cfg.PostgresURL)
	if err != nil {
		logger.Errorf("connect user store: %v", err)
		os.Exit(1)
	}
	defer users.Close()

	deps := relay.Deps{
		Registry:   relay.NewRegistry(),
		Dispatcher: relay.NewDispatcher(),
		Verifier:   auth.NewVerifier(users, global.GetJwtSecret()),
		Users:      users,
	}

	// Presence mirror is optional; the gateway runs standalone without it.
	if cfg.Redis.Addr != "" {
		if err := storageredis.InitRedis(storageredis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}); err != nil {
			logger.Errorf("connect redis: %v", err)
			os.Exit(1)
		}
		defer func() { _ = storageredis.CloseRedis() }()
		deps.Presence = storage.NewPresence(storageredis.GetRedis(), cfg.GatewayID, cfg.PresenceTTL)
	}

	// Delivery receipts are optional too.
	if len(cfg.Kafka.Brokers) > 0 {
		receipts, err := kafka.NewReceipts(kafka.Config{
			Brokers:      cfg.Kafka.Brokers,
			ReceiptTopic: cfg.Kafka.ReceiptTopic,
		})
		if err != nil {
			logger.Errorf("connect kafka: %v", err)
			os.Exit(1)
		}
		defer func() { _ = receipts.Close() }()
		deps.Receipts = receipts
	}

	srv := relay.NewServer(cfg.GatewayID, deps)
	handlers.RegisterAll(deps.Dispatcher)

	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/ws", srv.HandleWS)
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	userHandler := user.NewHandler(users)
	middleware.POST(r, "/login", userHandler.HandlerLogin, middleware.RouteOpt{IsAuth: false})

	// Pending-message queue feeds the drain loop; the HTTP persistence
	// path enqueues through the guarded endpoint.
	if cfg.Mongo.URI != "" {
		queue, err := mgo.Dial(ctx, mgo.Config{
			URI:        cfg.Mongo.URI,
			Database:   cfg.Mongo.Database,
			Collection: cfg.Mongo.Collection,
		})
		if err != nil {
			logger.Errorf("connect mongo: %v", err)
			os.Exit(1)
		}
		defer func() { _ = queue.Close(context.Background()) }()

		drain := relay.NewDrainLoop(srv, queue, users, cfg.DrainInterval)
		go drain.Run()
		defer drain.Stop()

		msgHandler := message.NewHandler(queue)
		middleware.POST(r, "/internal/messages", msgHandler.HandlerEnqueue, middleware.RouteOpt{IsAuth: true})
	} else {
		logger.Warnf("mongo not configured, drain loop disabled")
	}

	// Battle notifications published by the HTTP side.
	if len(cfg.Nats.Servers) > 0 {
		nc, err := natsx.Dial(natsx.Config{Servers: cfg.Nats.Servers, Name: cfg.GatewayID})
		if err != nil {
			logger.Errorf("connect nats: %v", err)
			os.Exit(1)
		}
		defer nc.Close()
		if err := nc.SubscribeBattleEvents(cfg.Nats.BattleSubject, srv, users); err != nil {
			logger.Errorf("subscribe battle events: %v", err)
			os.Exit(1)
		}
	}

	// gRPC health endpoint for the load balancer.
	go func() {
		lis, err := net.Listen("tcp", cfg.GrpcAddr)
		if err != nil {
			logger.Errorf("gRPC listen failed: %v", err)
			os.Exit(1)
		}
		gs := grpc.NewServer()
		healthServer := health.NewServer()
		healthpb.RegisterHealthServer(gs, healthServer)
		healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

		logger.Infof("[gRPC] listening on %s", cfg.GrpcAddr)
		if err := gs.Serve(lis); err != nil {
			logger.Errorf("gRPC server failed: %v", err)
			os.Exit(1)
		}
	}()

	logger.Infof("[HTTP] gateway %s listening on %s", cfg.GatewayID, cfg.HTTPAddr)
	if err := r.Run(cfg.HTTPAddr); err != nil {
		logger.Errorf("HTTP server failed: %v", err)
		os.Exit(1)
	}
}
