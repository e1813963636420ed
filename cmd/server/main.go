package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"frontdesk/internal/config"
	"frontdesk/internal/database"
	"frontdesk/internal/handlers"
	"frontdesk/internal/jobs"
	"frontdesk/internal/logging"
	"frontdesk/internal/middleware"
	"frontdesk/internal/models"
	"frontdesk/internal/preflight"
	"frontdesk/internal/room"
	"frontdesk/internal/services"
	"frontdesk/internal/session"
	"frontdesk/internal/store"
	"frontdesk/pkg/auth"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/go-co-op/gocron/v2"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Load .env file (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  No .env file found or error loading it: %v", err)
	} else {
		log.Println("✅ .env file loaded successfully")
	}

	// Initialize structured logging (JSON in production, text in dev)
	logging.Init()

	log.Println("🚀 Starting Front Desk Server...")

	cfg := config.Load()
	instanceID := uuid.New().String()
	log.Printf("📋 Configuration loaded (Port: %s, Environment: %s, Instance: %s)", cfg.Port, cfg.Environment, instanceID)

	stores, dbCheck, sqlDB, closeStores := openStores(cfg)
	defer closeStores()

	if results := preflight.NewChecker(cfg, dbCheck.Ping, sqlDB).RunAll(); preflight.HasFailures(results) {
		log.Fatal("❌ Pre-flight checks failed")
	}

	seed, err := services.LoadSeedKnowledge(cfg.KnowledgeSeedFile)
	if err != nil {
		log.Fatalf("❌ Failed to load seed knowledge: %v", err)
	}

	dedupe, err := services.ParseDedupePolicy(cfg.EscalationDedupe)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}

	tokens, err := auth.NewRoomTokenIssuer(roomTokenSecret(cfg), cfg.RoomTokenTTL)
	if err != nil {
		log.Fatalf("❌ Failed to create room token issuer: %v", err)
	}

	var supervisorKey *auth.APIKeyVerifier
	if cfg.SupervisorAPIKey != "" {
		supervisorKey, err = auth.NewAPIKeyVerifier(cfg.SupervisorAPIKey)
		if err != nil {
			log.Fatalf("❌ Invalid SUPERVISOR_API_KEY: %v", err)
		}
		log.Println("🔑 Supervisor API requires X-API-Key")
	} else if cfg.IsProduction() {
		log.Println("⚠️  SUPERVISOR_API_KEY not set: supervisor API is open")
	}

	hub := room.NewHub(room.Options{SendTimeout: cfg.RoomSendTimeout})
	registry := session.NewRegistry()
	metrics := services.InitMetrics(prometheus.DefaultRegisterer, registry)
	bus := services.NewEventBus()

	knowledgeService := services.NewKnowledgeService(stores.Knowledge, seed, cfg.KnowledgeCacheTTL)
	knowledgeService.SetMetrics(metrics)
	knowledgeService.SetEventBus(bus)

	initCtx, cancelInit := context.WithTimeout(context.Background(), 30*time.Second)
	if err := knowledgeService.Initialize(initCtx); err != nil {
		log.Fatalf("❌ Failed to initialize knowledge base: %v", err)
	}
	cancelInit()

	// Hot-reload the seed file so front-desk staff can edit canned answers live
	watchCtx, stopWatch := context.WithCancel(context.Background())
	if cfg.KnowledgeSeedFile != "" {
		go func() {
			if err := services.WatchSeedFile(watchCtx, cfg.KnowledgeSeedFile, knowledgeService); err != nil {
				log.Printf("⚠️  Seed hot-reload disabled: %v", err)
			}
		}()
	}

	helpRequestService := services.NewHelpRequestService(stores.HelpRequests, dedupe)
	helpRequestService.SetMetrics(metrics)
	helpRequestService.SetEventBus(bus)

	followUp := services.NewCallerFollowUp(registry)

	escalationService := services.NewEscalationService(stores, knowledgeService)
	escalationService.SetNotifier(followUp)
	escalationService.SetMetrics(metrics)
	escalationService.SetEventBus(bus)

	wsURL := cfg.RoomWSURL
	if wsURL == "" {
		wsURL = fmt.Sprintf("ws://localhost:%s/ws/room", cfg.Port)
	}
	callService := services.NewCallService(hub, registry, tokens, knowledgeService, helpRequestService, services.CallServiceConfig{
		AgentIdentity: cfg.AgentIdentity,
		JoinTimeout:   cfg.CallerJoinTimeout,
		MessageRate:   cfg.CallerMessageRate,
		MessageBurst:  cfg.CallerMessageBurst,
		WSURL:         wsURL,
	})
	callService.SetMetrics(metrics)
	log.Println("✅ Call services initialized")

	// Redis (optional - mirrors events across instances and guards jobs)
	var redisService *services.RedisService
	var pubsubService *services.PubSubService
	if cfg.RedisURL != "" {
		redisService, err = services.NewRedisService(cfg.RedisURL)
		if err != nil {
			log.Printf("⚠️  Redis unavailable, running as a single instance: %v", err)
			redisService = nil
		} else {
			pubsubService = services.NewPubSubService(redisService, instanceID)
			pubsubService.OnEvent(func(event models.Event) {
				switch event.Type {
				case models.EventKnowledgeUpdated:
					knowledgeService.Invalidate()
				case models.EventEscalationResolved:
					followUp.PushToRoom(event.HelpRequest)
				}
				bus.PublishLocal(event)
			})
			if err := pubsubService.Start(); err != nil {
				log.Printf("⚠️  Redis pub/sub disabled: %v", err)
				pubsubService = nil
			} else {
				bus.SetForwarder(func(event models.Event) {
					ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
					defer cancel()
					if err := pubsubService.Publish(ctx, event); err != nil {
						log.Printf("⚠️  [PUBSUB] Failed to publish %s: %v", event.Type, err)
					}
				})
			}
		}
	} else {
		log.Println("ℹ️  REDIS_URL not set, events stay in-process")
	}

	// Background jobs
	var locker gocron.Locker
	if redisService != nil {
		locker = jobs.NewRedisLocker(redisService, instanceID, time.Minute)
	}
	jobScheduler, err := jobs.NewJobScheduler(locker)
	if err != nil {
		log.Fatalf("❌ Failed to create job scheduler: %v", err)
	}
	for _, job := range []jobs.Job{
		jobs.NewKnowledgeReconcileJob(escalationService, cfg.ReconcileInterval),
		jobs.NewPendingEscalationReportJob(helpRequestService, metrics, cfg.StaleEscalationAge, cfg.StaleReportInterval),
	} {
		if err := jobScheduler.Register(job); err != nil {
			log.Fatalf("❌ %v", err)
		}
	}
	jobScheduler.Start()

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Front Desk v1.0",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		BodyLimit:    1 * 1024 * 1024,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New())

	// Prometheus metrics middleware
	promMiddleware := fiberprometheus.New("frontdesk")
	promMiddleware.RegisterAt(app, "/metrics")
	app.Use(promMiddleware.Middleware)
	log.Println("📊 Prometheus metrics endpoint enabled at /metrics")

	rateLimitConfig := middleware.LoadRateLimitConfig()
	log.Printf("🛡️  [RATE-LIMIT] Loaded config: Global=%d/min, SessionStart=%d/min, WS=%d/min",
		rateLimitConfig.GlobalAPIMax,
		rateLimitConfig.SessionStartMax,
		rateLimitConfig.WebSocketMax,
	)

	allowedOrigins := cfg.AllowedOrigins
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:5173,http://localhost:3000"
		log.Println("⚠️  ALLOWED_ORIGINS not set, using development defaults")
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization,X-API-Key",
		AllowCredentials: allowedOrigins != "*",
	}))
	log.Printf("🔒 [SECURITY] CORS allowed origins: %s", allowedOrigins)

	app.Use("/api", middleware.GlobalAPIRateLimiter(rateLimitConfig))

	// Handlers
	healthHandler := handlers.NewHealthHandler(registry)
	healthHandler.AddCheck("database", dbCheck)
	if redisService != nil {
		healthHandler.AddCheck("redis", redisService)
	}
	sessionHandler := handlers.NewSessionHandler(callService)
	helpRequestHandler := handlers.NewHelpRequestHandler(helpRequestService, escalationService)
	knowledgeHandler := handlers.NewKnowledgeHandler(knowledgeService)
	roomWSHandler := handlers.NewRoomWebSocketHandler(hub)
	roomWSHandler.SetMetrics(metrics)
	supervisorWSHandler := handlers.NewSupervisorWebSocketHandler(bus)
	supervisorWSHandler.SetMetrics(metrics)

	supervisorAuth := middleware.SupervisorAuthMiddleware(supervisorKey)

	app.Get("/health", healthHandler.Handle)

	api := app.Group("/api")
	api.Post("/session/start", middleware.SessionStartRateLimiter(rateLimitConfig), sessionHandler.Start)

	helpRequests := api.Group("/help-requests", supervisorAuth)
	helpRequests.Get("/pending", helpRequestHandler.GetPending)
	helpRequests.Get("/history", helpRequestHandler.GetHistory)
	helpRequests.Get("/:id", helpRequestHandler.Get)
	helpRequests.Post("/:id/resolve", helpRequestHandler.Resolve)

	api.Get("/learned-answers", supervisorAuth, knowledgeHandler.GetLearnedAnswers)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			c.Locals("client_ip", c.IP())
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Use("/ws", middleware.WebSocketRateLimiter(rateLimitConfig))

	wsConfig := websocket.Config{
		Origins: strings.Split(allowedOrigins, ","),
	}
	app.Get("/ws/room", middleware.RoomTokenMiddleware(tokens), websocket.New(roomWSHandler.Handle, wsConfig))
	app.Get("/ws/supervisor", supervisorAuth, websocket.New(supervisorWSHandler.Handle, wsConfig))

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("\n🛑 Shutting down server...")

		jobScheduler.Stop()
		stopWatch()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := registry.Close(ctx); err != nil {
			log.Printf("⚠️  Sessions did not end in time: %v", err)
		}
		hub.Close()

		if pubsubService != nil {
			if err := pubsubService.Stop(); err != nil {
				log.Printf("⚠️  Error stopping PubSub: %v", err)
			}
		}
		if redisService != nil {
			redisService.Close()
		}

		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("⚠️  Server shutdown error: %v", err)
		}
	}()

	log.Printf("✅ Server ready on port %s", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Server error: %v", err)
	}
	log.Println("👋 Server stopped")
}

// openStores connects the configured backend. MongoDB wins when MONGODB_URI
// is set; otherwise DATABASE_URL selects MySQL or a SQLite file, which is also
// returned for schema checks.
func openStores(cfg *config.Config) (store.Stores, handlers.Pinger, *database.DB, func()) {
	if cfg.MongoDBURI != "" {
		mongoDB, err := database.NewMongoDB(cfg.MongoDBURI)
		if err != nil {
			log.Fatalf("❌ Failed to connect to MongoDB: %v", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := mongoDB.Initialize(ctx); err != nil {
			log.Fatalf("❌ Failed to initialize MongoDB: %v", err)
		}

		if cfg.MongoDBTransactions {
			log.Println("✅ MongoDB store (transactions enabled)")
		} else {
			log.Println("✅ MongoDB store (transactions disabled, learn step reconciled)")
		}
		return store.NewMongoStores(mongoDB, cfg.MongoDBTransactions), mongoDB, nil, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			mongoDB.Close(ctx)
		}
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	if err := db.Initialize(); err != nil {
		log.Fatalf("❌ Failed to initialize database: %v", err)
	}
	log.Printf("✅ %s store", db.Dialect)
	return store.NewSQLStores(db), handlers.PingFunc(db.PingContext), db, func() { db.Close() }
}

// roomTokenSecret returns ROOM_TOKEN_SECRET, or a per-process random secret
// outside production. Tokens signed with a random secret die with the process.
func roomTokenSecret(cfg *config.Config) string {
	if cfg.RoomTokenSecret != "" {
		return cfg.RoomTokenSecret
	}
	if cfg.IsProduction() {
		log.Fatal("❌ ROOM_TOKEN_SECRET is required in production")
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		log.Fatalf("❌ Failed to generate room token secret: %v", err)
	}
	log.Println("⚠️  ROOM_TOKEN_SECRET not set, using a random secret for this process")
	return hex.EncodeToString(buf)
}
