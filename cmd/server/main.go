package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"lifetracker/internal/audio"
	"lifetracker/internal/config"
	"lifetracker/internal/database"
	"lifetracker/internal/handlers"
	"lifetracker/internal/health"
	"lifetracker/internal/jobs"
	"lifetracker/internal/llm"
	"lifetracker/internal/logging"
	"lifetracker/internal/mailer"
	"lifetracker/internal/middleware"
	"lifetracker/internal/services"
	"lifetracker/internal/store"
	"lifetracker/internal/tools"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Structured logging (JSON in production, text in dev)
	logging.Init()

	log.Println("🚀 Starting Life Tracker server...")

	// Load .env file (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  No .env file found or error loading it: %v", err)
	}

	cfg := config.Load()
	log.Printf("📋 Configuration loaded (Port: %s, DB: %s)", cfg.Port, cfg.DatabasePath)

	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Initialize(); err != nil {
		log.Fatalf("❌ Failed to initialize database: %v", err)
	}

	st := store.New(db)

	// External boundaries
	modelClient := llm.NewClient(cfg.ProviderBaseURL, cfg.ProviderAPIKey, cfg.ChatModel)
	transcriber := audio.NewService(cfg.AudioBaseURL, cfg.AudioAPIKey, cfg.AudioModel)
	emailer := mailer.NewBrevoMailer(cfg.BrevoAPIKey, cfg.SenderEmail, cfg.SenderName)

	// Tool registry: the closed set of operations the model may call
	registry := tools.NewRegistry()
	for _, tool := range []*tools.Tool{
		tools.NewLogEntryTool(st),
		tools.NewProfileTool(st),
		tools.NewTaskTool(st),
	} {
		if err := registry.Register(tool); err != nil {
			log.Fatalf("❌ Failed to register tool: %v", err)
		}
	}
	log.Printf("✅ Registered %d tools", registry.Count())

	chatService := services.NewChatService(st, modelClient, transcriber, registry, cfg.ContextLogLimit)
	digestService := services.NewDigestService(st, modelClient, emailer, cfg.DigestDailyCap)

	scheduler, err := jobs.NewDigestScheduler(st, digestService, cfg.DigestCron)
	if err != nil {
		log.Fatalf("❌ Failed to create digest scheduler: %v", err)
	}
	scheduler.Start()
	defer func() {
		if err := scheduler.Stop(); err != nil {
			log.Printf("⚠️  Scheduler shutdown error: %v", err)
		}
	}()

	app := fiber.New(fiber.Config{
		AppName:   "Life Tracker",
		BodyLimit: 25 * 1024 * 1024, // audio uploads
	})
	app.Use(recover.New())
	app.Use(cors.New())
	app.Use(logger.New())

	// Prometheus metrics middleware
	prometheus := fiberprometheus.New("lifetracker")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)
	log.Println("📊 Prometheus metrics endpoint enabled at /metrics")

	chatHandler := handlers.NewChatHandler(chatService)
	recordsHandler := handlers.NewRecordsHandler(st)
	digestHandler := handlers.NewDigestHandler(digestService)
	userHandler := handlers.NewUserHandler(st)

	healthService := health.NewService()
	healthService.Register("database", func(ctx context.Context) error {
		return db.PingContext(ctx)
	})
	healthService.Register("model_provider", func(ctx context.Context) error {
		if cfg.ProviderBaseURL == "" {
			return fmt.Errorf("provider base URL not configured")
		}
		return nil
	})
	app.Get("/health", func(c *fiber.Ctx) error {
		ok := healthService.Run(c.Context())
		status := "ok"
		code := fiber.StatusOK
		if !ok {
			status = "degraded"
			code = fiber.StatusServiceUnavailable
		}
		return c.Status(code).JSON(fiber.Map{
			"status":     status,
			"components": healthService.Report(),
		})
	})

	api := app.Group("/api", middleware.UserIdentity(st))
	api.Get("/me", userHandler.Me)
	api.Delete("/me", userHandler.Purge)

	api.Post("/chat", chatHandler.Respond)
	api.Delete("/chat/:sessionId", chatHandler.ClearSession)

	api.Get("/logs", recordsHandler.ListLogs)
	api.Post("/logs", recordsHandler.CreateLog)
	api.Put("/logs", recordsHandler.ReplaceLogs)

	api.Get("/tasks", recordsHandler.ListTasks)
	api.Post("/tasks", recordsHandler.CreateTask)
	api.Put("/tasks", recordsHandler.ReplaceTasks)

	api.Get("/profile", recordsHandler.GetProfile)
	api.Put("/profile", recordsHandler.PutProfile)

	api.Post("/digest", digestHandler.Generate)

	// Graceful shutdown on SIGINT/SIGTERM
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("🛑 Shutting down server...")
		if err := app.Shutdown(); err != nil {
			log.Printf("⚠️  Server shutdown error: %v", err)
		}
	}()

	log.Printf("🌐 Listening on :%s", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Server error: %v", err)
	}
}
