package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	config "github.com/maheshrc27/unibox/configs"
	"github.com/maheshrc27/unibox/internal/api/handlers"
	"github.com/maheshrc27/unibox/internal/api/middleware"
	job "github.com/maheshrc27/unibox/internal/jobs"
	"github.com/maheshrc27/unibox/internal/platform"
	"github.com/maheshrc27/unibox/internal/queue"
	"github.com/maheshrc27/unibox/internal/realtime"
	"github.com/maheshrc27/unibox/internal/repository"
	"github.com/maheshrc27/unibox/internal/service"
	"github.com/maheshrc27/unibox/internal/vault"
	"github.com/robfig/cron"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()

	v, err := vault.New(cfg.EncryptionKey)
	if err != nil {
		log.Fatalf("Failed to initialize credential vault: %v", err)
	}

	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer closeDB(db)

	if err := db.Ping(); err != nil {
		log.Fatalf("Database is unreachable: %v", err)
	}

	redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
	client := asynq.NewClient(redisConn)
	defer client.Close()

	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		BodyLimit:    10 * 1024 * 1024, // 10 MB
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOriginsFunc: func(origin string) bool {
			return true
		},
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	accountRepo := repository.NewPlatformAccountRepository(db)
	conversationRepo := repository.NewConversationRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	webhookEventRepo := repository.NewWebhookEventRepository(db)

	graph := platform.NewGraphClient(cfg.MetaAppSecret, cfg.MetaAPIVersion)
	adapters := platform.Registry{
		"instagram": platform.NewInstagramAdapter(graph),
		"messenger": platform.NewMessengerAdapter(graph),
		"whatsapp":  platform.NewWhatsAppAdapter(graph),
	}

	hub := realtime.NewHub()

	ingestService := service.NewIngestService(accountRepo, conversationRepo, messageRepo, adapters, v, hub)
	messageService := service.NewMessageService(accountRepo, conversationRepo, messageRepo, adapters, v, hub)
	syncService := service.NewSyncService(accountRepo, conversationRepo, messageRepo, adapters, v, hub)
	accountService := service.NewAccountService(accountRepo, adapters, v)

	authMiddleware := middleware.NewAuthMiddleware(*cfg)

	webhook := handlers.NewWebhookHandler(*cfg, adapters, webhookEventRepo, ingestService)
	app.Get("/webhooks/:platform", webhook.Verify)
	app.Post("/webhooks/:platform", webhook.Receive)

	ws := handlers.NewWSHandler(hub)
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", authMiddleware.AuthMiddleware(), websocket.New(ws.Upgrade))

	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	message := handlers.NewMessageHandler(messageService)
	api.Get("/conversations", message.ListConversations)
	api.Get("/conversations/:id/messages", message.ListMessages)
	api.Post("/conversations/archive", message.Archive)
	api.Post("/messages/read", message.MarkRead)
	api.Post("/messages/send", message.Send)

	account := handlers.NewAccountHandler(accountService)
	api.Get("/accounts", account.List)
	api.Post("/accounts/whatsapp/connect", account.ConnectWhatsApp)
	api.Post("/accounts/remove", account.Disconnect)

	// cron jobs
	refreshTokenJob := job.NewTokenRefreshJob(accountRepo, graph, v, cfg.MetaAppID)
	deactivationJob := job.NewDeactivationJob(accountRepo)
	syncEnqueueJob := job.NewSyncEnqueueJob(accountRepo, client)

	// queue
	queueW := queue.NewQueue(accountRepo, syncService)

	c := cron.New()
	c.AddFunc("@every 01h00m00s", refreshTokenJob.RefreshTokens)
	c.AddFunc("@every 01h00m00s", deactivationJob.DeactivateExpired)
	c.AddFunc("@every 00h05m00s", syncEnqueueJob.EnqueueSyncTasks)
	c.Start()

	go func() {
		server := asynq.NewServer(redisConn, asynq.Config{
			Concurrency: 10,
		})

		mux := asynq.NewServeMux()
		mux.HandleFunc(queue.TaskTypeSyncAccount, queueW.HandleSyncAccountTask)

		log.Println("Starting the Asynq server...")
		if err := server.Run(mux); err != nil {
			log.Fatalf("Could not start Asynq server: %v", err)
		}
	}()

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Printf("Server is running on http://localhost:%s", cfg.Port)

	gracefulShutdown(app, db)
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, db *sql.DB) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Fatalf("Failed to shut down server: %v", err)
	}

	closeDB(db)
	log.Println("Server shutdown complete.")
}
