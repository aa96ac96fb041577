package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/audiobridge/api/internal/client"
	"github.com/audiobridge/api/internal/config"
	"github.com/audiobridge/api/internal/handler"
	"github.com/audiobridge/api/internal/middleware"
	"github.com/audiobridge/api/internal/orchestrator"
	"github.com/audiobridge/api/internal/service"
	"github.com/audiobridge/api/internal/telemetry"
	"github.com/audiobridge/api/internal/worker"
	ws "github.com/audiobridge/api/internal/websocket"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Test Redis connection
	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available: %v", err)
	}

	// Initialize Asynq client
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer asynqClient.Close()

	// Initialize validator
	validate := validator.New()

	// Initialize WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Initialize backend clients
	localAIClient := client.NewLocalAIClient(&cfg.LocalAI)
	comfyUIClient := client.NewComfyUIClient(&cfg.ComfyUI)
	uvr5Client := client.NewUVR5Client(&cfg.UVR5)
	rvcClient := client.NewRVCClient(&cfg.RVC)

	if !localAIClient.IsConfigured() {
		log.Println("Warning: LocalAI base URL not configured")
	}
	if !comfyUIClient.IsConfigured() {
		log.Println("Warning: ComfyUI base URL not configured")
	}
	if !uvr5Client.IsConfigured() {
		log.Println("Warning: UVR5 base URL not configured")
	}
	if !rvcClient.IsConfigured() {
		log.Println("Warning: RVC base URL not configured")
	}

	// Initialize R2 client (optional - continues if not configured)
	var r2Client client.StorageClient
	if cfg.R2.AccessKeyID != "" && cfg.R2.SecretAccessKey != "" {
		c, err := client.NewR2Client(&cfg.R2)
		if err != nil {
			log.Printf("Warning: R2 client not initialized: %v", err)
		} else if !c.IsConfigured() {
			log.Println("Warning: R2 bucket not set, artifacts stay local")
		} else {
			r2Client = c
		}
	} else {
		log.Println("Info: R2 storage not configured, artifacts stay local")
	}

	// Initialize orchestrators
	speechOrch := orchestrator.NewSpeechOrchestrator(localAIClient, cfg.Output.Dir)
	separationOrch := orchestrator.NewSeparationOrchestrator(uvr5Client, &cfg.UVR5, cfg.Output.Dir)
	conversionOrch := orchestrator.NewConversionOrchestrator(rvcClient, &cfg.RVC, cfg.Output.Dir)
	workflowOrch := orchestrator.NewWorkflowOrchestrator(comfyUIClient, &cfg.ComfyUI, cfg.Output.Dir)

	// Initialize services
	jobService := service.NewJobService(redisClient, asynqClient)

	// Initialize handlers
	speechHandler := handler.NewSpeechHandler(speechOrch, validate)
	separateHandler := handler.NewSeparateHandler(jobService, separationOrch, validate)
	convertHandler := handler.NewConvertHandler(jobService, conversionOrch, validate)
	workflowHandler := handler.NewWorkflowHandler(jobService, workflowOrch, validate)

	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    100 * 1024 * 1024, // 100MB, audio uploads
	})

	// Global middleware
	app.Use(recover.New())
	isDebug := strings.EqualFold(cfg.Server.LogLevel, "debug")
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if isDebug {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams} ${body} ${reqHeaders}\n"
		log.Println("Debug logging enabled")
	}
	app.Use(logger.New(logger.Config{
		Format: logFormat,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	// Base URL - timestamp
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"timestamp": time.Now().Unix(),
		})
	})

	// Health check probes every backend with a short budget
	app.Get("/health", func(c *fiber.Ctx) error {
		probeCtx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
		defer cancel()

		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"localai": speechOrch.Health(probeCtx) == nil,
				"comfyui": workflowOrch.Health(probeCtx) == nil,
				"uvr5":    separationOrch.Health(probeCtx) == nil,
				"rvc":     conversionOrch.Health(probeCtx) == nil,
				"redis":   redisClient.Ping(probeCtx).Err() == nil,
				"r2":      r2Client != nil,
			},
		})
	})

	// Prometheus metrics
	app.Get("/metrics", adaptor.HTTPHandler(telemetry.Handler()))

	// API routes
	api := app.Group("/api")

	// Speech routes (synchronous)
	speech := api.Group("/speech", rateLimiter.SpeechLimit(cfg.RateLimit.SpeechPerMin))
	speech.Post("/tts", speechHandler.TTS)
	speech.Post("/generate", speechHandler.Generate)
	speech.Post("/transcribe", speechHandler.Transcribe)
	speech.Get("/models", speechHandler.Models)

	// Separation routes
	separate := api.Group("/separate")
	separate.Post("/start", rateLimiter.JobsLimit(cfg.RateLimit.JobsPerHour), separateHandler.Start)
	separate.Get("/status/:jobId", separateHandler.Status)
	separate.Get("/result/:jobId", separateHandler.Result)
	separate.Post("/cancel/:jobId", separateHandler.Cancel)
	separate.Get("/models", separateHandler.Models)

	// Conversion routes
	convert := api.Group("/convert")
	convert.Post("/start", rateLimiter.JobsLimit(cfg.RateLimit.JobsPerHour), convertHandler.Start)
	convert.Get("/status/:jobId", convertHandler.Status)
	convert.Get("/result/:jobId", convertHandler.Result)
	convert.Post("/cancel/:jobId", convertHandler.Cancel)
	convert.Get("/models", convertHandler.Models)
	convert.Get("/models/:name", convertHandler.ModelInfo)

	// Workflow routes
	workflow := api.Group("/workflow")
	workflow.Post("/start", rateLimiter.JobsLimit(cfg.RateLimit.JobsPerHour), workflowHandler.Start)
	workflow.Get("/status/:jobId", workflowHandler.Status)
	workflow.Get("/result/:jobId", workflowHandler.Result)
	workflow.Post("/cancel/:jobId", workflowHandler.Cancel)
	workflow.Get("/queue", workflowHandler.Queue)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/jobs/:jobId", websocket.New(func(c *websocket.Conn) {
		jobID := c.Params("jobId")
		hub.HandleConnection(c, jobID)
	}))

	// Start Asynq worker server
	go startWorkerServer(cfg, jobService, separationOrch, conversionOrch, workflowOrch, r2Client, hub)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.Printf("Server starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func startWorkerServer(
	cfg *config.Config,
	jobService *service.JobService,
	separationOrch *orchestrator.SeparationOrchestrator,
	conversionOrch *orchestrator.ConversionOrchestrator,
	workflowOrch *orchestrator.WorkflowOrchestrator,
	r2Client client.StorageClient,
	hub *ws.Hub,
) {
	asynqLogLevel := asynq.InfoLevel
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		asynqLogLevel = asynq.DebugLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "warn") {
		asynqLogLevel = asynq.WarnLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "error") {
		asynqLogLevel = asynq.ErrorLevel
	}

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"separate": 4,
				"convert":  3,
				"workflow": 3,
			},
			LogLevel: asynqLogLevel,
		},
	)

	separateWorker := worker.NewSeparateWorker(jobService, separationOrch, r2Client, hub)
	convertWorker := worker.NewConvertWorker(jobService, conversionOrch, r2Client, hub)
	workflowWorker := worker.NewWorkflowWorker(jobService, workflowOrch, r2Client, hub)

	mux := asynq.NewServeMux()
	mux.HandleFunc(service.TaskTypeSeparate, separateWorker.ProcessTask)
	mux.HandleFunc(service.TaskTypeConvert, convertWorker.ProcessTask)
	mux.HandleFunc(service.TaskTypeWorkflow, workflowWorker.ProcessTask)

	if err := srv.Run(mux); err != nil {
		log.Printf("Asynq worker error: %v", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
