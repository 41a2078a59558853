package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/echolab/voicearena/internal/api"
	"github.com/echolab/voicearena/internal/config"
	"github.com/echolab/voicearena/internal/db"
	"github.com/echolab/voicearena/internal/queue"
	"github.com/echolab/voicearena/internal/services"
	"github.com/echolab/voicearena/internal/storage"
	"github.com/echolab/voicearena/internal/worker"
)

func main() {
	log.Println("Starting Voice Arena API...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Connect to database
	database, err := db.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()
	log.Println("Connected to database")

	// Connect to Redis queue
	q, err := queue.New(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to queue: %v", err)
	}
	defer q.Close()
	log.Println("Connected to Redis queue")

	// Initialize storage
	stor := storage.New(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.SupabaseStorageBucket)
	log.Println("Initialized Supabase storage")

	// Sample text generation is optional — the endpoint returns 503 without it
	var openaiSvc *services.OpenAIService
	if cfg.OpenAIKey != "" {
		openaiSvc = services.NewOpenAIService(cfg.OpenAIKey)
		log.Println("Sample text generation enabled (OpenAI)")
	}

	// Create API handler
	handler := api.NewHandler(database, q, stor, openaiSvc)
	router := api.NewRouter(handler, api.RouterConfig{
		BackendAPIKey:      cfg.BackendAPIKey,
		CorsAllowedOrigins: cfg.CorsAllowedOrigins,
	})

	if cfg.BackendAPIKey != "" {
		log.Println("API key authentication enabled")
	} else {
		log.Println("WARNING: No BACKEND_API_KEY set — API is unprotected (dev mode)")
	}

	// Start HTTP server
	server := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: router,
	}

	// Start worker if enabled
	var workerCtx context.Context
	var workerCancel context.CancelFunc
	if cfg.WorkerEnabled {
		log.Println("Worker enabled, starting background processing...")

		// Register every configured TTS provider
		var providers []services.SpeechService
		if cfg.ElevenLabsKey != "" {
			providers = append(providers, services.NewElevenLabsService(cfg.ElevenLabsKey))
			log.Println("TTS provider registered: elevenlabs")
		}
		if cfg.CartesiaKey != "" {
			providers = append(providers, services.NewCartesiaService(cfg.CartesiaKey, cfg.CartesiaURL))
			log.Println("TTS provider registered: cartesia")
		}
		if cfg.MockTTSEnabled {
			providers = append(providers, services.NewMockSpeechService())
			log.Println("TTS provider registered: mock (deterministic)")
		}
		registry := services.NewRegistry(providers...)

		// Objective metric estimation is optional — samples keep latency-only
		// metrics without it
		var evaluator *services.EvaluatorService
		if cfg.GeminiKey != "" {
			evaluator = services.NewEvaluatorService(cfg.GeminiKey, cfg.EvaluatorModel)
			log.Printf("Audio evaluator enabled (model: %s)", cfg.EvaluatorModel)
		} else {
			log.Println("Audio evaluator disabled — samples will carry latency metrics only")
		}

		// Create worker
		w := worker.New(database, q, stor, registry, evaluator)

		// Start worker in background
		workerCtx, workerCancel = context.WithCancel(context.Background())
		go w.Start(workerCtx, cfg.MaxConcurrentJobs)
	}

	// Start server in goroutine
	go func() {
		log.Printf("API server listening on :%s", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Shutdown worker
	if workerCancel != nil {
		workerCancel()
	}

	// Shutdown HTTP server
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
