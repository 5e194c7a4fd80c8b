// Package main is the entry point for the storefront API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/novamart/nova-storefront/internal/config"
	"github.com/novamart/nova-storefront/internal/handler"
	"github.com/novamart/nova-storefront/internal/llm"
	"github.com/novamart/nova-storefront/internal/middleware"
	natsclient "github.com/novamart/nova-storefront/internal/nats"
	"github.com/novamart/nova-storefront/internal/service"
	"github.com/novamart/nova-storefront/internal/storage"
	"github.com/novamart/nova-storefront/pkg/logger"
	"github.com/novamart/nova-storefront/pkg/tracing"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting API server")

	// Initialize tracing if enabled
	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "nova-storefront", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Connect to NATS when enabled
	var natsClient *natsclient.Client
	var events *natsclient.Events
	if cfg.NATSEnabled {
		natsClient, err = natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			log.Error("failed to connect to NATS", zap.Error(err))
			os.Exit(1)
		}
		defer natsClient.Close()

		events = natsclient.NewEvents(natsClient)
		if err := events.EnsureStream(ctx); err != nil {
			log.Error("failed to ensure stream", zap.Error(err))
			os.Exit(1)
		}
	}

	// Initialize LLM fallback
	var llmClient llm.Client
	provider := llm.Provider(cfg.DefaultLLM)
	apiKey := cfg.AnthropicAPIKey
	if provider == llm.ProviderOpenAI {
		apiKey = cfg.OpenAIAPIKey
	}
	if apiKey != "" {
		llmClient, err = llm.NewClient(provider, apiKey)
		if err != nil {
			log.Warn("failed to create LLM client, QA fallback disabled",
				zap.String("provider", string(provider)), zap.Error(err))
		}
	}

	// Initialize services
	disk, err := storage.New(cfg.DataDir)
	if err != nil {
		log.Error("failed to open data directory", zap.Error(err))
		os.Exit(1)
	}
	userSvc := service.NewUserService(log)
	catalogSvc := service.NewCatalogService()
	qaSvc := service.NewQAService(catalogSvc, llmClient, log)
	chatSvc := service.NewChatService(events, disk, log)

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(natsClient)
	authHandler := handler.NewAuthHandler(userSvc, cfg.JWTSecret, cfg.JWTExpiration, log)
	productsHandler := handler.NewProductsHandler(catalogSvc)
	qaHandler := handler.NewQAHandler(qaSvc)
	chatHandler := handler.NewChatHandler(chatSvc)

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"Link", "X-Correlation-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/demo", authHandler.Demo)
		r.Get("/products", productsHandler.List)
		r.Post("/qa", qaHandler.Ask)

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWTSecret))
			r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

			r.Get("/auth/me", authHandler.Me)
			r.Post("/qa/train", qaHandler.Train)

			r.Route("/chat", func(r chi.Router) {
				r.Get("/", chatHandler.Get)
				r.Post("/", chatHandler.Replace)
				r.Post("/append", chatHandler.Append)
				r.Post("/mark-read", chatHandler.MarkRead)
				r.Get("/export", chatHandler.Export)
				r.Delete("/entry/{ts}", chatHandler.DeleteEntry)
			})
		})
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
