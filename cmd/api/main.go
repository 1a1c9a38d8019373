package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shippingcomps/backend/config"
	"github.com/shippingcomps/backend/pkg/ai/llm"
	"github.com/shippingcomps/backend/pkg/analysis"
	"github.com/shippingcomps/backend/pkg/api/handlers"
	"github.com/shippingcomps/backend/pkg/billing"
	"github.com/shippingcomps/backend/pkg/cache"
	"github.com/shippingcomps/backend/pkg/database"
	"github.com/shippingcomps/backend/pkg/email"
	"github.com/shippingcomps/backend/pkg/export"
	"github.com/shippingcomps/backend/pkg/jobs"
	"github.com/shippingcomps/backend/pkg/logger"
	"github.com/shippingcomps/backend/pkg/metrics"
	custommiddleware "github.com/shippingcomps/backend/pkg/middleware"
	"github.com/shippingcomps/backend/pkg/scrape"
	"github.com/shippingcomps/backend/pkg/store"
	"github.com/shippingcomps/backend/pkg/subscription"
)

func main() {
	// Load configuration
	cfg := config.Load()
	log.Printf("🔧 Configuration loaded (environment: %s)", cfg.APIEnvironment)

	appLogger := logger.New(cfg.LogLevel)

	// Initialize Sentry for error tracking
	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.SentryEnvironment,
			TracesSampleRate: 1.0,
			AttachStacktrace: true,
		})
		if err != nil {
			log.Printf("⚠️  Failed to initialize Sentry: %v", err)
		} else {
			log.Printf("✅ Sentry initialized (environment: %s)", cfg.SentryEnvironment)
			defer sentry.Flush(2 * time.Second)
		}
	} else {
		log.Printf("ℹ️  Sentry disabled (no DSN configured)")
	}

	// Initialize database
	db, err := database.NewClient(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Initialize Redis cache
	redisClient, err := cache.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatalf("❌ Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	// Initialize Prometheus metrics
	prometheusMetrics := metrics.New()
	log.Printf("✅ Prometheus metrics initialized")

	// Content acquisition strategy
	var fetcher scrape.Fetcher
	if cfg.ScrapeStrategy == "structured" && cfg.FirecrawlAPIKey != "" {
		fetcher = scrape.NewFirecrawlClient(cfg.FirecrawlAPIKey, cfg.FirecrawlBaseURL, appLogger)
		log.Printf("✅ Structured content extraction enabled")
	} else {
		fetcher = scrape.NewRawFetcher()
		log.Printf("✅ Raw content fetching enabled")
	}

	// LLM provider
	var llmClient llm.Client
	if cfg.LLMProvider == "ollama" || cfg.OpenAIAPIKey == "" {
		llmClient = llm.NewOllamaClient(llm.OllamaConfig{
			BaseURL:     cfg.OllamaBaseURL,
			Model:       cfg.OllamaModel,
			Temperature: float32(cfg.LLMTemperature),
			MaxTokens:   cfg.LLMMaxTokens,
		}, appLogger)
		log.Printf("✅ LLM provider: ollama (%s)", cfg.OllamaModel)
	} else {
		llmClient = llm.NewOpenAIClient(llm.Config{
			APIKey:      cfg.OpenAIAPIKey,
			Model:       cfg.OpenAIModel,
			Temperature: float32(cfg.LLMTemperature),
			MaxTokens:   cfg.LLMMaxTokens,
		}, appLogger)
		log.Printf("✅ LLM provider: openai (%s)", cfg.OpenAIModel)
	}

	// Stores
	analysisStore := store.NewAnalysisStore(db.DB)
	tokenStore := store.NewTokenStore(db.DB)
	subscriptionStore := store.NewSubscriptionStore(db.DB)

	// Services
	pipeline := analysis.NewPipeline(fetcher, llmClient, analysis.Config{
		CompetitorCount:     cfg.CompetitorCount,
		CompetitorCountFast: cfg.CompetitorCountFast,
		CompetitorCountFull: cfg.CompetitorCountFull,
		ExtractTimeout:      time.Duration(cfg.ExtractTimeoutSeconds) * time.Second,
	}, appLogger)

	emailService := email.NewService(cfg.EmailFrom, cfg.EmailFromName, cfg.FrontendURL, cfg.SendGridAPIKey)
	exportService := export.NewService()

	billingService := billing.NewService(tokenStore, &billing.StripeConfig{
		SecretKey:     cfg.StripeSecretKey,
		WebhookSecret: cfg.StripeWebhookSecret,
		PriceStarter:  cfg.StripePriceStarter,
		PriceGrowth:   cfg.StripePriceGrowth,
		PriceScale:    cfg.StripePriceScale,
		SuccessURL:    cfg.FrontendURL + "/billing?success=true",
		CancelURL:     cfg.FrontendURL + "/billing?canceled=true",
	}, appLogger)

	subscriptionService := subscription.NewService(subscriptionStore, analysisStore, pipeline, emailService, appLogger)

	// Cron: stale analysis reaper + subscription runner
	staleAfter := time.Duration(cfg.StaleAnalysisMinutes) * time.Minute
	cronManager := jobs.NewCronManager(analysisStore, subscriptionService, staleAfter, log.Default())
	if err := cronManager.SetupJobs(); err != nil {
		log.Fatalf("❌ Failed to setup cron jobs: %v", err)
	}
	cronManager.Start()

	// Handlers
	analyzeHandler := handlers.NewAnalyzeHandler(pipeline, analysisStore, redisClient, tokenStore, prometheusMetrics, appLogger, cfg.AnalysisTokenCost)
	billingHandler := handlers.NewBillingHandler(billingService, tokenStore, prometheusMetrics, appLogger)
	subscriptionHandler := handlers.NewSubscriptionHandler(subscriptionService)
	exportHandler := handlers.NewExportHandler(analysisStore, exportService)
	healthHandler := handlers.NewHealthHandler(db, redisClient)

	// Echo
	e := echo.New()
	e.HideBanner = true

	// Rate limiters
	globalRateLimiter := custommiddleware.NewRateLimiter(cfg.RateLimitRequestsPerMinute, cfg.RateLimitBurst)
	analyzeRateLimiter := custommiddleware.NewRateLimiter(cfg.AnalyzeRequestsPerMinute, cfg.AnalyzeBurst)
	webhookRateLimiter := custommiddleware.NewRateLimiter(100, 20)

	// Global middleware
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Printf("[%s] %s - Status: %d", c.Request().Method, v.URI, v.Status)
			return nil
		},
	}))
	e.Use(middleware.Recover())

	if cfg.SentryDSN != "" {
		e.Use(sentryecho.New(sentryecho.Options{Repanic: true}))
	}

	e.Use(prometheusMetrics.Middleware())
	e.Use(middleware.CORSWithConfig(custommiddleware.CORSConfig(cfg.FrontendURL)))
	e.Use(middleware.Gzip())
	e.Use(middleware.Secure())
	e.Use(globalRateLimiter.RateLimitMiddleware())

	// Public endpoints
	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"name":        "Shipping Comps API",
			"version":     "0.1.0",
			"status":      "running",
			"environment": cfg.APIEnvironment,
			"timestamp":   time.Now().Unix(),
		})
	})
	e.GET("/health", healthHandler.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// API v1 routes
	v1 := e.Group("/api/v1")

	// Analysis runs are expensive, so they get their own tighter limit
	v1.POST("/analyze", analyzeHandler.Analyze, analyzeRateLimiter.RateLimitMiddleware())
	v1.GET("/analyses", analyzeHandler.ListAnalyses)
	v1.GET("/analyses/:id", analyzeHandler.GetAnalysis)
	v1.GET("/analyses/:id/export", exportHandler.Download)

	subscriptionGroup := v1.Group("/subscriptions")
	{
		subscriptionGroup.POST("", subscriptionHandler.Create)
		subscriptionGroup.GET("", subscriptionHandler.List)
		subscriptionGroup.DELETE("/:id", subscriptionHandler.Cancel)
	}

	billingGroup := v1.Group("/billing")
	{
		billingGroup.GET("/packs", billingHandler.ListPacks)
		billingGroup.GET("/balance", billingHandler.GetBalance)
		billingGroup.POST("/checkout", billingHandler.CreateCheckout)
		billingGroup.POST("/webhook", billingHandler.StripeWebhook, webhookRateLimiter.RateLimitMiddleware())
	}

	// Sample the connection pool for the metrics gauge
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			prometheusMetrics.UpdateDBConnections(float64(db.DB.Stats().OpenConnections))
		}
	}()

	// Start server
	address := fmt.Sprintf("%s:%s", cfg.APIHost, cfg.APIPort)
	log.Printf("🚀 Shipping Comps API starting on %s", address)
	log.Printf("🛡️  Rate limiting: %d req/min (burst: %d), analyze: %d req/min (burst: %d)",
		cfg.RateLimitRequestsPerMinute, cfg.RateLimitBurst,
		cfg.AnalyzeRequestsPerMinute, cfg.AnalyzeBurst)
	log.Printf("⏰ Cron jobs: reaper every 2 min (stale after %s), subscriptions hourly", staleAfter)

	// Graceful shutdown
	go func() {
		if err := e.Start(address); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")

	cronManager.Stop()
	log.Println("✅ Cron jobs stopped")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		log.Fatalf("❌ Server forced to shutdown: %v", err)
	}

	log.Println("✅ Server gracefully stopped")
}
