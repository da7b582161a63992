package main

// @title LeadRouter API
// @version 1.0
// @description Multi-tenant lead assignment and distribution engine.

// @host localhost:8080
// @BasePath /api/v1

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

	"github.com/jordanlanch/leadrouter/config"
	"github.com/jordanlanch/leadrouter/pkg/cache"
	"github.com/jordanlanch/leadrouter/pkg/container"
	"github.com/jordanlanch/leadrouter/pkg/jobs"
	custommiddleware "github.com/jordanlanch/leadrouter/pkg/middleware"
)

func main() {
	// Load configuration
	cfg := config.Load()
	log.Printf("🔧 Configuration loaded (environment: %s)", cfg.APIEnvironment)

	// Initialize Sentry for error tracking
	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.APIEnvironment,
			TracesSampleRate: 1.0,
			AttachStacktrace: true,
		})
		if err != nil {
			log.Printf("⚠️  Failed to initialize Sentry: %v", err)
		} else {
			log.Printf("✅ Sentry initialized (environment: %s)", cfg.APIEnvironment)
			defer sentry.Flush(2 * time.Second)
		}
	} else {
		log.Printf("ℹ️  Sentry disabled (no DSN configured)")
	}

	// Initialize all dependencies
	c, err := container.New(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to initialize container: %v", err)
	}
	defer c.Close()

	// Initialize Echo
	e := echo.New()
	e.HideBanner = true

	globalRateLimiter := custommiddleware.NewRateLimiter(cfg.RateLimitRequestsPerMinute, cfg.RateLimitBurst)

	// Global middleware
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogError:  true,
		LogValuesFunc: func(ec echo.Context, v middleware.RequestLoggerValues) error {
			log.Printf("[%s] %s - Status: %d", ec.Request().Method, v.URI, v.Status)
			return nil
		},
	}))
	e.Use(middleware.Recover())

	// Sentry error tracking middleware (if configured)
	if cfg.SentryDSN != "" {
		e.Use(sentryecho.New(sentryecho.Options{
			Repanic: true,
		}))
	}

	// Prometheus metrics middleware
	e.Use(c.Metrics.Middleware())

	e.Use(middleware.CORS())
	e.Use(middleware.Gzip())
	e.Use(middleware.Secure())

	// Global rate limiting
	e.Use(globalRateLimiter.RateLimitMiddleware())

	// Health check endpoints (public)
	e.GET("/", func(ec echo.Context) error {
		return ec.JSON(http.StatusOK, map[string]any{
			"name":        "LeadRouter API",
			"version":     "0.1.0",
			"status":      "running",
			"environment": cfg.APIEnvironment,
			"timestamp":   time.Now().Unix(),
		})
	})

	e.GET("/health", func(ec echo.Context) error {
		if err := c.Store.Ping(ec.Request().Context()); err != nil {
			return ec.JSON(http.StatusServiceUnavailable, map[string]any{
				"status":   "unhealthy",
				"database": "down",
			})
		}

		if cacheClient, ok := c.Cache.(*cache.Client); ok {
			if err := cacheClient.Ping(ec.Request().Context()); err != nil {
				return ec.JSON(http.StatusServiceUnavailable, map[string]any{
					"status": "unhealthy",
					"cache":  "down",
				})
			}
		}

		return ec.JSON(http.StatusOK, map[string]any{
			"status":   "healthy",
			"database": "up",
			"cache":    "up",
		})
	})

	// Prometheus metrics endpoint (public)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// API v1 routes group with versioning middleware
	v1 := e.Group("/api/v1")
	v1.Use(custommiddleware.APIVersionMiddleware(custommiddleware.CurrentAPIVersion))

	v1.GET("/ping", func(ec echo.Context) error {
		return ec.JSON(http.StatusOK, map[string]string{
			"message": "pong",
		})
	})

	// Lead routes
	leadsGroup := v1.Group("/leads")
	{
		leadsGroup.POST("", c.LeadHandler.CreateLead)
		leadsGroup.POST("/:id/reassign", c.LeadHandler.ReassignLead)
		leadsGroup.POST("/:id/claim", c.LeadHandler.ClaimLead)
		leadsGroup.POST("/:id/close", c.LeadHandler.CloseLead)
	}

	// Tenant routes
	tenantsGroup := v1.Group("/tenants")
	{
		tenantsGroup.GET("/:id/assignment-config", c.ConfigHandler.GetConfig)
		tenantsGroup.PUT("/:id/assignment-config", c.ConfigHandler.UpdateConfig)
		tenantsGroup.GET("/:id/assignment-rules", c.RulesHandler.GetRules)
		tenantsGroup.PUT("/:id/assignment-rules", c.RulesHandler.ReplaceRules)
		tenantsGroup.GET("/:id/assignment-logs", c.LogsHandler.GetLogs)
		tenantsGroup.GET("/:id/pools", c.PoolsHandler.ListPools)
		tenantsGroup.GET("/:id/pools/:pool/leads", c.PoolsHandler.ListPoolLeads)
	}

	// Start the SLA watchdog
	sweepInterval := time.Duration(cfg.WatchdogSweepIntervalSeconds) * time.Second
	cronManager := jobs.NewCronManager(c.WatchdogService, sweepInterval, log.Default())
	if err := cronManager.SetupJobs(); err != nil {
		log.Fatalf("❌ Failed to setup cron jobs: %v", err)
	}
	cronManager.Start()

	// Start server
	address := fmt.Sprintf("%s:%s", cfg.APIHost, cfg.APIPort)
	log.Printf("🚀 LeadRouter API starting on %s", address)
	log.Printf("📝 Log level: %s, Log format: %s", cfg.LogLevel, cfg.LogFormat)
	log.Printf("🛡️  Rate limiting: %d req/min (burst: %d)", cfg.RateLimitRequestsPerMinute, cfg.RateLimitBurst)
	log.Printf("⏰ SLA watchdog sweep: every %s", sweepInterval)

	// Graceful shutdown
	go func() {
		if err := e.Start(address); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
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
