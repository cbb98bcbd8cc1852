package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/batisuivi/situations-api/internal/config"
	"github.com/batisuivi/situations-api/internal/database"
	"github.com/batisuivi/situations-api/internal/handlers"
	"github.com/batisuivi/situations-api/internal/jobs"
	"github.com/batisuivi/situations-api/internal/metrics"
	"github.com/batisuivi/situations-api/internal/middleware"
	"github.com/batisuivi/situations-api/internal/repository"
	"github.com/batisuivi/situations-api/internal/services"
	"github.com/batisuivi/situations-api/pkg/logger"
)

// @title Situations API
// @version 1.0
// @description Monthly progress billing (situations de travaux) for construction sites
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger.Setup(cfg.Environment, cfg.LogLevel)

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			TracesSampleRate: 0.2,
			Environment:      cfg.Environment,
		}); err != nil {
			logger.Error("Sentry initialization failed", "error", err)
		} else {
			logger.Info("Sentry initialized")
		}
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	metrics.Init()

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	logger.Info("Connected to database")

	if cfg.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			logger.Error("Migration failed", "error", err)
			os.Exit(1)
		}
		logger.Info("Database schema up to date")
	}

	repos := repository.NewRepositories(db)

	worker := jobs.NewWorker(cfg.WorkerCount)
	logger.Info("Started background worker", "goroutines", cfg.WorkerCount)

	svcs := services.NewServices(repos, worker, cfg)
	svcs.Job.Start(cfg.ReconcileInterval)
	logger.Info("Scheduled statement reconciliation", "every", cfg.ReconcileInterval.String())

	h := handlers.NewHandlers(svcs, cfg, pinger(db))
	router := setupRouter(h, cfg)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	// in-flight audit writes and reconciliation finish before exit
	worker.Shutdown()
	logger.Info("Background worker stopped")

	if cfg.SentryDSN != "" {
		sentry.Flush(5 * time.Second)
	}

	logger.Info("Server exited gracefully")
}

func pinger(db *gorm.DB) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return database.Ping(ctx, db)
	}
}

func setupRouter(h *handlers.Handlers, cfg *config.Config) *gin.Engine {
	router := gin.New()

	if cfg.SentryDSN != "" {
		router.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.CORS(cfg.AllowedOrigins))
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", h.Health.Index)

		protected := v1.Group("")
		protected.Use(middleware.Auth(cfg.JWTSecret))
		{
			// Progress entry (site managers)
			progress := protected.Group("")
			progress.Use(middleware.RequireRole(middleware.RoleConducteur))
			{
				progress.PUT("/quotes/:quote_id/lines/:line_id/progress", h.Progress.UpdateLine)
				progress.PUT("/amendments/lines/:line_id/progress", h.Progress.UpdateAmendmentLine)
				progress.PUT("/sites/:site_id/progress", h.Progress.UpdateSite)
			}

			// Composition and persistence (accounting)
			billing := protected.Group("")
			billing.Use(middleware.RequireRole(middleware.RoleComptable))
			{
				billing.POST("/sites/:site_id/situations", h.Situation.Compose)
				billing.POST("/situations/:statement_id/reconcile", h.Situation.Reconcile)
			}

			// Read access for every billing role
			read := protected.Group("")
			read.Use(middleware.RequireRole(middleware.RoleConducteur, middleware.RoleComptable))
			{
				read.POST("/sites/:site_id/situations/preview", h.Situation.Preview)
				read.GET("/sites/:site_id/situations", h.Situation.Index)
				read.GET("/situations/:statement_id", h.Situation.Show)
				read.GET("/situations/:statement_id/export", h.Situation.Export)
			}

			// Admin only
			admin := protected.Group("")
			admin.Use(middleware.RequireRole())
			{
				admin.GET("/audits", h.Audit.Index)
				admin.GET("/jobs/status", h.Job.Status)
				admin.POST("/jobs/reconcile", h.Job.Reconcile)
			}
		}
	}

	return router
}
