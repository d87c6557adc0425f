package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"docvault/docs"
	"docvault/internal/config"
	"docvault/internal/database"
	"docvault/internal/database/migration"
	handlers "docvault/internal/http/handler"
	"docvault/internal/http/middleware"
	"docvault/internal/logging"
	"docvault/internal/metrics"
	"docvault/internal/otel"
	"docvault/internal/repository"
	"docvault/internal/repository/memory"
	"docvault/internal/repository/postgres"
	"docvault/internal/scan"
	"docvault/internal/service"
	"docvault/internal/storage"
	"docvault/internal/thumbnail"
)

// multipart framing and form fields on top of the file bytes
const bodyOverhead = 1 << 20

// @title Document Vault API
// @version 1.0
// @description Versioned document storage with access control and signed URLs.
// @BasePath /
func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := logging.SetLogLevel(cfg.LogLevel); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logging.New("api")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Init(ctx, logging.New("otel"))
	if err != nil {
		log.Fatalw("failed to initialize tracing", "error", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Warnw("tracing shutdown failed", "error", err)
		}
	}()

	db, docRepo, err := newRepository(ctx, cfg)
	if err != nil {
		log.Fatalw("failed to initialize repository", "backend", cfg.Repository, "error", err)
	}
	if db != nil {
		defer db.Close()
	}

	objStore, err := newStorage(ctx, cfg, log)
	if err != nil {
		log.Fatalw("failed to initialize object storage", "backend", cfg.Storage.Backend, "error", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	domainMetrics, err := metrics.New(reg)
	if err != nil {
		log.Fatalw("failed to register metrics", "error", err)
	}
	httpMetrics, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		log.Fatalw("failed to register http metrics", "error", err)
	}

	docSvc := service.NewDocumentService(objStore, docRepo,
		service.Config{
			AllowedMIMETypes: cfg.Upload.AllowedMIMETypes,
			MaxSizeBytes:     cfg.Upload.MaxSizeBytes,
			DownloadURLTTL:   cfg.Upload.DownloadURLTTL,
			Thumbnail: thumbnail.Spec{
				Width:   cfg.Thumbnail.Width,
				Height:  cfg.Thumbnail.Height,
				Format:  cfg.Thumbnail.Format,
				Quality: cfg.Thumbnail.Quality,
			},
		},
		service.WithScanner(scan.New(cfg.Upload.ExtraSignatures...)),
		service.WithLogger(logging.New("service")),
		service.WithMetrics(domainMetrics),
	)

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
		BodyLimit:    int(cfg.Upload.MaxSizeBytes)*4 + bodyOverhead,
	})

	app.Use(otelfiber.Middleware())
	app.Use(middleware.RequestID())
	app.Use(httpMetrics.Handler())
	app.Use(middleware.Identity([]byte(cfg.Auth.JWTSecret)))
	app.Use(middleware.Logger(logging.New("http")))

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	handlers.RegisterRoutes(app, db, docSvc)

	// Swagger UI with dynamic host and scheme
	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.Split(proto, ",")[0]
		}

		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	})

	go func() {
		<-ctx.Done()
		log.Infow("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Warnw("http shutdown failed", "error", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Infow("starting server",
		"addr", addr,
		"repository", cfg.Repository,
		"storage", cfg.Storage.Backend,
		"jwt_auth", cfg.Auth.JWTSecret != "",
	)
	if err := app.Listen(addr); err != nil {
		log.Errorw("server stopped", "error", err)
	}
}

// newRepository returns the document repository selected by REPOSITORY_BACKEND.
// The *sql.DB is nil for the in-memory backend.
func newRepository(ctx context.Context, cfg *config.AppConfig) (*sql.DB, repository.DocumentRepository, error) {
	if cfg.Repository != "postgres" {
		repo, err := memory.New()
		return nil, repo, err
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := migration.EnsureMigrated(ctx, db, logging.New("migration"), cfg.Database.Host); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("migrate database: %w", err)
	}
	return db, postgres.NewDocumentPostgres(db), nil
}

// newStorage returns the object storage backend selected by STORAGE_BACKEND.
func newStorage(ctx context.Context, cfg *config.AppConfig, log logging.Logger) (storage.Provider, error) {
	switch cfg.Storage.Backend {
	case "s3":
		return storage.NewS3(cfg.Storage.S3)
	case "minio":
		return storage.NewMinIO(ctx, cfg.Storage.MinIO)
	default:
		secret := []byte(cfg.Storage.SigningSecret)
		if len(secret) == 0 {
			// URLs signed with a random secret stop verifying after a restart.
			secret = make([]byte, 32)
			if _, err := rand.Read(secret); err != nil {
				return nil, fmt.Errorf("generate signing secret: %w", err)
			}
			log.Warnw("STORAGE_SIGNING_SECRET not set, using an ephemeral secret")
		}
		return storage.NewMemory("", secret)
	}
}
