package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sigce-api/api/swagger"
	"github.com/noah-isme/sigce-api/internal/handler"
	"github.com/noah-isme/sigce-api/internal/middleware"
	"github.com/noah-isme/sigce-api/internal/repository"
	"github.com/noah-isme/sigce-api/internal/service"
	"github.com/noah-isme/sigce-api/pkg/assets"
	"github.com/noah-isme/sigce-api/pkg/cache"
	"github.com/noah-isme/sigce-api/pkg/config"
	"github.com/noah-isme/sigce-api/pkg/database"
	"github.com/noah-isme/sigce-api/pkg/export"
	"github.com/noah-isme/sigce-api/pkg/jobs"
	"github.com/noah-isme/sigce-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sigce-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sigce-api/pkg/middleware/requestid"
	"github.com/noah-isme/sigce-api/pkg/storage"
)

// @title SIGCE API
// @version 1.0.0
// @description Certificate issuance and public verification service
// @BasePath /api/v1
// @schemes http https

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.EnsureSchema(ctx, db); err != nil {
			logr.Fatal("failed to apply schema", zap.Error(err))
		}
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Fatal("failed to connect redis", zap.Error(err))
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	app, err := buildApp(cfg, db, redisClient, logr)
	if err != nil {
		logr.Fatal("failed to wire application", zap.Error(err))
	}
	app.archiveQueue.Start(context.Background())
	defer app.archiveQueue.Stop()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	r := newRouter(cfg, app, logr)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("server forced to shutdown", zap.Error(err))
	}
	if err := app.archiveQueue.Wait(shutdownCtx); err != nil {
		logr.Warn("archive queue did not drain", zap.Error(err))
	}
	logr.Info("server exited")
}

type application struct {
	metrics      *service.MetricsService
	archiveQueue *jobs.Queue

	certificates  *handler.CertificateHandler
	verification  *handler.VerificationHandler
	templates     *handler.TemplateHandler
	students      *handler.StudentHandler
	documents     *handler.DocumentHandler
	reports       *handler.ReportHandler
	observability *handler.MetricsHandler
}

func buildApp(cfg *config.Config, db *sqlx.DB, redisClient *redis.Client, logr *zap.Logger) (*application, error) {
	validate := validator.New()
	metrics := service.NewMetricsService()

	certRepo := repository.NewCertificateRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	templateRepo := repository.NewTemplateRepository(db)
	statRepo := repository.NewProgramStatRepository(db)

	reserver, err := newReserver(cfg, db, redisClient, certRepo, logr)
	if err != nil {
		return nil, err
	}
	sequences := service.NewSequenceService(reserver, service.SequenceConfig{
		Backend: cfg.Certificates.SequenceBackend,
		Timeout: cfg.Certificates.ReservationTimeout,
		Retries: cfg.Certificates.ReservationRetries,
	}, metrics, logr)
	logr.Info("folio sequence backend ready",
		zap.String("backend", cfg.Certificates.SequenceBackend),
		zap.Bool("collision_safe", sequences.CollisionSafe()),
	)

	cacheSvc := service.NewCacheService(repository.NewCacheRepository(redisClient, logr), metrics, cfg.Verification.CacheTTL, logr,
		cfg.Verification.CacheEnabled && redisClient != nil)
	verifySvc := service.NewVerificationService(certRepo, cacheSvc, cfg.Verification.CacheTTL, metrics, logr)

	studentSvc := service.NewStudentService(studentRepo, validate, logr)
	templateSvc := service.NewTemplateService(templateRepo, validate, logr)
	certSvc := service.NewCertificateService(certRepo, studentSvc, sequences, service.CertificateServiceDeps{
		Stats:    statRepo,
		Verifier: verifySvc,
		Metrics:  metrics,
	}, service.CertificateConfig{
		AppBaseURL:     cfg.Certificates.AppBaseURL,
		DefaultPrefix:  cfg.Certificates.DefaultPrefix,
		ArchiveOnIssue: cfg.Certificates.ArchiveOnIssue,
	}, validate, logr)

	loader := assets.NewLoader(assets.Options{BaseDir: cfg.Rendering.AssetsDir, Timeout: cfg.Rendering.AssetTimeout, Logger: logr})
	renderSvc := service.NewRenderService(loader, service.RenderConfig{
		LogoPath:     cfg.Rendering.LogoPath,
		AssetTimeout: cfg.Rendering.AssetTimeout,
		Compress:     cfg.Rendering.Compress,
	}, metrics, logr)

	store, err := storage.NewLocalStorage(cfg.Documents.StorageDir)
	if err != nil {
		return nil, fmt.Errorf("init document storage: %w", err)
	}
	signer := storage.NewDocumentTokenSigner(cfg.Documents.SignedURLSecret, cfg.Documents.SignedURLTTL)
	docSvc := service.NewDocumentService(certRepo, templateRepo, renderSvc, store, signer, metrics,
		service.DocumentConfig{DownloadBaseURL: cfg.Documents.DownloadBaseURL}, logr)

	queue := jobs.NewQueue("certificate-archive", docSvc.HandleJob, jobs.QueueConfig{
		Workers:    cfg.Documents.WorkerConcurrency,
		MaxRetries: cfg.Documents.WorkerRetries,
		RetryDelay: 2 * time.Second,
		JobTimeout: time.Minute,
		Logger:     logr,
		OnFailure: func(job jobs.Job, err error) {
			metrics.RecordArchive("failed")
			logr.Error("certificate archival abandoned", zap.String("certificate_id", job.ID), zap.Error(err))
		},
	})
	docSvc.AttachQueue(queue)
	certSvc.SetArchiver(docSvc)

	exportSvc := service.NewExportService(certRepo, export.NewCSVExporter(), export.NewPDFExporter(), validate, logr)

	checks := map[string]handler.ReadinessCheck{
		"postgres": func(ctx context.Context) error { return db.PingContext(ctx) },
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	return &application{
		metrics:       metrics,
		archiveQueue:  queue,
		certificates:  handler.NewCertificateHandler(certSvc),
		verification:  handler.NewVerificationHandler(verifySvc),
		templates:     handler.NewTemplateHandler(templateSvc),
		students:      handler.NewStudentHandler(studentSvc),
		documents:     handler.NewDocumentHandler(docSvc),
		reports:       handler.NewReportHandler(exportSvc),
		observability: handler.NewMetricsHandler(metrics, checks),
	}, nil
}

func newReserver(cfg *config.Config, db *sqlx.DB, redisClient *redis.Client, certs *repository.CertificateRepository, logr *zap.Logger) (service.SequenceReserver, error) {
	switch cfg.Certificates.SequenceBackend {
	case config.SequenceBackendRedis:
		if redisClient == nil {
			return nil, errors.New("redis sequence backend requires REDIS_ENABLED=true")
		}
		counters := repository.NewRedisSequenceRepository(redisClient)
		if err := seedSequences(certs, counters, logr); err != nil {
			return nil, err
		}
		return counters, nil
	case config.SequenceBackendCount:
		logr.Warn("count-based folio sequences are not collision safe under concurrent issuance")
		return service.NewCountingReserver(certs, logr), nil
	default:
		counters := repository.NewSequenceRepository(db)
		if err := seedSequences(certs, counters, logr); err != nil {
			return nil, err
		}
		return counters, nil
	}
}

func seedSequences(certs *repository.CertificateRepository, seeder service.SequenceSeeder, logr *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := service.SeedSequences(ctx, certs, seeder, logr); err != nil {
		return fmt.Errorf("seed folio sequences: %w", err)
	}
	return nil
}

func newRouter(cfg *config.Config, app *application, logr *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(app.metrics))

	r.GET("/health", app.observability.Health)
	r.GET("/ready", app.observability.Ready)
	r.GET("/metrics", app.observability.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.GET("/metrics/summary", app.observability.Snapshot)

	certs := api.Group("/certificates")
	certs.POST("", app.certificates.Issue)
	certs.GET("", app.certificates.List)
	certs.GET("/sequences/count", app.certificates.SequenceCount)
	certs.GET("/folio/:folio", app.certificates.GetByFolio)
	certs.GET("/:id", app.certificates.Get)
	certs.PATCH("/:id/status", app.certificates.UpdateStatus)
	certs.GET("/:id/document", app.documents.Render)
	certs.POST("/:id/document/archive", app.documents.Archive)

	api.GET("/students", app.students.List)
	api.POST("/students", app.students.Create)
	api.GET("/students/:id", app.students.Get)
	api.GET("/students/:id/certificates", app.certificates.ByStudent)

	api.GET("/programs/stats", app.certificates.ProgramStats)

	api.GET("/templates", app.templates.List)
	api.POST("/templates", app.templates.Create)
	api.GET("/templates/:id", app.templates.Get)
	api.PUT("/templates/:id", app.templates.Update)
	api.DELETE("/templates/:id", app.templates.Delete)

	api.GET("/verify/:query", app.verification.Verify)
	api.GET("/documents/:token", app.documents.Download)
	api.GET("/reports/certificates", app.reports.CertificateRegistry)

	return r
}
