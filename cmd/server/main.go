package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	printingapp "github.com/erp/docprint/internal/application/printing"
	domain "github.com/erp/docprint/internal/domain/printing"
	"github.com/erp/docprint/internal/infrastructure/cache"
	"github.com/erp/docprint/internal/infrastructure/config"
	"github.com/erp/docprint/internal/infrastructure/event"
	"github.com/erp/docprint/internal/infrastructure/logger"
	"github.com/erp/docprint/internal/infrastructure/migration"
	"github.com/erp/docprint/internal/infrastructure/persistence"
	"github.com/erp/docprint/internal/infrastructure/persistence/models"
	infra "github.com/erp/docprint/internal/infrastructure/printing"
	"github.com/erp/docprint/internal/infrastructure/source"
	"github.com/erp/docprint/internal/infrastructure/storage"
	"github.com/erp/docprint/internal/infrastructure/telemetry"
	"github.com/erp/docprint/internal/interfaces/http/handler"
	"github.com/erp/docprint/internal/interfaces/http/middleware"
	"github.com/erp/docprint/internal/interfaces/http/router"
	"github.com/erp/docprint/migrations"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	ctx := context.Background()

	// Telemetry. Each provider is a no-op when disabled.
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	loggerProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize logger provider", zap.Error(err))
	}
	log = loggerProvider.Bridge(log, logger.ParseLevel(cfg.Log.Level))

	log.Info("Starting document print service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	printMetrics, err := telemetry.NewPrintMetrics(meterProvider.Meter("docprint.print"))
	if err != nil {
		log.Fatal("Failed to register print metrics", zap.Error(err))
	}

	bus := event.NewInMemoryEventBus(log.Named("events"))

	// Optional job history
	var (
		db      *persistence.Database
		jobRepo *persistence.GormPrintJobRepository
	)
	if cfg.Database.Enabled {
		db, err = openDatabase(cfg, log)
		if err != nil {
			log.Fatal("Failed to open job history database", zap.Error(err))
		}
		jobRepo = persistence.NewGormPrintJobRepository(db.DB)
		bus.Subscribe(printingapp.NewPrintJobRecorder(jobRepo, log.Named("jobs")))
		log.Info("Print job history enabled", zap.String("driver", db.Driver))
	}

	// Document source, cached
	var docSource domain.DocumentSource
	closeCache := func() error { return nil }
	if cfg.Source.BaseURL != "" {
		httpSource, err := source.NewHTTPDocumentSource(source.HTTPSourceConfig{
			BaseURL: cfg.Source.BaseURL,
			Timeout: cfg.Source.Timeout,
			APIKey:  cfg.Source.APIKey,
			Logger:  log.Named("source"),
		})
		if err != nil {
			log.Fatal("Failed to configure document source", zap.Error(err))
		}
		docCache, closeFn, err := cache.NewDocumentCache(cache.FactoryConfig{
			Enabled:   cfg.Redis.Enabled,
			Addr:      cfg.Redis.Addr(),
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: "docprint:doc:",
		}, cache.WithLogger(log.Named("cache")), cache.WithInMemoryFallback(true))
		if err != nil {
			log.Fatal("Failed to create document cache", zap.Error(err))
		}
		closeCache = closeFn
		docSource = cache.NewCachedDocumentSource(httpSource, docCache, cfg.Redis.DocumentTTL, log.Named("source"))
	} else {
		log.Warn("No document source configured, only inline documents can be printed")
	}

	// Print stack
	surfaces := infra.NewChromeSurfaceFactory(&infra.ChromeConfig{
		DefaultTimeout: cfg.Chrome.Timeout,
		RemoteURL:      cfg.Chrome.RemoteURL,
		NoSandbox:      cfg.Chrome.NoSandbox,
		Logger:         log.Named("chrome"),
	})
	templates, err := infra.NewTemplateStore(&infra.TemplateStoreConfig{ExternalDir: cfg.Print.TemplateDir})
	if err != nil {
		log.Fatal("Failed to load document templates", zap.Error(err))
	}
	renderer := infra.NewDocumentRenderer(infra.NewTemplateEngine(templates), themeFromConfig(cfg.Theme), &infra.RendererConfig{
		SettleTimeout: cfg.Print.MountSettleTimeout,
		Logger:        log.Named("renderer"),
	})
	capturer := infra.NewPDFCapturer(&infra.CaptureConfig{
		MinArtifactBytes: cfg.Print.MinArtifactBytes,
		Logger:           log.Named("capture"),
		OnBlankCapture: func(ctx context.Context, report infra.BlankCaptureReport) {
			printMetrics.RecordBlankCapture(ctx, report.Document.Type.String(), report.Strategy.String())
		},
	})

	downloads, err := infra.NewFileDownloadStore(&infra.DownloadStoreConfig{
		BasePath: cfg.Print.DownloadDir,
		BaseURL:  cfg.Print.DownloadBaseURL,
		TTL:      cfg.Print.DownloadTTL,
		Logger:   log.Named("downloads"),
	})
	if err != nil {
		log.Fatal("Failed to create download store", zap.Error(err))
	}
	var share infra.ShareTarget
	if cfg.Storage.Enabled {
		s3Share, err := storage.NewS3ShareTarget(&cfg.Storage,
			storage.WithLogger(log.Named("share")),
			storage.WithPresignExpiration(cfg.Storage.PresignExpiration),
		)
		if err != nil {
			log.Fatal("Failed to create share target", zap.Error(err))
		}
		if err := s3Share.EnsureBucket(ctx); err != nil {
			log.Fatal("Failed to prepare share bucket", zap.Error(err))
		}
		share = s3Share
	}
	delivery := infra.NewDelivery(share, downloads, log.Named("delivery"))
	dialog := infra.NewClientPrintDialog(log.Named("dialog"))

	pipeline := printingapp.NewPipeline(surfaces, renderer, capturer, delivery, &printingapp.PipelineConfig{
		MaxConcurrentRenders: cfg.Chrome.MaxConcurrentRenders,
		Metrics:              printMetrics,
		Logger:               log.Named("pipeline"),
	})
	tracker := printingapp.NewTracker(pipeline, docSource, dialog, &printingapp.TrackerConfig{
		PrintFallbackTimeout: cfg.Print.PrintFallbackTimeout,
		BatchDelay:           cfg.Print.BatchDelay,
		SessionRetention:     cfg.Print.SessionRetention,
		SubscriberBuffer:     cfg.Print.SubscriberBuffer,
		Publisher:            bus,
		Metrics:              printMetrics,
		Logger:               log.Named("tracker"),
	})

	var repo domain.PrintJobRepository
	if jobRepo != nil {
		repo = jobRepo
	}
	printService := printingapp.NewPrintService(pipeline, tracker, docSource, dialog, downloads, repo, bus,
		printingapp.ServiceConfig{MaxShareBytes: cfg.Storage.MaxShareBytes}, log.Named("service"))

	if err := bus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}

	var limiter *middleware.RateLimiter
	if cfg.HTTP.RenderRateLimit > 0 {
		limiter = middleware.NewRateLimiter(cfg.HTTP.RenderRateLimit, cfg.HTTP.RenderRateBurst)
	}

	cleanupCtx, stopCleanup := context.WithCancel(ctx)
	go runCleanup(cleanupCtx, cfg, downloads, tracker, limiter, jobRepo, log.Named("cleanup"))

	// HTTP
	if cfg.App.Env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("Invalid trusted proxies", zap.Error(err))
	}
	engine.Use(
		middleware.RequestID(),
		logger.Recovery(log),
		middleware.TracingWithConfig(middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     cfg.Telemetry.Enabled,
		}),
		middleware.SpanEnricher(),
		middleware.SpanErrorMarker(),
		middleware.HTTPMetrics(middleware.HTTPMetricsConfig{
			MeterProvider: meterProvider,
			Enabled:       cfg.Telemetry.Enabled,
		}),
		logger.GinMiddleware(log),
		middleware.Secure(),
		middleware.CORSWithConfig(corsConfig(cfg.HTTP)),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
	)

	systemOpts := []handler.SystemOption{handler.WithSessionCounter(tracker.Len)}
	if db != nil {
		systemOpts = append(systemOpts, handler.WithHealthCheck("database", func(context.Context) error {
			return db.Ping()
		}))
	}
	systemHandler := handler.NewSystemHandler(cfg.App.Name, version, systemOpts...)
	engine.GET("/health", systemHandler.Health)

	printRoutes := handler.PrintRoutes(
		handler.NewPrintHandler(printService, handler.WithPrintLogger(log.Named("http"))),
		middleware.RateLimit(limiter),
	)
	r := router.NewRouter(engine).
		Register(printRoutes).
		Register(handler.SystemRoutes(systemHandler))
	r.Setup()

	for _, route := range printRoutes.Routes() {
		log.Debug("Route registered", zap.String("method", route.Method), zap.String("path", r.BasePath()+route.Path))
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Ending the sessions first closes their event streams, which the server
	// would otherwise wait on until the deadline.
	stopCleanup()
	if err := tracker.Shutdown(shutdownCtx); err != nil {
		log.Error("Print sessions did not finish", zap.Error(err))
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := bus.Stop(shutdownCtx); err != nil {
		log.Error("Event bus did not drain", zap.Error(err))
	}
	if err := surfaces.Close(); err != nil {
		log.Error("Error closing browser", zap.Error(err))
	}
	if err := closeCache(); err != nil {
		log.Error("Error closing document cache", zap.Error(err))
	}
	if db != nil {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}
	for name, shutdown := range map[string]func(context.Context) error{
		"traces":  tracerProvider.Shutdown,
		"metrics": meterProvider.Shutdown,
		"logs":    loggerProvider.Shutdown,
	} {
		if err := shutdown(shutdownCtx); err != nil {
			log.Error("Telemetry shutdown failed", zap.String("signal", name), zap.Error(err))
		}
	}

	log.Info("Server exited gracefully")
}

// openDatabase connects the job history store and brings its schema up to date.
// Postgres runs the embedded migrations; a sqlite file is auto-migrated.
func openDatabase(cfg *config.Config, log *zap.Logger) (*persistence.Database, error) {
	gormLog := logger.NewGormLogger(log.Named("gorm"), logger.MapGormLogLevel(cfg.Log.Level), 200*time.Millisecond)
	db, err := persistence.NewDatabase(&cfg.Database, persistence.WithLogger(gormLog))
	if err != nil {
		return nil, err
	}

	tracing := telemetry.DefaultDBTracingConfig()
	tracing.Enabled = cfg.Telemetry.Enabled
	if db.Driver == "sqlite" {
		tracing.DBSystem = "sqlite"
	}
	if err := telemetry.RegisterDBTracing(db.DB, tracing, log); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("register db tracing: %w", err)
	}

	if db.Driver == "sqlite" {
		if err := db.DB.AutoMigrate(&models.PrintJobModel{}); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("auto-migrate print jobs: %w", err)
		}
		return db, nil
	}

	sqlDB, err := db.DB.DB()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	m, err := migration.New(sqlDB, migrations.FS, log.Named("migrate"))
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := m.Up(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return db, nil
}

// runCleanup expires unclaimed downloads, evicts finished sessions, forgets idle
// rate limit clients and prunes old job history until ctx is done.
func runCleanup(
	ctx context.Context,
	cfg *config.Config,
	downloads *infra.FileDownloadStore,
	tracker *printingapp.Tracker,
	limiter *middleware.RateLimiter,
	jobRepo *persistence.GormPrintJobRepository,
	log *zap.Logger,
) {
	interval := cfg.Print.CleanupInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n, err := downloads.CleanupOlderThan(ctx, cfg.Print.DownloadTTL); err != nil {
				log.Warn("Download cleanup failed", zap.Error(err))
			} else if n > 0 {
				log.Info("Expired unclaimed downloads", zap.Int("count", n))
			}
			if n := tracker.EvictFinished(now); n > 0 {
				log.Debug("Evicted finished sessions", zap.Int("count", n))
			}
			if limiter != nil {
				limiter.Prune()
			}
			if jobRepo != nil && cfg.Database.JobRetention > 0 {
				if n, err := jobRepo.DeleteOlderThan(ctx, now.Add(-cfg.Database.JobRetention)); err != nil {
					log.Warn("Job history cleanup failed", zap.Error(err))
				} else if n > 0 {
					log.Info("Pruned job history", zap.Int64("count", n))
				}
			}
		}
	}
}

func themeFromConfig(t config.ThemeConfig) infra.Theme {
	return infra.Theme{
		FontFamily:       t.FontFamily,
		FontSizePt:       t.FontSizePt,
		TextColor:        t.TextColor,
		PrimaryColor:     t.PrimaryColor,
		HeaderBackground: t.HeaderBackground,
		BorderColor:      t.BorderColor,
		StripeColor:      t.StripeColor,
		LogoURL:          t.LogoURL,
		FooterText:       t.FooterText,
	}.WithDefaults()
}

func corsConfig(h config.HTTPConfig) middleware.CORSConfig {
	c := middleware.DefaultCORSConfig()
	if len(h.CORSAllowOrigins) > 0 {
		c.AllowOrigins = h.CORSAllowOrigins
	}
	if len(h.CORSAllowMethods) > 0 {
		c.AllowMethods = h.CORSAllowMethods
	}
	if len(h.CORSAllowHeaders) > 0 {
		c.AllowHeaders = h.CORSAllowHeaders
	}
	return c
}
