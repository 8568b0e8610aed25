package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/invoicepdf/backend/docs"
	invoiceapp "github.com/invoicepdf/backend/internal/application/invoice"
	"github.com/invoicepdf/backend/internal/domain/invoice"
	"github.com/invoicepdf/backend/internal/infrastructure/config"
	"github.com/invoicepdf/backend/internal/infrastructure/logger"
	"github.com/invoicepdf/backend/internal/infrastructure/persistence"
	"github.com/invoicepdf/backend/internal/infrastructure/printing"
	"github.com/invoicepdf/backend/internal/infrastructure/storage"
	"github.com/invoicepdf/backend/internal/infrastructure/telemetry"
	"github.com/invoicepdf/backend/internal/interfaces/http/handler"
	"github.com/invoicepdf/backend/internal/interfaces/http/middleware"
	"github.com/invoicepdf/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  cfg.Log.Output,
		Service: cfg.App.Name,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting invoice PDF service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("storage_driver", cfg.Storage.Driver),
	)

	ctx := context.Background()

	// Telemetry
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
		Enabled:           cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	invoiceMetrics, err := telemetry.NewInvoiceMetrics(meterProvider.Meter("invoice-pdf/invoice"))
	if err != nil {
		log.Fatal("Failed to register invoice metrics", zap.Error(err))
	}

	// Database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
		Enabled:    cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL: cfg.Telemetry.DBLogFullSQL,
	}, log); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}
	log.Info("Database connected successfully")

	// Storage
	objects, files, err := newObjectStorage(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize object storage", zap.Error(err))
	}

	// Rendering
	templates, err := printing.LoadTemplateEngine(cfg.Invoice.TemplatePath,
		printing.WithLogoURL(cfg.Invoice.LogoURL),
		printing.WithDefaultCurrency(cfg.Invoice.DefaultCurrency),
		printing.WithDefaultLocale(cfg.Invoice.DefaultLocale),
	)
	if err != nil {
		log.Fatal("Failed to compile invoice template", zap.Error(err))
	}

	profile := printing.SelectLaunchProfile(printing.LaunchOptions{
		Environment: cfg.Renderer.Environment,
		ExecPath:    cfg.Renderer.ExecPath,
		RemoteURL:   cfg.Renderer.RemoteURL,
		Flags:       cfg.Renderer.Flags,
	}, os.LookupEnv)
	log.Info("Browser launch profile selected",
		zap.String("profile", profile.Name),
		zap.Bool("remote", profile.RemoteURL != ""))

	browser := printing.NewChromedpEngine(printing.ChromedpConfig{
		Profile: profile,
		Logger:  log.Named("chromedp"),
	})
	defer func() {
		if err := browser.Close(); err != nil {
			log.Error("Error closing browser", zap.Error(err))
		}
	}()
	rasterizer := printing.NewRasterizer(browser, printing.RasterizerConfig{
		MaxConcurrent: cfg.Renderer.MaxConcurrent,
		Timeout:       cfg.Renderer.Timeout,
		Logger:        log.Named("rasterizer"),
	})

	layout, err := pageLayout(cfg.Renderer)
	if err != nil {
		log.Fatal("Invalid page layout", zap.Error(err))
	}

	// Application
	store := invoiceapp.NewArtifactStore(objects, persistence.NewGormArtifactPointerRepository(db.DB), invoiceapp.ArtifactStoreConfig{
		KeyPrefix:  cfg.Invoice.KeyPrefix,
		DefaultTTL: cfg.Invoice.LinkTTL,
		MaxTTL:     cfg.Invoice.MaxLinkTTL,
		Logger:     log,
	})
	service := invoiceapp.NewInvoiceService(
		persistence.NewGormOrderDataGateway(db.DB),
		templates,
		rasterizer,
		store,
		invoiceapp.ServiceConfig{
			Layout:         layout,
			LogoURL:        cfg.Invoice.LogoURL,
			RequestTimeout: cfg.Invoice.RequestTimeout,
			Metrics:        invoiceMetrics,
			Logger:         log,
		},
	)

	// HTTP
	middleware.SetupValidator()

	cors := middleware.DefaultCORSConfig()
	if len(cfg.HTTP.CORSAllowOrigins) > 0 {
		cors.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	}
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		cors.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		cors.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}

	engine, err := router.NewEngine(router.EngineConfig{
		Logger:         log,
		ServiceName:    cfg.Telemetry.ServiceName,
		TracingEnabled: cfg.Telemetry.Enabled,
		MeterProvider:  meterProvider,
		CORS:           cors,
		TrustedProxies: cfg.HTTP.TrustedProxies,
		Swagger:        middleware.SwaggerConfig{
			Enabled:    cfg.HTTP.SwaggerEnabled,
			AllowedIPs: cfg.HTTP.SwaggerAllowedIPs,
		},
	})
	if err != nil {
		log.Fatal("Failed to build HTTP engine", zap.Error(err))
	}

	handlerOpts := []handler.InvoiceHandlerOption{handler.WithHandlerLogger(log)}
	if files != nil {
		handlerOpts = append(handlerOpts, handler.WithLinkedFiles(files))
	}
	invoiceHandler := handler.NewInvoiceHandler(service, handlerOpts...)

	router.NewRouter(engine).
		Register(handler.InvoiceRoutes(invoiceHandler)).
		RegisterRoot(handler.LegacyRoutes(invoiceHandler)).
		Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownTimeout := cfg.HTTP.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down meter provider", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down tracer provider", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// newObjectStorage builds the configured storage backend. The local backend
// is also returned as the file store behind signed download links.
func newObjectStorage(ctx context.Context, cfg *config.Config, log *zap.Logger) (invoice.ObjectStorage, handler.LinkedFileStore, error) {
	switch cfg.Storage.Driver {
	case config.StorageDriverS3:
		s3Storage, err := storage.NewS3ObjectStorage(&cfg.Storage, storage.WithLogger(log.Named("s3")))
		if err != nil {
			return nil, nil, err
		}
		if err := s3Storage.EnsureBucket(ctx); err != nil {
			return nil, nil, err
		}
		log.Info("Using S3 object storage", zap.String("bucket", s3Storage.GetBucket()))
		return s3Storage, nil, nil

	default:
		storageCfg := cfg.Storage
		if storageCfg.LocalSigningSecret == "" {
			secret, err := randomSecret()
			if err != nil {
				return nil, nil, err
			}
			storageCfg.LocalSigningSecret = secret
			log.Warn("No local signing secret configured, generated one; download links will not survive a restart")
		}
		local, err := storage.NewLocalObjectStorage(&storageCfg, storage.WithLocalLogger(log.Named("storage")))
		if err != nil {
			return nil, nil, err
		}
		log.Info("Using local object storage",
			zap.String("path", storageCfg.LocalBasePath),
			zap.String("base_url", storageCfg.LocalBaseURL))
		return local, local, nil
	}
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// pageLayout applies the configured paper size and orientation to the
// default layout
func pageLayout(cfg config.RendererConfig) (invoice.PageLayout, error) {
	layout := invoice.DefaultPageLayout()
	if cfg.PaperSize != "" {
		size, err := invoice.ParsePaperSize(cfg.PaperSize)
		if err != nil {
			return invoice.PageLayout{}, err
		}
		layout.PaperSize = size
	}
	if cfg.Orientation != "" {
		layout.Orientation = invoice.Orientation(strings.ToUpper(cfg.Orientation))
	}
	return layout, layout.Validate()
}
