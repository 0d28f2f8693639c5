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

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/radvia/faturamento/internal/classify"
	"github.com/radvia/faturamento/internal/config"
	domainbilling "github.com/radvia/faturamento/internal/domain/billing"
	"github.com/radvia/faturamento/internal/domain/exam"
	"github.com/radvia/faturamento/internal/domain/job"
	"github.com/radvia/faturamento/internal/domain/registry"
	v1 "github.com/radvia/faturamento/internal/handler/v1"
	"github.com/radvia/faturamento/internal/service"
	"github.com/radvia/faturamento/pkg/database"
	"github.com/radvia/faturamento/pkg/logger"
	"github.com/radvia/faturamento/pkg/metrics"
	"github.com/radvia/faturamento/pkg/tracer"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck

	log.Info("starting faturamento-api",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	tp, err := tracer.Init(cfg.Tracing)
	if err != nil {
		return fmt.Errorf("initializing tracer: %w", err)
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			log.Warn("tracer shutdown", zap.Error(err))
		}
	}()

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	if err := database.Migrate(db, log); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	m := metrics.NewCollector("faturamento")

	poolCtx, stopPoolSampler := context.WithCancel(context.Background())
	defer stopPoolSampler()
	go samplePoolStats(poolCtx, db, m, log)

	examRepo := exam.NewGormRepository(db)
	rejectionRepo := exam.NewGormRejectionRepository(db)
	registryRepo := registry.NewGormRepository(db)
	jobRepo := job.NewGormRepository(db)
	paramsRepo := domainbilling.NewGormParametersRepository(db)
	demonstrativoRepo := domainbilling.NewGormDemonstrativoRepository(db)

	rejector := service.NewRejectionRecorder(rejectionRepo, log, m, cfg.Pipeline.RejectionBufferSize)
	defer rejector.Shutdown()

	ingestSvc := service.NewIngestService(examRepo, rejector, cfg.Ingest.ExcludedModalities, log)
	splitSvc := service.NewSplitService(examRepo, log, m, cfg.Pipeline.PageSize)
	pipelineSvc := service.NewPipelineService(examRepo, registryRepo, jobRepo, splitSvc, log, m, cfg.Pipeline)

	classifier := classify.New(classify.DefaultRuleSet(), classify.DefaultRosters())
	classificationSvc := service.NewClassificationService(examRepo, paramsRepo, classifier, log, m, cfg.Pipeline.PageSize)
	billingSvc := service.NewBillingService(examRepo, paramsRepo, demonstrativoRepo, log, m)

	router := v1.NewRouter(cfg, log, m, v1.Handlers{
		Ingest:         v1.NewIngestHandler(ingestSvc),
		Pipeline:       v1.NewPipelineHandler(pipelineSvc),
		Classification: v1.NewClassificationHandler(classificationSvc),
		Billing:        v1.NewBillingHandler(billingSvc),
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case sig := <-quit:
		log.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	log.Info("server stopped")
	return nil
}

// samplePoolStats exports the connection-pool gauge every 15 seconds.
func samplePoolStats(ctx context.Context, db *gorm.DB, m *metrics.Collector, log *zap.Logger) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("pool stats unavailable", zap.Error(err))
		return
	}

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.DBConnections.Set(float64(sqlDB.Stats().OpenConnections))
		}
	}
}
