package database

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/radvia/faturamento/internal/config"
	"github.com/radvia/faturamento/internal/domain/billing"
	"github.com/radvia/faturamento/internal/domain/exam"
	"github.com/radvia/faturamento/internal/domain/job"
	"github.com/radvia/faturamento/internal/domain/registry"
)

func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger:               gormlogger.Default.LogMode(gormlogger.Silent),
		PrepareStmt:          true,
		DisableAutomaticPing: false,
	}

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  cfg.DSN(),
		PreferSimpleProtocol: false,
	}), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return db, nil
}

func Migrate(db *gorm.DB, log *zap.Logger) error {
	log.Info("running database migrations")
	start := time.Now()

	schemas := []string{"ref", "billing", "pipeline"} // logical namespaces
	for _, schema := range schemas {
		if err := db.Exec(fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schema)).Error; err != nil {
			return fmt.Errorf("creating schema %s: %w", schema, err)
		}
	}

	models := []any{
		&registry.CatalogEntry{},
		&registry.Alias{},
		&registry.ValueBackfill{},
		&registry.SplitRule{},
		&registry.DeniedClient{},
		&billing.ClientParameters{},
		&billing.PriceEntry{},
		&billing.Demonstrativo{},
		&exam.Record{},
		&exam.Rejection{},
		&job.ProcessingJob{},
	}

	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("auto-migrating models: %w", err)
	}

	if err := createIndexes(db); err != nil {
		return fmt.Errorf("creating indexes: %w", err)
	}

	log.Info("migrations completed", zap.Duration("duration", time.Since(start)))
	return nil
}

func createIndexes(db *gorm.DB) error {
	indexes := []struct {
		name  string
		query string
	}{
		// Batch scans drive the rule engine and splitter
		{
			name:  "idx_exam_records_batch_order",
			query: `CREATE INDEX IF NOT EXISTS idx_exam_records_batch_order ON billing.exam_records (arquivo_fonte, created_at, id)`,
		},
		// Period reads drive classification and computation
		{
			name:  "idx_exam_records_period_client",
			query: `CREATE INDEX IF NOT EXISTS idx_exam_records_period_client ON billing.exam_records (periodo_referencia, client_name) WHERE billing_type IS NOT NULL`,
		},
		{
			name:  "idx_price_table_lookup",
			query: `CREATE INDEX IF NOT EXISTS idx_price_table_lookup ON billing.price_table (client_name, modality)`,
		},
		{
			name:  "idx_jobs_active_batch",
			query: `CREATE INDEX IF NOT EXISTS idx_jobs_active_batch ON pipeline.jobs (arquivo_fonte) WHERE status IN ('queued', 'processing')`,
		},
	}

	for _, idx := range indexes {
		if err := db.Exec(idx.query).Error; err != nil {
			return fmt.Errorf("creating index %s: %w", idx.name, err)
		}
	}

	return nil
}
