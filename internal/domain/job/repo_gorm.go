package job

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type gormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Create(ctx context.Context, j *ProcessingJob) error {
	if err := r.db.WithContext(ctx).Create(j).Error; err != nil {
		return fmt.Errorf("inserting processing job: %w", err)
	}
	return nil
}

func (r *gormRepository) GetByID(ctx context.Context, id uuid.UUID) (*ProcessingJob, error) {
	var j ProcessingJob
	err := r.db.WithContext(ctx).First(&j, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading processing job %s: %w", id, err)
	}
	return &j, nil
}

func (r *gormRepository) Update(ctx context.Context, j *ProcessingJob) error {
	if err := r.db.WithContext(ctx).Save(j).Error; err != nil {
		return fmt.Errorf("updating processing job %s: %w", j.ID, err)
	}
	return nil
}

func (r *gormRepository) ListByBatch(ctx context.Context, batchID string) ([]*ProcessingJob, error) {
	var jobs []*ProcessingJob
	err := r.db.WithContext(ctx).
		Where("arquivo_fonte = ?", batchID).
		Order("created_at DESC").
		Find(&jobs).Error
	if err != nil {
		return nil, fmt.Errorf("listing jobs for batch %s: %w", batchID, err)
	}
	return jobs, nil
}
