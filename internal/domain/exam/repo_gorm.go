package exam

import (
	"context"
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

const insertBatchSize = 500

func (r *gormRepository) CreateMany(ctx context.Context, recs []*Record) error {
	if len(recs) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).CreateInBatches(recs, insertBatchSize).Error; err != nil {
		return fmt.Errorf("inserting exam records: %w", err)
	}
	return nil
}

func (r *gormRepository) CountByBatch(ctx context.Context, batchID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&Record{}).
		Where("arquivo_fonte = ?", batchID).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("counting batch %s: %w", batchID, err)
	}
	return n, nil
}

func (r *gormRepository) ListByBatch(ctx context.Context, batchID string, offset, limit int) ([]*Record, error) {
	var recs []*Record
	err := r.db.WithContext(ctx).
		Where("arquivo_fonte = ?", batchID).
		Order("created_at, id").
		Offset(offset).Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("listing batch %s: %w", batchID, err)
	}
	return recs, nil
}

func (r *gormRepository) List(ctx context.Context, q *ListQuery) ([]*Record, error) {
	tx := r.db.WithContext(ctx).Model(&Record{})
	if q.SourceBatchID != "" {
		tx = tx.Where("arquivo_fonte = ?", q.SourceBatchID)
	}
	if q.ReferencePeriod != "" {
		tx = tx.Where("periodo_referencia = ?", q.ReferencePeriod)
	}
	if q.ClientName != "" {
		tx = tx.Where("client_name = ?", q.ClientName)
	}
	if q.OnlyClassified {
		tx = tx.Where("billing_type IS NOT NULL AND client_type IS NOT NULL")
	}
	if q.Limit > 0 {
		tx = tx.Offset(q.Offset).Limit(q.Limit)
	}

	var recs []*Record
	if err := tx.Order("created_at, id").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("listing exam records: %w", err)
	}
	return recs, nil
}

func (r *gormRepository) SaveAll(ctx context.Context, recs []*Record) error {
	if len(recs) == 0 {
		return nil
	}
	// Save row-by-row inside one transaction; each run is re-entrant so a
	// partial commit is recovered by re-running the rule.
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, rec := range recs {
			if err := tx.Save(rec).Error; err != nil {
				return fmt.Errorf("saving record %s: %w", rec.ID, err)
			}
		}
		return nil
	})
}

func (r *gormRepository) DeleteByIDs(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	for start := 0; start < len(ids); start += insertBatchSize {
		end := min(start+insertBatchSize, len(ids))
		if err := r.db.WithContext(ctx).Delete(&Record{}, "id IN ?", ids[start:end]).Error; err != nil {
			return fmt.Errorf("deleting exam records: %w", err)
		}
	}
	return nil
}

func (r *gormRepository) UpdateClassification(ctx context.Context, id uuid.UUID, ct ClientType, bt BillingType) error {
	err := r.db.WithContext(ctx).Model(&Record{}).
		Where("id = ?", id).
		Updates(map[string]any{"client_type": ct, "billing_type": bt}).Error
	if err != nil {
		return fmt.Errorf("updating classification for %s: %w", id, err)
	}
	return nil
}

func (r *gormRepository) ClearInvalidBillingTypes(ctx context.Context, valid []BillingType) (int64, error) {
	res := r.db.WithContext(ctx).Model(&Record{}).
		Where("billing_type IS NOT NULL AND billing_type NOT IN ?", valid).
		Updates(map[string]any{"billing_type": nil, "client_type": nil})
	if res.Error != nil {
		return 0, fmt.Errorf("clearing stale billing types: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *gormRepository) DistinctClients(ctx context.Context, period string) ([]string, error) {
	var names []string
	err := r.db.WithContext(ctx).Model(&Record{}).
		Where("periodo_referencia = ?", period).
		Distinct("client_name").
		Order("client_name").
		Pluck("client_name", &names).Error
	if err != nil {
		return nil, fmt.Errorf("listing clients for %s: %w", period, err)
	}
	return names, nil
}

type gormRejectionRepository struct {
	db *gorm.DB
}

func NewGormRejectionRepository(db *gorm.DB) RejectionRepository {
	return &gormRejectionRepository{db: db}
}

func (r *gormRejectionRepository) Create(ctx context.Context, rej *Rejection) error {
	if err := r.db.WithContext(ctx).Create(rej).Error; err != nil {
		return fmt.Errorf("inserting rejection: %w", err)
	}
	return nil
}
