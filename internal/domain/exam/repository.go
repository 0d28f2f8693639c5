package exam

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// CreateMany bulk-inserts records (ingestion and split replacements).
	CreateMany(ctx context.Context, recs []*Record) error

	// CountByBatch returns the number of rows currently in the batch.
	CountByBatch(ctx context.Context, batchID string) (int64, error)

	// ListByBatch pages through the rows of one batch in insertion order.
	ListByBatch(ctx context.Context, batchID string, offset, limit int) ([]*Record, error)

	// List pages through records matching the query.
	List(ctx context.Context, q *ListQuery) ([]*Record, error)

	// SaveAll persists in-place mutations of existing rows.
	SaveAll(ctx context.Context, recs []*Record) error

	// DeleteByIDs removes rows by primary key. Used by exclusion rules and by
	// the splitter after its replacement rows are inserted.
	DeleteByIDs(ctx context.Context, ids []uuid.UUID) error

	// UpdateClassification sets both tags on one row.
	UpdateClassification(ctx context.Context, id uuid.UUID, ct ClientType, bt BillingType) error

	// ClearInvalidBillingTypes nulls every billing-type tag not in the valid
	// set, so stale tags from a superseded rule set cannot linger. Returns
	// the number of rows cleared.
	ClearInvalidBillingTypes(ctx context.Context, valid []BillingType) (int64, error)

	// DistinctClients returns the client names present in a period.
	DistinctClients(ctx context.Context, period string) ([]string, error)
}

// RejectionRepository persists admission rejections for audit.
type RejectionRepository interface {
	Create(ctx context.Context, r *Rejection) error
}
