package service

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/radvia/faturamento/internal/domain/billing"
	"github.com/radvia/faturamento/internal/domain/exam"
	"github.com/radvia/faturamento/internal/domain/job"
	"github.com/radvia/faturamento/internal/domain/registry"
)

// memRecordRepo is an in-memory exam.Repository preserving insertion order.
// It records the sequence of mutating operations so tests can assert
// crash-safety ordering (inserts before deletes).
type memRecordRepo struct {
	mu         sync.Mutex
	recs       []*exam.Record
	ops        []string
	failCreate error
}

func (m *memRecordRepo) CreateMany(_ context.Context, recs []*exam.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreate != nil {
		return m.failCreate
	}
	for _, r := range recs {
		if r.ID == uuid.Nil {
			r.ID = uuid.New()
		}
		m.recs = append(m.recs, r)
	}
	m.ops = append(m.ops, "create")
	return nil
}

func (m *memRecordRepo) CountByBatch(_ context.Context, batchID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, r := range m.recs {
		if r.SourceBatchID == batchID {
			n++
		}
	}
	return n, nil
}

func (m *memRecordRepo) ListByBatch(_ context.Context, batchID string, offset, limit int) ([]*exam.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []*exam.Record
	for _, r := range m.recs {
		if r.SourceBatchID == batchID {
			matched = append(matched, r)
		}
	}
	return pageOf(matched, offset, limit), nil
}

func (m *memRecordRepo) List(_ context.Context, q *exam.ListQuery) ([]*exam.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []*exam.Record
	for _, r := range m.recs {
		if q.SourceBatchID != "" && r.SourceBatchID != q.SourceBatchID {
			continue
		}
		if q.ReferencePeriod != "" && r.ReferencePeriod != q.ReferencePeriod {
			continue
		}
		if q.ClientName != "" && r.ClientName != q.ClientName {
			continue
		}
		if q.OnlyClassified && !r.Classified() {
			continue
		}
		matched = append(matched, r)
	}
	return pageOf(matched, q.Offset, q.Limit), nil
}

func (m *memRecordRepo) SaveAll(_ context.Context, _ []*exam.Record) error {
	// Rows are shared pointers; in-place mutations are already visible.
	return nil
}

func (m *memRecordRepo) DeleteByIDs(_ context.Context, ids []uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	drop := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := m.recs[:0:0]
	for _, r := range m.recs {
		if !drop[r.ID] {
			kept = append(kept, r)
		}
	}
	m.recs = kept
	m.ops = append(m.ops, "delete")
	return nil
}

func (m *memRecordRepo) UpdateClassification(_ context.Context, id uuid.UUID, ct exam.ClientType, bt exam.BillingType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.recs {
		if r.ID == id {
			r.ClientType = &ct
			r.BillingType = &bt
			return nil
		}
	}
	return exam.ErrRecordNotFound
}

func (m *memRecordRepo) ClearInvalidBillingTypes(_ context.Context, valid []exam.BillingType) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ok := make(map[exam.BillingType]bool, len(valid))
	for _, bt := range valid {
		ok[bt] = true
	}
	var cleared int64
	for _, r := range m.recs {
		if r.BillingType != nil && !ok[*r.BillingType] {
			r.BillingType = nil
			r.ClientType = nil
			cleared++
		}
	}
	return cleared, nil
}

func (m *memRecordRepo) DistinctClients(_ context.Context, period string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]bool)
	var out []string
	for _, r := range m.recs {
		if r.ReferencePeriod == period && !seen[r.ClientName] {
			seen[r.ClientName] = true
			out = append(out, r.ClientName)
		}
	}
	return out, nil
}

func (m *memRecordRepo) all() []*exam.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*exam.Record, len(m.recs))
	copy(out, m.recs)
	return out
}

func pageOf(recs []*exam.Record, offset, limit int) []*exam.Record {
	if offset >= len(recs) {
		return nil
	}
	recs = recs[offset:]
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	out := make([]*exam.Record, len(recs))
	copy(out, recs)
	return out
}

type memRejectionRepo struct {
	mu   sync.Mutex
	rows []*exam.Rejection
}

func (m *memRejectionRepo) Create(_ context.Context, r *exam.Rejection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, r)
	return nil
}

func (m *memRejectionRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

// memRegistryRepo serves a fixed snapshot. An optional gate channel blocks
// Snapshot until closed, and an optional error fails it.
type memRegistryRepo struct {
	snap *registry.Snapshot
	gate chan struct{}
	err  error
}

func (m *memRegistryRepo) Snapshot(ctx context.Context) (*registry.Snapshot, error) {
	if m.gate != nil {
		select {
		case <-m.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.snap, nil
}

// memJobRepo stores value copies so polling observes persisted states only.
type memJobRepo struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]job.ProcessingJob
}

func newMemJobRepo() *memJobRepo {
	return &memJobRepo{jobs: make(map[uuid.UUID]job.ProcessingJob)}
}

func (m *memJobRepo) Create(_ context.Context, j *job.ProcessingJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	m.jobs[j.ID] = *j
	return nil
}

func (m *memJobRepo) GetByID(_ context.Context, id uuid.UUID) (*job.ProcessingJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, job.ErrJobNotFound
	}
	return &j, nil
}

func (m *memJobRepo) Update(_ context.Context, j *job.ProcessingJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *j
	cp.AppliedRules = append([]string(nil), j.AppliedRules...)
	m.jobs[j.ID] = cp
	return nil
}

func (m *memJobRepo) ListByBatch(_ context.Context, batchID string) ([]*job.ProcessingJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*job.ProcessingJob
	for _, j := range m.jobs {
		if j.SourceBatchID == batchID {
			cp := j
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memParamsRepo struct {
	params []*billing.ClientParameters
	prices map[string][]*billing.PriceEntry
}

func (m *memParamsRepo) ListActive(_ context.Context, _ string) ([]*billing.ClientParameters, error) {
	return m.params, nil
}

func (m *memParamsRepo) PricesForClient(_ context.Context, clientName string) ([]*billing.PriceEntry, error) {
	return m.prices[clientName], nil
}

type memDemoRepo struct {
	mu   sync.Mutex
	rows []*billing.Demonstrativo
}

func (m *memDemoRepo) Create(_ context.Context, d *billing.Demonstrativo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, d)
	return nil
}

func (m *memDemoRepo) GetByClientPeriod(_ context.Context, clientName, period string) (*billing.Demonstrativo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.rows {
		if d.ClientName == clientName && d.ReferencePeriod == period {
			return d, nil
		}
	}
	return nil, billing.ErrDemonstrativoNotFound
}

func (m *memDemoRepo) ListByPeriod(_ context.Context, period string) ([]*billing.Demonstrativo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*billing.Demonstrativo
	for _, d := range m.rows {
		if d.ReferencePeriod == period {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memDemoRepo) DeleteByClientPeriod(_ context.Context, clientName, period string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.rows[:0:0]
	for _, d := range m.rows {
		if d.ClientName == clientName && d.ReferencePeriod == period {
			continue
		}
		kept = append(kept, d)
	}
	m.rows = kept
	return nil
}
