package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radvia/faturamento/internal/domain/exam"
	"github.com/radvia/faturamento/internal/domain/registry"
	"github.com/radvia/faturamento/pkg/metrics"
)

// uncategorized is the literal fallback (sem categoria) when neither the
// split target's catalog entry nor the original row carries a value.
const uncategorized = "SC"

// SplitService expands composite exam rows into their billable sub-exams
// (quebra). Runs after normalization and before tipification.
type SplitService struct {
	repo     exam.Repository
	log      *zap.Logger
	metrics  *metrics.Collector
	pageSize int
}

func NewSplitService(repo exam.Repository, log *zap.Logger, m *metrics.Collector, pageSize int) *SplitService {
	if pageSize <= 0 {
		pageSize = 500
	}
	return &SplitService{repo: repo, log: log, metrics: m, pageSize: pageSize}
}

// SplitSummary reports one splitting pass.
type SplitSummary struct {
	OriginalsReplaced int `json:"originals_replaced"`
	NewRecordsCreated int `json:"new_records_created"`
	GroupsFailed      int `json:"groups_failed"`
}

// SplitBatch replaces every composite row among recs with its configured
// sub-exams. Replacements are inserted before the originals are deleted, so
// a crash between the two duplicates rows instead of losing them; the
// duplicated originals are still composite rows and are consumed by the next
// run. A failure in one exam-name group is logged and skipped without
// aborting the others.
func (s *SplitService) SplitBatch(ctx context.Context, batchID string, recs []*exam.Record, snap *registry.Snapshot) (*SplitSummary, error) {
	groups := make(map[string][]*exam.Record)
	for _, rec := range recs {
		key := registry.NormalizeKey(rec.ExamName)
		if _, ok := snap.SplitRules[key]; ok {
			groups[key] = append(groups[key], rec)
		}
	}

	summary := &SplitSummary{}
	for key, originals := range groups {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		targets := snap.SplitRules[key]
		if err := s.splitGroup(ctx, originals, targets, snap, summary); err != nil {
			summary.GroupsFailed++
			s.log.Error("splitting exam group failed, skipping",
				zap.String("batch", batchID),
				zap.String("exam", key),
				zap.Error(err),
			)
		}
	}

	if s.metrics != nil && summary.OriginalsReplaced > 0 {
		s.metrics.ExamsSplitTotal.Add(float64(summary.OriginalsReplaced))
	}

	return summary, nil
}

func (s *SplitService) splitGroup(ctx context.Context, originals []*exam.Record, targets []registry.SplitTarget, snap *registry.Snapshot, summary *SplitSummary) error {
	for start := 0; start < len(originals); start += s.pageSize {
		end := min(start+s.pageSize, len(originals))
		page := originals[start:end]

		var replacements []*exam.Record
		ids := make([]uuid.UUID, 0, len(page))
		for _, rec := range page {
			replacements = append(replacements, splitReplacements(rec, targets, snap)...)
			ids = append(ids, rec.ID)
		}

		// Insert first, delete second: the crash worst case is duplicated
		// rows, never lost ones.
		if err := s.repo.CreateMany(ctx, replacements); err != nil {
			return err
		}
		if err := s.repo.DeleteByIDs(ctx, ids); err != nil {
			return err
		}

		summary.OriginalsReplaced += len(page)
		summary.NewRecordsCreated += len(replacements)
	}
	return nil
}

// splitReplacements builds the replacement rows for one composite record:
// one unit-quantity row per split target, preserving the original priority
// and patient/timing fields. Specialty and category come from the target's
// catalog entry, then the split rule, then the original, then "SC".
func splitReplacements(rec *exam.Record, targets []registry.SplitTarget, snap *registry.Snapshot) []*exam.Record {
	out := make([]*exam.Record, 0, len(targets))
	for _, t := range targets {
		child := &exam.Record{
			SourceBatchID:   rec.SourceBatchID,
			ReferencePeriod: rec.ReferencePeriod,
			ClientName:      rec.ClientName,
			PatientName:     rec.PatientName,
			PatientCode:     rec.PatientCode,
			ExamName:        t.ExamName,
			Modality:        rec.Modality,
			Specialty:       rec.Specialty,
			Category:        rec.Category,
			Priority:        rec.Priority,
			DoctorName:      rec.DoctorName,
			Quantity:        1,
			RealizedAt:      rec.RealizedAt,
			ReportedAt:      rec.ReportedAt,
			DeadlineAt:      rec.DeadlineAt,
			Status:          rec.Status,
		}

		entry, hasEntry := snap.LookupCatalog(t.ExamName)
		if hasEntry && entry.Modality != "" {
			child.Modality = entry.Modality
		}
		if hasEntry && entry.Specialty != "" {
			child.Specialty = entry.Specialty
		}

		switch {
		case hasEntry && entry.Category != "":
			child.Category = entry.Category
		case t.Category != "":
			child.Category = t.Category
		case rec.Category != "":
			child.Category = rec.Category
		default:
			child.Category = uncategorized
		}
		if child.Specialty == "" {
			child.Specialty = uncategorized
		}

		out = append(out, child)
	}
	return out
}
