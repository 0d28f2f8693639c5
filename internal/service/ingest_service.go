package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/radvia/faturamento/internal/domain/exam"
	"github.com/radvia/faturamento/internal/domain/registry"
)

// IngestService admits raw upload rows into the record store. Only signed
// and re-signed reports enter; everything else is recorded as a typed
// rejection so the dashboards can account for every input line.
type IngestService struct {
	repo       exam.Repository
	rejector   *RejectionRecorder
	excludedMo map[string]struct{}
	log        *zap.Logger
}

func NewIngestService(repo exam.Repository, rejector *RejectionRecorder, excludedModalities []string, log *zap.Logger) *IngestService {
	excluded := make(map[string]struct{}, len(excludedModalities))
	for _, m := range excludedModalities {
		excluded[registry.NormalizeKey(m)] = struct{}{}
	}
	return &IngestService{repo: repo, rejector: rejector, excludedMo: excluded, log: log}
}

// IngestResult reports what happened to one uploaded batch.
type IngestResult struct {
	SourceBatchID string `json:"source_batch_id"`
	Accepted      int    `json:"accepted"`
	Rejected      int    `json:"rejected"`
}

// IngestBatch validates and admits the ordered rows of one uploaded file.
func (s *IngestService) IngestBatch(ctx context.Context, batchID string, rows []exam.RawRow) (*IngestResult, error) {
	batchID = strings.TrimSpace(batchID)
	if batchID == "" {
		return nil, exam.ErrBatchIDRequired
	}
	if len(rows) == 0 {
		return nil, &ValidationError{Fields: []string{"rows must not be empty"}}
	}

	accepted := make([]*exam.Record, 0, len(rows))
	rejected := 0

	for _, row := range rows {
		status := exam.Status(strings.TrimSpace(row.Status))
		if !status.IsAdmissible() {
			rejected++
			s.rejector.RecordAsync(&exam.Rejection{
				SourceBatchID: batchID,
				Reason:        exam.RejectionInvalidStatus,
				ClientName:    row.ClientName,
				ExamName:      row.ExamName,
				Status:        row.Status,
			})
			continue
		}
		if _, skip := s.excludedMo[registry.NormalizeKey(row.Modality)]; skip {
			rejected++
			s.rejector.RecordAsync(&exam.Rejection{
				SourceBatchID: batchID,
				Reason:        exam.RejectionExcludedModality,
				ClientName:    row.ClientName,
				ExamName:      row.ExamName,
				Status:        row.Status,
			})
			continue
		}

		quantity := row.Quantity
		if quantity < 0 {
			quantity = 0 // negative weights are noise; the backfill rule resolves them
		}

		accepted = append(accepted, &exam.Record{
			SourceBatchID: batchID,
			ClientName:    strings.TrimSpace(row.ClientName),
			PatientName:   strings.TrimSpace(row.PatientName),
			PatientCode:   strings.TrimSpace(row.PatientCode),
			ExamName:      strings.TrimSpace(row.ExamName),
			Modality:      strings.TrimSpace(row.Modality),
			Specialty:     strings.TrimSpace(row.Specialty),
			Category:      strings.TrimSpace(row.Category),
			Priority:      strings.TrimSpace(row.Priority),
			DoctorName:    strings.TrimSpace(row.DoctorName),
			Quantity:      quantity,
			RealizedAt:    row.RealizedAt,
			ReportedAt:    row.ReportedAt,
			DeadlineAt:    row.DeadlineAt,
			Status:        status,
		})
	}

	if err := s.repo.CreateMany(ctx, accepted); err != nil {
		s.log.Error("failed to insert batch", zap.String("batch", batchID), zap.Error(err))
		return nil, fmt.Errorf("inserting batch %s: %w", batchID, err)
	}

	s.log.Info("batch ingested",
		zap.String("batch", batchID),
		zap.Int("accepted", len(accepted)),
		zap.Int("rejected", rejected),
	)

	return &IngestResult{
		SourceBatchID: batchID,
		Accepted:      len(accepted),
		Rejected:      rejected,
	}, nil
}
