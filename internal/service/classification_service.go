package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/radvia/faturamento/internal/classify"
	"github.com/radvia/faturamento/internal/domain/billing"
	"github.com/radvia/faturamento/internal/domain/exam"
	"github.com/radvia/faturamento/pkg/metrics"
)

// ClassificationService re-runs tipificação over matching records. It runs
// synchronously: classification is cheap compared to a pipeline run and the
// caller wants the counts back.
type ClassificationService struct {
	records    exam.Repository
	params     billing.ParametersRepository
	classifier *classify.Classifier
	log        *zap.Logger
	metrics    *metrics.Collector
	pageSize   int
}

func NewClassificationService(
	records exam.Repository,
	params billing.ParametersRepository,
	classifier *classify.Classifier,
	log *zap.Logger,
	m *metrics.Collector,
	pageSize int,
) *ClassificationService {
	if pageSize <= 0 {
		pageSize = 500
	}
	return &ClassificationService{
		records:    records,
		params:     params,
		classifier: classifier,
		log:        log,
		metrics:    m,
		pageSize:   pageSize,
	}
}

// ClassificationRequest scopes a run. Both filters are optional; an empty
// request reclassifies everything.
type ClassificationRequest struct {
	SourceBatchID string `json:"source_batch_id"`
	Period        string `json:"period"`
}

type ClassificationResult struct {
	Cleared int64 `json:"cleared"`
	Updated int64 `json:"updated"`
	Errors  int64 `json:"errors"`
}

// Run clears stale tags, then recomputes both tags for every matching
// record. Clearing first means a rule-set change can never leave a tag the
// current configuration would not produce. Per-record update failures are
// counted and skipped; they never abort the run.
func (s *ClassificationService) Run(ctx context.Context, req ClassificationRequest) (*ClassificationResult, error) {
	res := &ClassificationResult{}

	cleared, err := s.records.ClearInvalidBillingTypes(ctx, classify.ValidBillingTypes())
	if err != nil {
		return nil, err
	}
	res.Cleared = cleared

	paramsPeriod := req.Period
	if paramsPeriod == "" {
		paramsPeriod = time.Now().UTC().Format("2006-01")
	}
	paramsList, err := s.params.ListActive(ctx, paramsPeriod)
	if err != nil {
		return nil, err
	}
	idx := classify.NewParamsIndex(paramsList)

	for offset := 0; ; offset += s.pageSize {
		page, err := s.records.List(ctx, &exam.ListQuery{
			SourceBatchID:   req.SourceBatchID,
			ReferencePeriod: req.Period,
			Offset:          offset,
			Limit:           s.pageSize,
		})
		if err != nil {
			return nil, err
		}

		for _, rec := range page {
			ct, bt := s.classifier.Classify(rec, idx)
			if rec.ClientType != nil && *rec.ClientType == ct &&
				rec.BillingType != nil && *rec.BillingType == bt {
				continue
			}
			if err := s.records.UpdateClassification(ctx, rec.ID, ct, bt); err != nil {
				res.Errors++
				s.log.Error("failed to update classification",
					zap.String("record_id", rec.ID.String()),
					zap.Error(err),
				)
				continue
			}
			res.Updated++
		}

		if len(page) < s.pageSize {
			break
		}
	}

	if s.metrics != nil {
		s.metrics.RecordsClassifiedTotal.Add(float64(res.Updated))
	}

	s.log.Info("classification run finished",
		zap.String("batch", req.SourceBatchID),
		zap.String("period", req.Period),
		zap.Int64("cleared", res.Cleared),
		zap.Int64("updated", res.Updated),
		zap.Int64("errors", res.Errors),
	)

	return res, nil
}
