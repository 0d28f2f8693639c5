package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/radvia/faturamento/internal/compute"
	"github.com/radvia/faturamento/internal/domain/billing"
	"github.com/radvia/faturamento/internal/domain/exam"
	"github.com/radvia/faturamento/internal/domain/registry"
	"github.com/radvia/faturamento/internal/rules"
	"github.com/radvia/faturamento/pkg/metrics"
)

// BillingService computes and persists per-client demonstrativos for a
// reference period.
type BillingService struct {
	records        exam.Repository
	params         billing.ParametersRepository
	demonstrativos billing.DemonstrativoRepository
	log            *zap.Logger
	metrics        *metrics.Collector
}

func NewBillingService(
	records exam.Repository,
	params billing.ParametersRepository,
	demonstrativos billing.DemonstrativoRepository,
	log *zap.Logger,
	m *metrics.Collector,
) *BillingService {
	return &BillingService{
		records:        records,
		params:         params,
		demonstrativos: demonstrativos,
		log:            log,
		metrics:        m,
	}
}

// ComputeSummary aggregates totals across every client of one run.
type ComputeSummary struct {
	Clients    int     `json:"clients"`
	Processed  int     `json:"processed"`
	Cached     int     `json:"cached"`
	Errors     int     `json:"errors"`
	GrossTotal float64 `json:"gross_total"`
	TotalTax   float64 `json:"total_tax"`
	NetTotal   float64 `json:"net_total"`
}

type ComputeResult struct {
	Demonstrativos []*billing.Demonstrativo `json:"demonstrativos"`
	Summary        ComputeSummary           `json:"summary"`
}

// Compute runs the computation engine for every configured client of the
// period. A cached statement is returned as-is unless force is set; a forced
// recompute deletes the previous statement first, so there is always at most
// one per (client, period). One client's failure is recorded as an error
// statement with zero totals and never aborts the remaining clients.
func (s *BillingService) Compute(ctx context.Context, period string, force bool) (*ComputeResult, error) {
	if period == "" {
		return nil, billing.ErrPeriodRequired
	}
	if _, err := rules.ParsePeriod(period); err != nil {
		return nil, err
	}

	paramsList, err := s.params.ListActive(ctx, period)
	if err != nil {
		return nil, err
	}

	// A client with records but no active parameter row still gets a
	// statement, computed under default parameters. It surfaces as a
	// processed or error row instead of vanishing from the run.
	clients, err := s.records.DistinctClients(ctx, period)
	if err != nil {
		return nil, err
	}
	configured := make(map[string]bool, len(paramsList))
	for _, p := range paramsList {
		configured[registry.NormalizeKey(p.ClientName)] = true
	}
	for _, name := range clients {
		if !configured[registry.NormalizeKey(name)] {
			paramsList = append(paramsList, billing.DefaultParameters(name))
		}
	}

	result := &ComputeResult{Summary: ComputeSummary{Clients: len(paramsList)}}

	for _, params := range paramsList {
		d := s.computeClient(ctx, params, period, force, &result.Summary)
		if d == nil {
			continue
		}
		result.Demonstrativos = append(result.Demonstrativos, d)
		result.Summary.GrossTotal = compute.Round2(result.Summary.GrossTotal + d.GrossTotal)
		result.Summary.TotalTax = compute.Round2(result.Summary.TotalTax + d.TotalTax)
		result.Summary.NetTotal = compute.Round2(result.Summary.NetTotal + d.NetTotal)
	}

	return result, nil
}

// ListDemonstrativos returns the persisted statements of a period, read-only.
func (s *BillingService) ListDemonstrativos(ctx context.Context, period string) ([]*billing.Demonstrativo, error) {
	if period == "" {
		return nil, billing.ErrPeriodRequired
	}
	return s.demonstrativos.ListByPeriod(ctx, period)
}

func (s *BillingService) computeClient(ctx context.Context, params *billing.ClientParameters, period string, force bool, summary *ComputeSummary) *billing.Demonstrativo {
	log := s.log.With(
		zap.String("client", params.ClientName),
		zap.String("period", period),
	)

	cached, err := s.demonstrativos.GetByClientPeriod(ctx, params.ClientName, period)
	if err == nil && !force {
		summary.Cached++
		return cached
	}
	if err == nil && force {
		if err := s.demonstrativos.DeleteByClientPeriod(ctx, params.ClientName, period); err != nil {
			log.Error("failed to delete superseded demonstrativo", zap.Error(err))
			return s.errorDemonstrativo(ctx, params, period, err, summary, log)
		}
	}

	d, err := s.buildDemonstrativo(ctx, params, period)
	if err != nil {
		return s.errorDemonstrativo(ctx, params, period, err, summary, log)
	}

	if err := s.demonstrativos.Create(ctx, d); err != nil {
		log.Error("failed to persist demonstrativo", zap.Error(err))
		return s.errorDemonstrativo(ctx, params, period, err, summary, log)
	}

	summary.Processed++
	if s.metrics != nil {
		s.metrics.DemonstrativosTotal.WithLabelValues(string(billing.DemonstrativoProcessed)).Inc()
	}
	log.Info("demonstrativo computed",
		zap.Int64("exam_count", d.ExamCount),
		zap.Float64("gross_total", d.GrossTotal),
		zap.Float64("net_total", d.NetTotal),
	)
	return d
}

func (s *BillingService) buildDemonstrativo(ctx context.Context, params *billing.ClientParameters, period string) (*billing.Demonstrativo, error) {
	recs, err := s.records.List(ctx, &exam.ListQuery{
		ReferencePeriod: period,
		ClientName:      params.ClientName,
		OnlyClassified:  true,
	})
	if err != nil {
		return nil, err
	}

	prices, err := s.params.PricesForClient(ctx, params.ClientName)
	if err != nil {
		return nil, err
	}

	return compute.BuildDemonstrativo(params.ClientName, period, recs, params, compute.NewPriceTable(prices))
}

// errorDemonstrativo records the client's failure as a zero-total statement
// so dashboards show "processed with errors" instead of a silent gap.
func (s *BillingService) errorDemonstrativo(ctx context.Context, params *billing.ClientParameters, period string, cause error, summary *ComputeSummary, log *zap.Logger) *billing.Demonstrativo {
	summary.Errors++
	if s.metrics != nil {
		s.metrics.DemonstrativosTotal.WithLabelValues(string(billing.DemonstrativoError)).Inc()
	}
	log.Error("demonstrativo computation failed", zap.Error(cause))

	d := &billing.Demonstrativo{
		ClientName:      params.ClientName,
		ReferencePeriod: period,
		Status:          billing.DemonstrativoError,
		ErrorMessage:    cause.Error(),
	}
	if err := s.demonstrativos.Create(ctx, d); err != nil {
		log.Error("failed to persist error demonstrativo", zap.Error(err))
	}
	return d
}
