package rules

import (
	"github.com/radvia/faturamento/internal/domain/exam"
)

// valueBackfillRule fills missing or zero quantities from the value registry
// keyed by exam name, falling back to 1 once the lookup has been attempted.
// Only rows whose quantity is still zero are touched.
type valueBackfillRule struct{}

func (r *valueBackfillRule) Code() string { return "v010" }

func (r *valueBackfillRule) Description() string {
	return "backfill zero quantities from the value registry, default 1"
}

func (r *valueBackfillRule) Apply(rctx *Context, recs []*exam.Record) ([]*exam.Record, *Result, error) {
	res := &Result{Code: r.Code()}
	for _, rec := range recs {
		if rec.Quantity > 0 {
			continue
		}
		if v, ok := rctx.Snapshot.LookupValue(rec.ExamName); ok && v > 0 {
			rec.Quantity = v
		} else {
			rec.Quantity = 1
		}
		res.Changed = append(res.Changed, rec)
	}
	return recs, res, nil
}

// catalogBackfillRule fills empty modality, specialty and category from the
// exam catalog keyed by exam name. Runs after the alias rules so catalog
// values land on canonical labels and are never overwritten later.
type catalogBackfillRule struct{}

func (r *catalogBackfillRule) Code() string { return "v011" }

func (r *catalogBackfillRule) Description() string {
	return "backfill empty modality/specialty/category from the exam catalog"
}

func (r *catalogBackfillRule) Apply(rctx *Context, recs []*exam.Record) ([]*exam.Record, *Result, error) {
	res := &Result{Code: r.Code()}
	for _, rec := range recs {
		entry, ok := rctx.Snapshot.LookupCatalog(rec.ExamName)
		if !ok {
			continue
		}
		changed := false
		if rec.Modality == "" && entry.Modality != "" {
			rec.Modality = entry.Modality
			changed = true
		}
		if rec.Specialty == "" && entry.Specialty != "" {
			rec.Specialty = entry.Specialty
			changed = true
		}
		if rec.Category == "" && entry.Category != "" {
			rec.Category = entry.Category
			changed = true
		}
		if changed {
			res.Changed = append(res.Changed, rec)
		}
	}
	return recs, res, nil
}

// periodStampRule stamps the run's reference period on rows that have none.
type periodStampRule struct{}

func (r *periodStampRule) Code() string { return "v012" }

func (r *periodStampRule) Description() string {
	return "stamp the reference period on unstamped rows"
}

func (r *periodStampRule) Apply(rctx *Context, recs []*exam.Record) ([]*exam.Record, *Result, error) {
	if _, err := ParsePeriod(rctx.ReferencePeriod); err != nil {
		return nil, nil, err
	}

	res := &Result{Code: r.Code()}
	for _, rec := range recs {
		if rec.ReferencePeriod != "" {
			continue
		}
		rec.ReferencePeriod = rctx.ReferencePeriod
		res.Changed = append(res.Changed, rec)
	}
	return recs, res, nil
}
