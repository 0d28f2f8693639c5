package rules

import (
	"fmt"
	"time"

	"github.com/radvia/faturamento/internal/domain/exam"
)

// ParsePeriod parses a YYYY-MM reference period into the first day of that
// month, UTC.
func ParsePeriod(period string) (time.Time, error) {
	t, err := time.Parse("2006-01", period)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", exam.ErrInvalidPeriod, period)
	}
	return t, nil
}

// ReportWindow returns the billing window for a reference period: a period
// labeled "December" spans report dates from the 8th of December through the
// 7th of January. The returned end is exclusive (the 8th of the following
// month, midnight).
func ReportWindow(period string) (start, end time.Time, err error) {
	first, err := ParsePeriod(period)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start = first.AddDate(0, 0, 7) // the 8th
	end = start.AddDate(0, 1, 0)
	return start, end, nil
}

// retroRealizationRule drops rows realized at or after the first day of the
// reference month. Retroactive batches carry only exams realized before the
// period being re-billed.
type retroRealizationRule struct{}

func (r *retroRealizationRule) Code() string { return "v001" }

func (r *retroRealizationRule) Description() string {
	return "drop retroactive rows realized inside or after the reference month"
}

func (r *retroRealizationRule) Apply(rctx *Context, recs []*exam.Record) ([]*exam.Record, *Result, error) {
	firstDay, err := ParsePeriod(rctx.ReferencePeriod)
	if err != nil {
		return nil, nil, err
	}

	res := &Result{Code: r.Code()}
	survivors := markExcluded(recs, res, func(rec *exam.Record) bool {
		return rec.RealizedAt != nil && !rec.RealizedAt.Before(firstDay)
	})
	return survivors, res, nil
}

// retroReportWindowRule drops rows whose report date falls outside the
// billing window [8th of reference month, 7th of following month].
type retroReportWindowRule struct{}

func (r *retroReportWindowRule) Code() string { return "v002" }

func (r *retroReportWindowRule) Description() string {
	return "drop retroactive rows reported outside the billing window"
}

func (r *retroReportWindowRule) Apply(rctx *Context, recs []*exam.Record) ([]*exam.Record, *Result, error) {
	start, end, err := ReportWindow(rctx.ReferencePeriod)
	if err != nil {
		return nil, nil, err
	}

	res := &Result{Code: r.Code()}
	survivors := markExcluded(recs, res, func(rec *exam.Record) bool {
		if rec.ReportedAt == nil {
			return true
		}
		return rec.ReportedAt.Before(start) || !rec.ReportedAt.Before(end)
	})
	return survivors, res, nil
}
