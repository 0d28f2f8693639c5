package rules

import (
	"github.com/radvia/faturamento/internal/domain/exam"
)

// deniedClientRule drops every row from a denylisted client (test clients,
// internal QA sources).
type deniedClientRule struct{}

func (r *deniedClientRule) Code() string { return "v003" }

func (r *deniedClientRule) Description() string {
	return "drop rows from denylisted clients"
}

func (r *deniedClientRule) Apply(rctx *Context, recs []*exam.Record) ([]*exam.Record, *Result, error) {
	res := &Result{Code: r.Code()}
	survivors := markExcluded(recs, res, func(rec *exam.Record) bool {
		return rctx.Snapshot.IsDenied(rec.ClientName)
	})
	return survivors, res, nil
}

// mandatoryFieldsRule drops rows missing the fields every later rule depends
// on (client name, exam name, realization date).
type mandatoryFieldsRule struct{}

func (r *mandatoryFieldsRule) Code() string { return "v004" }

func (r *mandatoryFieldsRule) Description() string {
	return "drop rows missing mandatory fields"
}

func (r *mandatoryFieldsRule) Apply(rctx *Context, recs []*exam.Record) ([]*exam.Record, *Result, error) {
	res := &Result{Code: r.Code()}
	survivors := markExcluded(recs, res, func(rec *exam.Record) bool {
		return !rec.HasMandatoryFields()
	})
	return survivors, res, nil
}
