package rules

import (
	"fmt"

	"github.com/radvia/faturamento/internal/domain/exam"
	"github.com/radvia/faturamento/internal/domain/registry"
)

// aliasRule canonicalizes one field via the alias registry. Idempotent: a
// row is only touched while its current value still matches an alias key, so
// once rewritten to the canonical form it matches nothing on a re-run
// (canonical values are not alias keys).
type aliasRule struct {
	code string
	kind registry.AliasKind
	desc string
}

func (r *aliasRule) Code() string        { return r.code }
func (r *aliasRule) Description() string { return r.desc }

func (r *aliasRule) Apply(rctx *Context, recs []*exam.Record) ([]*exam.Record, *Result, error) {
	res := &Result{Code: r.code}
	for _, rec := range recs {
		field, err := r.field(rec)
		if err != nil {
			return nil, nil, err
		}
		canonical, ok := rctx.Snapshot.LookupAlias(r.kind, *field)
		if !ok || *field == canonical {
			continue
		}
		*field = canonical
		res.Changed = append(res.Changed, rec)
	}
	return recs, res, nil
}

func (r *aliasRule) field(rec *exam.Record) (*string, error) {
	switch r.kind {
	case registry.AliasClient:
		return &rec.ClientName, nil
	case registry.AliasModality:
		return &rec.Modality, nil
	case registry.AliasSpecialty:
		return &rec.Specialty, nil
	case registry.AliasPriority:
		return &rec.Priority, nil
	case registry.AliasDoctor:
		return &rec.DoctorName, nil
	}
	return nil, fmt.Errorf("alias rule %s: unknown kind %q", r.code, r.kind)
}
