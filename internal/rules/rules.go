// Package rules holds the fixed, ordered list of normalization steps the
// pipeline applies to every record of a batch. Each rule is a pure transform
// over the in-memory batch: it mutates rows in place, reports which rows it
// changed and which it excluded, and is idempotent — re-applying it to an
// already-normalized batch changes nothing. That makes a crashed run safe to
// re-trigger from the start.
package rules

import (
	"github.com/google/uuid"

	"github.com/radvia/faturamento/internal/domain/exam"
	"github.com/radvia/faturamento/internal/domain/registry"
)

// Context carries the read-only inputs one rule run sees: a consistent
// registry snapshot and the run parameters.
type Context struct {
	Snapshot        *registry.Snapshot
	ReferencePeriod string // YYYY-MM
	Retroactive     bool
}

// Result reports what one rule did. Excluded rows must be deleted from the
// store; Changed rows must be saved. Idempotence guarantees both sets are
// empty on a second application.
type Result struct {
	Code     string
	Excluded []uuid.UUID
	Changed  []*exam.Record
}

type Rule interface {
	// Code is the stable identifier recorded on the processing job.
	Code() string
	Description() string

	// Apply mutates matching rows in place and returns the surviving rows.
	Apply(rctx *Context, recs []*exam.Record) ([]*exam.Record, *Result, error)
}

// Ordered returns the rule list for one run. Order is load-bearing: category
// backfill depends on modality aliasing having run, the period stamp depends
// on nothing later overwriting it. Retroactive window exclusions always run
// first so later rules never touch out-of-window rows.
func Ordered(retroactive bool) []Rule {
	var list []Rule
	if retroactive {
		list = append(list,
			&retroRealizationRule{},
			&retroReportWindowRule{},
		)
	}
	list = append(list,
		&deniedClientRule{},
		&mandatoryFieldsRule{},
		&aliasRule{code: "v005", kind: registry.AliasClient, desc: "merge client names via alias registry"},
		&aliasRule{code: "v006", kind: registry.AliasModality, desc: "canonicalize modality labels"},
		&aliasRule{code: "v007", kind: registry.AliasSpecialty, desc: "canonicalize specialty labels"},
		&aliasRule{code: "v008", kind: registry.AliasPriority, desc: "canonicalize priority labels"},
		&aliasRule{code: "v009", kind: registry.AliasDoctor, desc: "canonicalize doctor names"},
		&valueBackfillRule{},
		&catalogBackfillRule{},
		&periodStampRule{},
	)
	return list
}

// markExcluded filters recs down to survivors, appending the dropped ids to
// the result.
func markExcluded(recs []*exam.Record, res *Result, drop func(*exam.Record) bool) []*exam.Record {
	survivors := recs[:0:0]
	for _, rec := range recs {
		if drop(rec) {
			res.Excluded = append(res.Excluded, rec.ID)
			continue
		}
		survivors = append(survivors, rec)
	}
	return survivors
}
