package compute

import (
	"github.com/radvia/faturamento/internal/classify"
	"github.com/radvia/faturamento/internal/domain/billing"
	"github.com/radvia/faturamento/internal/domain/exam"
	"github.com/radvia/faturamento/internal/domain/registry"
)

// PriceTable resolves unit prices for one client's records. An entry with an
// empty field wildcards that dimension; the most specific matching entry
// wins, with priority binding tighter than category, category tighter than
// specialty, specialty tighter than modality.
type PriceTable struct {
	entries []*billing.PriceEntry
}

func NewPriceTable(entries []*billing.PriceEntry) *PriceTable {
	return &PriceTable{entries: entries}
}

// UnitPrice returns the unit value for a record, selecting the urgency price
// for plantão/urgent exams when one is configured, else applying the
// client's urgency surcharge. Returns billing.ErrPriceNotFound when no entry
// matches.
func (t *PriceTable) UnitPrice(rec *exam.Record, params *billing.ClientParameters) (float64, error) {
	var best *billing.PriceEntry
	bestScore := -1

	for _, e := range t.entries {
		score, ok := matchScore(e, rec)
		if !ok {
			continue
		}
		if score > bestScore {
			best = e
			bestScore = score
		}
	}

	if best == nil {
		return 0, billing.ErrPriceNotFound
	}

	if classify.IsUrgent(rec) {
		if best.UrgencyUnitValue != nil {
			return *best.UrgencyUnitValue, nil
		}
		if params != nil && params.UrgencySurchargePct > 0 {
			return Round2(best.UnitValue * (1 + params.UrgencySurchargePct/100)), nil
		}
	}

	return best.UnitValue, nil
}

// matchScore checks every non-empty entry field against the record and
// returns a specificity score (higher binds tighter).
func matchScore(e *billing.PriceEntry, rec *exam.Record) (int, bool) {
	score := 0

	if e.Modality != "" {
		if registry.NormalizeKey(e.Modality) != registry.NormalizeKey(rec.Modality) {
			return 0, false
		}
		score += 1
	}
	if e.Specialty != "" {
		if registry.NormalizeKey(e.Specialty) != registry.NormalizeKey(rec.Specialty) {
			return 0, false
		}
		score += 2
	}
	if e.Category != "" {
		if registry.NormalizeKey(e.Category) != registry.NormalizeKey(rec.Category) {
			return 0, false
		}
		score += 4
	}
	if e.Priority != "" {
		if registry.NormalizeKey(e.Priority) != registry.NormalizeKey(rec.Priority) {
			return 0, false
		}
		score += 8
	}

	return score, true
}
