package classify

import (
	"github.com/radvia/faturamento/internal/domain/exam"
	"github.com/radvia/faturamento/internal/domain/registry"
)

// urgentPriorities are the canonical priority labels billed as plantão/urgent
// shifts. Priority aliasing has already run when the classifier sees a row.
var urgentPriorities = map[string]bool{
	"plantão":  true,
	"plantao":  true,
	"urgente":  true,
	"urgência": true,
	"urgencia": true,
}

// IsUrgent reports whether the record's priority is a plantão/urgent shift.
func IsUrgent(rec *exam.Record) bool {
	return urgentPriorities[registry.NormalizeKey(rec.Priority)]
}

// UrgentShift matches plantão/urgent-priority exams.
func UrgentShift() Predicate {
	return func(rec *exam.Record, _ Rosters) bool {
		return IsUrgent(rec)
	}
}

// SpecialtyIs matches any of the given specialties.
func SpecialtyIs(specialties ...string) Predicate {
	set := normalizeSet(specialties)
	return func(rec *exam.Record, _ Rosters) bool {
		return set[registry.NormalizeKey(rec.Specialty)]
	}
}

// ModalityIs matches any of the given modalities.
func ModalityIs(modalities ...string) Predicate {
	set := normalizeSet(modalities)
	return func(rec *exam.Record, _ Rosters) bool {
		return set[registry.NormalizeKey(rec.Modality)]
	}
}

// CategoryIs matches any of the given categories.
func CategoryIs(categories ...string) Predicate {
	set := normalizeSet(categories)
	return func(rec *exam.Record, _ Rosters) bool {
		return set[registry.NormalizeKey(rec.Category)]
	}
}

// DoctorInRoster matches records read by a doctor in the named roster.
func DoctorInRoster(roster string) Predicate {
	return func(rec *exam.Record, rosters Rosters) bool {
		members, ok := rosters[roster]
		if !ok {
			return false
		}
		return members[registry.NormalizeKey(rec.DoctorName)]
	}
}

// Any combines predicates with logical OR.
func Any(preds ...Predicate) Predicate {
	return func(rec *exam.Record, rosters Rosters) bool {
		for _, p := range preds {
			if p(rec, rosters) {
				return true
			}
		}
		return false
	}
}

// All combines predicates with logical AND.
func All(preds ...Predicate) Predicate {
	return func(rec *exam.Record, rosters Rosters) bool {
		for _, p := range preds {
			if !p(rec, rosters) {
				return false
			}
		}
		return true
	}
}

func normalizeSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[registry.NormalizeKey(v)] = true
	}
	return set
}
