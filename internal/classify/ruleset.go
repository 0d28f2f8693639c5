package classify

// DefaultRuleSet is the named-client predicate table for the current
// contracts. Each entry captures the billing agreement of one
// non-consolidated client: which exam contexts count as billable.
func DefaultRuleSet() []ClientRule {
	return []ClientRule{
		// Bills only plantão/urgent-shift exams.
		{ClientName: "Hospital São Lucas", Billable: UrgentShift()},

		// Bills urgent shifts plus anything read by the contracted
		// neuro roster.
		{ClientName: "Santa Casa de Montes Claros", Billable: Any(
			UrgentShift(),
			DoctorInRoster("neuro"),
		)},

		// Bills internal-medicine CT/MR only.
		{ClientName: "Clínica Imagem Sul", Billable: All(
			SpecialtyIs("Clínica Médica"),
			ModalityIs("TC", "RM"),
		)},

		// Bills urgent mammography and contrast studies.
		{ClientName: "Hospital Regional Norte", Billable: Any(
			All(ModalityIs("MMG"), UrgentShift()),
			CategoryIs("Contrastado"),
		)},
	}
}

// DefaultRosters holds the fixed doctor lists the predicates consult.
func DefaultRosters() Rosters {
	return Rosters{
		"neuro": {
			"dr. carlos andrade":  true,
			"dra. fernanda lima":  true,
			"dr. paulo hernandes": true,
		},
	}
}
