package rules

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/radvia/faturamento/internal/domain/exam"
	"github.com/radvia/faturamento/internal/domain/registry"
)

func testSnapshot() *registry.Snapshot {
	return &registry.Snapshot{
		Catalog: map[string]registry.CatalogEntry{
			"tc cranio": {ExamName: "TC CRANIO", Modality: "TC", Specialty: "Neuro", Category: "Simples"},
			"rm coluna": {ExamName: "RM COLUNA", Modality: "RM", Specialty: "Musculoesquelético", Category: "Contrastado"},
		},
		Aliases: map[registry.AliasKind]map[string]string{
			registry.AliasClient: {
				"hosp. sao lucas": "Hospital São Lucas",
			},
			registry.AliasModality: {
				"tomografia": "TC",
			},
			registry.AliasPriority: {
				"plantao": "Plantão",
			},
		},
		ValueByExam: map[string]float64{
			"tc cranio": 2,
		},
		Denied: map[string]bool{
			"cliente teste": true,
		},
	}
}

func rec(mut func(*exam.Record)) *exam.Record {
	r := &exam.Record{
		ID:         uuid.New(),
		ClientName: "Hospital São Lucas",
		ExamName:   "TC CRANIO",
		Quantity:   1,
	}
	t := time.Date(2025, 12, 10, 14, 0, 0, 0, time.UTC)
	r.RealizedAt = &t
	r.ReportedAt = &t
	if mut != nil {
		mut(r)
	}
	return r
}

func apply(t *testing.T, r Rule, rctx *Context, recs []*exam.Record) ([]*exam.Record, *Result) {
	t.Helper()
	out, res, err := r.Apply(rctx, recs)
	if err != nil {
		t.Fatalf("%s: unexpected error: %v", r.Code(), err)
	}
	return out, res
}

func TestReportWindow(t *testing.T) {
	start, end, err := ReportWindow("2025-12")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantStart := time.Date(2025, 12, 8, 0, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2026, 1, 8, 0, 0, 0, 0, time.UTC)
	if !start.Equal(wantStart) {
		t.Errorf("start = %v, want %v", start, wantStart)
	}
	if !end.Equal(wantEnd) {
		t.Errorf("end = %v, want %v", end, wantEnd)
	}
}

func TestParsePeriodInvalid(t *testing.T) {
	for _, p := range []string{"", "2025", "2025-13", "dez/2025"} {
		if _, err := ParsePeriod(p); err == nil {
			t.Errorf("ParsePeriod(%q): expected error", p)
		}
	}
}

func TestRetroRealizationRule(t *testing.T) {
	rctx := &Context{Snapshot: testSnapshot(), ReferencePeriod: "2025-12", Retroactive: true}

	before := time.Date(2025, 11, 20, 0, 0, 0, 0, time.UTC)
	inside := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)

	keep := rec(func(r *exam.Record) { r.RealizedAt = &before })
	drop := rec(func(r *exam.Record) { r.RealizedAt = &inside })

	out, res := apply(t, &retroRealizationRule{}, rctx, []*exam.Record{keep, drop})
	if len(out) != 1 || out[0].ID != keep.ID {
		t.Fatalf("expected only the pre-period row to survive, got %d rows", len(out))
	}
	if len(res.Excluded) != 1 || res.Excluded[0] != drop.ID {
		t.Errorf("excluded = %v, want [%v]", res.Excluded, drop.ID)
	}
}

func TestRetroReportWindowRule(t *testing.T) {
	rctx := &Context{Snapshot: testSnapshot(), ReferencePeriod: "2025-12", Retroactive: true}

	day7 := time.Date(2025, 12, 7, 23, 59, 0, 0, time.UTC)
	day8 := time.Date(2025, 12, 8, 0, 0, 0, 0, time.UTC)
	jan7 := time.Date(2026, 1, 7, 12, 0, 0, 0, time.UTC)
	jan8 := time.Date(2026, 1, 8, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		reported *time.Time
		survives bool
	}{
		{"before window", &day7, false},
		{"window start", &day8, true},
		{"window end inclusive", &jan7, true},
		{"past window", &jan8, false},
		{"no report date", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := rec(func(r *exam.Record) { r.ReportedAt = tt.reported })
			out, _ := apply(t, &retroReportWindowRule{}, rctx, []*exam.Record{r})
			if got := len(out) == 1; got != tt.survives {
				t.Errorf("survives = %v, want %v", got, tt.survives)
			}
		})
	}
}

func TestDeniedClientRule(t *testing.T) {
	rctx := &Context{Snapshot: testSnapshot(), ReferencePeriod: "2025-12"}

	keep := rec(nil)
	drop := rec(func(r *exam.Record) { r.ClientName = "  Cliente  TESTE " })

	out, res := apply(t, &deniedClientRule{}, rctx, []*exam.Record{keep, drop})
	if len(out) != 1 || out[0].ID != keep.ID {
		t.Fatalf("expected denylisted row dropped, got %d rows", len(out))
	}
	if len(res.Excluded) != 1 {
		t.Errorf("excluded = %d, want 1", len(res.Excluded))
	}
}

func TestMandatoryFieldsRule(t *testing.T) {
	rctx := &Context{Snapshot: testSnapshot(), ReferencePeriod: "2025-12"}

	tests := []struct {
		name     string
		mut      func(*exam.Record)
		survives bool
	}{
		{"complete", nil, true},
		{"no client", func(r *exam.Record) { r.ClientName = "" }, false},
		{"no exam name", func(r *exam.Record) { r.ExamName = "" }, false},
		{"no realization date", func(r *exam.Record) { r.RealizedAt = nil }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _ := apply(t, &mandatoryFieldsRule{}, rctx, []*exam.Record{rec(tt.mut)})
			if got := len(out) == 1; got != tt.survives {
				t.Errorf("survives = %v, want %v", got, tt.survives)
			}
		})
	}
}

func TestAliasRules(t *testing.T) {
	rctx := &Context{Snapshot: testSnapshot(), ReferencePeriod: "2025-12"}

	r := rec(func(r *exam.Record) {
		r.ClientName = "Hosp. Sao Lucas"
		r.Modality = "Tomografia"
		r.Priority = "plantao"
	})

	for _, rule := range []Rule{
		&aliasRule{code: "v005", kind: registry.AliasClient},
		&aliasRule{code: "v006", kind: registry.AliasModality},
		&aliasRule{code: "v008", kind: registry.AliasPriority},
	} {
		_, res := apply(t, rule, rctx, []*exam.Record{r})
		if len(res.Changed) != 1 {
			t.Errorf("%s: changed = %d, want 1", rule.Code(), len(res.Changed))
		}
	}

	if r.ClientName != "Hospital São Lucas" {
		t.Errorf("client = %q", r.ClientName)
	}
	if r.Modality != "TC" {
		t.Errorf("modality = %q", r.Modality)
	}
	if r.Priority != "Plantão" {
		t.Errorf("priority = %q", r.Priority)
	}
}

func TestValueBackfillRule(t *testing.T) {
	rctx := &Context{Snapshot: testSnapshot(), ReferencePeriod: "2025-12"}

	registered := rec(func(r *exam.Record) { r.Quantity = 0 })
	unknown := rec(func(r *exam.Record) { r.ExamName = "US ABDOME"; r.Quantity = 0 })
	untouched := rec(func(r *exam.Record) { r.Quantity = 3 })

	_, res := apply(t, &valueBackfillRule{}, rctx, []*exam.Record{registered, unknown, untouched})

	if registered.Quantity != 2 {
		t.Errorf("registered quantity = %v, want 2 from registry", registered.Quantity)
	}
	if unknown.Quantity != 1 {
		t.Errorf("unknown quantity = %v, want default 1", unknown.Quantity)
	}
	if untouched.Quantity != 3 {
		t.Errorf("positive quantity overwritten: %v", untouched.Quantity)
	}
	if len(res.Changed) != 2 {
		t.Errorf("changed = %d, want 2", len(res.Changed))
	}
}

func TestCatalogBackfillRule(t *testing.T) {
	rctx := &Context{Snapshot: testSnapshot(), ReferencePeriod: "2025-12"}

	empty := rec(func(r *exam.Record) { r.Modality = ""; r.Specialty = ""; r.Category = "" })
	partial := rec(func(r *exam.Record) { r.Modality = "RX"; r.Specialty = ""; r.Category = "" })

	_, res := apply(t, &catalogBackfillRule{}, rctx, []*exam.Record{empty, partial})

	if empty.Modality != "TC" || empty.Specialty != "Neuro" || empty.Category != "Simples" {
		t.Errorf("empty row not backfilled: %+v", empty)
	}
	// Present values are never overwritten.
	if partial.Modality != "RX" {
		t.Errorf("modality overwritten: %q", partial.Modality)
	}
	if partial.Specialty != "Neuro" {
		t.Errorf("partial specialty = %q, want Neuro", partial.Specialty)
	}
	if len(res.Changed) != 2 {
		t.Errorf("changed = %d, want 2", len(res.Changed))
	}
}

func TestPeriodStampRule(t *testing.T) {
	rctx := &Context{Snapshot: testSnapshot(), ReferencePeriod: "2025-12"}

	blank := rec(nil)
	stamped := rec(func(r *exam.Record) { r.ReferencePeriod = "2025-11" })

	_, res := apply(t, &periodStampRule{}, rctx, []*exam.Record{blank, stamped})

	if blank.ReferencePeriod != "2025-12" {
		t.Errorf("period = %q, want 2025-12", blank.ReferencePeriod)
	}
	if stamped.ReferencePeriod != "2025-11" {
		t.Errorf("existing stamp overwritten: %q", stamped.ReferencePeriod)
	}
	if len(res.Changed) != 1 {
		t.Errorf("changed = %d, want 1", len(res.Changed))
	}
}

func TestOrdered(t *testing.T) {
	plain := Ordered(false)
	if len(plain) != 10 {
		t.Fatalf("standard run has %d rules, want 10", len(plain))
	}
	if plain[0].Code() != "v003" {
		t.Errorf("first standard rule = %s, want v003", plain[0].Code())
	}

	retro := Ordered(true)
	if len(retro) != 12 {
		t.Fatalf("retroactive run has %d rules, want 12", len(retro))
	}
	if retro[0].Code() != "v001" || retro[1].Code() != "v002" {
		t.Errorf("window exclusions must run first, got %s, %s", retro[0].Code(), retro[1].Code())
	}
}

// Running the full ordered list twice over the same batch must produce no
// further exclusions or changes: a crashed run is safe to re-trigger.
func TestOrderedIdempotent(t *testing.T) {
	rctx := &Context{Snapshot: testSnapshot(), ReferencePeriod: "2025-12", Retroactive: true}

	before := time.Date(2025, 11, 20, 10, 0, 0, 0, time.UTC)
	inWindow := time.Date(2025, 12, 9, 10, 0, 0, 0, time.UTC)
	recs := []*exam.Record{
		rec(func(r *exam.Record) {
			r.ClientName = "Hosp. Sao Lucas"
			r.Modality = "Tomografia"
			r.Quantity = 0
			r.RealizedAt = &before
			r.ReportedAt = &inWindow
		}),
		rec(func(r *exam.Record) {
			r.ClientName = "cliente teste"
			r.RealizedAt = &before
			r.ReportedAt = &inWindow
		}),
		rec(func(r *exam.Record) {
			r.ExamName = "RM COLUNA"
			r.Modality = ""
			r.RealizedAt = &before
			r.ReportedAt = &inWindow
		}),
	}

	run := func(in []*exam.Record) ([]*exam.Record, int, int) {
		excluded, changed := 0, 0
		for _, rule := range Ordered(true) {
			var res *Result
			in, res = apply(t, rule, rctx, in)
			excluded += len(res.Excluded)
			changed += len(res.Changed)
		}
		return in, excluded, changed
	}

	out, excluded, changed := run(recs)
	if len(out) != 2 || excluded != 1 || changed == 0 {
		t.Fatalf("first pass: survivors=%d excluded=%d changed=%d", len(out), excluded, changed)
	}

	out2, excluded2, changed2 := run(out)
	if len(out2) != len(out) || excluded2 != 0 || changed2 != 0 {
		t.Errorf("second pass not a no-op: survivors=%d excluded=%d changed=%d", len(out2), excluded2, changed2)
	}
}
