// Package compute is the billing computation engine: grouped exam valuation,
// franchise tiering, additive fees, tax withholding and the per-client
// demonstrative. Everything here is pure over its inputs; persistence and
// error isolation live in the service layer.
package compute

import (
	"fmt"
	"sort"
	"strings"

	"github.com/radvia/faturamento/internal/domain/billing"
	"github.com/radvia/faturamento/internal/domain/exam"
)

// Withholding rates and the legal minimum below which a withholding is not
// retained (Lei 10.833 / IN RFB). The IRRF floor and the PIS+COFINS+CSLL
// floor are independent rules: one being zeroed says nothing about the other.
const (
	IRRFRate   = 0.015
	PISRate    = 0.0065
	COFINSRate = 0.03
	CSLLRate   = 0.01

	WithholdingFloor = 10.00
)

// GroupValue is the priced volume of one grouping key.
type GroupValue struct {
	Key      string
	Quantity float64
	Value    float64
}

// Valuation is the exam-value stage output for one client/period.
type Valuation struct {
	Groups      []GroupValue
	ExamCount   int64
	TotalVolume float64
	TotalValue  float64
}

// groupKey renders a record's grouping key under the client's configured
// volume grouping.
func groupKey(rec *exam.Record, grouping billing.VolumeGrouping) string {
	switch grouping {
	case billing.GroupModality:
		return rec.Modality
	case billing.GroupModalitySpecialty:
		return rec.Modality + "|" + rec.Specialty
	case billing.GroupModalitySpecialtyCategory:
		return rec.Modality + "|" + rec.Specialty + "|" + rec.Category
	default:
		return "total"
	}
}

// Valuate prices the billable (-FT) records of one client, grouped by the
// configured volume-grouping key.
func Valuate(recs []*exam.Record, params *billing.ClientParameters, prices *PriceTable) (*Valuation, error) {
	byKey := make(map[string]*GroupValue)

	v := &Valuation{}
	for _, rec := range recs {
		if rec.BillingType == nil || !rec.BillingType.Billable() {
			continue
		}

		unit, err := prices.UnitPrice(rec, params)
		if err != nil {
			return nil, fmt.Errorf("pricing %q (%s): %w", rec.ExamName, rec.Modality, err)
		}

		key := groupKey(rec, params.VolumeGrouping)
		g := byKey[key]
		if g == nil {
			g = &GroupValue{Key: key}
			byKey[key] = g
		}
		g.Quantity += rec.Quantity
		g.Value += unit * rec.Quantity

		v.ExamCount++
		v.TotalVolume += rec.Quantity
	}

	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		g := byKey[k]
		g.Value = Round2(g.Value)
		v.Groups = append(v.Groups, *g)
		v.TotalValue += g.Value
	}
	v.TotalValue = Round2(v.TotalValue)

	return v, nil
}

// Franchise computes the franchise charge for the period's total volume.
// The flat fee covers everything up to the configured volume; overage is
// charged only on the units above it, never the whole volume. A zero
// FranchiseVolume means the flat fee has no volume cap, so no overage
// ever applies.
func Franchise(params *billing.ClientParameters, totalVolume float64) float64 {
	if !params.FranchiseEnabled {
		return 0
	}
	if !params.FranchiseContinuous && totalVolume <= 0 {
		return 0
	}

	total := params.FranchiseValue
	if params.FranchiseVolume > 0 && totalVolume > params.FranchiseVolume {
		excess := totalVolume - params.FranchiseVolume
		total += excess * params.OverageUnitValue
	}
	return Round2(total)
}

// Taxes holds the withholding stage output.
type Taxes struct {
	ISS    float64
	IRRF   float64
	PIS    float64
	COFINS float64
	CSLL   float64
	Total  float64
}

// ComputeTaxes applies the withholding rules to a gross total. ISS always
// applies, with no minimum-threshold exemption. IRRF below the floor is
// zeroed on its own; PIS, COFINS and CSLL are zeroed together when their sum
// is below the floor. Simples Nacional clients skip federal withholding
// entirely but still owe ISS.
func ComputeTaxes(gross float64, params *billing.ClientParameters) Taxes {
	t := Taxes{
		ISS: Round2(gross * params.ISSPct / 100),
	}

	if !params.SimplesNacional {
		t.IRRF = Round2(gross * IRRFRate)
		if t.IRRF < WithholdingFloor {
			t.IRRF = 0
		}

		pis := Round2(gross * PISRate)
		cofins := Round2(gross * COFINSRate)
		csll := Round2(gross * CSLLRate)
		if pis+cofins+csll >= WithholdingFloor {
			t.PIS, t.COFINS, t.CSLL = pis, cofins, csll
		}
	}

	t.Total = Round2(t.ISS + t.IRRF + t.PIS + t.COFINS + t.CSLL)
	return t
}

// Breakdown itemizes the client's billable volume by modality, specialty,
// category and priority.
func Breakdown(recs []*exam.Record) []billing.BreakdownItem {
	type bucket struct {
		count    int64
		quantity float64
	}

	dims := []struct {
		name  string
		value func(*exam.Record) string
	}{
		{"modality", func(r *exam.Record) string { return r.Modality }},
		{"specialty", func(r *exam.Record) string { return r.Specialty }},
		{"category", func(r *exam.Record) string { return r.Category }},
		{"priority", func(r *exam.Record) string { return r.Priority }},
	}

	var items []billing.BreakdownItem
	for _, dim := range dims {
		buckets := make(map[string]*bucket)
		for _, rec := range recs {
			if rec.BillingType == nil || !rec.BillingType.Billable() {
				continue
			}
			label := strings.TrimSpace(dim.value(rec))
			if label == "" {
				label = "SC"
			}
			b := buckets[label]
			if b == nil {
				b = &bucket{}
				buckets[label] = b
			}
			b.count++
			b.quantity += rec.Quantity
		}

		labels := make([]string, 0, len(buckets))
		for l := range buckets {
			labels = append(labels, l)
		}
		sort.Strings(labels)

		for _, l := range labels {
			items = append(items, billing.BreakdownItem{
				Dimension: dim.name,
				Label:     l,
				Count:     buckets[l].count,
				Quantity:  buckets[l].quantity,
			})
		}
	}
	return items
}

// BuildDemonstrativo runs the full computation for one client and period:
// valuation, franchise, additive fees, gross, taxes, net.
func BuildDemonstrativo(clientName, period string, recs []*exam.Record, params *billing.ClientParameters, prices *PriceTable) (*billing.Demonstrativo, error) {
	val, err := Valuate(recs, params, prices)
	if err != nil {
		return nil, err
	}

	franchise := Franchise(params, val.TotalVolume)

	var portal, integration float64
	if params.PortalEnabled {
		portal = params.PortalValue
	}
	if params.IntegrationEnabled {
		integration = params.IntegrationValue
	}

	gross := Round2(val.TotalValue + franchise + portal + integration)
	taxes := ComputeTaxes(gross, params)

	return &billing.Demonstrativo{
		ClientName:      clientName,
		ReferencePeriod: period,
		Status:          billing.DemonstrativoProcessed,

		ExamCount:   val.ExamCount,
		TotalVolume: val.TotalVolume,

		ExamValue:        val.TotalValue,
		FranchiseValue:   franchise,
		PortalValue:      portal,
		IntegrationValue: integration,
		GrossTotal:       gross,

		ISSValue:    taxes.ISS,
		IRRFValue:   taxes.IRRF,
		PISValue:    taxes.PIS,
		COFINSValue: taxes.COFINS,
		CSLLValue:   taxes.CSLL,
		TotalTax:    taxes.Total,
		NetTotal:    Round2(gross - taxes.Total),

		Breakdown: Breakdown(recs),
	}, nil
}
