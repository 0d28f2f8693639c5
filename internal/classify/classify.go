// Package classify assigns the client-type and billing-type tags that decide
// whether and how a record is billed (tipificação). Non-consolidated clients
// bill per exam context, so each named client owns a predicate over a fixed
// attribute set (modality, specialty, category, priority, doctor roster)
// rather than a static client→type map.
package classify

import (
	"strings"

	"github.com/radvia/faturamento/internal/domain/billing"
	"github.com/radvia/faturamento/internal/domain/exam"
	"github.com/radvia/faturamento/internal/domain/registry"
)

// Rosters maps a roster name to its member doctors, keyed by normalized name.
type Rosters map[string]map[string]bool

// Predicate decides whether one record is billable (FT) for its client.
type Predicate func(rec *exam.Record, rosters Rosters) bool

// ClientRule binds a named client to its billability predicate.
type ClientRule struct {
	ClientName string
	Billable   Predicate
}

// ParamsIndex resolves a record's client name against the configured client
// parameter sets: exact match first, then first partial (substring) match in
// configuration order, then none.
type ParamsIndex struct {
	list  []*billing.ClientParameters
	byKey map[string]*billing.ClientParameters
}

func NewParamsIndex(list []*billing.ClientParameters) *ParamsIndex {
	idx := &ParamsIndex{list: list, byKey: make(map[string]*billing.ClientParameters, len(list))}
	for _, p := range list {
		key := registry.NormalizeKey(p.ClientName)
		if _, dup := idx.byKey[key]; !dup {
			idx.byKey[key] = p
		}
	}
	return idx
}

// Resolve returns the parameter set for a client name, or nil.
func (i *ParamsIndex) Resolve(clientName string) *billing.ClientParameters {
	key := registry.NormalizeKey(clientName)
	if p, ok := i.byKey[key]; ok {
		return p
	}
	for _, p := range i.list {
		pk := registry.NormalizeKey(p.ClientName)
		if strings.Contains(key, pk) || strings.Contains(pk, key) {
			return p
		}
	}
	return nil
}

// Classifier is the table-driven tipificação unit: named client rules plus
// the doctor rosters their predicates consult.
type Classifier struct {
	rules   map[string]Predicate
	rosters Rosters
}

func New(rules []ClientRule, rosters Rosters) *Classifier {
	m := make(map[string]Predicate, len(rules))
	for _, r := range rules {
		m[registry.NormalizeKey(r.ClientName)] = r.Billable
	}
	return &Classifier{rules: m, rosters: rosters}
}

// Classify decides both tags for one record. Decision order, first match
// wins:
//
//  1. client type from the parameter set (exact, then partial, then CO);
//  2. CO clients: the configured override, else CO-FT;
//  3. NC/NC1 clients: the named predicate decides FT/NF; clients without a
//     predicate fall back to the configured override, else <type>-NF.
func (c *Classifier) Classify(rec *exam.Record, idx *ParamsIndex) (exam.ClientType, exam.BillingType) {
	params := idx.Resolve(rec.ClientName)

	clientType := exam.ClientTypeCO
	if params != nil && params.ClientType.IsValid() {
		clientType = params.ClientType
	}

	if clientType == exam.ClientTypeCO {
		if o := overrideFor(params, clientType); o != nil {
			return clientType, *o
		}
		return clientType, exam.BillingCOFT
	}

	if pred, ok := c.rules[registry.NormalizeKey(rec.ClientName)]; ok {
		if pred(rec, c.rosters) {
			return clientType, exam.BillingType(string(clientType) + "-FT")
		}
		return clientType, exam.BillingType(string(clientType) + "-NF")
	}

	if o := overrideFor(params, clientType); o != nil {
		return clientType, *o
	}
	return clientType, exam.BillingType(string(clientType) + "-NF")
}

// overrideFor returns the configured billing-type override only when it is
// valid and its prefix matches the resolved client type. A cross-typed
// override (say CO-NF configured on an NC client) would break the tag pair,
// so it is ignored.
func overrideFor(params *billing.ClientParameters, clientType exam.ClientType) *exam.BillingType {
	if params == nil || params.BillingTypeOverride == nil {
		return nil
	}
	o := *params.BillingTypeOverride
	if !o.IsValid() || o.ClientType() != clientType {
		return nil
	}
	return params.BillingTypeOverride
}

// ValidBillingTypes is the full tag set the pipeline may assign. Tags outside
// it are stale leftovers from a superseded rule set and are cleared before
// every classification run.
func ValidBillingTypes() []exam.BillingType {
	return []exam.BillingType{
		exam.BillingCOFT, exam.BillingCONF,
		exam.BillingNCFT, exam.BillingNCNF,
		exam.BillingNC1FT, exam.BillingNC1NF,
	}
}
