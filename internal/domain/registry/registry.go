// Package registry holds the read-only lookup tables the pipeline normalizes
// against: the exam catalog, alias tables, value backfill, split rules and
// the client denylist. Maintenance happens in external configuration screens;
// this service only reads them, always through a Snapshot so one rule run
// sees one consistent view.
package registry

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CatalogEntry maps an exam name to its canonical modality, specialty and
// category. Keyed by the normalized exam name.
type CatalogEntry struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	ExamName  string `gorm:"column:exam_name;type:varchar(255);uniqueIndex;not null"`
	Modality  string `gorm:"column:modality;type:varchar(40);not null"`
	Specialty string `gorm:"column:specialty;type:varchar(120)"`
	Category  string `gorm:"column:category;type:varchar(80)"`
}

func (CatalogEntry) TableName() string {
	return "ref.exam_catalog"
}

// AliasKind selects which field an alias row canonicalizes.
type AliasKind string

const (
	AliasDoctor    AliasKind = "doctor"
	AliasClient    AliasKind = "client"
	AliasPriority  AliasKind = "priority"
	AliasModality  AliasKind = "modality"
	AliasSpecialty AliasKind = "specialty"
)

// Alias maps one raw label to its canonical form.
type Alias struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time `gorm:"autoCreateTime"`

	Kind AliasKind `gorm:"column:kind;type:varchar(20);not null;index"`
	From string    `gorm:"column:alias_from;type:varchar(255);not null"`
	To   string    `gorm:"column:alias_to;type:varchar(255);not null"`
}

func (Alias) TableName() string {
	return "ref.aliases"
}

// ValueBackfill supplies the quantity for exams that arrive with a missing
// or zero value, keyed by exam name.
type ValueBackfill struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time `gorm:"autoCreateTime"`

	ExamName string  `gorm:"column:exam_name;type:varchar(255);uniqueIndex;not null"`
	Quantity float64 `gorm:"column:quantity;not null"`
}

func (ValueBackfill) TableName() string {
	return "ref.value_backfills"
}

// SplitRule maps one composite exam name to one resulting sub-exam.
// A composite with N active rows expands into N unit-quantity records.
type SplitRule struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time `gorm:"autoCreateTime"`

	CompositeExamName string `gorm:"column:composite_exam_name;type:varchar(255);not null;index"`
	TargetExamName    string `gorm:"column:target_exam_name;type:varchar(255);not null"`
	TargetCategory    string `gorm:"column:target_category;type:varchar(80)"`
	Active            bool   `gorm:"column:active;default:true;index"`
}

func (SplitRule) TableName() string {
	return "ref.split_rules"
}

// DeniedClient lists client names whose rows are dropped outright
// (test clients, internal QA sources).
type DeniedClient struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time `gorm:"autoCreateTime"`

	ClientName string `gorm:"column:client_name;type:varchar(255);uniqueIndex;not null"`
}

func (DeniedClient) TableName() string {
	return "ref.denied_clients"
}

// SplitTarget is the in-memory form of one split destination.
type SplitTarget struct {
	ExamName string
	Category string
}

// Snapshot is one consistent, read-only view of every registry, keyed by
// normalized lookup keys. Rules receive it by value and never mutate it.
type Snapshot struct {
	Catalog     map[string]CatalogEntry
	Aliases     map[AliasKind]map[string]string
	ValueByExam map[string]float64
	Denied      map[string]bool
	SplitRules  map[string][]SplitTarget
}

// LookupCatalog resolves an exam name against the catalog.
func (s *Snapshot) LookupCatalog(examName string) (CatalogEntry, bool) {
	e, ok := s.Catalog[NormalizeKey(examName)]
	return e, ok
}

// LookupAlias resolves a raw label of the given kind to its canonical form.
func (s *Snapshot) LookupAlias(kind AliasKind, from string) (string, bool) {
	m, ok := s.Aliases[kind]
	if !ok {
		return "", false
	}
	to, ok := m[NormalizeKey(from)]
	return to, ok
}

// LookupValue resolves the backfill quantity for an exam name.
func (s *Snapshot) LookupValue(examName string) (float64, bool) {
	v, ok := s.ValueByExam[NormalizeKey(examName)]
	return v, ok
}

// IsDenied reports whether the client name is denylisted.
func (s *Snapshot) IsDenied(clientName string) bool {
	return s.Denied[NormalizeKey(clientName)]
}

var multiSpace = regexp.MustCompile(`\s+`)

// NormalizeKey lowercases, collapses whitespace and trims a lookup key so
// registry matching is insensitive to spreadsheet formatting noise.
func NormalizeKey(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	return multiSpace.ReplaceAllString(s, " ")
}
