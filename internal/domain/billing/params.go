package billing

import (
	"time"

	"github.com/google/uuid"

	"github.com/radvia/faturamento/internal/domain/exam"
)

// VolumeGrouping selects how a client's exams are grouped for valuation.
type VolumeGrouping string

const (
	GroupGlobal                    VolumeGrouping = "global"
	GroupModality                  VolumeGrouping = "modality"
	GroupModalitySpecialty         VolumeGrouping = "modality_specialty"
	GroupModalitySpecialtyCategory VolumeGrouping = "modality_specialty_category"
)

func (g VolumeGrouping) IsValid() bool {
	switch g {
	case GroupGlobal, GroupModality, GroupModalitySpecialty, GroupModalitySpecialtyCategory:
		return true
	}
	return false
}

// ClientParameters is the per-client billing configuration. Exactly one
// active row per client per effective date range.
type ClientParameters struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	ClientName string          `gorm:"column:client_name;type:varchar(255);not null;index"`
	ClientType exam.ClientType `gorm:"column:client_type;type:varchar(10);not null;default:'CO'"`

	// BillingTypeOverride replaces the CO-FT default for CO clients, and is
	// the fallback tag for NC/NC1 clients no classifier rule matches.
	BillingTypeOverride *exam.BillingType `gorm:"column:billing_type_override;type:varchar(12)"`

	VolumeGrouping VolumeGrouping `gorm:"column:volume_grouping;type:varchar(40);not null;default:'modality'"`

	// Franchise: flat monthly fee covering FranchiseVolume units, with
	// per-unit overage beyond it. A zero FranchiseVolume is an uncapped
	// franchise: the flat fee covers any volume and no overage applies.
	// Continuous franchises charge the flat fee even on zero-volume months.
	FranchiseEnabled    bool    `gorm:"column:franchise_enabled;default:false"`
	FranchiseContinuous bool    `gorm:"column:franchise_continuous;default:false"`
	FranchiseVolume     float64 `gorm:"column:franchise_volume;default:0"`
	FranchiseValue      float64 `gorm:"column:franchise_value;default:0"`
	OverageUnitValue    float64 `gorm:"column:overage_unit_value;default:0"`

	UrgencySurchargePct float64 `gorm:"column:urgency_surcharge_pct;default:0"`

	PortalEnabled      bool    `gorm:"column:portal_enabled;default:false"`
	PortalValue        float64 `gorm:"column:portal_value;default:0"`
	IntegrationEnabled bool    `gorm:"column:integration_enabled;default:false"`
	IntegrationValue   float64 `gorm:"column:integration_value;default:0"`

	ISSPct          float64 `gorm:"column:iss_pct;default:0"`
	SimplesNacional bool    `gorm:"column:simples_nacional;default:false"`

	EffectiveFrom time.Time  `gorm:"column:effective_from;not null;index"`
	EffectiveTo   *time.Time `gorm:"column:effective_to;index"`
	Active        bool       `gorm:"column:active;default:true;index"`
}

func (ClientParameters) TableName() string {
	return "billing.client_parameters"
}

// DefaultParameters is the configuration assumed for a client that has
// records in a period but no active parameter row. It mirrors the
// classifier's CO default so the client still yields a statement instead
// of a silent gap.
func DefaultParameters(clientName string) *ClientParameters {
	return &ClientParameters{
		ClientName:     clientName,
		ClientType:     exam.ClientTypeCO,
		VolumeGrouping: GroupModality,
	}
}

// PriceEntry is one row of the client price table. Priority is optional; a
// row with a priority binds tighter than one without. UrgencyUnitValue, when
// set, replaces UnitValue for plantão/urgent exams.
type PriceEntry struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time `gorm:"autoCreateTime"`

	ClientName string `gorm:"column:client_name;type:varchar(255);not null;index"`
	Modality   string `gorm:"column:modality;type:varchar(40);index"`
	Specialty  string `gorm:"column:specialty;type:varchar(120)"`
	Category   string `gorm:"column:category;type:varchar(80)"`
	Priority   string `gorm:"column:priority;type:varchar(80)"`

	UnitValue        float64  `gorm:"column:unit_value;not null"`
	UrgencyUnitValue *float64 `gorm:"column:urgency_unit_value"`
}

func (PriceEntry) TableName() string {
	return "billing.price_table"
}
