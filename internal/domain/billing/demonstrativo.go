package billing

import (
	"time"

	"github.com/google/uuid"
)

// DemonstrativoStatus marks how a statement computation ended.
type DemonstrativoStatus string

const (
	DemonstrativoProcessed DemonstrativoStatus = "processado"
	DemonstrativoError     DemonstrativoStatus = "erro_processamento"
)

// BreakdownItem is one line of the itemized volume breakdown.
type BreakdownItem struct {
	Dimension string  `json:"dimension"` // modality | specialty | category | priority
	Label     string  `json:"label"`
	Count     int64   `json:"count"`
	Quantity  float64 `json:"quantity"`
}

// Demonstrativo is one computed statement per client per reference period.
// Superseded (deleted and rewritten), never merged, on forced recomputation.
//
// Reconciliation invariants: GrossTotal is always the sum of ExamValue,
// FranchiseValue, PortalValue and IntegrationValue; NetTotal is always
// GrossTotal minus TotalTax.
type Demonstrativo struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time `gorm:"autoCreateTime"`

	ClientName      string              `gorm:"column:client_name;type:varchar(255);not null;uniqueIndex:uq_demonstrativo_client_period"`
	ReferencePeriod string              `gorm:"column:periodo_referencia;type:varchar(7);not null;uniqueIndex:uq_demonstrativo_client_period"`
	Status          DemonstrativoStatus `gorm:"column:status;type:varchar(30);not null;default:'processado'"`
	ErrorMessage    string              `gorm:"column:error_message;type:text"`

	ExamCount   int64   `gorm:"column:exam_count;not null;default:0"`
	TotalVolume float64 `gorm:"column:total_volume;not null;default:0"`

	ExamValue        float64 `gorm:"column:exam_value;not null;default:0"`
	FranchiseValue   float64 `gorm:"column:franchise_value;not null;default:0"`
	PortalValue      float64 `gorm:"column:portal_value;not null;default:0"`
	IntegrationValue float64 `gorm:"column:integration_value;not null;default:0"`
	GrossTotal       float64 `gorm:"column:gross_total;not null;default:0"`

	ISSValue    float64 `gorm:"column:iss_value;not null;default:0"`
	IRRFValue   float64 `gorm:"column:irrf_value;not null;default:0"`
	PISValue    float64 `gorm:"column:pis_value;not null;default:0"`
	COFINSValue float64 `gorm:"column:cofins_value;not null;default:0"`
	CSLLValue   float64 `gorm:"column:csll_value;not null;default:0"`
	TotalTax    float64 `gorm:"column:total_tax;not null;default:0"`
	NetTotal    float64 `gorm:"column:net_total;not null;default:0"`

	Breakdown []BreakdownItem `gorm:"column:breakdown;serializer:json"`
}

func (Demonstrativo) TableName() string {
	return "billing.demonstrativos"
}
