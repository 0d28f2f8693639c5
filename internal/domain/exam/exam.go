package exam

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the report lifecycle state a record arrives with. Only signed
// and re-signed reports are admitted into the store; everything else is
// rejected at ingestion with a typed reason.
type Status string

const (
	StatusSigned   Status = "Assinado"
	StatusResigned Status = "Reassinado"
)

func (s Status) IsAdmissible() bool {
	return s == StatusSigned || s == StatusResigned
}

// ClientType tags how a client is consolidated for billing.
// CO clients bill every exam; NC/NC1 clients bill per-exam depending on
// context (priority, specialty, doctor roster).
type ClientType string

const (
	ClientTypeCO  ClientType = "CO"
	ClientTypeNC  ClientType = "NC"
	ClientTypeNC1 ClientType = "NC1"
)

func (c ClientType) IsValid() bool {
	switch c {
	case ClientTypeCO, ClientTypeNC, ClientTypeNC1:
		return true
	}
	return false
}

// BillingType is the classification tag: <client type>-FT (billable) or
// <client type>-NF (not billable).
type BillingType string

const (
	BillingCOFT  BillingType = "CO-FT"
	BillingCONF  BillingType = "CO-NF"
	BillingNCFT  BillingType = "NC-FT"
	BillingNCNF  BillingType = "NC-NF"
	BillingNC1FT BillingType = "NC1-FT"
	BillingNC1NF BillingType = "NC1-NF"
)

func (b BillingType) IsValid() bool {
	switch b {
	case BillingCOFT, BillingCONF, BillingNCFT, BillingNCNF, BillingNC1FT, BillingNC1NF:
		return true
	}
	return false
}

// ClientType returns the client-type prefix of the tag ("NC1-FT" → "NC1").
func (b BillingType) ClientType() ClientType {
	if i := strings.LastIndex(string(b), "-"); i > 0 {
		return ClientType(b[:i])
	}
	return ClientType(b)
}

// Billable reports whether the tag carries the -FT suffix.
func (b BillingType) Billable() bool {
	return strings.HasSuffix(string(b), "-FT")
}

// Record is one imaging exam/report line. Rows are mutated in place by every
// rule-engine step and by the splitter (which replaces one row with N), then
// tagged once by the classifier. The computation engine only reads them.
type Record struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time `gorm:"autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	SourceBatchID   string `gorm:"column:arquivo_fonte;type:varchar(120);not null;index"`
	ReferencePeriod string `gorm:"column:periodo_referencia;type:varchar(7);index"` // YYYY-MM

	ClientName  string `gorm:"column:client_name;type:varchar(255);not null;index"`
	PatientName string `gorm:"column:patient_name;type:varchar(255)"`
	PatientCode string `gorm:"column:patient_code;type:varchar(80)"`

	ExamName  string `gorm:"column:exam_name;type:varchar(255);not null"`
	Modality  string `gorm:"column:modality;type:varchar(40);index"`
	Specialty string `gorm:"column:specialty;type:varchar(120)"`
	Category  string `gorm:"column:category;type:varchar(80)"`
	Priority  string `gorm:"column:priority;type:varchar(80)"`

	DoctorName string `gorm:"column:doctor_name;type:varchar(255)"`

	// Quantity is the volume weight of the line. Non-negative; defaulted to 1
	// by the backfill rule once the registry lookup has been attempted.
	Quantity float64 `gorm:"column:quantity;not null;default:0"`

	RealizedAt *time.Time `gorm:"column:realized_at;index"`
	ReportedAt *time.Time `gorm:"column:reported_at;index"`
	DeadlineAt *time.Time `gorm:"column:deadline_at"`

	Status Status `gorm:"column:status;type:varchar(30);not null"`

	// Classification tags. Nil until the classifier runs.
	ClientType  *ClientType  `gorm:"column:client_type;type:varchar(10);index"`
	BillingType *BillingType `gorm:"column:billing_type;type:varchar(12);index"`
}

func (Record) TableName() string {
	return "billing.exam_records"
}

// Classified reports whether both classification tags are set.
func (r *Record) Classified() bool {
	return r.ClientType != nil && r.BillingType != nil
}

// HasMandatoryFields reports whether the row carries the fields every later
// rule depends on. Rows without them are excluded early (rule v004).
func (r *Record) HasMandatoryFields() bool {
	return strings.TrimSpace(r.ClientName) != "" &&
		strings.TrimSpace(r.ExamName) != "" &&
		r.RealizedAt != nil
}

// RejectionReason is the typed cause an input row was refused admission.
type RejectionReason string

const (
	RejectionInvalidStatus    RejectionReason = "status_invalido"
	RejectionExcludedModality RejectionReason = "modalidade_excluida"
)

// Rejection is the audit row persisted for every input line refused at
// ingestion. The pipeline never sees these.
type Rejection struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time `gorm:"autoCreateTime;index"`

	SourceBatchID string          `gorm:"column:arquivo_fonte;type:varchar(120);not null;index"`
	Reason        RejectionReason `gorm:"column:reason;type:varchar(40);not null;index"`

	ClientName string `gorm:"column:client_name;type:varchar(255)"`
	ExamName   string `gorm:"column:exam_name;type:varchar(255)"`
	Status     string `gorm:"column:status;type:varchar(60)"`
}

func (Rejection) TableName() string {
	return "billing.exam_rejections"
}

// RawRow is one line as produced by the external upload/column-mapping UI.
type RawRow struct {
	ClientName  string     `json:"client_name"`
	PatientName string     `json:"patient_name"`
	PatientCode string     `json:"patient_code"`
	ExamName    string     `json:"exam_name"`
	Modality    string     `json:"modality"`
	Specialty   string     `json:"specialty"`
	Category    string     `json:"category"`
	Priority    string     `json:"priority"`
	DoctorName  string     `json:"doctor_name"`
	Quantity    float64    `json:"quantity"`
	RealizedAt  *time.Time `json:"realized_at"`
	ReportedAt  *time.Time `json:"reported_at"`
	DeadlineAt  *time.Time `json:"deadline_at"`
	Status      string     `json:"status"`
}

// ListQuery filters record reads for classification and computation.
type ListQuery struct {
	SourceBatchID   string
	ReferencePeriod string
	ClientName      string
	OnlyClassified  bool
	Offset          int
	Limit           int
}
