package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// ScoringWeights are the coefficients of the four quote score components.
// They should sum to 1.0 but nothing enforces it.
type ScoringWeights struct {
	Price            float64 `json:"price"`
	Delivery         float64 `json:"delivery"`
	SupplierPriority float64 `json:"supplier_priority"`
	Reliability      float64 `json:"reliability"`
}

// DefaultScoringWeights is used for tenants that never configured weights
var DefaultScoringWeights = ScoringWeights{
	Price:            0.4,
	Delivery:         0.3,
	SupplierPriority: 0.2,
	Reliability:      0.1,
}

// ProcurementSettings is the per-tenant procurement configuration
type ProcurementSettings struct {
	TenantID           uint                               `json:"tenant_id" gorm:"primaryKey;autoIncrement:false"`
	ApprovalRequired   bool                               `json:"approval_required" gorm:"not null"`
	MaxAutoOrderAmount decimal.NullDecimal                `json:"max_auto_order_amount" gorm:"type:numeric(12,2)"`
	ScoringWeights     datatypes.JSONType[ScoringWeights] `json:"scoring_weights"`
	DefaultUrgency     Urgency                            `json:"default_urgency" gorm:"type:varchar(16);not null"`
	CreatedAt          time.Time                          `json:"created_at"`
	UpdatedAt          time.Time                          `json:"updated_at"`
}

// Weights returns the decoded scoring weights
func (s *ProcurementSettings) Weights() ScoringWeights {
	return s.ScoringWeights.Data()
}
