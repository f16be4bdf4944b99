package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// RequestStatus is the lifecycle status of a procurement request
type RequestStatus string

const (
	StatusDraft              RequestStatus = "draft"
	StatusInProgress         RequestStatus = "in_progress"
	StatusWaitingForQuotes   RequestStatus = "waiting_for_quotes"
	StatusQuotesReceived     RequestStatus = "quotes_received"
	StatusWaitingForApproval RequestStatus = "waiting_for_approval"
	StatusRecommended        RequestStatus = "recommended"

	StatusOrderedExternal  RequestStatus = "ordered_external"
	StatusResolvedExternal RequestStatus = "resolved_external"
	StatusCancelled        RequestStatus = "cancelled"
	// StatusOrdered is the legacy spelling of StatusOrderedExternal. It is read, never written.
	StatusOrdered RequestStatus = "ordered"
)

// OpenStatuses are the statuses of a request that still needs work
var OpenStatuses = []RequestStatus{
	StatusDraft,
	StatusInProgress,
	StatusWaitingForQuotes,
	StatusQuotesReceived,
	StatusWaitingForApproval,
	StatusRecommended,
}

// TerminalStatuses end the lifecycle
var TerminalStatuses = []RequestStatus{
	StatusOrderedExternal,
	StatusResolvedExternal,
	StatusCancelled,
	StatusOrdered,
}

// IsOpen reports whether s is in the open set
func (s RequestStatus) IsOpen() bool {
	for _, open := range OpenStatuses {
		if s == open {
			return true
		}
	}
	return false
}

// IsTerminal reports whether s is in the terminal set
func (s RequestStatus) IsTerminal() bool {
	for _, terminal := range TerminalStatuses {
		if s == terminal {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known status
func (s RequestStatus) Valid() bool {
	return s.IsOpen() || s.IsTerminal()
}

// Canonical maps legacy spellings onto the status new code writes
func (s RequestStatus) Canonical() RequestStatus {
	if s == StatusOrdered {
		return StatusOrderedExternal
	}
	return s
}

// TriggerType records why a request was opened
type TriggerType string

const (
	TriggerOutOfStock     TriggerType = "out_of_stock"
	TriggerBelowThreshold TriggerType = "below_threshold"
	TriggerManual         TriggerType = "manual"
)

// Valid reports whether t is a known trigger
func (t TriggerType) Valid() bool {
	switch t {
	case TriggerOutOfStock, TriggerBelowThreshold, TriggerManual:
		return true
	}
	return false
}

// Urgency of a procurement request
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyNormal Urgency = "normal"
	UrgencyHigh   Urgency = "high"
)

// Valid reports whether u is a known urgency
func (u Urgency) Valid() bool {
	switch u {
	case UrgencyLow, UrgencyNormal, UrgencyHigh:
		return true
	}
	return false
}

// ProcurementRequest is one restock need for one product
type ProcurementRequest struct {
	ID                 uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	TenantID           uint           `json:"tenant_id" gorm:"index:idx_request_tenant_product,priority:1;not null"`
	ProductID          uint           `json:"product_id" gorm:"index:idx_request_tenant_product,priority:2;not null"`
	RequestedQuantity  int            `json:"requested_quantity" gorm:"not null"`
	TriggerType        TriggerType    `json:"trigger_type" gorm:"type:varchar(32);not null"`
	Urgency            Urgency        `json:"urgency" gorm:"type:varchar(16);not null"`
	Status             RequestStatus  `json:"status" gorm:"type:varchar(32);index;not null"`
	Notes              *string        `json:"notes,omitempty" gorm:"type:text"`
	RecommendedQuoteID *uuid.UUID     `json:"recommended_quote_id,omitempty" gorm:"type:uuid"`
	SupplierPairID     *uuid.UUID     `json:"supplier_pair_id,omitempty" gorm:"type:uuid"`
	SupplierPairSource *PairScope     `json:"supplier_pair_source,omitempty" gorm:"type:varchar(16)"`
	SelectionRationale datatypes.JSON `json:"selection_rationale,omitempty"`
	CreatedBy          string         `json:"created_by" gorm:"type:varchar(100)"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// BeforeCreate assigns an id when the caller did not
func (r *ProcurementRequest) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
