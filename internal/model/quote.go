package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// QuoteSource says how a quote entered the system
type QuoteSource string

const (
	QuoteManual    QuoteSource = "manual"
	QuoteAutomated QuoteSource = "automated"
)

// Valid reports whether s is a known source
func (s QuoteSource) Valid() bool {
	return s == QuoteManual || s == QuoteAutomated
}

// SupplierQuote is one supplier's answer to a procurement request
type SupplierQuote struct {
	ID                   uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey"`
	ProcurementRequestID uuid.UUID       `json:"procurement_request_id" gorm:"type:uuid;index;not null"`
	SupplierID           uint            `json:"supplier_id" gorm:"not null"`
	PricePerUnit         decimal.Decimal `json:"price_per_unit" gorm:"type:numeric(12,2);not null"`
	Available            bool            `json:"available" gorm:"not null"`
	DeliveryDays         *int            `json:"delivery_days,omitempty"`
	Currency             string          `json:"currency" gorm:"type:varchar(3);not null"`
	Source               QuoteSource     `json:"source" gorm:"type:varchar(16);not null"`
	Score                *float64        `json:"score,omitempty"`
	RawMessage           *string         `json:"raw_message,omitempty" gorm:"type:text"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// BeforeCreate assigns an id when the caller did not
func (q *SupplierQuote) BeforeCreate(tx *gorm.DB) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	return nil
}
