package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PairScope is what a supplier pair is keyed on
type PairScope string

const (
	ScopeCategory PairScope = "category"
	ScopeProduct  PairScope = "product"
)

// Valid reports whether s is a known scope
func (s PairScope) Valid() bool {
	return s == ScopeCategory || s == ScopeProduct
}

// PairStrategy hints how the pair should be compared
type PairStrategy string

const (
	StrategyCheapest PairStrategy = "cheapest"
	StrategyQuality  PairStrategy = "quality"
	StrategyBalanced PairStrategy = "balanced"
)

// Valid reports whether s is a known strategy
func (s PairStrategy) Valid() bool {
	switch s {
	case StrategyCheapest, StrategyQuality, StrategyBalanced:
		return true
	}
	return false
}

// SupplierPair configures the two suppliers contacted for a category or a product.
// At most one active pair exists per (tenant, scope, scope key); writers serialize on that key.
type SupplierPair struct {
	ID          uuid.UUID    `json:"id" gorm:"type:uuid;primaryKey"`
	TenantID    uint         `json:"tenant_id" gorm:"index;not null"`
	Scope       PairScope    `json:"scope" gorm:"type:varchar(16);not null"`
	CategoryID  *uint        `json:"category_id,omitempty" gorm:"index"`
	ProductID   *uint        `json:"product_id,omitempty" gorm:"index"`
	SupplierAID uint         `json:"supplier_a_id" gorm:"not null"`
	SupplierBID uint         `json:"supplier_b_id" gorm:"not null"`
	Strategy    PairStrategy `json:"strategy" gorm:"type:varchar(16);not null"`
	IsActive    bool         `json:"is_active" gorm:"not null"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// BeforeCreate assigns an id when the caller did not
func (p *SupplierPair) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// ScopeKey returns the category or product id the pair is keyed on
func (p *SupplierPair) ScopeKey() uint {
	if p.Scope == ScopeProduct && p.ProductID != nil {
		return *p.ProductID
	}
	if p.CategoryID != nil {
		return *p.CategoryID
	}
	return 0
}
