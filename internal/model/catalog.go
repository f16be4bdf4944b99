package model

import (
	"time"

	"gorm.io/gorm"
)

// Tenant is the business account every other row is scoped to
type Tenant struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	Name      string         `json:"name" gorm:"type:varchar(100);not null"`
	Active    bool           `json:"active" gorm:"not null"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// Product represents the product master data
type Product struct {
	ID                  uint           `json:"id" gorm:"primarykey"`
	TenantID            uint           `json:"tenant_id" gorm:"index;not null;uniqueIndex:idx_product_tenant_sku,priority:1"`
	Name                string         `json:"name" gorm:"type:varchar(255);not null"`
	SKU                 string         `json:"sku" gorm:"type:varchar(100);uniqueIndex:idx_product_tenant_sku,priority:2"`
	Stock               int            `json:"stock" gorm:"default:0"`
	LowStockThreshold   int            `json:"low_stock_threshold" gorm:"default:0"`
	CategoryID          *uint          `json:"category_id,omitempty" gorm:"index"`
	BrandID             *uint          `json:"brand_id,omitempty" gorm:"index"`
	PreferredSupplierID *uint          `json:"preferred_supplier_id,omitempty"`
	IsActive            bool           `json:"is_active" gorm:"not null"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
	DeletedAt           gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// IsLowStock reports whether the product has a threshold and is at or below it
func (p *Product) IsLowStock() bool {
	return p.LowStockThreshold > 0 && p.Stock <= p.LowStockThreshold
}

// ProductCategory represents product categories
type ProductCategory struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	TenantID  uint           `json:"tenant_id" gorm:"index;not null"`
	Name      string         `json:"name" gorm:"type:varchar(100);not null"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// BrandTier ranks brands, A being the most preferred
type BrandTier string

const (
	BrandTierA BrandTier = "A"
	BrandTierB BrandTier = "B"
	BrandTierC BrandTier = "C"
)

// BrandTiers lists tiers in preference order
var BrandTiers = []BrandTier{BrandTierA, BrandTierB, BrandTierC}

// Brand is a product brand classified into a tier within a category
type Brand struct {
	ID         uint           `json:"id" gorm:"primarykey"`
	TenantID   uint           `json:"tenant_id" gorm:"index;not null"`
	Name       string         `json:"name" gorm:"type:varchar(100);not null"`
	CategoryID *uint          `json:"category_id,omitempty" gorm:"index"`
	Tier       BrandTier      `json:"tier" gorm:"type:varchar(1);default:'C'"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// Supplier represents the supplier model stored in the database
type Supplier struct {
	ID            uint           `json:"id" gorm:"primaryKey"`
	TenantID      uint           `json:"tenant_id" gorm:"index;not null"`
	Name          string         `json:"name" gorm:"type:varchar(100);index;not null"`
	ContactPerson string         `json:"contact_person" gorm:"type:varchar(100)"`
	Email         string         `json:"email" gorm:"type:varchar(100)"`
	Phone         string         `json:"phone" gorm:"type:varchar(20)"`
	IsActive      bool           `json:"is_active" gorm:"not null"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// CategorySupplierPreference ranks suppliers for a category; lower priority wins
type CategorySupplierPreference struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	TenantID   uint      `json:"tenant_id" gorm:"index:idx_category_pref,priority:1;not null"`
	CategoryID uint      `json:"category_id" gorm:"index:idx_category_pref,priority:2;not null"`
	SupplierID uint      `json:"supplier_id" gorm:"not null"`
	Priority   int       `json:"priority" gorm:"default:0"`
	CreatedAt  time.Time `json:"created_at"`
}

// BrandSupplierMapping links a brand to a supplier; lower priority wins
type BrandSupplierMapping struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	TenantID   uint      `json:"tenant_id" gorm:"index:idx_brand_mapping,priority:1;not null"`
	BrandID    uint      `json:"brand_id" gorm:"index:idx_brand_mapping,priority:2;not null"`
	SupplierID uint      `json:"supplier_id" gorm:"not null"`
	Priority   int       `json:"priority" gorm:"default:0"`
	IsActive   bool      `json:"is_active" gorm:"not null"`
	CreatedAt  time.Time `json:"created_at"`
}
