// Package testutil builds an in-memory store and catalog fixtures for tests.
package testutil

import (
	"fmt"
	"testing"

	"procurement-service/internal/model"
	"procurement-service/internal/repository"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB opens a private in-memory SQLite database with the full schema migrated
func DB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// One connection keeps the shared in-memory database alive and serializes writers.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := repository.Migrate(db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return db
}

// Store returns a repository.Store over a fresh database, plus the raw handle for seeding
func Store(t *testing.T) (repository.Store, *gorm.DB) {
	t.Helper()
	db := DB(t)
	return repository.NewStore(db, nil), db
}

func create(t *testing.T, db *gorm.DB, v interface{}) {
	t.Helper()
	if err := db.Create(v).Error; err != nil {
		t.Fatalf("seed %T: %v", v, err)
	}
}

func SeedTenant(t *testing.T, db *gorm.DB, name string) *model.Tenant {
	t.Helper()
	tenant := &model.Tenant{Name: name, Active: true}
	create(t, db, tenant)
	return tenant
}

func SeedSupplier(t *testing.T, db *gorm.DB, tenantID uint, name string) *model.Supplier {
	t.Helper()
	supplier := &model.Supplier{TenantID: tenantID, Name: name, IsActive: true}
	create(t, db, supplier)
	return supplier
}

func SeedCategory(t *testing.T, db *gorm.DB, tenantID uint, name string) *model.ProductCategory {
	t.Helper()
	category := &model.ProductCategory{TenantID: tenantID, Name: name}
	create(t, db, category)
	return category
}

func SeedBrand(t *testing.T, db *gorm.DB, tenantID uint, name string, categoryID *uint, tier model.BrandTier) *model.Brand {
	t.Helper()
	brand := &model.Brand{TenantID: tenantID, Name: name, CategoryID: categoryID, Tier: tier}
	create(t, db, brand)
	return brand
}

// SeedProduct stores p as given; an empty SKU is filled so the per-tenant SKU index holds
func SeedProduct(t *testing.T, db *gorm.DB, p model.Product) *model.Product {
	t.Helper()
	if p.SKU == "" {
		p.SKU = "SKU-" + uuid.NewString()[:8]
	}
	p.IsActive = true
	create(t, db, &p)
	return &p
}

func SeedCategoryPreference(t *testing.T, db *gorm.DB, tenantID, categoryID, supplierID uint, priority int) {
	t.Helper()
	create(t, db, &model.CategorySupplierPreference{
		TenantID:   tenantID,
		CategoryID: categoryID,
		SupplierID: supplierID,
		Priority:   priority,
	})
}

func SeedBrandMapping(t *testing.T, db *gorm.DB, tenantID, brandID, supplierID uint, priority int) {
	t.Helper()
	create(t, db, &model.BrandSupplierMapping{
		TenantID:   tenantID,
		BrandID:    brandID,
		SupplierID: supplierID,
		Priority:   priority,
		IsActive:   true,
	})
}

// Ptr returns a pointer to v
func Ptr[T any](v T) *T {
	return &v
}
