package repository

import (
	"fmt"
	"strings"

	"procurement-service/internal/model"
	"procurement-service/pkg/database"

	"gorm.io/gorm"
)

// Models lists every table owned by the service
func Models() []interface{} {
	return []interface{}{
		&model.Tenant{},
		&model.Product{},
		&model.ProductCategory{},
		&model.Brand{},
		&model.Supplier{},
		&model.CategorySupplierPreference{},
		&model.BrandSupplierMapping{},
		&model.ProcurementSettings{},
		&model.SupplierPair{},
		&model.ProcurementRequest{},
		&model.ProcurementConversation{},
		&model.ProcurementMessage{},
		&model.SupplierQuote{},
	}
}

// Migrate creates the schema plus the partial unique index that keeps one open
// request per (tenant, product). Both Postgres and SQLite accept the statement.
func Migrate(db *gorm.DB) error {
	if err := database.MigrateModels(db, Models()...); err != nil {
		return err
	}

	open := make([]string, 0, len(model.OpenStatuses))
	for _, s := range model.OpenStatuses {
		open = append(open, "'"+string(s)+"'")
	}
	stmt := fmt.Sprintf(
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_procurement_requests_open ON procurement_requests (tenant_id, product_id) WHERE status IN (%s)",
		strings.Join(open, ", "),
	)
	if err := db.Exec(stmt).Error; err != nil {
		return fmt.Errorf("create open request index: %w", err)
	}
	return nil
}
