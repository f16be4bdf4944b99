package repository

import (
	"context"
	"time"

	"procurement-service/internal/model"
)

func (s *gormStore) GetTenant(ctx context.Context, tenantID uint) (*model.Tenant, error) {
	defer s.metrics.TrackDBOperation("query")(time.Now())

	var tenant model.Tenant
	if err := s.conn(ctx).Where("id = ?", tenantID).First(&tenant).Error; err != nil {
		return nil, translate(err)
	}
	return &tenant, nil
}

func (s *gormStore) ListActiveTenants(ctx context.Context) ([]model.Tenant, error) {
	defer s.metrics.TrackDBOperation("query")(time.Now())

	var tenants []model.Tenant
	if err := s.conn(ctx).Where("active = ?", true).Order("id ASC").Find(&tenants).Error; err != nil {
		return nil, err
	}
	return tenants, nil
}

func (s *gormStore) GetProduct(ctx context.Context, tenantID, productID uint) (*model.Product, error) {
	defer s.metrics.TrackDBOperation("query")(time.Now())

	var product model.Product
	if err := s.conn(ctx).Where("id = ? AND tenant_id = ?", productID, tenantID).First(&product).Error; err != nil {
		return nil, translate(err)
	}
	return &product, nil
}

func (s *gormStore) ListLowStockProducts(ctx context.Context, tenantID uint) ([]model.Product, error) {
	defer s.metrics.TrackDBOperation("query")(time.Now())

	var products []model.Product
	err := s.conn(ctx).
		Where("tenant_id = ? AND is_active = ?", tenantID, true).
		Where("low_stock_threshold > 0 AND stock <= low_stock_threshold").
		Order("id ASC").
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	return products, nil
}

func (s *gormStore) GetBrand(ctx context.Context, tenantID, brandID uint) (*model.Brand, error) {
	defer s.metrics.TrackDBOperation("query")(time.Now())

	var brand model.Brand
	if err := s.conn(ctx).Where("id = ? AND tenant_id = ?", brandID, tenantID).First(&brand).Error; err != nil {
		return nil, translate(err)
	}
	return &brand, nil
}

func (s *gormStore) ListCategoryPreferences(ctx context.Context, tenantID, categoryID uint) ([]model.CategorySupplierPreference, error) {
	defer s.metrics.TrackDBOperation("query")(time.Now())

	var prefs []model.CategorySupplierPreference
	err := s.conn(ctx).
		Where("tenant_id = ? AND category_id = ?", tenantID, categoryID).
		Order("priority ASC, id ASC").
		Find(&prefs).Error
	if err != nil {
		return nil, err
	}
	return prefs, nil
}

func (s *gormStore) ListBrandMappings(ctx context.Context, tenantID, brandID uint) ([]model.BrandSupplierMapping, error) {
	defer s.metrics.TrackDBOperation("query")(time.Now())

	var mappings []model.BrandSupplierMapping
	err := s.conn(ctx).
		Where("tenant_id = ? AND brand_id = ? AND is_active = ?", tenantID, brandID, true).
		Order("priority ASC, id ASC").
		Find(&mappings).Error
	if err != nil {
		return nil, err
	}
	return mappings, nil
}

func (s *gormStore) ListCategoryBrandCandidates(ctx context.Context, tenantID, categoryID uint) ([]BrandCandidate, error) {
	defer s.metrics.TrackDBOperation("query")(time.Now())

	var out []BrandCandidate
	err := s.conn(ctx).
		Table("brand_supplier_mappings AS m").
		Select("b.id AS brand_id, b.name AS brand_name, b.tier AS tier, m.supplier_id AS supplier_id, m.priority AS priority").
		Joins("JOIN brands AS b ON b.id = m.brand_id AND b.tenant_id = m.tenant_id AND b.deleted_at IS NULL").
		Where("m.tenant_id = ? AND m.is_active = ? AND b.category_id = ?", tenantID, true, categoryID).
		Order("m.priority ASC, m.id ASC").
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
