package repository

import (
	"context"
	"time"

	"procurement-service/internal/model"

	"github.com/google/uuid"
)

// FindActivePair returns nil, nil when no active pair exists for the scope key
func (s *gormStore) FindActivePair(ctx context.Context, tenantID uint, scope model.PairScope, key uint) (*model.SupplierPair, error) {
	defer s.metrics.TrackDBOperation("query")(time.Now())

	column := "category_id"
	if scope == model.ScopeProduct {
		column = "product_id"
	}

	var pair model.SupplierPair
	res := s.conn(ctx).
		Where("tenant_id = ? AND scope = ? AND is_active = ?", tenantID, scope, true).
		Where(column+" = ?", key).
		Order("updated_at DESC").
		Limit(1).
		Find(&pair)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &pair, nil
}

func (s *gormStore) GetPair(ctx context.Context, tenantID uint, id uuid.UUID) (*model.SupplierPair, error) {
	defer s.metrics.TrackDBOperation("query")(time.Now())

	var pair model.SupplierPair
	if err := s.conn(ctx).Where("id = ? AND tenant_id = ?", id, tenantID).First(&pair).Error; err != nil {
		return nil, translate(err)
	}
	return &pair, nil
}

func (s *gormStore) ListPairs(ctx context.Context, tenantID uint, activeOnly bool) ([]model.SupplierPair, error) {
	defer s.metrics.TrackDBOperation("query")(time.Now())

	query := s.conn(ctx).Where("tenant_id = ?", tenantID)
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}

	var out []model.SupplierPair
	if err := query.Order("created_at ASC, id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *gormStore) CreatePair(ctx context.Context, pair *model.SupplierPair) error {
	defer s.metrics.TrackDBOperation("insert")(time.Now())
	return translate(s.conn(ctx).Create(pair).Error)
}

func (s *gormStore) SavePair(ctx context.Context, pair *model.SupplierPair) error {
	defer s.metrics.TrackDBOperation("update")(time.Now())
	return s.conn(ctx).Save(pair).Error
}
