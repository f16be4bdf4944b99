package repository

import (
	"context"
	"time"

	"procurement-service/internal/model"

	"gorm.io/gorm/clause"
)

// GetSettings returns nil, nil when the tenant has no settings row yet
func (s *gormStore) GetSettings(ctx context.Context, tenantID uint) (*model.ProcurementSettings, error) {
	defer s.metrics.TrackDBOperation("query")(time.Now())

	var settings model.ProcurementSettings
	res := s.conn(ctx).Where("tenant_id = ?", tenantID).Limit(1).Find(&settings)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &settings, nil
}

// CreateSettingsIfAbsent inserts settings unless the tenant already has a row
func (s *gormStore) CreateSettingsIfAbsent(ctx context.Context, settings *model.ProcurementSettings) error {
	defer s.metrics.TrackDBOperation("insert")(time.Now())

	return s.conn(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "tenant_id"}}, DoNothing: true}).
		Create(settings).Error
}

// SaveSettings replaces the whole row
func (s *gormStore) SaveSettings(ctx context.Context, settings *model.ProcurementSettings) error {
	defer s.metrics.TrackDBOperation("update")(time.Now())
	return s.conn(ctx).Save(settings).Error
}
