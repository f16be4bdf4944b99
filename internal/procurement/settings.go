package procurement

import (
	"context"
	"fmt"

	"procurement-service/internal/model"
	"procurement-service/internal/repository"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// SettingsInput replaces a tenant's settings row as a whole
type SettingsInput struct {
	ApprovalRequired   bool                 `json:"approval_required"`
	MaxAutoOrderAmount *decimal.Decimal     `json:"max_auto_order_amount"`
	ScoringWeights     model.ScoringWeights `json:"scoring_weights"`
	DefaultUrgency     model.Urgency        `json:"default_urgency"`
}

// Validate rejects negative weights, an unknown urgency and a negative ceiling
func (in SettingsInput) Validate() error {
	w := in.ScoringWeights
	if w.Price < 0 || w.Delivery < 0 || w.SupplierPriority < 0 || w.Reliability < 0 {
		return validationErr("scoring weights must be non-negative")
	}
	if !in.DefaultUrgency.Valid() {
		return validationErr("default_urgency must be one of low, normal, high")
	}
	if in.MaxAutoOrderAmount != nil && in.MaxAutoOrderAmount.IsNegative() {
		return validationErr("max_auto_order_amount must not be negative")
	}
	return nil
}

func (s *Service) defaultSettings(tenantID uint) *model.ProcurementSettings {
	w := s.defaults.Weights
	return &model.ProcurementSettings{
		TenantID: tenantID,
		ScoringWeights: datatypes.NewJSONType(model.ScoringWeights{
			Price:            w.Price,
			Delivery:         w.Delivery,
			SupplierPriority: w.SupplierPriority,
			Reliability:      w.Reliability,
		}),
		DefaultUrgency: model.Urgency(s.defaults.DefaultUrgency),
	}
}

// settingsFor reads the tenant's settings, creating the default row on first use
func (s *Service) settingsFor(ctx context.Context, store repository.SettingsStore, tenantID uint) (*model.ProcurementSettings, error) {
	settings, err := store.GetSettings(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	if settings != nil {
		return settings, nil
	}

	if err := store.CreateSettingsIfAbsent(ctx, s.defaultSettings(tenantID)); err != nil {
		return nil, fmt.Errorf("provision settings: %w", err)
	}
	// Re-read so a concurrent provisioner's row wins consistently
	settings, err = store.GetSettings(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	if settings == nil {
		return nil, fmt.Errorf("settings for tenant %d missing after provisioning", tenantID)
	}
	s.log.Info("Provisioned default procurement settings", zap.Uint("tenant_id", tenantID))
	return settings, nil
}

// GetSettings returns the tenant's settings, auto-provisioning defaults when absent
func (s *Service) GetSettings(ctx context.Context, tenantID uint) (settings *model.ProcurementSettings, err error) {
	ctx, span := s.startSpan(ctx, "GetSettings", attribute.Int64("tenant_id", int64(tenantID)))
	defer endSpan(span, &err)

	return s.settingsFor(ctx, s.store, tenantID)
}

// UpdateSettings replaces the tenant's settings. Concurrent writers: last one wins.
func (s *Service) UpdateSettings(ctx context.Context, tenantID uint, in SettingsInput) (settings *model.ProcurementSettings, err error) {
	ctx, span := s.startSpan(ctx, "UpdateSettings", attribute.Int64("tenant_id", int64(tenantID)))
	defer endSpan(span, &err)

	if err := in.Validate(); err != nil {
		return nil, err
	}

	settings, err = s.settingsFor(ctx, s.store, tenantID)
	if err != nil {
		return nil, err
	}

	settings.ApprovalRequired = in.ApprovalRequired
	settings.MaxAutoOrderAmount = decimal.NullDecimal{}
	if in.MaxAutoOrderAmount != nil {
		settings.MaxAutoOrderAmount = decimal.NewNullDecimal(*in.MaxAutoOrderAmount)
	}
	settings.ScoringWeights = datatypes.NewJSONType(in.ScoringWeights)
	settings.DefaultUrgency = in.DefaultUrgency

	if err := s.store.SaveSettings(ctx, settings); err != nil {
		return nil, fmt.Errorf("save settings: %w", err)
	}

	s.log.Info("Procurement settings updated",
		zap.Uint("tenant_id", tenantID),
		zap.Bool("approval_required", in.ApprovalRequired),
		zap.Float64("weight_price", in.ScoringWeights.Price),
		zap.Float64("weight_delivery", in.ScoringWeights.Delivery),
		zap.Float64("weight_supplier_priority", in.ScoringWeights.SupplierPriority),
		zap.Float64("weight_reliability", in.ScoringWeights.Reliability))
	return settings, nil
}
