package repository

import (
	"context"
	"time"

	"procurement-service/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm/clause"
)

func (s *gormStore) CreateRequest(ctx context.Context, req *model.ProcurementRequest) error {
	defer s.metrics.TrackDBOperation("insert")(time.Now())
	return translate(s.conn(ctx).Create(req).Error)
}

func (s *gormStore) GetRequest(ctx context.Context, id uuid.UUID) (*model.ProcurementRequest, error) {
	defer s.metrics.TrackDBOperation("query")(time.Now())

	var req model.ProcurementRequest
	if err := s.conn(ctx).Where("id = ?", id).First(&req).Error; err != nil {
		return nil, translate(err)
	}
	return &req, nil
}

func (s *gormStore) LockRequest(ctx context.Context, id uuid.UUID) (*model.ProcurementRequest, error) {
	defer s.metrics.TrackDBOperation("query")(time.Now())

	var req model.ProcurementRequest
	err := s.conn(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&req).Error
	if err != nil {
		return nil, translate(err)
	}
	return &req, nil
}

// FindOpenRequest returns nil, nil when the product has no open request
func (s *gormStore) FindOpenRequest(ctx context.Context, tenantID, productID uint) (*model.ProcurementRequest, error) {
	defer s.metrics.TrackDBOperation("query")(time.Now())

	var req model.ProcurementRequest
	err := s.conn(ctx).
		Where("tenant_id = ? AND product_id = ? AND status IN ?", tenantID, productID, model.OpenStatuses).
		Order("created_at ASC").
		Limit(1).
		Find(&req).Error
	if err != nil {
		return nil, err
	}
	if req.ID == uuid.Nil {
		return nil, nil
	}
	return &req, nil
}

func (s *gormStore) ListRequests(ctx context.Context, tenantID uint, filter RequestFilter) ([]model.ProcurementRequest, int64, error) {
	defer s.metrics.TrackDBOperation("query")(time.Now())

	query := s.conn(ctx).Model(&model.ProcurementRequest{}).Where("tenant_id = ?", tenantID)
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}
	if filter.ProductID != nil {
		query = query.Where("product_id = ?", *filter.ProductID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var out []model.ProcurementRequest
	err := query.
		Order("created_at DESC, id ASC").
		Limit(limit).
		Offset(filter.Offset).
		Find(&out).Error
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (s *gormStore) TransitionRequest(ctx context.Context, id uuid.UUID, from []model.RequestStatus, to model.RequestStatus, extra map[string]interface{}) (bool, error) {
	defer s.metrics.TrackDBOperation("update")(time.Now())

	updates := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now(),
	}
	for k, v := range extra {
		updates[k] = v
	}

	q := s.conn(ctx).Model(&model.ProcurementRequest{}).Where("id = ?", id)
	if len(from) == 1 {
		q = q.Where("status = ?", from[0])
	} else if len(from) > 1 {
		q = q.Where("status IN ?", from)
	}

	res := q.Updates(updates)
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *gormStore) UpdateRequestFields(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	defer s.metrics.TrackDBOperation("update")(time.Now())

	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	res := s.conn(ctx).Model(&model.ProcurementRequest{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
