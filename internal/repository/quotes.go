package repository

import (
	"context"
	"time"

	"procurement-service/internal/model"

	"github.com/google/uuid"
)

func (s *gormStore) CreateQuote(ctx context.Context, quote *model.SupplierQuote) error {
	defer s.metrics.TrackDBOperation("insert")(time.Now())
	return translate(s.conn(ctx).Create(quote).Error)
}

func (s *gormStore) GetQuote(ctx context.Context, id uuid.UUID) (*model.SupplierQuote, error) {
	defer s.metrics.TrackDBOperation("query")(time.Now())

	var quote model.SupplierQuote
	if err := s.conn(ctx).Where("id = ?", id).First(&quote).Error; err != nil {
		return nil, translate(err)
	}
	return &quote, nil
}

// ListQuotes returns the request's quotes in submission order
func (s *gormStore) ListQuotes(ctx context.Context, requestID uuid.UUID) ([]model.SupplierQuote, error) {
	defer s.metrics.TrackDBOperation("query")(time.Now())

	var out []model.SupplierQuote
	err := s.conn(ctx).
		Where("procurement_request_id = ?", requestID).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *gormStore) UpdateQuoteScores(ctx context.Context, scores map[uuid.UUID]float64) error {
	defer s.metrics.TrackDBOperation("update")(time.Now())

	now := time.Now()
	for id, score := range scores {
		err := s.conn(ctx).Model(&model.SupplierQuote{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{"score": score, "updated_at": now}).Error
		if err != nil {
			return err
		}
	}
	return nil
}

// SupplierHistory counts, per supplier, the quotes that were recommended on requests
// that have since closed, and how many of those closed as fulfilled.
func (s *gormStore) SupplierHistory(ctx context.Context, tenantID uint, supplierIDs []uint, excludeRequestID uuid.UUID) (map[uint]SupplierHistory, error) {
	defer s.metrics.TrackDBOperation("query")(time.Now())

	out := make(map[uint]SupplierHistory, len(supplierIDs))
	if len(supplierIDs) == 0 {
		return out, nil
	}

	fulfilled := []model.RequestStatus{model.StatusOrderedExternal, model.StatusOrdered, model.StatusResolvedExternal}

	var rows []SupplierHistory
	err := s.conn(ctx).
		Table("supplier_quotes AS q").
		Select("q.supplier_id AS supplier_id, COUNT(*) AS total, "+
			"SUM(CASE WHEN r.status IN ? THEN 1 ELSE 0 END) AS finalized", fulfilled).
		Joins("JOIN procurement_requests AS r ON r.recommended_quote_id = q.id").
		Where("r.tenant_id = ? AND q.supplier_id IN ? AND r.status IN ? AND r.id <> ?",
			tenantID, supplierIDs, model.TerminalStatuses, excludeRequestID).
		Group("q.supplier_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.SupplierID] = row
	}
	return out, nil
}
