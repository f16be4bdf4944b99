package repository

import (
	"context"
	"time"

	"procurement-service/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateConversationIfAbsent relies on ux_conversation_request_supplier: the insert is a
// no-op when the pair already exists, so concurrent callers cannot both create one.
func (s *gormStore) CreateConversationIfAbsent(ctx context.Context, conv *model.ProcurementConversation) (bool, error) {
	defer s.metrics.TrackDBOperation("insert")(time.Now())

	res := s.conn(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "procurement_request_id"}, {Name: "supplier_id"}},
			DoNothing: true,
		}).
		Create(conv)
	if res.Error != nil {
		if err := translate(res.Error); err == ErrDuplicate {
			return false, nil
		}
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *gormStore) GetConversation(ctx context.Context, id uuid.UUID) (*model.ProcurementConversation, error) {
	defer s.metrics.TrackDBOperation("query")(time.Now())

	var conv model.ProcurementConversation
	if err := s.conn(ctx).Where("id = ?", id).First(&conv).Error; err != nil {
		return nil, translate(err)
	}
	return &conv, nil
}

func (s *gormStore) GetConversationByPair(ctx context.Context, requestID uuid.UUID, supplierID uint) (*model.ProcurementConversation, error) {
	defer s.metrics.TrackDBOperation("query")(time.Now())

	var conv model.ProcurementConversation
	err := s.conn(ctx).
		Where("procurement_request_id = ? AND supplier_id = ?", requestID, supplierID).
		First(&conv).Error
	if err != nil {
		return nil, translate(err)
	}
	return &conv, nil
}

func (s *gormStore) ListConversations(ctx context.Context, requestID uuid.UUID) ([]model.ProcurementConversation, error) {
	defer s.metrics.TrackDBOperation("query")(time.Now())

	var out []model.ProcurementConversation
	err := s.conn(ctx).
		Where("procurement_request_id = ?", requestID).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *gormStore) UpdateConversationFields(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	defer s.metrics.TrackDBOperation("update")(time.Now())

	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	res := s.conn(ctx).Model(&model.ProcurementConversation{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *gormStore) CreateMessage(ctx context.Context, msg *model.ProcurementMessage) error {
	defer s.metrics.TrackDBOperation("insert")(time.Now())
	return translate(s.conn(ctx).Create(msg).Error)
}

func (s *gormStore) GetMessage(ctx context.Context, id uuid.UUID) (*model.ProcurementMessage, error) {
	defer s.metrics.TrackDBOperation("query")(time.Now())

	var msg model.ProcurementMessage
	if err := s.conn(ctx).Where("id = ?", id).First(&msg).Error; err != nil {
		return nil, translate(err)
	}
	return &msg, nil
}

func (s *gormStore) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]model.ProcurementMessage, error) {
	defer s.metrics.TrackDBOperation("query")(time.Now())

	var out []model.ProcurementMessage
	err := s.conn(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *gormStore) CountMessages(ctx context.Context, conversationID uuid.UUID, direction model.MessageDirection) (int64, error) {
	defer s.metrics.TrackDBOperation("query")(time.Now())

	var count int64
	err := s.conn(ctx).Model(&model.ProcurementMessage{}).
		Where("conversation_id = ? AND direction = ?", conversationID, direction).
		Count(&count).Error
	return count, err
}

func (s *gormStore) ListQueuedOutgoing(ctx context.Context, limit int) ([]model.ProcurementMessage, error) {
	defer s.metrics.TrackDBOperation("query")(time.Now())

	if limit <= 0 {
		limit = 50
	}
	var out []model.ProcurementMessage
	err := s.conn(ctx).
		Where("direction = ? AND status = ?", model.DirectionOutgoing, model.MessageQueued).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *gormStore) ClaimQueuedOutgoing(ctx context.Context, limit int, staleBefore time.Time) ([]model.ProcurementMessage, error) {
	defer s.metrics.TrackDBOperation("update")(time.Now())

	if limit <= 0 {
		limit = 50
	}
	var out []model.ProcurementMessage
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("direction = ? AND (status = ? OR (status = ? AND updated_at < ?))",
				model.DirectionOutgoing, model.MessageQueued, model.MessageSending, staleBefore).
			Order("created_at ASC, id ASC").
			Limit(limit).
			Find(&out).Error
		if err != nil || len(out) == 0 {
			return err
		}

		now := time.Now()
		ids := make([]uuid.UUID, len(out))
		for i := range out {
			ids[i] = out[i].ID
			out[i].Status = model.MessageSending
			out[i].UpdatedAt = now
		}
		return tx.Model(&model.ProcurementMessage{}).
			Where("id IN ?", ids).
			Updates(map[string]interface{}{"status": model.MessageSending, "updated_at": now}).Error
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *gormStore) UpdateMessageStatus(ctx context.Context, id uuid.UUID, from model.MessageStatus, updates map[string]interface{}) (bool, error) {
	defer s.metrics.TrackDBOperation("update")(time.Now())

	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	res := s.conn(ctx).Model(&model.ProcurementMessage{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
