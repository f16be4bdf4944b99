package procurement

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"procurement-service/internal/model"
	"procurement-service/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ListConversations returns the request's supplier conversations
func (s *Service) ListConversations(ctx context.Context, tenantID uint, requestID uuid.UUID) ([]model.ProcurementConversation, error) {
	if _, err := loadRequest(ctx, s.store, tenantID, requestID); err != nil {
		return nil, err
	}
	convs, err := s.store.ListConversations(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return convs, nil
}

func (s *Service) loadConversation(ctx context.Context, tenantID uint, id uuid.UUID) (*model.ProcurementConversation, error) {
	conv, err := s.store.GetConversation(ctx, id)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && conv.TenantID != tenantID) {
		return nil, notFoundErr("conversation", nil)
	}
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	return conv, nil
}

// ListMessages returns a conversation's messages oldest first
func (s *Service) ListMessages(ctx context.Context, tenantID uint, conversationID uuid.UUID) ([]model.ProcurementMessage, error) {
	if _, err := s.loadConversation(ctx, tenantID, conversationID); err != nil {
		return nil, err
	}
	msgs, err := s.store.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

// RecordIncoming appends a supplier reply and stamps last_incoming_at
func (s *Service) RecordIncoming(ctx context.Context, tenantID uint, conversationID uuid.UUID, text string, providerMessageID *string) (*model.ProcurementMessage, error) {
	return s.appendMessage(ctx, tenantID, conversationID, model.DirectionIncoming, text, providerMessageID)
}

// SendMessage queues an outgoing message written by a person, typically after a takeover
func (s *Service) SendMessage(ctx context.Context, tenantID uint, conversationID uuid.UUID, text string) (*model.ProcurementMessage, error) {
	return s.appendMessage(ctx, tenantID, conversationID, model.DirectionOutgoing, text, nil)
}

func (s *Service) appendMessage(ctx context.Context, tenantID uint, conversationID uuid.UUID, direction model.MessageDirection, text string, providerMessageID *string) (*model.ProcurementMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, validationErr("text is required")
	}
	conv, err := s.loadConversation(ctx, tenantID, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.Status == model.ConversationClosed {
		return nil, invariantErr("conversation is closed")
	}

	msg := &model.ProcurementMessage{
		ConversationID:    conv.ID,
		Direction:         direction,
		Text:              text,
		Status:            model.MessageQueued,
		ProviderMessageID: providerMessageID,
	}
	stamp := "last_outgoing_at"
	if direction == model.DirectionIncoming {
		msg.Status = model.MessageSent
		stamp = "last_incoming_at"
	}
	if err := s.store.CreateMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	if err := s.store.UpdateConversationFields(ctx, conv.ID, map[string]interface{}{stamp: s.now()}); err != nil {
		s.log.Warn("Failed to stamp conversation", zap.String("conversation_id", conv.ID.String()), zap.Error(err))
	}
	if direction == model.DirectionOutgoing {
		s.metrics.RecordOutreach(0, 0, 1)
	}

	s.log.Info("Conversation message recorded",
		zap.Uint("tenant_id", tenantID),
		zap.String("conversation_id", conv.ID.String()),
		zap.String("direction", string(direction)))
	return msg, nil
}

// SetMode switches a conversation between bot and human
func (s *Service) SetMode(ctx context.Context, tenantID uint, conversationID uuid.UUID, mode model.ConversationMode) (*model.ProcurementConversation, error) {
	if !mode.Valid() {
		return nil, validationErr("mode must be bot or human")
	}
	conv, err := s.loadConversation(ctx, tenantID, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.Mode == mode {
		return conv, nil
	}
	if err := s.store.UpdateConversationFields(ctx, conv.ID, map[string]interface{}{"mode": mode}); err != nil {
		return nil, fmt.Errorf("set mode: %w", err)
	}
	s.log.Info("Conversation mode changed",
		zap.Uint("tenant_id", tenantID),
		zap.String("conversation_id", conv.ID.String()),
		zap.String("from", string(conv.Mode)),
		zap.String("to", string(mode)))
	conv.Mode = mode
	return conv, nil
}

// CloseConversation marks a conversation closed. Closing twice is a no-op.
func (s *Service) CloseConversation(ctx context.Context, tenantID uint, conversationID uuid.UUID) (*model.ProcurementConversation, error) {
	conv, err := s.loadConversation(ctx, tenantID, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.Status == model.ConversationClosed {
		return conv, nil
	}
	if err := s.store.UpdateConversationFields(ctx, conv.ID, map[string]interface{}{"status": model.ConversationClosed}); err != nil {
		return nil, fmt.Errorf("close conversation: %w", err)
	}
	conv.Status = model.ConversationClosed
	return conv, nil
}

// DeliveryReport is the transport's verdict on one outbound message
type DeliveryReport struct {
	Status            model.MessageStatus `json:"status"`
	ProviderMessageID *string             `json:"provider_message_id,omitempty"`
	Error             *string             `json:"error,omitempty"`
}

// ReportDelivery records a transport outcome on a queued message. It never touches the
// conversation or the request. Repeating a report that already applied is a no-op.
func (s *Service) ReportDelivery(ctx context.Context, tenantID uint, messageID uuid.UUID, report DeliveryReport) (*model.ProcurementMessage, error) {
	if report.Status != model.MessageSent && report.Status != model.MessageFailed {
		return nil, validationErr("status must be sent or failed")
	}

	msg, err := s.store.GetMessage(ctx, messageID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFoundErr("message", nil)
	}
	if err != nil {
		return nil, fmt.Errorf("load message: %w", err)
	}
	if _, err := s.loadConversation(ctx, tenantID, msg.ConversationID); err != nil {
		return nil, notFoundErr("message", nil)
	}
	return s.applyDelivery(ctx, msg, report)
}

func (s *Service) applyDelivery(ctx context.Context, msg *model.ProcurementMessage, report DeliveryReport) (*model.ProcurementMessage, error) {
	if msg.Direction != model.DirectionOutgoing {
		return nil, invariantErr("only outgoing messages have delivery status")
	}
	if msg.Status == report.Status {
		return msg, nil
	}
	from := msg.Status
	if from != model.MessageQueued && from != model.MessageSending {
		return nil, invariantErr("message is already %s", msg.Status)
	}

	updates := map[string]interface{}{"status": report.Status}
	if report.ProviderMessageID != nil {
		updates["provider_message_id"] = *report.ProviderMessageID
	}
	if report.Error != nil {
		updates["error"] = *report.Error
	}
	ok, err := s.store.UpdateMessageStatus(ctx, msg.ID, from, updates)
	if err != nil {
		return nil, fmt.Errorf("update message status: %w", err)
	}
	if !ok {
		return nil, conflictErr("message status changed concurrently")
	}

	s.metrics.RecordDelivery(string(report.Status))
	fields := []zap.Field{
		zap.String("message_id", msg.ID.String()),
		zap.String("conversation_id", msg.ConversationID.String()),
		zap.String("status", string(report.Status)),
	}
	if report.Status == model.MessageFailed {
		s.log.Warn("Outbound message failed", fields...)
	} else {
		s.log.Debug("Outbound message sent", fields...)
	}

	msg.Status = report.Status
	msg.ProviderMessageID = report.ProviderMessageID
	msg.Error = report.Error
	return msg, nil
}
