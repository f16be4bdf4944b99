package procurement

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"procurement-service/internal/model"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// OutboundMessage is what a Sender hands to the external transport
type OutboundMessage struct {
	MessageID            uuid.UUID `json:"message_id"`
	ConversationID       uuid.UUID `json:"conversation_id"`
	ProcurementRequestID uuid.UUID `json:"procurement_request_id"`
	TenantID             uint      `json:"tenant_id"`
	SupplierID           uint      `json:"supplier_id"`
	Text                 string    `json:"text"`
	QueuedAt             time.Time `json:"queued_at"`
}

// Sender delivers one outbound message and returns the transport's message id
type Sender interface {
	Send(ctx context.Context, msg OutboundMessage) (string, error)
}

// LogSender only logs messages; used when no transport is configured
type LogSender struct {
	log *zap.Logger
}

// NewLogSender creates a LogSender
func NewLogSender(log *zap.Logger) *LogSender {
	return &LogSender{log: log.With(zap.String("component", "LogSender"))}
}

func (l *LogSender) Send(_ context.Context, msg OutboundMessage) (string, error) {
	l.log.Info("Outbound message",
		zap.String("message_id", msg.MessageID.String()),
		zap.Uint("tenant_id", msg.TenantID),
		zap.Uint("supplier_id", msg.SupplierID),
		zap.String("text", msg.Text))
	return "log:" + msg.MessageID.String(), nil
}

// RedisSender publishes messages as JSON on a channel the transport subscribes to
type RedisSender struct {
	rdb     *goredis.Client
	channel string
}

// NewRedisSender creates a RedisSender publishing on channel
func NewRedisSender(rdb *goredis.Client, channel string) *RedisSender {
	return &RedisSender{rdb: rdb, channel: channel}
}

func (r *RedisSender) Send(ctx context.Context, msg OutboundMessage) (string, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return "", err
	}
	receivers, err := r.rdb.Publish(ctx, r.channel, payload).Result()
	if err != nil {
		return "", fmt.Errorf("redis publish: %w", err)
	}
	if receivers == 0 {
		return "", fmt.Errorf("no transport subscribed to %s", r.channel)
	}
	return fmt.Sprintf("redis:%s:%s", r.channel, msg.MessageID), nil
}

// sendingLease is how long a claimed message stays with its dispatcher before another
// dispatcher may claim it again
const sendingLease = 5 * time.Minute

// DispatchResult counts one dispatch pass
type DispatchResult struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// DispatchQueued claims up to limit queued outgoing messages, hands them to sender in
// creation order and records each outcome on the message row only. A claimed message is
// not handed out by another dispatcher until its lease expires.
func (s *Service) DispatchQueued(ctx context.Context, sender Sender, limit int) (res DispatchResult, err error) {
	ctx, span := s.startSpan(ctx, "DispatchQueued")
	defer endSpan(span, &err)

	msgs, err := s.store.ClaimQueuedOutgoing(ctx, limit, s.now().Add(-sendingLease))
	if err != nil {
		return res, fmt.Errorf("claim queued messages: %w", err)
	}

	for i := range msgs {
		msg := &msgs[i]
		if err := ctx.Err(); err != nil {
			return res, err
		}

		conv, err := s.store.GetConversation(ctx, msg.ConversationID)
		if err != nil {
			s.log.Warn("Skipping message without conversation", zap.String("message_id", msg.ID.String()), zap.Error(err))
			continue
		}

		report := DeliveryReport{Status: model.MessageSent}
		if conv.Status == model.ConversationClosed {
			reason := "conversation closed before delivery"
			report = DeliveryReport{Status: model.MessageFailed, Error: &reason}
		} else {
			providerID, sendErr := sender.Send(ctx, OutboundMessage{
				MessageID:            msg.ID,
				ConversationID:       conv.ID,
				ProcurementRequestID: conv.ProcurementRequestID,
				TenantID:             conv.TenantID,
				SupplierID:           conv.SupplierID,
				Text:                 msg.Text,
				QueuedAt:             msg.CreatedAt,
			})
			if sendErr != nil {
				reason := sendErr.Error()
				report = DeliveryReport{Status: model.MessageFailed, Error: &reason}
			} else {
				report.ProviderMessageID = &providerID
			}
		}

		if _, err := s.applyDelivery(ctx, msg, report); err != nil {
			// A delivery callback got there first
			s.log.Debug("Delivery outcome not applied", zap.String("message_id", msg.ID.String()), zap.Error(err))
			continue
		}
		if report.Status == model.MessageSent {
			res.Sent++
		} else {
			res.Failed++
		}
	}
	return res, nil
}

// RunDispatcher drains the outbound queue every interval until ctx is done
func (s *Service) RunDispatcher(ctx context.Context, sender Sender, interval time.Duration, batch int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res, err := s.DispatchQueued(ctx, sender, batch)
			if err != nil {
				s.log.Error("Dispatch pass failed", zap.Error(err))
				continue
			}
			if res.Sent+res.Failed > 0 {
				s.log.Info("Dispatch pass completed", zap.Int("sent", res.Sent), zap.Int("failed", res.Failed))
			}
		}
	}
}
