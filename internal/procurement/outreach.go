package procurement

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"procurement-service/internal/model"
	"procurement-service/internal/repository"
	"procurement-service/pkg/logger"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// OutreachResult reports what one outreach invocation did
type OutreachResult struct {
	ConversationsCreated int                 `json:"conversations_created"`
	MessagesQueued       int                 `json:"messages_queued"`
	AlreadyActive        int                 `json:"already_active"`
	SupplierSelection    Selection           `json:"supplier_selection"`
	Status               model.RequestStatus `json:"status"`
}

// outreachFrom are the statuses outreach advances to waiting_for_quotes. Other open
// statuses keep theirs so re-entry never rewinds a request.
var outreachFrom = []model.RequestStatus{model.StatusDraft, model.StatusInProgress}

// MessageData is what the opening message template can reference
type MessageData struct {
	TenantName  string
	ProductName string
	ProductSKU  string
	Quantity    int
	Urgency     model.Urgency
}

// RenderMessage fills the opening message template
func (s *Service) RenderMessage(data MessageData) (string, error) {
	var buf bytes.Buffer
	if err := s.message.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render outreach message: %w", err)
	}
	return buf.String(), nil
}

// StartOutreach opens one conversation per resolved supplier and queues the opening
// message on each new bot conversation, then moves the request to waiting_for_quotes.
// Calling it again for the same request creates nothing new.
func (s *Service) StartOutreach(ctx context.Context, tenantID uint, requestID uuid.UUID) (res *OutreachResult, err error) {
	ctx, span := s.startSpan(ctx, "StartOutreach",
		attribute.Int64("tenant_id", int64(tenantID)), attribute.String("request_id", requestID.String()))
	defer endSpan(span, &err)

	req, err := loadRequest(ctx, s.store, tenantID, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status.IsTerminal() {
		return nil, invariantErr("request is %s; outreach is closed", req.Status)
	}

	product, err := s.store.GetProduct(ctx, tenantID, req.ProductID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFoundErr("product", nil)
	}
	if err != nil {
		return nil, fmt.Errorf("load product: %w", err)
	}
	tenant, err := s.store.GetTenant(ctx, tenantID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFoundErr("tenant", nil)
	}
	if err != nil {
		return nil, fmt.Errorf("load tenant: %w", err)
	}

	sel, err := s.selectForOutreach(ctx, s.store, product)
	if err != nil {
		return nil, err
	}

	log := logger.Ctx(ctx, s.log).With(
		zap.Uint("tenant_id", tenantID),
		zap.String("request_id", requestID.String()),
		zap.Uint("product_id", product.ID))

	text, err := s.RenderMessage(MessageData{
		TenantName:  tenant.Name,
		ProductName: product.Name,
		ProductSKU:  product.SKU,
		Quantity:    req.RequestedQuantity,
		Urgency:     req.Urgency,
	})
	if err != nil {
		return nil, err
	}

	res = &OutreachResult{SupplierSelection: sel}
	suppliers := sel.Suppliers()
	if len(suppliers) == 0 {
		log.Warn("No suppliers resolved for outreach", zap.Strings("rationale", sel.Rationale))
	}

	// Sequential on purpose: primary is always handled and queued before comparison.
	for _, supplierID := range suppliers {
		created, queued, err := s.contactSupplier(ctx, log, req, supplierID, text)
		if err != nil {
			return nil, err
		}
		if created {
			res.ConversationsCreated++
		} else {
			res.AlreadyActive++
		}
		if queued {
			res.MessagesQueued++
		}
	}

	// The stored selection describes the conversations it opened; a re-entry that opens
	// none leaves it alone.
	var extra map[string]interface{}
	if res.ConversationsCreated > 0 || len(req.SelectionRationale) == 0 {
		extra = map[string]interface{}{
			"supplier_pair_id":     nil,
			"supplier_pair_source": nil,
		}
		if sel.PairID != nil && sel.PairScope != nil {
			extra["supplier_pair_id"] = *sel.PairID
			extra["supplier_pair_source"] = *sel.PairScope
		}
		if rationale, err := json.Marshal(sel); err == nil {
			extra["selection_rationale"] = datatypes.JSON(rationale)
		}
	}

	advanced := false
	if CanTransition(req.Status, model.StatusWaitingForQuotes) {
		advanced, err = s.store.TransitionRequest(ctx, req.ID, outreachFrom, model.StatusWaitingForQuotes, extra)
		if err != nil {
			return nil, fmt.Errorf("advance request: %w", err)
		}
	}
	if advanced {
		s.metrics.RecordTransition(string(model.StatusWaitingForQuotes))
	} else if extra != nil {
		if err := s.store.UpdateRequestFields(ctx, req.ID, extra); err != nil {
			return nil, fmt.Errorf("store selection: %w", err)
		}
	}

	current, err := loadRequest(ctx, s.store, tenantID, req.ID)
	if err != nil {
		return nil, err
	}
	res.Status = current.Status

	s.metrics.RecordOutreach(res.ConversationsCreated, res.AlreadyActive, res.MessagesQueued)
	log.Info("Outreach completed",
		zap.Int("conversations_created", res.ConversationsCreated),
		zap.Int("messages_queued", res.MessagesQueued),
		zap.Int("already_active", res.AlreadyActive),
		zap.String("status", string(res.Status)))
	return res, nil
}

// contactSupplier opens the (request, supplier) conversation unless it exists and queues
// its opening message. The store's unique index decides which caller creates the
// conversation; the lock only keeps a concurrent caller from re-queuing a message the
// creator is about to write.
func (s *Service) contactSupplier(ctx context.Context, log *zap.Logger, req *model.ProcurementRequest, supplierID uint, text string) (created, queued bool, err error) {
	release, err := s.locker.Acquire(ctx, fmt.Sprintf("conversation:%s:%d", req.ID, supplierID))
	if err != nil {
		return false, false, fmt.Errorf("lock conversation for supplier %d: %w", supplierID, err)
	}
	defer release()

	conv := &model.ProcurementConversation{
		TenantID:             req.TenantID,
		ProductID:            req.ProductID,
		ProcurementRequestID: req.ID,
		SupplierID:           supplierID,
		Status:               model.ConversationActive,
		Mode:                 model.ModeBot,
	}
	created, err = s.store.CreateConversationIfAbsent(ctx, conv)
	if err != nil {
		return false, false, fmt.Errorf("create conversation for supplier %d: %w", supplierID, err)
	}

	if created {
		log.Info("Conversation created", zap.Uint("supplier_id", supplierID), zap.String("conversation_id", conv.ID.String()))
	} else {
		conv, err = s.store.GetConversationByPair(ctx, req.ID, supplierID)
		if err != nil {
			return false, false, fmt.Errorf("load conversation for supplier %d: %w", supplierID, err)
		}
		if !s.needsOpeningMessage(ctx, log, conv) {
			return false, false, nil
		}
		log.Info("Re-queuing missing opening message", zap.String("conversation_id", conv.ID.String()))
	}

	if conv.Mode != model.ModeBot {
		return created, false, nil
	}
	return created, s.queueOpeningMessage(ctx, log, conv, text), nil
}

// needsOpeningMessage is true for an active bot conversation whose opening message was
// never enqueued, which happens when a previous enqueue failed
func (s *Service) needsOpeningMessage(ctx context.Context, log *zap.Logger, conv *model.ProcurementConversation) bool {
	if conv.Mode != model.ModeBot || conv.Status != model.ConversationActive {
		return false
	}
	n, err := s.store.CountMessages(ctx, conv.ID, model.DirectionOutgoing)
	if err != nil {
		log.Warn("Failed to count outgoing messages", zap.String("conversation_id", conv.ID.String()), zap.Error(err))
		return false
	}
	return n == 0
}

// queueOpeningMessage enqueues text and stamps last_outgoing_at. A failure is logged and
// leaves the conversation in place for the next outreach call to reconcile.
func (s *Service) queueOpeningMessage(ctx context.Context, log *zap.Logger, conv *model.ProcurementConversation, text string) bool {
	msg := &model.ProcurementMessage{
		ConversationID: conv.ID,
		Direction:      model.DirectionOutgoing,
		Text:           text,
		Status:         model.MessageQueued,
	}
	if err := s.store.CreateMessage(ctx, msg); err != nil {
		log.Error("Failed to queue opening message",
			zap.String("conversation_id", conv.ID.String()),
			zap.Uint("supplier_id", conv.SupplierID),
			zap.Error(err))
		return false
	}

	now := s.now()
	if err := s.store.UpdateConversationFields(ctx, conv.ID, map[string]interface{}{"last_outgoing_at": now}); err != nil {
		log.Warn("Failed to stamp last_outgoing_at", zap.String("conversation_id", conv.ID.String()), zap.Error(err))
	}
	return true
}
