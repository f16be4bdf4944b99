package procurement

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"procurement-service/internal/model"
	"procurement-service/internal/repository"
	"procurement-service/pkg/logger"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// transitions maps a target status to the statuses it may be entered from
var transitions = map[model.RequestStatus][]model.RequestStatus{
	model.StatusInProgress:         {model.StatusDraft, model.StatusWaitingForQuotes, model.StatusQuotesReceived},
	model.StatusWaitingForQuotes:   {model.StatusDraft, model.StatusInProgress},
	model.StatusQuotesReceived:     {model.StatusWaitingForQuotes},
	model.StatusRecommended:        model.OpenStatuses,
	model.StatusWaitingForApproval: {model.StatusRecommended},
	model.StatusCancelled:          model.OpenStatuses,
	model.StatusOrderedExternal:    {model.StatusWaitingForApproval, model.StatusRecommended},
	model.StatusResolvedExternal:   {model.StatusWaitingForApproval, model.StatusRecommended},
}

// manualTargets are the statuses a user may request directly
var manualTargets = map[model.RequestStatus]bool{
	model.StatusInProgress:         true,
	model.StatusWaitingForApproval: true,
	model.StatusCancelled:          true,
	model.StatusOrderedExternal:    true,
	model.StatusResolvedExternal:   true,
}

// CanTransition reports whether a request in from may move to to
func CanTransition(from, to model.RequestStatus) bool {
	from, to = from.Canonical(), to.Canonical()
	for _, allowed := range transitions[to] {
		if allowed == from {
			return true
		}
	}
	return false
}

// CreateRequestInput describes a new procurement request
type CreateRequestInput struct {
	TenantID  uint
	ProductID uint
	Quantity  int
	Trigger   model.TriggerType
	Urgency   model.Urgency
	Notes     *string
	Actor     string
}

func (in CreateRequestInput) validate() error {
	if in.TenantID == 0 {
		return validationErr("tenant is required")
	}
	if in.ProductID == 0 {
		return validationErr("product_id is required")
	}
	if in.Quantity <= 0 {
		return validationErr("requested quantity must be positive, got %d", in.Quantity)
	}
	if !in.Trigger.Valid() {
		return validationErr("unknown trigger type %q", in.Trigger)
	}
	if in.Urgency != "" && !in.Urgency.Valid() {
		return validationErr("unknown urgency %q", in.Urgency)
	}
	return nil
}

// CreateRequest opens a draft request unless the product already has an open one, in
// which case the existing request is returned with created false.
func (s *Service) CreateRequest(ctx context.Context, in CreateRequestInput) (req *model.ProcurementRequest, created bool, err error) {
	ctx, span := s.startSpan(ctx, "CreateRequest",
		attribute.Int64("tenant_id", int64(in.TenantID)), attribute.Int64("product_id", int64(in.ProductID)))
	defer endSpan(span, &err)

	if err := in.validate(); err != nil {
		return nil, false, err
	}

	if _, err := s.store.GetProduct(ctx, in.TenantID, in.ProductID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, false, notFoundErr("product", nil)
		}
		return nil, false, fmt.Errorf("load product: %w", err)
	}

	urgency := in.Urgency
	if urgency == "" {
		settings, err := s.settingsFor(ctx, s.store, in.TenantID)
		if err != nil {
			return nil, false, err
		}
		urgency = settings.DefaultUrgency
	}

	return s.createDraft(ctx, &model.ProcurementRequest{
		TenantID:          in.TenantID,
		ProductID:         in.ProductID,
		RequestedQuantity: in.Quantity,
		TriggerType:       in.Trigger,
		Urgency:           urgency,
		Status:            model.StatusDraft,
		Notes:             in.Notes,
		CreatedBy:         in.Actor,
	})
}

// createDraft is the shared dedup path: an existence check before insert, and the open
// request unique index behind it. Losing the race is "already exists", not a failure.
func (s *Service) createDraft(ctx context.Context, req *model.ProcurementRequest) (*model.ProcurementRequest, bool, error) {
	existing, err := s.store.FindOpenRequest(ctx, req.TenantID, req.ProductID)
	if err != nil {
		return nil, false, fmt.Errorf("find open request: %w", err)
	}
	if existing != nil {
		s.metrics.RecordRequestSkipped()
		return existing, false, nil
	}

	err = s.store.CreateRequest(ctx, req)
	if errors.Is(err, repository.ErrDuplicate) {
		existing, findErr := s.store.FindOpenRequest(ctx, req.TenantID, req.ProductID)
		if findErr != nil {
			return nil, false, fmt.Errorf("find open request after conflict: %w", findErr)
		}
		if existing == nil {
			return nil, false, conflictErr("open request for product %d changed concurrently", req.ProductID)
		}
		s.metrics.RecordRequestSkipped()
		s.log.Info("Concurrent request creation absorbed",
			zap.Uint("tenant_id", req.TenantID),
			zap.Uint("product_id", req.ProductID),
			zap.String("request_id", existing.ID.String()))
		return existing, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("create request: %w", err)
	}

	s.metrics.RecordRequestCreated(string(req.TriggerType))
	s.log.Info("Procurement request created",
		zap.Uint("tenant_id", req.TenantID),
		zap.Uint("product_id", req.ProductID),
		zap.String("request_id", req.ID.String()),
		zap.String("trigger", string(req.TriggerType)),
		zap.Int("quantity", req.RequestedQuantity),
		zap.String("created_by", req.CreatedBy))
	return req, true, nil
}

// GetRequest returns one of the tenant's requests
func (s *Service) GetRequest(ctx context.Context, tenantID uint, id uuid.UUID) (*model.ProcurementRequest, error) {
	return loadRequest(ctx, s.store, tenantID, id)
}

// ListRequests pages through the tenant's requests, newest first
func (s *Service) ListRequests(ctx context.Context, tenantID uint, filter repository.RequestFilter) ([]model.ProcurementRequest, int64, error) {
	for _, st := range filter.Statuses {
		if !st.Valid() {
			return nil, 0, validationErr("unknown status %q", st)
		}
	}
	// Legacy rows still read back as ordered_external
	for _, st := range filter.Statuses {
		if st == model.StatusOrderedExternal {
			filter.Statuses = append(filter.Statuses, model.StatusOrdered)
			break
		}
	}

	reqs, total, err := s.store.ListRequests(ctx, tenantID, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list requests: %w", err)
	}
	for i := range reqs {
		reqs[i].Status = reqs[i].Status.Canonical()
	}
	return reqs, total, nil
}

// Transition applies a manual status change
func (s *Service) Transition(ctx context.Context, tenantID uint, id uuid.UUID, to model.RequestStatus, actor string) (req *model.ProcurementRequest, err error) {
	ctx, span := s.startSpan(ctx, "Transition",
		attribute.String("request_id", id.String()), attribute.String("to", string(to)))
	defer endSpan(span, &err)

	to = to.Canonical()
	if !manualTargets[to] {
		return nil, validationErr("status %q cannot be set manually", to)
	}

	req, err = loadRequest(ctx, s.store, tenantID, id)
	if err != nil {
		return nil, err
	}
	if req.Status == to {
		return req, nil
	}

	if to == model.StatusWaitingForApproval {
		settings, err := s.settingsFor(ctx, s.store, tenantID)
		if err != nil {
			return nil, err
		}
		if !settings.ApprovalRequired {
			return nil, invariantErr("approval is not required for this tenant")
		}
	}

	if !CanTransition(req.Status, to) {
		return nil, invariantErr("cannot move request from %s to %s", req.Status, to)
	}

	ok, err := s.store.TransitionRequest(ctx, id, []model.RequestStatus{req.Status}, to, nil)
	if err != nil {
		return nil, fmt.Errorf("transition request: %w", err)
	}
	if !ok {
		return nil, conflictErr("request status changed concurrently")
	}

	s.metrics.RecordTransition(string(to))
	logger.Ctx(ctx, s.log).Info("Procurement request status changed",
		zap.Uint("tenant_id", tenantID),
		zap.String("request_id", id.String()),
		zap.String("from", string(req.Status)),
		zap.String("to", string(to)),
		zap.String("actor", actor))

	return loadRequest(ctx, s.store, tenantID, id)
}

// UpdateNotes sets or clears the request notes. Status is never touched.
func (s *Service) UpdateNotes(ctx context.Context, tenantID uint, id uuid.UUID, notes *string) (*model.ProcurementRequest, error) {
	if _, err := loadRequest(ctx, s.store, tenantID, id); err != nil {
		return nil, err
	}

	var value interface{}
	if notes != nil && strings.TrimSpace(*notes) != "" {
		value = strings.TrimSpace(*notes)
	}
	if err := s.store.UpdateRequestFields(ctx, id, map[string]interface{}{"notes": value}); err != nil {
		return nil, fmt.Errorf("update notes: %w", err)
	}
	return loadRequest(ctx, s.store, tenantID, id)
}
