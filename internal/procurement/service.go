// Package procurement implements restock orchestration: request lifecycle, supplier
// selection, outreach conversations, quote scoring and the low-stock backfill.
package procurement

import (
	"context"
	"errors"
	"fmt"
	"text/template"
	"time"

	"procurement-service/internal/model"
	"procurement-service/internal/repository"
	"procurement-service/pkg/config"
	"procurement-service/pkg/lock"
	"procurement-service/prometheus"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "procurement-service/internal/procurement"

// Options wires a Service
type Options struct {
	Store    repository.Store
	Locker   lock.Locker
	Logger   *zap.Logger
	Metrics  *prometheus.Metrics
	Defaults config.ProcurementDefaults
}

// Service runs every procurement operation against a transactional store
type Service struct {
	store    repository.Store
	locker   lock.Locker
	log      *zap.Logger
	metrics  *prometheus.Metrics
	defaults config.ProcurementDefaults
	message  *template.Template
	tracer   trace.Tracer
	now      func() time.Time
}

// NewService validates the defaults and builds a Service
func NewService(opts Options) (*Service, error) {
	if opts.Store == nil {
		return nil, errors.New("procurement: store is required")
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	locker := opts.Locker
	if locker == nil {
		locker = lock.NewLocal()
	}

	defaults := opts.Defaults
	if defaults.MessageTemplate == "" {
		defaults.MessageTemplate = config.DefaultMessageTemplate
	}
	if defaults.Currency == "" {
		defaults.Currency = "ILS"
	}
	if !model.Urgency(defaults.DefaultUrgency).Valid() {
		defaults.DefaultUrgency = string(model.UrgencyNormal)
	}
	if defaults.Weights == (config.WeightsConfig{}) {
		defaults.Weights = config.DefaultProcurement().Weights
	}

	tmpl, err := template.New("outreach").Option("missingkey=error").Parse(defaults.MessageTemplate)
	if err != nil {
		return nil, fmt.Errorf("procurement: parse message template: %w", err)
	}

	return &Service{
		store:    opts.Store,
		locker:   locker,
		log:      log.With(zap.String("service", "Procurement")),
		metrics:  opts.Metrics,
		defaults: defaults,
		message:  tmpl,
		tracer:   otel.Tracer(tracerName),
		now:      time.Now,
	}, nil
}

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "procurement."+name, trace.WithAttributes(attrs...))
}

// endSpan records err on span and ends it; call as defer endSpan(span, &err)
func endSpan(span trace.Span, err *error) {
	if err != nil && *err != nil {
		span.RecordError(*err)
		span.SetStatus(codes.Error, (*err).Error())
	}
	span.End()
}

// loadRequest fetches a request and hides requests that belong to another tenant
func loadRequest(ctx context.Context, store repository.Store, tenantID uint, id uuid.UUID) (*model.ProcurementRequest, error) {
	req, err := store.GetRequest(ctx, id)
	return checkRequest(req, err, tenantID)
}

// lockRequest loads the request and holds its row until tx commits, so writers that
// rescan the request's quotes run one at a time
func lockRequest(ctx context.Context, tx repository.Store, tenantID uint, id uuid.UUID) (*model.ProcurementRequest, error) {
	req, err := tx.LockRequest(ctx, id)
	return checkRequest(req, err, tenantID)
}

func checkRequest(req *model.ProcurementRequest, err error, tenantID uint) (*model.ProcurementRequest, error) {
	if errors.Is(err, repository.ErrNotFound) || (err == nil && req.TenantID != tenantID) {
		return nil, notFoundErr("procurement request", nil)
	}
	if err != nil {
		return nil, fmt.Errorf("load request: %w", err)
	}
	req.Status = req.Status.Canonical()
	return req, nil
}
