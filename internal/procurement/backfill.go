package procurement

import (
	"context"
	"fmt"
	"sync"
	"time"

	"procurement-service/internal/model"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// BackfillResult counts what one scan did
type BackfillResult struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

// backfillQuantity picks the requested quantity for a low-stock product
func (s *Service) backfillQuantity(p *model.Product, defaultQty int) int {
	if defaultQty > 0 {
		return defaultQty
	}
	if s.defaults.BackfillQty > 0 {
		return s.defaults.BackfillQty
	}
	if gap := p.LowStockThreshold - p.Stock; gap > 0 {
		return gap
	}
	return 1
}

// RunBackfill creates a draft request for every low-stock product of the tenant that has
// no open request. Running it again right away creates nothing.
func (s *Service) RunBackfill(ctx context.Context, tenantID uint, actor string, defaultQty int) (res BackfillResult, err error) {
	ctx, span := s.startSpan(ctx, "RunBackfill", attribute.Int64("tenant_id", int64(tenantID)))
	defer endSpan(span, &err)
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}
		s.metrics.RecordBackfill(result)
	}()

	if tenantID == 0 {
		return res, validationErr("tenant is required")
	}
	if defaultQty < 0 {
		return res, validationErr("default quantity must not be negative, got %d", defaultQty)
	}
	if actor == "" {
		actor = "system:backfill"
	}

	products, err := s.store.ListLowStockProducts(ctx, tenantID)
	if err != nil {
		return res, fmt.Errorf("list low stock products: %w", err)
	}
	if len(products) == 0 {
		return res, nil
	}

	settings, err := s.settingsFor(ctx, s.store, tenantID)
	if err != nil {
		return res, err
	}

	for i := range products {
		p := &products[i]
		if err := ctx.Err(); err != nil {
			return res, err
		}

		trigger := model.TriggerBelowThreshold
		if p.Stock <= 0 {
			trigger = model.TriggerOutOfStock
		}

		_, created, err := s.createDraft(ctx, &model.ProcurementRequest{
			TenantID:          tenantID,
			ProductID:         p.ID,
			RequestedQuantity: s.backfillQuantity(p, defaultQty),
			TriggerType:       trigger,
			Urgency:           settings.DefaultUrgency,
			Status:            model.StatusDraft,
			CreatedBy:         actor,
		})
		if err != nil {
			return res, fmt.Errorf("backfill product %d: %w", p.ID, err)
		}
		if created {
			res.Created++
		} else {
			res.Skipped++
		}
	}

	s.log.Info("Backfill completed",
		zap.Uint("tenant_id", tenantID),
		zap.String("actor", actor),
		zap.Int("low_stock", len(products)),
		zap.Int("created", res.Created),
		zap.Int("skipped", res.Skipped))
	return res, nil
}

// Sweep runs the backfill for every active tenant, at most concurrency at a time.
// A failing tenant is logged and does not stop the others.
func (s *Service) Sweep(ctx context.Context, actor string, defaultQty, concurrency int) (map[uint]BackfillResult, error) {
	tenants, err := s.store.ListActiveTenants(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	var (
		mu      sync.Mutex
		results = make(map[uint]BackfillResult, len(tenants))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, tenant := range tenants {
		tenantID := tenant.ID
		g.Go(func() error {
			res, err := s.RunBackfill(gctx, tenantID, actor, defaultQty)
			if err != nil {
				s.log.Error("Backfill failed", zap.Uint("tenant_id", tenantID), zap.Error(err))
				return nil
			}
			mu.Lock()
			results[tenantID] = res
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, ctx.Err()
}

// RunBackfillSweep sweeps every active tenant every interval until ctx is done
func (s *Service) RunBackfillSweep(ctx context.Context, interval time.Duration, actor string, concurrency int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			results, err := s.Sweep(ctx, actor, 0, concurrency)
			if err != nil {
				s.log.Error("Backfill sweep failed", zap.Error(err))
				continue
			}
			created := 0
			for _, r := range results {
				created += r.Created
			}
			s.log.Info("Backfill sweep completed", zap.Int("tenants", len(results)), zap.Int("created", created))
		}
	}
}
