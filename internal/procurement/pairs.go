package procurement

import (
	"context"
	"errors"
	"fmt"

	"procurement-service/internal/model"
	"procurement-service/internal/repository"
	"procurement-service/pkg/lock"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// PairInput configures the suppliers contacted for a category or a product
type PairInput struct {
	Scope       model.PairScope    `json:"scope"`
	CategoryID  *uint              `json:"category_id,omitempty"`
	ProductID   *uint              `json:"product_id,omitempty"`
	SupplierAID uint               `json:"supplier_a_id"`
	SupplierBID uint               `json:"supplier_b_id"`
	Strategy    model.PairStrategy `json:"strategy"`
}

func (in *PairInput) normalize() (uint, error) {
	if !in.Scope.Valid() {
		return 0, validationErr("scope must be category or product")
	}
	if in.SupplierAID == 0 || in.SupplierBID == 0 {
		return 0, validationErr("supplier_a_id and supplier_b_id are required")
	}
	if in.SupplierAID == in.SupplierBID {
		return 0, validationErr("supplier A and supplier B must differ")
	}
	if in.Strategy == "" {
		in.Strategy = model.StrategyBalanced
	}
	if !in.Strategy.Valid() {
		return 0, validationErr("unknown strategy %q", in.Strategy)
	}

	switch in.Scope {
	case model.ScopeCategory:
		if in.CategoryID == nil || *in.CategoryID == 0 {
			return 0, validationErr("category_id is required for category scope")
		}
		if in.ProductID != nil {
			return 0, validationErr("product_id must be empty for category scope")
		}
		return *in.CategoryID, nil
	default:
		if in.ProductID == nil || *in.ProductID == 0 {
			return 0, validationErr("product_id is required for product scope")
		}
		if in.CategoryID != nil {
			return 0, validationErr("category_id must be empty for product scope")
		}
		return *in.ProductID, nil
	}
}

func pairLockKey(tenantID uint, scope model.PairScope, key uint) string {
	return fmt.Sprintf("pair:%d:%s:%d", tenantID, scope, key)
}

// UpsertPair writes the active pair for (tenant, scope, key), updating the existing one
// if present. Writers for the same key are serialized so only one active pair survives.
func (s *Service) UpsertPair(ctx context.Context, tenantID uint, in PairInput) (pair *model.SupplierPair, created bool, err error) {
	ctx, span := s.startSpan(ctx, "UpsertPair",
		attribute.Int64("tenant_id", int64(tenantID)), attribute.String("scope", string(in.Scope)))
	defer endSpan(span, &err)

	key, err := in.normalize()
	if err != nil {
		return nil, false, err
	}

	release, err := s.locker.Acquire(ctx, pairLockKey(tenantID, in.Scope, key))
	if errors.Is(err, lock.ErrNotAcquired) {
		return nil, false, conflictErr("supplier pair for %s %d is being updated", in.Scope, key)
	}
	if err != nil {
		return nil, false, fmt.Errorf("acquire pair lock: %w", err)
	}
	defer release()

	pair, err = s.store.FindActivePair(ctx, tenantID, in.Scope, key)
	if err != nil {
		return nil, false, fmt.Errorf("find pair: %w", err)
	}

	if pair != nil {
		pair.SupplierAID = in.SupplierAID
		pair.SupplierBID = in.SupplierBID
		pair.Strategy = in.Strategy
		if err := s.store.SavePair(ctx, pair); err != nil {
			return nil, false, fmt.Errorf("save pair: %w", err)
		}
	} else {
		created = true
		pair = &model.SupplierPair{
			TenantID:    tenantID,
			Scope:       in.Scope,
			CategoryID:  in.CategoryID,
			ProductID:   in.ProductID,
			SupplierAID: in.SupplierAID,
			SupplierBID: in.SupplierBID,
			Strategy:    in.Strategy,
			IsActive:    true,
		}
		if err := s.store.CreatePair(ctx, pair); err != nil {
			return nil, false, fmt.Errorf("create pair: %w", err)
		}
	}

	s.log.Info("Supplier pair saved",
		zap.Uint("tenant_id", tenantID),
		zap.String("pair_id", pair.ID.String()),
		zap.String("scope", string(in.Scope)),
		zap.Uint("scope_key", key),
		zap.Uint("supplier_a_id", in.SupplierAID),
		zap.Uint("supplier_b_id", in.SupplierBID),
		zap.Bool("created", created))
	return pair, created, nil
}

// ListPairs returns the tenant's supplier pairs
func (s *Service) ListPairs(ctx context.Context, tenantID uint, activeOnly bool) ([]model.SupplierPair, error) {
	pairs, err := s.store.ListPairs(ctx, tenantID, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list pairs: %w", err)
	}
	return pairs, nil
}

// DeactivatePair turns a pair off; it is kept for requests that still reference it
func (s *Service) DeactivatePair(ctx context.Context, tenantID uint, id uuid.UUID) (*model.SupplierPair, error) {
	pair, err := s.store.GetPair(ctx, tenantID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFoundErr("supplier pair", nil)
	}
	if err != nil {
		return nil, fmt.Errorf("load pair: %w", err)
	}
	if !pair.IsActive {
		return pair, nil
	}

	release, err := s.locker.Acquire(ctx, pairLockKey(tenantID, pair.Scope, pair.ScopeKey()))
	if err != nil {
		return nil, conflictErr("supplier pair is being updated")
	}
	defer release()

	pair.IsActive = false
	if err := s.store.SavePair(ctx, pair); err != nil {
		return nil, fmt.Errorf("save pair: %w", err)
	}
	s.log.Info("Supplier pair deactivated", zap.Uint("tenant_id", tenantID), zap.String("pair_id", id.String()))
	return pair, nil
}
