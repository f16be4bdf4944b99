package procurement

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"procurement-service/internal/model"
	"procurement-service/internal/repository"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Selection is the resolver's answer for one product
type Selection struct {
	Primary    *uint            `json:"primary,omitempty"`
	Comparison *uint            `json:"comparison,omitempty"`
	Rationale  []string         `json:"rationale"`
	PairID     *uuid.UUID       `json:"pair_id,omitempty"`
	PairScope  *model.PairScope `json:"pair_scope,omitempty"`
}

// Suppliers returns primary then comparison, without duplicates
func (s Selection) Suppliers() []uint {
	out := make([]uint, 0, 2)
	if s.Primary != nil {
		out = append(out, *s.Primary)
	}
	if s.Comparison != nil && (s.Primary == nil || *s.Comparison != *s.Primary) {
		out = append(out, *s.Comparison)
	}
	return out
}

// SelectionInput is everything Resolve looks at
type SelectionInput struct {
	Product             model.Product
	CategoryPreferences []model.CategorySupplierPreference
	BrandMappings       []model.BrandSupplierMapping
	CategoryCandidates  []repository.BrandCandidate
}

// Resolve picks a primary supplier through the fallback chain preferred supplier,
// category preference, brand mapping, and a comparison supplier by brand tier within
// the product's category. The result depends only on in.
func Resolve(in SelectionInput) Selection {
	var sel Selection
	p := in.Product

	switch {
	case p.PreferredSupplierID != nil:
		sel.Primary = uintPtr(*p.PreferredSupplierID)
		sel.Rationale = append(sel.Rationale, fmt.Sprintf("primary: product preferred supplier %d", *p.PreferredSupplierID))
	default:
		sel.Rationale = append(sel.Rationale, "no product preferred supplier")
	}

	if sel.Primary == nil {
		if p.CategoryID == nil {
			sel.Rationale = append(sel.Rationale, "product has no category")
		} else if pref, ok := bestCategoryPreference(in.CategoryPreferences, *p.CategoryID); ok {
			sel.Primary = uintPtr(pref.SupplierID)
			sel.Rationale = append(sel.Rationale, fmt.Sprintf("primary: category %d preference supplier %d (priority %d)",
				*p.CategoryID, pref.SupplierID, pref.Priority))
		} else {
			sel.Rationale = append(sel.Rationale, fmt.Sprintf("no category preference for category %d", *p.CategoryID))
		}
	}

	if sel.Primary == nil {
		if p.BrandID == nil {
			sel.Rationale = append(sel.Rationale, "product has no brand")
		} else if m, ok := bestBrandMapping(in.BrandMappings, *p.BrandID); ok {
			sel.Primary = uintPtr(m.SupplierID)
			sel.Rationale = append(sel.Rationale, fmt.Sprintf("primary: brand %d mapping supplier %d (priority %d)",
				*p.BrandID, m.SupplierID, m.Priority))
		} else {
			sel.Rationale = append(sel.Rationale, fmt.Sprintf("no active brand mapping for brand %d", *p.BrandID))
		}
	}

	if sel.Primary == nil {
		sel.Rationale = append(sel.Rationale, "no primary supplier found")
	}

	if p.CategoryID == nil {
		sel.Rationale = append(sel.Rationale, "comparison: product has no category")
		return sel
	}

	candidates := make([]repository.BrandCandidate, len(in.CategoryCandidates))
	copy(candidates, in.CategoryCandidates)
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Priority < candidates[j].Priority
	})

	for _, tier := range model.BrandTiers {
		for _, c := range candidates {
			if c.Tier != tier {
				continue
			}
			if sel.Primary != nil && c.SupplierID == *sel.Primary {
				continue
			}
			sel.Comparison = uintPtr(c.SupplierID)
			sel.Rationale = append(sel.Rationale, fmt.Sprintf("comparison: tier %s brand %d supplier %d (priority %d)",
				tier, c.BrandID, c.SupplierID, c.Priority))
			return sel
		}
		sel.Rationale = append(sel.Rationale, fmt.Sprintf("no tier %s comparison candidate", tier))
	}
	sel.Rationale = append(sel.Rationale, "no comparison supplier found")
	return sel
}

func bestCategoryPreference(prefs []model.CategorySupplierPreference, categoryID uint) (model.CategorySupplierPreference, bool) {
	var (
		best  model.CategorySupplierPreference
		found bool
	)
	for _, p := range prefs {
		if p.CategoryID != categoryID {
			continue
		}
		if !found || p.Priority < best.Priority || (p.Priority == best.Priority && p.ID < best.ID) {
			best, found = p, true
		}
	}
	return best, found
}

func bestBrandMapping(mappings []model.BrandSupplierMapping, brandID uint) (model.BrandSupplierMapping, bool) {
	var (
		best  model.BrandSupplierMapping
		found bool
	)
	for _, m := range mappings {
		if m.BrandID != brandID || !m.IsActive {
			continue
		}
		if !found || m.Priority < best.Priority || (m.Priority == best.Priority && m.ID < best.ID) {
			best, found = m, true
		}
	}
	return best, found
}

func uintPtr(v uint) *uint { return &v }

// loadSelectionInput reads the catalog rows Resolve needs for product
func loadSelectionInput(ctx context.Context, store repository.CatalogStore, product *model.Product) (SelectionInput, error) {
	in := SelectionInput{Product: *product}

	if product.CategoryID != nil {
		prefs, err := store.ListCategoryPreferences(ctx, product.TenantID, *product.CategoryID)
		if err != nil {
			return in, fmt.Errorf("list category preferences: %w", err)
		}
		in.CategoryPreferences = prefs

		candidates, err := store.ListCategoryBrandCandidates(ctx, product.TenantID, *product.CategoryID)
		if err != nil {
			return in, fmt.Errorf("list category brand candidates: %w", err)
		}
		in.CategoryCandidates = candidates
	}
	if product.BrandID != nil {
		mappings, err := store.ListBrandMappings(ctx, product.TenantID, *product.BrandID)
		if err != nil {
			return in, fmt.Errorf("list brand mappings: %w", err)
		}
		in.BrandMappings = mappings
	}
	return in, nil
}

// SelectSuppliers resolves the suppliers to contact for a product. It has no side effects.
func (s *Service) SelectSuppliers(ctx context.Context, tenantID, productID uint) (sel Selection, err error) {
	ctx, span := s.startSpan(ctx, "SelectSuppliers",
		attribute.Int64("tenant_id", int64(tenantID)), attribute.Int64("product_id", int64(productID)))
	defer endSpan(span, &err)

	product, err := s.store.GetProduct(ctx, tenantID, productID)
	if errors.Is(err, repository.ErrNotFound) {
		return sel, notFoundErr("product", nil)
	}
	if err != nil {
		return sel, fmt.Errorf("load product: %w", err)
	}

	in, err := loadSelectionInput(ctx, s.store, product)
	if err != nil {
		return sel, err
	}
	sel = Resolve(in)

	s.log.Debug("Suppliers resolved",
		zap.Uint("tenant_id", tenantID),
		zap.Uint("product_id", productID),
		zap.Strings("rationale", sel.Rationale))
	return sel, nil
}

// selectForOutreach prefers an active supplier pair (product scope, then category scope)
// and falls back to Resolve
func (s *Service) selectForOutreach(ctx context.Context, store repository.Store, product *model.Product) (Selection, error) {
	pair, err := store.FindActivePair(ctx, product.TenantID, model.ScopeProduct, product.ID)
	if err != nil {
		return Selection{}, fmt.Errorf("find product pair: %w", err)
	}
	if pair == nil && product.CategoryID != nil {
		pair, err = store.FindActivePair(ctx, product.TenantID, model.ScopeCategory, *product.CategoryID)
		if err != nil {
			return Selection{}, fmt.Errorf("find category pair: %w", err)
		}
	}
	if pair != nil {
		scope := pair.Scope
		id := pair.ID
		return Selection{
			Primary:    uintPtr(pair.SupplierAID),
			Comparison: uintPtr(pair.SupplierBID),
			PairID:     &id,
			PairScope:  &scope,
			Rationale: []string{
				fmt.Sprintf("supplier pair %s (%s scope, %s strategy): primary supplier %d, comparison supplier %d",
					pair.ID, pair.Scope, pair.Strategy, pair.SupplierAID, pair.SupplierBID),
			},
		}, nil
	}

	in, err := loadSelectionInput(ctx, store, product)
	if err != nil {
		return Selection{}, err
	}
	return Resolve(in), nil
}
