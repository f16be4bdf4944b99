package procurement

import (
	"context"
	"reflect"
	"testing"

	"procurement-service/internal/model"
	"procurement-service/internal/repository"
)

func testCtx(t *testing.T) context.Context {
	t.Helper()
	return context.Background()
}

func u(v uint) *uint { return &v }

func TestResolveBrandMappingOnly(t *testing.T) {
	in := SelectionInput{
		Product: model.Product{ID: 1, BrandID: u(7)},
		BrandMappings: []model.BrandSupplierMapping{
			{ID: 1, BrandID: 7, SupplierID: 20, Priority: 3, IsActive: true},
			{ID: 2, BrandID: 7, SupplierID: 12, Priority: 1, IsActive: true},
			{ID: 3, BrandID: 7, SupplierID: 30, Priority: 0, IsActive: false},
		},
	}

	sel := Resolve(in)
	if sel.Primary == nil || *sel.Primary != 12 {
		t.Fatalf("Expected primary supplier 12, got %v", sel.Primary)
	}
	if sel.Comparison != nil {
		t.Errorf("Expected no comparison supplier, got %d", *sel.Comparison)
	}

	want := []string{
		"no product preferred supplier",
		"product has no category",
		"primary: brand 7 mapping supplier 12 (priority 1)",
		"comparison: product has no category",
	}
	if !reflect.DeepEqual(sel.Rationale, want) {
		t.Errorf("Expected rationale %q, got %q", want, sel.Rationale)
	}
}

func TestResolveFallbackOrder(t *testing.T) {
	tests := []struct {
		name    string
		product model.Product
		want    uint
	}{
		{
			name:    "preferred supplier wins",
			product: model.Product{PreferredSupplierID: u(5), CategoryID: u(1), BrandID: u(2)},
			want:    5,
		},
		{
			name:    "category preference before brand mapping",
			product: model.Product{CategoryID: u(1), BrandID: u(2)},
			want:    8,
		},
		{
			name:    "brand mapping when category has no preference",
			product: model.Product{CategoryID: u(99), BrandID: u(2)},
			want:    9,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel := Resolve(SelectionInput{
				Product: tt.product,
				CategoryPreferences: []model.CategorySupplierPreference{
					{ID: 1, CategoryID: 1, SupplierID: 11, Priority: 4},
					{ID: 2, CategoryID: 1, SupplierID: 8, Priority: 2},
				},
				BrandMappings: []model.BrandSupplierMapping{
					{ID: 1, BrandID: 2, SupplierID: 9, Priority: 1, IsActive: true},
				},
			})
			if sel.Primary == nil || *sel.Primary != tt.want {
				t.Errorf("Expected primary %d, got %v (rationale %q)", tt.want, sel.Primary, sel.Rationale)
			}
		})
	}
}

func TestResolveNoPrimary(t *testing.T) {
	sel := Resolve(SelectionInput{Product: model.Product{ID: 1}})
	if sel.Primary != nil || sel.Comparison != nil {
		t.Fatalf("Expected no suppliers, got %+v", sel)
	}
	if len(sel.Suppliers()) != 0 {
		t.Errorf("Expected empty supplier list, got %v", sel.Suppliers())
	}
	found := false
	for _, r := range sel.Rationale {
		if r == "no primary supplier found" {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected rationale to record the missing primary, got %q", sel.Rationale)
	}
}

func TestResolveComparisonTiers(t *testing.T) {
	candidates := []repository.BrandCandidate{
		{BrandID: 1, Tier: model.BrandTierC, SupplierID: 40, Priority: 0},
		{BrandID: 2, Tier: model.BrandTierB, SupplierID: 30, Priority: 5},
		{BrandID: 3, Tier: model.BrandTierB, SupplierID: 31, Priority: 2},
		{BrandID: 4, Tier: model.BrandTierA, SupplierID: 10, Priority: 0},
	}

	sel := Resolve(SelectionInput{
		Product:            model.Product{CategoryID: u(1), PreferredSupplierID: u(10)},
		CategoryCandidates: candidates,
	})
	if sel.Primary == nil || *sel.Primary != 10 {
		t.Fatalf("Expected primary 10, got %v", sel.Primary)
	}
	// Tier A only offers the primary itself, so tier B's lowest priority wins over tier C
	if sel.Comparison == nil || *sel.Comparison != 31 {
		t.Fatalf("Expected comparison 31, got %v (rationale %q)", sel.Comparison, sel.Rationale)
	}
	if got := sel.Suppliers(); !reflect.DeepEqual(got, []uint{10, 31}) {
		t.Errorf("Expected suppliers [10 31], got %v", got)
	}
}

func TestResolveIsDeterministic(t *testing.T) {
	in := SelectionInput{
		Product: model.Product{CategoryID: u(1), BrandID: u(2)},
		CategoryPreferences: []model.CategorySupplierPreference{
			{ID: 2, CategoryID: 1, SupplierID: 3, Priority: 1},
			{ID: 1, CategoryID: 1, SupplierID: 4, Priority: 1},
		},
		CategoryCandidates: []repository.BrandCandidate{
			{BrandID: 2, Tier: model.BrandTierA, SupplierID: 5, Priority: 1},
			{BrandID: 3, Tier: model.BrandTierA, SupplierID: 6, Priority: 1},
		},
	}

	first := Resolve(in)
	for i := 0; i < 10; i++ {
		if got := Resolve(in); !reflect.DeepEqual(got, first) {
			t.Fatalf("Expected identical selections, got %+v and %+v", first, got)
		}
	}
	if *first.Primary != 4 {
		t.Errorf("Expected equal priorities to fall back to lowest row id (supplier 4), got %d", *first.Primary)
	}
	if *first.Comparison != 5 {
		t.Errorf("Expected first listed tier A candidate 5, got %d", *first.Comparison)
	}
}

func TestSelectSuppliersFromStore(t *testing.T) {
	f := newFixture(t)

	sel, err := f.svc.SelectSuppliers(testCtx(t), f.tenant.ID, f.product.ID)
	if err != nil {
		t.Fatalf("SelectSuppliers: %v", err)
	}
	if sel.Primary == nil || *sel.Primary != f.s1.ID {
		t.Errorf("Expected primary S1 (%d), got %v", f.s1.ID, sel.Primary)
	}
	if sel.Comparison == nil || *sel.Comparison != f.s2.ID {
		t.Errorf("Expected comparison S2 (%d), got %v", f.s2.ID, sel.Comparison)
	}

	if _, err := f.svc.SelectSuppliers(testCtx(t), f.tenant.ID+1, f.product.ID); !IsNotFound(err) {
		t.Errorf("Expected not found for another tenant's product, got %v", err)
	}
}
