package procurement

import (
	"testing"

	"procurement-service/internal/model"
	"procurement-service/internal/repository"
	"procurement-service/internal/repository/testutil"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRunBackfillIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx(t)

	res, err := f.svc.RunBackfill(ctx, f.tenant.ID, "", 0)
	if err != nil {
		t.Fatalf("RunBackfill: %v", err)
	}
	if res.Created != 1 || res.Skipped != 0 {
		t.Fatalf("Expected created=1 skipped=0, got %+v", res)
	}

	res, err = f.svc.RunBackfill(ctx, f.tenant.ID, "", 0)
	if err != nil {
		t.Fatalf("RunBackfill: %v", err)
	}
	if res.Created != 0 || res.Skipped != 1 {
		t.Errorf("Expected created=0 skipped=1, got %+v", res)
	}

	reqs, total, err := f.svc.ListRequests(ctx, f.tenant.ID, repository.RequestFilter{})
	if err != nil {
		t.Fatalf("ListRequests: %v", err)
	}
	if total != 1 {
		t.Fatalf("Expected 1 request, got %d", total)
	}
	req := reqs[0]
	if req.TriggerType != model.TriggerBelowThreshold {
		t.Errorf("Expected below_threshold trigger, got %s", req.TriggerType)
	}
	if req.RequestedQuantity != 2 {
		t.Errorf("Expected quantity to fill the gap to the threshold (2), got %d", req.RequestedQuantity)
	}
	if req.CreatedBy != "system:backfill" {
		t.Errorf("Expected default actor, got %q", req.CreatedBy)
	}

	if got := promtest.ToFloat64(f.metrics.BackfillRuns.WithLabelValues("ok")); got != 2 {
		t.Errorf("Expected 2 backfill runs recorded, got %v", got)
	}
}

func TestRunBackfillTriggersAndQuantities(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx(t)

	empty := testutil.SeedProduct(t, f.db, model.Product{TenantID: f.tenant.ID, Name: "Empty", Stock: 0, LowStockThreshold: 4})
	testutil.SeedProduct(t, f.db, model.Product{TenantID: f.tenant.ID, Name: "Untracked", Stock: 0})
	testutil.SeedProduct(t, f.db, model.Product{TenantID: f.tenant.ID, Name: "Plenty", Stock: 50, LowStockThreshold: 5})

	res, err := f.svc.RunBackfill(ctx, f.tenant.ID, "scheduler", 7)
	if err != nil {
		t.Fatalf("RunBackfill: %v", err)
	}
	if res.Created != 2 {
		t.Fatalf("Expected 2 requests, got %+v", res)
	}

	reqs, _, err := f.svc.ListRequests(ctx, f.tenant.ID, repository.RequestFilter{ProductID: &empty.ID})
	if err != nil {
		t.Fatalf("ListRequests: %v", err)
	}
	if len(reqs) != 1 {
		t.Fatalf("Expected one request for the empty product, got %d", len(reqs))
	}
	if reqs[0].TriggerType != model.TriggerOutOfStock {
		t.Errorf("Expected out_of_stock trigger, got %s", reqs[0].TriggerType)
	}
	if reqs[0].RequestedQuantity != 7 {
		t.Errorf("Expected the explicit quantity 7, got %d", reqs[0].RequestedQuantity)
	}
	if reqs[0].CreatedBy != "scheduler" {
		t.Errorf("Expected actor scheduler, got %q", reqs[0].CreatedBy)
	}
}

func TestRunBackfillSkipsProductWithManualRequest(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx(t)
	manual := f.draft(t)

	res, err := f.svc.RunBackfill(ctx, f.tenant.ID, "", 0)
	if err != nil {
		t.Fatalf("RunBackfill: %v", err)
	}
	if res.Created != 0 || res.Skipped != 1 {
		t.Errorf("Expected the open manual request to absorb the backfill, got %+v", res)
	}

	got, err := f.svc.GetRequest(ctx, f.tenant.ID, manual.ID)
	if err != nil {
		t.Fatalf("GetRequest: %v", err)
	}
	if got.TriggerType != model.TriggerManual {
		t.Errorf("Expected the manual request untouched, got %s", got.TriggerType)
	}
}

func TestBackfillQuantity(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name       string
		configured int
		explicit   int
		product    model.Product
		want       int
	}{
		{"explicit wins", 10, 4, model.Product{Stock: 0, LowStockThreshold: 8}, 4},
		{"configured default", 10, 0, model.Product{Stock: 0, LowStockThreshold: 8}, 10},
		{"gap to threshold", 0, 0, model.Product{Stock: 2, LowStockThreshold: 8}, 6},
		{"at least one", 0, 0, model.Product{Stock: 5, LowStockThreshold: 5}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.svc.defaults.BackfillQty = tt.configured
			if got := f.svc.backfillQuantity(&tt.product, tt.explicit); got != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestRunBackfillValidation(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx(t)

	if _, err := f.svc.RunBackfill(ctx, 0, "", 0); !IsValidation(err) {
		t.Errorf("Expected validation error without tenant, got %v", err)
	}
	if _, err := f.svc.RunBackfill(ctx, f.tenant.ID, "", -1); !IsValidation(err) {
		t.Errorf("Expected validation error for negative quantity, got %v", err)
	}
	if got := promtest.ToFloat64(f.metrics.BackfillRuns.WithLabelValues("error")); got != 2 {
		t.Errorf("Expected 2 failed runs recorded, got %v", got)
	}
}

func TestSweepCoversActiveTenants(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx(t)

	other := testutil.SeedTenant(t, f.db, "Beta Supplies")
	testutil.SeedProduct(t, f.db, model.Product{TenantID: other.ID, Name: "B1", Stock: 1, LowStockThreshold: 3})
	testutil.SeedProduct(t, f.db, model.Product{TenantID: other.ID, Name: "B2", Stock: 0, LowStockThreshold: 3})

	dormant := testutil.SeedTenant(t, f.db, "Dormant")
	testutil.SeedProduct(t, f.db, model.Product{TenantID: dormant.ID, Name: "D1", Stock: 0, LowStockThreshold: 3})
	if err := f.db.Model(dormant).Update("active", false).Error; err != nil {
		t.Fatalf("deactivate tenant: %v", err)
	}

	results, err := f.svc.Sweep(ctx, "", 0, 2)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if got := results[f.tenant.ID].Created; got != 1 {
		t.Errorf("Expected 1 request for %s, got %d", f.tenant.Name, got)
	}
	if got := results[other.ID].Created; got != 2 {
		t.Errorf("Expected 2 requests for %s, got %d", other.Name, got)
	}
	if _, ok := results[dormant.ID]; ok {
		t.Error("Expected the inactive tenant to be skipped")
	}

	results, err = f.svc.Sweep(ctx, "", 0, 2)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	for tenantID, res := range results {
		if res.Created != 0 {
			t.Errorf("Expected the second sweep to create nothing for tenant %d, got %+v", tenantID, res)
		}
	}
}
