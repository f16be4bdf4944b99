package procurement

import (
	"testing"
	"time"

	"procurement-service/internal/model"
	"procurement-service/internal/repository"
	"procurement-service/internal/repository/testutil"
	"procurement-service/pkg/config"
	"procurement-service/prometheus"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

// fixture is the P1 catalog: product P1 (stock 3, threshold 5) in category Tools,
// S1 preferred for the category, S2 reached through a tier A brand in the same category.
type fixture struct {
	svc      *Service
	store    repository.Store
	db       *gorm.DB
	metrics  *prometheus.Metrics
	tenant   *model.Tenant
	s1, s2   *model.Supplier
	category *model.ProductCategory
	brand    *model.Brand
	product  *model.Product
}

func newService(t *testing.T, store repository.Store, metrics *prometheus.Metrics) *Service {
	t.Helper()
	svc, err := NewService(Options{
		Store:    store,
		Logger:   zaptest.NewLogger(t),
		Metrics:  metrics,
		Defaults: config.DefaultProcurement(),
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.DB(t)
	metrics := prometheus.NewMetrics(promclient.NewRegistry(), "test")
	store := repository.NewStore(db, metrics)

	f := &fixture{
		store:   store,
		db:      db,
		metrics: metrics,
	}
	f.svc = newService(t, store, metrics)

	f.tenant = testutil.SeedTenant(t, db, "Acme Hardware")
	f.s1 = testutil.SeedSupplier(t, db, f.tenant.ID, "S1")
	f.s2 = testutil.SeedSupplier(t, db, f.tenant.ID, "S2")
	f.category = testutil.SeedCategory(t, db, f.tenant.ID, "Tools")
	f.brand = testutil.SeedBrand(t, db, f.tenant.ID, "Premium", &f.category.ID, model.BrandTierA)

	testutil.SeedCategoryPreference(t, db, f.tenant.ID, f.category.ID, f.s1.ID, 1)
	testutil.SeedBrandMapping(t, db, f.tenant.ID, f.brand.ID, f.s2.ID, 1)

	f.product = testutil.SeedProduct(t, db, model.Product{
		TenantID:          f.tenant.ID,
		Name:              "P1",
		Stock:             3,
		LowStockThreshold: 5,
		CategoryID:        &f.category.ID,
	})
	return f
}

// draft creates an open draft request for the fixture product
func (f *fixture) draft(t *testing.T) *model.ProcurementRequest {
	t.Helper()
	req, created, err := f.svc.CreateRequest(testCtx(t), CreateRequestInput{
		TenantID:  f.tenant.ID,
		ProductID: f.product.ID,
		Quantity:  3,
		Trigger:   model.TriggerManual,
		Actor:     "tester",
	})
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}
	if !created {
		t.Fatalf("Expected a new request")
	}
	return req
}

// fixedClock makes s.now return successive instants one second apart
func fixedClock(svc *Service, start time.Time) {
	next := start
	svc.now = func() time.Time {
		next = next.Add(time.Second)
		return next
	}
}
