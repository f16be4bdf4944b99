package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"procurement-service/internal/middleware"
	"procurement-service/internal/model"
	"procurement-service/internal/procurement"
	"procurement-service/internal/repository"
	"procurement-service/internal/repository/testutil"
	"procurement-service/pkg/config"
	"procurement-service/pkg/jwtutil"
	"procurement-service/prometheus"

	"github.com/labstack/echo/v4"
	promclient "github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap/zaptest"
)

type apiFixture struct {
	e       *echo.Echo
	token   string
	tenant  *model.Tenant
	s1, s2  *model.Supplier
	product *model.Product
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()

	db := testutil.DB(t)
	metrics := prometheus.NewMetrics(promclient.NewRegistry(), "test")
	store := repository.NewStore(db, metrics)
	svc, err := procurement.NewService(procurement.Options{
		Store:    store,
		Logger:   zaptest.NewLogger(t),
		Metrics:  metrics,
		Defaults: config.DefaultProcurement(),
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	f := &apiFixture{}
	f.tenant = testutil.SeedTenant(t, db, "Acme Hardware")
	f.s1 = testutil.SeedSupplier(t, db, f.tenant.ID, "S1")
	f.s2 = testutil.SeedSupplier(t, db, f.tenant.ID, "S2")
	category := testutil.SeedCategory(t, db, f.tenant.ID, "Tools")
	brand := testutil.SeedBrand(t, db, f.tenant.ID, "Premium", &category.ID, model.BrandTierA)
	testutil.SeedCategoryPreference(t, db, f.tenant.ID, category.ID, f.s1.ID, 1)
	testutil.SeedBrandMapping(t, db, f.tenant.ID, brand.ID, f.s2.ID, 1)
	f.product = testutil.SeedProduct(t, db, model.Product{
		TenantID:          f.tenant.ID,
		Name:              "P1",
		Stock:             3,
		LowStockThreshold: 5,
		CategoryID:        &category.ID,
	})

	jwtUtil := jwtutil.NewJWTUtil(&config.JWTConfig{SigningKey: "test-secret", ExpirationHours: 1})
	f.token, err = jwtUtil.GenerateTokenWithTenant("buyer@example.com", 1, &f.tenant.ID, f.tenant.Name, "admin")
	if err != nil {
		t.Fatalf("GenerateTokenWithTenant: %v", err)
	}

	h := NewHandler(svc, db)
	f.e = echo.New()
	f.e.Use(middleware.RequestIDMiddleware())
	f.e.GET("/health", h.HealthCheck)
	h.Register(f.e.Group("/api/procurement", middleware.AuthMiddleware(jwtUtil, metrics)))
	return f
}

// do sends body as JSON with the fixture's token and decodes the response into out when non-nil
func (f *apiFixture) do(t *testing.T, method, path, body string, out interface{}) int {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	req.Header.Set("Authorization", "Bearer "+f.token)

	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)

	if out != nil {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("decode %s %s (%d): %v: %s", method, path, rec.Code, err, rec.Body.String())
		}
	}
	return rec.Code
}

type createResponse struct {
	Request model.ProcurementRequest `json:"request"`
	Created bool                     `json:"created"`
}

func TestProcurementFlowOverHTTP(t *testing.T) {
	f := newAPI(t)

	var backfill procurement.BackfillResult
	if code := f.do(t, http.MethodPost, "/api/procurement/backfill", `{}`, &backfill); code != http.StatusOK {
		t.Fatalf("Expected 200 from backfill, got %d", code)
	}
	if backfill.Created != 1 {
		t.Fatalf("Expected 1 request created, got %+v", backfill)
	}

	// A manual request for the same product returns the open one
	var created createResponse
	body := fmt.Sprintf(`{"product_id": %d, "quantity": 4}`, f.product.ID)
	if code := f.do(t, http.MethodPost, "/api/procurement/requests", body, &created); code != http.StatusOK {
		t.Fatalf("Expected 200 for an existing open request, got %d", code)
	}
	if created.Created {
		t.Error("Expected created=false")
	}
	reqID := created.Request.ID

	var outreach procurement.OutreachResult
	if code := f.do(t, http.MethodPost, "/api/procurement/"+reqID.String()+"/start-outreach", "", &outreach); code != http.StatusOK {
		t.Fatalf("Expected 200 from outreach, got %d", code)
	}
	if outreach.ConversationsCreated != 2 || outreach.MessagesQueued != 2 {
		t.Errorf("Expected 2 conversations and 2 messages, got %+v", outreach)
	}

	var q1, q2 procurement.RankedQuote
	quote := `{"supplier_id": %d, "price_per_unit": "%s", "available": %t, "delivery_days": 3}`
	if code := f.do(t, http.MethodPost, "/api/procurement/"+reqID.String()+"/quotes", fmt.Sprintf(quote, f.s1.ID, "10.00", true), &q1); code != http.StatusCreated {
		t.Fatalf("Expected 201 from add quote, got %d", code)
	}
	if code := f.do(t, http.MethodPost, "/api/procurement/"+reqID.String()+"/quotes", fmt.Sprintf(quote, f.s2.ID, "8.00", false), &q2); code != http.StatusCreated {
		t.Fatalf("Expected 201 from add quote, got %d", code)
	}

	var ranked []procurement.RankedQuote
	if code := f.do(t, http.MethodGet, "/api/procurement/"+reqID.String()+"/quotes", "", &ranked); code != http.StatusOK {
		t.Fatalf("Expected 200 from list quotes, got %d", code)
	}
	if len(ranked) != 2 || ranked[0].ID != q1.ID || ranked[1].Eligible {
		t.Errorf("Expected the available quote first and the unavailable one ineligible, got %+v", ranked)
	}

	var rejected map[string]string
	code := f.do(t, http.MethodPost, "/api/procurement/"+reqID.String()+"/recommend", fmt.Sprintf(`{"quote_id": %q}`, q2.ID), &rejected)
	if code != http.StatusConflict {
		t.Fatalf("Expected 409 recommending an unavailable quote, got %d", code)
	}
	if rejected["reason"] == "" {
		t.Error("Expected a rejection reason")
	}

	var rec procurement.RecommendResult
	if code := f.do(t, http.MethodPost, "/api/procurement/"+reqID.String()+"/recommend", "", &rec); code != http.StatusOK {
		t.Fatalf("Expected 200 from recommend, got %d", code)
	}
	if rec.Quote.ID != q1.ID || rec.Request.Status != model.StatusRecommended {
		t.Errorf("Expected q1 recommended, got quote %v status %s", rec.Quote.ID, rec.Request.Status)
	}

	var done model.ProcurementRequest
	if code := f.do(t, http.MethodPost, "/api/procurement/"+reqID.String()+"/status", `{"status": "ordered_external"}`, &done); code != http.StatusOK {
		t.Fatalf("Expected 200 from status change, got %d", code)
	}
	if done.Status != model.StatusOrderedExternal {
		t.Errorf("Expected ordered_external, got %s", done.Status)
	}
}

func TestErrorMapping(t *testing.T) {
	f := newAPI(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"bad id", http.MethodGet, "/api/procurement/not-a-uuid", "", http.StatusBadRequest},
		{"unknown request", http.MethodGet, "/api/procurement/00000000-0000-0000-0000-000000000001", "", http.StatusNotFound},
		{"zero quantity", http.MethodPost, "/api/procurement/requests", fmt.Sprintf(`{"product_id": %d, "quantity": 0}`, f.product.ID), http.StatusBadRequest},
		{"malformed body", http.MethodPost, "/api/procurement/requests", `{"product_id":`, http.StatusBadRequest},
		{"bad urgency", http.MethodPut, "/api/procurement/settings", `{"scoring_weights": {"price": 1}, "default_urgency": "asap"}`, http.StatusBadRequest},
		{"same pair suppliers", http.MethodPost, "/api/procurement/supplier-pairs", fmt.Sprintf(`{"scope": "product", "product_id": %d, "supplier_a_id": %d, "supplier_b_id": %d}`, f.product.ID, f.s1.ID, f.s1.ID), http.StatusBadRequest},
		{"selection needs product", http.MethodGet, "/api/procurement/selection", "", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code := f.do(t, tt.method, tt.path, tt.body, nil); code != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, code)
			}
		})
	}
}

func TestRequiresToken(t *testing.T) {
	f := newAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/api/procurement/settings", nil)
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without a token, got %d", rec.Code)
	}
}

func TestSettingsAndPairsOverHTTP(t *testing.T) {
	f := newAPI(t)

	var settings model.ProcurementSettings
	if code := f.do(t, http.MethodGet, "/api/procurement/settings", "", &settings); code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", code)
	}
	if settings.Weights() != model.DefaultScoringWeights {
		t.Errorf("Expected default weights, got %+v", settings.Weights())
	}

	body := `{"approval_required": true, "max_auto_order_amount": "100", "scoring_weights": {"price": 0.5, "delivery": 0.5}, "default_urgency": "high"}`
	if code := f.do(t, http.MethodPut, "/api/procurement/settings", body, &settings); code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", code)
	}
	if !settings.ApprovalRequired || settings.DefaultUrgency != model.UrgencyHigh {
		t.Errorf("Expected updated settings, got %+v", settings)
	}

	var pair model.SupplierPair
	pairBody := fmt.Sprintf(`{"scope": "product", "product_id": %d, "supplier_a_id": %d, "supplier_b_id": %d}`, f.product.ID, f.s2.ID, f.s1.ID)
	if code := f.do(t, http.MethodPost, "/api/procurement/supplier-pairs", pairBody, &pair); code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", code)
	}
	if code := f.do(t, http.MethodPost, "/api/procurement/supplier-pairs", pairBody, &pair); code != http.StatusOK {
		t.Fatalf("Expected 200 when updating the pair, got %d", code)
	}

	var sel procurement.Selection
	if code := f.do(t, http.MethodGet, fmt.Sprintf("/api/procurement/selection?product_id=%d", f.product.ID), "", &sel); code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", code)
	}

	var pairs []model.SupplierPair
	if code := f.do(t, http.MethodGet, "/api/procurement/supplier-pairs?active=true", "", &pairs); code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", code)
	}
	if len(pairs) != 1 {
		t.Fatalf("Expected 1 active pair, got %d", len(pairs))
	}

	if code := f.do(t, http.MethodDelete, "/api/procurement/supplier-pairs/"+pair.ID.String(), "", &pair); code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", code)
	}
	if pair.IsActive {
		t.Error("Expected the pair to be inactive")
	}
}

func TestConversationRoutes(t *testing.T) {
	f := newAPI(t)

	var created createResponse
	body := fmt.Sprintf(`{"product_id": %d, "quantity": 2}`, f.product.ID)
	if code := f.do(t, http.MethodPost, "/api/procurement/requests", body, &created); code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", code)
	}
	reqID := created.Request.ID.String()
	if code := f.do(t, http.MethodPost, "/api/procurement/"+reqID+"/start-outreach", "", nil); code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", code)
	}

	var convs []model.ProcurementConversation
	if code := f.do(t, http.MethodGet, "/api/procurement/"+reqID+"/conversations", "", &convs); code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", code)
	}
	if len(convs) != 2 {
		t.Fatalf("Expected 2 conversations, got %d", len(convs))
	}
	convPath := "/api/procurement/conversations/" + convs[0].ID.String()

	if code := f.do(t, http.MethodPost, convPath+"/incoming", `{"text": "10 per unit"}`, nil); code != http.StatusCreated {
		t.Errorf("Expected 201 for incoming, got %d", code)
	}
	if code := f.do(t, http.MethodPost, convPath+"/mode", `{"mode": "human"}`, nil); code != http.StatusOK {
		t.Errorf("Expected 200 for mode, got %d", code)
	}

	var sent model.ProcurementMessage
	if code := f.do(t, http.MethodPost, convPath+"/messages", `{"text": "Can you do 9?"}`, &sent); code != http.StatusCreated {
		t.Fatalf("Expected 201 for send, got %d", code)
	}

	var delivered model.ProcurementMessage
	if code := f.do(t, http.MethodPost, "/api/procurement/messages/"+sent.ID.String()+"/delivery", `{"status": "sent", "provider_message_id": "wa-9"}`, &delivered); code != http.StatusOK {
		t.Fatalf("Expected 200 for delivery, got %d", code)
	}
	if delivered.Status != model.MessageSent {
		t.Errorf("Expected sent, got %s", delivered.Status)
	}

	var msgs []model.ProcurementMessage
	if code := f.do(t, http.MethodGet, convPath+"/messages", "", &msgs); code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", code)
	}
	if len(msgs) != 3 {
		t.Errorf("Expected opening, reply and follow-up, got %d", len(msgs))
	}

	if code := f.do(t, http.MethodPost, convPath+"/close", "", nil); code != http.StatusOK {
		t.Errorf("Expected 200 for close, got %d", code)
	}
	if code := f.do(t, http.MethodPost, convPath+"/messages", `{"text": "still there?"}`, nil); code != http.StatusConflict {
		t.Errorf("Expected 409 on a closed conversation, got %d", code)
	}
}

func TestHealthCheck(t *testing.T) {
	f := newAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/health?check=db", nil)
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"db_status":"ok"`) {
		t.Errorf("Expected db_status ok, got %s", rec.Body.String())
	}
}
