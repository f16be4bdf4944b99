package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"procurement-service/internal/model"
	"procurement-service/internal/repository"
	"procurement-service/internal/repository/testutil"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

func newRequest(tenantID, productID uint) *model.ProcurementRequest {
	return &model.ProcurementRequest{
		TenantID:          tenantID,
		ProductID:         productID,
		RequestedQuantity: 3,
		TriggerType:       model.TriggerBelowThreshold,
		Urgency:           model.UrgencyNormal,
		Status:            model.StatusDraft,
		CreatedBy:         "test",
	}
}

func TestOpenRequestUniqueIndex(t *testing.T) {
	ctx := context.Background()
	store, db := testutil.Store(t)
	tenant := testutil.SeedTenant(t, db, "Acme")
	product := testutil.SeedProduct(t, db, model.Product{TenantID: tenant.ID, Name: "Widget"})

	first := newRequest(tenant.ID, product.ID)
	if err := store.CreateRequest(ctx, first); err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}

	err := store.CreateRequest(ctx, newRequest(tenant.ID, product.ID))
	if !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("Expected ErrDuplicate for second open request, got %v", err)
	}

	ok, err := store.TransitionRequest(ctx, first.ID, []model.RequestStatus{model.StatusDraft}, model.StatusCancelled, nil)
	if err != nil || !ok {
		t.Fatalf("TransitionRequest: ok=%v err=%v", ok, err)
	}

	if err := store.CreateRequest(ctx, newRequest(tenant.ID, product.ID)); err != nil {
		t.Fatalf("CreateRequest after cancel: %v", err)
	}
}

func TestTransitionRequestIsConditional(t *testing.T) {
	ctx := context.Background()
	store, db := testutil.Store(t)
	tenant := testutil.SeedTenant(t, db, "Acme")
	product := testutil.SeedProduct(t, db, model.Product{TenantID: tenant.ID, Name: "Widget"})

	req := newRequest(tenant.ID, product.ID)
	if err := store.CreateRequest(ctx, req); err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}

	ok, err := store.TransitionRequest(ctx, req.ID, []model.RequestStatus{model.StatusRecommended}, model.StatusOrderedExternal, nil)
	if err != nil {
		t.Fatalf("TransitionRequest: %v", err)
	}
	if ok {
		t.Error("Expected transition from a non-matching status to be refused")
	}

	got, err := store.GetRequest(ctx, req.ID)
	if err != nil {
		t.Fatalf("GetRequest: %v", err)
	}
	if got.Status != model.StatusDraft {
		t.Errorf("Expected status draft, got %s", got.Status)
	}
}

func TestFindOpenRequest(t *testing.T) {
	ctx := context.Background()
	store, db := testutil.Store(t)
	tenant := testutil.SeedTenant(t, db, "Acme")
	product := testutil.SeedProduct(t, db, model.Product{TenantID: tenant.ID, Name: "Widget"})

	got, err := store.FindOpenRequest(ctx, tenant.ID, product.ID)
	if err != nil {
		t.Fatalf("FindOpenRequest: %v", err)
	}
	if got != nil {
		t.Fatalf("Expected no open request, got %v", got.ID)
	}

	req := newRequest(tenant.ID, product.ID)
	if err := store.CreateRequest(ctx, req); err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}
	got, err = store.FindOpenRequest(ctx, tenant.ID, product.ID)
	if err != nil {
		t.Fatalf("FindOpenRequest: %v", err)
	}
	if got == nil || got.ID != req.ID {
		t.Fatalf("Expected open request %v, got %v", req.ID, got)
	}
}

func TestCreateConversationIfAbsent(t *testing.T) {
	ctx := context.Background()
	store, db := testutil.Store(t)
	tenant := testutil.SeedTenant(t, db, "Acme")
	product := testutil.SeedProduct(t, db, model.Product{TenantID: tenant.ID, Name: "Widget"})
	supplier := testutil.SeedSupplier(t, db, tenant.ID, "S1")

	req := newRequest(tenant.ID, product.ID)
	if err := store.CreateRequest(ctx, req); err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}

	newConv := func() *model.ProcurementConversation {
		return &model.ProcurementConversation{
			TenantID:             tenant.ID,
			ProductID:            product.ID,
			ProcurementRequestID: req.ID,
			SupplierID:           supplier.ID,
			Status:               model.ConversationActive,
			Mode:                 model.ModeBot,
		}
	}

	created, err := store.CreateConversationIfAbsent(ctx, newConv())
	if err != nil || !created {
		t.Fatalf("first CreateConversationIfAbsent: created=%v err=%v", created, err)
	}
	created, err = store.CreateConversationIfAbsent(ctx, newConv())
	if err != nil {
		t.Fatalf("second CreateConversationIfAbsent: %v", err)
	}
	if created {
		t.Error("Expected second insert for the same pair to be a no-op")
	}

	convs, err := store.ListConversations(ctx, req.ID)
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(convs) != 1 {
		t.Errorf("Expected 1 conversation, got %d", len(convs))
	}
}

func TestUpdateMessageStatusOnlyFromExpected(t *testing.T) {
	ctx := context.Background()
	store, _ := testutil.Store(t)

	msg := &model.ProcurementMessage{
		ConversationID: uuid.New(),
		Direction:      model.DirectionOutgoing,
		Text:           "hello",
		Status:         model.MessageQueued,
	}
	if err := store.CreateMessage(ctx, msg); err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}

	ok, err := store.UpdateMessageStatus(ctx, msg.ID, model.MessageQueued, map[string]interface{}{"status": model.MessageSent})
	if err != nil || !ok {
		t.Fatalf("UpdateMessageStatus: ok=%v err=%v", ok, err)
	}
	ok, err = store.UpdateMessageStatus(ctx, msg.ID, model.MessageQueued, map[string]interface{}{"status": model.MessageFailed})
	if err != nil {
		t.Fatalf("UpdateMessageStatus: %v", err)
	}
	if ok {
		t.Error("Expected update from a stale status to be refused")
	}

	queued, err := store.ListQueuedOutgoing(ctx, 10)
	if err != nil {
		t.Fatalf("ListQueuedOutgoing: %v", err)
	}
	if len(queued) != 0 {
		t.Errorf("Expected no queued messages, got %d", len(queued))
	}
}

func TestClaimQueuedOutgoing(t *testing.T) {
	ctx := context.Background()
	store, db := testutil.Store(t)
	conversationID := uuid.New()

	var outgoing []*model.ProcurementMessage
	for _, text := range []string{"first", "second"} {
		msg := &model.ProcurementMessage{
			ConversationID: conversationID,
			Direction:      model.DirectionOutgoing,
			Text:           text,
			Status:         model.MessageQueued,
		}
		if err := store.CreateMessage(ctx, msg); err != nil {
			t.Fatalf("CreateMessage: %v", err)
		}
		outgoing = append(outgoing, msg)
	}
	incoming := &model.ProcurementMessage{
		ConversationID: conversationID,
		Direction:      model.DirectionIncoming,
		Text:           "reply",
		Status:         model.MessageSent,
	}
	if err := store.CreateMessage(ctx, incoming); err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}

	leaseStart := time.Now().Add(-time.Minute)
	claimed, err := store.ClaimQueuedOutgoing(ctx, 10, leaseStart)
	if err != nil {
		t.Fatalf("ClaimQueuedOutgoing: %v", err)
	}
	if len(claimed) != 2 {
		t.Fatalf("Expected 2 claimed messages, got %d", len(claimed))
	}
	for _, msg := range claimed {
		if msg.Status != model.MessageSending {
			t.Errorf("Expected claimed message to be sending, got %s", msg.Status)
		}
	}

	again, err := store.ClaimQueuedOutgoing(ctx, 10, leaseStart)
	if err != nil {
		t.Fatalf("ClaimQueuedOutgoing: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("Expected a fresh claim to hold, got %d messages", len(again))
	}

	stored, err := store.GetMessage(ctx, outgoing[0].ID)
	if err != nil {
		t.Fatalf("GetMessage: %v", err)
	}
	if stored.Status != model.MessageSending {
		t.Errorf("Expected stored status sending, got %s", stored.Status)
	}

	if err := db.Model(&model.ProcurementMessage{}).
		Where("id = ?", outgoing[1].ID).
		Update("updated_at", time.Now().Add(-time.Hour)).Error; err != nil {
		t.Fatalf("Update: %v", err)
	}
	reclaimed, err := store.ClaimQueuedOutgoing(ctx, 10, leaseStart)
	if err != nil {
		t.Fatalf("ClaimQueuedOutgoing: %v", err)
	}
	if len(reclaimed) != 1 || reclaimed[0].ID != outgoing[1].ID {
		t.Errorf("Expected only the expired claim to be taken again, got %+v", reclaimed)
	}
}

func TestLockRequest(t *testing.T) {
	ctx := context.Background()
	store, db := testutil.Store(t)
	tenant := testutil.SeedTenant(t, db, "Acme")
	product := testutil.SeedProduct(t, db, model.Product{TenantID: tenant.ID, Name: "Widget"})

	req := newRequest(tenant.ID, product.ID)
	if err := store.CreateRequest(ctx, req); err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}

	err := store.Transaction(ctx, func(tx repository.Store) error {
		locked, err := tx.LockRequest(ctx, req.ID)
		if err != nil {
			return err
		}
		if locked.ID != req.ID || locked.Status != model.StatusDraft {
			t.Errorf("Expected the draft request, got %+v", locked)
		}
		if _, err := tx.LockRequest(ctx, uuid.New()); !errors.Is(err, repository.ErrNotFound) {
			t.Errorf("Expected ErrNotFound for an unknown id, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Transaction: %v", err)
	}
}

func TestSupplierHistory(t *testing.T) {
	ctx := context.Background()
	store, db := testutil.Store(t)
	tenant := testutil.SeedTenant(t, db, "Acme")
	supplier := testutil.SeedSupplier(t, db, tenant.ID, "S1")

	closeWith := func(status model.RequestStatus) {
		product := testutil.SeedProduct(t, db, model.Product{TenantID: tenant.ID, Name: "Widget"})
		req := newRequest(tenant.ID, product.ID)
		if err := store.CreateRequest(ctx, req); err != nil {
			t.Fatalf("CreateRequest: %v", err)
		}
		quote := &model.SupplierQuote{
			ProcurementRequestID: req.ID,
			SupplierID:           supplier.ID,
			PricePerUnit:         decimal.NewFromInt(10),
			Available:            true,
			Currency:             "ILS",
			Source:               model.QuoteManual,
		}
		if err := store.CreateQuote(ctx, quote); err != nil {
			t.Fatalf("CreateQuote: %v", err)
		}
		extra := map[string]interface{}{"recommended_quote_id": quote.ID}
		if ok, err := store.TransitionRequest(ctx, req.ID, nil, status, extra); err != nil || !ok {
			t.Fatalf("TransitionRequest: ok=%v err=%v", ok, err)
		}
	}

	closeWith(model.StatusOrderedExternal)
	closeWith(model.StatusResolvedExternal)
	closeWith(model.StatusCancelled)

	history, err := store.SupplierHistory(ctx, tenant.ID, []uint{supplier.ID}, uuid.New())
	if err != nil {
		t.Fatalf("SupplierHistory: %v", err)
	}
	h := history[supplier.ID]
	if h.Total != 3 {
		t.Errorf("Expected total 3, got %d", h.Total)
	}
	if h.Finalized != 2 {
		t.Errorf("Expected finalized 2, got %d", h.Finalized)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, db := testutil.Store(t)
	tenant := testutil.SeedTenant(t, db, "Acme")

	got, err := store.GetSettings(ctx, tenant.ID)
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	if got != nil {
		t.Fatal("Expected no settings before provisioning")
	}

	settings := &model.ProcurementSettings{
		TenantID:       tenant.ID,
		ScoringWeights: datatypes.NewJSONType(model.DefaultScoringWeights),
		DefaultUrgency: model.UrgencyNormal,
	}
	if err := store.CreateSettingsIfAbsent(ctx, settings); err != nil {
		t.Fatalf("CreateSettingsIfAbsent: %v", err)
	}
	dup := *settings
	dup.DefaultUrgency = model.UrgencyHigh
	if err := store.CreateSettingsIfAbsent(ctx, &dup); err != nil {
		t.Fatalf("second CreateSettingsIfAbsent: %v", err)
	}

	got, err = store.GetSettings(ctx, tenant.ID)
	if err != nil || got == nil {
		t.Fatalf("GetSettings: %v", err)
	}
	if got.DefaultUrgency != model.UrgencyNormal {
		t.Errorf("Expected first writer's urgency normal, got %s", got.DefaultUrgency)
	}
	if got.Weights() != model.DefaultScoringWeights {
		t.Errorf("Expected default weights, got %+v", got.Weights())
	}

	got.ApprovalRequired = true
	got.MaxAutoOrderAmount = decimal.NewNullDecimal(decimal.NewFromInt(500))
	if err := store.SaveSettings(ctx, got); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}
	got, err = store.GetSettings(ctx, tenant.ID)
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	if !got.ApprovalRequired {
		t.Error("Expected approval_required to be saved")
	}
	if !got.MaxAutoOrderAmount.Valid || !got.MaxAutoOrderAmount.Decimal.Equal(decimal.NewFromInt(500)) {
		t.Errorf("Expected max auto order 500, got %v", got.MaxAutoOrderAmount)
	}
}

func TestListLowStockProducts(t *testing.T) {
	ctx := context.Background()
	store, db := testutil.Store(t)
	tenant := testutil.SeedTenant(t, db, "Acme")

	low := testutil.SeedProduct(t, db, model.Product{TenantID: tenant.ID, Name: "Low", Stock: 3, LowStockThreshold: 5})
	testutil.SeedProduct(t, db, model.Product{TenantID: tenant.ID, Name: "Fine", Stock: 10, LowStockThreshold: 5})
	testutil.SeedProduct(t, db, model.Product{TenantID: tenant.ID, Name: "Untracked", Stock: 0, LowStockThreshold: 0})

	products, err := store.ListLowStockProducts(ctx, tenant.ID)
	if err != nil {
		t.Fatalf("ListLowStockProducts: %v", err)
	}
	if len(products) != 1 || products[0].ID != low.ID {
		t.Fatalf("Expected only product %d, got %+v", low.ID, products)
	}
}

func TestFindActivePair(t *testing.T) {
	ctx := context.Background()
	store, db := testutil.Store(t)
	tenant := testutil.SeedTenant(t, db, "Acme")
	category := testutil.SeedCategory(t, db, tenant.ID, "Fasteners")

	pair := &model.SupplierPair{
		TenantID:    tenant.ID,
		Scope:       model.ScopeCategory,
		CategoryID:  &category.ID,
		SupplierAID: 1,
		SupplierBID: 2,
		Strategy:    model.StrategyBalanced,
		IsActive:    true,
	}
	if err := store.CreatePair(ctx, pair); err != nil {
		t.Fatalf("CreatePair: %v", err)
	}

	got, err := store.FindActivePair(ctx, tenant.ID, model.ScopeCategory, category.ID)
	if err != nil || got == nil {
		t.Fatalf("FindActivePair: got=%v err=%v", got, err)
	}
	if got.ID != pair.ID {
		t.Errorf("Expected pair %v, got %v", pair.ID, got.ID)
	}

	got, err = store.FindActivePair(ctx, tenant.ID, model.ScopeProduct, category.ID)
	if err != nil {
		t.Fatalf("FindActivePair: %v", err)
	}
	if got != nil {
		t.Error("Expected no product-scoped pair")
	}
}
