package procurement

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"procurement-service/internal/model"
	"procurement-service/internal/repository"
	"procurement-service/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	neutralComponent = 0.5
	scorePrecision   = 10000
)

// ScoreBreakdown is one quote's component values and weighted total
type ScoreBreakdown struct {
	Price            float64 `json:"price"`
	Delivery         float64 `json:"delivery"`
	SupplierPriority float64 `json:"supplier_priority"`
	Reliability      float64 `json:"reliability"`
	Total            float64 `json:"total"`
}

// ScoringContext carries the per-request signals a score depends on besides the quotes
type ScoringContext struct {
	Weights model.ScoringWeights
	// Priorities is the configured priority of each supplier for the product, lower is better
	Priorities map[uint]int
	History    map[uint]repository.SupplierHistory
}

// ScoreQuotes scores every quote of one request against the whole set. Unavailable
// quotes are scored too but take nothing on the price axis.
func ScoreQuotes(quotes []model.SupplierQuote, sc ScoringContext) map[uuid.UUID]ScoreBreakdown {
	out := make(map[uuid.UUID]ScoreBreakdown, len(quotes))

	var (
		minPrice decimal.Decimal
		hasPrice bool
		minDays  = -1
	)
	for _, q := range quotes {
		if q.Available && (!hasPrice || q.PricePerUnit.LessThan(minPrice)) {
			minPrice, hasPrice = q.PricePerUnit, true
		}
		if q.DeliveryDays != nil && *q.DeliveryDays >= 0 && (minDays < 0 || *q.DeliveryDays < minDays) {
			minDays = *q.DeliveryDays
		}
	}

	delivery := make(map[uuid.UUID]float64, len(quotes))
	var stated []float64
	for _, q := range quotes {
		if q.DeliveryDays == nil || *q.DeliveryDays < 0 {
			continue
		}
		v := 1.0
		if d := *q.DeliveryDays; d > 0 {
			v = float64(minDays) / float64(d)
		}
		delivery[q.ID] = v
		stated = append(stated, v)
	}
	missingDelivery := neutralDelivery(stated)

	for _, q := range quotes {
		var b ScoreBreakdown

		if q.Available {
			b.Price = 1
			if q.PricePerUnit.IsPositive() {
				b.Price, _ = minPrice.Div(q.PricePerUnit).Float64()
			}
		}

		if v, ok := delivery[q.ID]; ok {
			b.Delivery = v
		} else {
			b.Delivery = missingDelivery
		}

		b.SupplierPriority = neutralComponent
		if p, ok := sc.Priorities[q.SupplierID]; ok {
			if p < 0 {
				p = 0
			}
			b.SupplierPriority = 1 / (1 + float64(p))
		}

		b.Reliability = neutralComponent
		if h, ok := sc.History[q.SupplierID]; ok && h.Total > 0 {
			b.Reliability = float64(h.Finalized+1) / float64(h.Total+2)
		}

		w := sc.Weights
		b.Total = round(w.Price*b.Price + w.Delivery*b.Delivery + w.SupplierPriority*b.SupplierPriority + w.Reliability*b.Reliability)
		out[q.ID] = b
	}
	return out
}

// neutralDelivery is the delivery component for a quote that states no delivery time.
// It always lies strictly between the best and worst stated values: the median when that
// holds, otherwise the midpoint of the two. With fewer than two distinct stated values
// there is no range, so it is neutralComponent.
func neutralDelivery(stated []float64) float64 {
	if len(stated) == 0 {
		return neutralComponent
	}
	sorted := append([]float64(nil), stated...)
	sort.Float64s(sorted)
	lo, hi := sorted[0], sorted[len(sorted)-1]
	if lo == hi {
		return neutralComponent
	}

	mid := len(sorted) / 2
	m := sorted[mid]
	if len(sorted)%2 == 0 {
		m = (sorted[mid-1] + sorted[mid]) / 2
	}
	if m <= lo || m >= hi {
		return (lo + hi) / 2
	}
	return m
}

func round(v float64) float64 {
	return math.Round(v*scorePrecision) / scorePrecision
}

// RankedQuote is a scored quote in ranking order
type RankedQuote struct {
	model.SupplierQuote
	Rank      int            `json:"rank"`
	Breakdown ScoreBreakdown `json:"breakdown"`
	// Eligible is false for unavailable quotes, which can never be recommended
	Eligible bool `json:"eligible"`
}

// Rank orders quotes by score, highest first; the earliest submission wins a tie
func Rank(quotes []model.SupplierQuote, scores map[uuid.UUID]ScoreBreakdown) []RankedQuote {
	out := make([]RankedQuote, 0, len(quotes))
	for _, q := range quotes {
		b := scores[q.ID]
		total := b.Total
		q.Score = &total
		out = append(out, RankedQuote{SupplierQuote: q, Breakdown: b, Eligible: q.Available})
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Breakdown.Total != b.Breakdown.Total {
			return a.Breakdown.Total > b.Breakdown.Total
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID.String() < b.ID.String()
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// supplierPriorities collects the configured priority of each supplier for the request's
// product. The supplier pair, when one chose the suppliers, outranks catalog preferences.
func supplierPriorities(ctx context.Context, store repository.Store, req *model.ProcurementRequest, product *model.Product) (map[uint]int, error) {
	out := make(map[uint]int)
	set := func(supplierID uint, priority int) {
		if _, ok := out[supplierID]; !ok {
			out[supplierID] = priority
		}
	}

	if req.SupplierPairID != nil {
		pair, err := store.GetPair(ctx, req.TenantID, *req.SupplierPairID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("load supplier pair: %w", err)
		}
		if pair != nil {
			set(pair.SupplierAID, 0)
			set(pair.SupplierBID, 1)
		}
	}

	if product.PreferredSupplierID != nil {
		set(*product.PreferredSupplierID, 0)
	}

	in, err := loadSelectionInput(ctx, store, product)
	if err != nil {
		return nil, err
	}
	prefs := append([]model.CategorySupplierPreference(nil), in.CategoryPreferences...)
	sort.SliceStable(prefs, func(i, j int) bool { return prefs[i].Priority < prefs[j].Priority })
	for _, p := range prefs {
		set(p.SupplierID, p.Priority)
	}
	mappings := append([]model.BrandSupplierMapping(nil), in.BrandMappings...)
	sort.SliceStable(mappings, func(i, j int) bool { return mappings[i].Priority < mappings[j].Priority })
	for _, m := range mappings {
		set(m.SupplierID, m.Priority)
	}
	candidates := append([]repository.BrandCandidate(nil), in.CategoryCandidates...)
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Priority < candidates[j].Priority })
	for _, c := range candidates {
		set(c.SupplierID, c.Priority)
	}
	return out, nil
}

// rankRequest scores the request's current quotes without writing anything
func (s *Service) rankRequest(ctx context.Context, store repository.Store, req *model.ProcurementRequest) ([]RankedQuote, error) {
	quotes, err := store.ListQuotes(ctx, req.ID)
	if err != nil {
		return nil, fmt.Errorf("list quotes: %w", err)
	}
	if len(quotes) == 0 {
		return []RankedQuote{}, nil
	}

	settings, err := s.settingsFor(ctx, store, req.TenantID)
	if err != nil {
		return nil, err
	}
	product, err := store.GetProduct(ctx, req.TenantID, req.ProductID)
	if err != nil {
		return nil, fmt.Errorf("load product: %w", err)
	}
	priorities, err := supplierPriorities(ctx, store, req, product)
	if err != nil {
		return nil, err
	}

	supplierIDs := make([]uint, 0, len(quotes))
	seen := make(map[uint]bool, len(quotes))
	for _, q := range quotes {
		if !seen[q.SupplierID] {
			seen[q.SupplierID] = true
			supplierIDs = append(supplierIDs, q.SupplierID)
		}
	}
	history, err := store.SupplierHistory(ctx, req.TenantID, supplierIDs, req.ID)
	if err != nil {
		// Reliability degrades to neutral rather than failing the score
		s.log.Warn("Supplier history unavailable", zap.String("request_id", req.ID.String()), zap.Error(err))
		history = nil
	}

	scores := ScoreQuotes(quotes, ScoringContext{
		Weights:    settings.Weights(),
		Priorities: priorities,
		History:    history,
	})
	return Rank(quotes, scores), nil
}

// rescore recomputes and persists the score of every quote on the request
func (s *Service) rescore(ctx context.Context, store repository.Store, req *model.ProcurementRequest) ([]RankedQuote, error) {
	ranked, err := s.rankRequest(ctx, store, req)
	if err != nil {
		return nil, err
	}
	scores := make(map[uuid.UUID]float64, len(ranked))
	for _, r := range ranked {
		scores[r.ID] = r.Breakdown.Total
	}
	if err := store.UpdateQuoteScores(ctx, scores); err != nil {
		return nil, fmt.Errorf("update quote scores: %w", err)
	}
	return ranked, nil
}

// QuoteInput is a supplier's answer as entered by a user or parsed from a message
type QuoteInput struct {
	SupplierID   uint              `json:"supplier_id"`
	PricePerUnit decimal.Decimal   `json:"price_per_unit"`
	Available    bool              `json:"available"`
	DeliveryDays *int              `json:"delivery_days,omitempty"`
	Currency     string            `json:"currency,omitempty"`
	Source       model.QuoteSource `json:"source,omitempty"`
	RawMessage   *string           `json:"raw_message,omitempty"`
}

func (in *QuoteInput) normalize(defaultCurrency string) error {
	if in.SupplierID == 0 {
		return validationErr("supplier_id is required")
	}
	if in.PricePerUnit.IsNegative() {
		return validationErr("price_per_unit must not be negative")
	}
	if in.DeliveryDays != nil && *in.DeliveryDays < 0 {
		return validationErr("delivery_days must not be negative")
	}
	if in.Source == "" {
		in.Source = model.QuoteManual
	}
	if !in.Source.Valid() {
		return validationErr("unknown quote source %q", in.Source)
	}
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	if in.Currency == "" {
		in.Currency = defaultCurrency
	}
	if len(in.Currency) != 3 {
		return validationErr("currency must be a 3-letter code, got %q", in.Currency)
	}
	return nil
}

// AddQuote records a quote, rescores every quote on the request, and moves a request that
// was waiting for quotes to quotes_received
func (s *Service) AddQuote(ctx context.Context, tenantID uint, requestID uuid.UUID, in QuoteInput) (quote *RankedQuote, err error) {
	ctx, span := s.startSpan(ctx, "AddQuote",
		attribute.String("request_id", requestID.String()), attribute.Int64("supplier_id", int64(in.SupplierID)))
	defer endSpan(span, &err)

	if err := in.normalize(s.defaults.Currency); err != nil {
		return nil, err
	}

	var (
		ranked   []RankedQuote
		newQuote *model.SupplierQuote
		advanced bool
	)
	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		req, err := lockRequest(ctx, tx, tenantID, requestID)
		if err != nil {
			return err
		}
		if req.Status.IsTerminal() {
			return invariantErr("request is %s; quotes are closed", req.Status)
		}

		newQuote = &model.SupplierQuote{
			ProcurementRequestID: req.ID,
			SupplierID:           in.SupplierID,
			PricePerUnit:         in.PricePerUnit.Round(2),
			Available:            in.Available,
			DeliveryDays:         in.DeliveryDays,
			Currency:             in.Currency,
			Source:               in.Source,
			RawMessage:           in.RawMessage,
		}
		if err := tx.CreateQuote(ctx, newQuote); err != nil {
			return fmt.Errorf("create quote: %w", err)
		}

		ranked, err = s.rescore(ctx, tx, req)
		if err != nil {
			return err
		}

		if req.Status == model.StatusWaitingForQuotes {
			advanced, err = tx.TransitionRequest(ctx, req.ID,
				[]model.RequestStatus{model.StatusWaitingForQuotes}, model.StatusQuotesReceived, nil)
			if err != nil {
				return fmt.Errorf("advance request: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordQuote(string(in.Source))
	if advanced {
		s.metrics.RecordTransition(string(model.StatusQuotesReceived))
	}

	for i := range ranked {
		if ranked[i].ID == newQuote.ID {
			quote = &ranked[i]
			break
		}
	}
	if quote == nil {
		return nil, fmt.Errorf("quote %s missing after rescore", newQuote.ID)
	}

	logger.Ctx(ctx, s.log).Info("Quote recorded",
		zap.Uint("tenant_id", tenantID),
		zap.String("request_id", requestID.String()),
		zap.String("quote_id", newQuote.ID.String()),
		zap.Uint("supplier_id", in.SupplierID),
		zap.String("price_per_unit", newQuote.PricePerUnit.StringFixed(2)),
		zap.Bool("available", in.Available),
		zap.Float64("score", quote.Breakdown.Total),
		zap.Int("rank", quote.Rank),
		zap.Int("quotes", len(ranked)))
	return quote, nil
}

// RescoreAll recomputes every quote score on the request with the current weights
func (s *Service) RescoreAll(ctx context.Context, tenantID uint, requestID uuid.UUID) (ranked []RankedQuote, err error) {
	ctx, span := s.startSpan(ctx, "RescoreAll", attribute.String("request_id", requestID.String()))
	defer endSpan(span, &err)

	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		req, err := lockRequest(ctx, tx, tenantID, requestID)
		if err != nil {
			return err
		}
		ranked, err = s.rescore(ctx, tx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ranked, nil
}

// RankedQuotes returns the request's quotes in ranking order
func (s *Service) RankedQuotes(ctx context.Context, tenantID uint, requestID uuid.UUID) ([]RankedQuote, error) {
	req, err := loadRequest(ctx, s.store, tenantID, requestID)
	if err != nil {
		return nil, err
	}
	return s.rankRequest(ctx, s.store, req)
}

// RecommendResult is the outcome of a recommend action
type RecommendResult struct {
	Request           *model.ProcurementRequest `json:"request"`
	Quote             *model.SupplierQuote      `json:"quote"`
	OrderTotal        decimal.Decimal           `json:"order_total"`
	AutoOrderEligible bool                      `json:"auto_order_eligible"`
}

// Recommend marks a quote as the request's recommendation. A nil quoteID picks the
// best-ranked available quote. Status and recommended_quote_id change together.
func (s *Service) Recommend(ctx context.Context, tenantID uint, requestID uuid.UUID, quoteID *uuid.UUID, actor string) (res *RecommendResult, err error) {
	ctx, span := s.startSpan(ctx, "Recommend", attribute.String("request_id", requestID.String()))
	defer endSpan(span, &err)

	res = &RecommendResult{}
	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		req, err := lockRequest(ctx, tx, tenantID, requestID)
		if err != nil {
			return err
		}
		if !req.Status.IsOpen() {
			return invariantErr("request is %s; it can no longer be recommended", req.Status)
		}

		var quote *model.SupplierQuote
		if quoteID == nil {
			ranked, err := s.rankRequest(ctx, tx, req)
			if err != nil {
				return err
			}
			for i := range ranked {
				if ranked[i].Eligible {
					quote = &ranked[i].SupplierQuote
					break
				}
			}
			if quote == nil {
				return invariantErr("request has no available quote to recommend")
			}
		} else {
			quote, err = tx.GetQuote(ctx, *quoteID)
			if errors.Is(err, repository.ErrNotFound) || (err == nil && quote.ProcurementRequestID != req.ID) {
				return notFoundErr("quote", nil)
			}
			if err != nil {
				return fmt.Errorf("load quote: %w", err)
			}
			if !quote.Available {
				return invariantErr("quote %s is not available and cannot be recommended", quote.ID)
			}
		}

		ok, err := tx.TransitionRequest(ctx, req.ID, model.OpenStatuses, model.StatusRecommended,
			map[string]interface{}{"recommended_quote_id": quote.ID})
		if err != nil {
			return fmt.Errorf("recommend: %w", err)
		}
		if !ok {
			return conflictErr("request status changed concurrently")
		}

		settings, err := s.settingsFor(ctx, tx, tenantID)
		if err != nil {
			return err
		}
		res.OrderTotal = quote.PricePerUnit.Mul(decimal.NewFromInt(int64(req.RequestedQuantity)))
		res.AutoOrderEligible = !settings.ApprovalRequired &&
			(!settings.MaxAutoOrderAmount.Valid || res.OrderTotal.LessThanOrEqual(settings.MaxAutoOrderAmount.Decimal))
		res.Quote = quote

		res.Request, err = loadRequest(ctx, tx, tenantID, req.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordRecommendation()
	s.metrics.RecordTransition(string(model.StatusRecommended))
	logger.Ctx(ctx, s.log).Info("Quote recommended",
		zap.Uint("tenant_id", tenantID),
		zap.String("request_id", requestID.String()),
		zap.String("quote_id", res.Quote.ID.String()),
		zap.Uint("supplier_id", res.Quote.SupplierID),
		zap.String("order_total", res.OrderTotal.StringFixed(2)),
		zap.Bool("auto_order_eligible", res.AutoOrderEligible),
		zap.String("actor", actor))
	return res, nil
}
