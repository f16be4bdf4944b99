package handler

import (
	"net/http"
	"strconv"
	"strings"

	"procurement-service/internal/middleware"
	"procurement-service/internal/model"
	"procurement-service/internal/procurement"
	"procurement-service/internal/repository"
	"procurement-service/pkg/logger"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// BackfillRequest triggers one low-stock scan for the caller's tenant
type BackfillRequest struct {
	Actor      string `json:"actor"`
	DefaultQty int    `json:"default_qty"`
}

// CreateRequestBody opens a manual procurement request
type CreateRequestBody struct {
	ProductID   uint              `json:"product_id"`
	Quantity    int               `json:"quantity"`
	TriggerType model.TriggerType `json:"trigger_type"`
	Urgency     model.Urgency     `json:"urgency"`
	Notes       *string           `json:"notes"`
}

// StatusRequest asks for a manual status change
type StatusRequest struct {
	Status model.RequestStatus `json:"status"`
}

// NotesRequest replaces a request's notes; null clears them
type NotesRequest struct {
	Notes *string `json:"notes"`
}

// RecommendRequest optionally names the quote to recommend
type RecommendRequest struct {
	QuoteID *uuid.UUID `json:"quote_id"`
}

// RunBackfill creates draft requests for the tenant's low-stock products
func (h *Handler) RunBackfill(c echo.Context) error {
	log := logger.FromContext(c)
	tenantID, ok := tenant(c)
	if !ok {
		return missingTenant(c)
	}

	var req BackfillRequest
	if err := c.Bind(&req); err != nil {
		return invalidBody(c, err)
	}
	if req.Actor == "" {
		req.Actor = middleware.ActorFromContext(c)
	}

	res, err := h.svc.RunBackfill(c.Request().Context(), tenantID, req.Actor, req.DefaultQty)
	if err != nil {
		return respondError(c, err, "Failed to run backfill")
	}

	log.Info("Backfill run via API", zap.Int("created", res.Created), zap.Int("skipped", res.Skipped))
	return c.JSON(http.StatusOK, res)
}

// SelectSuppliers previews which suppliers outreach would contact for a product
func (h *Handler) SelectSuppliers(c echo.Context) error {
	tenantID, ok := tenant(c)
	if !ok {
		return missingTenant(c)
	}
	productID, err := strconv.ParseUint(c.QueryParam("product_id"), 10, 64)
	if err != nil || productID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "product_id is required"})
	}

	sel, err := h.svc.SelectSuppliers(c.Request().Context(), tenantID, uint(productID))
	if err != nil {
		return respondError(c, err, "Failed to select suppliers")
	}
	return c.JSON(http.StatusOK, sel)
}

// CreateRequest opens a manual request, or returns the product's open one
func (h *Handler) CreateRequest(c echo.Context) error {
	log := logger.FromContext(c)
	tenantID, ok := tenant(c)
	if !ok {
		return missingTenant(c)
	}

	var body CreateRequestBody
	if err := c.Bind(&body); err != nil {
		return invalidBody(c, err)
	}
	if body.TriggerType == "" {
		body.TriggerType = model.TriggerManual
	}

	req, created, err := h.svc.CreateRequest(c.Request().Context(), procurement.CreateRequestInput{
		TenantID:  tenantID,
		ProductID: body.ProductID,
		Quantity:  body.Quantity,
		Trigger:   body.TriggerType,
		Urgency:   body.Urgency,
		Notes:     body.Notes,
		Actor:     middleware.ActorFromContext(c),
	})
	if err != nil {
		return respondError(c, err, "Failed to create procurement request")
	}

	if !created {
		log.Info("Open request already exists", zap.String("request_id", req.ID.String()))
		return c.JSON(http.StatusOK, echo.Map{"request": req, "created": false})
	}
	return c.JSON(http.StatusCreated, echo.Map{"request": req, "created": true})
}

// ListRequests lists the tenant's requests, newest first
func (h *Handler) ListRequests(c echo.Context) error {
	tenantID, ok := tenant(c)
	if !ok {
		return missingTenant(c)
	}

	var filter repository.RequestFilter
	if raw := c.QueryParam("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			filter.Statuses = append(filter.Statuses, model.RequestStatus(strings.TrimSpace(s)))
		}
	}
	if raw := c.QueryParam("product_id"); raw != "" {
		productID, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid product_id"})
		}
		id := uint(productID)
		filter.ProductID = &id
	}
	limit, okLimit := queryInt(c, "limit")
	offset, okOffset := queryInt(c, "offset")
	if !okLimit || !okOffset {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "limit and offset must be integers"})
	}
	filter.Limit, filter.Offset = limit, offset

	reqs, total, err := h.svc.ListRequests(c.Request().Context(), tenantID, filter)
	if err != nil {
		return respondError(c, err, "Failed to list procurement requests")
	}
	return c.JSON(http.StatusOK, echo.Map{"requests": reqs, "total": total})
}

// GetRequest returns one request
func (h *Handler) GetRequest(c echo.Context) error {
	tenantID, ok := tenant(c)
	if !ok {
		return missingTenant(c)
	}
	id, ok := pathID(c)
	if !ok {
		return invalidID(c)
	}

	req, err := h.svc.GetRequest(c.Request().Context(), tenantID, id)
	if err != nil {
		return respondError(c, err, "Failed to get procurement request")
	}
	return c.JSON(http.StatusOK, req)
}

// StartOutreach contacts the resolved suppliers for a request
func (h *Handler) StartOutreach(c echo.Context) error {
	tenantID, ok := tenant(c)
	if !ok {
		return missingTenant(c)
	}
	id, ok := pathID(c)
	if !ok {
		return invalidID(c)
	}

	res, err := h.svc.StartOutreach(c.Request().Context(), tenantID, id)
	if err != nil {
		return respondError(c, err, "Failed to start outreach")
	}
	return c.JSON(http.StatusOK, res)
}

// AddQuote records a supplier quote and returns it scored and ranked
func (h *Handler) AddQuote(c echo.Context) error {
	tenantID, ok := tenant(c)
	if !ok {
		return missingTenant(c)
	}
	id, ok := pathID(c)
	if !ok {
		return invalidID(c)
	}

	var in procurement.QuoteInput
	if err := c.Bind(&in); err != nil {
		return invalidBody(c, err)
	}

	quote, err := h.svc.AddQuote(c.Request().Context(), tenantID, id, in)
	if err != nil {
		return respondError(c, err, "Failed to add quote")
	}
	return c.JSON(http.StatusCreated, quote)
}

// ListQuotes returns the request's quotes in ranking order
func (h *Handler) ListQuotes(c echo.Context) error {
	tenantID, ok := tenant(c)
	if !ok {
		return missingTenant(c)
	}
	id, ok := pathID(c)
	if !ok {
		return invalidID(c)
	}

	ranked, err := h.svc.RankedQuotes(c.Request().Context(), tenantID, id)
	if err != nil {
		return respondError(c, err, "Failed to list quotes")
	}
	return c.JSON(http.StatusOK, ranked)
}

// Rescore recomputes every quote score on the request
func (h *Handler) Rescore(c echo.Context) error {
	tenantID, ok := tenant(c)
	if !ok {
		return missingTenant(c)
	}
	id, ok := pathID(c)
	if !ok {
		return invalidID(c)
	}

	ranked, err := h.svc.RescoreAll(c.Request().Context(), tenantID, id)
	if err != nil {
		return respondError(c, err, "Failed to rescore quotes")
	}
	return c.JSON(http.StatusOK, ranked)
}

// Recommend marks a quote, or the best available one, as the recommendation
func (h *Handler) Recommend(c echo.Context) error {
	tenantID, ok := tenant(c)
	if !ok {
		return missingTenant(c)
	}
	id, ok := pathID(c)
	if !ok {
		return invalidID(c)
	}

	var body RecommendRequest
	if err := c.Bind(&body); err != nil {
		return invalidBody(c, err)
	}

	res, err := h.svc.Recommend(c.Request().Context(), tenantID, id, body.QuoteID, middleware.ActorFromContext(c))
	if err != nil {
		return respondError(c, err, "Failed to recommend quote")
	}
	return c.JSON(http.StatusOK, res)
}

// Transition applies a manual status change
func (h *Handler) Transition(c echo.Context) error {
	tenantID, ok := tenant(c)
	if !ok {
		return missingTenant(c)
	}
	id, ok := pathID(c)
	if !ok {
		return invalidID(c)
	}

	var body StatusRequest
	if err := c.Bind(&body); err != nil {
		return invalidBody(c, err)
	}

	req, err := h.svc.Transition(c.Request().Context(), tenantID, id, body.Status, middleware.ActorFromContext(c))
	if err != nil {
		return respondError(c, err, "Failed to change request status")
	}
	return c.JSON(http.StatusOK, req)
}

// UpdateNotes replaces the request's notes without touching its status
func (h *Handler) UpdateNotes(c echo.Context) error {
	tenantID, ok := tenant(c)
	if !ok {
		return missingTenant(c)
	}
	id, ok := pathID(c)
	if !ok {
		return invalidID(c)
	}

	var body NotesRequest
	if err := c.Bind(&body); err != nil {
		return invalidBody(c, err)
	}

	req, err := h.svc.UpdateNotes(c.Request().Context(), tenantID, id, body.Notes)
	if err != nil {
		return respondError(c, err, "Failed to update notes")
	}
	return c.JSON(http.StatusOK, req)
}
