package handler

import (
	"net/http"
	"strconv"

	"procurement-service/internal/procurement"

	"github.com/labstack/echo/v4"
)

// UpsertPair creates or updates the active supplier pair for a scope key
func (h *Handler) UpsertPair(c echo.Context) error {
	tenantID, ok := tenant(c)
	if !ok {
		return missingTenant(c)
	}

	var in procurement.PairInput
	if err := c.Bind(&in); err != nil {
		return invalidBody(c, err)
	}

	pair, created, err := h.svc.UpsertPair(c.Request().Context(), tenantID, in)
	if err != nil {
		return respondError(c, err, "Failed to save supplier pair")
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return c.JSON(status, pair)
}

// ListPairs lists the tenant's supplier pairs; ?active=true keeps active ones only
func (h *Handler) ListPairs(c echo.Context) error {
	tenantID, ok := tenant(c)
	if !ok {
		return missingTenant(c)
	}

	activeOnly := false
	if raw := c.QueryParam("active"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid active parameter"})
		}
		activeOnly = v
	}

	pairs, err := h.svc.ListPairs(c.Request().Context(), tenantID, activeOnly)
	if err != nil {
		return respondError(c, err, "Failed to list supplier pairs")
	}
	return c.JSON(http.StatusOK, pairs)
}

// DeactivatePair turns a supplier pair off
func (h *Handler) DeactivatePair(c echo.Context) error {
	tenantID, ok := tenant(c)
	if !ok {
		return missingTenant(c)
	}
	id, ok := pathID(c)
	if !ok {
		return invalidID(c)
	}

	pair, err := h.svc.DeactivatePair(c.Request().Context(), tenantID, id)
	if err != nil {
		return respondError(c, err, "Failed to deactivate supplier pair")
	}
	return c.JSON(http.StatusOK, pair)
}
