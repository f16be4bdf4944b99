package handler

import (
	"net/http"

	"procurement-service/internal/procurement"

	"github.com/labstack/echo/v4"
)

// GetSettings returns the tenant's procurement settings
func (h *Handler) GetSettings(c echo.Context) error {
	tenantID, ok := tenant(c)
	if !ok {
		return missingTenant(c)
	}

	settings, err := h.svc.GetSettings(c.Request().Context(), tenantID)
	if err != nil {
		return respondError(c, err, "Failed to get settings")
	}
	return c.JSON(http.StatusOK, settings)
}

// UpdateSettings replaces the tenant's procurement settings
func (h *Handler) UpdateSettings(c echo.Context) error {
	tenantID, ok := tenant(c)
	if !ok {
		return missingTenant(c)
	}

	var in procurement.SettingsInput
	if err := c.Bind(&in); err != nil {
		return invalidBody(c, err)
	}

	settings, err := h.svc.UpdateSettings(c.Request().Context(), tenantID, in)
	if err != nil {
		return respondError(c, err, "Failed to update settings")
	}
	return c.JSON(http.StatusOK, settings)
}
