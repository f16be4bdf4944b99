package handler

import (
	"net/http"
	"strconv"

	"procurement-service/internal/middleware"
	"procurement-service/internal/procurement"
	"procurement-service/pkg/logger"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Handler serves the procurement API on top of the procurement service
type Handler struct {
	svc *procurement.Service
	db  *gorm.DB
}

// NewHandler creates a Handler. db is only used by the health check.
func NewHandler(svc *procurement.Service, db *gorm.DB) *Handler {
	return &Handler{svc: svc, db: db}
}

// Register mounts every procurement route on g, which must already carry the auth middleware
func (h *Handler) Register(g *echo.Group) {
	g.POST("/backfill", h.RunBackfill)
	g.GET("/selection", h.SelectSuppliers)

	g.POST("/requests", h.CreateRequest)
	g.GET("/requests", h.ListRequests)
	g.GET("/:id", h.GetRequest)
	g.POST("/:id/start-outreach", h.StartOutreach)
	g.POST("/:id/quotes", h.AddQuote)
	g.GET("/:id/quotes", h.ListQuotes)
	g.POST("/:id/rescore", h.Rescore)
	g.POST("/:id/recommend", h.Recommend)
	g.POST("/:id/status", h.Transition)
	g.PATCH("/:id/notes", h.UpdateNotes)
	g.GET("/:id/conversations", h.ListConversations)

	g.GET("/settings", h.GetSettings)
	g.PUT("/settings", h.UpdateSettings)

	g.POST("/supplier-pairs", h.UpsertPair)
	g.GET("/supplier-pairs", h.ListPairs)
	g.DELETE("/supplier-pairs/:id", h.DeactivatePair)

	g.GET("/conversations/:id/messages", h.ListMessages)
	g.POST("/conversations/:id/messages", h.SendMessage)
	g.POST("/conversations/:id/incoming", h.RecordIncoming)
	g.POST("/conversations/:id/mode", h.SetMode)
	g.POST("/conversations/:id/close", h.CloseConversation)

	g.POST("/messages/:id/delivery", h.ReportDelivery)
}

// tenant returns the tenant the auth middleware attached, or writes a 400
func tenant(c echo.Context) (uint, bool) {
	tenantID, ok := middleware.GetTenantIDFromContext(c)
	if !ok {
		logger.FromContext(c).Warn("Missing tenant_id in context")
	}
	return tenantID, ok
}

func missingTenant(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "tenant_id is required"})
}

func pathID(c echo.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		logger.FromContext(c).Warn("Invalid id parameter", zap.String("id", c.Param("id")))
		return uuid.Nil, false
	}
	return id, true
}

func invalidID(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
}

func invalidBody(c echo.Context, err error) error {
	logger.FromContext(c).Warn("Invalid request data", zap.Error(err))
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request data"})
}

func queryInt(c echo.Context, name string) (int, bool) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	return v, err == nil
}

// respondError maps a procurement error kind onto an HTTP status
func respondError(c echo.Context, err error, msg string) error {
	log := logger.FromContext(c)

	switch procurement.KindOf(err) {
	case procurement.KindValidation:
		log.Warn(msg, zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": procurement.ReasonOf(err)})
	case procurement.KindNotFound:
		log.Warn(msg, zap.Error(err))
		return c.JSON(http.StatusNotFound, echo.Map{"error": procurement.ReasonOf(err)})
	case procurement.KindInvariant, procurement.KindConflict:
		log.Warn(msg, zap.Error(err))
		return c.JSON(http.StatusConflict, echo.Map{"error": msg, "reason": procurement.ReasonOf(err)})
	}

	log.Error(msg, zap.Error(err))
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": msg})
}
