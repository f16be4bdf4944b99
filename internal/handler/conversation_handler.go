package handler

import (
	"net/http"

	"procurement-service/internal/model"
	"procurement-service/internal/procurement"

	"github.com/labstack/echo/v4"
)

// MessageRequest carries message text; ProviderMessageID is only read for incoming messages
type MessageRequest struct {
	Text              string  `json:"text"`
	ProviderMessageID *string `json:"provider_message_id"`
}

// ModeRequest switches a conversation between bot and human
type ModeRequest struct {
	Mode model.ConversationMode `json:"mode"`
}

// ListConversations lists the request's supplier conversations
func (h *Handler) ListConversations(c echo.Context) error {
	tenantID, ok := tenant(c)
	if !ok {
		return missingTenant(c)
	}
	id, ok := pathID(c)
	if !ok {
		return invalidID(c)
	}

	convs, err := h.svc.ListConversations(c.Request().Context(), tenantID, id)
	if err != nil {
		return respondError(c, err, "Failed to list conversations")
	}
	return c.JSON(http.StatusOK, convs)
}

// ListMessages lists a conversation's messages oldest first
func (h *Handler) ListMessages(c echo.Context) error {
	tenantID, ok := tenant(c)
	if !ok {
		return missingTenant(c)
	}
	id, ok := pathID(c)
	if !ok {
		return invalidID(c)
	}

	msgs, err := h.svc.ListMessages(c.Request().Context(), tenantID, id)
	if err != nil {
		return respondError(c, err, "Failed to list messages")
	}
	return c.JSON(http.StatusOK, msgs)
}

// SendMessage queues a message written by a person
func (h *Handler) SendMessage(c echo.Context) error {
	tenantID, ok := tenant(c)
	if !ok {
		return missingTenant(c)
	}
	id, ok := pathID(c)
	if !ok {
		return invalidID(c)
	}

	var body MessageRequest
	if err := c.Bind(&body); err != nil {
		return invalidBody(c, err)
	}

	msg, err := h.svc.SendMessage(c.Request().Context(), tenantID, id, body.Text)
	if err != nil {
		return respondError(c, err, "Failed to send message")
	}
	return c.JSON(http.StatusCreated, msg)
}

// RecordIncoming stores a supplier reply delivered by the transport
func (h *Handler) RecordIncoming(c echo.Context) error {
	tenantID, ok := tenant(c)
	if !ok {
		return missingTenant(c)
	}
	id, ok := pathID(c)
	if !ok {
		return invalidID(c)
	}

	var body MessageRequest
	if err := c.Bind(&body); err != nil {
		return invalidBody(c, err)
	}

	msg, err := h.svc.RecordIncoming(c.Request().Context(), tenantID, id, body.Text, body.ProviderMessageID)
	if err != nil {
		return respondError(c, err, "Failed to record incoming message")
	}
	return c.JSON(http.StatusCreated, msg)
}

// SetMode hands a conversation to a person or back to the bot
func (h *Handler) SetMode(c echo.Context) error {
	tenantID, ok := tenant(c)
	if !ok {
		return missingTenant(c)
	}
	id, ok := pathID(c)
	if !ok {
		return invalidID(c)
	}

	var body ModeRequest
	if err := c.Bind(&body); err != nil {
		return invalidBody(c, err)
	}

	conv, err := h.svc.SetMode(c.Request().Context(), tenantID, id, body.Mode)
	if err != nil {
		return respondError(c, err, "Failed to change conversation mode")
	}
	return c.JSON(http.StatusOK, conv)
}

// CloseConversation closes a conversation
func (h *Handler) CloseConversation(c echo.Context) error {
	tenantID, ok := tenant(c)
	if !ok {
		return missingTenant(c)
	}
	id, ok := pathID(c)
	if !ok {
		return invalidID(c)
	}

	conv, err := h.svc.CloseConversation(c.Request().Context(), tenantID, id)
	if err != nil {
		return respondError(c, err, "Failed to close conversation")
	}
	return c.JSON(http.StatusOK, conv)
}

// ReportDelivery is the transport's callback for an outbound message
func (h *Handler) ReportDelivery(c echo.Context) error {
	tenantID, ok := tenant(c)
	if !ok {
		return missingTenant(c)
	}
	id, ok := pathID(c)
	if !ok {
		return invalidID(c)
	}

	var report procurement.DeliveryReport
	if err := c.Bind(&report); err != nil {
		return invalidBody(c, err)
	}

	msg, err := h.svc.ReportDelivery(c.Request().Context(), tenantID, id, report)
	if err != nil {
		return respondError(c, err, "Failed to record delivery")
	}
	return c.JSON(http.StatusOK, msg)
}
