package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ConversationStatus of a supplier conversation
type ConversationStatus string

const (
	ConversationActive ConversationStatus = "active"
	ConversationClosed ConversationStatus = "closed"
)

// ConversationMode says who speaks for the tenant
type ConversationMode string

const (
	ModeBot   ConversationMode = "bot"
	ModeHuman ConversationMode = "human"
)

// Valid reports whether m is a known mode
func (m ConversationMode) Valid() bool {
	return m == ModeBot || m == ModeHuman
}

// ProcurementConversation is the single outreach thread for a (request, supplier) pair.
// The composite unique index is what keeps concurrent outreach from duplicating it.
type ProcurementConversation struct {
	ID                   uuid.UUID          `json:"id" gorm:"type:uuid;primaryKey"`
	TenantID             uint               `json:"tenant_id" gorm:"index;not null"`
	ProductID            uint               `json:"product_id" gorm:"not null"`
	ProcurementRequestID uuid.UUID          `json:"procurement_request_id" gorm:"type:uuid;not null;uniqueIndex:ux_conversation_request_supplier,priority:1"`
	SupplierID           uint               `json:"supplier_id" gorm:"not null;uniqueIndex:ux_conversation_request_supplier,priority:2"`
	Status               ConversationStatus `json:"status" gorm:"type:varchar(16);not null"`
	Mode                 ConversationMode   `json:"mode" gorm:"type:varchar(16);not null"`
	LastOutgoingAt       *time.Time         `json:"last_outgoing_at,omitempty"`
	LastIncomingAt       *time.Time         `json:"last_incoming_at,omitempty"`
	CreatedAt            time.Time          `json:"created_at"`
	UpdatedAt            time.Time          `json:"updated_at"`
}

// BeforeCreate assigns an id when the caller did not
func (c *ProcurementConversation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// MessageDirection of a conversation message
type MessageDirection string

const (
	DirectionOutgoing MessageDirection = "outgoing"
	DirectionIncoming MessageDirection = "incoming"
)

// MessageStatus tracks delivery of a message
type MessageStatus string

const (
	MessageQueued MessageStatus = "queued"
	// MessageSending is held by a dispatcher between claim and delivery outcome
	MessageSending MessageStatus = "sending"
	MessageSent    MessageStatus = "sent"
	MessageFailed  MessageStatus = "failed"
)

// ProcurementMessage is an append-only entry in a conversation
type ProcurementMessage struct {
	ID                uuid.UUID        `json:"id" gorm:"type:uuid;primaryKey"`
	ConversationID    uuid.UUID        `json:"conversation_id" gorm:"type:uuid;index;not null"`
	Direction         MessageDirection `json:"direction" gorm:"type:varchar(16);not null"`
	Text              string           `json:"text" gorm:"type:text;not null"`
	Status            MessageStatus    `json:"status" gorm:"type:varchar(16);index;not null"`
	ProviderMessageID *string          `json:"provider_message_id,omitempty" gorm:"type:varchar(255)"`
	Error             *string          `json:"error,omitempty" gorm:"type:text"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// BeforeCreate assigns an id when the caller did not
func (m *ProcurementMessage) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
