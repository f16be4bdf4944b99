package repository

import (
	"context"
	"errors"
	"time"

	"procurement-service/internal/model"
	"procurement-service/prometheus"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a lookup by id matches nothing
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when an insert hits a unique constraint
	ErrDuplicate = errors.New("duplicate record")
)

// BrandCandidate is an active brand→supplier mapping joined with its brand
type BrandCandidate struct {
	BrandID    uint
	BrandName  string
	Tier       model.BrandTier
	SupplierID uint
	Priority   int
}

// SupplierHistory counts a supplier's recommended quotes on closed requests
type SupplierHistory struct {
	SupplierID uint
	Total      int64
	Finalized  int64
}

// RequestFilter narrows ListRequests
type RequestFilter struct {
	Statuses  []model.RequestStatus
	ProductID *uint
	Limit     int
	Offset    int
}

// CatalogStore reads the tenant catalog
type CatalogStore interface {
	GetTenant(ctx context.Context, tenantID uint) (*model.Tenant, error)
	ListActiveTenants(ctx context.Context) ([]model.Tenant, error)
	GetProduct(ctx context.Context, tenantID, productID uint) (*model.Product, error)
	ListLowStockProducts(ctx context.Context, tenantID uint) ([]model.Product, error)
	GetBrand(ctx context.Context, tenantID, brandID uint) (*model.Brand, error)
	ListCategoryPreferences(ctx context.Context, tenantID, categoryID uint) ([]model.CategorySupplierPreference, error)
	ListBrandMappings(ctx context.Context, tenantID, brandID uint) ([]model.BrandSupplierMapping, error)
	ListCategoryBrandCandidates(ctx context.Context, tenantID, categoryID uint) ([]BrandCandidate, error)
}

// RequestStore persists procurement requests
type RequestStore interface {
	CreateRequest(ctx context.Context, req *model.ProcurementRequest) error
	GetRequest(ctx context.Context, id uuid.UUID) (*model.ProcurementRequest, error)
	// LockRequest is GetRequest holding the row lock until the enclosing transaction ends.
	LockRequest(ctx context.Context, id uuid.UUID) (*model.ProcurementRequest, error)
	FindOpenRequest(ctx context.Context, tenantID, productID uint) (*model.ProcurementRequest, error)
	ListRequests(ctx context.Context, tenantID uint, filter RequestFilter) ([]model.ProcurementRequest, int64, error)
	// TransitionRequest sets status (plus extra columns) only if the current status is one of from.
	TransitionRequest(ctx context.Context, id uuid.UUID, from []model.RequestStatus, to model.RequestStatus, extra map[string]interface{}) (bool, error)
	UpdateRequestFields(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error
}

// ConversationStore persists conversations and their messages
type ConversationStore interface {
	// CreateConversationIfAbsent inserts conv unless one exists for its (request, supplier) pair.
	CreateConversationIfAbsent(ctx context.Context, conv *model.ProcurementConversation) (bool, error)
	GetConversation(ctx context.Context, id uuid.UUID) (*model.ProcurementConversation, error)
	GetConversationByPair(ctx context.Context, requestID uuid.UUID, supplierID uint) (*model.ProcurementConversation, error)
	ListConversations(ctx context.Context, requestID uuid.UUID) ([]model.ProcurementConversation, error)
	UpdateConversationFields(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error

	CreateMessage(ctx context.Context, msg *model.ProcurementMessage) error
	GetMessage(ctx context.Context, id uuid.UUID) (*model.ProcurementMessage, error)
	ListMessages(ctx context.Context, conversationID uuid.UUID) ([]model.ProcurementMessage, error)
	CountMessages(ctx context.Context, conversationID uuid.UUID, direction model.MessageDirection) (int64, error)
	ListQueuedOutgoing(ctx context.Context, limit int) ([]model.ProcurementMessage, error)
	// ClaimQueuedOutgoing moves queued outgoing messages, and sending ones claimed before
	// staleBefore, to sending. Rows locked by another claimer are skipped.
	ClaimQueuedOutgoing(ctx context.Context, limit int, staleBefore time.Time) ([]model.ProcurementMessage, error)
	// UpdateMessageStatus applies updates only while the message is in status from.
	UpdateMessageStatus(ctx context.Context, id uuid.UUID, from model.MessageStatus, updates map[string]interface{}) (bool, error)
}

// QuoteStore persists supplier quotes
type QuoteStore interface {
	CreateQuote(ctx context.Context, quote *model.SupplierQuote) error
	GetQuote(ctx context.Context, id uuid.UUID) (*model.SupplierQuote, error)
	ListQuotes(ctx context.Context, requestID uuid.UUID) ([]model.SupplierQuote, error)
	UpdateQuoteScores(ctx context.Context, scores map[uuid.UUID]float64) error
	SupplierHistory(ctx context.Context, tenantID uint, supplierIDs []uint, excludeRequestID uuid.UUID) (map[uint]SupplierHistory, error)
}

// SettingsStore persists per-tenant procurement settings
type SettingsStore interface {
	GetSettings(ctx context.Context, tenantID uint) (*model.ProcurementSettings, error)
	CreateSettingsIfAbsent(ctx context.Context, settings *model.ProcurementSettings) error
	SaveSettings(ctx context.Context, settings *model.ProcurementSettings) error
}

// SupplierPairStore persists supplier pair configuration
type SupplierPairStore interface {
	FindActivePair(ctx context.Context, tenantID uint, scope model.PairScope, key uint) (*model.SupplierPair, error)
	GetPair(ctx context.Context, tenantID uint, id uuid.UUID) (*model.SupplierPair, error)
	ListPairs(ctx context.Context, tenantID uint, activeOnly bool) ([]model.SupplierPair, error)
	CreatePair(ctx context.Context, pair *model.SupplierPair) error
	SavePair(ctx context.Context, pair *model.SupplierPair) error
}

// Store is the transactional relational store the procurement core reads and writes through
type Store interface {
	CatalogStore
	RequestStore
	ConversationStore
	QuoteStore
	SettingsStore
	SupplierPairStore

	// Transaction runs fn against a Store bound to one database transaction
	Transaction(ctx context.Context, fn func(tx Store) error) error
}

type gormStore struct {
	db      *gorm.DB
	metrics *prometheus.Metrics
}

// NewStore wraps db. db must be opened with TranslateError so unique violations are detectable.
func NewStore(db *gorm.DB, metrics *prometheus.Metrics) Store {
	return &gormStore{db: db, metrics: metrics}
}

func (s *gormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx, metrics: s.metrics})
	})
}

func (s *gormStore) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

// translate maps gorm sentinel errors onto the repository ones
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	default:
		return err
	}
}
