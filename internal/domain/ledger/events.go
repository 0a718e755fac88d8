package ledger

import (
	"github.com/godown/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event types consumed by the translator
const (
	EventTypeArrivalConfirmed  = "godown.arrival_confirmed"
	EventTypeLoadingConfirmed  = "godown.loading_confirmed"
	EventTypeCrossoverApproved = "godown.crossover_approved"
	EventTypeChallanDelivered  = "godown.challan_delivered"
)

// ArrivalConfirmed is raised when a stock arrival passes inspection
type ArrivalConfirmed struct {
	shared.BaseDomainEvent
	GodownID   uuid.UUID       `json:"godown_id" validate:"required"`
	ProductID  uuid.UUID       `json:"product_id" validate:"required"`
	GoodQty    decimal.Decimal `json:"good_qty"`
	DamagedQty decimal.Decimal `json:"damaged_qty"`
	SourceRef  string          `json:"source_ref" validate:"required"`
	Grade      QualityGrade    `json:"grade,omitempty"`
	Notes      string          `json:"notes,omitempty"`
}

// NewArrivalConfirmed creates an arrival confirmation event
func NewArrivalConfirmed(tenantID, godownID, productID uuid.UUID, goodQty, damagedQty decimal.Decimal, sourceRef string) *ArrivalConfirmed {
	return &ArrivalConfirmed{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeArrivalConfirmed, "Arrival", godownID, tenantID),
		GodownID:        godownID,
		ProductID:       productID,
		GoodQty:         goodQty,
		DamagedQty:      damagedQty,
		SourceRef:       sourceRef,
	}
}

// LoadingConfirmed is raised when an outbound loading completes
type LoadingConfirmed struct {
	shared.BaseDomainEvent
	GodownID     uuid.UUID       `json:"godown_id" validate:"required"`
	ProductID    uuid.UUID       `json:"product_id" validate:"required"`
	LoadedQty    decimal.Decimal `json:"loaded_qty"`
	SourceRef    string          `json:"source_ref" validate:"required"`
	AuthorizedBy string          `json:"authorized_by,omitempty"`
}

// NewLoadingConfirmed creates a loading confirmation event
func NewLoadingConfirmed(tenantID, godownID, productID uuid.UUID, loadedQty decimal.Decimal, sourceRef string) *LoadingConfirmed {
	return &LoadingConfirmed{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeLoadingConfirmed, "Loading", godownID, tenantID),
		GodownID:        godownID,
		ProductID:       productID,
		LoadedQty:       loadedQty,
		SourceRef:       sourceRef,
	}
}

// CrossoverApproved is raised when a godown-to-godown transfer is approved.
// GodownID is the source godown; stock leaves from there.
type CrossoverApproved struct {
	shared.BaseDomainEvent
	GodownID       uuid.UUID       `json:"godown_id" validate:"required"`
	ProductID      uuid.UUID       `json:"product_id" validate:"required"`
	TransferredQty decimal.Decimal `json:"transferred_qty"`
	SourceRef      string          `json:"source_ref" validate:"required"`
	AuthorizedBy   string          `json:"authorized_by,omitempty"`
}

// NewCrossoverApproved creates a crossover approval event
func NewCrossoverApproved(tenantID, godownID, productID uuid.UUID, transferredQty decimal.Decimal, sourceRef string) *CrossoverApproved {
	return &CrossoverApproved{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCrossoverApproved, "Crossover", godownID, tenantID),
		GodownID:        godownID,
		ProductID:       productID,
		TransferredQty:  transferredQty,
		SourceRef:       sourceRef,
	}
}

// ChallanLineItem is one delivered line on a challan. ExistingMappingIDs
// point at mapping rows already written when the line was packed; delivery
// reuses them instead of running a second FIFO walk.
type ChallanLineItem struct {
	ProductID          uuid.UUID       `json:"product_id" validate:"required"`
	Bags               decimal.Decimal `json:"bags"`
	ExistingMappingIDs []uuid.UUID     `json:"existing_mapping_ids,omitempty"`
}

// ChallanDelivered is raised when a delivery challan is marked delivered
type ChallanDelivered struct {
	shared.BaseDomainEvent
	GodownID  uuid.UUID         `json:"godown_id" validate:"required"`
	LineItems []ChallanLineItem `json:"line_items" validate:"required,min=1,dive"`
	SourceRef string            `json:"source_ref" validate:"required"`
}

// NewChallanDelivered creates a challan delivery event
func NewChallanDelivered(tenantID, godownID uuid.UUID, lineItems []ChallanLineItem, sourceRef string) *ChallanDelivered {
	return &ChallanDelivered{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeChallanDelivered, "Challan", godownID, tenantID),
		GodownID:        godownID,
		LineItems:       lineItems,
		SourceRef:       sourceRef,
	}
}
