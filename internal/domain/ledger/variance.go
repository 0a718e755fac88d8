package ledger

import (
	"fmt"
	"time"

	"github.com/godown/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// VarianceType classifies what kind of discrepancy was detected
type VarianceType string

const (
	VarianceTypeShortage     VarianceType = "SHORTAGE"
	VarianceTypeExcess       VarianceType = "EXCESS"
	VarianceTypeQuality      VarianceType = "QUALITY"
	VarianceTypeSystemError  VarianceType = "SYSTEM_ERROR"
	VarianceTypeProcessError VarianceType = "PROCESS_ERROR"
)

// VariancePriority is derived from the variance magnitude
type VariancePriority string

const (
	VariancePriorityLow    VariancePriority = "LOW"
	VariancePriorityMedium VariancePriority = "MEDIUM"
	VariancePriorityHigh   VariancePriority = "HIGH"
)

// PriorityForMagnitude derives priority from the absolute variance quantity:
// above 100 high, 50 to 100 medium, below 50 low.
func PriorityForMagnitude(magnitude decimal.Decimal) VariancePriority {
	abs := magnitude.Abs()
	switch {
	case abs.GreaterThan(decimal.NewFromInt(100)):
		return VariancePriorityHigh
	case abs.GreaterThanOrEqual(decimal.NewFromInt(50)):
		return VariancePriorityMedium
	default:
		return VariancePriorityLow
	}
}

// VarianceStatus represents the investigation lifecycle state
type VarianceStatus string

const (
	VarianceStatusIdentified     VarianceStatus = "IDENTIFIED"
	VarianceStatusInvestigating  VarianceStatus = "INVESTIGATING"
	VarianceStatusRootCauseFound VarianceStatus = "ROOT_CAUSE_FOUND"
	VarianceStatusResolved       VarianceStatus = "RESOLVED"
	VarianceStatusWrittenOff     VarianceStatus = "WRITTEN_OFF"
	VarianceStatusDismissed      VarianceStatus = "DISMISSED"
)

// IsTerminal returns true for states that end the investigation
func (s VarianceStatus) IsTerminal() bool {
	switch s {
	case VarianceStatusResolved, VarianceStatusWrittenOff, VarianceStatusDismissed:
		return true
	}
	return false
}

// Transitions are monotonic; there is no path back to IDENTIFIED.
var varianceTransitions = map[VarianceStatus][]VarianceStatus{
	VarianceStatusIdentified:     {VarianceStatusInvestigating, VarianceStatusDismissed},
	VarianceStatusInvestigating:  {VarianceStatusRootCauseFound, VarianceStatusDismissed},
	VarianceStatusRootCauseFound: {VarianceStatusResolved, VarianceStatusWrittenOff, VarianceStatusDismissed},
}

// CanTransitionTo reports whether the status machine permits the move
func (s VarianceStatus) CanTransitionTo(target VarianceStatus) bool {
	for _, allowed := range varianceTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// Variance is an investigation record raised when a materialized balance
// disagrees with a physical count or with the batch store.
type Variance struct {
	shared.BaseEntity
	TenantID             uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:uq_variance_number,priority:1"`
	VarianceNumber       string           `gorm:"type:varchar(40);not null;uniqueIndex:uq_variance_number,priority:2"`
	GodownID             uuid.UUID        `gorm:"type:uuid;not null;index:idx_variance_scope,priority:1"`
	ProductID            uuid.UUID        `gorm:"type:uuid;not null;index:idx_variance_scope,priority:2"`
	DailyBalanceID       *uuid.UUID       `gorm:"type:uuid;index"`
	Type                 VarianceType     `gorm:"type:varchar(20);not null;index"`
	ExpectedQty          decimal.Decimal  `gorm:"type:decimal(18,4);not null"`
	ActualQty            decimal.Decimal  `gorm:"type:decimal(18,4);not null"`
	VarianceQty          decimal.Decimal  `gorm:"type:decimal(18,4);not null"` // actual - expected, signed
	Priority             VariancePriority `gorm:"type:varchar(10);not null"`
	Status               VarianceStatus   `gorm:"type:varchar(20);not null;index"`
	Description          string           `gorm:"type:varchar(500)"`
	RootCause            string           `gorm:"type:varchar(500)"`
	ResolutionNotes      string           `gorm:"type:varchar(500)"`
	AdjustmentEntryID    *uuid.UUID       `gorm:"type:uuid"`
	InvestigationStarted *time.Time       `gorm:"type:timestamptz"`
	ResolvedAt           *time.Time       `gorm:"type:timestamptz"`
}

// TableName returns the table name for GORM
func (Variance) TableName() string {
	return "variance"
}

// NewVariance creates an investigation record. Type defaults from the sign of
// the variance when the caller passes an empty type.
func NewVariance(
	tenantID, godownID, productID uuid.UUID,
	varianceType VarianceType,
	expected, actual decimal.Decimal,
) (*Variance, error) {
	if tenantID == uuid.Nil || godownID == uuid.Nil || productID == uuid.Nil {
		return nil, shared.ErrInvalidInput
	}
	diff := actual.Sub(expected)
	if varianceType == "" {
		if diff.IsNegative() {
			varianceType = VarianceTypeShortage
		} else {
			varianceType = VarianceTypeExcess
		}
	}
	return &Variance{
		BaseEntity:  shared.NewBaseEntity(),
		TenantID:    tenantID,
		GodownID:    godownID,
		ProductID:   productID,
		Type:        varianceType,
		ExpectedQty: expected,
		ActualQty:   actual,
		VarianceQty: diff,
		Priority:    PriorityForMagnitude(diff),
		Status:      VarianceStatusIdentified,
	}, nil
}

// WithVarianceNumber sets the tenant-scoped identifier
func (v *Variance) WithVarianceNumber(number string) *Variance {
	v.VarianceNumber = number
	return v
}

// WithDailyBalance links the variance to the balance row it was raised against
func (v *Variance) WithDailyBalance(dailyBalanceID uuid.UUID) *Variance {
	id := dailyBalanceID
	v.DailyBalanceID = &id
	return v
}

// WithDescription sets the human-readable summary
func (v *Variance) WithDescription(description string) *Variance {
	v.Description = description
	return v
}

// IsOpen returns true while the investigation has not reached a terminal state
func (v *Variance) IsOpen() bool {
	return !v.Status.IsTerminal()
}

// TransitionTo moves the variance through its lifecycle. Entering
// INVESTIGATING stamps the investigation start once; entering any terminal
// state stamps the resolution time once.
func (v *Variance) TransitionTo(target VarianceStatus) error {
	if !v.Status.CanTransitionTo(target) {
		return shared.ErrInvalidState
	}
	now := time.Now()
	v.Status = target
	if target == VarianceStatusInvestigating && v.InvestigationStarted == nil {
		v.InvestigationStarted = &now
	}
	if target.IsTerminal() && v.ResolvedAt == nil {
		v.ResolvedAt = &now
	}
	v.UpdatedAt = now
	return nil
}

// StartInvestigation moves the variance to INVESTIGATING
func (v *Variance) StartInvestigation() error {
	return v.TransitionTo(VarianceStatusInvestigating)
}

// RecordRootCause captures the root cause and advances the lifecycle
func (v *Variance) RecordRootCause(rootCause string) error {
	if err := v.TransitionTo(VarianceStatusRootCauseFound); err != nil {
		return err
	}
	v.RootCause = rootCause
	return nil
}

// Resolve closes the variance, linking the correcting ledger entry if one was
// written.
func (v *Variance) Resolve(notes string, adjustmentEntryID *uuid.UUID) error {
	if err := v.TransitionTo(VarianceStatusResolved); err != nil {
		return err
	}
	v.ResolutionNotes = notes
	v.AdjustmentEntryID = adjustmentEntryID
	return nil
}

// WriteOff closes the variance without a correcting entry
func (v *Variance) WriteOff(notes string) error {
	if err := v.TransitionTo(VarianceStatusWrittenOff); err != nil {
		return err
	}
	v.ResolutionNotes = notes
	return nil
}

// Dismiss abandons the investigation
func (v *Variance) Dismiss(notes string) error {
	if err := v.TransitionTo(VarianceStatusDismissed); err != nil {
		return err
	}
	v.ResolutionNotes = notes
	return nil
}

// FormatVarianceNumber renders the tenant-scoped identifier,
// e.g. VAR-20260115-0003.
func FormatVarianceNumber(date time.Time, seq int64) string {
	return fmt.Sprintf("VAR-%s-%04d", date.UTC().Format("20060102"), seq)
}
