package inventory

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AggregateTypeStocktake is the aggregate type name used in events and audit entries
const AggregateTypeStocktake = "Stocktake"

// StocktakeStatus represents the lifecycle state of a stocktake
type StocktakeStatus string

const (
	StocktakeStatusPlanned    StocktakeStatus = "PLANNED"
	StocktakeStatusInProgress StocktakeStatus = "IN_PROGRESS"
	StocktakeStatusCompleted  StocktakeStatus = "COMPLETED"
	StocktakeStatusCancelled  StocktakeStatus = "CANCELLED"
)

// IsValid checks if the status is a valid StocktakeStatus
func (s StocktakeStatus) IsValid() bool {
	switch s {
	case StocktakeStatusPlanned, StocktakeStatusInProgress, StocktakeStatusCompleted, StocktakeStatusCancelled:
		return true
	}
	return false
}

func (s StocktakeStatus) String() string {
	return string(s)
}

// IsTerminal reports whether no further transition is possible
func (s StocktakeStatus) IsTerminal() bool {
	return s == StocktakeStatusCompleted || s == StocktakeStatusCancelled
}

// IsEditable reports whether counts may still be changed
func (s StocktakeStatus) IsEditable() bool {
	return s == StocktakeStatusPlanned || s == StocktakeStatusInProgress
}

// CanTransitionTo checks if the status can transition to the target status
func (s StocktakeStatus) CanTransitionTo(target StocktakeStatus) bool {
	switch s {
	case StocktakeStatusPlanned:
		return target == StocktakeStatusInProgress || target == StocktakeStatusCancelled
	case StocktakeStatusInProgress:
		return target == StocktakeStatusCompleted || target == StocktakeStatusCancelled
	}
	return false
}

// StocktakeLine is one counted item. SKU and name are snapshots taken when the stocktake was created.
type StocktakeLine struct {
	ID               uuid.UUID
	StocktakeID      uuid.UUID
	LineNo           int
	ItemID           uuid.UUID
	ItemSKU          string
	ItemName         string
	ExpectedQuantity int64
	CountedQuantity  int64
	Variance         int64 // Counted - Expected
	UnitCost         decimal.Decimal
	Notes            string
}

// NewStocktakeLine snapshots an item into a count line
func NewStocktakeLine(item *Item, expected, counted int64, notes string) (StocktakeLine, error) {
	if item == nil {
		return StocktakeLine{}, shared.NewDomainError(shared.CodeInvalidInput, "Item cannot be empty")
	}
	if expected < 0 {
		return StocktakeLine{}, shared.NewDomainError(shared.CodeInvalidInput, "Expected quantity cannot be negative")
	}
	if counted < 0 {
		return StocktakeLine{}, shared.NewDomainError(shared.CodeInvalidInput, "Counted quantity cannot be negative")
	}
	return StocktakeLine{
		ID:               uuid.New(),
		ItemID:           item.ID,
		ItemSKU:          item.SKU,
		ItemName:         item.Name,
		ExpectedQuantity: expected,
		CountedQuantity:  counted,
		Variance:         counted - expected,
		UnitCost:         item.UnitCost,
		Notes:            notes,
	}, nil
}

// HasVariance returns true if the physical count differs from the expected quantity
func (l *StocktakeLine) HasVariance() bool {
	return l.Variance != 0
}

// VarianceValue returns the variance valued at the snapshot unit cost
func (l *StocktakeLine) VarianceValue() decimal.Decimal {
	return l.UnitCost.Mul(decimal.NewFromInt(l.Variance))
}

func (l *StocktakeLine) recordCount(counted int64, notes string) {
	l.CountedQuantity = counted
	l.Variance = counted - l.ExpectedQuantity
	l.Notes = notes
}

// StocktakeAdjustment is the ledger movement needed to reconcile one line
type StocktakeAdjustment struct {
	LineNo   int
	ItemID   uuid.UUID
	Type     MovementType
	Quantity int64
}

// MaxStocktakeReferenceLength is the width of stocktakes.reference. With
// StocktakeReferencePrefix it still fits a movement reference.
const MaxStocktakeReferenceLength = 64

// Stocktake is a physical counting session for one warehouse.
// PLANNED -> IN_PROGRESS -> COMPLETED, with CANCELLED reachable from either open state.
type Stocktake struct {
	shared.BaseAggregateRoot
	Reference     string
	WarehouseID   uuid.UUID
	Status        StocktakeStatus
	ScheduledDate time.Time
	StartedAt     *time.Time
	CompletedAt   *time.Time
	CancelledAt   *time.Time
	Notes         string
	CreatedBy     uuid.UUID
	ApprovedBy    *uuid.UUID
	CancelReason  string
	Lines         []StocktakeLine
}

// NewStocktake creates a stocktake in PLANNED with lines numbered in input order
func NewStocktake(reference string, warehouseID uuid.UUID, scheduledDate time.Time, notes string, createdBy uuid.UUID, lines []StocktakeLine) (*Stocktake, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Stocktake reference cannot be empty")
	}
	if utf8.RuneCountInString(reference) > MaxStocktakeReferenceLength {
		return nil, shared.NewDomainErrorf(shared.CodeInvalidInput, "Stocktake reference cannot exceed %d characters", MaxStocktakeReferenceLength)
	}
	if warehouseID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Warehouse ID cannot be empty")
	}
	if createdBy == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Creator ID cannot be empty")
	}
	if len(lines) == 0 {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Stocktake must have at least one line")
	}
	if scheduledDate.IsZero() {
		scheduledDate = time.Now()
	}

	st := &Stocktake{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Reference:         reference,
		WarehouseID:       warehouseID,
		Status:            StocktakeStatusPlanned,
		ScheduledDate:     scheduledDate,
		Notes:             notes,
		CreatedBy:         createdBy,
		Lines:             make([]StocktakeLine, 0, len(lines)),
	}

	seen := make(map[uuid.UUID]struct{}, len(lines))
	for i, line := range lines {
		if _, dup := seen[line.ItemID]; dup {
			return nil, shared.NewDomainErrorf(shared.CodeInvalidInput, "Item %s appears more than once", line.ItemSKU)
		}
		seen[line.ItemID] = struct{}{}
		line.StocktakeID = st.ID
		line.LineNo = i + 1
		st.Lines = append(st.Lines, line)
	}

	st.AddDomainEvent(NewStocktakeCreatedEvent(st))
	return st, nil
}

func (s *Stocktake) transitionError(action string) error {
	return shared.NewDomainErrorf(shared.CodeInvalidState, "Cannot %s stocktake %s in status %s", action, s.Reference, s.Status)
}

// Start moves a planned stocktake into counting
func (s *Stocktake) Start(actor uuid.UUID) error {
	if !s.Status.CanTransitionTo(StocktakeStatusInProgress) {
		return s.transitionError("start")
	}

	now := time.Now()
	s.Status = StocktakeStatusInProgress
	s.StartedAt = &now
	s.UpdatedAt = now
	s.IncrementVersion()

	s.AddDomainEvent(NewStocktakeStartedEvent(s, actor))
	return nil
}

// RecordCount updates the counted quantity of one line
func (s *Stocktake) RecordCount(lineNo int, counted int64, notes string, actor uuid.UUID) error {
	if !s.Status.IsEditable() {
		return s.transitionError("record counts on")
	}
	if counted < 0 {
		return shared.NewDomainError(shared.CodeInvalidInput, "Counted quantity cannot be negative")
	}
	line := s.Line(lineNo)
	if line == nil {
		return shared.NewDomainErrorf(shared.CodeNotFound, "Stocktake line %d not found", lineNo)
	}

	previous := line.CountedQuantity
	line.recordCount(counted, notes)
	s.Touch()
	s.IncrementVersion()

	s.AddDomainEvent(NewStocktakeCountRecordedEvent(s, line, previous, actor))
	return nil
}

// Complete closes counting and returns the adjustments the ledger must apply.
// A stocktake that is not IN_PROGRESS is rejected, so a retried completion never yields adjustments twice.
func (s *Stocktake) Complete(actor uuid.UUID) ([]StocktakeAdjustment, error) {
	if !s.Status.CanTransitionTo(StocktakeStatusCompleted) {
		return nil, s.transitionError("complete")
	}
	if actor == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Approver ID cannot be empty")
	}

	adjustments := s.Adjustments()

	now := time.Now()
	from := s.Status
	s.Status = StocktakeStatusCompleted
	s.CompletedAt = &now
	s.ApprovedBy = &actor
	s.UpdatedAt = now
	s.IncrementVersion()

	s.AddDomainEvent(NewStocktakeCompletedEvent(s, from, len(adjustments), actor))
	return adjustments, nil
}

// Cancel abandons a stocktake that has not been completed. No ledger entries result.
func (s *Stocktake) Cancel(reason string, actor uuid.UUID) error {
	if !s.Status.CanTransitionTo(StocktakeStatusCancelled) {
		return s.transitionError("cancel")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return shared.NewDomainError(shared.CodeInvalidInput, "Cancel reason cannot be empty")
	}

	now := time.Now()
	from := s.Status
	s.Status = StocktakeStatusCancelled
	s.CancelledAt = &now
	s.CancelReason = reason
	s.UpdatedAt = now
	s.IncrementVersion()

	s.AddDomainEvent(NewStocktakeCancelledEvent(s, from, actor))
	return nil
}

// Adjustments lists one movement per line with a non-zero variance, in line order
func (s *Stocktake) Adjustments() []StocktakeAdjustment {
	adjustments := make([]StocktakeAdjustment, 0)
	for _, line := range s.Lines {
		if !line.HasVariance() {
			continue
		}
		adj := StocktakeAdjustment{
			LineNo:   line.LineNo,
			ItemID:   line.ItemID,
			Type:     MovementTypeInbound,
			Quantity: line.Variance,
		}
		if line.Variance < 0 {
			adj.Type = MovementTypeOutbound
			adj.Quantity = -line.Variance
		}
		adjustments = append(adjustments, adj)
	}
	return adjustments
}

// Line returns the line with the given number, or nil
func (s *Stocktake) Line(lineNo int) *StocktakeLine {
	for i := range s.Lines {
		if s.Lines[i].LineNo == lineNo {
			return &s.Lines[i]
		}
	}
	return nil
}

// TotalVariance returns the net quantity variance across lines
func (s *Stocktake) TotalVariance() int64 {
	var total int64
	for _, line := range s.Lines {
		total += line.Variance
	}
	return total
}

// TotalVarianceValue returns the net variance valued at snapshot unit cost
func (s *Stocktake) TotalVarianceValue() decimal.Decimal {
	total := decimal.Zero
	for _, line := range s.Lines {
		total = total.Add(line.VarianceValue())
	}
	return total
}

// LedgerReference is the reference stamped on adjustments produced by this stocktake
func (s *Stocktake) LedgerReference() string {
	return StocktakeReference(s.Reference)
}

func (s *Stocktake) String() string {
	return fmt.Sprintf("Stocktake(%s, %s)", s.Reference, s.Status)
}
