package inventory

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
)

// MovementType is the direction of a ledger entry
type MovementType string

const (
	MovementTypeInbound  MovementType = "INBOUND"
	MovementTypeOutbound MovementType = "OUTBOUND"
	// MovementTypeTransfer is never persisted. A transfer is stored as an
	// OUTBOUND/INBOUND pair sharing a transfer ID.
	MovementTypeTransfer MovementType = "TRANSFER"
)

// Reference prefixes for movements generated by composite operations
const (
	TransferReferencePrefix  = "TRANSFER:"
	StocktakeReferencePrefix = "STOCKTAKE:"
)

// MaxMovementReferenceLength is the width of stock_movements.reference
const MaxMovementReferenceLength = 128

// MaxTransferReferenceLength leaves room for TransferReferencePrefix
const MaxTransferReferenceLength = MaxMovementReferenceLength - len(TransferReferencePrefix)

// IsValid checks if the movement type is known
func (t MovementType) IsValid() bool {
	switch t {
	case MovementTypeInbound, MovementTypeOutbound, MovementTypeTransfer:
		return true
	}
	return false
}

// IsDirect reports whether the type may be recorded as a single ledger row
func (t MovementType) IsDirect() bool {
	return t == MovementTypeInbound || t == MovementTypeOutbound
}

// Sign returns +1 for inbound and -1 for outbound movements
func (t MovementType) Sign() int64 {
	if t == MovementTypeOutbound {
		return -1
	}
	return 1
}

func (t MovementType) String() string {
	return string(t)
}

// TransferReference returns the reference stamped on both rows of a transfer
func TransferReference(reference string) string {
	return TransferReferencePrefix + reference
}

// StocktakeReference returns the reference stamped on stocktake adjustments
func StocktakeReference(reference string) string {
	return StocktakeReferencePrefix + reference
}

// StockMovement is an immutable ledger entry. Rows are only ever appended.
type StockMovement struct {
	ID            uuid.UUID
	ItemID        uuid.UUID
	WarehouseID   uuid.UUID
	Quantity      int64
	Type          MovementType
	Reference     string
	PerformedBy   uuid.UUID
	BalanceBefore int64
	BalanceAfter  int64
	TransferID    *uuid.UUID
	CreatedAt     time.Time
}

// NewStockMovement creates a ledger entry and checks that the balances agree with the quantity
func NewStockMovement(
	itemID, warehouseID uuid.UUID,
	movementType MovementType,
	quantity int64,
	reference string,
	performedBy uuid.UUID,
	balanceBefore, balanceAfter int64,
) (*StockMovement, error) {
	if itemID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Item ID cannot be empty")
	}
	if warehouseID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Warehouse ID cannot be empty")
	}
	if !movementType.IsDirect() {
		return nil, shared.NewDomainErrorf(shared.CodeInvalidInput, "Movement type %s cannot be recorded directly", movementType)
	}
	if quantity <= 0 {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Quantity must be positive")
	}
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Reference cannot be empty")
	}
	if utf8.RuneCountInString(reference) > MaxMovementReferenceLength {
		return nil, shared.NewDomainErrorf(shared.CodeInvalidInput, "Reference cannot exceed %d characters", MaxMovementReferenceLength)
	}
	if performedBy == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Performer ID cannot be empty")
	}
	if balanceAfter < 0 {
		return nil, shared.NewDomainError(shared.CodeInsufficientStock, "Balance after movement cannot be negative")
	}
	if balanceAfter != balanceBefore+movementType.Sign()*quantity {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Balance after does not match balance before plus quantity")
	}

	return &StockMovement{
		ID:            uuid.New(),
		ItemID:        itemID,
		WarehouseID:   warehouseID,
		Quantity:      quantity,
		Type:          movementType,
		Reference:     reference,
		PerformedBy:   performedBy,
		BalanceBefore: balanceBefore,
		BalanceAfter:  balanceAfter,
		CreatedAt:     time.Now(),
	}, nil
}

// WithTransferID links the movement to the other half of a transfer
func (m *StockMovement) WithTransferID(transferID uuid.UUID) *StockMovement {
	m.TransferID = &transferID
	return m
}

// SignedQuantity returns the quantity with its direction applied
func (m *StockMovement) SignedQuantity() int64 {
	return m.Type.Sign() * m.Quantity
}

// IsTransferLeg reports whether the movement belongs to a transfer pair
func (m *StockMovement) IsTransferLeg() bool {
	return m.TransferID != nil
}
