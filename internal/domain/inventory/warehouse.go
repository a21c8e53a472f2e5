package inventory

import (
	"strings"

	"github.com/erp/stockledger/internal/domain/shared"
)

// Warehouse is a physical stock location
type Warehouse struct {
	shared.BaseEntity
	Code        string
	Name        string
	Location    string
	Description string
}

// NewWarehouse creates a new warehouse
func NewWarehouse(code, name, location, description string) (*Warehouse, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	name = strings.TrimSpace(name)
	if code == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Warehouse code cannot be empty")
	}
	if len(code) > 32 {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Warehouse code cannot exceed 32 characters")
	}
	if name == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Warehouse name cannot be empty")
	}

	return &Warehouse{
		BaseEntity:  shared.NewBaseEntity(),
		Code:        code,
		Name:        name,
		Location:    location,
		Description: description,
	}, nil
}
