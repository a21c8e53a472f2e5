package persistence

import "strings"

// SortColumns whitelists the columns a list query may be ordered by.
// Request values never reach ORDER BY unless they are listed here.
type SortColumns map[string]bool

// OrderBy builds an ORDER BY clause from request values. Unknown columns fall
// back to fallback; anything but "asc" sorts descending.
func (c SortColumns) OrderBy(field, dir, fallback string) string {
	column := strings.TrimSpace(field)
	if !c[column] {
		column = fallback
	}
	return column + " " + ValidateSortOrder(dir)
}

// ValidateSortOrder normalizes a sort direction to ASC or DESC
func ValidateSortOrder(dir string) string {
	if strings.EqualFold(strings.TrimSpace(dir), "asc") {
		return "ASC"
	}
	return "DESC"
}

var WarehouseSortFields = SortColumns{
	"created_at": true,
	"updated_at": true,
	"code":       true,
	"name":       true,
	"location":   true,
}

var ItemSortFields = SortColumns{
	"created_at":       true,
	"updated_at":       true,
	"sku":              true,
	"name":             true,
	"warehouse_id":     true,
	"quantity_on_hand": true,
	"reorder_level":    true,
	"unit_cost":        true,
}

// StockMovementSortFields has no updated_at: ledger rows are never updated
var StockMovementSortFields = SortColumns{
	"created_at":    true,
	"item_id":       true,
	"warehouse_id":  true,
	"movement_type": true,
	"quantity":      true,
	"reference":     true,
}

var StocktakeSortFields = SortColumns{
	"created_at":     true,
	"updated_at":     true,
	"reference":      true,
	"warehouse_id":   true,
	"status":         true,
	"scheduled_date": true,
	"completed_at":   true,
}
