package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateSortOrder(t *testing.T) {
	cases := map[string]string{
		"":                         "DESC",
		"asc":                      "ASC",
		"  ASC ":                   "ASC",
		"desc":                     "DESC",
		"ascending":                "DESC",
		"ASC; DROP TABLE items;--": "DESC",
	}
	for in, want := range cases {
		assert.Equal(t, want, ValidateSortOrder(in), "%q", in)
	}
}

func TestSortColumns_OrderBy(t *testing.T) {
	tests := []struct {
		name     string
		columns  SortColumns
		field    string
		dir      string
		fallback string
		want     string
	}{
		{"whitelisted column", ItemSortFields, "quantity_on_hand", "asc", "sku", "quantity_on_hand ASC"},
		{"empty field uses fallback", ItemSortFields, "", "", "sku", "sku DESC"},
		{"unknown column uses fallback", WarehouseSortFields, "password", "asc", "code", "code ASC"},
		{"injection uses fallback", StocktakeSortFields, "status; DELETE FROM stocktakes", "asc", "created_at", "created_at ASC"},
		{"padded column is trimmed", StockMovementSortFields, " reference ", "desc", "created_at", "reference DESC"},
		{"movements cannot sort by updated_at", StockMovementSortFields, "updated_at", "asc", "created_at", "created_at ASC"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.columns.OrderBy(tt.field, tt.dir, tt.fallback))
		})
	}
}
