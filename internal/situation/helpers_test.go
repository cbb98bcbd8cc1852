package situation

import (
	"fmt"
	"testing"

	"github.com/batisuivi/situations-api/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, expected string, actual decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	if !d(expected).Equal(actual) {
		assert.Fail(t, fmt.Sprintf("expected %s, got %s", expected, actual), msgAndArgs...)
	}
}

// singleLineQuote builds a quote with one part, one sub-part and one line
func singleLineQuote(total, pct string) *models.Quote {
	return &models.Quote{
		ID:           1,
		TotalExclTax: d(total),
		VATRate:      d("20"),
		Parts: []models.Part{{
			ID:   10,
			Name: "Gros oeuvre",
			SubParts: []models.SubPart{{
				ID:   100,
				Name: "Fondations",
				Lines: []models.LineItem{{
					ID:             1,
					Description:    "Semelles filantes",
					Quantity:       d("1"),
					UnitPrice:      d(total),
					TotalExclTax:   d(total),
					PercentCurrent: d(pct),
				}},
			}},
		}},
	}
}
