package situation

import (
	"testing"

	"github.com/batisuivi/situations-api/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestAggregateAmendment(t *testing.T) {
	a := models.Amendment{
		ID:     1,
		Number: 2,
		Lines: []models.AmendmentInvoiceLine{
			{ID: 1, AmountExclTax: d("1000"), PercentCurrent: d("100")},
			{ID: 2, AmountExclTax: d("9000"), PercentCurrent: d("0")},
		},
	}

	p := AggregateAmendment(a)

	// unweighted: (100 + 0) / 2 even though the second line is nine times larger
	assertDecimal(t, "50", p.AveragePct)
	assertDecimal(t, "1000", p.TotalAmount)
	assert.Equal(t, 2, p.LineCount)
	assert.Equal(t, 2, p.Number)
}

func TestAggregateAmendment_NoLines(t *testing.T) {
	p := AggregateAmendment(models.Amendment{ID: 3})

	assertDecimal(t, "0", p.AveragePct)
	assertDecimal(t, "0", p.TotalAmount)
}

func TestAggregateAmendments_Rollup(t *testing.T) {
	amendments := []models.Amendment{
		{ID: 1, Lines: []models.AmendmentInvoiceLine{
			{ID: 1, AmountExclTax: d("200"), PercentCurrent: d("50")},
			{ID: 2, AmountExclTax: d("400"), PercentCurrent: d("30")},
		}},
		{ID: 2},
		{ID: 3, Lines: []models.AmendmentInvoiceLine{
			{ID: 3, AmountExclTax: d("1000"), PercentCurrent: d("80")},
		}},
	}

	r := AggregateAmendments(amendments)

	assert.Len(t, r.Amendments, 3)
	assertDecimal(t, "40", r.Amendments[0].AveragePct)
	assertDecimal(t, "220", r.Amendments[0].TotalAmount)
	// mean of 40 and 80; the empty amendment is left out
	assertDecimal(t, "60", r.AveragePct)
	assertDecimal(t, "1020", r.TotalAmount)
}

func TestTreeProgress(t *testing.T) {
	quote := &models.Quote{
		Parts: []models.Part{{
			ID:   1,
			Name: "Lot 1",
			SubParts: []models.SubPart{
				{ID: 1, Lines: []models.LineItem{
					{ID: 1, TotalExclTax: d("100"), PercentCurrent: d("100")},
					{ID: 2, TotalExclTax: d("900"), PercentCurrent: d("0")},
				}},
				{ID: 2, Lines: []models.LineItem{
					{ID: 3, TotalExclTax: d("1000"), PercentCurrent: d("20")},
				}},
				{ID: 3},
			},
		}},
	}

	parts := TreeProgress(quote)

	assert.Len(t, parts, 1)
	assert.Len(t, parts[0].SubParts, 3)
	assertDecimal(t, "50", parts[0].SubParts[0].AveragePct)
	assertDecimal(t, "100", parts[0].SubParts[0].Amount)
	assertDecimal(t, "35", parts[0].AveragePct)
	assertDecimal(t, "300", parts[0].Amount)
}
