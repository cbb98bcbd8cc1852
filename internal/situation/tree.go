package situation

import (
	"github.com/batisuivi/situations-api/internal/models"
	"github.com/shopspring/decimal"
)

// SubPartProgress is the roll-up of a sub-part's lines
type SubPartProgress struct {
	SubPartID  uint            `json:"sub_part_id"`
	Name       string          `json:"name"`
	AveragePct decimal.Decimal `json:"average_pct"`
	Amount     decimal.Decimal `json:"amount"`
}

// PartProgress is the roll-up of a part's sub-parts
type PartProgress struct {
	PartID     uint              `json:"part_id"`
	Name       string            `json:"name"`
	AveragePct decimal.Decimal   `json:"average_pct"`
	Amount     decimal.Decimal   `json:"amount"`
	SubParts   []SubPartProgress `json:"sub_parts"`
}

// earned returns total * pct / 100
func earned(total, pct decimal.Decimal) decimal.Decimal {
	return total.Mul(pct).Div(hundred)
}

// mean is the unweighted arithmetic mean, zero for an empty slice
func mean(values []decimal.Decimal) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	return decimal.Sum(decimal.Zero, values...).Div(decimal.NewFromInt(int64(len(values))))
}

// TreeProgress rolls the quote tree up. Averages are unweighted by amount,
// the same policy as amendments; empty sub-parts are left out of a part's mean.
func TreeProgress(quote *models.Quote) []PartProgress {
	if quote == nil {
		return nil
	}
	parts := make([]PartProgress, 0, len(quote.Parts))
	for _, part := range quote.Parts {
		pp := PartProgress{PartID: part.ID, Name: part.Name, Amount: decimal.Zero}
		var subAverages []decimal.Decimal
		for _, sub := range part.SubParts {
			sp := SubPartProgress{SubPartID: sub.ID, Name: sub.Name, Amount: decimal.Zero}
			pcts := make([]decimal.Decimal, 0, len(sub.Lines))
			for _, line := range sub.Lines {
				pcts = append(pcts, line.PercentCurrent)
				sp.Amount = sp.Amount.Add(earned(line.TotalExclTax, line.PercentCurrent))
			}
			sp.AveragePct = mean(pcts)
			if len(pcts) > 0 {
				subAverages = append(subAverages, sp.AveragePct)
			}
			pp.Amount = pp.Amount.Add(sp.Amount)
			pp.SubParts = append(pp.SubParts, sp)
		}
		pp.AveragePct = mean(subAverages)
		parts = append(parts, pp)
	}
	return parts
}

// cloneQuote deep-copies the tree so composition never mutates caller state
func cloneQuote(q *models.Quote) *models.Quote {
	c := *q
	c.Parts = make([]models.Part, len(q.Parts))
	for i, part := range q.Parts {
		cp := part
		cp.SubParts = make([]models.SubPart, len(part.SubParts))
		for j, sub := range part.SubParts {
			cs := sub
			cs.Lines = append([]models.LineItem(nil), sub.Lines...)
			cp.SubParts[j] = cs
		}
		c.Parts[i] = cp
	}
	return &c
}

func cloneAmendments(in []models.Amendment) []models.Amendment {
	out := make([]models.Amendment, len(in))
	for i, a := range in {
		ca := a
		ca.Lines = append([]models.AmendmentInvoiceLine(nil), a.Lines...)
		out[i] = ca
	}
	return out
}
