package situation

import (
	"github.com/batisuivi/situations-api/internal/models"
	"github.com/shopspring/decimal"
)

// AmendmentProgress aggregates the TS lines of one amendment
type AmendmentProgress struct {
	AmendmentID uint            `json:"amendment_id"`
	Number      int             `json:"number"`
	LineCount   int             `json:"line_count"`
	AveragePct  decimal.Decimal `json:"average_pct"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// AmendmentRollup aggregates every amendment of a site
type AmendmentRollup struct {
	Amendments  []AmendmentProgress `json:"amendments"`
	AveragePct  decimal.Decimal     `json:"average_pct"`
	TotalAmount decimal.Decimal     `json:"total_amount"`
}

// AggregateAmendment computes the unweighted mean percentage of the lines and
// the earned amount sum(amount * pct / 100). An amendment without lines
// contributes zero to both.
//
// The mean is not weighted by line amount. That can misstate progress when
// line values differ a lot, but it is what operators are used to seeing.
func AggregateAmendment(a models.Amendment) AmendmentProgress {
	p := AmendmentProgress{
		AmendmentID: a.ID,
		Number:      a.Number,
		LineCount:   len(a.Lines),
		AveragePct:  decimal.Zero,
		TotalAmount: decimal.Zero,
	}
	pcts := make([]decimal.Decimal, 0, len(a.Lines))
	for _, line := range a.Lines {
		pcts = append(pcts, line.PercentCurrent)
		p.TotalAmount = p.TotalAmount.Add(earned(line.AmountExclTax, line.PercentCurrent))
	}
	p.AveragePct = mean(pcts)
	return p
}

// AggregateAmendments aggregates each amendment and rolls them up: the total is
// the sum of amendment totals and the average is the mean of the averages of
// amendments that have at least one line.
func AggregateAmendments(amendments []models.Amendment) AmendmentRollup {
	r := AmendmentRollup{
		Amendments:  make([]AmendmentProgress, 0, len(amendments)),
		AveragePct:  decimal.Zero,
		TotalAmount: decimal.Zero,
	}
	var averages []decimal.Decimal
	for _, a := range amendments {
		p := AggregateAmendment(a)
		r.Amendments = append(r.Amendments, p)
		r.TotalAmount = r.TotalAmount.Add(p.TotalAmount)
		if p.LineCount > 0 {
			averages = append(averages, p.AveragePct)
		}
	}
	r.AveragePct = mean(averages)
	return r
}
