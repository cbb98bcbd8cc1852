package situation

import (
	"fmt"

	"github.com/batisuivi/situations-api/internal/models"
	"github.com/shopspring/decimal"
)

// Outcome tags a composition result
type Outcome string

const (
	OutcomeOK       Outcome = "ok"
	OutcomeDegraded Outcome = "degraded_baseline"
	OutcomeFatal    Outcome = "fatal"
)

// Adjustments are the operator-controlled inputs of a period
type Adjustments struct {
	// ProrataRate overrides the default compte prorata rate for this period.
	ProrataRate *decimal.Decimal
	// ThirdPartySeed is the sum of the external CIE invoices of the period.
	ThirdPartySeed decimal.Decimal
	// ThirdPartyOverride replaces the seed on this statement only.
	ThirdPartyOverride *decimal.Decimal
	// Supplementary overrides carried lines by description; unknown
	// descriptions are appended.
	Supplementary []models.SupplementaryLine
}

// Input is everything a composition needs. Quote and Amendments are read only.
type Input struct {
	SiteID             uint
	Month              int
	Year               int
	Quote              *models.Quote
	Amendments         []models.Amendment
	Baseline           Baseline
	Adjustments        Adjustments
	GuaranteeRate      decimal.Decimal
	DefaultProrataRate decimal.Decimal
	ExistingNumbers    []int
}

// Result is a composed statement ready to persist
type Result struct {
	Outcome            Outcome                             `json:"outcome"`
	Reason             string                              `json:"reason,omitempty"`
	Revision           bool                                `json:"revision"`
	BaselineSource     BaselineSource                      `json:"baseline_source"`
	Statement          models.Statement                    `json:"statement"`
	LineItems          []models.StatementLineItem          `json:"line_items"`
	AmendmentLines     []models.StatementAmendmentLine     `json:"amendment_lines"`
	SupplementaryLines []models.StatementSupplementaryLine `json:"supplementary_lines"`
	CurrentCumulative  decimal.Decimal                     `json:"current_cumulative"`
	PriorCumulative    decimal.Decimal                     `json:"prior_cumulative"`
	Retentions         Retentions                          `json:"retentions"`
	Parts              []PartProgress                      `json:"parts"`
	Amendments         AmendmentRollup                     `json:"amendments"`
}

// SnapshotCount is the number of child records the statement owns
func (r *Result) SnapshotCount() int {
	return len(r.LineItems) + len(r.AmendmentLines) + len(r.SupplementaryLines)
}

func money(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Compose turns the quote tree, the amendments and the baseline into a
// statement and its snapshots. It never mutates its input.
//
//	current   = sum(line total * pct/100) + sum(TS amount * pct/100)
//	gross     = current - baseline cumulative
//	completion = current / quote total * 100
func Compose(in Input) (*Result, error) {
	if in.Quote == nil {
		return nil, ErrMissingQuote
	}
	if in.Month < 1 || in.Month > 12 || in.Year < 1 {
		return nil, fmt.Errorf("%w: %02d/%d", ErrInvalidPeriod, in.Month, in.Year)
	}

	quote := cloneQuote(in.Quote)
	amendments := cloneAmendments(in.Amendments)
	applyBaseline(quote, amendments, in.Baseline)

	res := &Result{
		Outcome:        OutcomeOK,
		BaselineSource: in.Baseline.Source,
		Revision:       in.Baseline.Source == BaselineExisting,
	}
	if in.Baseline.Degraded() {
		res.Outcome = OutcomeDegraded
		res.Reason = in.Baseline.DegradedReason
	}

	current := decimal.Zero
	quote.EachLine(func(part *models.Part, sub *models.SubPart, line *models.LineItem) {
		amount := earned(line.TotalExclTax, line.PercentCurrent)
		current = current.Add(amount)
		res.LineItems = append(res.LineItems, models.StatementLineItem{
			LineItemID:      line.ID,
			PartName:        part.Name,
			SubPartName:     sub.Name,
			Description:     line.Description,
			TotalExclTax:    line.TotalExclTax,
			PercentPrevious: line.PercentPrevious,
			PercentCurrent:  line.PercentCurrent,
			Amount:          money(amount),
			PeriodAmount:    money(earned(line.TotalExclTax, line.PercentCurrent.Sub(line.PercentPrevious))),
		})
	})
	for _, a := range amendments {
		for _, line := range a.Lines {
			amount := earned(line.AmountExclTax, line.PercentCurrent)
			current = current.Add(amount)
			res.AmendmentLines = append(res.AmendmentLines, models.StatementAmendmentLine{
				AmendmentLineID: line.ID,
				AmendmentID:     a.ID,
				AmendmentNumber: a.Number,
				Description:     line.Description,
				AmountExclTax:   line.AmountExclTax,
				PercentPrevious: line.PercentPrevious,
				PercentCurrent:  line.PercentCurrent,
				Amount:          money(amount),
				PeriodAmount:    money(earned(line.AmountExclTax, line.PercentCurrent.Sub(line.PercentPrevious))),
			})
		}
	}

	res.CurrentCumulative = current
	res.PriorCumulative = in.Baseline.CumulativeAmount
	gross := current.Sub(res.PriorCumulative)

	completion := decimal.Zero
	if !quote.TotalExclTax.IsZero() {
		completion = current.Div(quote.TotalExclTax).Mul(hundred)
	}

	supplementary := overrideSupplementary(in.Baseline.SupplementaryLines, in.Adjustments.Supplementary)
	thirdParty := in.Adjustments.ThirdPartySeed
	if in.Adjustments.ThirdPartyOverride != nil {
		thirdParty = *in.Adjustments.ThirdPartyOverride
	}
	res.Retentions = ComputeRetentions(gross, guaranteeRate(in), prorataRate(in), thirdParty, supplementary)
	vat := VATAmount(res.Retentions.NetAfterRetentions, quote.VATRate)

	number := NextStatementNumber(in.ExistingNumbers)
	var priorID *uint
	if stmt := in.Baseline.Statement; stmt != nil {
		if res.Revision {
			number = stmt.StatementNumber
			priorID = stmt.PriorStatementID
		} else {
			id := stmt.ID
			priorID = &id
		}
	}

	res.Statement = models.Statement{
		SiteID:                   in.SiteID,
		QuoteID:                  quote.ID,
		StatementNumber:          number,
		Month:                    in.Month,
		Year:                     in.Year,
		Status:                   models.StatementStatusPending,
		CumulativeAmount:         money(current),
		GrossAmountForMonth:      money(gross),
		GuaranteeRate:            res.Retentions.GuaranteeRate,
		GuaranteeRetention:       money(res.Retentions.GuaranteeRetention),
		ProrataRate:              res.Retentions.ProrataRate,
		ProrataAmount:            money(res.Retentions.ProrataAmount),
		ThirdPartyRetention:      money(thirdParty),
		ThirdPartyOverridden:     in.Adjustments.ThirdPartyOverride != nil,
		SupplementaryBalance:     money(res.Retentions.SupplementaryBalance),
		NetAmountAfterRetentions: money(res.Retentions.NetAfterRetentions),
		VATRate:                  quote.VATRate,
		VATAmount:                money(vat),
		TotalInclTax:             money(res.Retentions.NetAfterRetentions.Add(vat)),
		CompletionPct:            completion.Round(2),
		PriorStatementID:         priorID,
	}
	if res.Outcome == OutcomeDegraded {
		reason := res.Reason
		res.Statement.DegradedReason = &reason
	}

	for i, l := range supplementary {
		res.SupplementaryLines = append(res.SupplementaryLines, models.StatementSupplementaryLine{
			Description: l.Description,
			Kind:        l.Kind,
			Amount:      money(l.Amount),
			Settled:     l.Settled,
			Position:    i,
		})
	}

	res.Parts = TreeProgress(quote)
	res.Amendments = AggregateAmendments(amendments)
	return res, nil
}

func guaranteeRate(in Input) decimal.Decimal {
	if in.GuaranteeRate.IsZero() {
		return DefaultGuaranteeRate
	}
	return in.GuaranteeRate
}

// prorataRate picks the operator rate, then the rate of the statement being
// re-entered, then the configured default.
func prorataRate(in Input) decimal.Decimal {
	if in.Adjustments.ProrataRate != nil {
		return *in.Adjustments.ProrataRate
	}
	if in.Baseline.Source == BaselineExisting && in.Baseline.Statement != nil {
		return in.Baseline.Statement.ProrataRate
	}
	if in.DefaultProrataRate.IsZero() {
		return DefaultProrataRate
	}
	return in.DefaultProrataRate
}

// overrideSupplementary applies operator edits to the carried lines by
// description and appends new ones. A new line without a kind is a deduction.
func overrideSupplementary(carried, edits []models.SupplementaryLine) []models.SupplementaryLine {
	out := append([]models.SupplementaryLine(nil), carried...)
	index := make(map[string]int, len(out))
	for i, l := range out {
		index[l.Description] = i
	}
	for _, e := range edits {
		if i, ok := index[e.Description]; ok {
			if e.Kind == "" {
				e.Kind = out[i].Kind
			}
			out[i] = e
			continue
		}
		if e.Kind == "" {
			e.Kind = models.SupplementaryKindDeduction
		}
		index[e.Description] = len(out)
		out = append(out, e)
	}
	return out
}
