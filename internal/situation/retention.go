package situation

import (
	"github.com/batisuivi/situations-api/internal/models"
	"github.com/shopspring/decimal"
)

var (
	// DefaultGuaranteeRate is the retenue de garantie withheld on every statement.
	DefaultGuaranteeRate = decimal.NewFromInt(5)
	// DefaultProrataRate is the compte prorata rate when the operator sets none.
	DefaultProrataRate = decimal.RequireFromString("2.5")
)

// Retentions holds the deductions applied to a month's gross amount
type Retentions struct {
	GuaranteeRate        decimal.Decimal `json:"guarantee_rate"`
	GuaranteeRetention   decimal.Decimal `json:"guarantee_retention"`
	ProrataRate          decimal.Decimal `json:"prorata_rate"`
	ProrataAmount        decimal.Decimal `json:"prorata_amount"`
	ThirdPartyAmount     decimal.Decimal `json:"third_party_amount"`
	SupplementaryBalance decimal.Decimal `json:"supplementary_balance"`
	NetAfterRetentions   decimal.Decimal `json:"net_after_retentions"`
}

// ComputeRetentions derives the net payable amount from the gross:
//
//	net = gross - gross*guaranteeRate/100 - gross*prorataRate/100 - thirdParty
//	      - deductions + additions
//
// The net is not floored; a large downward correction yields a negative net.
func ComputeRetentions(gross, guaranteeRate, prorataRate, thirdParty decimal.Decimal, lines []models.SupplementaryLine) Retentions {
	r := Retentions{
		GuaranteeRate:      guaranteeRate,
		GuaranteeRetention: gross.Mul(guaranteeRate).Div(hundred),
		ProrataRate:        prorataRate,
		ProrataAmount:      gross.Mul(prorataRate).Div(hundred),
		ThirdPartyAmount:   thirdParty,
	}
	r.SupplementaryBalance = SupplementaryBalance(lines)
	r.NetAfterRetentions = gross.
		Sub(r.GuaranteeRetention).
		Sub(r.ProrataAmount).
		Sub(thirdParty).
		Add(r.SupplementaryBalance)
	return r
}

// SupplementaryBalance is additions minus deductions. Lines of an unknown kind
// count for nothing.
func SupplementaryBalance(lines []models.SupplementaryLine) decimal.Decimal {
	balance := decimal.Zero
	for _, l := range lines {
		switch {
		case l.IsDeduction():
			balance = balance.Sub(l.Amount)
		case l.IsAddition():
			balance = balance.Add(l.Amount)
		}
	}
	return balance
}

// VATAmount is computed on the net after retentions, never on the gross
func VATAmount(net, vatRate decimal.Decimal) decimal.Decimal {
	return net.Mul(vatRate).Div(hundred)
}
