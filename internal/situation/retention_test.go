package situation

import (
	"testing"

	"github.com/batisuivi/situations-api/internal/models"
	"github.com/shopspring/decimal"
)

func TestComputeRetentions_Chain(t *testing.T) {
	r := ComputeRetentions(d("10000"), DefaultGuaranteeRate, d("2.5"), d("200"), nil)

	assertDecimal(t, "500", r.GuaranteeRetention)
	assertDecimal(t, "250", r.ProrataAmount)
	assertDecimal(t, "200", r.ThirdPartyAmount)
	assertDecimal(t, "9050", r.NetAfterRetentions)
}

func TestComputeRetentions_SupplementaryLines(t *testing.T) {
	lines := []models.SupplementaryLine{
		{Description: "Avance forfaitaire", Amount: d("1000"), Kind: models.SupplementaryKindDeduction},
		{Description: "Révision de prix", Amount: d("300"), Kind: models.SupplementaryKindAddition},
		{Description: "Inconnu", Amount: d("999"), Kind: "other"},
	}

	r := ComputeRetentions(d("10000"), DefaultGuaranteeRate, d("2.5"), d("200"), lines)

	assertDecimal(t, "-700", r.SupplementaryBalance)
	assertDecimal(t, "8350", r.NetAfterRetentions)
}

func TestComputeRetentions_NegativeNetAllowed(t *testing.T) {
	r := ComputeRetentions(d("-5000"), DefaultGuaranteeRate, d("2.5"), d("100"), nil)

	assertDecimal(t, "-250", r.GuaranteeRetention)
	assertDecimal(t, "-125", r.ProrataAmount)
	assertDecimal(t, "-4725", r.NetAfterRetentions)
}

func TestVATAmount_OnNetNotGross(t *testing.T) {
	gross := d("10000")
	vatRate := d("20")

	low := ComputeRetentions(gross, DefaultGuaranteeRate, d("2.5"), decimal.Zero, nil)
	high := ComputeRetentions(gross, DefaultGuaranteeRate, d("2.5"), d("1000"), nil)

	assertDecimal(t, "1850", VATAmount(low.NetAfterRetentions, vatRate))
	assertDecimal(t, "1650", VATAmount(high.NetAfterRetentions, vatRate))
}

func TestNextStatementNumber(t *testing.T) {
	tests := []struct {
		name     string
		existing []int
		expected int
	}{
		{name: "none", existing: nil, expected: 1},
		{name: "contiguous", existing: []int{1, 2, 3}, expected: 4},
		{name: "unordered with gap", existing: []int{5, 2, 1}, expected: 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NextStatementNumber(tt.existing); got != tt.expected {
				t.Errorf("NextStatementNumber(%v) = %d, want %d", tt.existing, got, tt.expected)
			}
		})
	}
}
