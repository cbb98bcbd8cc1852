package situation

import (
	"testing"

	"github.com/batisuivi/situations-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyPercentage(t *testing.T) {
	tests := []struct {
		name     string
		current  string
		raw      string
		expected string
	}{
		{name: "plain value", current: "10", raw: "45", expected: "45"},
		{name: "decimal point", current: "10", raw: "45.5", expected: "45.5"},
		{name: "decimal comma", current: "10", raw: "45,5", expected: "45.5"},
		{name: "percent sign", current: "10", raw: " 60 % ", expected: "60"},
		{name: "clamped above", current: "10", raw: "150", expected: "100"},
		{name: "clamped below", current: "10", raw: "-3", expected: "0"},
		{name: "non numeric ignored", current: "10", raw: "abc", expected: "10"},
		{name: "empty ignored", current: "10", raw: "", expected: "10"},
		{name: "NaN ignored", current: "10", raw: "NaN", expected: "10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertDecimal(t, tt.expected, ApplyPercentage(d(tt.current), tt.raw))
		})
	}
}

func TestTracker_SetPercentage_ClampInvariant(t *testing.T) {
	quote := singleLineQuote("1000", "20")
	tracker := NewTracker(quote, nil)

	for _, raw := range []string{"-1000", "0", "33.3", "100", "100.01", "1e9", "abc"} {
		p, err := tracker.SetPercentage(1, raw, KindStandard)
		require.NoError(t, err)
		assert.False(t, p.Current.IsNegative(), raw)
		assert.True(t, p.Current.LessThanOrEqual(hundred), raw)
	}
}

func TestTracker_SetPercentage_UpdatesInPlace(t *testing.T) {
	quote := singleLineQuote("1000", "20")
	quote.Parts[0].SubParts[0].Lines[0].PercentPrevious = d("20")
	amendments := []models.Amendment{{
		ID:     7,
		Number: 1,
		Lines:  []models.AmendmentInvoiceLine{{ID: 70, AmountExclTax: d("500")}},
	}}
	tracker := NewTracker(quote, amendments)

	p, err := tracker.SetPercentage(1, "50", KindStandard)
	require.NoError(t, err)
	assert.True(t, p.Changed)
	assertDecimal(t, "50", quote.Parts[0].SubParts[0].Lines[0].PercentCurrent)
	assertDecimal(t, "20", quote.Parts[0].SubParts[0].Lines[0].PercentPrevious, "previous must not move")

	p, err = tracker.SetPercentage(70, "25", KindAmendment)
	require.NoError(t, err)
	assertDecimal(t, "25", p.Current)
	assertDecimal(t, "25", amendments[0].Lines[0].PercentCurrent)

	p, err = tracker.SetPercentage(70, "abc", KindAmendment)
	require.NoError(t, err)
	assert.False(t, p.Changed)
	assertDecimal(t, "25", amendments[0].Lines[0].PercentCurrent)
}

func TestTracker_SetPercentage_LastWriteWins(t *testing.T) {
	quote := singleLineQuote("1000", "0")
	tracker := NewTracker(quote, nil)

	_, _ = tracker.SetPercentage(1, "30", KindStandard)
	_, _ = tracker.SetPercentage(1, "40", KindStandard)

	assertDecimal(t, "40", quote.Parts[0].SubParts[0].Lines[0].PercentCurrent)
}

func TestTracker_SetPercentage_Errors(t *testing.T) {
	tracker := NewTracker(singleLineQuote("1000", "0"), nil)

	_, err := tracker.SetPercentage(99, "10", KindStandard)
	assert.ErrorIs(t, err, ErrUnknownLine)

	_, err = tracker.SetPercentage(1, "10", KindAmendment)
	assert.ErrorIs(t, err, ErrUnknownLine)

	_, err = tracker.SetPercentage(1, "10", LineKind("bogus"))
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("")
	require.NoError(t, err)
	assert.Equal(t, KindStandard, k)

	k, err = ParseKind("amendment")
	require.NoError(t, err)
	assert.Equal(t, KindAmendment, k)

	_, err = ParseKind("ts")
	assert.ErrorIs(t, err, ErrUnknownKind)
}
