package situation

import (
	"context"
	"errors"
	"testing"

	"github.com/batisuivi/situations-api/internal/models"
	"github.com/stretchr/testify/assert"
)

type fakeLookup struct {
	byPeriod    *models.Statement
	byPeriodErr error
	latest      *models.Statement
	latestErr   error
	latestCalls int
}

func (f *fakeLookup) FindByPeriod(ctx context.Context, siteID uint, month, year int) (*models.Statement, error) {
	return f.byPeriod, f.byPeriodErr
}

func (f *fakeLookup) FindLatest(ctx context.Context, siteID uint) (*models.Statement, error) {
	f.latestCalls++
	return f.latest, f.latestErr
}

var siteDefaults = []models.SiteSupplementaryLine{
	{Description: "Compte prorata eau", Kind: models.SupplementaryKindDeduction},
	{Description: "Avance", Kind: models.SupplementaryKindDeduction},
}

func priorStatement() *models.Statement {
	return &models.Statement{
		ID:               41,
		StatementNumber:  3,
		Status:           models.StatementStatusComplete,
		CumulativeAmount: d("20000"),
		ProrataRate:      d("3"),
		LineItems: []models.StatementLineItem{
			{LineItemID: 1, PercentCurrent: d("20")},
		},
		AmendmentLines: []models.StatementAmendmentLine{
			{AmendmentLineID: 70, PercentCurrent: d("60")},
		},
		SupplementaryLines: []models.StatementSupplementaryLine{
			{Description: "Avance", Amount: d("1500"), Kind: models.SupplementaryKindDeduction},
			{Description: "Pénalité de retard", Amount: d("400"), Kind: models.SupplementaryKindDeduction, Settled: true},
		},
	}
}

func TestResolve_FirstStatement(t *testing.T) {
	b := Resolve(context.Background(), &fakeLookup{}, 1, 3, 2025, siteDefaults)

	assert.Equal(t, BaselineNone, b.Source)
	assert.False(t, b.Degraded())
	assert.Nil(t, b.Statement)
	assertDecimal(t, "0", b.CumulativeAmount)
	assert.Len(t, b.SupplementaryLines, 2)
	for _, l := range b.SupplementaryLines {
		assertDecimal(t, "0", l.Amount)
	}
}

func TestResolve_PriorStatement(t *testing.T) {
	lookup := &fakeLookup{latest: priorStatement()}

	b := Resolve(context.Background(), lookup, 1, 4, 2025, siteDefaults)

	assert.Equal(t, BaselinePrior, b.Source)
	assertDecimal(t, "20000", b.CumulativeAmount)
	assertDecimal(t, "20", b.LinePercents[1])
	assertDecimal(t, "60", b.AmendmentPercents[70])

	// settled penalty dropped, Avance carried with its amount, missing default appended at zero
	assert.Len(t, b.SupplementaryLines, 2)
	assert.Equal(t, "Avance", b.SupplementaryLines[0].Description)
	assertDecimal(t, "1500", b.SupplementaryLines[0].Amount)
	assert.Equal(t, "Compte prorata eau", b.SupplementaryLines[1].Description)
	assertDecimal(t, "0", b.SupplementaryLines[1].Amount)
}

func TestResolve_ExistingStatementWins(t *testing.T) {
	existing := priorStatement()
	lookup := &fakeLookup{byPeriod: existing, latest: &models.Statement{ID: 99}}

	b := Resolve(context.Background(), lookup, 1, 4, 2025, siteDefaults)

	assert.Equal(t, BaselineExisting, b.Source)
	assert.Same(t, existing, b.Statement)
	assert.Equal(t, 0, lookup.latestCalls)
	// re-entry keeps its own settled lines
	assert.Len(t, b.SupplementaryLines, 3)
}

func TestResolve_LookupFailureIsDegraded(t *testing.T) {
	tests := []struct {
		name   string
		lookup *fakeLookup
	}{
		{name: "period lookup fails", lookup: &fakeLookup{byPeriodErr: errors.New("connection reset"), latest: priorStatement()}},
		{name: "latest lookup fails", lookup: &fakeLookup{latestErr: errors.New("timeout")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := Resolve(context.Background(), tt.lookup, 1, 4, 2025, siteDefaults)

			assert.True(t, b.Degraded())
			assert.Equal(t, BaselineNone, b.Source)
			assertDecimal(t, "0", b.CumulativeAmount)
			assert.Len(t, b.SupplementaryLines, 2)
		})
	}
}

func TestResolve_IncompletePriorUsesPayload(t *testing.T) {
	prior := priorStatement()
	prior.Status = models.StatementStatusPartial
	err := prior.EncodeSnapshots(models.StatementSnapshots{
		LineItems: []models.StatementLineItem{
			{LineItemID: 1, PercentCurrent: d("20")},
			{LineItemID: 2, PercentCurrent: d("35")},
		},
		AmendmentLines: prior.AmendmentLines,
		SupplementaryLines: []models.StatementSupplementaryLine{
			{Description: "Avance", Amount: d("1500"), Kind: models.SupplementaryKindDeduction},
			{Description: "Retenue SPS", Amount: d("90"), Kind: models.SupplementaryKindDeduction},
		},
	})
	assert.NoError(t, err)
	// line 2 and the SPS row were never written
	prior.SupplementaryLines = prior.SupplementaryLines[:1]

	b := Resolve(context.Background(), &fakeLookup{latest: prior}, 1, 4, 2025, siteDefaults)

	assert.False(t, b.Degraded())
	assert.Equal(t, BaselinePrior, b.Source)
	assert.Equal(t, uint(41), b.Statement.ID)
	assertDecimal(t, "35", b.LinePercents[2])
	assertDecimal(t, "60", b.AmendmentPercents[70])
	assert.Len(t, b.SupplementaryLines, 3)
	assert.Equal(t, "Retenue SPS", b.SupplementaryLines[1].Description)
	assertDecimal(t, "90", b.SupplementaryLines[1].Amount)
	// the rows loaded with the statement are left alone
	assert.Len(t, prior.LineItems, 1)
}

func TestResolve_IncompleteWithoutPayloadIsDegraded(t *testing.T) {
	prior := priorStatement()
	prior.Status = models.StatementStatusPending

	b := Resolve(context.Background(), &fakeLookup{latest: prior}, 1, 4, 2025, siteDefaults)

	assert.True(t, b.Degraded())
	assert.Contains(t, b.DegradedReason, "prior statement n°3 incomplete")
	assert.Equal(t, BaselineNone, b.Source)
	assertDecimal(t, "0", b.CumulativeAmount)
}

func TestMergeSupplementary_DefaultsOnlyWhenMissing(t *testing.T) {
	carried := []models.SupplementaryLine{
		{Description: "Compte prorata eau", Amount: d("80"), Kind: models.SupplementaryKindDeduction},
	}

	merged := MergeSupplementary(carried, siteDefaults)

	assert.Len(t, merged, 2)
	assertDecimal(t, "80", merged[0].Amount)
	assert.Equal(t, "Avance", merged[1].Description)
}
