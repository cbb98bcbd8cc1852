package situation

import (
	"context"
	"fmt"

	"github.com/batisuivi/situations-api/internal/models"
	"github.com/shopspring/decimal"
)

// BaselineSource tells where the percentages to subtract come from
type BaselineSource string

const (
	// BaselineNone is the first statement of a site: everything starts at zero.
	BaselineNone BaselineSource = "none"
	// BaselinePrior uses the most recent statement of the site.
	BaselinePrior BaselineSource = "prior"
	// BaselineExisting re-enters the statement already composed for the period.
	BaselineExisting BaselineSource = "existing"
)

// StatementLookup finds statements with their snapshots. Both methods return
// (nil, nil) when nothing matches.
type StatementLookup interface {
	FindByPeriod(ctx context.Context, siteID uint, month, year int) (*models.Statement, error)
	FindLatest(ctx context.Context, siteID uint) (*models.Statement, error)
}

// Baseline is what a new composition subtracts from the current state
type Baseline struct {
	Source             BaselineSource
	Statement          *models.Statement
	LinePercents       map[uint]decimal.Decimal
	AmendmentPercents  map[uint]decimal.Decimal
	CumulativeAmount   decimal.Decimal
	SupplementaryLines []models.SupplementaryLine
	// DegradedReason is set when a lookup failed and the period was treated
	// as the first statement. The baseline is then probably understated.
	DegradedReason string
}

// Degraded reports whether the baseline is a fallback after a lookup failure
func (b Baseline) Degraded() bool {
	return b.DegradedReason != ""
}

// FirstStatementBaseline is the all-zero baseline seeded with the site defaults
func FirstStatementBaseline(defaults []models.SiteSupplementaryLine) Baseline {
	return Baseline{
		Source:             BaselineNone,
		LinePercents:       map[uint]decimal.Decimal{},
		AmendmentPercents:  map[uint]decimal.Decimal{},
		CumulativeAmount:   decimal.Zero,
		SupplementaryLines: MergeSupplementary(nil, defaults),
	}
}

// BaselineFromStatement builds a baseline from a statement's snapshots
func BaselineFromStatement(stmt *models.Statement, source BaselineSource, defaults []models.SiteSupplementaryLine) Baseline {
	b := Baseline{
		Source:            source,
		Statement:         stmt,
		LinePercents:      make(map[uint]decimal.Decimal, len(stmt.LineItems)),
		AmendmentPercents: make(map[uint]decimal.Decimal, len(stmt.AmendmentLines)),
		CumulativeAmount:  stmt.CumulativeAmount,
	}
	for _, li := range stmt.LineItems {
		b.LinePercents[li.LineItemID] = li.PercentCurrent
	}
	for _, al := range stmt.AmendmentLines {
		b.AmendmentPercents[al.AmendmentLineID] = al.PercentCurrent
	}

	carried := make([]models.SupplementaryLine, 0, len(stmt.SupplementaryLines))
	for _, sl := range stmt.SupplementaryLines {
		// settled adjustments stop at the statement that settled them, except
		// when re-entering that very statement
		if sl.Settled && source == BaselinePrior {
			continue
		}
		carried = append(carried, sl.ToLine())
	}
	b.SupplementaryLines = MergeSupplementary(carried, defaults)
	return b
}

// MergeSupplementary appends every default whose description is not already
// carried, with a zero amount. Carried lines keep their order and amounts.
func MergeSupplementary(carried []models.SupplementaryLine, defaults []models.SiteSupplementaryLine) []models.SupplementaryLine {
	out := make([]models.SupplementaryLine, 0, len(carried)+len(defaults))
	seen := make(map[string]struct{}, len(carried))
	for _, l := range carried {
		out = append(out, l)
		seen[l.Description] = struct{}{}
	}
	for _, d := range defaults {
		if _, ok := seen[d.Description]; ok {
			continue
		}
		seen[d.Description] = struct{}{}
		out = append(out, d.ToLine())
	}
	return out
}

// Resolve determines the baseline for (site, month, year): the statement
// already composed for the period, else the latest statement of the site,
// else none. A failed lookup does not abort; it falls back to the first
// statement baseline with DegradedReason set so the caller can warn or block.
func Resolve(ctx context.Context, lookup StatementLookup, siteID uint, month, year int, defaults []models.SiteSupplementaryLine) Baseline {
	existing, err := lookup.FindByPeriod(ctx, siteID, month, year)
	if err != nil {
		return degraded(defaults, fmt.Sprintf("lookup of statement %02d/%d failed: %v", month, year, err))
	}
	if existing != nil {
		return baselineOf(existing, BaselineExisting, defaults)
	}

	latest, err := lookup.FindLatest(ctx, siteID)
	if err != nil {
		return degraded(defaults, fmt.Sprintf("lookup of latest statement failed: %v", err))
	}
	if latest != nil {
		return baselineOf(latest, BaselinePrior, defaults)
	}
	return FirstStatementBaseline(defaults)
}

// baselineOf builds the baseline of a statement found by Resolve. The snapshot
// rows of a pending or partial statement may be missing, so its payload is
// used instead. An unreadable payload degrades the baseline.
func baselineOf(stmt *models.Statement, source BaselineSource, defaults []models.SiteSupplementaryLine) Baseline {
	if stmt.IsComplete() {
		return BaselineFromStatement(stmt, source, defaults)
	}
	snap, err := stmt.DecodeSnapshots()
	if err != nil {
		return degraded(defaults, fmt.Sprintf("%s statement n°%d incomplete (%s): %v", source, stmt.StatementNumber, stmt.Status, err))
	}
	full := *stmt
	full.LineItems = snap.LineItems
	full.AmendmentLines = snap.AmendmentLines
	full.SupplementaryLines = snap.SupplementaryLines
	return BaselineFromStatement(&full, source, defaults)
}

func degraded(defaults []models.SiteSupplementaryLine, reason string) Baseline {
	b := FirstStatementBaseline(defaults)
	b.DegradedReason = reason
	return b
}

// applyBaseline sets pct_previous on every line from the baseline; lines the
// baseline does not know start from zero.
func applyBaseline(quote *models.Quote, amendments []models.Amendment, b Baseline) {
	quote.EachLine(func(_ *models.Part, _ *models.SubPart, line *models.LineItem) {
		line.PercentPrevious = b.LinePercents[line.ID]
	})
	for i := range amendments {
		for j := range amendments[i].Lines {
			line := &amendments[i].Lines[j]
			line.PercentPrevious = b.AmendmentPercents[line.ID]
		}
	}
}
