package situation

import (
	"fmt"
	"strings"

	"github.com/batisuivi/situations-api/internal/models"
	"github.com/shopspring/decimal"
)

// LineKind tells which tree a percentage update targets
type LineKind string

const (
	KindStandard  LineKind = "standard"
	KindAmendment LineKind = "amendment"
)

var hundred = decimal.NewFromInt(100)

// ClampPercentage bounds a completion percentage to [0,100]
func ClampPercentage(v decimal.Decimal) decimal.Decimal {
	if v.IsNegative() {
		return decimal.Zero
	}
	if v.GreaterThan(hundred) {
		return hundred
	}
	return v
}

// ParsePercentage reads operator input such as "45", "45.5" or "45,5".
// The second return value is false when the input is not a number.
func ParsePercentage(raw string) (decimal.Decimal, bool) {
	s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw), "%"))
	s = strings.Replace(s, ",", ".", 1)
	if s == "" {
		return decimal.Zero, false
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return v, true
}

// ApplyPercentage returns the new current percentage for raw input: clamped
// when numeric, current unchanged otherwise.
func ApplyPercentage(current decimal.Decimal, raw string) decimal.Decimal {
	v, ok := ParsePercentage(raw)
	if !ok {
		return current
	}
	return ClampPercentage(v)
}

// Progress is the state of one line after a percentage update
type Progress struct {
	LineID   uint            `json:"line_id"`
	Kind     LineKind        `json:"kind"`
	Current  decimal.Decimal `json:"pct_current"`
	Previous decimal.Decimal `json:"pct_previous"`
	Changed  bool            `json:"changed"`
}

// Tracker edits the current percentage of lines in a working copy of a quote
// tree and its amendments. It is meant for a single editing session.
type Tracker struct {
	lines   map[uint]*models.LineItem
	tsLines map[uint]*models.AmendmentInvoiceLine
}

// NewTracker indexes the lines of quote and amendments. The tracker mutates
// the given values in place.
func NewTracker(quote *models.Quote, amendments []models.Amendment) *Tracker {
	t := &Tracker{
		lines:   make(map[uint]*models.LineItem),
		tsLines: make(map[uint]*models.AmendmentInvoiceLine),
	}
	if quote != nil {
		quote.EachLine(func(_ *models.Part, _ *models.SubPart, line *models.LineItem) {
			t.lines[line.ID] = line
		})
	}
	for i := range amendments {
		for j := range amendments[i].Lines {
			line := &amendments[i].Lines[j]
			t.tsLines[line.ID] = line
		}
	}
	return t
}

// SetPercentage updates pct_current of a line. Out-of-range values are clamped
// and non-numeric values leave the line unchanged; neither is an error.
// pct_previous is never touched here.
func (t *Tracker) SetPercentage(lineID uint, raw string, kind LineKind) (Progress, error) {
	switch kind {
	case KindStandard:
		line, ok := t.lines[lineID]
		if !ok {
			return Progress{}, fmt.Errorf("%w: standard line %d", ErrUnknownLine, lineID)
		}
		next := ApplyPercentage(line.PercentCurrent, raw)
		changed := !next.Equal(line.PercentCurrent)
		line.PercentCurrent = next
		return Progress{LineID: lineID, Kind: kind, Current: next, Previous: line.PercentPrevious, Changed: changed}, nil
	case KindAmendment:
		line, ok := t.tsLines[lineID]
		if !ok {
			return Progress{}, fmt.Errorf("%w: amendment line %d", ErrUnknownLine, lineID)
		}
		next := ApplyPercentage(line.PercentCurrent, raw)
		changed := !next.Equal(line.PercentCurrent)
		line.PercentCurrent = next
		return Progress{LineID: lineID, Kind: kind, Current: next, Previous: line.PercentPrevious, Changed: changed}, nil
	default:
		return Progress{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// ParseKind validates a kind coming from a request
func ParseKind(s string) (LineKind, error) {
	switch LineKind(s) {
	case KindStandard, KindAmendment:
		return LineKind(s), nil
	case "":
		return KindStandard, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}
