package models

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Statement represents a monthly progress-billing statement (situation).
// One statement exists per site and period; StatementNumber increases per site.
type Statement struct {
	ID                       uint            `gorm:"primaryKey" json:"id"`
	GUID                     string          `gorm:"column:guid;not null;uniqueIndex" json:"guid"`
	SiteID                   uint            `gorm:"not null;uniqueIndex:idx_statement_site_number;uniqueIndex:idx_statement_site_period" json:"site_id"`
	QuoteID                  uint            `gorm:"not null;index" json:"quote_id"`
	StatementNumber          int             `gorm:"not null;uniqueIndex:idx_statement_site_number" json:"statement_number"`
	Month                    int             `gorm:"not null;uniqueIndex:idx_statement_site_period" json:"month"`
	Year                     int             `gorm:"not null;uniqueIndex:idx_statement_site_period" json:"year"`
	Status                   string          `gorm:"not null;default:pending;index" json:"status"`
	CumulativeAmount         decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"cumulative_amount"`
	GrossAmountForMonth      decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"gross_amount_for_month"`
	GuaranteeRate            decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"guarantee_rate"`
	GuaranteeRetention       decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"guarantee_retention"`
	ProrataRate              decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"prorata_rate"`
	ProrataAmount            decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"prorata_amount"`
	ThirdPartyRetention      decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"third_party_retention"`
	ThirdPartyOverridden     bool            `gorm:"not null;default:false" json:"third_party_overridden"`
	SupplementaryBalance     decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"supplementary_balance"`
	NetAmountAfterRetentions decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"net_amount_after_retentions"`
	VATRate                  decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"vat_rate"`
	VATAmount                decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"vat_amount"`
	TotalInclTax             decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"total_incl_tax"`
	CompletionPct            decimal.Decimal `gorm:"type:decimal(7,2);not null" json:"completion_pct"`
	PriorStatementID         *uint           `gorm:"index" json:"prior_statement_id"`
	DegradedReason           *string         `gorm:"type:text" json:"degraded_reason"`
	SnapshotPayload          string          `gorm:"type:text;not null" json:"-"` // JSON of the composed snapshots, replayed by reconciliation
	CreatedAt                time.Time       `json:"created_at"`
	UpdatedAt                time.Time       `json:"updated_at"`

	// Associations
	Site               *Site                        `gorm:"foreignKey:SiteID" json:"-"`
	LineItems          []StatementLineItem          `gorm:"foreignKey:StatementID" json:"line_items,omitempty"`
	AmendmentLines     []StatementAmendmentLine     `gorm:"foreignKey:StatementID" json:"amendment_lines,omitempty"`
	SupplementaryLines []StatementSupplementaryLine `gorm:"foreignKey:StatementID" json:"supplementary_lines,omitempty"`
}

// TableName specifies the table name for Statement
func (Statement) TableName() string {
	return "statements"
}

// Statement status constants
const (
	StatementStatusPending  = "pending"  // header written, snapshots in flight
	StatementStatusPartial  = "partial"  // some snapshot writes failed
	StatementStatusComplete = "complete" // header and every snapshot written
)

// IsComplete returns true when every snapshot of the statement was written
func (s *Statement) IsComplete() bool {
	return s.Status == StatementStatusComplete
}

// MayReconcile returns true if missing snapshots can still be replayed
func (s *Statement) MayReconcile() bool {
	return s.Status == StatementStatusPending || s.Status == StatementStatusPartial
}

// StatementSnapshots is the full set of snapshots of a statement. It is stored
// as JSON on the header so missing rows can be replayed after a partial write
// or a restart.
type StatementSnapshots struct {
	LineItems          []StatementLineItem          `json:"line_items"`
	AmendmentLines     []StatementAmendmentLine     `json:"amendment_lines"`
	SupplementaryLines []StatementSupplementaryLine `json:"supplementary_lines"`
}

// EncodeSnapshots stores snap as the snapshot payload of the header
func (s *Statement) EncodeSnapshots(snap StatementSnapshots) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	s.SnapshotPayload = string(raw)
	return nil
}

// DecodeSnapshots reads the snapshot payload written by EncodeSnapshots
func (s *Statement) DecodeSnapshots() (StatementSnapshots, error) {
	var snap StatementSnapshots
	if s.SnapshotPayload == "" {
		return snap, errors.New("no snapshot payload")
	}
	err := json.Unmarshal([]byte(s.SnapshotPayload), &snap)
	return snap, err
}

// StatementLineItem is the snapshot of a quote line at composition time
type StatementLineItem struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	StatementID     uint            `gorm:"not null;uniqueIndex:idx_statement_line_source" json:"statement_id"`
	LineItemID      uint            `gorm:"not null;uniqueIndex:idx_statement_line_source" json:"line_item_id"`
	PartName        string          `json:"part_name"`
	SubPartName     string          `json:"sub_part_name"`
	Description     string          `gorm:"type:text;not null" json:"description"`
	TotalExclTax    decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"total_excl_tax"`
	PercentPrevious decimal.Decimal `gorm:"type:decimal(7,4);not null" json:"pct_previous"`
	PercentCurrent  decimal.Decimal `gorm:"type:decimal(7,4);not null" json:"pct_current"`
	Amount          decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount"`
	PeriodAmount    decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"period_amount"`
}

func (StatementLineItem) TableName() string {
	return "statement_line_items"
}

// StatementAmendmentLine is the snapshot of a TS line at composition time
type StatementAmendmentLine struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	StatementID     uint            `gorm:"not null;uniqueIndex:idx_statement_amendment_source" json:"statement_id"`
	AmendmentLineID uint            `gorm:"not null;uniqueIndex:idx_statement_amendment_source" json:"amendment_line_id"`
	AmendmentID     uint            `gorm:"not null;index" json:"amendment_id"`
	AmendmentNumber int             `json:"amendment_number"`
	Description     string          `gorm:"type:text;not null" json:"description"`
	AmountExclTax   decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"amount_excl_tax"`
	PercentPrevious decimal.Decimal `gorm:"type:decimal(7,4);not null" json:"pct_previous"`
	PercentCurrent  decimal.Decimal `gorm:"type:decimal(7,4);not null" json:"pct_current"`
	Amount          decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount"`
	PeriodAmount    decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"period_amount"`
}

func (StatementAmendmentLine) TableName() string {
	return "statement_amendment_lines"
}

// StatementSupplementaryLine is the snapshot of a supplementary adjustment
type StatementSupplementaryLine struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	StatementID uint            `gorm:"not null;uniqueIndex:idx_statement_supplementary_source" json:"statement_id"`
	Description string          `gorm:"not null;uniqueIndex:idx_statement_supplementary_source" json:"description"`
	Kind        string          `gorm:"not null" json:"kind"`
	Amount      decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount"`
	Settled     bool            `gorm:"not null;default:false" json:"settled"`
	Position    int             `gorm:"not null;default:0" json:"position"`
}

func (StatementSupplementaryLine) TableName() string {
	return "statement_supplementary_lines"
}

// ToLine converts the snapshot back into a carry-over line
func (l StatementSupplementaryLine) ToLine() SupplementaryLine {
	return SupplementaryLine{
		Description: l.Description,
		Amount:      l.Amount,
		Kind:        l.Kind,
		Settled:     l.Settled,
	}
}

// StatementSummary is the list view of a statement
type StatementSummary struct {
	ID                       uint            `json:"id"`
	GUID                     string          `json:"guid"`
	StatementNumber          int             `json:"statement_number"`
	Month                    int             `json:"month"`
	Year                     int             `json:"year"`
	Status                   string          `json:"status"`
	GrossAmountForMonth      decimal.Decimal `json:"gross_amount_for_month"`
	NetAmountAfterRetentions decimal.Decimal `json:"net_amount_after_retentions"`
	TotalInclTax             decimal.Decimal `json:"total_incl_tax"`
	CompletionPct            decimal.Decimal `json:"completion_pct"`
	Degraded                 bool            `json:"degraded"`
	CreatedAt                time.Time       `json:"created_at"`
}

// ToSummary converts Statement to StatementSummary
func (s *Statement) ToSummary() StatementSummary {
	return StatementSummary{
		ID:                       s.ID,
		GUID:                     s.GUID,
		StatementNumber:          s.StatementNumber,
		Month:                    s.Month,
		Year:                     s.Year,
		Status:                   s.Status,
		GrossAmountForMonth:      s.GrossAmountForMonth,
		NetAmountAfterRetentions: s.NetAmountAfterRetentions,
		TotalInclTax:             s.TotalInclTax,
		CompletionPct:            s.CompletionPct,
		Degraded:                 s.DegradedReason != nil,
		CreatedAt:                s.CreatedAt,
	}
}
