package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote represents a priced proposal (devis) for a construction site
type Quote struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	Reference    string          `gorm:"not null;index" json:"reference"`
	TotalExclTax decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"total_excl_tax"`
	VATRate      decimal.Decimal `gorm:"type:decimal(5,2);not null;default:20" json:"vat_rate"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`

	// Associations
	Parts []Part `gorm:"foreignKey:QuoteID" json:"parts,omitempty"`
}

// TableName specifies the table name for Quote
func (Quote) TableName() string {
	return "quotes"
}

// Part is the first level of a quote (e.g. "Gros oeuvre")
type Part struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	QuoteID  uint   `gorm:"not null;index" json:"quote_id"`
	Name     string `gorm:"not null" json:"name"`
	Position int    `gorm:"not null;default:0" json:"position"`

	SubParts []SubPart `gorm:"foreignKey:PartID" json:"sub_parts,omitempty"`
}

func (Part) TableName() string {
	return "quote_parts"
}

// SubPart groups line items inside a part
type SubPart struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	PartID   uint   `gorm:"not null;index" json:"part_id"`
	Name     string `gorm:"not null" json:"name"`
	Position int    `gorm:"not null;default:0" json:"position"`

	Lines []LineItem `gorm:"foreignKey:SubPartID" json:"lines,omitempty"`
}

func (SubPart) TableName() string {
	return "quote_sub_parts"
}

// LineItem is a priced line of a quote. TotalExclTax is quantity * unit price
// and is maintained by the quoting screens, never recomputed here.
type LineItem struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	SubPartID       uint            `gorm:"not null;index" json:"sub_part_id"`
	Description     string          `gorm:"type:text;not null" json:"description"`
	Quantity        decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"quantity"`
	UnitPrice       decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"unit_price"`
	TotalExclTax    decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"total_excl_tax"`
	PercentCurrent  decimal.Decimal `gorm:"type:decimal(7,4);not null;default:0" json:"pct_current"`
	PercentPrevious decimal.Decimal `gorm:"type:decimal(7,4);not null;default:0" json:"pct_previous"`
	Position        int             `gorm:"not null;default:0" json:"position"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func (LineItem) TableName() string {
	return "quote_line_items"
}

// EachLine walks every line item of the quote in tree order.
func (q *Quote) EachLine(fn func(part *Part, sub *SubPart, line *LineItem)) {
	for i := range q.Parts {
		part := &q.Parts[i]
		for j := range part.SubParts {
			sub := &part.SubParts[j]
			for k := range sub.Lines {
				fn(part, sub, &sub.Lines[k])
			}
		}
	}
}
