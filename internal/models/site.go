package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Site represents a construction site (chantier) billed through monthly statements
type Site struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Name       string    `gorm:"not null" json:"name"`
	ClientName string    `gorm:"not null" json:"client_name"`
	Address    string    `json:"address"`
	QuoteID    uint      `gorm:"not null;index" json:"quote_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	// Associations
	Quote                     *Quote                  `gorm:"foreignKey:QuoteID" json:"quote,omitempty"`
	DefaultSupplementaryLines []SiteSupplementaryLine `gorm:"foreignKey:SiteID" json:"default_supplementary_lines,omitempty"`
}

// TableName specifies the table name for Site
func (Site) TableName() string {
	return "sites"
}

// Supplementary line kinds
const (
	SupplementaryKindDeduction = "deduction"
	SupplementaryKindAddition  = "addition"
)

// SupplementaryLine is a free-form adjustment (advance, charge-back...) applied
// after retentions. It is not tied to the quote hierarchy.
type SupplementaryLine struct {
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Kind        string          `json:"kind"`
	Settled     bool            `json:"settled"`
}

// IsDeduction reports whether the line reduces the payable amount
func (l SupplementaryLine) IsDeduction() bool {
	return l.Kind == SupplementaryKindDeduction
}

// IsAddition reports whether the line increases the payable amount
func (l SupplementaryLine) IsAddition() bool {
	return l.Kind == SupplementaryKindAddition
}

// SiteSupplementaryLine is a default adjustment configured for a site. It seeds
// every statement of the site with a zero amount.
type SiteSupplementaryLine struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	SiteID      uint   `gorm:"not null;index" json:"site_id"`
	Description string `gorm:"not null" json:"description"`
	Kind        string `gorm:"not null;default:deduction" json:"kind"`
	Position    int    `gorm:"not null;default:0" json:"position"`
}

func (SiteSupplementaryLine) TableName() string {
	return "site_supplementary_lines"
}

// ToLine converts the default into an unsettled line with a zero amount
func (d SiteSupplementaryLine) ToLine() SupplementaryLine {
	return SupplementaryLine{
		Description: d.Description,
		Amount:      decimal.Zero,
		Kind:        d.Kind,
	}
}

// ThirdPartyInvoice is an external (CIE) invoice withheld from a statement
type ThirdPartyInvoice struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	SiteID        uint            `gorm:"not null;index:idx_third_party_period" json:"site_id"`
	Month         int             `gorm:"not null;index:idx_third_party_period" json:"month"`
	Year          int             `gorm:"not null;index:idx_third_party_period" json:"year"`
	Supplier      string          `gorm:"not null" json:"supplier"`
	Reference     string          `json:"reference"`
	AmountExclTax decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"amount_excl_tax"`
	CreatedAt     time.Time       `json:"created_at"`
}

func (ThirdPartyInvoice) TableName() string {
	return "third_party_invoices"
}
