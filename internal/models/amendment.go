package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Amendment represents a contract change order (avenant) on a site
type Amendment struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	SiteID      uint            `gorm:"not null;index" json:"site_id"`
	Number      int             `gorm:"not null" json:"number"`
	Label       string          `json:"label"`
	TotalAmount decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"total_amount"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`

	// Associations
	Lines []AmendmentInvoiceLine `gorm:"foreignKey:AmendmentID" json:"lines,omitempty"`
}

// TableName specifies the table name for Amendment
func (Amendment) TableName() string {
	return "amendments"
}

// AmendmentInvoiceLine is a billable TS line of an amendment
type AmendmentInvoiceLine struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	AmendmentID     uint            `gorm:"not null;index" json:"amendment_id"`
	Description     string          `gorm:"type:text;not null" json:"description"`
	AmountExclTax   decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"amount_excl_tax"`
	PercentCurrent  decimal.Decimal `gorm:"type:decimal(7,4);not null;default:0" json:"pct_current"`
	PercentPrevious decimal.Decimal `gorm:"type:decimal(7,4);not null;default:0" json:"pct_previous"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func (AmendmentInvoiceLine) TableName() string {
	return "amendment_invoice_lines"
}
