package repository

import (
	"context"

	"github.com/batisuivi/situations-api/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ThirdPartyRepository defines the interface for external (CIE) invoice access
type ThirdPartyRepository interface {
	FindForPeriod(ctx context.Context, siteID uint, month, year int) ([]models.ThirdPartyInvoice, error)
	SumForPeriod(ctx context.Context, siteID uint, month, year int) (decimal.Decimal, error)
}

type thirdPartyRepository struct {
	db *gorm.DB
}

// NewThirdPartyRepository creates a new third-party invoice repository
func NewThirdPartyRepository(db *gorm.DB) ThirdPartyRepository {
	return &thirdPartyRepository{db: db}
}

func (r *thirdPartyRepository) FindForPeriod(ctx context.Context, siteID uint, month, year int) ([]models.ThirdPartyInvoice, error) {
	var invoices []models.ThirdPartyInvoice
	err := r.db.WithContext(ctx).
		Where("site_id = ? AND month = ? AND year = ?", siteID, month, year).
		Order("created_at ASC").
		Find(&invoices).Error
	return invoices, err
}

// SumForPeriod is the third-party retention seed of a period
func (r *thirdPartyRepository) SumForPeriod(ctx context.Context, siteID uint, month, year int) (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}
	err := r.db.WithContext(ctx).
		Model(&models.ThirdPartyInvoice{}).
		Select("COALESCE(SUM(amount_excl_tax), 0) AS total").
		Where("site_id = ? AND month = ? AND year = ?", siteID, month, year).
		Scan(&result).Error
	return result.Total, err
}
