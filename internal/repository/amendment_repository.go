package repository

import (
	"context"

	"github.com/batisuivi/situations-api/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AmendmentRepository defines the interface for amendment (TS) data access
type AmendmentRepository interface {
	FindBySite(ctx context.Context, siteID uint) ([]models.Amendment, error)
	FindLine(ctx context.Context, lineID uint) (*models.AmendmentInvoiceLine, error)
	UpdateLinePercent(ctx context.Context, lineID uint, pct decimal.Decimal) error
}

type amendmentRepository struct {
	db *gorm.DB
}

// NewAmendmentRepository creates a new amendment repository
func NewAmendmentRepository(db *gorm.DB) AmendmentRepository {
	return &amendmentRepository{db: db}
}

func (r *amendmentRepository) FindBySite(ctx context.Context, siteID uint) ([]models.Amendment, error) {
	var amendments []models.Amendment
	err := r.db.WithContext(ctx).
		Where("site_id = ?", siteID).
		Preload("Lines", func(db *gorm.DB) *gorm.DB {
			return db.Order("id ASC")
		}).
		Order("number ASC").
		Find(&amendments).Error
	return amendments, err
}

func (r *amendmentRepository) FindLine(ctx context.Context, lineID uint) (*models.AmendmentInvoiceLine, error) {
	var line models.AmendmentInvoiceLine
	if err := r.db.WithContext(ctx).First(&line, lineID).Error; err != nil {
		return nil, err
	}
	return &line, nil
}

func (r *amendmentRepository) UpdateLinePercent(ctx context.Context, lineID uint, pct decimal.Decimal) error {
	return r.db.WithContext(ctx).
		Model(&models.AmendmentInvoiceLine{}).
		Where("id = ?", lineID).
		Update("percent_current", pct).Error
}
