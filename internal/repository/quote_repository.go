package repository

import (
	"context"

	"github.com/batisuivi/situations-api/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// QuoteRepository defines the interface for quote data access
type QuoteRepository interface {
	FindTree(ctx context.Context, id uint) (*models.Quote, error)
	FindLine(ctx context.Context, quoteID, lineID uint) (*models.LineItem, error)
	UpdateLinePercent(ctx context.Context, lineID uint, pct decimal.Decimal) error
}

type quoteRepository struct {
	db *gorm.DB
}

// NewQuoteRepository creates a new quote repository
func NewQuoteRepository(db *gorm.DB) QuoteRepository {
	return &quoteRepository{db: db}
}

func byPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC, id ASC")
}

// FindTree loads the quote with parts, sub-parts and lines in display order
func (r *quoteRepository) FindTree(ctx context.Context, id uint) (*models.Quote, error) {
	var quote models.Quote
	err := r.db.WithContext(ctx).
		Preload("Parts", byPosition).
		Preload("Parts.SubParts", byPosition).
		Preload("Parts.SubParts.Lines", byPosition).
		First(&quote, id).Error
	if err != nil {
		return nil, err
	}
	return &quote, nil
}

// FindLine loads a line only if it belongs to the given quote
func (r *quoteRepository) FindLine(ctx context.Context, quoteID, lineID uint) (*models.LineItem, error) {
	var line models.LineItem
	err := r.db.WithContext(ctx).
		Joins("JOIN quote_sub_parts ON quote_sub_parts.id = quote_line_items.sub_part_id").
		Joins("JOIN quote_parts ON quote_parts.id = quote_sub_parts.part_id").
		Where("quote_parts.quote_id = ? AND quote_line_items.id = ?", quoteID, lineID).
		First(&line).Error
	if err != nil {
		return nil, err
	}
	return &line, nil
}

func (r *quoteRepository) UpdateLinePercent(ctx context.Context, lineID uint, pct decimal.Decimal) error {
	return r.db.WithContext(ctx).
		Model(&models.LineItem{}).
		Where("id = ?", lineID).
		Update("percent_current", pct).Error
}
