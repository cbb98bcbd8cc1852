package repository

import (
	"context"

	"github.com/batisuivi/situations-api/internal/models"
	"gorm.io/gorm"
)

// SiteRepository defines the interface for site data access
type SiteRepository interface {
	FindByID(ctx context.Context, id uint) (*models.Site, error)
}

type siteRepository struct {
	db *gorm.DB
}

// NewSiteRepository creates a new site repository
func NewSiteRepository(db *gorm.DB) SiteRepository {
	return &siteRepository{db: db}
}

// FindByID loads the site with its default supplementary lines
func (r *siteRepository) FindByID(ctx context.Context, id uint) (*models.Site, error) {
	var site models.Site
	err := r.db.WithContext(ctx).
		Preload("DefaultSupplementaryLines", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC, id ASC")
		}).
		First(&site, id).Error
	if err != nil {
		return nil, err
	}
	return &site, nil
}
