package repository

import (
	"errors"

	"gorm.io/gorm"
)

// Repositories holds all repository instances
type Repositories struct {
	Site       SiteRepository
	Quote      QuoteRepository
	Amendment  AmendmentRepository
	ThirdParty ThirdPartyRepository
	Statement  StatementRepository
	Audit      AuditRepository
}

// NewRepositories creates all repository instances
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Site:       NewSiteRepository(db),
		Quote:      NewQuoteRepository(db),
		Amendment:  NewAmendmentRepository(db),
		ThirdParty: NewThirdPartyRepository(db),
		Statement:  NewStatementRepository(db),
		Audit:      NewAuditRepository(db),
	}
}

// ListQuery represents common query parameters
type ListQuery struct {
	Page    int
	PerPage int
	SortBy  string
	SortDir string
	Filters map[string]string
}

// NewListQuery creates a ListQuery with defaults
func NewListQuery() *ListQuery {
	return &ListQuery{
		Page:    1,
		PerPage: 20,
		Filters: make(map[string]string),
	}
}

func (q *ListQuery) offset() int {
	if q.Page < 1 {
		return 0
	}
	return (q.Page - 1) * q.PerPage
}

// notFoundAsNil turns gorm.ErrRecordNotFound into a nil error so lookups can
// report "nothing there" as (nil, nil)
func notFoundAsNil(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	return err
}
