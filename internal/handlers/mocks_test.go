package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/batisuivi/situations-api/internal/models"
	"github.com/batisuivi/situations-api/internal/repository"
	"github.com/batisuivi/situations-api/internal/services"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type mockSiteRepo struct {
	repository.SiteRepository
	site *models.Site
}

func (m *mockSiteRepo) FindByID(ctx context.Context, id uint) (*models.Site, error) {
	if m.site == nil || m.site.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *m.site
	return &cp, nil
}

type mockQuoteRepo struct {
	repository.QuoteRepository
	quote   *models.Quote
	updates map[uint]decimal.Decimal
}

func (m *mockQuoteRepo) FindTree(ctx context.Context, id uint) (*models.Quote, error) {
	return m.quote, nil
}

func (m *mockQuoteRepo) FindLine(ctx context.Context, quoteID, lineID uint) (*models.LineItem, error) {
	if quoteID != m.quote.ID {
		return nil, gorm.ErrRecordNotFound
	}
	var found *models.LineItem
	m.quote.EachLine(func(_ *models.Part, _ *models.SubPart, line *models.LineItem) {
		if line.ID == lineID {
			found = line
		}
	})
	if found == nil {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *found
	return &cp, nil
}

func (m *mockQuoteRepo) UpdateLinePercent(ctx context.Context, lineID uint, pct decimal.Decimal) error {
	if m.updates == nil {
		m.updates = make(map[uint]decimal.Decimal)
	}
	m.updates[lineID] = pct
	return nil
}

type mockAmendmentRepo struct {
	repository.AmendmentRepository
}

func (m *mockAmendmentRepo) FindBySite(ctx context.Context, siteID uint) ([]models.Amendment, error) {
	return nil, nil
}

func (m *mockAmendmentRepo) FindLine(ctx context.Context, lineID uint) (*models.AmendmentInvoiceLine, error) {
	return nil, gorm.ErrRecordNotFound
}

type mockThirdPartyRepo struct {
	repository.ThirdPartyRepository
}

func (m *mockThirdPartyRepo) SumForPeriod(ctx context.Context, siteID uint, month, year int) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

type mockAuditRepo struct {
	repository.AuditRepository
	mu      sync.Mutex
	entries []models.AuditLog
}

func (m *mockAuditRepo) Create(ctx context.Context, entry *models.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *mockAuditRepo) List(ctx context.Context, entity string, entityID uint, limit, offset int) ([]models.AuditLog, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.AuditLog
	for _, e := range m.entries {
		if (entity == "" || e.Entity == entity) && (entityID == 0 || e.EntityID == entityID) {
			out = append(out, e)
		}
	}
	return out, int64(len(out)), nil
}

// mockStatementRepo stores headers and snapshots in memory
type mockStatementRepo struct {
	repository.StatementRepository
	mu        sync.Mutex
	byID      map[uint]*models.Statement
	latestErr error
}

func (m *mockStatementRepo) FindByID(ctx context.Context, id uint) (*models.Statement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stmt, ok := m.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *stmt
	return &cp, nil
}

func (m *mockStatementRepo) FindByPeriod(ctx context.Context, siteID uint, month, year int) (*models.Statement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.byID {
		if s.SiteID == siteID && s.Month == month && s.Year == year {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockStatementRepo) FindLatest(ctx context.Context, siteID uint) (*models.Statement, error) {
	return nil, m.latestErr
}

func (m *mockStatementRepo) ListNumbers(ctx context.Context, siteID uint) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var numbers []int
	for _, s := range m.byID {
		if s.SiteID == siteID {
			numbers = append(numbers, s.StatementNumber)
		}
	}
	return numbers, nil
}

func (m *mockStatementRepo) List(ctx context.Context, siteID uint, query *repository.ListQuery) ([]models.Statement, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Statement
	for _, s := range m.byID {
		if s.SiteID == siteID {
			out = append(out, *s)
		}
	}
	return out, int64(len(out)), nil
}

func (m *mockStatementRepo) Create(ctx context.Context, stmt *models.Statement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stmt.ID = uint(100 + len(m.byID))
	stmt.CreatedAt = time.Now()
	cp := *stmt
	m.byID[stmt.ID] = &cp
	return nil
}

func (m *mockStatementRepo) UpsertLineItem(ctx context.Context, item *models.StatementLineItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if stmt, ok := m.byID[item.StatementID]; ok {
		stmt.LineItems = append(stmt.LineItems, *item)
	}
	return nil
}

func (m *mockStatementRepo) UpsertAmendmentLine(ctx context.Context, line *models.StatementAmendmentLine) error {
	return nil
}

func (m *mockStatementRepo) UpsertSupplementaryLine(ctx context.Context, line *models.StatementSupplementaryLine) error {
	return nil
}

func (m *mockStatementRepo) UpdateStatus(ctx context.Context, id uint, from, to string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stmt, ok := m.byID[id]
	if !ok || stmt.Status != from {
		return false, nil
	}
	stmt.Status = to
	return true, nil
}

func (m *mockStatementRepo) FindReconcilable(ctx context.Context, olderThan time.Time, limit int) ([]models.Statement, error) {
	return nil, nil
}

// fixture is a site with a two-line quote at 10%
type fixture struct {
	sites      *mockSiteRepo
	quotes     *mockQuoteRepo
	statements *mockStatementRepo
	audit      *mockAuditRepo
}

func newFixture() *fixture {
	return &fixture{
		sites: &mockSiteRepo{site: &models.Site{ID: 1, Name: "Résidence Les Tilleuls", QuoteID: 1}},
		quotes: &mockQuoteRepo{quote: &models.Quote{
			ID:           1,
			TotalExclTax: d("100000"),
			VATRate:      d("20"),
			Parts: []models.Part{{
				ID:   10,
				Name: "Gros oeuvre",
				SubParts: []models.SubPart{{
					ID:   100,
					Name: "Fondations",
					Lines: []models.LineItem{
						{ID: 1, Description: "Semelles", TotalExclTax: d("60000"), PercentCurrent: d("10")},
						{ID: 2, Description: "Longrines", TotalExclTax: d("40000"), PercentCurrent: d("10")},
					},
				}},
			}},
		}},
		statements: &mockStatementRepo{byID: make(map[uint]*models.Statement)},
		audit:      &mockAuditRepo{},
	}
}

func (f *fixture) repos() *repository.Repositories {
	return &repository.Repositories{
		Site:       f.sites,
		Quote:      f.quotes,
		Amendment:  &mockAmendmentRepo{},
		ThirdParty: &mockThirdPartyRepo{},
		Statement:  f.statements,
		Audit:      f.audit,
	}
}

func (f *fixture) services() *services.Services {
	repos := f.repos()
	auditSvc := services.NewAuditService(f.audit, nil)
	situationSvc := services.NewSituationService(repos, auditSvc, services.SituationOptions{
		GuaranteeRate:      d("5"),
		DefaultProrataRate: d("2.5"),
		MaxAttempts:        2,
		WriteConcurrency:   2,
		ReconcileAfter:     10 * time.Minute,
	})
	return &services.Services{
		Situation: situationSvc,
		Progress:  services.NewProgressService(repos, auditSvc),
		Export:    services.NewExportService(repos),
		Audit:     auditSvc,
	}
}
