package services

import (
	"context"
	"sync"
	"time"

	"github.com/batisuivi/situations-api/internal/models"
	"github.com/batisuivi/situations-api/internal/repository"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type mockSiteRepo struct {
	repository.SiteRepository
	mockFindByID func(ctx context.Context, id uint) (*models.Site, error)
}

func (m *mockSiteRepo) FindByID(ctx context.Context, id uint) (*models.Site, error) {
	return m.mockFindByID(ctx, id)
}

type mockQuoteRepo struct {
	repository.QuoteRepository
	mockFindTree func(ctx context.Context, id uint) (*models.Quote, error)
	mockFindLine func(ctx context.Context, quoteID, lineID uint) (*models.LineItem, error)
	updates      map[uint]decimal.Decimal
	updateErr    error
}

func (m *mockQuoteRepo) FindTree(ctx context.Context, id uint) (*models.Quote, error) {
	return m.mockFindTree(ctx, id)
}

func (m *mockQuoteRepo) FindLine(ctx context.Context, quoteID, lineID uint) (*models.LineItem, error) {
	return m.mockFindLine(ctx, quoteID, lineID)
}

func (m *mockQuoteRepo) UpdateLinePercent(ctx context.Context, lineID uint, pct decimal.Decimal) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	if m.updates == nil {
		m.updates = make(map[uint]decimal.Decimal)
	}
	m.updates[lineID] = pct
	return nil
}

type mockAmendmentRepo struct {
	repository.AmendmentRepository
	amendments   []models.Amendment
	findErr      error
	mockFindLine func(ctx context.Context, lineID uint) (*models.AmendmentInvoiceLine, error)
	updates      map[uint]decimal.Decimal
}

func (m *mockAmendmentRepo) FindBySite(ctx context.Context, siteID uint) ([]models.Amendment, error) {
	return m.amendments, m.findErr
}

func (m *mockAmendmentRepo) FindLine(ctx context.Context, lineID uint) (*models.AmendmentInvoiceLine, error) {
	return m.mockFindLine(ctx, lineID)
}

func (m *mockAmendmentRepo) UpdateLinePercent(ctx context.Context, lineID uint, pct decimal.Decimal) error {
	if m.updates == nil {
		m.updates = make(map[uint]decimal.Decimal)
	}
	m.updates[lineID] = pct
	return nil
}

type mockThirdPartyRepo struct {
	repository.ThirdPartyRepository
	sum decimal.Decimal
	err error
}

func (m *mockThirdPartyRepo) SumForPeriod(ctx context.Context, siteID uint, month, year int) (decimal.Decimal, error) {
	return m.sum, m.err
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

// mockStatementRepo keeps written rows in memory. Upserts may run concurrently.
type mockStatementRepo struct {
	repository.StatementRepository
	mu sync.Mutex

	mockFindByPeriod func(ctx context.Context, siteID uint, month, year int) (*models.Statement, error)
	latest           *models.Statement
	latestErr        error
	periodTaken      bool
	mockListNumbers  func(ctx context.Context, siteID uint) ([]int, error)
	mockCreate       func(ctx context.Context, stmt *models.Statement) error
	byID             map[uint]*models.Statement
	keys             *repository.SnapshotKeys
	reconcilable     []models.Statement

	failLines         map[uint]bool
	failAmendment     map[uint]bool
	failSupplementary map[string]bool

	created        []models.Statement
	lineItems      []models.StatementLineItem
	amendmentLines []models.StatementAmendmentLine
	supplementary  []models.StatementSupplementaryLine
	transitions    []string
}

func newMockStatementRepo() *mockStatementRepo {
	return &mockStatementRepo{byID: make(map[uint]*models.Statement)}
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
	if m.mockFindByPeriod != nil {
		return m.mockFindByPeriod(ctx, siteID, month, year)
	}
	return nil, nil
}

func (m *mockStatementRepo) FindLatest(ctx context.Context, siteID uint) (*models.Statement, error) {
	return m.latest, m.latestErr
}

func (m *mockStatementRepo) PeriodExists(ctx context.Context, siteID uint, month, year int) (bool, error) {
	return m.periodTaken, nil
}

func (m *mockStatementRepo) ListNumbers(ctx context.Context, siteID uint) ([]int, error) {
	if m.mockListNumbers != nil {
		return m.mockListNumbers(ctx, siteID)
	}
	return nil, nil
}

func (m *mockStatementRepo) List(ctx context.Context, siteID uint, query *repository.ListQuery) ([]models.Statement, int64, error) {
	var out []models.Statement
	for _, s := range m.created {
		if s.SiteID == siteID {
			out = append(out, s)
		}
	}
	return out, int64(len(out)), nil
}

func (m *mockStatementRepo) Create(ctx context.Context, stmt *models.Statement) error {
	if m.mockCreate != nil {
		if err := m.mockCreate(ctx, stmt); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stmt.ID = uint(100 + len(m.created))
	stmt.CreatedAt = time.Now()
	m.created = append(m.created, *stmt)
	cp := *stmt
	m.byID[stmt.ID] = &cp
	return nil
}

func (m *mockStatementRepo) UpsertLineItem(ctx context.Context, item *models.StatementLineItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failLines[item.LineItemID] {
		return gorm.ErrInvalidDB
	}
	m.lineItems = append(m.lineItems, *item)
	return nil
}

func (m *mockStatementRepo) UpsertAmendmentLine(ctx context.Context, line *models.StatementAmendmentLine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAmendment[line.AmendmentLineID] {
		return gorm.ErrInvalidDB
	}
	m.amendmentLines = append(m.amendmentLines, *line)
	return nil
}

func (m *mockStatementRepo) UpsertSupplementaryLine(ctx context.Context, line *models.StatementSupplementaryLine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSupplementary[line.Description] {
		return gorm.ErrInvalidDB
	}
	m.supplementary = append(m.supplementary, *line)
	return nil
}

func (m *mockStatementRepo) SnapshotKeys(ctx context.Context, statementID uint) (*repository.SnapshotKeys, error) {
	if m.keys != nil {
		return m.keys, nil
	}
	return &repository.SnapshotKeys{
		LineItems:      map[uint]struct{}{},
		AmendmentLines: map[uint]struct{}{},
		Supplementary:  map[string]struct{}{},
	}, nil
}

func (m *mockStatementRepo) UpdateStatus(ctx context.Context, id uint, from, to string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions = append(m.transitions, from+"->"+to)
	if stmt, ok := m.byID[id]; ok {
		if stmt.Status != from {
			return false, nil
		}
		stmt.Status = to
	}
	return true, nil
}

func (m *mockStatementRepo) FindReconcilable(ctx context.Context, olderThan time.Time, limit int) ([]models.Statement, error) {
	return m.reconcilable, nil
}

// fixture wires a site with a one-line quote and in-memory repositories
type fixture struct {
	sites      *mockSiteRepo
	quotes     *mockQuoteRepo
	amendments *mockAmendmentRepo
	thirdParty *mockThirdPartyRepo
	statements *mockStatementRepo
	audit      *mockAuditRepo
	quote      *models.Quote
}

func newFixture() *fixture {
	quote := &models.Quote{
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
	}
	site := &models.Site{
		ID:      1,
		Name:    "Résidence Les Tilleuls",
		QuoteID: 1,
		DefaultSupplementaryLines: []models.SiteSupplementaryLine{
			{Description: "Avance", Kind: models.SupplementaryKindDeduction},
		},
	}

	f := &fixture{
		sites: &mockSiteRepo{mockFindByID: func(ctx context.Context, id uint) (*models.Site, error) {
			if id != site.ID {
				return nil, gorm.ErrRecordNotFound
			}
			cp := *site
			return &cp, nil
		}},
		amendments: &mockAmendmentRepo{},
		thirdParty: &mockThirdPartyRepo{},
		statements: newMockStatementRepo(),
		audit:      &mockAuditRepo{},
		quote:      quote,
	}
	f.quotes = &mockQuoteRepo{mockFindTree: func(ctx context.Context, id uint) (*models.Quote, error) {
		return f.quote, nil
	}}
	return f
}

func (f *fixture) repos() *repository.Repositories {
	return &repository.Repositories{
		Site:       f.sites,
		Quote:      f.quotes,
		Amendment:  f.amendments,
		ThirdParty: f.thirdParty,
		Statement:  f.statements,
		Audit:      f.audit,
	}
}

func (f *fixture) situationService() *SituationService {
	return NewSituationService(f.repos(), NewAuditService(f.audit, nil), SituationOptions{
		GuaranteeRate:      d("5"),
		DefaultProrataRate: d("2.5"),
		MaxAttempts:        2,
		WriteConcurrency:   4,
		ReconcileAfter:     10 * time.Minute,
	})
}
