package repository

import (
	"context"
	"time"

	"github.com/batisuivi/situations-api/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StatementRepository defines the interface for statement data access.
// FindByPeriod and FindLatest return (nil, nil) when nothing matches.
type StatementRepository interface {
	FindByID(ctx context.Context, id uint) (*models.Statement, error)
	FindByPeriod(ctx context.Context, siteID uint, month, year int) (*models.Statement, error)
	FindLatest(ctx context.Context, siteID uint) (*models.Statement, error)
	PeriodExists(ctx context.Context, siteID uint, month, year int) (bool, error)
	ListNumbers(ctx context.Context, siteID uint) ([]int, error)
	List(ctx context.Context, siteID uint, query *ListQuery) ([]models.Statement, int64, error)
	Create(ctx context.Context, stmt *models.Statement) error
	UpsertLineItem(ctx context.Context, item *models.StatementLineItem) error
	UpsertAmendmentLine(ctx context.Context, line *models.StatementAmendmentLine) error
	UpsertSupplementaryLine(ctx context.Context, line *models.StatementSupplementaryLine) error
	SnapshotKeys(ctx context.Context, statementID uint) (*SnapshotKeys, error)
	UpdateStatus(ctx context.Context, id uint, from, to string) (bool, error)
	FindReconcilable(ctx context.Context, olderThan time.Time, limit int) ([]models.Statement, error)
}

// SnapshotKeys lists the natural keys of the snapshots already written for a statement
type SnapshotKeys struct {
	LineItems      map[uint]struct{}
	AmendmentLines map[uint]struct{}
	Supplementary  map[string]struct{}
}

// Count is the number of snapshot rows found
func (k *SnapshotKeys) Count() int {
	return len(k.LineItems) + len(k.AmendmentLines) + len(k.Supplementary)
}

type statementRepository struct {
	db *gorm.DB
}

// NewStatementRepository creates a new statement repository
func NewStatementRepository(db *gorm.DB) StatementRepository {
	return &statementRepository{db: db}
}

func (r *statementRepository) withSnapshots(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("LineItems", func(db *gorm.DB) *gorm.DB {
			return db.Order("id ASC")
		}).
		Preload("AmendmentLines", func(db *gorm.DB) *gorm.DB {
			return db.Order("amendment_number ASC, id ASC")
		}).
		Preload("SupplementaryLines", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC, id ASC")
		})
}

func (r *statementRepository) FindByID(ctx context.Context, id uint) (*models.Statement, error) {
	var stmt models.Statement
	if err := r.withSnapshots(ctx).First(&stmt, id).Error; err != nil {
		return nil, err
	}
	return &stmt, nil
}

func (r *statementRepository) FindByPeriod(ctx context.Context, siteID uint, month, year int) (*models.Statement, error) {
	var stmt models.Statement
	err := r.withSnapshots(ctx).
		Where("site_id = ? AND month = ? AND year = ?", siteID, month, year).
		First(&stmt).Error
	if err != nil {
		return nil, notFoundAsNil(err)
	}
	return &stmt, nil
}

// FindLatest returns the statement of the site with the highest number.
// Numbering follows composition order, not the period a statement covers.
func (r *statementRepository) FindLatest(ctx context.Context, siteID uint) (*models.Statement, error) {
	var stmt models.Statement
	err := r.withSnapshots(ctx).
		Where("site_id = ?", siteID).
		Order("statement_number DESC").
		First(&stmt).Error
	if err != nil {
		return nil, notFoundAsNil(err)
	}
	return &stmt, nil
}

// PeriodExists reports whether the period has a header, without loading snapshots
func (r *statementRepository) PeriodExists(ctx context.Context, siteID uint, month, year int) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Statement{}).
		Where("site_id = ? AND month = ? AND year = ?", siteID, month, year).
		Count(&count).Error
	return count > 0, err
}

func (r *statementRepository) ListNumbers(ctx context.Context, siteID uint) ([]int, error) {
	var numbers []int
	err := r.db.WithContext(ctx).
		Model(&models.Statement{}).
		Where("site_id = ?", siteID).
		Order("statement_number ASC").
		Pluck("statement_number", &numbers).Error
	return numbers, err
}

func (r *statementRepository) List(ctx context.Context, siteID uint, query *ListQuery) ([]models.Statement, int64, error) {
	var statements []models.Statement
	var total int64

	db := r.db.WithContext(ctx).Model(&models.Statement{}).Where("site_id = ?", siteID)
	if query.Filters != nil {
		if val, ok := query.Filters["status"]; ok && val != "" {
			db = db.Where("status = ?", val)
		}
		if val, ok := query.Filters["year"]; ok && val != "" {
			db = db.Where("year = ?", val)
		}
	}

	if err := db.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	switch query.SortBy {
	case "statement_number", "created_at":
		order := query.SortBy
		if query.SortDir == "desc" {
			order += " DESC"
		}
		db = db.Order(order)
	default:
		db = db.Order("year DESC, month DESC")
	}

	err := db.Offset(query.offset()).Limit(query.PerPage).Find(&statements).Error
	return statements, total, err
}

// Create inserts the header only; snapshots are written separately
func (r *statementRepository) Create(ctx context.Context, stmt *models.Statement) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(stmt).Error
}

func (r *statementRepository) UpsertLineItem(ctx context.Context, item *models.StatementLineItem) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "statement_id"}, {Name: "line_item_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"part_name", "sub_part_name", "description", "total_excl_tax",
			"percent_previous", "percent_current", "amount", "period_amount",
		}),
	}).Create(item).Error
}

func (r *statementRepository) UpsertAmendmentLine(ctx context.Context, line *models.StatementAmendmentLine) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "statement_id"}, {Name: "amendment_line_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"amendment_id", "amendment_number", "description", "amount_excl_tax",
			"percent_previous", "percent_current", "amount", "period_amount",
		}),
	}).Create(line).Error
}

func (r *statementRepository) UpsertSupplementaryLine(ctx context.Context, line *models.StatementSupplementaryLine) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "statement_id"}, {Name: "description"}},
		DoUpdates: clause.AssignmentColumns([]string{"kind", "amount", "settled", "position"}),
	}).Create(line).Error
}

func (r *statementRepository) SnapshotKeys(ctx context.Context, statementID uint) (*SnapshotKeys, error) {
	var lineIDs, amendmentIDs []uint
	var descriptions []string

	db := r.db.WithContext(ctx)
	if err := db.Model(&models.StatementLineItem{}).Where("statement_id = ?", statementID).Pluck("line_item_id", &lineIDs).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.StatementAmendmentLine{}).Where("statement_id = ?", statementID).Pluck("amendment_line_id", &amendmentIDs).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.StatementSupplementaryLine{}).Where("statement_id = ?", statementID).Pluck("description", &descriptions).Error; err != nil {
		return nil, err
	}

	keys := &SnapshotKeys{
		LineItems:      make(map[uint]struct{}, len(lineIDs)),
		AmendmentLines: make(map[uint]struct{}, len(amendmentIDs)),
		Supplementary:  make(map[string]struct{}, len(descriptions)),
	}
	for _, id := range lineIDs {
		keys.LineItems[id] = struct{}{}
	}
	for _, id := range amendmentIDs {
		keys.AmendmentLines[id] = struct{}{}
	}
	for _, d := range descriptions {
		keys.Supplementary[d] = struct{}{}
	}
	return keys, nil
}

// UpdateStatus moves a statement from one status to another. It reports false
// when the statement was no longer in the expected status.
func (r *statementRepository) UpdateStatus(ctx context.Context, id uint, from, to string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Statement{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{"status": to, "updated_at": time.Now()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// FindReconcilable returns pending or partial statements last touched before olderThan
func (r *statementRepository) FindReconcilable(ctx context.Context, olderThan time.Time, limit int) ([]models.Statement, error) {
	var statements []models.Statement
	err := r.db.WithContext(ctx).
		Where("status IN ? AND updated_at < ?", []string{models.StatementStatusPending, models.StatementStatusPartial}, olderThan).
		Order("updated_at ASC").
		Limit(limit).
		Find(&statements).Error
	return statements, err
}
