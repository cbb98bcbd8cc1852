package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/batisuivi/situations-api/internal/metrics"
	"github.com/batisuivi/situations-api/internal/models"
	"github.com/batisuivi/situations-api/internal/repository"
	"github.com/batisuivi/situations-api/internal/situation"
	"github.com/batisuivi/situations-api/internal/statemachine"
	"github.com/batisuivi/situations-api/pkg/logger"
	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// Snapshot kinds, used in persist reports and metrics
const (
	snapshotLineItem      = "line_item"
	snapshotAmendmentLine = "amendment_line"
	snapshotSupplementary = "supplementary"
)

// SituationOptions are the deployment-level billing settings
type SituationOptions struct {
	GuaranteeRate      decimal.Decimal
	DefaultProrataRate decimal.Decimal
	// MaxAttempts bounds header inserts when the statement number is taken.
	MaxAttempts      int
	WriteConcurrency int
	// ReconcileAfter is how long a pending or partial statement is left alone
	// before the scheduled reconciliation picks it up.
	ReconcileAfter time.Duration
	ReconcileBatch int
}

// ComposeRequest is an operator's request to compose the statement of a period
type ComposeRequest struct {
	SiteID           uint
	Month            int
	Year             int
	ProrataRate      *decimal.Decimal
	ThirdPartyAmount *decimal.Decimal
	Supplementary    []models.SupplementaryLine
	AllowDegraded    bool
	Actor            Actor
}

// Composition is what a compose or reconcile call produced. Result is set
// whenever the engine ran, Statement and Report once a header was written.
type Composition struct {
	Result    *situation.Result `json:"result,omitempty"`
	Statement *models.Statement `json:"statement,omitempty"`
	Report    *PersistReport    `json:"report,omitempty"`
}

type SituationService struct {
	sites      repository.SiteRepository
	quotes     repository.QuoteRepository
	amendments repository.AmendmentRepository
	thirdParty repository.ThirdPartyRepository
	statements repository.StatementRepository
	auditSvc   *AuditService
	opts       SituationOptions
	now        func() time.Time
}

func NewSituationService(repos *repository.Repositories, auditSvc *AuditService, opts SituationOptions) *SituationService {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 2
	}
	if opts.WriteConcurrency < 1 {
		opts.WriteConcurrency = 8
	}
	if opts.ReconcileBatch < 1 {
		opts.ReconcileBatch = 50
	}
	return &SituationService{
		sites:      repos.Site,
		quotes:     repos.Quote,
		amendments: repos.Amendment,
		thirdParty: repos.ThirdParty,
		statements: repos.Statement,
		auditSvc:   auditSvc,
		opts:       opts,
		now:        time.Now,
	}
}

// Preview composes the statement of a period without persisting anything.
// On a period that already has a statement it returns the revision figures.
func (s *SituationService) Preview(ctx context.Context, req ComposeRequest) (*situation.Result, error) {
	return s.prepare(ctx, req)
}

// Compose composes and persists the statement of a period. A numbering
// conflict recomposes from fresh reads, at most MaxAttempts times in total.
func (s *SituationService) Compose(ctx context.Context, req ComposeRequest) (*Composition, error) {
	start := s.now()
	log := logger.With("run_id", uuid.NewString(), "site_id", req.SiteID, "month", req.Month, "year", req.Year)

	var (
		comp *Composition
		stmt *models.Statement
	)
	for attempt := 1; ; attempt++ {
		res, err := s.prepare(ctx, req)
		if err != nil {
			metrics.ObserveCompose(string(situation.OutcomeFatal), time.Since(start))
			return nil, err
		}
		comp = &Composition{Result: res}

		if res.Revision {
			metrics.ObserveCompose("period_exists", time.Since(start))
			return comp, fmt.Errorf("%w: statement n°%d", ErrPeriodAlreadyComposed, res.Statement.StatementNumber)
		}
		if res.Outcome == situation.OutcomeDegraded {
			log.Warn("composing on a degraded baseline", "reason", res.Reason, "allowed", req.AllowDegraded)
			captureWarning("degraded baseline", res.Reason, map[string]string{
				"site_id": strconv.FormatUint(uint64(req.SiteID), 10),
				"period":  fmt.Sprintf("%02d/%d", req.Month, req.Year),
			})
			if !req.AllowDegraded {
				metrics.ObserveCompose("degraded_blocked", time.Since(start))
				return comp, fmt.Errorf("%w: %s", ErrDegradedBaseline, res.Reason)
			}
		}

		stmt, err = s.insertHeader(ctx, res)
		if err == nil {
			break
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			metrics.ObserveCompose(string(situation.OutcomeFatal), time.Since(start))
			return comp, fmt.Errorf("failed to insert statement header: %w", err)
		}
		// the period may be taken even when the baseline lookup could not see it
		if taken, lookupErr := s.statements.PeriodExists(ctx, req.SiteID, req.Month, req.Year); lookupErr == nil && taken {
			metrics.ObserveCompose("period_exists", time.Since(start))
			return comp, fmt.Errorf("%w: %02d/%d was composed concurrently", ErrPeriodAlreadyComposed, req.Month, req.Year)
		}
		if attempt >= s.opts.MaxAttempts {
			metrics.ObserveCompose("numbering_conflict", time.Since(start))
			conflict := fmt.Errorf("%w: n°%d still taken after %d attempts", ErrNumberingConflict, res.Statement.StatementNumber, attempt)
			sentry.CaptureException(conflict)
			return comp, conflict
		}
		log.Warn("statement number taken, recomposing", "number", res.Statement.StatementNumber, "attempt", attempt)
	}
	comp.Statement = stmt

	report := s.writeSnapshots(ctx, stmt, payloadOf(comp.Result), nil)
	comp.Report = &report
	s.settle(ctx, stmt, report)

	outcome := string(comp.Result.Outcome)
	if report.Failed > 0 {
		outcome = models.StatementStatusPartial
	}
	metrics.ObserveCompose(outcome, time.Since(start))

	s.auditSvc.Log(ctx, req.Actor, models.AuditActionCompose, "Statement", stmt.ID,
		fmt.Sprintf("Situation n°%d %02d/%d, net %s, status %s", stmt.StatementNumber, stmt.Month, stmt.Year,
			stmt.NetAmountAfterRetentions.StringFixed(2), stmt.Status))

	if report.Failed > 0 {
		perr := &PartialPersistenceError{StatementID: stmt.ID, Report: report}
		log.Warn("statement persisted partially", "statement_id", stmt.ID, "failed", report.Failed, "written", report.Written)
		sentry.CaptureException(perr)
		return comp, perr
	}

	log.Info("statement composed", "statement_id", stmt.ID, "number", stmt.StatementNumber, "outcome", outcome,
		"snapshots", comp.Result.SnapshotCount())
	return comp, nil
}

// prepare loads the site data and runs the engine
func (s *SituationService) prepare(ctx context.Context, req ComposeRequest) (*situation.Result, error) {
	site, err := s.sites.FindByID(ctx, req.SiteID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: site %d", ErrNotFound, req.SiteID)
		}
		return nil, fmt.Errorf("%w: site %d: %w", ErrMissingCollaboratorData, req.SiteID, err)
	}

	quote, err := s.quotes.FindTree(ctx, site.QuoteID)
	if err != nil {
		return nil, fmt.Errorf("%w: quote %d: %w", ErrMissingCollaboratorData, site.QuoteID, err)
	}

	amendments, err := s.amendments.FindBySite(ctx, site.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: amendments: %w", ErrMissingCollaboratorData, err)
	}

	numbers, err := s.statements.ListNumbers(ctx, site.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: statement numbers: %w", ErrMissingCollaboratorData, err)
	}

	seed, err := s.thirdParty.SumForPeriod(ctx, site.ID, req.Month, req.Year)
	if err != nil {
		return nil, fmt.Errorf("%w: third-party invoices: %w", ErrMissingCollaboratorData, err)
	}

	baseline := situation.Resolve(ctx, s.statements, site.ID, req.Month, req.Year, site.DefaultSupplementaryLines)

	res, err := situation.Compose(situation.Input{
		SiteID:     site.ID,
		Month:      req.Month,
		Year:       req.Year,
		Quote:      quote,
		Amendments: amendments,
		Baseline:   baseline,
		Adjustments: situation.Adjustments{
			ProrataRate:        req.ProrataRate,
			ThirdPartySeed:     seed,
			ThirdPartyOverride: req.ThirdPartyAmount,
			Supplementary:      req.Supplementary,
		},
		GuaranteeRate:      s.opts.GuaranteeRate,
		DefaultProrataRate: s.opts.DefaultProrataRate,
		ExistingNumbers:    numbers,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return res, nil
}

func payloadOf(res *situation.Result) models.StatementSnapshots {
	return models.StatementSnapshots{
		LineItems:          res.LineItems,
		AmendmentLines:     res.AmendmentLines,
		SupplementaryLines: res.SupplementaryLines,
	}
}

// insertHeader writes the statement header with its snapshot payload, status pending
func (s *SituationService) insertHeader(ctx context.Context, res *situation.Result) (*models.Statement, error) {
	stmt := res.Statement
	if err := stmt.EncodeSnapshots(payloadOf(res)); err != nil {
		return nil, fmt.Errorf("failed to encode snapshot payload: %w", err)
	}
	stmt.GUID = uuid.NewString()
	stmt.Status = models.StatementStatusPending
	if err := s.statements.Create(ctx, &stmt); err != nil {
		return nil, err
	}
	return &stmt, nil
}

// writeSnapshots upserts every snapshot of the payload concurrently. Keys
// listed in existing are counted as written and skipped.
func (s *SituationService) writeSnapshots(ctx context.Context, stmt *models.Statement, payload models.StatementSnapshots, existing *repository.SnapshotKeys) PersistReport {
	var (
		mu     sync.Mutex
		report PersistReport
		g      errgroup.Group
	)
	g.SetLimit(s.opts.WriteConcurrency)

	record := func(kind, key string, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			report.Failed++
			report.Missing = append(report.Missing, kind+":"+key)
			metrics.AddSnapshotWriteFailures(kind, 1)
			logger.Warn("snapshot write failed", "statement_id", stmt.ID, "kind", kind, "key", key, "error", err)
			return
		}
		report.Written++
	}

	for _, item := range payload.LineItems {
		item := item
		item.ID = 0
		item.StatementID = stmt.ID
		key := strconv.FormatUint(uint64(item.LineItemID), 10)
		if existing != nil {
			if _, ok := existing.LineItems[item.LineItemID]; ok {
				record(snapshotLineItem, key, nil)
				continue
			}
		}
		g.Go(func() error {
			record(snapshotLineItem, key, s.statements.UpsertLineItem(ctx, &item))
			return nil
		})
	}

	for _, line := range payload.AmendmentLines {
		line := line
		line.ID = 0
		line.StatementID = stmt.ID
		key := strconv.FormatUint(uint64(line.AmendmentLineID), 10)
		if existing != nil {
			if _, ok := existing.AmendmentLines[line.AmendmentLineID]; ok {
				record(snapshotAmendmentLine, key, nil)
				continue
			}
		}
		g.Go(func() error {
			record(snapshotAmendmentLine, key, s.statements.UpsertAmendmentLine(ctx, &line))
			return nil
		})
	}

	for _, line := range payload.SupplementaryLines {
		line := line
		line.ID = 0
		line.StatementID = stmt.ID
		if existing != nil {
			if _, ok := existing.Supplementary[line.Description]; ok {
				record(snapshotSupplementary, line.Description, nil)
				continue
			}
		}
		g.Go(func() error {
			record(snapshotSupplementary, line.Description, s.statements.UpsertSupplementaryLine(ctx, &line))
			return nil
		})
	}

	_ = g.Wait()
	sort.Strings(report.Missing)
	return report
}

// settle moves the statement to complete or partial depending on the report.
// A failed status write leaves the row as it was for reconciliation to settle.
func (s *SituationService) settle(ctx context.Context, stmt *models.Statement, report PersistReport) {
	from := stmt.Status
	sf := statemachine.NewStatementFSM(stmt)

	var err error
	if report.Failed == 0 {
		err = sf.Complete(ctx)
	} else {
		err = sf.MarkPartial(ctx)
	}
	if err != nil {
		logger.Warn("statement status not changed", "statement_id", stmt.ID, "status", from, "error", err)
		return
	}
	if stmt.Status == from {
		return
	}

	ok, err := s.statements.UpdateStatus(ctx, stmt.ID, from, stmt.Status)
	if err != nil || !ok {
		logger.Warn("statement status write failed", "statement_id", stmt.ID, "from", from, "to", stmt.Status, "error", err)
		stmt.Status = from
	}
}

// Reconcile replays the snapshot writes missing from a pending or partial
// statement. It is idempotent: a complete statement is returned unchanged.
func (s *SituationService) Reconcile(ctx context.Context, id uint, actor Actor) (*Composition, error) {
	stmt, err := s.statements.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: statement %d", ErrNotFound, id)
		}
		return nil, err
	}

	if stmt.IsComplete() {
		written := len(stmt.LineItems) + len(stmt.AmendmentLines) + len(stmt.SupplementaryLines)
		return &Composition{Statement: stmt, Report: &PersistReport{Written: written}}, nil
	}

	payload, err := stmt.DecodeSnapshots()
	if err != nil {
		metrics.IncReconcile(metrics.ResultError)
		return nil, fmt.Errorf("statement %d has an unreadable snapshot payload: %w", id, err)
	}

	keys, err := s.statements.SnapshotKeys(ctx, id)
	if err != nil {
		metrics.IncReconcile(metrics.ResultError)
		return nil, fmt.Errorf("failed to read snapshot keys of statement %d: %w", id, err)
	}

	logger.Debug("reconciling statement", "statement_id", id, "status", stmt.Status, "present", keys.Count())
	report := s.writeSnapshots(ctx, stmt, payload, keys)
	s.settle(ctx, stmt, report)
	metrics.IncReconcile(stmt.Status)

	s.auditSvc.Log(ctx, actor, models.AuditActionReconcile, "Statement", stmt.ID,
		fmt.Sprintf("Reconciliation: %d written, %d failed, status %s", report.Written, report.Failed, stmt.Status))

	if reloaded, err := s.statements.FindByID(ctx, id); err == nil {
		reloaded.Status = stmt.Status
		stmt = reloaded
	}
	comp := &Composition{Statement: stmt, Report: &report}
	if report.Failed > 0 {
		return comp, &PartialPersistenceError{StatementID: stmt.ID, Report: report}
	}
	logger.Info("statement reconciled", "statement_id", stmt.ID, "written", report.Written)
	return comp, nil
}

// ReconcilePending reconciles a batch of stale pending or partial statements
func (s *SituationService) ReconcilePending(ctx context.Context) error {
	cutoff := s.now().Add(-s.opts.ReconcileAfter)
	stmts, err := s.statements.FindReconcilable(ctx, cutoff, s.opts.ReconcileBatch)
	if err != nil {
		return fmt.Errorf("failed to list reconcilable statements: %w", err)
	}

	var errs []error
	for _, stmt := range stmts {
		if _, err := s.Reconcile(ctx, stmt.ID, Actor{}); err != nil {
			errs = append(errs, err)
		}
	}
	if len(stmts) > 0 {
		logger.Info("reconciliation pass", "statements", len(stmts), "failed", len(errs))
	}
	return errors.Join(errs...)
}

// List returns the statements of a site
func (s *SituationService) List(ctx context.Context, siteID uint, query *repository.ListQuery) ([]models.StatementSummary, int64, error) {
	stmts, total, err := s.statements.List(ctx, siteID, query)
	if err != nil {
		return nil, 0, err
	}
	summaries := make([]models.StatementSummary, 0, len(stmts))
	for i := range stmts {
		summaries = append(summaries, stmts[i].ToSummary())
	}
	return summaries, total, nil
}

// Get returns a statement with its snapshots
func (s *SituationService) Get(ctx context.Context, id uint) (*models.Statement, error) {
	stmt, err := s.statements.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: statement %d", ErrNotFound, id)
		}
		return nil, err
	}
	return stmt, nil
}

func captureWarning(title, detail string, tags map[string]string) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentry.LevelWarning)
		scope.SetTags(tags)
		scope.SetContext("situation", sentry.Context{"detail": detail})
		sentry.CaptureMessage(title)
	})
}
