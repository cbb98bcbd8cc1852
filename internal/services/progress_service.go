package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/batisuivi/situations-api/internal/metrics"
	"github.com/batisuivi/situations-api/internal/models"
	"github.com/batisuivi/situations-api/internal/repository"
	"github.com/batisuivi/situations-api/internal/situation"
	"github.com/batisuivi/situations-api/pkg/logger"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProgressUpdate is one percentage edit of a batch
type ProgressUpdate struct {
	LineID uint   `json:"line_id" binding:"required"`
	Kind   string `json:"kind"`
	Value  string `json:"value"`
}

// ProgressService records the completion percentage operators enter on quote
// and amendment lines. Out-of-range values are clamped and non-numeric values
// leave the line as it was.
type ProgressService struct {
	sites      repository.SiteRepository
	quotes     repository.QuoteRepository
	amendments repository.AmendmentRepository
	auditSvc   *AuditService
}

func NewProgressService(repos *repository.Repositories, auditSvc *AuditService) *ProgressService {
	return &ProgressService{
		sites:      repos.Site,
		quotes:     repos.Quote,
		amendments: repos.Amendment,
		auditSvc:   auditSvc,
	}
}

// SetLineProgress updates pct_current of a quote line
func (s *ProgressService) SetLineProgress(ctx context.Context, quoteID, lineID uint, raw string, actor Actor) (*situation.Progress, error) {
	line, err := s.quotes.FindLine(ctx, quoteID, lineID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: line %d of quote %d", ErrNotFound, lineID, quoteID)
		}
		return nil, err
	}

	p := progressOf(line.ID, situation.KindStandard, line.PercentCurrent, line.PercentPrevious, raw)
	if p.Changed {
		err = s.quotes.UpdateLinePercent(ctx, line.ID, p.Current)
		metrics.IncProgressUpdate(string(situation.KindStandard), err)
		if err != nil {
			return nil, fmt.Errorf("failed to update line %d: %w", line.ID, err)
		}
		s.audit(ctx, actor, "LineItem", line.ID, line.PercentCurrent, p.Current)
	}
	return &p, nil
}

// SetAmendmentLineProgress updates pct_current of a TS line
func (s *ProgressService) SetAmendmentLineProgress(ctx context.Context, lineID uint, raw string, actor Actor) (*situation.Progress, error) {
	line, err := s.amendments.FindLine(ctx, lineID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: amendment line %d", ErrNotFound, lineID)
		}
		return nil, err
	}

	p := progressOf(line.ID, situation.KindAmendment, line.PercentCurrent, line.PercentPrevious, raw)
	if p.Changed {
		err = s.amendments.UpdateLinePercent(ctx, line.ID, p.Current)
		metrics.IncProgressUpdate(string(situation.KindAmendment), err)
		if err != nil {
			return nil, fmt.Errorf("failed to update amendment line %d: %w", line.ID, err)
		}
		s.audit(ctx, actor, "AmendmentInvoiceLine", line.ID, line.PercentCurrent, p.Current)
	}
	return &p, nil
}

// ApplyBatch applies several edits on the lines of a site in order; a later
// edit of the same line wins. Every target is checked before anything is written.
func (s *ProgressService) ApplyBatch(ctx context.Context, siteID uint, updates []ProgressUpdate, actor Actor) ([]situation.Progress, error) {
	site, err := s.sites.FindByID(ctx, siteID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: site %d", ErrNotFound, siteID)
		}
		return nil, err
	}
	quote, err := s.quotes.FindTree(ctx, site.QuoteID)
	if err != nil {
		return nil, fmt.Errorf("%w: quote %d: %w", ErrMissingCollaboratorData, site.QuoteID, err)
	}
	amendments, err := s.amendments.FindBySite(ctx, site.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: amendments: %w", ErrMissingCollaboratorData, err)
	}

	before := make(map[string]decimal.Decimal)
	quote.EachLine(func(_ *models.Part, _ *models.SubPart, line *models.LineItem) {
		before[lineKey(situation.KindStandard, line.ID)] = line.PercentCurrent
	})
	for _, a := range amendments {
		for _, line := range a.Lines {
			before[lineKey(situation.KindAmendment, line.ID)] = line.PercentCurrent
		}
	}

	tracker := situation.NewTracker(quote, amendments)
	results := make([]situation.Progress, 0, len(updates))
	final := make(map[string]situation.Progress)
	var order []string
	for _, u := range updates {
		kind, err := situation.ParseKind(u.Kind)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		p, err := tracker.SetPercentage(u.LineID, u.Value, kind)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		results = append(results, p)
		key := lineKey(kind, u.LineID)
		if _, seen := final[key]; !seen {
			order = append(order, key)
		}
		final[key] = p
	}

	for _, key := range order {
		p := final[key]
		old := before[key]
		if p.Current.Equal(old) {
			continue
		}
		if p.Kind == situation.KindAmendment {
			err = s.amendments.UpdateLinePercent(ctx, p.LineID, p.Current)
		} else {
			err = s.quotes.UpdateLinePercent(ctx, p.LineID, p.Current)
		}
		metrics.IncProgressUpdate(string(p.Kind), err)
		if err != nil {
			return nil, fmt.Errorf("failed to update %s line %d: %w", p.Kind, p.LineID, err)
		}
		entity := "LineItem"
		if p.Kind == situation.KindAmendment {
			entity = "AmendmentInvoiceLine"
		}
		s.audit(ctx, actor, entity, p.LineID, old, p.Current)
	}

	logger.Info("progress batch applied", "site_id", siteID, "updates", len(updates), "lines", len(order))
	return results, nil
}

func progressOf(lineID uint, kind situation.LineKind, current, previous decimal.Decimal, raw string) situation.Progress {
	next := situation.ApplyPercentage(current, raw)
	return situation.Progress{
		LineID:   lineID,
		Kind:     kind,
		Current:  next,
		Previous: previous,
		Changed:  !next.Equal(current),
	}
}

func lineKey(kind situation.LineKind, id uint) string {
	return fmt.Sprintf("%s:%d", kind, id)
}

func (s *ProgressService) audit(ctx context.Context, actor Actor, entity string, id uint, from, to decimal.Decimal) {
	s.auditSvc.Log(ctx, actor, models.AuditActionProgress, entity, id,
		fmt.Sprintf("pct_current %s -> %s", from.String(), to.String()))
}
