package services

import (
	"context"

	"github.com/batisuivi/situations-api/internal/jobs"
	"github.com/batisuivi/situations-api/internal/models"
	"github.com/batisuivi/situations-api/internal/repository"
	"github.com/batisuivi/situations-api/pkg/logger"
)

// Actor identifies who triggered an operation, for the audit trail
type Actor struct {
	UserID    uint
	IPAddress string
	UserAgent string
}

type AuditService struct {
	repo   repository.AuditRepository
	worker *jobs.Worker
}

// NewAuditService creates the audit service. With a worker, entries are
// written asynchronously; without one they are written inline.
func NewAuditService(repo repository.AuditRepository, worker *jobs.Worker) *AuditService {
	return &AuditService{repo: repo, worker: worker}
}

// Log records an audit entry. Failures are logged, never returned: the audit
// trail must not fail a billing operation.
func (s *AuditService) Log(ctx context.Context, actor Actor, action, entity string, entityID uint, details string) {
	entry := &models.AuditLog{
		UserID:    actor.UserID,
		Action:    action,
		Entity:    entity,
		EntityID:  entityID,
		Details:   details,
		IPAddress: actor.IPAddress,
		UserAgent: actor.UserAgent,
	}

	write := func(ctx context.Context) error {
		if err := s.repo.Create(ctx, entry); err != nil {
			logger.Warn("audit write failed", "action", action, "entity", entity, "entity_id", entityID, "error", err)
			return err
		}
		return nil
	}

	if s.worker != nil {
		s.worker.EnqueueAsync("audit", write)
		return
	}
	_ = write(ctx)
}

// List retrieves audit logs of an entity
func (s *AuditService) List(ctx context.Context, entity string, entityID uint, limit, offset int) ([]models.AuditLog, int64, error) {
	return s.repo.List(ctx, entity, entityID, limit, offset)
}
