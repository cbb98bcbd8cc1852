package services

import (
	"github.com/batisuivi/situations-api/internal/config"
	"github.com/batisuivi/situations-api/internal/jobs"
	"github.com/batisuivi/situations-api/internal/repository"
)

// Services holds all service instances
type Services struct {
	Situation *SituationService
	Progress  *ProgressService
	Export    *ExportService
	Audit     *AuditService
	Job       *JobService
}

// NewServices creates all service instances
func NewServices(repos *repository.Repositories, worker *jobs.Worker, cfg *config.Config) *Services {
	auditSvc := NewAuditService(repos.Audit, worker)

	situationSvc := NewSituationService(repos, auditSvc, SituationOptions{
		GuaranteeRate:      cfg.GuaranteeRetentionRate,
		DefaultProrataRate: cfg.DefaultProrataRate,
		MaxAttempts:        cfg.ComposeMaxAttempts,
		WriteConcurrency:   cfg.WorkerCount * 2,
		ReconcileAfter:     cfg.ReconcileInterval,
		ReconcileBatch:     cfg.ReconcileBatch,
	})

	return &Services{
		Situation: situationSvc,
		Progress:  NewProgressService(repos, auditSvc),
		Export:    NewExportService(repos),
		Audit:     auditSvc,
		Job:       NewJobService(worker, situationSvc),
	}
}
