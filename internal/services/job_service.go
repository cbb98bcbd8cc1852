package services

import (
	"time"

	"github.com/batisuivi/situations-api/internal/jobs"
)

// Job names
const (
	JobReconcileStatements = "reconcile_statements"
)

type JobService struct {
	worker     *jobs.Worker
	situations *SituationService
}

func NewJobService(worker *jobs.Worker, situations *SituationService) *JobService {
	return &JobService{
		worker:     worker,
		situations: situations,
	}
}

// Start registers the scheduled jobs. Reconciliation runs once at startup so
// statements left pending by a crash are settled without waiting an interval.
func (s *JobService) Start(reconcileEvery time.Duration) {
	s.worker.ScheduleEveryImmediate(JobReconcileStatements, reconcileEvery, s.situations.ReconcilePending)
}

// TriggerReconcile queues a reconciliation pass on the worker pool
func (s *JobService) TriggerReconcile() {
	s.worker.Enqueue(JobReconcileStatements, s.situations.ReconcilePending)
}

func (s *JobService) GetStatus() map[string]interface{} {
	stats := s.worker.GetStats()
	return map[string]interface{}{
		"active_jobs":    stats.ActiveJobs,
		"completed_jobs": stats.CompletedJobs,
		"failed_jobs":    stats.FailedJobs,
		"queue_length":   stats.QueueLength,
		"max_concurrent": stats.MaxConcurrent,
		"last_runs":      stats.LastRuns,
	}
}
