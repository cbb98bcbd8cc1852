package handlers

import (
	"context"

	"github.com/batisuivi/situations-api/internal/config"
	"github.com/batisuivi/situations-api/internal/middleware"
	"github.com/batisuivi/situations-api/internal/services"
	"github.com/gin-gonic/gin"
)

// Handlers holds all handler instances
type Handlers struct {
	Health    *HealthHandler
	Situation *SituationHandler
	Progress  *ProgressHandler
	Audit     *AuditHandler
	Job       *JobHandler
}

// NewHandlers creates all handler instances. ping reports database reachability
// to the health endpoint.
func NewHandlers(svcs *services.Services, cfg *config.Config, ping func(ctx context.Context) error) *Handlers {
	return &Handlers{
		Health:    NewHealthHandler(ping),
		Situation: NewSituationHandler(svcs.Situation, svcs.Export, cfg.AllowDegradedDefault),
		Progress:  NewProgressHandler(svcs.Progress),
		Audit:     NewAuditHandler(svcs.Audit),
		Job:       NewJobHandler(svcs.Job),
	}
}

// actorOf identifies the caller for the audit trail
func actorOf(c *gin.Context) services.Actor {
	return services.Actor{
		UserID:    middleware.GetUserID(c),
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}
