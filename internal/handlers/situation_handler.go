package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/batisuivi/situations-api/internal/models"
	"github.com/batisuivi/situations-api/internal/repository"
	"github.com/batisuivi/situations-api/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type SituationHandler struct {
	situationService *services.SituationService
	exportService    *services.ExportService
	allowDegraded    bool
}

func NewSituationHandler(situationSvc *services.SituationService, exportSvc *services.ExportService, allowDegraded bool) *SituationHandler {
	return &SituationHandler{
		situationService: situationSvc,
		exportService:    exportSvc,
		allowDegraded:    allowDegraded,
	}
}

// ComposeRequest is the body of the preview and compose endpoints. Amounts and
// rates accept JSON numbers or strings.
type ComposeRequest struct {
	Month              int                        `json:"month"`
	Year               int                        `json:"year"`
	ProrataRate        *decimal.Decimal           `json:"prorata_rate"`
	ThirdPartyAmount   *decimal.Decimal           `json:"third_party_amount"`
	SupplementaryLines []models.SupplementaryLine `json:"supplementary_lines"`
	AllowDegraded      *bool                      `json:"allow_degraded"`
}

// bindCompose reads the body, nested under "situation" or flat
func (h *SituationHandler) bindCompose(c *gin.Context) (services.ComposeRequest, bool) {
	siteID, ok := uintParam(c, "site_id")
	if !ok {
		return services.ComposeRequest{}, false
	}

	var req ComposeRequest
	if err := BindNestedOrFlat(c, "situation", &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return services.ComposeRequest{}, false
	}
	if req.Month < 1 || req.Month > 12 || req.Year < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "month (1-12) and year are required"})
		return services.ComposeRequest{}, false
	}
	for _, l := range req.SupplementaryLines {
		if l.Description == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "supplementary lines need a description"})
			return services.ComposeRequest{}, false
		}
		if l.Kind != "" && l.Kind != models.SupplementaryKindAddition && l.Kind != models.SupplementaryKindDeduction {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown supplementary line kind %q", l.Kind)})
			return services.ComposeRequest{}, false
		}
	}

	allow := h.allowDegraded
	if req.AllowDegraded != nil {
		allow = *req.AllowDegraded
	}

	return services.ComposeRequest{
		SiteID:           siteID,
		Month:            req.Month,
		Year:             req.Year,
		ProrataRate:      req.ProrataRate,
		ThirdPartyAmount: req.ThirdPartyAmount,
		Supplementary:    req.SupplementaryLines,
		AllowDegraded:    allow,
		Actor:            actorOf(c),
	}, true
}

// @Summary Preview Situation
// @Description Compose the statement of a period without persisting it
// @Tags Situations
// @Accept json
// @Produce json
// @Param site_id path int true "Site ID"
// @Param request body ComposeRequest true "Period and adjustments"
// @Success 200 {object} situation.Result
// @Failure 404 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Security BearerAuth
// @Router /sites/{site_id}/situations/preview [post]
func (h *SituationHandler) Preview(c *gin.Context) {
	req, ok := h.bindCompose(c)
	if !ok {
		return
	}

	res, err := h.situationService.Preview(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

// @Summary Compose Situation
// @Description Compose and persist the statement of a period
// @Tags Situations
// @Accept json
// @Produce json
// @Param site_id path int true "Site ID"
// @Param request body ComposeRequest true "Period and adjustments"
// @Success 201 {object} services.Composition
// @Success 202 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Failure 422 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Security BearerAuth
// @Router /sites/{site_id}/situations [post]
func (h *SituationHandler) Compose(c *gin.Context) {
	req, ok := h.bindCompose(c)
	if !ok {
		return
	}

	comp, err := h.situationService.Compose(c.Request.Context(), req)
	if err == nil {
		c.JSON(http.StatusCreated, comp)
		return
	}

	var partial *services.PartialPersistenceError
	switch {
	case errors.As(err, &partial):
		c.JSON(http.StatusAccepted, gin.H{
			"error":     err.Error(),
			"statement": comp.Statement,
			"report":    partial.Report,
		})
	case errors.Is(err, services.ErrDegradedBaseline), errors.Is(err, services.ErrPeriodAlreadyComposed):
		body := gin.H{"error": err.Error()}
		if comp != nil && comp.Result != nil {
			body["preview"] = comp.Result
			body["reason"] = comp.Result.Reason
		}
		c.JSON(http.StatusConflict, body)
	default:
		respondError(c, err)
	}
}

// @Summary List Situations
// @Description Get the statements of a site ordered by number
// @Tags Situations
// @Produce json
// @Param site_id path int true "Site ID"
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Items per page" default(20)
// @Param status query string false "Persistence status"
// @Param year query int false "Year"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /sites/{site_id}/situations [get]
func (h *SituationHandler) Index(c *gin.Context) {
	siteID, ok := uintParam(c, "site_id")
	if !ok {
		return
	}

	query := repository.NewListQuery()
	query.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	query.PerPage, _ = strconv.Atoi(c.DefaultQuery("per_page", "20"))
	if query.Page < 1 {
		query.Page = 1
	}
	if query.PerPage < 1 || query.PerPage > 100 {
		query.PerPage = 20
	}
	query.SortBy = c.DefaultQuery("sort_by", "statement_number")
	query.SortDir = c.DefaultQuery("sort_dir", "asc")
	if status := c.Query("status"); status != "" {
		query.Filters["status"] = status
	}
	if year := c.Query("year"); year != "" {
		query.Filters["year"] = year
	}

	statements, total, err := h.situationService.List(c.Request.Context(), siteID, query)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"situations": statements,
		"pagination": gin.H{
			"page":        query.Page,
			"per_page":    query.PerPage,
			"total":       total,
			"total_pages": (total + int64(query.PerPage) - 1) / int64(query.PerPage),
		},
	})
}

// @Summary Get Situation
// @Description Get a statement with its snapshots
// @Tags Situations
// @Produce json
// @Param statement_id path int true "Statement ID"
// @Success 200 {object} models.Statement
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /situations/{statement_id} [get]
func (h *SituationHandler) Show(c *gin.Context) {
	id, ok := uintParam(c, "statement_id")
	if !ok {
		return
	}

	stmt, err := h.situationService.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, stmt)
}

// @Summary Reconcile Situation
// @Description Write the snapshots missing from a pending or partial statement
// @Tags Situations
// @Produce json
// @Param statement_id path int true "Statement ID"
// @Success 200 {object} services.Composition
// @Success 202 {object} services.Composition
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /situations/{statement_id}/reconcile [post]
func (h *SituationHandler) Reconcile(c *gin.Context) {
	id, ok := uintParam(c, "statement_id")
	if !ok {
		return
	}

	comp, err := h.situationService.Reconcile(c.Request.Context(), id, actorOf(c))
	if err != nil {
		if errors.Is(err, services.ErrPartialPersistence) && comp != nil {
			c.JSON(http.StatusAccepted, gin.H{
				"error":     err.Error(),
				"statement": comp.Statement,
				"report":    comp.Report,
			})
			return
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, comp)
}

// @Summary Export Situation
// @Description Download a complete statement as a spreadsheet
// @Tags Situations
// @Produce application/octet-stream
// @Param statement_id path int true "Statement ID"
// @Param format query string false "xlsx or csv" default(xlsx)
// @Success 200 {file} file
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Security BearerAuth
// @Router /situations/{statement_id}/export [get]
func (h *SituationHandler) Export(c *gin.Context) {
	id, ok := uintParam(c, "statement_id")
	if !ok {
		return
	}

	format := c.DefaultQuery("format", services.FormatXLSX)
	data, filename, contentType, err := h.exportService.Export(c.Request.Context(), id, format)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Data(http.StatusOK, contentType, data)
}
