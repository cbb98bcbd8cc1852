package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/batisuivi/situations-api/internal/services"
	"github.com/gin-gonic/gin"
)

type ProgressHandler struct {
	progressService *services.ProgressService
}

func NewProgressHandler(progressSvc *services.ProgressService) *ProgressHandler {
	return &ProgressHandler{progressService: progressSvc}
}

// percentInput is the value typed by the operator. It accepts a JSON string
// or number; anything non-numeric is passed through and leaves the line as is.
type percentInput string

func (p *percentInput) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*p = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = percentInput(s)
	default:
		*p = percentInput(data)
	}
	return nil
}

type ProgressRequest struct {
	Value percentInput `json:"value"`
}

type BatchProgressRequest struct {
	Updates []struct {
		LineID uint         `json:"line_id"`
		Kind   string       `json:"kind"`
		Value  percentInput `json:"value"`
	} `json:"updates"`
}

// @Summary Set Line Progress
// @Description Set the completion percentage of a quote line, clamped to 0-100
// @Tags Progress
// @Accept json
// @Produce json
// @Param quote_id path int true "Quote ID"
// @Param line_id path int true "Line ID"
// @Param request body ProgressRequest true "Percentage"
// @Success 200 {object} situation.Progress
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /quotes/{quote_id}/lines/{line_id}/progress [put]
func (h *ProgressHandler) UpdateLine(c *gin.Context) {
	quoteID, ok := uintParam(c, "quote_id")
	if !ok {
		return
	}
	lineID, ok := uintParam(c, "line_id")
	if !ok {
		return
	}

	var req ProgressRequest
	if err := BindNestedOrFlat(c, "progress", &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	progress, err := h.progressService.SetLineProgress(c.Request.Context(), quoteID, lineID, string(req.Value), actorOf(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, progress)
}

// @Summary Set Amendment Line Progress
// @Description Set the completion percentage of a TS line, clamped to 0-100
// @Tags Progress
// @Accept json
// @Produce json
// @Param line_id path int true "Amendment line ID"
// @Param request body ProgressRequest true "Percentage"
// @Success 200 {object} situation.Progress
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /amendments/lines/{line_id}/progress [put]
func (h *ProgressHandler) UpdateAmendmentLine(c *gin.Context) {
	lineID, ok := uintParam(c, "line_id")
	if !ok {
		return
	}

	var req ProgressRequest
	if err := BindNestedOrFlat(c, "progress", &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	progress, err := h.progressService.SetAmendmentLineProgress(c.Request.Context(), lineID, string(req.Value), actorOf(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, progress)
}

// @Summary Set Site Progress
// @Description Apply several percentage edits on the lines of a site
// @Tags Progress
// @Accept json
// @Produce json
// @Param site_id path int true "Site ID"
// @Param request body BatchProgressRequest true "Edits"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Security BearerAuth
// @Router /sites/{site_id}/progress [put]
func (h *ProgressHandler) UpdateSite(c *gin.Context) {
	siteID, ok := uintParam(c, "site_id")
	if !ok {
		return
	}

	var req BatchProgressRequest
	if err := BindNestedOrFlat(c, "progress", &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if len(req.Updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "updates are required"})
		return
	}

	updates := make([]services.ProgressUpdate, 0, len(req.Updates))
	for _, u := range req.Updates {
		updates = append(updates, services.ProgressUpdate{LineID: u.LineID, Kind: u.Kind, Value: string(u.Value)})
	}

	progress, err := h.progressService.ApplyBatch(c.Request.Context(), siteID, updates, actorOf(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"lines": progress})
}
