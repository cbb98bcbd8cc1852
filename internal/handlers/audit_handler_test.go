package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/batisuivi/situations-api/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditHandler_Index_FiltersByEntity(t *testing.T) {
	gin.SetMode(gin.TestMode)

	f := newFixture()
	f.audit.entries = []models.AuditLog{
		{ID: 1, Action: models.AuditActionCompose, Entity: "Statement", EntityID: 100},
		{ID: 2, Action: models.AuditActionProgress, Entity: "LineItem", EntityID: 2},
		{ID: 3, Action: models.AuditActionReconcile, Entity: "Statement", EntityID: 100},
	}
	h := NewAuditHandler(f.services().Audit)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest("GET", "/audits?entity=Statement&entity_id=100", nil)
	h.Index(c)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Audits     []models.AuditLog `json:"audits"`
		Pagination map[string]int    `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Audits, 2)
	assert.Equal(t, 2, body.Pagination["total"])
	assert.Equal(t, 50, body.Pagination["per_page"])
}
