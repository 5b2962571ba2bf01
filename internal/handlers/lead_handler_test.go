package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"obraflow/internal/models"
	"obraflow/internal/services"
)

func newLeadRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := newHandlerTestDB(t, "leads")
	logger := quietLogger()
	svc := services.NewLeadService(db, logger)
	svc.SetAutomationService(services.NewAutomationService(db, logger))

	r := gin.New()
	api := r.Group("/api")
	api.Use(testIdentity("org-1", "user-1", "member"))
	RegisterLeadRoutes(api, NewLeadHandler(svc))
	return r, db
}

func TestLeadHandler_CreateAndGet(t *testing.T) {
	r, db := newLeadRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/leads", map[string]interface{}{
		"name":   "Construtora Horizonte",
		"email":  "obras@horizonte.com.br",
		"source": "web",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", w.Code, w.Body.String())
	}
	var lead models.Lead
	if err := json.Unmarshal(w.Body.Bytes(), &lead); err != nil {
		t.Fatalf("unmarshal lead: %v", err)
	}
	if lead.OrgID != "org-1" || lead.Stage != "new" {
		t.Errorf("unexpected lead %+v", lead)
	}

	// 创建触发 lead_created 自动化
	var actions int64
	db.Model(&models.RoadmapAction{}).Where("action_code = ?", "lead_followup").Count(&actions)
	if actions != 1 {
		t.Errorf("expected 1 followup action, got %d", actions)
	}

	w = doJSON(t, r, http.MethodGet, "/api/leads/"+lead.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status=%d", w.Code)
	}
	w = doJSON(t, r, http.MethodGet, "/api/leads/missing", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing lead status=%d", w.Code)
	}
}

func TestLeadHandler_CreateValidation(t *testing.T) {
	r, _ := newLeadRouter(t)
	w := doJSON(t, r, http.MethodPost, "/api/leads", map[string]interface{}{"email": "x@y.z"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestLeadHandler_UpdateStage(t *testing.T) {
	r, _ := newLeadRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/leads", map[string]interface{}{"name": "Lead Stage"})
	var lead models.Lead
	_ = json.Unmarshal(w.Body.Bytes(), &lead)

	w = doJSON(t, r, http.MethodPut, "/api/leads/"+lead.ID+"/stage", map[string]interface{}{"stage": "contacted"})
	if w.Code != http.StatusOK {
		t.Fatalf("update status=%d body=%s", w.Code, w.Body.String())
	}
	w = doJSON(t, r, http.MethodPut, "/api/leads/"+lead.ID+"/stage", map[string]interface{}{"stage": "frozen"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad stage status=%d", w.Code)
	}
	w = doJSON(t, r, http.MethodPut, "/api/leads/missing/stage", map[string]interface{}{"stage": "won"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing lead status=%d", w.Code)
	}
}
