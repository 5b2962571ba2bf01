package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"obraflow/internal/models"
	"obraflow/internal/services"
)

func newHandlerTestDB(t *testing.T, prefix string) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := "file:" + prefix + "_" + name + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(
		&models.AutomationRule{},
		&models.AutomationRun{},
		&models.AutomationOutboxEntry{},
		&models.Lead{},
		&models.Obra{},
		&models.Approval{},
		&models.RoadmapAction{},
		&models.ObraChecklist{},
		&models.ChecklistItem{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

// testIdentity injects the context the auth middleware would have resolved.
func testIdentity(orgID, userID, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("org_id", orgID)
		c.Set("user_id", userID)
		c.Set("role", role)
		c.Next()
	}
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, _ := http.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func newAutomationRouter(t *testing.T, role string) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := newHandlerTestDB(t, "automation")
	h := NewAutomationHandler(services.NewAutomationService(db, quietLogger()))

	r := gin.New()
	api := r.Group("/api")
	api.Use(testIdentity("org-1", "user-1", role))
	RegisterAutomationRoutes(api, h)
	return r, db
}

func TestAutomationHandler_RulesCRUD(t *testing.T) {
	r, _ := newAutomationRouter(t, "admin")

	// create
	w := doJSON(t, r, http.MethodPost, "/api/automation/rules", map[string]interface{}{
		"trigger":       "lead_created",
		"template_code": "lead_followup_initial",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", w.Code, w.Body.String())
	}
	var rule models.AutomationRule
	if err := json.Unmarshal(w.Body.Bytes(), &rule); err != nil {
		t.Fatalf("unmarshal rule: %v", err)
	}
	if rule.OrgID != "org-1" || !rule.Enabled {
		t.Errorf("unexpected rule %+v", rule)
	}

	// invalid template rejected
	w = doJSON(t, r, http.MethodPost, "/api/automation/rules", map[string]interface{}{
		"trigger":       "lead_created",
		"template_code": "ghost_template",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad template status=%d", w.Code)
	}

	// list
	w = doJSON(t, r, http.MethodGet, "/api/automation/rules", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status=%d", w.Code)
	}
	var rules []models.AutomationRule
	if err := json.Unmarshal(w.Body.Bytes(), &rules); err != nil {
		t.Fatalf("unmarshal rules: %v", err)
	}
	if len(rules) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(rules))
	}

	// delete
	w = doJSON(t, r, http.MethodDelete, "/api/automation/rules/"+rule.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete status=%d body=%s", w.Code, w.Body.String())
	}
	w = doJSON(t, r, http.MethodDelete, "/api/automation/rules/"+rule.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("second delete status=%d", w.Code)
	}
}

func TestAutomationHandler_RulesRequireAdmin(t *testing.T) {
	r, _ := newAutomationRouter(t, "member")

	w := doJSON(t, r, http.MethodGet, "/api/automation/rules", nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("member list status=%d", w.Code)
	}
	w = doJSON(t, r, http.MethodPost, "/api/automation/rules", map[string]interface{}{
		"trigger":       "lead_created",
		"template_code": "lead_followup_initial",
	})
	if w.Code != http.StatusForbidden {
		t.Fatalf("member create status=%d", w.Code)
	}

	// 非管理接口不受角色限制
	w = doJSON(t, r, http.MethodGet, "/api/automation/templates", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("templates status=%d", w.Code)
	}
}

func TestAutomationHandler_ListTemplates(t *testing.T) {
	r, _ := newAutomationRouter(t, "member")

	w := doJSON(t, r, http.MethodGet, "/api/automation/templates", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var templates []services.TemplateInfo
	if err := json.Unmarshal(w.Body.Bytes(), &templates); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(templates) != 3 {
		t.Fatalf("expected 3 templates, got %d", len(templates))
	}
}

func TestAutomationHandler_PreviewAndRun(t *testing.T) {
	r, db := newAutomationRouter(t, "member")
	body := map[string]interface{}{
		"trigger":             "obra_created",
		"trigger_entity_type": "obra",
		"trigger_entity_id":   "obra-7",
	}

	// preview 无副作用
	w := doJSON(t, r, http.MethodPost, "/api/automation/preview", body)
	if w.Code != http.StatusOK {
		t.Fatalf("preview status=%d body=%s", w.Code, w.Body.String())
	}
	var preview services.AutomationPreview
	if err := json.Unmarshal(w.Body.Bytes(), &preview); err != nil {
		t.Fatalf("unmarshal preview: %v", err)
	}
	if !preview.RequiresReview || len(preview.Actions) != 2 {
		t.Fatalf("unexpected preview %+v", preview)
	}
	var runs int64
	db.Model(&models.AutomationRun{}).Count(&runs)
	if runs != 0 {
		t.Fatalf("preview must not record runs, got %d", runs)
	}

	// run 未确认：停在复核门
	w = doJSON(t, r, http.MethodPost, "/api/automation/run", body)
	if w.Code != http.StatusOK {
		t.Fatalf("run status=%d body=%s", w.Code, w.Body.String())
	}
	var gated services.AutomationRunResult
	if err := json.Unmarshal(w.Body.Bytes(), &gated); err != nil {
		t.Fatalf("unmarshal run: %v", err)
	}
	if gated.Status != services.RunStatusPendingReview {
		t.Fatalf("expected pending_review, got %s", gated.Status)
	}

	// run 确认：执行两条动作
	body["confirm"] = true
	w = doJSON(t, r, http.MethodPost, "/api/automation/run", body)
	if w.Code != http.StatusOK {
		t.Fatalf("confirmed run status=%d body=%s", w.Code, w.Body.String())
	}
	var applied services.AutomationRunResult
	if err := json.Unmarshal(w.Body.Bytes(), &applied); err != nil {
		t.Fatalf("unmarshal confirmed run: %v", err)
	}
	if applied.Status != services.RunStatusApplied || applied.Applied != 2 {
		t.Fatalf("unexpected result %+v", applied)
	}

	// runs 审计列表
	w = doJSON(t, r, http.MethodGet, "/api/automation/runs?limit=10", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("runs status=%d", w.Code)
	}
	var list []models.AutomationRun
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("unmarshal runs: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 run rows, got %d", len(list))
	}
}

func TestAutomationHandler_Run_InvalidBody(t *testing.T) {
	r, _ := newAutomationRouter(t, "member")

	w := doJSON(t, r, http.MethodPost, "/api/automation/run", map[string]interface{}{
		"trigger": "obra_created",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing entity id status=%d", w.Code)
	}

	w = doJSON(t, r, http.MethodPost, "/api/automation/preview", map[string]interface{}{
		"trigger":           "bogus",
		"trigger_entity_id": "x",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bogus trigger status=%d", w.Code)
	}
}
