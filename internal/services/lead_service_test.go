package services

import (
	"context"
	"testing"

	"obraflow/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

func newTestLeadService(t *testing.T) (*LeadService, *gorm.DB) {
	t.Helper()
	db := newAutomationTestDB(t)
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	svc := NewLeadService(db, logger)
	svc.SetAutomationService(NewAutomationService(db, logger))
	return svc, db
}

func TestLeadService_CreateLead_FiresAutomation(t *testing.T) {
	svc, db := newTestLeadService(t)

	lead, err := svc.CreateLead(context.Background(), "org-1", "user-1", &LeadRequest{
		Name:   "Construtora Silva",
		Email:  "contato@silva.com.br",
		Source: "indication",
	})
	if err != nil {
		t.Fatalf("CreateLead failed: %v", err)
	}
	if lead.Stage != "new" || lead.OwnerID != "user-1" {
		t.Errorf("unexpected lead %+v", lead)
	}

	// lead_created 默认规则不需复核，待办应已落地
	var action models.RoadmapAction
	if err := db.Where("org_id = ? AND action_code = ?", "org-1", "lead_followup").First(&action).Error; err != nil {
		t.Fatalf("expected followup roadmap action: %v", err)
	}
	if action.Source != "automation" {
		t.Errorf("expected automation source, got %s", action.Source)
	}

	var run models.AutomationRun
	if err := db.Where("org_id = ? AND trigger_entity_id = ?", "org-1", lead.ID).First(&run).Error; err != nil {
		t.Fatalf("expected a run row: %v", err)
	}
	if run.Status != RunStatusApplied || run.RunSource != "trigger" {
		t.Errorf("unexpected run %+v", run)
	}
}

func TestLeadService_CreateLead_WithoutEngine(t *testing.T) {
	db := newAutomationTestDB(t)
	svc := NewLeadService(db, nil)

	// 引擎未接线时创建照常成功
	lead, err := svc.CreateLead(context.Background(), "org-1", "user-1", &LeadRequest{Name: "Sem engine"})
	if err != nil {
		t.Fatalf("CreateLead failed: %v", err)
	}
	if lead.ID == "" {
		t.Error("expected generated lead id")
	}
	var runs int64
	db.Model(&models.AutomationRun{}).Count(&runs)
	if runs != 0 {
		t.Errorf("expected no runs without the engine, got %d", runs)
	}
}

func TestLeadService_CreateLead_Validation(t *testing.T) {
	svc, _ := newTestLeadService(t)

	if _, err := svc.CreateLead(context.Background(), "org-1", "user-1", nil); err == nil {
		t.Error("expected error for nil request")
	}
	if _, err := svc.CreateLead(context.Background(), "org-1", "user-1", &LeadRequest{}); err == nil {
		t.Error("expected error for empty name")
	}
}

func TestLeadService_GetLead(t *testing.T) {
	svc, _ := newTestLeadService(t)

	lead, _ := svc.CreateLead(context.Background(), "org-1", "user-1", &LeadRequest{Name: "Lead A"})

	got, err := svc.GetLead(context.Background(), "org-1", lead.ID)
	if err != nil {
		t.Fatalf("GetLead failed: %v", err)
	}
	if got.Name != "Lead A" {
		t.Errorf("unexpected lead %+v", got)
	}

	// 跨租户读取按不存在处理
	if _, err := svc.GetLead(context.Background(), "org-2", lead.ID); err == nil {
		t.Error("expected not found for another org")
	}
}

func TestLeadService_UpdateLeadStage(t *testing.T) {
	svc, _ := newTestLeadService(t)
	lead, _ := svc.CreateLead(context.Background(), "org-1", "user-1", &LeadRequest{Name: "Lead B"})

	if err := svc.UpdateLeadStage(context.Background(), "org-1", lead.ID, "contacted"); err != nil {
		t.Fatalf("UpdateLeadStage failed: %v", err)
	}
	got, _ := svc.GetLead(context.Background(), "org-1", lead.ID)
	if got.Stage != "contacted" {
		t.Errorf("expected contacted, got %s", got.Stage)
	}

	if err := svc.UpdateLeadStage(context.Background(), "org-1", lead.ID, "frozen"); err == nil {
		t.Error("expected error for unknown stage")
	}
	if err := svc.UpdateLeadStage(context.Background(), "org-1", "missing", "won"); err == nil {
		t.Error("expected error for missing lead")
	}
}

func TestLeadService_ListLeads(t *testing.T) {
	svc, _ := newTestLeadService(t)
	ctx := context.Background()

	_, _ = svc.CreateLead(ctx, "org-1", "user-1", &LeadRequest{Name: "Lead 1"})
	_, _ = svc.CreateLead(ctx, "org-1", "user-1", &LeadRequest{Name: "Lead 2"})
	_, _ = svc.CreateLead(ctx, "org-2", "user-2", &LeadRequest{Name: "Outro org"})

	leads, err := svc.ListLeads(ctx, "org-1")
	if err != nil {
		t.Fatalf("ListLeads failed: %v", err)
	}
	if len(leads) != 2 {
		t.Fatalf("expected 2 leads, got %d", len(leads))
	}
}
