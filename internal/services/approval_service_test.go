package services

import (
	"context"
	"testing"

	"obraflow/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

func newTestApprovalService(t *testing.T) (*ApprovalService, *gorm.DB) {
	t.Helper()
	db := newAutomationTestDB(t)
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	svc := NewApprovalService(db, logger)
	svc.SetAutomationService(NewAutomationService(db, logger))
	return svc, db
}

func TestApprovalService_Decide_RejectFiresAutomation(t *testing.T) {
	svc, db := newTestApprovalService(t)
	ctx := context.Background()

	approval, err := svc.CreateApproval(ctx, "org-1", &ApprovalRequest{
		ObraID: "obra-1",
		Title:  "Aprovação do projeto elétrico",
	})
	if err != nil {
		t.Fatalf("CreateApproval failed: %v", err)
	}
	if approval.Status != "pending" || approval.Version != 1 {
		t.Fatalf("unexpected approval %+v", approval)
	}

	decided, err := svc.Decide(ctx, "org-1", "client-1", approval.ID, &ApprovalDecisionRequest{
		Decision: "reject",
		Note:     "Revisar posicionamento dos pontos de luz",
	})
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if decided.Status != "rejected" || decided.Version != 2 {
		t.Errorf("unexpected decision %+v", decided)
	}
	if decided.DecidedAt == nil || decided.DecidedBy != "client-1" {
		t.Error("decision metadata missing")
	}

	// approval_rejected 默认不需复核：retrabalho 待办已落地
	var action models.RoadmapAction
	if err := db.Where("org_id = ? AND action_code = ?", "org-1", "approval_rework").First(&action).Error; err != nil {
		t.Fatalf("expected rework roadmap action: %v", err)
	}

	var run models.AutomationRun
	if err := db.Where("trigger_entity_id = ?", approval.ID).First(&run).Error; err != nil {
		t.Fatalf("expected a run row: %v", err)
	}
	if run.Trigger != string(TriggerApprovalRejected) || run.Status != RunStatusApplied {
		t.Errorf("unexpected run %+v", run)
	}
}

func TestApprovalService_Decide_ApproveIsQuiet(t *testing.T) {
	svc, db := newTestApprovalService(t)
	ctx := context.Background()

	approval, _ := svc.CreateApproval(ctx, "org-1", &ApprovalRequest{ObraID: "obra-1", Title: "Pintura"})
	decided, err := svc.Decide(ctx, "org-1", "client-1", approval.ID, &ApprovalDecisionRequest{Decision: "approve"})
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if decided.Status != "approved" {
		t.Errorf("expected approved, got %s", decided.Status)
	}

	var runs int64
	db.Model(&models.AutomationRun{}).Count(&runs)
	if runs != 0 {
		t.Errorf("approval must not fire automation, got %d runs", runs)
	}
}

func TestApprovalService_Decide_Validation(t *testing.T) {
	svc, _ := newTestApprovalService(t)
	ctx := context.Background()

	approval, _ := svc.CreateApproval(ctx, "org-1", &ApprovalRequest{ObraID: "obra-1", Title: "Hidráulica"})

	if _, err := svc.Decide(ctx, "org-1", "client-1", approval.ID, nil); err == nil {
		t.Error("expected error for nil request")
	}
	if _, err := svc.Decide(ctx, "org-1", "client-1", approval.ID, &ApprovalDecisionRequest{Decision: "maybe"}); err == nil {
		t.Error("expected error for unknown decision")
	}
	if _, err := svc.Decide(ctx, "org-1", "client-1", "missing", &ApprovalDecisionRequest{Decision: "approve"}); err == nil {
		t.Error("expected error for missing approval")
	}
	// 跨租户决策按不存在处理
	if _, err := svc.Decide(ctx, "org-2", "client-1", approval.ID, &ApprovalDecisionRequest{Decision: "approve"}); err == nil {
		t.Error("expected not found for another org")
	}
}

func TestApprovalService_CreateApproval_Validation(t *testing.T) {
	svc, _ := newTestApprovalService(t)
	if _, err := svc.CreateApproval(context.Background(), "org-1", nil); err == nil {
		t.Error("expected error for nil request")
	}
	if _, err := svc.CreateApproval(context.Background(), "org-1", &ApprovalRequest{Title: "sem obra"}); err == nil {
		t.Error("expected error for missing obra id")
	}
}

func TestApprovalService_ListApprovals(t *testing.T) {
	svc, _ := newTestApprovalService(t)
	ctx := context.Background()

	_, _ = svc.CreateApproval(ctx, "org-1", &ApprovalRequest{ObraID: "obra-1", Title: "A"})
	_, _ = svc.CreateApproval(ctx, "org-1", &ApprovalRequest{ObraID: "obra-2", Title: "B"})

	all, err := svc.ListApprovals(ctx, "org-1", "")
	if err != nil {
		t.Fatalf("ListApprovals failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 approvals, got %d", len(all))
	}

	filtered, err := svc.ListApprovals(ctx, "org-1", "obra-2")
	if err != nil {
		t.Fatalf("ListApprovals filtered failed: %v", err)
	}
	if len(filtered) != 1 || filtered[0].Title != "B" {
		t.Fatalf("unexpected filtered result %+v", filtered)
	}
}
