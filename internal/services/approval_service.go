package services

import (
	"context"
	"fmt"
	"time"

	"obraflow/internal/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ApprovalService records client-portal approval decisions. The portal
// workflow itself lives elsewhere; this service is only the trigger boundary
// for the automation engine (a rejection fires approval_rejected).
type ApprovalService struct {
	db         *gorm.DB
	logger     *logrus.Logger
	automation *AutomationService
}

func NewApprovalService(db *gorm.DB, logger *logrus.Logger) *ApprovalService {
	if logger == nil {
		logger = logrus.New()
	}
	return &ApprovalService{db: db, logger: logger}
}

func (s *ApprovalService) SetAutomationService(automation *AutomationService) {
	s.automation = automation
}

type ApprovalRequest struct {
	ObraID string `json:"obra_id" binding:"required"`
	Title  string `json:"title" binding:"required"`
}

type ApprovalDecisionRequest struct {
	Decision string `json:"decision" binding:"required"` // approve, reject
	Note     string `json:"note"`
}

func (s *ApprovalService) CreateApproval(ctx context.Context, orgID string, req *ApprovalRequest) (*models.Approval, error) {
	if req == nil || req.ObraID == "" || req.Title == "" {
		return nil, fmt.Errorf("obra id and title required")
	}
	approval := &models.Approval{
		ID:        uuid.NewString(),
		OrgID:     orgID,
		ObraID:    req.ObraID,
		Title:     req.Title,
		Status:    "pending",
		Version:   1,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(approval).Error; err != nil {
		return nil, err
	}
	return approval, nil
}

// Decide records an approve/reject decision, bumping the version. A rejection
// fires the approval_rejected automation after the decision is committed;
// engine failures are logged, never bubbled into the decision response.
func (s *ApprovalService) Decide(ctx context.Context, orgID, userID, id string, req *ApprovalDecisionRequest) (*models.Approval, error) {
	if req == nil {
		return nil, fmt.Errorf("request required")
	}
	var status string
	switch req.Decision {
	case "approve":
		status = "approved"
	case "reject":
		status = "rejected"
	default:
		return nil, fmt.Errorf("invalid decision: %s", req.Decision)
	}

	var approval models.Approval
	if err := s.db.WithContext(ctx).
		Where("org_id = ? AND id = ?", orgID, id).
		First(&approval).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("approval not found")
		}
		return nil, err
	}

	now := time.Now()
	updates := map[string]interface{}{
		"status":        status,
		"version":       approval.Version + 1,
		"decided_by":    userID,
		"decision_note": req.Note,
		"decided_at":    now,
		"updated_at":    now,
	}
	if err := s.db.WithContext(ctx).Model(&models.Approval{}).
		Where("id = ?", approval.ID).
		Updates(updates).Error; err != nil {
		return nil, err
	}
	approval.Status = status
	approval.Version++
	approval.DecidedBy = userID
	approval.DecisionNote = req.Note
	approval.DecidedAt = &now

	if status == "rejected" && s.automation != nil {
		result := s.automation.Run(ctx, TriggerContext{
			OrgID:             orgID,
			UserID:            userID,
			Trigger:           TriggerApprovalRejected,
			TriggerEntityType: "approval",
			TriggerEntityID:   approval.ID,
		}, RunOptions{Source: "trigger"})
		if result.Status == RunStatusError {
			s.logger.Warnf("approval %s: automation run failed: %s", approval.ID, result.Message)
		}
	}
	return &approval, nil
}

func (s *ApprovalService) ListApprovals(ctx context.Context, orgID, obraID string) ([]models.Approval, error) {
	q := s.db.WithContext(ctx).Where("org_id = ?", orgID)
	if obraID != "" {
		q = q.Where("obra_id = ?", obraID)
	}
	var approvals []models.Approval
	if err := q.Order("created_at DESC").Find(&approvals).Error; err != nil {
		return nil, err
	}
	return approvals, nil
}
