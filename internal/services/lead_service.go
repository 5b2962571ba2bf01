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

// LeadService 商机 CRUD；创建后触发自动化
type LeadService struct {
	db         *gorm.DB
	logger     *logrus.Logger
	automation *AutomationService
}

func NewLeadService(db *gorm.DB, logger *logrus.Logger) *LeadService {
	if logger == nil {
		logger = logrus.New()
	}
	return &LeadService{db: db, logger: logger}
}

// SetAutomationService wires the engine in after construction to avoid an
// init-order cycle in main.
func (s *LeadService) SetAutomationService(automation *AutomationService) {
	s.automation = automation
}

type LeadRequest struct {
	Name   string `json:"name" binding:"required"`
	Email  string `json:"email"`
	Phone  string `json:"phone"`
	Source string `json:"source"`
	Notes  string `json:"notes"`
}

// CreateLead persists the lead and then fires the lead_created automation.
// The engine is invoked only after the lead row is committed and its failures
// are never surfaced to the caller: creating a lead must always succeed even
// when automation fails entirely.
func (s *LeadService) CreateLead(ctx context.Context, orgID, userID string, req *LeadRequest) (*models.Lead, error) {
	if req == nil || req.Name == "" {
		return nil, fmt.Errorf("lead name required")
	}
	lead := &models.Lead{
		ID:        uuid.NewString(),
		OrgID:     orgID,
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		Source:    req.Source,
		Stage:     "new",
		OwnerID:   userID,
		Notes:     req.Notes,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(lead).Error; err != nil {
		return nil, err
	}

	s.fireAutomation(ctx, orgID, userID, lead.ID)
	return lead, nil
}

func (s *LeadService) fireAutomation(ctx context.Context, orgID, userID, leadID string) {
	if s.automation == nil {
		return
	}
	result := s.automation.Run(ctx, TriggerContext{
		OrgID:             orgID,
		UserID:            userID,
		Trigger:           TriggerLeadCreated,
		TriggerEntityType: "lead",
		TriggerEntityID:   leadID,
	}, RunOptions{Source: "trigger"})
	if result.Status == RunStatusError {
		s.logger.Warnf("lead %s: automation run failed: %s", leadID, result.Message)
	}
}

// ListLeads 按创建时间倒序返回租户商机
func (s *LeadService) ListLeads(ctx context.Context, orgID string) ([]models.Lead, error) {
	var leads []models.Lead
	if err := s.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("created_at DESC").
		Find(&leads).Error; err != nil {
		return nil, err
	}
	return leads, nil
}

func (s *LeadService) GetLead(ctx context.Context, orgID, id string) (*models.Lead, error) {
	var lead models.Lead
	if err := s.db.WithContext(ctx).
		Where("org_id = ? AND id = ?", orgID, id).
		First(&lead).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("lead not found")
		}
		return nil, err
	}
	return &lead, nil
}

// UpdateLeadStage 更新商机阶段
func (s *LeadService) UpdateLeadStage(ctx context.Context, orgID, id, stage string) error {
	switch stage {
	case "new", "contacted", "proposal", "won", "lost":
	default:
		return fmt.Errorf("invalid stage: %s", stage)
	}
	result := s.db.WithContext(ctx).Model(&models.Lead{}).
		Where("org_id = ? AND id = ?", orgID, id).
		Updates(map[string]interface{}{"stage": stage, "updated_at": time.Now()})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("lead not found")
	}
	return nil
}
