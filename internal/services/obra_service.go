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

// ObraService 施工项目 CRUD；创建后触发自动化，并提供清单读取
type ObraService struct {
	db         *gorm.DB
	logger     *logrus.Logger
	automation *AutomationService
}

func NewObraService(db *gorm.DB, logger *logrus.Logger) *ObraService {
	if logger == nil {
		logger = logrus.New()
	}
	return &ObraService{db: db, logger: logger}
}

func (s *ObraService) SetAutomationService(automation *AutomationService) {
	s.automation = automation
}

type ObraRequest struct {
	Name       string     `json:"name" binding:"required"`
	ClientName string     `json:"client_name"`
	Address    string     `json:"address"`
	StartDate  *time.Time `json:"start_date"`
}

// CreateObra persists the obra and then fires the obra_created automation.
// The default rule for this trigger requires review, so the unattended path
// normally parks at pending_review until an admin confirms.
func (s *ObraService) CreateObra(ctx context.Context, orgID, userID string, req *ObraRequest) (*models.Obra, error) {
	if req == nil || req.Name == "" {
		return nil, fmt.Errorf("obra name required")
	}
	obra := &models.Obra{
		ID:         uuid.NewString(),
		OrgID:      orgID,
		Name:       req.Name,
		ClientName: req.ClientName,
		Address:    req.Address,
		Status:     "planning",
		StartDate:  req.StartDate,
		CreatedBy:  userID,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(obra).Error; err != nil {
		return nil, err
	}

	if s.automation != nil {
		result := s.automation.Run(ctx, TriggerContext{
			OrgID:             orgID,
			UserID:            userID,
			Trigger:           TriggerObraCreated,
			TriggerEntityType: "obra",
			TriggerEntityID:   obra.ID,
		}, RunOptions{Source: "trigger"})
		if result.Status == RunStatusError {
			s.logger.Warnf("obra %s: automation run failed: %s", obra.ID, result.Message)
		}
	}
	return obra, nil
}

func (s *ObraService) ListObras(ctx context.Context, orgID string) ([]models.Obra, error) {
	var obras []models.Obra
	if err := s.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("created_at DESC").
		Find(&obras).Error; err != nil {
		return nil, err
	}
	return obras, nil
}

func (s *ObraService) GetObra(ctx context.Context, orgID, id string) (*models.Obra, error) {
	var obra models.Obra
	if err := s.db.WithContext(ctx).
		Where("org_id = ? AND id = ?", orgID, id).
		First(&obra).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("obra not found")
		}
		return nil, err
	}
	return &obra, nil
}

// ListChecklists 返回某项目的清单及条目，按 sort_order 排序
func (s *ObraService) ListChecklists(ctx context.Context, orgID, obraID string) ([]models.ObraChecklist, error) {
	var checklists []models.ObraChecklist
	if err := s.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order ASC") }).
		Where("org_id = ? AND obra_id = ?", orgID, obraID).
		Order("sort_order ASC").
		Find(&checklists).Error; err != nil {
		return nil, err
	}
	return checklists, nil
}
