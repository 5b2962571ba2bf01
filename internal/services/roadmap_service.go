package services

import (
	"context"
	"fmt"
	"time"

	"obraflow/internal/models"

	"gorm.io/gorm"
)

// RoadmapService 任务槽的所有者：自动化引擎和路线图建议都写入这里，
// 本服务只负责读取和状态流转
type RoadmapService struct {
	db *gorm.DB
}

func NewRoadmapService(db *gorm.DB) *RoadmapService {
	return &RoadmapService{db: db}
}

// ListPending returns the open actions for a user, soonest due first.
func (s *RoadmapService) ListPending(ctx context.Context, orgID, userID string) ([]models.RoadmapAction, error) {
	var actions []models.RoadmapAction
	if err := s.db.WithContext(ctx).
		Where("org_id = ? AND user_id = ? AND status IN ?", orgID, userID, []string{"pending", "in_progress"}).
		Order("due_at ASC").
		Find(&actions).Error; err != nil {
		return nil, err
	}
	return actions, nil
}

var roadmapTransitions = map[string][]string{
	"pending":     {"in_progress", "done", "dismissed"},
	"in_progress": {"done", "dismissed"},
}

// UpdateStatus moves an action forward; done and dismissed are terminal.
func (s *RoadmapService) UpdateStatus(ctx context.Context, orgID, id, status string) (*models.RoadmapAction, error) {
	var action models.RoadmapAction
	if err := s.db.WithContext(ctx).
		Where("org_id = ? AND id = ?", orgID, id).
		First(&action).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("roadmap action not found")
		}
		return nil, err
	}

	allowed := false
	for _, next := range roadmapTransitions[action.Status] {
		if next == status {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, fmt.Errorf("invalid status transition: %s -> %s", action.Status, status)
	}

	if err := s.db.WithContext(ctx).Model(&models.RoadmapAction{}).
		Where("id = ?", action.ID).
		Updates(map[string]interface{}{"status": status, "updated_at": time.Now()}).Error; err != nil {
		return nil, err
	}
	action.Status = status
	return &action, nil
}
