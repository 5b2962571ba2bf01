package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"obraflow/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// executeAction materializes one proposed action. Executors are idempotent
// with respect to their own target rows (existence check before insert) and
// know nothing about the outbox; the at-most-once guarantee lives one layer
// up in the runner.
//
// Returns applied=false with err=nil for a soft skip (business state already
// satisfies the action).
func (s *AutomationService) executeAction(ctx context.Context, tc TriggerContext, action ProposedAction) (bool, string, error) {
	switch action.Type {
	case ActionCreateRoadmapAction:
		return s.execCreateRoadmapAction(ctx, tc, action)
	case ActionEnsureChecklistBase:
		return s.execEnsureChecklistBase(ctx, tc, action)
	default:
		// Defends against template/executor drift.
		return false, "", fmt.Errorf("unsupported action type: %s", action.Type)
	}
}

func (s *AutomationService) execCreateRoadmapAction(ctx context.Context, tc TriggerContext, action ProposedAction) (bool, string, error) {
	spec := action.Roadmap
	if spec == nil {
		return false, "", fmt.Errorf("roadmap payload missing for action %s", action.ActionKey)
	}

	// Soft idempotency independent of the outbox: the same action code can be
	// legitimately suppressed by business state, not just by the outbox key.
	var count int64
	err := s.db.WithContext(ctx).Model(&models.RoadmapAction{}).
		Where("org_id = ? AND user_id = ? AND action_code = ? AND status IN ?",
			tc.OrgID, tc.UserID, spec.ActionCode, []string{"pending", "in_progress"}).
		Count(&count).Error
	if err != nil {
		return false, "", fmt.Errorf("check existing roadmap action: %w", err)
	}
	if count > 0 {
		return false, fmt.Sprintf("roadmap action %s already open", spec.ActionCode), nil
	}

	due := time.Now().Add(time.Duration(spec.DueInHours) * time.Hour)
	row := &models.RoadmapAction{
		ID:          uuid.NewString(),
		OrgID:       tc.OrgID,
		UserID:      tc.UserID,
		ActionCode:  spec.ActionCode,
		Title:       action.Title,
		Description: action.Description,
		Status:      "pending",
		DueAt:       &due,
		Source:      "automation",
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return false, "", fmt.Errorf("create roadmap action: %w", err)
	}
	return true, fmt.Sprintf("roadmap action %s created", spec.ActionCode), nil
}

func (s *AutomationService) execEnsureChecklistBase(ctx context.Context, tc TriggerContext, action ProposedAction) (bool, string, error) {
	spec := action.Checklist
	if spec == nil {
		return false, "", fmt.Errorf("checklist payload missing for action %s", action.ActionKey)
	}
	obraID := tc.TriggerEntityID

	var checklist models.ObraChecklist
	err := s.db.WithContext(ctx).
		Where("org_id = ? AND obra_id = ? AND name = ?", tc.OrgID, obraID, spec.Name).
		First(&checklist).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, "", fmt.Errorf("load checklist: %w", err)
	}
	if err != nil {
		// Absent: create with the next available sort order.
		var maxOrder int
		row := s.db.WithContext(ctx).Model(&models.ObraChecklist{}).
			Where("org_id = ? AND obra_id = ?", tc.OrgID, obraID).
			Select("COALESCE(MAX(sort_order), 0)").Row()
		if row != nil {
			_ = row.Scan(&maxOrder)
		}
		checklist = models.ObraChecklist{
			ID:        uuid.NewString(),
			OrgID:     tc.OrgID,
			ObraID:    obraID,
			Name:      spec.Name,
			SortOrder: maxOrder + 1,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}
		if err := s.db.WithContext(ctx).Create(&checklist).Error; err != nil {
			return false, "", fmt.Errorf("create checklist: %w", err)
		}
	}

	// Insert only the baseline items not already present by description.
	var existing []models.ChecklistItem
	if err := s.db.WithContext(ctx).
		Where("checklist_id = ?", checklist.ID).
		Find(&existing).Error; err != nil {
		return false, "", fmt.Errorf("load checklist items: %w", err)
	}
	present := make(map[string]bool, len(existing))
	for _, item := range existing {
		present[item.Description] = true
	}

	added := 0
	for i, desc := range spec.Items {
		if present[desc] {
			continue
		}
		item := &models.ChecklistItem{
			ID:          uuid.NewString(),
			ChecklistID: checklist.ID,
			OrgID:       tc.OrgID,
			Description: desc,
			SortOrder:   i + 1,
			CreatedAt:   time.Now(),
			UpdatedAt:   time.Now(),
		}
		if err := s.db.WithContext(ctx).Create(item).Error; err != nil {
			return false, "", fmt.Errorf("create checklist item: %w", err)
		}
		added++
	}
	if added == 0 {
		return false, fmt.Sprintf("checklist %q already complete", spec.Name), nil
	}
	return true, fmt.Sprintf("checklist %q ensured with %d new items", spec.Name, added), nil
}
