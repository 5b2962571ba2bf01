package services

import (
	"context"
	"time"

	"obraflow/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm/clause"
)

// hasOutboxEntry reports whether (org, actionKey) was already materialized.
func (s *AutomationService) hasOutboxEntry(ctx context.Context, orgID, key string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.AutomationOutboxEntry{}).
		Where("org_id = ? AND action_key = ?", orgID, key).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// recordOutboxEntry appends the idempotency record for an applied action.
// The unique index on (org_id, action_key) is the single cross-invocation
// at-most-once barrier: a conflicting insert means a concurrent invocation
// already applied this action, which is a no-op success, not an error.
func (s *AutomationService) recordOutboxEntry(ctx context.Context, orgID, runID string, actionType ActionType, key, payload string) error {
	entry := &models.AutomationOutboxEntry{
		ID:         uuid.NewString(),
		OrgID:      orgID,
		RunID:      runID,
		ActionType: string(actionType),
		ActionKey:  key,
		Payload:    payload,
		AppliedAt:  time.Now(),
	}
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "org_id"}, {Name: "action_key"}},
			DoNothing: true,
		}).
		Create(entry)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		s.logger.Debugf("automation: outbox entry %s/%s already recorded by a concurrent run", orgID, key)
	}
	return nil
}
