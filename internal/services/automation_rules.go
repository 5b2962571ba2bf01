package services

import (
	"context"
	"fmt"
	"time"

	"obraflow/internal/models"

	"github.com/google/uuid"
)

// AutomationRuleRequest 创建规则的请求
type AutomationRuleRequest struct {
	OrgID          string `json:"-"`
	Trigger        string `json:"trigger" binding:"required"`
	TemplateCode   string `json:"template_code" binding:"required"`
	Enabled        *bool  `json:"enabled"`
	RequiresReview bool   `json:"requires_review"`
	CooldownHours  int    `json:"cooldown_hours"`
	CreatedBy      string `json:"-"`
	Metadata       string `json:"metadata"`
}

// resolveRules loads the enabled rules for (org, trigger), oldest first so
// long-standing rules win tie-breaks in preview summaries. A read error or an
// empty result degrades to the built-in default rule for the trigger, since
// automation must never block the triggering business action.
func (s *AutomationService) resolveRules(ctx context.Context, orgID string, trigger Trigger) []resolvedRule {
	var rules []models.AutomationRule
	err := s.db.WithContext(ctx).
		Where("org_id = ? AND trigger = ? AND enabled = ?", orgID, string(trigger), true).
		Order("created_at ASC").
		Find(&rules).Error
	if err != nil {
		s.logger.Warnf("automation: load rules for org %s trigger %s failed, using defaults: %v", orgID, trigger, err)
		return []resolvedRule{defaultRuleFor(orgID, trigger)}
	}
	if len(rules) == 0 {
		return []resolvedRule{defaultRuleFor(orgID, trigger)}
	}
	resolved := make([]resolvedRule, 0, len(rules))
	for _, r := range rules {
		resolved = append(resolved, resolvedRule{rule: r})
	}
	return resolved
}

// defaultRuleFor synthesizes the built-in rule used when an org has no
// configuration for a trigger. The result is never persisted.
func defaultRuleFor(orgID string, trigger Trigger) resolvedRule {
	code := TemplateApprovalReworkSLA
	requiresReview := false
	switch trigger {
	case TriggerLeadCreated:
		code = TemplateLeadFollowupInitial
	case TriggerObraCreated:
		code = TemplateObraKickoffChecklist
		requiresReview = true
	}
	return resolvedRule{
		synthetic: true,
		rule: models.AutomationRule{
			OrgID:          orgID,
			Trigger:        string(trigger),
			TemplateCode:   string(code),
			Enabled:        true,
			RequiresReview: requiresReview,
		},
	}
}

// ListRules 返回某租户的全部规则
func (s *AutomationService) ListRules(ctx context.Context, orgID string) ([]models.AutomationRule, error) {
	var rules []models.AutomationRule
	if err := s.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("created_at ASC").
		Find(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}

// CreateRule 新建规则
func (s *AutomationService) CreateRule(ctx context.Context, req *AutomationRuleRequest) (*models.AutomationRule, error) {
	if req == nil {
		return nil, fmt.Errorf("request required")
	}
	if !IsValidTrigger(req.Trigger) {
		return nil, fmt.Errorf("unsupported trigger: %s", req.Trigger)
	}
	if !IsValidTemplateCode(req.TemplateCode) {
		return nil, fmt.Errorf("unknown template code: %s", req.TemplateCode)
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	rule := &models.AutomationRule{
		ID:             uuid.NewString(),
		OrgID:          req.OrgID,
		Trigger:        req.Trigger,
		TemplateCode:   req.TemplateCode,
		Enabled:        enabled,
		RequiresReview: req.RequiresReview,
		CooldownHours:  req.CooldownHours,
		CreatedBy:      req.CreatedBy,
		Metadata:       req.Metadata,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(rule).Error; err != nil {
		return nil, err
	}
	return rule, nil
}

// DeleteRule 删除规则（仅限本租户）
func (s *AutomationService) DeleteRule(ctx context.Context, orgID, id string) error {
	result := s.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Delete(&models.AutomationRule{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("rule not found")
	}
	return nil
}
