package models

import "time"

// AutomationRule 租户配置的自动化规则：trigger 与模板的绑定
type AutomationRule struct {
	ID             string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	OrgID          string    `gorm:"index:idx_automation_rules_org_trigger;not null" json:"org_id"`
	Trigger        string    `gorm:"index:idx_automation_rules_org_trigger;not null" json:"trigger"` // lead_created, obra_created, approval_rejected
	TemplateCode   string    `gorm:"not null" json:"template_code"`
	Enabled        bool      `gorm:"default:true" json:"enabled"`
	RequiresReview bool      `gorm:"default:false" json:"requires_review"`
	// CooldownHours is stored for the admin screen but not yet enforced by the runner.
	CooldownHours  int       `gorm:"default:0" json:"cooldown_hours"`
	CreatedBy      string    `json:"created_by"`
	Metadata       string    `gorm:"type:text" json:"metadata"` // free-form JSON
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// AutomationRun 每次引擎调用的审计记录
type AutomationRun struct {
	ID                string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	OrgID             string    `gorm:"index" json:"org_id"`
	RuleID            *string   `gorm:"index" json:"rule_id"` // nil for synthetic default rules
	Trigger           string    `gorm:"index" json:"trigger"`
	TriggerEntityType string    `json:"trigger_entity_type"`
	TriggerEntityID   string    `gorm:"index" json:"trigger_entity_id"`
	Status            string    `gorm:"index" json:"status"` // preview, pending_review, applied, skipped, error
	Summary           string    `gorm:"type:text" json:"summary"`
	RequiresReview    bool      `json:"requires_review"`
	RunSource         string    `json:"run_source"` // manual, trigger
	Preview           string    `gorm:"type:text" json:"preview"` // serialized AutomationPreview
	Result            string    `gorm:"type:text" json:"result"`  // serialized {applied, skipped, errors}
	CreatedBy         string    `json:"created_by"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// AutomationOutboxEntry 幂等账本：(org_id, action_key) 唯一，只插入不更新
type AutomationOutboxEntry struct {
	ID         string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	OrgID      string    `gorm:"uniqueIndex:idx_automation_outbox_org_key;not null" json:"org_id"`
	RunID      string    `gorm:"index" json:"run_id"`
	ActionType string    `json:"action_type"`
	ActionKey  string    `gorm:"uniqueIndex:idx_automation_outbox_org_key;not null" json:"action_key"`
	Payload    string    `gorm:"type:text" json:"payload"`
	AppliedAt  time.Time `json:"applied_at"`
}
