package services

import (
	"fmt"

	"obraflow/internal/models"
)

// Trigger identifies a business event that may start an automation.
type Trigger string

const (
	TriggerLeadCreated      Trigger = "lead_created"
	TriggerObraCreated      Trigger = "obra_created"
	TriggerApprovalRejected Trigger = "approval_rejected"
)

// IsValidTrigger reports whether s names a known trigger.
func IsValidTrigger(s string) bool {
	switch Trigger(s) {
	case TriggerLeadCreated, TriggerObraCreated, TriggerApprovalRejected:
		return true
	default:
		return false
	}
}

// TemplateCode identifies a registered automation template.
type TemplateCode string

const (
	TemplateLeadFollowupInitial  TemplateCode = "lead_followup_initial"
	TemplateObraKickoffChecklist TemplateCode = "obra_kickoff_checklist"
	TemplateApprovalReworkSLA    TemplateCode = "approval_rework_sla"
)

// ActionType identifies the executor used to materialize a proposed action.
type ActionType string

const (
	ActionCreateRoadmapAction ActionType = "create_roadmap_action"
	ActionEnsureChecklistBase ActionType = "ensure_checklist_base"
)

// TriggerContext 一次触发调用的上下文，由调用方构造，不落库
type TriggerContext struct {
	OrgID             string                 `json:"org_id"`
	UserID            string                 `json:"user_id"`
	Trigger           Trigger                `json:"trigger"`
	TriggerEntityType string                 `json:"trigger_entity_type"`
	TriggerEntityID   string                 `json:"trigger_entity_id"`
	Payload           map[string]interface{} `json:"payload,omitempty"`
}

// RoadmapActionSpec is the create_roadmap_action payload of a proposed action.
type RoadmapActionSpec struct {
	ActionCode string `json:"action_code"`
	DueInHours int    `json:"due_in_hours"`
}

// ChecklistSpec is the ensure_checklist_base payload of a proposed action.
type ChecklistSpec struct {
	Name  string   `json:"name"`
	Items []string `json:"items"`
}

// ProposedAction 预览中的一条待执行动作。Type 决定哪个 payload 字段有效。
type ProposedAction struct {
	Type        ActionType         `json:"type"`
	ActionKey   string             `json:"action_key"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Risk        string             `json:"risk"` // low, medium, high
	Roadmap     *RoadmapActionSpec `json:"roadmap,omitempty"`
	Checklist   *ChecklistSpec     `json:"checklist,omitempty"`
}

// AutomationPreview is the recomputed-on-every-call expansion of the matched
// rules. It is stored on the run row for audit but is never consulted again
// to decide what to execute.
type AutomationPreview struct {
	Trigger        Trigger          `json:"trigger"`
	TemplateCode   TemplateCode     `json:"template_code"`
	RequiresReview bool             `json:"requires_review"`
	Actions        []ProposedAction `json:"actions"`
}

// resolvedRule is either a configured rule row or a synthetic default.
// Synthetic rules are never persisted and carry no durable rule id.
type resolvedRule struct {
	rule      models.AutomationRule
	synthetic bool
}

func (r resolvedRule) ruleID() *string {
	if r.synthetic {
		return nil
	}
	id := r.rule.ID
	return &id
}

// RunOptions controls one Runner invocation.
type RunOptions struct {
	Confirm bool   `json:"confirm"`
	Source  string `json:"source"` // manual, trigger
}

// AutomationRunResult is returned to the caller of Run.
type AutomationRunResult struct {
	RunID          string `json:"run_id"`
	Status         string `json:"status"`
	Applied        int    `json:"applied"`
	Skipped        int    `json:"skipped"`
	Errors         int    `json:"errors"`
	RequiresReview bool   `json:"requires_review"`
	Message        string `json:"message"`
}

// Run statuses.
const (
	RunStatusPreview       = "preview"
	RunStatusPendingReview = "pending_review"
	RunStatusApplied       = "applied"
	RunStatusSkipped       = "skipped"
	RunStatusError         = "error"
)

// actionKey builds the deterministic idempotency key for a proposed action.
func actionKey(trigger Trigger, entityID, slug string) string {
	return fmt.Sprintf("%s:%s:%s", trigger, entityID, slug)
}
