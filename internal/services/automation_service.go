package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	appmetrics "obraflow/internal/metrics"
	"obraflow/internal/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// AutomationService is the automation engine: it resolves the rules matching
// a trigger, expands them through the template registry, records an auditable
// run row, gates risky actions on human review, and executes each proposed
// action at most once across invocations.
type AutomationService struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewAutomationService(db *gorm.DB, logger *logrus.Logger) *AutomationService {
	if logger == nil {
		logger = logrus.New()
	}
	return &AutomationService{db: db, logger: logger}
}

// runResult 落库的执行计数
type runResult struct {
	Applied int `json:"applied"`
	Skipped int `json:"skipped"`
	Errors  int `json:"errors"`
}

// buildPreview expands the resolved rules into a preview. Called on every
// invocation, including the confirmed one: a preview is always recomputed
// from current rules, never trusted across the review boundary.
func (s *AutomationService) buildPreview(tc TriggerContext, rules []resolvedRule) *AutomationPreview {
	preview := &AutomationPreview{Trigger: tc.Trigger}
	for _, r := range rules {
		tpl, ok := lookupTemplate(TemplateCode(r.rule.TemplateCode))
		if !ok {
			s.logger.Warnf("automation: rule %s references unknown template %s", r.rule.ID, r.rule.TemplateCode)
			continue
		}
		if preview.TemplateCode == "" {
			preview.TemplateCode = tpl.Code
		}
		if r.rule.RequiresReview {
			preview.RequiresReview = true
		}
		preview.Actions = append(preview.Actions, tpl.Build(tc)...)
	}
	return preview
}

// Preview 只读：解析规则并展开预览，除规则读取外无副作用
func (s *AutomationService) Preview(ctx context.Context, tc TriggerContext) (*AutomationPreview, error) {
	if tc.OrgID == "" {
		return nil, fmt.Errorf("org id required")
	}
	if !IsValidTrigger(string(tc.Trigger)) {
		return nil, fmt.Errorf("unsupported trigger: %s", tc.Trigger)
	}
	rules := s.resolveRules(ctx, tc.OrgID, tc.Trigger)
	return s.buildPreview(tc, rules), nil
}

// Run executes one automation invocation and always leaves a run row behind,
// even when nothing applies. The only fatal path is failing to create the
// initial run row. A confirmed re-invocation starts a fresh run and
// recomputes everything; it never resumes a pending_review row.
func (s *AutomationService) Run(ctx context.Context, tc TriggerContext, opts RunOptions) *AutomationRunResult {
	if opts.Source == "" {
		opts.Source = "manual"
	}
	if tc.OrgID == "" || !IsValidTrigger(string(tc.Trigger)) {
		return &AutomationRunResult{Status: RunStatusError, Message: "invalid trigger context"}
	}

	rules := s.resolveRules(ctx, tc.OrgID, tc.Trigger)
	preview := s.buildPreview(tc, rules)

	// An unattended event path with a review gate would otherwise leave a
	// dangling "preview" row, so mark it pending_review up front.
	initialStatus := RunStatusPreview
	if opts.Source == "trigger" && preview.RequiresReview && !opts.Confirm {
		initialStatus = RunStatusPendingReview
	}

	run := &models.AutomationRun{
		ID:                uuid.NewString(),
		OrgID:             tc.OrgID,
		RuleID:            firstRuleID(rules),
		Trigger:           string(tc.Trigger),
		TriggerEntityType: tc.TriggerEntityType,
		TriggerEntityID:   tc.TriggerEntityID,
		Status:            initialStatus,
		RequiresReview:    preview.RequiresReview,
		RunSource:         opts.Source,
		Preview:           marshalJSON(preview),
		CreatedBy:         tc.UserID,
		CreatedAt:         time.Now(),
		UpdatedAt:         time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		s.logger.Errorf("automation: create run for org %s trigger %s failed: %v", tc.OrgID, tc.Trigger, err)
		return &AutomationRunResult{Status: RunStatusError, Message: "failed to record automation run"}
	}

	if len(preview.Actions) == 0 {
		s.finishRun(ctx, run, RunStatusSkipped, "no actions proposed", runResult{})
		appmetrics.IncAutomationRun(RunStatusSkipped)
		return &AutomationRunResult{
			RunID:   run.ID,
			Status:  RunStatusSkipped,
			Message: "no actions proposed",
		}
	}

	if preview.RequiresReview && !opts.Confirm {
		if run.Status != RunStatusPendingReview {
			s.updateRunStatus(ctx, run, RunStatusPendingReview, "awaiting review confirmation")
		}
		appmetrics.IncAutomationRun(RunStatusPendingReview)
		return &AutomationRunResult{
			RunID:          run.ID,
			Status:         RunStatusPendingReview,
			RequiresReview: true,
			Message:        "automation requires review; re-run with confirm to execute",
		}
	}

	// Every proposed action gets an independent attempt and independent
	// accounting: a single bad action cannot mask the rest.
	var counts runResult
	for _, action := range preview.Actions {
		exists, err := s.hasOutboxEntry(ctx, tc.OrgID, action.ActionKey)
		if err != nil {
			counts.Errors++
			s.logActionFailure(run.ID, action, "outbox check failed", err)
			continue
		}
		if exists {
			counts.Skipped++
			continue
		}

		applied, msg, err := s.executeAction(ctx, tc, action)
		if err != nil {
			counts.Errors++
			s.logActionFailure(run.ID, action, "action failed", err)
			continue
		}
		if !applied {
			counts.Skipped++
			s.logger.Debugf("automation: run %s skipped %s: %s", run.ID, action.ActionKey, msg)
			continue
		}
		if err := s.recordOutboxEntry(ctx, tc.OrgID, run.ID, action.Type, action.ActionKey, marshalJSON(action)); err != nil {
			// The action did land; losing its ledger entry is worth a loud
			// log but does not undo the application.
			s.logActionFailure(run.ID, action, "record outbox entry failed", err)
		}
		counts.Applied++
	}

	status := RunStatusSkipped
	if counts.Errors > 0 && counts.Applied == 0 {
		status = RunStatusError
	} else if counts.Applied > 0 {
		status = RunStatusApplied
	}
	summary := fmt.Sprintf("%d applied, %d skipped, %d errors", counts.Applied, counts.Skipped, counts.Errors)
	s.finishRun(ctx, run, status, summary, counts)
	appmetrics.IncAutomationRun(status)

	return &AutomationRunResult{
		RunID:          run.ID,
		Status:         status,
		Applied:        counts.Applied,
		Skipped:        counts.Skipped,
		Errors:         counts.Errors,
		RequiresReview: preview.RequiresReview,
		Message:        summary,
	}
}

// ListRuns 返回租户最近的执行记录（审计界面）
func (s *AutomationService) ListRuns(ctx context.Context, orgID string, limit int) ([]models.AutomationRun, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var runs []models.AutomationRun
	if err := s.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("created_at DESC").
		Limit(limit).
		Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

func (s *AutomationService) logActionFailure(runID string, action ProposedAction, msg string, err error) {
	s.logger.WithFields(logrus.Fields{
		"run_id":      runID,
		"action_key":  action.ActionKey,
		"action_type": action.Type,
	}).Warnf("automation: %s: %v", msg, err)
}

func (s *AutomationService) finishRun(ctx context.Context, run *models.AutomationRun, status, summary string, counts runResult) {
	updates := map[string]interface{}{
		"status":     status,
		"summary":    summary,
		"result":     marshalJSON(counts),
		"updated_at": time.Now(),
	}
	if err := s.db.WithContext(ctx).Model(&models.AutomationRun{}).
		Where("id = ?", run.ID).
		Updates(updates).Error; err != nil {
		s.logger.Warnf("automation: update run %s failed: %v", run.ID, err)
	}
	run.Status = status
	run.Summary = summary
}

func (s *AutomationService) updateRunStatus(ctx context.Context, run *models.AutomationRun, status, summary string) {
	s.finishRun(ctx, run, status, summary, runResult{})
}

// firstRuleID returns the first configured rule's id, or nil when the
// invocation ran purely on synthetic defaults.
func firstRuleID(rules []resolvedRule) *string {
	for _, r := range rules {
		if id := r.ruleID(); id != nil {
			return id
		}
	}
	return nil
}

func marshalJSON(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
