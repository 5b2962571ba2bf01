package services

import "testing"

func TestListTemplates(t *testing.T) {
	templates := ListTemplates()
	if len(templates) != 3 {
		t.Fatalf("expected 3 templates, got %d", len(templates))
	}
	byCode := make(map[TemplateCode]TemplateInfo, len(templates))
	for _, tpl := range templates {
		byCode[tpl.Code] = tpl
	}
	if !byCode[TemplateObraKickoffChecklist].DefaultRequiresReview {
		t.Error("obra kickoff template defaults to requiring review")
	}
	if byCode[TemplateLeadFollowupInitial].DefaultRequiresReview {
		t.Error("lead followup template must not require review by default")
	}
}

func TestIsValidTemplateCode(t *testing.T) {
	for _, s := range []string{"lead_followup_initial", "obra_kickoff_checklist", "approval_rework_sla"} {
		if !IsValidTemplateCode(s) {
			t.Errorf("template %s should be valid", s)
		}
	}
	if IsValidTemplateCode("ghost_template") {
		t.Error("unknown template must not validate")
	}
}

func TestTemplateBuild_Deterministic(t *testing.T) {
	tc := TriggerContext{
		OrgID:           "org-1",
		UserID:          "user-1",
		Trigger:         TriggerObraCreated,
		TriggerEntityID: "obra-9",
	}
	tpl, ok := lookupTemplate(TemplateObraKickoffChecklist)
	if !ok {
		t.Fatal("template not registered")
	}

	// Build 是纯函数：同一上下文展开结果一致
	a := tpl.Build(tc)
	b := tpl.Build(tc)
	if len(a) != 2 || len(b) != 2 {
		t.Fatalf("expected 2 actions, got %d and %d", len(a), len(b))
	}
	for i := range a {
		if a[i].ActionKey != b[i].ActionKey {
			t.Errorf("action key drifted: %s vs %s", a[i].ActionKey, b[i].ActionKey)
		}
	}

	if a[0].Type != ActionEnsureChecklistBase {
		t.Fatalf("expected checklist action first, got %s", a[0].Type)
	}
	if a[0].ActionKey != "obra_created:obra-9:kickoff-checklist" {
		t.Errorf("unexpected checklist key %s", a[0].ActionKey)
	}
	if a[0].Checklist == nil || a[0].Checklist.Name != KickoffChecklistName {
		t.Error("checklist action must carry the kickoff checklist spec")
	}
	if len(a[0].Checklist.Items) != 3 {
		t.Errorf("expected 3 baseline items, got %d", len(a[0].Checklist.Items))
	}

	if a[1].Type != ActionCreateRoadmapAction || a[1].Roadmap == nil {
		t.Fatal("expected roadmap action second with payload")
	}
	if a[1].Roadmap.ActionCode != "obra_kickoff_review" || a[1].Roadmap.DueInHours != 48 {
		t.Errorf("unexpected roadmap spec %+v", a[1].Roadmap)
	}
}

func TestTemplateBuild_LeadAndApproval(t *testing.T) {
	lead, _ := lookupTemplate(TemplateLeadFollowupInitial)
	actions := lead.Build(TriggerContext{Trigger: TriggerLeadCreated, TriggerEntityID: "lead-1"})
	if len(actions) != 1 {
		t.Fatalf("expected 1 lead action, got %d", len(actions))
	}
	if actions[0].Roadmap == nil || actions[0].Roadmap.DueInHours != 24 {
		t.Errorf("lead followup due in 24h, got %+v", actions[0].Roadmap)
	}

	rework, _ := lookupTemplate(TemplateApprovalReworkSLA)
	actions = rework.Build(TriggerContext{Trigger: TriggerApprovalRejected, TriggerEntityID: "ap-1"})
	if len(actions) != 1 {
		t.Fatalf("expected 1 rework action, got %d", len(actions))
	}
	if actions[0].ActionKey != "approval_rejected:ap-1:approval-rework" {
		t.Errorf("unexpected rework key %s", actions[0].ActionKey)
	}
	if actions[0].Roadmap == nil || actions[0].Roadmap.DueInHours != 48 {
		t.Errorf("rework due in 48h, got %+v", actions[0].Roadmap)
	}
}
