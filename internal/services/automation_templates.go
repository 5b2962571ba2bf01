package services

// AutomationTemplate 模板：纯函数，把触发上下文展开为待执行动作列表。
// 不做任何 IO，不允许失败；会失败的推导属于执行器。
type AutomationTemplate struct {
	Code                  TemplateCode
	Title                 string
	DefaultRequiresReview bool
	Build                 func(tc TriggerContext) []ProposedAction
}

// TemplateInfo is the read-only projection served to the admin screen.
type TemplateInfo struct {
	Code                  TemplateCode `json:"code"`
	Title                 string       `json:"title"`
	DefaultRequiresReview bool         `json:"default_requires_review"`
}

// KickoffChecklistName is the checklist the obra kickoff template seeds.
// Re-running the template must never create a second one.
const KickoffChecklistName = "Checklist Inicial (Auto)"

var kickoffChecklistItems = []string{
	"Confirmar documentação e alvarás da obra",
	"Definir responsável técnico e equipe inicial",
	"Registrar orçamento base e fornecedores principais",
}

// automationTemplates is the process-wide registry. Initialized once at
// startup and never mutated afterwards, so it is safe to share.
var automationTemplates = map[TemplateCode]AutomationTemplate{
	TemplateLeadFollowupInitial: {
		Code:  TemplateLeadFollowupInitial,
		Title: "Follow-up inicial de lead",
		Build: func(tc TriggerContext) []ProposedAction {
			return []ProposedAction{
				{
					Type:        ActionCreateRoadmapAction,
					ActionKey:   actionKey(tc.Trigger, tc.TriggerEntityID, "lead-followup"),
					Title:       "Entrar em contato com o lead",
					Description: "Novo lead cadastrado; fazer o primeiro contato em até 24h.",
					Risk:        "low",
					Roadmap: &RoadmapActionSpec{
						ActionCode: "lead_followup",
						DueInHours: 24,
					},
				},
			}
		},
	},
	TemplateObraKickoffChecklist: {
		Code:                  TemplateObraKickoffChecklist,
		Title:                 "Checklist de kickoff da obra",
		DefaultRequiresReview: true,
		Build: func(tc TriggerContext) []ProposedAction {
			return []ProposedAction{
				{
					Type:        ActionEnsureChecklistBase,
					ActionKey:   actionKey(tc.Trigger, tc.TriggerEntityID, "kickoff-checklist"),
					Title:       "Criar checklist inicial da obra",
					Description: "Garantir que a obra tenha o checklist base de kickoff.",
					Risk:        "medium",
					Checklist: &ChecklistSpec{
						Name:  KickoffChecklistName,
						Items: kickoffChecklistItems,
					},
				},
				{
					Type:        ActionCreateRoadmapAction,
					ActionKey:   actionKey(tc.Trigger, tc.TriggerEntityID, "kickoff-review"),
					Title:       "Revisar kickoff da obra",
					Description: "Agendar reunião de kickoff e revisar o checklist inicial.",
					Risk:        "low",
					Roadmap: &RoadmapActionSpec{
						ActionCode: "obra_kickoff_review",
						DueInHours: 48,
					},
				},
			}
		},
	},
	TemplateApprovalReworkSLA: {
		Code:  TemplateApprovalReworkSLA,
		Title: "Lembrete de retrabalho após reprovação",
		Build: func(tc TriggerContext) []ProposedAction {
			return []ProposedAction{
				{
					Type:        ActionCreateRoadmapAction,
					ActionKey:   actionKey(tc.Trigger, tc.TriggerEntityID, "approval-rework"),
					Title:       "Tratar reprovação do cliente",
					Description: "Cliente reprovou uma entrega; planejar o retrabalho em até 48h.",
					Risk:        "medium",
					Roadmap: &RoadmapActionSpec{
						ActionCode: "approval_rework",
						DueInHours: 48,
					},
				},
			}
		},
	},
}

// lookupTemplate returns the registered template for code.
func lookupTemplate(code TemplateCode) (AutomationTemplate, bool) {
	tpl, ok := automationTemplates[code]
	return tpl, ok
}

// ListTemplates 返回注册表内容，供管理界面展示
func ListTemplates() []TemplateInfo {
	out := []TemplateInfo{
		tplInfo(TemplateLeadFollowupInitial),
		tplInfo(TemplateObraKickoffChecklist),
		tplInfo(TemplateApprovalReworkSLA),
	}
	return out
}

func tplInfo(code TemplateCode) TemplateInfo {
	tpl := automationTemplates[code]
	return TemplateInfo{Code: tpl.Code, Title: tpl.Title, DefaultRequiresReview: tpl.DefaultRequiresReview}
}

// IsValidTemplateCode reports whether s names a registered template.
func IsValidTemplateCode(s string) bool {
	_, ok := automationTemplates[TemplateCode(s)]
	return ok
}
