package models

import (
	"time"

	"gorm.io/gorm"
)

// User 平台用户（org 管理员、工程师、客户）
type User struct {
	ID        string         `gorm:"primaryKey;type:varchar(36)" json:"id"`
	OrgID     string         `gorm:"index;not null" json:"org_id"`
	Email     string         `gorm:"uniqueIndex;not null" json:"email"`
	Name      string         `json:"name"`
	Role      string         `gorm:"default:'member'" json:"role"` // admin, member, client
	Status    string         `gorm:"default:'active'" json:"status"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Lead 商机/潜在客户
type Lead struct {
	ID        string         `gorm:"primaryKey;type:varchar(36)" json:"id"`
	OrgID     string         `gorm:"index;not null" json:"org_id"`
	Name      string         `gorm:"not null" json:"name"`
	Email     string         `json:"email"`
	Phone     string         `json:"phone"`
	Source    string         `json:"source"` // web, referral, indication
	Stage     string         `gorm:"default:'new'" json:"stage"` // new, contacted, proposal, won, lost
	OwnerID   string         `gorm:"index" json:"owner_id"`
	Notes     string         `gorm:"type:text" json:"notes"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Obra 施工项目
type Obra struct {
	ID         string         `gorm:"primaryKey;type:varchar(36)" json:"id"`
	OrgID      string         `gorm:"index;not null" json:"org_id"`
	Name       string         `gorm:"not null" json:"name"`
	ClientName string         `json:"client_name"`
	Address    string         `json:"address"`
	Status     string         `gorm:"default:'planning'" json:"status"` // planning, active, paused, done
	StartDate  *time.Time     `json:"start_date"`
	CreatedBy  string         `json:"created_by"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`

	Checklists []ObraChecklist `gorm:"foreignKey:ObraID" json:"checklists,omitempty"`
}

// Approval 客户审批（门户决策记录，版本化）
type Approval struct {
	ID           string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	OrgID        string    `gorm:"index;not null" json:"org_id"`
	ObraID       string    `gorm:"index" json:"obra_id"`
	Title        string    `gorm:"not null" json:"title"`
	Status       string    `gorm:"default:'pending'" json:"status"` // pending, approved, rejected
	Version      int       `gorm:"default:1" json:"version"`
	DecidedBy    string    `json:"decided_by"`
	DecisionNote string    `gorm:"type:text" json:"decision_note"`
	DecidedAt    *time.Time `json:"decided_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RoadmapAction 待办动作（引擎和路线图建议共用的任务槽）
type RoadmapAction struct {
	ID          string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	OrgID       string     `gorm:"index;not null" json:"org_id"`
	UserID      string     `gorm:"index" json:"user_id"`
	ActionCode  string     `gorm:"index" json:"action_code"`
	Title       string     `gorm:"not null" json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	Status      string     `gorm:"default:'pending';index" json:"status"` // pending, in_progress, done, dismissed
	DueAt       *time.Time `json:"due_at"`
	Source      string     `json:"source"` // automation, suggestion, manual
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ObraChecklist 项目检查清单
type ObraChecklist struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	OrgID     string    `gorm:"index;not null" json:"org_id"`
	ObraID    string    `gorm:"index;not null" json:"obra_id"`
	Name      string    `gorm:"not null" json:"name"`
	SortOrder int       `gorm:"default:0" json:"sort_order"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Items []ChecklistItem `gorm:"foreignKey:ChecklistID" json:"items,omitempty"`
}

// ChecklistItem 清单条目
type ChecklistItem struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ChecklistID string    `gorm:"index;not null" json:"checklist_id"`
	OrgID       string    `gorm:"index;not null" json:"org_id"`
	Description string    `gorm:"not null" json:"description"`
	Done        bool      `gorm:"default:false" json:"done"`
	SortOrder   int       `gorm:"default:0" json:"sort_order"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
