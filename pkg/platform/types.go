package platform

import (
	"encoding/json"
	"time"
)

// User is a platform account.
type User struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Username    string     `json:"username"`
	DisplayName string     `json:"display_name,omitempty"`
	AvatarURL   string     `json:"avatar_url,omitempty"`
	Role        string     `json:"role"`
	Status      string     `json:"status"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Workspace is a tenant space (also exposed to end users as an app).
type Workspace struct {
	ID              string     `json:"id"`
	OwnerUserID     string     `json:"owner_user_id"`
	Name            string     `json:"name"`
	Slug            string     `json:"slug"`
	Icon            string     `json:"icon,omitempty"`
	Status          string     `json:"status"`
	StatusReason    *string    `json:"status_reason,omitempty"`
	StatusUpdatedAt *time.Time `json:"status_updated_at,omitempty"`
	Plan            string     `json:"plan"`
	Region          *string    `json:"region,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	Owner           *User      `json:"owner,omitempty"`
}

// WorkspaceMember is a user's membership in a workspace.
type WorkspaceMember struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspace_id"`
	UserID      string    `json:"user_id"`
	RoleID      string    `json:"role_id,omitempty"`
	User        *User     `json:"user,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// WorkspaceDetail is the admin view of one workspace.
type WorkspaceDetail struct {
	Workspace    Workspace         `json:"workspace"`
	Members      []WorkspaceMember `json:"members"`
	MembersTotal int               `json:"members_total,omitempty"`
}

// Workflow is an automation defined in a workspace.
type Workflow struct {
	ID            string          `json:"id"`
	WorkspaceID   string          `json:"workspace_id"`
	Name          string          `json:"name"`
	Slug          string          `json:"slug"`
	Description   *string         `json:"description,omitempty"`
	Status        string          `json:"status"`
	TriggerType   string          `json:"trigger_type"`
	TriggerConfig json.RawMessage `json:"trigger_config,omitempty"`
	Version       int             `json:"version"`
	NodesCount    int             `json:"nodes_count"`
	CreatedBy     *string         `json:"created_by,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	LastRunAt     *time.Time      `json:"last_run_at,omitempty"`
}

// SupportTicket is a customer support request.
type SupportTicket struct {
	ID             string     `json:"id"`
	Reference      string     `json:"reference"`
	WorkspaceID    *string    `json:"workspace_id,omitempty"`
	RequesterEmail string     `json:"requester_email"`
	RequesterName  *string    `json:"requester_name,omitempty"`
	Subject        string     `json:"subject"`
	Description    string     `json:"description"`
	Category       string     `json:"category"`
	Priority       string     `json:"priority"`
	Status         string     `json:"status"`
	StatusNote     *string    `json:"status_note,omitempty"`
	Channel        string     `json:"channel"`
	AssigneeValue  *string    `json:"assignee_value,omitempty"`
	SLAResolveDue  *time.Time `json:"sla_resolve_due_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
