package audit

import (
	"time"

	"github.com/darasahq/darasa/core"
)

// Actions recorded by this app.
const (
	ActionRoleCreate        = "role.create"
	ActionRoleUpdate        = "role.update"
	ActionRoleInitTemplates = "role.init_templates"
	ActionRoleAssign        = "role.assign"
	ActionReportsToChange   = "user.reports_to_change"
)

// Resource types recorded by this app.
const (
	ResourceRole   = "role"
	ResourceTenant = "tenant"
	ResourceUser   = "user"
)

// Record is one immutable audit/security-event entry.
type Record struct {
	ID           string                 `json:"id"`
	TenantID     string                 `json:"tenant_id"`
	ActorID      string                 `json:"actor_id"`
	Action       string                 `json:"action"`
	ResourceType string                 `json:"resource_type"`
	ResourceID   string                 `json:"resource_id"`
	Details      map[string]interface{} `json:"details,omitempty"`
	CreatedAt    time.Time              `json:"created_at"` // UTC
}

type QueryFilter struct {
	ActorID      string    `query:"actor_id"`
	Action       string    `query:"action"`
	ResourceType string    `query:"resource_type"`
	ResourceID   string    `query:"resource_id"`
	From         time.Time `query:"from"`
	To           time.Time `query:"to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.ActorID == "" && qf.Action == "" && qf.ResourceType == "" &&
		qf.ResourceID == "" && qf.From.IsZero() && qf.To.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.ActorID = core.CleanString(qf.ActorID)
	qf.Action = core.CleanString(qf.Action, true /* lower */)
	qf.ResourceType = core.CleanString(qf.ResourceType, true /* lower */)
	qf.ResourceID = core.CleanString(qf.ResourceID)
}
