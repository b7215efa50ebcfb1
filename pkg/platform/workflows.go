package platform

import (
	"context"

	"github.com/tombee/flowctl/pkg/api"
)

// WorkflowListParams filters the admin workflow list.
type WorkflowListParams struct {
	PageParams
	Search      string
	Status      string
	WorkspaceID string
	TriggerType string
}

func (p WorkflowListParams) params() api.Params {
	params := api.Params{}
	setIf(params, "search", p.Search)
	setIf(params, "status", p.Status)
	setIf(params, "workspace_id", p.WorkspaceID)
	setIf(params, "trigger_type", p.TriggerType)
	return p.apply(params)
}

// WorkflowService is the admin view of workflows.
type WorkflowService struct {
	client *api.Client
}

// List returns one page of workflows across workspaces.
func (s *WorkflowService) List(ctx context.Context, p WorkflowListParams) (api.List[Workflow], error) {
	return api.GetList[Workflow](ctx, s.client, "/admin/workflows", api.WithParams(p.params()))
}
