package platform

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tombee/flowctl/pkg/api"
)

// WorkspaceListParams filters the admin workspace list.
type WorkspaceListParams struct {
	PageParams
	Search         string
	Status         string
	OwnerID        string
	IncludeDeleted bool
}

func (p WorkspaceListParams) params() api.Params {
	params := api.Params{}
	setIf(params, "search", p.Search)
	setIf(params, "status", p.Status)
	setIf(params, "owner_id", p.OwnerID)
	if p.IncludeDeleted {
		params["include_deleted"] = true
	}
	return p.apply(params)
}

// WorkspaceService is the admin view of workspaces.
type WorkspaceService struct {
	client *api.Client
}

// List returns one page of workspaces.
func (s *WorkspaceService) List(ctx context.Context, p WorkspaceListParams) (api.List[Workspace], error) {
	return api.GetList[Workspace](ctx, s.client, "/admin/workspaces", api.WithParams(p.params()))
}

// Get returns a workspace with its members. A response carrying the bare
// workspace is accepted too.
func (s *WorkspaceService) Get(ctx context.Context, id string) (*WorkspaceDetail, error) {
	if err := required("id", id); err != nil {
		return nil, err
	}
	var raw json.RawMessage
	if err := s.client.Get(ctx, path("admin", "workspaces", id), &raw); err != nil {
		return nil, err
	}
	var detail WorkspaceDetail
	if err := unwrapField(raw, "workspace", &detail.Workspace); err != nil {
		return nil, fmt.Errorf("decode workspace: %w", err)
	}
	var extra struct {
		Members      []WorkspaceMember `json:"members"`
		MembersTotal *int              `json:"members_total"`
	}
	if err := json.Unmarshal(raw, &extra); err == nil {
		detail.Members = extra.Members
		if extra.MembersTotal != nil {
			detail.MembersTotal = *extra.MembersTotal
		}
	}
	if detail.Members == nil {
		detail.Members = []WorkspaceMember{}
	}
	if detail.MembersTotal == 0 {
		detail.MembersTotal = len(detail.Members)
	}
	return &detail, nil
}
