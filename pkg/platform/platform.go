package platform

import (
	"encoding/json"
	"net/url"

	"github.com/tombee/flowctl/pkg/api"
	flowerrors "github.com/tombee/flowctl/pkg/errors"
)

// Platform groups the typed services.
type Platform struct {
	Auth       *AuthService
	Users      *UserService
	Workspaces *WorkspaceService
	Workflows  *WorkflowService
	Support    *SupportService
}

// New returns the services bound to client.
func New(client *api.Client) *Platform {
	return &Platform{
		Auth:       &AuthService{client: client},
		Users:      &UserService{client: client},
		Workspaces: &WorkspaceService{client: client},
		Workflows:  &WorkflowService{client: client},
		Support:    &SupportService{client: client},
	}
}

// PageParams are the paging parameters shared by list endpoints.
type PageParams struct {
	Page     int
	PageSize int
}

func (p PageParams) apply(params api.Params) api.Params {
	if p.Page > 0 {
		params["page"] = p.Page
	}
	if p.PageSize > 0 {
		params["page_size"] = p.PageSize
	}
	return params
}

// setIf adds value under key when it is not empty.
func setIf(params api.Params, key, value string) {
	if value != "" {
		params[key] = value
	}
}

// path joins segments with "/", escaping each one.
func path(segments ...string) string {
	out := ""
	for _, s := range segments {
		out += "/" + url.PathEscape(s)
	}
	return out
}

// unwrapField decodes raw[field] into out when the object has that
// member, and raw itself otherwise. Some endpoints wrap a single resource
// as {"user": {...}} while others return it bare.
func unwrapField(raw json.RawMessage, field string, out any) error {
	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapper); err == nil {
		if inner, ok := wrapper[field]; ok {
			return json.Unmarshal(inner, out)
		}
	}
	return json.Unmarshal(raw, out)
}

func required(field, value string) error {
	if value == "" {
		return &flowerrors.ValidationError{Field: field, Message: field + " is required"}
	}
	return nil
}
