package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/tombee/flowctl/pkg/api"
)

// UserListParams filters the admin user list.
type UserListParams struct {
	PageParams
	Search string
	Status string
	Role   string
}

func (p UserListParams) params() api.Params {
	params := api.Params{}
	setIf(params, "search", p.Search)
	setIf(params, "status", p.Status)
	setIf(params, "role", p.Role)
	return p.apply(params)
}

// UserService is the admin view of platform accounts.
type UserService struct {
	client *api.Client
}

type statusUpdate struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
	Note   string `json:"note,omitempty"`
}

// List returns one page of users.
func (s *UserService) List(ctx context.Context, p UserListParams) (api.List[User], error) {
	return api.GetList[User](ctx, s.client, "/admin/users", api.WithParams(p.params()))
}

// Get returns a single user.
func (s *UserService) Get(ctx context.Context, id string) (*User, error) {
	if err := required("id", id); err != nil {
		return nil, err
	}
	return s.user(ctx, http.MethodGet, path("admin", "users", id), nil)
}

// UpdateStatus sets a user's status, e.g. "active" or "suspended". The
// reason is optional.
func (s *UserService) UpdateStatus(ctx context.Context, id, status, reason string) (*User, error) {
	if err := required("id", id); err != nil {
		return nil, err
	}
	if err := required("status", status); err != nil {
		return nil, err
	}
	return s.user(ctx, http.MethodPatch, path("admin", "users", id, "status"), statusUpdate{Status: status, Reason: reason})
}

func (s *UserService) user(ctx context.Context, method, p string, body any) (*User, error) {
	var raw json.RawMessage
	if err := s.client.Do(ctx, method, p, body, &raw); err != nil {
		return nil, err
	}
	var u User
	if err := unwrapField(raw, "user", &u); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	return &u, nil
}
