package platform

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tombee/flowctl/pkg/api"
)

// TicketListParams filters the support ticket list.
type TicketListParams struct {
	PageParams
	Status      string
	Priority    string
	Category    string
	Search      string
	WorkspaceID string
}

func (p TicketListParams) params() api.Params {
	params := api.Params{}
	setIf(params, "status", p.Status)
	setIf(params, "priority", p.Priority)
	setIf(params, "category", p.Category)
	setIf(params, "search", p.Search)
	setIf(params, "workspace_id", p.WorkspaceID)
	return p.apply(params)
}

// SupportService manages support tickets.
type SupportService struct {
	client *api.Client
}

// ListTickets returns one page of tickets.
func (s *SupportService) ListTickets(ctx context.Context, p TicketListParams) (api.List[SupportTicket], error) {
	return api.GetList[SupportTicket](ctx, s.client, "/admin/support/tickets", api.WithParams(p.params()))
}

// UpdateTicketStatus moves a ticket to status, recording an optional note.
func (s *SupportService) UpdateTicketStatus(ctx context.Context, id, status, note string) (*SupportTicket, error) {
	if err := required("id", id); err != nil {
		return nil, err
	}
	if err := required("status", status); err != nil {
		return nil, err
	}
	var raw json.RawMessage
	err := s.client.Patch(ctx, path("admin", "support", "tickets", id, "status"),
		statusUpdate{Status: status, Note: note}, &raw)
	if err != nil {
		return nil, err
	}
	var t SupportTicket
	if err := unwrapField(raw, "ticket", &t); err != nil {
		return nil, fmt.Errorf("decode ticket: %w", err)
	}
	return &t, nil
}
