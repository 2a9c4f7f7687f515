package dto

import "github.com/spec-kit/helpdesk-router/internal/domain"

// OnCallResponse reports who covers a team right now.
type OnCallResponse struct {
	TeamID         string                `json:"team_id"`
	Team           string                `json:"team"`
	Mention        string                `json:"mention,omitempty"`
	Source         domain.AssigneeSource `json:"source"`
	OnSupportUsers []string              `json:"on_support_users"`
}

// OnCall maps a roster entry to its response.
func OnCall(e domain.RosterEntry) OnCallResponse {
	users := e.Team.OnSupportUsers
	if users == nil {
		users = []string{}
	}
	return OnCallResponse{
		TeamID:         e.Team.ID,
		Team:           e.Team.Display,
		Mention:        e.Assignee.Mention,
		Source:         e.Assignee.Source,
		OnSupportUsers: users,
	}
}

// RefreshResponse is returned after a directory reload.
type RefreshResponse struct {
	Teams       int `json:"teams"`
	Topics      int `json:"topics"`
	AutoAnswers int `json:"auto_answers"`
}
