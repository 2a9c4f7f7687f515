package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-router/internal/domain"
)

// TicketDetailResponse provides the ledger view of one ticket.
type TicketDetailResponse struct {
	ID              string             `json:"id"`
	State           domain.TicketState `json:"state"`
	CorrelationID   string             `json:"correlation_id"`
	Channel         string             `json:"channel"`
	MessageLink     string             `json:"message_link,omitempty"`
	SubmittedBy     string             `json:"submitted_by"`
	RequestingUsers []string           `json:"requesting_users"`
	TeamID          string             `json:"team_id"`
	AssignedTeamID  string             `json:"assigned_team_id,omitempty"`
	Reassignments   int                `json:"reassignments"`
	TopicID         string             `json:"topic_id"`
	Summary         string             `json:"summary"`
	IssueNumber     int                `json:"issue_number,omitempty"`
	AutoAnswered    bool               `json:"auto_answered"`
	CreatedAt       time.Time          `json:"created_at"`
	FirstReplyAt    *time.Time         `json:"first_reply_at"`
	ClosedAt        *time.Time         `json:"closed_at"`
}

// TicketDetail maps a ledger ticket to its response.
func TicketDetail(t domain.Ticket) TicketDetailResponse {
	users := t.RequestingUsers
	if users == nil {
		users = []string{}
	}
	return TicketDetailResponse{
		ID:              t.ID,
		State:           t.State(),
		CorrelationID:   t.CorrelationID.String(),
		Channel:         t.Channel,
		MessageLink:     t.MessageLink,
		SubmittedBy:     t.SubmittedBy,
		RequestingUsers: users,
		TeamID:          t.TeamID,
		AssignedTeamID:  t.AssignedTeamID,
		Reassignments:   t.Reassignments,
		TopicID:         t.TopicID,
		Summary:         t.Summary,
		IssueNumber:     t.GitHubIssue,
		AutoAnswered:    t.AutoAnswered,
		CreatedAt:       t.CreatedAt,
		FirstReplyAt:    t.FirstReplyAt,
		ClosedAt:        t.ClosedAt,
	}
}
