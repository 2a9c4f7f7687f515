package events

import "time"

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated      EventType = "ticket_created"
	EventTicketAutoAnswered EventType = "ticket_auto_answered"
	EventTicketReassigned   EventType = "ticket_reassigned"
	EventTicketClosed       EventType = "ticket_closed"
	EventTicketFirstReply   EventType = "ticket_first_reply"
	EventRosterUpdated      EventType = "roster_updated"
	EventAnswerFeedback     EventType = "answer_feedback"
)

// Actor is the chat user behind an event. Empty for system actions.
type Actor struct {
	UserID string `json:"user_id,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id,omitempty"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	TeamID         string `json:"team_id"`
	TopicID        string `json:"topic_id"`
	CorrelationID  string `json:"correlation_id"`
	AssigneeSource string `json:"assignee_source"`
	IssueNumber    int    `json:"issue_number,omitempty"`
}

// TicketAutoAnsweredPayload payload.
type TicketAutoAnsweredPayload struct {
	Tier    string   `json:"tier"`
	Links   []string `json:"links"`
	Skipped int      `json:"skipped,omitempty"`
}

// TicketReassignedPayload payload.
type TicketReassignedPayload struct {
	FromTeamID     string `json:"from_team_id"`
	ToTeamID       string `json:"to_team_id"`
	ToTeamLabel    string `json:"to_team_label"`
	Assignee       string `json:"assignee,omitempty"`
	AssigneeSource string `json:"assignee_source"`
	IssueNumber    int    `json:"issue_number,omitempty"`
	Note           string `json:"note"`
}

// TicketClosedPayload payload.
type TicketClosedPayload struct {
	TeamID      string `json:"team_id"`
	IssueNumber int    `json:"issue_number,omitempty"`
}

// TicketFirstReplyPayload payload.
type TicketFirstReplyPayload struct {
	CorrelationID string        `json:"correlation_id"`
	Elapsed       time.Duration `json:"elapsed"`
}

// RosterUpdatedPayload payload.
type RosterUpdatedPayload struct {
	TeamID  string   `json:"team_id"`
	UserIDs []string `json:"user_ids"`
}

// AnswerFeedbackPayload payload.
type AnswerFeedbackPayload struct {
	Helpful bool `json:"helpful"`
}
