package domain

import "time"

// TicketState is derived from the ledger row; it is never stored directly.
type TicketState string

const (
	TicketStateCreated      TicketState = "CREATED"
	TicketStateAutoAnswered TicketState = "AUTO_ANSWERED"
	TicketStateReassigned   TicketState = "REASSIGNED"
	TicketStateClosed       TicketState = "CLOSED"
)

// Ticket is one support request as recorded in the ledger.
type Ticket struct {
	ID              string
	CorrelationID   CorrelationID
	Channel         string
	SubmittedBy     string
	RequestingUsers []string
	TeamID          string
	AssignedTeamID  string
	TopicID         string
	Summary         string
	MessageLink     string
	GitHubIssue     int
	CreatedAt       time.Time
	FirstReplyAt    *time.Time
	ClosedAt        *time.Time
	AutoAnswered    bool
	Reassignments   int

	// RowRef addresses the backing ledger row; zero for unsaved tickets.
	RowRef int
}

// State reports the lifecycle position of the ticket.
func (t Ticket) State() TicketState {
	switch {
	case t.ClosedAt != nil:
		return TicketStateClosed
	case t.Reassignments > 0:
		return TicketStateReassigned
	case t.AutoAnswered:
		return TicketStateAutoAnswered
	default:
		return TicketStateCreated
	}
}

// CurrentTeamID is the team the ticket is routed to now.
func (t Ticket) CurrentTeamID() string {
	if t.AssignedTeamID != "" {
		return t.AssignedTeamID
	}
	return t.TeamID
}

// Message returns the posted ticket message.
func (t Ticket) Message() MessageRef {
	return MessageRef{Channel: t.Channel, TS: t.CorrelationID.MessageTS()}
}

// HasIssue reports whether an issue tracker entry is linked.
func (t Ticket) HasIssue() bool {
	return t.GitHubIssue > 0
}
