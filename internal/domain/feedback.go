package domain

import "time"

// AnswerFeedback records whether a suggested answer helped.
type AnswerFeedback struct {
	TicketID   string
	Helpful    bool
	RecordedAt time.Time
}

// Issue is an issue tracker entry linked to a ticket.
type Issue struct {
	Number int
	URL    string
}
