package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCorrelationIDKeepsTimestampText(t *testing.T) {
	id := NewCorrelationID(" 1712345678.000100 ")

	assert.Equal(t, "msgId:1712345678.000100", id.String())
	assert.Equal(t, "1712345678.000100", id.MessageTS())
	assert.False(t, id.IsZero())
	assert.NotEqual(t, NewCorrelationID("1712345678.0001"), id)
}

func TestCorrelationIDZero(t *testing.T) {
	assert.True(t, NewCorrelationID("").IsZero())
	assert.True(t, CorrelationID("").IsZero())
}

func TestTicketMessageRoundTrip(t *testing.T) {
	ticket := Ticket{Channel: "C1", CorrelationID: NewCorrelationID("1712345678.000100")}

	assert.Equal(t, MessageRef{Channel: "C1", TS: "1712345678.000100"}, ticket.Message())
	assert.Equal(t, ticket.CorrelationID, NewCorrelationID(ticket.Message().TS))
}

func TestTicketState(t *testing.T) {
	closed := time.Date(2024, 4, 5, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		name   string
		ticket Ticket
		want   TicketState
	}{
		{name: "created", ticket: Ticket{TeamID: "FE", AssignedTeamID: "FE"}, want: TicketStateCreated},
		{name: "auto answered", ticket: Ticket{TeamID: "FE", AutoAnswered: true}, want: TicketStateAutoAnswered},
		{name: "reassigned", ticket: Ticket{TeamID: "FE", AssignedTeamID: "BE", Reassignments: 1, AutoAnswered: true}, want: TicketStateReassigned},
		{name: "reassigned back", ticket: Ticket{TeamID: "FE", AssignedTeamID: "FE", Reassignments: 2}, want: TicketStateReassigned},
		{name: "closed", ticket: Ticket{TeamID: "FE", Reassignments: 1, ClosedAt: &closed}, want: TicketStateClosed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.ticket.State())
		})
	}
}
