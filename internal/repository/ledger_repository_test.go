package repository

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-router/internal/domain"
	"github.com/spec-kit/helpdesk-router/internal/persistence"
)

func newLedger(t *testing.T) (LedgerRepository, *persistence.MemorySheetTable) {
	t.Helper()
	table := persistence.NewMemorySheetTable("Responses", ResponseColumns)
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return NewLedgerRepository(table, loc), table
}

func TestLedgerAppendAndFind(t *testing.T) {
	ledger, table := newLedger(t)
	ctx := context.Background()
	created := time.Date(2024, 3, 4, 15, 30, 0, 0, time.UTC)

	ticket := &domain.Ticket{
		ID:              "tk-1",
		CorrelationID:   domain.NewCorrelationID("1712345678.000100"),
		Channel:         "C1",
		SubmittedBy:     "U9",
		RequestingUsers: []string{"U9", "U10"},
		TeamID:          "FE",
		AssignedTeamID:  "FE",
		TopicID:         "deploy",
		Summary:         "my deploy is stuck",
		GitHubIssue:     42,
		CreatedAt:       created,
	}
	require.NoError(t, ledger.Append(ctx, ticket))
	assert.NotZero(t, ticket.RowRef)

	rows, err := table.Rows(ctx)
	require.NoError(t, err)
	assert.Equal(t, "msgId:1712345678.000100", rows[0].Get("MessageId"))
	assert.Equal(t, "U9, U10", rows[0].Get("Users"))
	assert.Equal(t, "2024-03-04T15:30:00Z", rows[0].Get("DateTimeUTC"))
	assert.Equal(t, "Monday, March 4, 2024 10:30 AM", rows[0].Get("DateTimeLocal"))
	assert.Equal(t, "", rows[0].Get("FirstReplyTimeUTC"))

	byID, err := ledger.FindByTicketID(ctx, "tk-1")
	require.NoError(t, err)
	assert.Equal(t, 42, byID.GitHubIssue)
	assert.Equal(t, []string{"U9", "U10"}, byID.RequestingUsers)
	assert.True(t, created.Equal(byID.CreatedAt))
	assert.Nil(t, byID.FirstReplyAt)

	byCorrelation, err := ledger.FindByCorrelationID(ctx, domain.NewCorrelationID("1712345678.000100"))
	require.NoError(t, err)
	assert.Equal(t, "tk-1", byCorrelation.ID)
}

func TestLedgerCorrelationMatchIsTextual(t *testing.T) {
	ledger, _ := newLedger(t)
	ctx := context.Background()

	ts := "1712345678.000100"
	require.NoError(t, ledger.Append(ctx, &domain.Ticket{ID: "tk-1", CorrelationID: domain.NewCorrelationID(ts)}))

	// The float form loses the trailing zeros and must not match.
	asFloat, err := strconv.ParseFloat(ts, 64)
	require.NoError(t, err)
	_, err = ledger.FindByCorrelationID(ctx, domain.NewCorrelationID(strconv.FormatFloat(asFloat, 'f', -1, 64)))
	assert.ErrorIs(t, err, ErrNotFound)

	found, err := ledger.FindByCorrelationID(ctx, domain.NewCorrelationID(" "+ts))
	require.NoError(t, err)
	assert.Equal(t, "tk-1", found.ID)
}

func TestLedgerFindMissing(t *testing.T) {
	ledger, _ := newLedger(t)
	ctx := context.Background()

	_, err := ledger.FindByTicketID(ctx, "t123")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = ledger.FindByTicketID(ctx, "")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = ledger.FindByCorrelationID(ctx, domain.NewCorrelationID(""))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLedgerSaveRewritesRow(t *testing.T) {
	ledger, _ := newLedger(t)
	ctx := context.Background()

	require.NoError(t, ledger.Append(ctx, &domain.Ticket{ID: "tk-1", TeamID: "FE", AssignedTeamID: "FE", Summary: "keep me"}))
	require.NoError(t, ledger.Append(ctx, &domain.Ticket{ID: "tk-2", TeamID: "BE"}))

	ticket, err := ledger.FindByTicketID(ctx, "tk-1")
	require.NoError(t, err)
	replied := time.Date(2024, 3, 4, 16, 0, 0, 0, time.UTC)
	ticket.AssignedTeamID = "BE"
	ticket.Reassignments = 1
	ticket.FirstReplyAt = &replied
	require.NoError(t, ledger.Save(ctx, ticket))

	reloaded, err := ledger.FindByTicketID(ctx, "tk-1")
	require.NoError(t, err)
	assert.Equal(t, "BE", reloaded.AssignedTeamID)
	assert.Equal(t, 1, reloaded.Reassignments)
	assert.Equal(t, "keep me", reloaded.Summary)
	require.NotNil(t, reloaded.FirstReplyAt)
	assert.True(t, replied.Equal(*reloaded.FirstReplyAt))
	assert.Equal(t, domain.TicketStateReassigned, reloaded.State())

	other, err := ledger.FindByTicketID(ctx, "tk-2")
	require.NoError(t, err)
	assert.Equal(t, "BE", other.TeamID)

	all, err := ledger.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	assert.ErrorIs(t, ledger.Save(ctx, &domain.Ticket{ID: "ghost", RowRef: 500}), ErrNotFound)
}

func TestAnalyticsRecordAnswerFeedback(t *testing.T) {
	table := persistence.NewMemorySheetTable("AnswerAnalytics", AnswerAnalyticsColumns)
	repo := NewAnalyticsRepository(table)
	at := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	require.NoError(t, repo.RecordAnswerFeedback(context.Background(), domain.AnswerFeedback{TicketID: "tk-1", Helpful: true, RecordedAt: at}))

	rows, err := table.Rows(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "tk-1", rows[0].Get("TicketId"))
	assert.Equal(t, "TRUE", rows[0].Get("Helpful"))
	assert.Equal(t, "2024-05-01T08:00:00Z", rows[0].Get("RecordedAtUTC"))
}
