package repository

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/spec-kit/helpdesk-router/internal/domain"
	"github.com/spec-kit/helpdesk-router/internal/persistence"
)

// LedgerRepository stores one row per ticket. Finds are full scans and Save
// writes the whole row back; concurrent saves of the same ticket are
// last-write-wins.
type LedgerRepository interface {
	Append(ctx context.Context, ticket *domain.Ticket) error
	FindByTicketID(ctx context.Context, ticketID string) (*domain.Ticket, error)
	FindByCorrelationID(ctx context.Context, id domain.CorrelationID) (*domain.Ticket, error)
	Save(ctx context.Context, ticket *domain.Ticket) error
	List(ctx context.Context) ([]domain.Ticket, error)
}

type ledgerRepository struct {
	table persistence.SheetTable
	loc   *time.Location
}

// NewLedgerRepository builds a ledger over table. loc formats the
// human-readable time columns.
func NewLedgerRepository(table persistence.SheetTable, loc *time.Location) LedgerRepository {
	if loc == nil {
		loc = time.UTC
	}
	return &ledgerRepository{table: table, loc: loc}
}

func (r *ledgerRepository) Append(ctx context.Context, ticket *domain.Ticket) error {
	row, err := r.table.Append(ctx, r.toValues(ticket))
	if err != nil {
		return err
	}
	ticket.RowRef = row.Number
	return nil
}

func (r *ledgerRepository) FindByTicketID(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	if ticketID == "" {
		return nil, ErrNotFound
	}
	return r.find(ctx, func(row persistence.Row) bool {
		return row.Get("TicketId") == ticketID
	})
}

// FindByCorrelationID compares the stored text with the textual id; no
// numeric parsing is involved.
func (r *ledgerRepository) FindByCorrelationID(ctx context.Context, id domain.CorrelationID) (*domain.Ticket, error) {
	if id.IsZero() {
		return nil, ErrNotFound
	}
	return r.find(ctx, func(row persistence.Row) bool {
		return row.Get("MessageId") == id.String()
	})
}

func (r *ledgerRepository) Save(ctx context.Context, ticket *domain.Ticket) error {
	err := r.table.Save(ctx, persistence.Row{Number: ticket.RowRef, Values: r.toValues(ticket)})
	if errors.Is(err, persistence.ErrRowNotFound) {
		return ErrNotFound
	}
	return err
}

func (r *ledgerRepository) List(ctx context.Context) ([]domain.Ticket, error) {
	rows, err := r.table.Rows(ctx)
	if err != nil {
		return nil, err
	}
	tickets := make([]domain.Ticket, 0, len(rows))
	for _, row := range rows {
		if row.Get("TicketId") == "" {
			continue
		}
		tickets = append(tickets, fromLedgerRow(row))
	}
	return tickets, nil
}

func (r *ledgerRepository) find(ctx context.Context, match func(persistence.Row) bool) (*domain.Ticket, error) {
	rows, err := r.table.Rows(ctx)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if match(row) {
			ticket := fromLedgerRow(row)
			return &ticket, nil
		}
	}
	return nil, ErrNotFound
}

func (r *ledgerRepository) toValues(t *domain.Ticket) map[string]string {
	values := map[string]string{
		"TicketId":     t.ID,
		"MessageId":    t.CorrelationID.String(),
		"Channel":      t.Channel,
		"SubmittedBy":  t.SubmittedBy,
		"Users":        strings.Join(t.RequestingUsers, ", "),
		"Team":         t.TeamID,
		"AssignedTeam": t.AssignedTeamID,
		"Topic":        t.TopicID,
		"Summary":      t.Summary,
		"MessageLink":  t.MessageLink,
		"AutoAnswered": boolCell(t.AutoAnswered),
	}
	if !t.CreatedAt.IsZero() {
		values["DateTimeUTC"] = t.CreatedAt.UTC().Format(time.RFC3339)
		values["DateTimeLocal"] = t.CreatedAt.In(r.loc).Format(LocalTimeLayout)
	}
	if t.GitHubIssue > 0 {
		values["GithubIssueId"] = strconv.Itoa(t.GitHubIssue)
	}
	if t.FirstReplyAt != nil {
		values["FirstReplyTimeUTC"] = t.FirstReplyAt.UTC().Format(time.RFC3339)
		values["FirstReplyTimeLocal"] = t.FirstReplyAt.In(r.loc).Format(LocalTimeLayout)
	}
	if t.ClosedAt != nil {
		values["ClosedTimeUTC"] = t.ClosedAt.UTC().Format(time.RFC3339)
	}
	if t.Reassignments > 0 {
		values["ReassignCount"] = strconv.Itoa(t.Reassignments)
	}
	return values
}

func fromLedgerRow(row persistence.Row) domain.Ticket {
	t := domain.Ticket{
		ID:              row.Get("TicketId"),
		CorrelationID:   domain.CorrelationID(row.Get("MessageId")),
		Channel:         row.Get("Channel"),
		SubmittedBy:     row.Get("SubmittedBy"),
		RequestingUsers: domain.SplitList(row.Get("Users")),
		TeamID:          row.Get("Team"),
		AssignedTeamID:  row.Get("AssignedTeam"),
		TopicID:         row.Get("Topic"),
		Summary:         row.Get("Summary"),
		MessageLink:     row.Get("MessageLink"),
		AutoAnswered:    isTrue(row.Get("AutoAnswered")),
		RowRef:          row.Number,
	}
	if n, err := strconv.Atoi(strings.TrimSpace(row.Get("GithubIssueId"))); err == nil {
		t.GitHubIssue = n
	}
	if n, err := strconv.Atoi(strings.TrimSpace(row.Get("ReassignCount"))); err == nil && n > 0 {
		t.Reassignments = n
	}
	if ts, ok := parseTime(row.Get("DateTimeUTC")); ok {
		t.CreatedAt = ts
	}
	if ts, ok := parseTime(row.Get("FirstReplyTimeUTC")); ok {
		t.FirstReplyAt = &ts
	}
	if ts, ok := parseTime(row.Get("ClosedTimeUTC")); ok {
		t.ClosedAt = &ts
	}
	return t
}

func parseTime(cell string) (time.Time, bool) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339, cell)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}
