package repository

import "errors"

// ErrNotFound is returned when a scan finds no matching row.
var ErrNotFound = errors.New("not found")

// Column headers of each flat table.
var (
	TeamColumns = []string{
		"Id", "Display", "PagerDutySchedule", "SlackGroup", "OnSupportUsers", "GitHub", "GitHubLabel", "Disabled",
	}
	TopicColumns = []string{
		"Id", "Topic", "Teams", "Sort", "Disabled",
	}
	AutoAnswerColumns = []string{
		"Link", "Title", "TopicId", "TeamId", "Keywords", "AdditionalContextText",
	}
	ResponseColumns = []string{
		"TicketId", "MessageId", "Channel", "SubmittedBy", "DateTimeUTC", "DateTimeLocal", "Users",
		"Team", "AssignedTeam", "Topic", "Summary", "MessageLink", "GithubIssueId", "AutoAnswered",
		"FirstReplyTimeUTC", "FirstReplyTimeLocal", "ClosedTimeUTC", "ReassignCount",
	}
	AnswerAnalyticsColumns = []string{
		"TicketId", "Helpful", "RecordedAtUTC",
	}
)

// LocalTimeLayout renders timestamps for people reading the ledger.
const LocalTimeLayout = "Monday, January 2, 2006 3:04 PM"

const (
	cellTrue  = "TRUE"
	cellFalse = "FALSE"
)

func boolCell(v bool) string {
	if v {
		return cellTrue
	}
	return cellFalse
}

func isTrue(cell string) bool {
	switch cell {
	case "TRUE", "true", "True", "1", "yes", "YES":
		return true
	}
	return false
}
