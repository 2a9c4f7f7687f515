package domain

import (
	"fmt"
	"strings"
)

// Team is a support team as listed in the directory.
type Team struct {
	ID                string
	Display           string
	PagerDutySchedule string
	// SlackGroup is a ready-to-post mention such as "<!subteam^S123>".
	SlackGroup     string
	OnSupportUsers []string
	GitHubEnabled  bool
	GitHubLabel    string
	Disabled       bool
}

// HasRoster reports whether someone was explicitly put on support.
func (t Team) HasRoster() bool {
	return len(t.OnSupportUsers) > 0
}

// RosterMention renders the on-support users as "<@U1>, <@U2>".
func (t Team) RosterMention() string {
	mentions := make([]string, 0, len(t.OnSupportUsers))
	for _, id := range t.OnSupportUsers {
		mentions = append(mentions, UserMention(id))
	}
	return strings.Join(mentions, ", ")
}

// UserMention formats a chat user id as a mention.
func UserMention(userID string) string {
	return fmt.Sprintf("<@%s>", userID)
}

// SplitList parses a comma separated cell, dropping blanks.
func SplitList(cell string) []string {
	if strings.TrimSpace(cell) == "" {
		return nil
	}
	parts := strings.Split(cell, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
