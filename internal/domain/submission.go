package domain

import "strings"

// Submission is a validated support form.
type Submission struct {
	SubmittedBy string
	Users       []string
	TeamID      string
	TopicID     string
	Summary     string
}

// Missing lists the required fields that were left empty.
func (s Submission) Missing() []string {
	var missing []string
	if s.SubmittedBy == "" {
		missing = append(missing, "submitter")
	}
	if s.TeamID == "" {
		missing = append(missing, "team")
	}
	if s.TopicID == "" {
		missing = append(missing, "topic")
	}
	if strings.TrimSpace(s.Summary) == "" {
		missing = append(missing, "summary")
	}
	return missing
}

// Requesters returns the users the ticket is for, defaulting to the submitter.
func (s Submission) Requesters() []string {
	if len(s.Users) > 0 {
		return s.Users
	}
	if s.SubmittedBy == "" {
		return nil
	}
	return []string{s.SubmittedBy}
}
