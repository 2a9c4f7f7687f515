package domain

// Topic is a request type offered on the support form.
type Topic struct {
	ID       string
	Name     string
	TeamIDs  []string
	Sort     int
	Disabled bool
}

// BelongsTo reports whether teamID owns the topic.
func (t Topic) BelongsTo(teamID string) bool {
	for _, id := range t.TeamIDs {
		if id == teamID {
			return true
		}
	}
	return false
}
