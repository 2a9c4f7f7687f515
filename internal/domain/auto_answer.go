package domain

import "strings"

// AutoAnswer is a documentation link suggested for a topic.
type AutoAnswer struct {
	Link              string
	Title             string
	TopicID           string
	TeamID            string
	Keywords          []string
	AdditionalContext string
}

// MatchesSummary reports whether any keyword appears in summary, ignoring case.
func (a AutoAnswer) MatchesSummary(summary string) bool {
	text := strings.ToLower(summary)
	for _, kw := range a.Keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// DisplayTitle falls back to the link when no title is known.
func (a AutoAnswer) DisplayTitle() string {
	if strings.TrimSpace(a.Title) != "" {
		return a.Title
	}
	return a.Link
}
