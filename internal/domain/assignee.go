package domain

// AssigneeSource names the resolution tier that produced an assignee.
type AssigneeSource string

const (
	SourceRoster     AssigneeSource = "roster"
	SourcePaging     AssigneeSource = "paging"
	SourceGroup      AssigneeSource = "group"
	SourceUnassigned AssigneeSource = "unassigned"
)

// Assignee is the mention target a ticket is routed to.
type Assignee struct {
	Mention string
	Source  AssigneeSource
}

// Unassigned reports whether no tier produced a target.
func (a Assignee) Unassigned() bool {
	return a.Mention == ""
}

// Label renders the assignment line, using the team name when nobody is assigned.
func (a Assignee) Label(team Team) string {
	if a.Unassigned() {
		return team.Display
	}
	return a.Mention + " (" + team.Display + ")"
}

// RosterEntry pairs a team with whoever currently covers it.
type RosterEntry struct {
	Team     Team
	Assignee Assignee
}
