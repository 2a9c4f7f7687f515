// Package render builds the Block Kit payloads posted by the router.
package render

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/slack-go/slack"

	"github.com/spec-kit/helpdesk-router/internal/domain"
)

// Action and block identifiers shared with the interaction handlers.
const (
	ActionReassign        = "reassign_ticket"
	ActionClose           = "close_ticket"
	ActionAutoAnswerYes   = "auto_answer_yes"
	ActionAutoAnswerNo    = "auto_answer_no"
	ActionPlatformSupport = "platform_support"

	BlockRequest    = "request"
	BlockTopic      = "topic"
	BlockIssue      = "issue"
	BlockAssignment = "assignment"
	BlockClose      = "close"
	BlockClosed     = "closed"
)

// TicketView carries what the ticket message shows.
type TicketView struct {
	Ticket   domain.Ticket
	Team     domain.Team
	Topic    domain.Topic
	Assignee domain.Assignee
	Issue    *domain.Issue
}

// AnswerFeedbackValue is the button payload of the yes/no feedback buttons.
type AnswerFeedbackValue struct {
	Value    string `json:"value"`
	TicketID string `json:"ticketId"`
}

// TicketMessage renders the tracked ticket message and its fallback text.
func TicketMessage(v TicketView) ([]slack.Block, string) {
	requesters := make([]string, 0, len(v.Ticket.RequestingUsers))
	for _, u := range v.Ticket.RequestingUsers {
		requesters = append(requesters, domain.UserMention(u))
	}

	blocks := []slack.Block{
		slack.NewSectionBlock(
			markdown(fmt.Sprintf("From %s: %s", strings.Join(requesters, ", "), v.Ticket.Summary)),
			nil, nil, slack.SectionBlockOptionBlockID(BlockRequest),
		),
		slack.NewSectionBlock(
			markdown(fmt.Sprintf("Request Type: %s", v.Topic.Name)),
			nil, nil, slack.SectionBlockOptionBlockID(BlockTopic),
		),
	}
	if v.Issue != nil && v.Issue.URL != "" {
		blocks = append(blocks, slack.NewSectionBlock(
			markdown(fmt.Sprintf("GitHub issue: <%s|#%d>", v.Issue.URL, v.Issue.Number)),
			nil, nil, slack.SectionBlockOptionBlockID(BlockIssue),
		))
	}
	blocks = append(blocks,
		AssignmentBlock(v.Ticket.ID, v.Assignee, v.Team),
		slack.NewActionBlock(BlockClose,
			slack.NewButtonBlockElement(ActionClose, v.Ticket.ID, plain("Close Ticket")).WithStyle(slack.StylePrimary),
		),
	)

	text := fmt.Sprintf("New support request for %s: %s", v.Team.Display, v.Ticket.Summary)
	return blocks, text
}

// AssignmentBlock renders the assignment line with its Reassign button.
func AssignmentBlock(ticketID string, assignee domain.Assignee, team domain.Team) *slack.SectionBlock {
	var line string
	if assignee.Unassigned() {
		line = fmt.Sprintf("*Assigned to: %s*", team.Display)
	} else {
		line = fmt.Sprintf("*Assigned to: %s* (%s)", assignee.Mention, team.Display)
	}
	button := slack.NewButtonBlockElement(ActionReassign, ticketID, plain("Reassign"))
	return slack.NewSectionBlock(markdown(line), nil, slack.NewAccessory(button), slack.SectionBlockOptionBlockID(BlockAssignment))
}

// ReplaceAssignment swaps only the assignment block; all other blocks are
// returned as they were. When no assignment block exists the new one is
// placed before the close controls.
func ReplaceAssignment(blocks []slack.Block, ticketID string, assignee domain.Assignee, team domain.Team) []slack.Block {
	replacement := AssignmentBlock(ticketID, assignee, team)
	out := make([]slack.Block, 0, len(blocks)+1)
	replaced := false
	for _, b := range blocks {
		if BlockID(b) == BlockAssignment {
			out = append(out, replacement)
			replaced = true
			continue
		}
		out = append(out, b)
	}
	if replaced {
		return out
	}
	for i, b := range out {
		if BlockID(b) == BlockClose {
			return append(out[:i], append([]slack.Block{replacement}, out[i:]...)...)
		}
	}
	return append(out, replacement)
}

// MarkClosed removes the last interactive control and stamps who closed the ticket.
func MarkClosed(blocks []slack.Block, actorID string, at time.Time) []slack.Block {
	out := make([]slack.Block, 0, len(blocks)+1)
	last := -1
	for i, b := range blocks {
		if b.BlockType() == slack.MBTAction {
			last = i
		}
	}
	for i, b := range blocks {
		if i == last || BlockID(b) == BlockClosed {
			continue
		}
		out = append(out, b)
	}
	stamp := fmt.Sprintf("Closed by %s on <!date^%d^{date_short_pretty} at {time}|%s>",
		domain.UserMention(actorID), at.Unix(), at.UTC().Format(time.RFC1123))
	return append(out, slack.NewContextBlock(BlockClosed, markdown(stamp)))
}

// BlockID returns the block_id of the block kinds the router produces.
func BlockID(b slack.Block) string {
	switch v := b.(type) {
	case *slack.SectionBlock:
		return v.BlockID
	case *slack.ActionBlock:
		return v.BlockID
	case *slack.ContextBlock:
		return v.BlockID
	case *slack.HeaderBlock:
		return v.BlockID
	case *slack.InputBlock:
		return v.BlockID
	}
	return ""
}

// ReassignNote is the audit note posted in the ticket thread.
func ReassignNote(actorID string, from domain.Team, to domain.Team, assignee domain.Assignee) string {
	return fmt.Sprintf("%s reassigned this ticket from %s to %s.",
		domain.UserMention(actorID), from.Display, assignee.Label(to))
}

// AutoAnswerMessage renders one suggested answer with feedback buttons.
func AutoAnswerMessage(ticketID string, answer domain.AutoAnswer) ([]slack.Block, string) {
	yes, _ := json.Marshal(AnswerFeedbackValue{Value: "yes", TicketID: ticketID})
	no, _ := json.Marshal(AnswerFeedbackValue{Value: "no", TicketID: ticketID})

	title := answer.DisplayTitle()
	blocks := []slack.Block{
		slack.NewSectionBlock(
			markdown(fmt.Sprintf("While you wait, this might help: <%s|%s>", answer.Link, title)),
			nil, nil,
		),
		slack.NewSectionBlock(markdown("Did this answer your question?"), nil, nil),
		slack.NewActionBlock("auto_answer",
			slack.NewButtonBlockElement(ActionAutoAnswerYes, string(yes), plain("Yes")),
			slack.NewButtonBlockElement(ActionAutoAnswerNo, string(no), plain("No")),
		),
	}
	return blocks, "Suggested answer: " + title
}

// AdditionalContextMessage renders extra guidance attached to an answer.
func AdditionalContextMessage(text string) ([]slack.Block, string) {
	return []slack.Block{slack.NewSectionBlock(markdown(text), nil, nil)}, text
}

// FeedbackThanks acknowledges an auto-answer vote.
func FeedbackThanks(helpful bool) string {
	if helpful {
		return "Glad it helped! Feel free to close the ticket if you are all set."
	}
	return "Thanks for the feedback, someone from the team will follow up."
}

// SurveyMessage is posted in the thread when a ticket closes.
func SurveyMessage(actorID, surveyURL string) ([]slack.Block, string) {
	text := fmt.Sprintf("This ticket was closed by %s.", domain.UserMention(actorID))
	blocks := []slack.Block{slack.NewSectionBlock(markdown(text), nil, nil)}
	if surveyURL != "" {
		blocks = append(blocks, slack.NewSectionBlock(
			markdown(fmt.Sprintf("How did we do? Please take a minute to fill out our <%s|support survey>.", surveyURL)),
			nil, nil,
		))
	}
	return blocks, text
}

// HelpMessage explains how to ask for help and offers the support form.
func HelpMessage() ([]slack.Block, string) {
	text := "Need help from a platform team? Use `/support` or the button below to open a support request."
	blocks := []slack.Block{
		slack.NewSectionBlock(markdown(":wave: "+text), nil, nil),
		slack.NewSectionBlock(markdown("Use `/oncall` to see who is on support for each team."), nil, nil),
		slack.NewActionBlock("help",
			slack.NewButtonBlockElement(ActionPlatformSupport, "support", plain("Support Request")).WithStyle(slack.StylePrimary),
		),
	}
	return blocks, text
}

// Greeting answers a plain "hello".
func Greeting(userID string) string {
	return fmt.Sprintf("Hey there %s! Type `/help` to see what I can do.", domain.UserMention(userID))
}

// OnSupportAnnouncement tells the support channel who now covers a team.
func OnSupportAnnouncement(actorID string, team domain.Team, userIDs []string) string {
	if len(userIDs) == 0 {
		return fmt.Sprintf("%s cleared the on-support roster for %s.", domain.UserMention(actorID), team.Display)
	}
	mentions := make([]string, 0, len(userIDs))
	for _, u := range userIDs {
		mentions = append(mentions, domain.UserMention(u))
	}
	return fmt.Sprintf("%s is now on support for %s (set by %s).",
		strings.Join(mentions, ", "), team.Display, domain.UserMention(actorID))
}

// IssueTitle and IssueBody describe a ticket in the issue tracker.
func IssueTitle(topic domain.Topic, summary string) string {
	const max = 80
	s := []rune(strings.Join(strings.Fields(summary), " "))
	if len(s) > max {
		return fmt.Sprintf("[Support] %s: %s...", topic.Name, string(s[:max]))
	}
	return fmt.Sprintf("[Support] %s: %s", topic.Name, string(s))
}

func IssueBody(submitter string, ticketID string, team domain.Team, topic domain.Topic, summary string) string {
	return fmt.Sprintf("**Submitted by:** %s\n**Ticket:** %s\n**Team:** %s\n**Topic:** %s\n\n%s",
		submitter, ticketID, team.Display, topic.Name, summary)
}

// PullRequestUnavailable replaces the status line when GitHub cannot be read.
const PullRequestUnavailable = ":warning: Could not fetch PR status at this time."

// PullRequestStatus renders the one-line review summary posted in a ticket thread.
func PullRequestStatus(st domain.PullRequestStatus) string {
	checks := ":white_check_mark: All required checks passed"
	if len(st.FailedChecks) > 0 {
		checks = ":x: Failed checks: " + strings.Join(st.FailedChecks, ", ")
	}
	owner := ":clock4: No code-owner reviewer yet"
	if st.OwnerReviewRequested {
		owner = ":bell: Code-owner review *requested*"
	}
	approvals := ":hourglass_flowing_sand: No non-owner approvals"
	if len(st.NonOwnerApprovals) > 0 {
		approvals = ":+1: Approved by: " + strings.Join(st.NonOwnerApprovals, ", ")
	}
	link := fmt.Sprintf("<%s|View PR #%d>", st.URL, st.Ref.Number)
	return strings.Join([]string{checks, owner, approvals, link}, "   •  ")
}

func markdown(text string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.MarkdownType, text, false, false)
}

func plain(text string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.PlainTextType, text, true, false)
}
