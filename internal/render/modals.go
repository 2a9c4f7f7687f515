package render

import (
	"fmt"
	"strings"

	"github.com/slack-go/slack"

	"github.com/spec-kit/helpdesk-router/internal/domain"
)

// View callback ids.
const (
	SupportModalCallback  = "support_modal_view"
	ReassignModalCallback = "reassign_modal_view"
	OnCallModalCallback   = "oncall_modal_view"
)

// Input block and action ids used inside the modals.
const (
	InputTeam       = "team_block"
	InputTopic      = "topic_block"
	InputSummary    = "summary_block"
	InputUsers      = "users_block"
	InputHelpUser   = "help_user_block"
	ElementTeam     = "team_select"
	ElementTopic    = "topic_select"
	ElementSummary  = "summary_input"
	ElementUsers    = "users_select"
	ElementHelpUser = "help_user_select"
)

// SupportModal is the support request form.
func SupportModal(teams []domain.Team, topics []domain.Topic, submitterID string) slack.ModalViewRequest {
	teamOptions := make([]*slack.OptionBlockObject, 0, len(teams))
	for _, t := range teams {
		teamOptions = append(teamOptions, slack.NewOptionBlockObject(t.ID, plain(t.Display), nil))
	}
	topicOptions := make([]*slack.OptionBlockObject, 0, len(topics))
	for _, t := range topics {
		topicOptions = append(topicOptions, slack.NewOptionBlockObject(t.ID, plain(t.Name), nil))
	}

	summary := slack.NewPlainTextInputBlockElement(plain("What do you need help with?"), ElementSummary)
	summary.Multiline = true

	users := slack.NewOptionsMultiSelectBlockElement(slack.MultiOptTypeUser, plain("Who needs help?"), ElementUsers)
	if submitterID != "" {
		users.WithInitialUsers(submitterID)
	}

	blocks := slack.Blocks{BlockSet: []slack.Block{
		slack.NewInputBlock(InputTeam, plain("Team"), nil,
			slack.NewOptionsSelectBlockElement(slack.OptTypeStatic, plain("Select a team"), ElementTeam, teamOptions...)),
		slack.NewInputBlock(InputTopic, plain("Request Type"), nil,
			slack.NewOptionsSelectBlockElement(slack.OptTypeStatic, plain("Select a topic"), ElementTopic, topicOptions...)),
		slack.NewInputBlock(InputSummary, plain("Summary"), nil, summary),
		slack.NewInputBlock(InputUsers, plain("Users requesting support"), nil, users).WithOptional(true),
	}}

	return slack.ModalViewRequest{
		Type:       slack.VTModal,
		CallbackID: SupportModalCallback,
		Title:      plain("Support Request"),
		Submit:     plain("Submit"),
		Close:      plain("Cancel"),
		Blocks:     blocks,
	}
}

// ParseSupportSubmission reads the support form state.
func ParseSupportSubmission(state *slack.ViewState, submitterID string) domain.Submission {
	return domain.Submission{
		SubmittedBy: submitterID,
		TeamID:      selectedOption(state, InputTeam, ElementTeam),
		TopicID:     selectedOption(state, InputTopic, ElementTopic),
		Summary:     strings.TrimSpace(inputValue(state, InputSummary, ElementSummary)),
		Users:       selectedUsers(state, InputUsers, ElementUsers),
	}
}

// ReassignModal asks for the new team of ticketID.
func ReassignModal(ticketID string, teams []domain.Team) slack.ModalViewRequest {
	options := make([]*slack.OptionBlockObject, 0, len(teams))
	for _, t := range teams {
		options = append(options, slack.NewOptionBlockObject(t.ID, plain(t.Display), nil))
	}
	return slack.ModalViewRequest{
		Type:            slack.VTModal,
		CallbackID:      ReassignModalCallback,
		PrivateMetadata: ticketID,
		Title:           plain("Reassign Ticket"),
		Submit:          plain("Reassign"),
		Close:           plain("Cancel"),
		Blocks: slack.Blocks{BlockSet: []slack.Block{
			slack.NewInputBlock(InputTeam, plain("New team"), nil,
				slack.NewOptionsSelectBlockElement(slack.OptTypeStatic, plain("Select a team"), ElementTeam, options...)),
		}},
	}
}

// ParseReassignSubmission returns the ticket id and the chosen team id.
func ParseReassignSubmission(view slack.View) (string, string) {
	return view.PrivateMetadata, selectedOption(view.State, InputTeam, ElementTeam)
}

// OnCallModal lists each team's current assignee and lets the user change a roster.
func OnCallModal(entries []domain.RosterEntry, channelTopic string) slack.ModalViewRequest {
	lines := make([]string, 0, len(entries))
	options := make([]*slack.OptionBlockObject, 0, len(entries))
	for _, e := range entries {
		who := e.Assignee.Mention
		if e.Assignee.Unassigned() {
			who = "_nobody assigned_"
		}
		lines = append(lines, fmt.Sprintf("*%s*: %s", e.Team.Display, who))
		options = append(options, slack.NewOptionBlockObject(e.Team.ID, plain(e.Team.Display), nil))
	}
	if len(lines) == 0 {
		lines = append(lines, "_No teams configured._")
	}

	blocks := []slack.Block{
		slack.NewSectionBlock(markdown(strings.Join(lines, "\n")), nil, nil),
	}
	if strings.TrimSpace(channelTopic) != "" {
		blocks = append(blocks, slack.NewContextBlock("", markdown("Channel topic: "+channelTopic)))
	}
	blocks = append(blocks,
		slack.NewDividerBlock(),
		slack.NewInputBlock(InputTeam, plain("Team"), nil,
			slack.NewOptionsSelectBlockElement(slack.OptTypeStatic, plain("Select a team"), ElementTeam, options...)),
		slack.NewInputBlock(InputUsers, plain("On support"), nil,
			slack.NewOptionsMultiSelectBlockElement(slack.MultiOptTypeUser, plain("Select users"), ElementUsers)).WithOptional(true),
	)

	return slack.ModalViewRequest{
		Type:       slack.VTModal,
		CallbackID: OnCallModalCallback,
		Title:      plain("Who is on-call?"),
		Submit:     plain("Update"),
		Close:      plain("Close"),
		Blocks:     slack.Blocks{BlockSet: blocks},
	}
}

// ParseOnCallSubmission returns the team id and the new roster.
func ParseOnCallSubmission(state *slack.ViewState) (string, []string) {
	return selectedOption(state, InputTeam, ElementTeam), selectedUsers(state, InputUsers, ElementUsers)
}

// HelpStepConfigModal configures the help workflow step.
func HelpStepConfigModal(initialUser string) *slack.ConfigurationModalRequest {
	sel := slack.NewOptionsSelectBlockElement(slack.OptTypeUser, plain("Select a user"), ElementHelpUser)
	if initialUser != "" {
		sel.InitialUser = initialUser
	}
	blocks := slack.Blocks{BlockSet: []slack.Block{
		slack.NewInputBlock(InputHelpUser, plain("Send help to"), nil, sel),
	}}
	return slack.NewConfigurationModalRequest(blocks, "", "")
}

// ParseHelpStepConfig returns the configured user.
func ParseHelpStepConfig(state *slack.ViewState) string {
	if state == nil {
		return ""
	}
	return state.Values[InputHelpUser][ElementHelpUser].SelectedUser
}

func selectedOption(state *slack.ViewState, blockID, actionID string) string {
	if state == nil {
		return ""
	}
	return state.Values[blockID][actionID].SelectedOption.Value
}

func selectedUsers(state *slack.ViewState, blockID, actionID string) []string {
	if state == nil {
		return nil
	}
	return state.Values[blockID][actionID].SelectedUsers
}

func inputValue(state *slack.ViewState, blockID, actionID string) string {
	if state == nil {
		return ""
	}
	return state.Values[blockID][actionID].Value
}
