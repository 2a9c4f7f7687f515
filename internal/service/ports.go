package service

import (
	"context"

	"github.com/slack-go/slack"

	"github.com/spec-kit/helpdesk-router/internal/domain"
)

// OutboundMessage is a message to post. ThreadTS makes it a threaded reply.
type OutboundMessage struct {
	Channel     string
	Blocks      []slack.Block
	Text        string
	ThreadTS    string
	LinkPreview bool
}

// ChatClient is the subset of the chat platform the router talks to. Every
// call reports platform failures as errors; none of them panic.
type ChatClient interface {
	PostMessage(ctx context.Context, msg OutboundMessage) (domain.MessageRef, error)
	UpdateMessage(ctx context.Context, ref domain.MessageRef, blocks []slack.Block, text string) error
	GetMessageBlocks(ctx context.Context, ref domain.MessageRef) ([]slack.Block, error)
	PostEphemeral(ctx context.Context, channel, userID, text string, blocks ...slack.Block) error
	OpenView(ctx context.Context, triggerID string, view slack.ModalViewRequest) error
	// ResolveUserName degrades to returning userID when the lookup fails.
	ResolveUserName(ctx context.Context, userID string) string
	LookupUserByEmail(ctx context.Context, email string) (string, error)
	ChannelTopic(ctx context.Context, channel string) (string, error)
	AddReaction(ctx context.Context, name string, ref domain.MessageRef) error
	RemoveReaction(ctx context.Context, name string, ref domain.MessageRef) error
}

// PagingClient answers "who is on call right now" for a schedule.
type PagingClient interface {
	CurrentOnCallEmail(ctx context.Context, scheduleID string) (string, error)
}

// IssueTracker mirrors tickets into an issue tracker.
type IssueTracker interface {
	CreateIssue(ctx context.Context, title, body string, labels []string) (domain.Issue, error)
	CommentOnIssue(ctx context.Context, number int, body string) error
	ReplaceLabels(ctx context.Context, number int, labels []string) error
	CloseIssue(ctx context.Context, number int) error
}

// PullRequestSummarizer reports the review state of a linked pull request.
type PullRequestSummarizer interface {
	SummarizePullRequest(ctx context.Context, ref domain.PullRequestRef) (domain.PullRequestStatus, error)
}

// TitleFetcher reads the title of a documentation page.
type TitleFetcher interface {
	FetchTitle(ctx context.Context, url string) (string, error)
}

// Locker serializes mutations of one ticket when enabled.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// Runner executes work after the triggering request has been acknowledged.
type Runner interface {
	Submit(name string, fn func(ctx context.Context)) error
}

// WorkflowClient reports workflow step configuration and execution results.
type WorkflowClient interface {
	SaveWorkflowStep(ctx context.Context, editID string, inputs *slack.WorkflowStepInputs, outputs *[]slack.WorkflowStepOutput) error
	CompleteWorkflowStep(ctx context.Context, executeID string, outputs map[string]string) error
	FailWorkflowStep(ctx context.Context, executeID, message string) error
}
