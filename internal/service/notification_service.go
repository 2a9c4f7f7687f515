package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-router/internal/events"
	"github.com/spec-kit/helpdesk-router/internal/observability"
)

// NotificationService reacts to domain events: it mirrors reassignments
// into the issue tracker and logs the rest.
type NotificationService struct {
	dispatcher   events.Dispatcher
	issues       IssueTracker
	logger       *zap.Logger
	supportLabel string
}

// NewNotificationService creates the service. issues may be nil.
func NewNotificationService(dispatcher events.Dispatcher, issues IssueTracker, logger *zap.Logger, supportLabel string) *NotificationService {
	return &NotificationService{
		dispatcher:   dispatcher,
		issues:       issues,
		logger:       logger,
		supportLabel: supportLabel,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.logEvent)
	n.dispatcher.Subscribe(events.EventTicketAutoAnswered, n.logEvent)
	n.dispatcher.Subscribe(events.EventTicketReassigned, n.handleTicketReassigned)
	n.dispatcher.Subscribe(events.EventTicketClosed, n.logEvent)
	n.dispatcher.Subscribe(events.EventTicketFirstReply, n.logEvent)
	n.dispatcher.Subscribe(events.EventRosterUpdated, n.logEvent)
	n.dispatcher.Subscribe(events.EventAnswerFeedback, n.logEvent)
}

func (n *NotificationService) logEvent(_ context.Context, event events.Event) error {
	n.logger.Info(string(event.Type),
		observability.TicketID(event.TicketID),
		zap.String("actor", event.Actor.UserID),
		zap.Any("payload", event.Payload))
	return nil
}

// handleTicketReassigned relabels the linked issue and leaves the audit
// note as a comment.
func (n *NotificationService) handleTicketReassigned(ctx context.Context, event events.Event) error {
	_ = n.logEvent(ctx, event)

	payload, ok := event.Payload.(events.TicketReassignedPayload)
	if !ok || payload.IssueNumber <= 0 || n.issues == nil {
		return nil
	}
	if err := n.issues.ReplaceLabels(ctx, payload.IssueNumber, issueLabels(n.supportLabel, payload.ToTeamLabel)); err != nil {
		return fmt.Errorf("relabel issue %d: %w", payload.IssueNumber, err)
	}
	if err := n.issues.CommentOnIssue(ctx, payload.IssueNumber, payload.Note); err != nil {
		return fmt.Errorf("comment on issue %d: %w", payload.IssueNumber, err)
	}
	return nil
}
