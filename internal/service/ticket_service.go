package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-router/internal/domain"
	"github.com/spec-kit/helpdesk-router/internal/events"
	"github.com/spec-kit/helpdesk-router/internal/observability"
	"github.com/spec-kit/helpdesk-router/internal/render"
	"github.com/spec-kit/helpdesk-router/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-router/pkg/util/errorutil"
)

// TicketService owns ticket creation and every state transition after it.
// Ledger rows are mutated with read-scan-write; without a Locker two
// concurrent mutations of one ticket are last-write-wins.
type TicketService struct {
	directory    repository.DirectoryRepository
	ledger       repository.LedgerRepository
	analytics    repository.AnalyticsRepository
	resolver     *OnCallResolver
	answers      *AutoAnswerService
	chat         ChatClient
	issues       IssueTracker
	pulls        PullRequestSummarizer
	locker       Locker
	runner       Runner
	dispatcher   events.Dispatcher
	logger       *zap.Logger
	metrics      *observability.Metrics
	now          func() time.Time
	channel      string
	workspaceURL string
	surveyURL    string
	reaction     string
	supportLabel string
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Directory      repository.DirectoryRepository
	Ledger         repository.LedgerRepository
	Analytics      repository.AnalyticsRepository
	Resolver       *OnCallResolver
	AutoAnswers    *AutoAnswerService
	Chat           ChatClient
	Issues         IssueTracker
	PullRequests   PullRequestSummarizer
	Locker         Locker
	Runner         Runner
	Dispatcher     events.Dispatcher
	Logger         *zap.Logger
	Metrics        *observability.Metrics
	Clock          func() time.Time
	SupportChannel string
	WorkspaceURL   string
	SurveyURL      string
	ClosedReaction string
	SupportLabel   string
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &TicketService{
		directory:    deps.Directory,
		ledger:       deps.Ledger,
		analytics:    deps.Analytics,
		resolver:     deps.Resolver,
		answers:      deps.AutoAnswers,
		chat:         deps.Chat,
		issues:       deps.Issues,
		pulls:        deps.PullRequests,
		locker:       deps.Locker,
		runner:       deps.Runner,
		dispatcher:   deps.Dispatcher,
		logger:       deps.Logger,
		metrics:      deps.Metrics,
		now:          clock,
		channel:      deps.SupportChannel,
		workspaceURL: deps.WorkspaceURL,
		surveyURL:    deps.SurveyURL,
		reaction:     deps.ClosedReaction,
		supportLabel: deps.SupportLabel,
	}
}

// CreateResult describes the posted ticket message.
type CreateResult struct {
	TicketID string
	Message  domain.MessageRef
}

// Create opens a ticket from a validated support form. The returned message
// reference is zero when posting failed; the error then carries the cause.
func (s *TicketService) Create(ctx context.Context, sub domain.Submission) (CreateResult, error) {
	if missing := sub.Missing(); len(missing) > 0 {
		return CreateResult{}, apperrors.NewValidationError(
			"please fill in "+strings.Join(missing, ", "),
			map[string]any{"missing": missing},
		)
	}

	team, err := s.directory.GetTeamByID(ctx, sub.TeamID)
	if err != nil {
		return CreateResult{}, s.directoryError("team", sub.TeamID, err)
	}
	topic, err := s.directory.GetTopicByID(ctx, sub.TopicID)
	if err != nil {
		return CreateResult{}, s.directoryError("topic", sub.TopicID, err)
	}

	ticket := domain.Ticket{
		ID:              generateTicketID(),
		Channel:         s.channel,
		SubmittedBy:     sub.SubmittedBy,
		RequestingUsers: sub.Requesters(),
		TeamID:          team.ID,
		AssignedTeamID:  team.ID,
		TopicID:         topic.ID,
		Summary:         strings.TrimSpace(sub.Summary),
		CreatedAt:       s.now(),
	}
	log := s.logger.With(observability.TicketID(ticket.ID), observability.TeamID(team.ID))

	assignee := s.resolver.ResolveAssignee(ctx, team)

	issue := s.openIssue(ctx, log, ticket, *team, *topic)
	if issue != nil {
		ticket.GitHubIssue = issue.Number
	}

	blocks, text := render.TicketMessage(render.TicketView{
		Ticket: ticket, Team: *team, Topic: *topic, Assignee: assignee, Issue: issue,
	})
	ref, err := s.chat.PostMessage(ctx, OutboundMessage{Channel: s.channel, Blocks: blocks, Text: text})
	if err != nil {
		log.Error("posting ticket message failed", zap.Error(err))
		s.metrics.RecordOperation("ticket.create", observability.OutcomeError)
		return CreateResult{TicketID: ticket.ID}, apperrors.NewExternalFailure("chat", err)
	}

	ticket.Channel = ref.Channel
	ticket.CorrelationID = domain.NewCorrelationID(ref.TS)
	ticket.MessageLink = domain.MessageLink(s.workspaceURL, ref)
	log = log.With(observability.CorrelationID(ticket.CorrelationID.String()))

	s.postPullRequestStatus(ctx, log, ticket.Summary, ref)

	if err := s.ledger.Append(ctx, &ticket); err != nil {
		log.Error("ledger append failed", zap.Error(err))
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    events.Actor{UserID: sub.SubmittedBy},
		Payload: events.TicketCreatedPayload{
			TeamID:         team.ID,
			TopicID:        topic.ID,
			CorrelationID:  ticket.CorrelationID.String(),
			AssigneeSource: string(assignee.Source),
			IssueNumber:    ticket.GitHubIssue,
		},
	})
	s.metrics.RecordOperation("ticket.create", observability.OutcomeOK)
	log.Info("ticket created", observability.Tier(string(assignee.Source)))

	s.scheduleAutoAnswers(ticket)
	return CreateResult{TicketID: ticket.ID, Message: ref}, nil
}

// PostAutoAnswers finds suggestions for ticket and posts each one in the
// ticket thread. It returns how many were posted.
func (s *TicketService) PostAutoAnswers(ctx context.Context, ticket domain.Ticket) (int, error) {
	if s.answers == nil {
		return 0, nil
	}
	answers, tier, err := s.answers.FindAnswers(ctx, ticket.TopicID, ticket.TeamID, ticket.Summary)
	if err != nil {
		return 0, err
	}
	logTier(s.logger, ticket.ID, tier, len(answers))
	if len(answers) == 0 {
		return 0, nil
	}

	thread := ticket.Message()
	posted := 0
	links := make([]string, 0, len(answers))
	for _, answer := range answers {
		blocks, text := render.AutoAnswerMessage(ticket.ID, answer)
		if _, err := s.chat.PostMessage(ctx, OutboundMessage{
			Channel: thread.Channel, ThreadTS: thread.TS, Blocks: blocks, Text: text,
		}); err != nil {
			s.logger.Warn("posting auto-answer failed", observability.TicketID(ticket.ID), zap.String("link", answer.Link), zap.Error(err))
			continue
		}
		posted++
		links = append(links, answer.Link)

		if strings.TrimSpace(answer.AdditionalContext) != "" {
			ctxBlocks, ctxText := render.AdditionalContextMessage(answer.AdditionalContext)
			if _, err := s.chat.PostMessage(ctx, OutboundMessage{
				Channel: thread.Channel, ThreadTS: thread.TS, Blocks: ctxBlocks, Text: ctxText,
			}); err != nil {
				s.logger.Warn("posting auto-answer context failed", observability.TicketID(ticket.ID), zap.Error(err))
			}
		}
	}
	if posted == 0 {
		return 0, nil
	}

	s.markAutoAnswered(ctx, ticket.ID)

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketAutoAnswered,
		TicketID: ticket.ID,
		Payload:  events.TicketAutoAnsweredPayload{Tier: tier, Links: links, Skipped: len(answers) - posted},
	})
	s.metrics.RecordOperation("ticket.auto_answer", observability.OutcomeOK)
	return posted, nil
}

// postPullRequestStatus replies in the ticket thread with the state of the
// first pull request linked from the summary.
func (s *TicketService) postPullRequestStatus(ctx context.Context, log *zap.Logger, summary string, thread domain.MessageRef) {
	if s.pulls == nil {
		return
	}
	pr, ok := domain.FindPullRequest(summary)
	if !ok {
		return
	}
	text := render.PullRequestUnavailable
	status, err := s.pulls.SummarizePullRequest(ctx, pr)
	if err != nil {
		log.Warn("pull request status unavailable", zap.Stringer("pull_request", pr), zap.Error(err))
	} else {
		text = render.PullRequestStatus(status)
	}
	if _, err := s.chat.PostMessage(ctx, OutboundMessage{Channel: thread.Channel, ThreadTS: thread.TS, Text: text}); err != nil {
		log.Warn("posting pull request status failed", zap.Error(err))
	}
}

func (s *TicketService) markAutoAnswered(ctx context.Context, ticketID string) {
	release, err := s.acquire(ctx, ticketID)
	if err != nil {
		s.logger.Warn("marking ticket auto-answered skipped", observability.TicketID(ticketID), zap.Error(err))
		return
	}
	defer release()

	if err := s.mutate(ctx, ticketID, func(t *domain.Ticket) error {
		t.AutoAnswered = true
		return nil
	}); err != nil {
		s.logger.Warn("marking ticket auto-answered failed", observability.TicketID(ticketID), zap.Error(err))
	}
}

// Reassign routes an existing ticket to another team. A missing ticket
// stops the operation before any message or ledger change.
func (s *TicketService) Reassign(ctx context.Context, ticketID, newTeamID, actorID string) error {
	log := s.logger.With(observability.TicketID(ticketID), observability.TeamID(newTeamID))
	if newTeamID == "" {
		return apperrors.NewValidationError("please select a team", nil)
	}

	release, err := s.acquire(ctx, ticketID)
	if err != nil {
		return err
	}
	defer release()

	ticket, err := s.ledger.FindByTicketID(ctx, ticketID)
	if err != nil {
		s.metrics.RecordOperation("ticket.reassign", outcomeFor(err))
		return s.ledgerError(ticketID, err)
	}
	if ticket.ClosedAt != nil {
		return apperrors.NewConflict("ticket is already closed", map[string]any{"ticket_id": ticketID})
	}

	team, err := s.directory.GetTeamByID(ctx, newTeamID)
	if err != nil {
		return s.directoryError("team", newTeamID, err)
	}
	from := domain.Team{ID: ticket.CurrentTeamID(), Display: ticket.CurrentTeamID()}
	if prev, err := s.directory.GetTeamByID(ctx, ticket.CurrentTeamID()); err == nil {
		from = *prev
	}

	assignee := s.resolver.ResolveAssignee(ctx, team)

	ref := ticket.Message()
	current, err := s.chat.GetMessageBlocks(ctx, ref)
	if err != nil {
		log.Error("loading ticket message failed", zap.Error(err))
		s.metrics.RecordOperation("ticket.reassign", observability.OutcomeError)
		return apperrors.NewExternalFailure("chat", err)
	}
	updated := render.ReplaceAssignment(current, ticket.ID, assignee, *team)
	if err := s.chat.UpdateMessage(ctx, ref, updated, "Ticket reassigned to "+team.Display); err != nil {
		log.Error("updating ticket message failed", zap.Error(err))
		s.metrics.RecordOperation("ticket.reassign", observability.OutcomeError)
		return apperrors.NewExternalFailure("chat", err)
	}

	note := render.ReassignNote(actorID, from, *team, assignee)
	if _, err := s.chat.PostMessage(ctx, OutboundMessage{Channel: ref.Channel, ThreadTS: ref.TS, Text: note}); err != nil {
		log.Warn("posting reassignment note failed", zap.Error(err))
	}

	ticket.AssignedTeamID = team.ID
	ticket.Reassignments++
	if err := s.ledger.Save(ctx, ticket); err != nil {
		log.Error("ledger update failed", zap.Error(err))
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketReassigned,
		TicketID: ticket.ID,
		Actor:    events.Actor{UserID: actorID},
		Payload: events.TicketReassignedPayload{
			FromTeamID:     from.ID,
			ToTeamID:       team.ID,
			ToTeamLabel:    team.GitHubLabel,
			Assignee:       assignee.Mention,
			AssigneeSource: string(assignee.Source),
			IssueNumber:    ticket.GitHubIssue,
			Note:           note,
		},
	})
	s.metrics.RecordOperation("ticket.reassign", observability.OutcomeOK)
	log.Info("ticket reassigned", observability.Tier(string(assignee.Source)))
	return nil
}

// Close makes the ticket message inert, marks it, posts the survey and
// closes any linked issue. A missing ticket is reported without touching
// the message.
func (s *TicketService) Close(ctx context.Context, ticketID, actorID string) error {
	log := s.logger.With(observability.TicketID(ticketID))

	release, err := s.acquire(ctx, ticketID)
	if err != nil {
		return err
	}
	defer release()

	ticket, err := s.ledger.FindByTicketID(ctx, ticketID)
	if err != nil {
		s.metrics.RecordOperation("ticket.close", outcomeFor(err))
		return s.ledgerError(ticketID, err)
	}
	if ticket.ClosedAt != nil {
		return apperrors.NewConflict("ticket is already closed", map[string]any{"ticket_id": ticketID})
	}

	closedAt := s.now()
	ref := ticket.Message()
	current, err := s.chat.GetMessageBlocks(ctx, ref)
	if err != nil {
		log.Error("loading ticket message failed", zap.Error(err))
		s.metrics.RecordOperation("ticket.close", observability.OutcomeError)
		return apperrors.NewExternalFailure("chat", err)
	}
	if err := s.chat.UpdateMessage(ctx, ref, render.MarkClosed(current, actorID, closedAt), "Ticket closed"); err != nil {
		log.Error("updating ticket message failed", zap.Error(err))
		s.metrics.RecordOperation("ticket.close", observability.OutcomeError)
		return apperrors.NewExternalFailure("chat", err)
	}

	if s.reaction != "" {
		if err := s.chat.AddReaction(ctx, s.reaction, ref); err != nil {
			log.Warn("adding closed reaction failed", zap.Error(err))
		}
	}

	blocks, text := render.SurveyMessage(actorID, s.surveyURL)
	if _, err := s.chat.PostMessage(ctx, OutboundMessage{Channel: ref.Channel, ThreadTS: ref.TS, Blocks: blocks, Text: text}); err != nil {
		log.Warn("posting survey failed", zap.Error(err))
	}

	ticket.ClosedAt = &closedAt
	if err := s.ledger.Save(ctx, ticket); err != nil {
		log.Error("ledger update failed", zap.Error(err))
	}

	if ticket.HasIssue() && s.issues != nil {
		if err := s.issues.CloseIssue(ctx, ticket.GitHubIssue); err != nil {
			log.Warn("closing linked issue failed", zap.Int("issue", ticket.GitHubIssue), zap.Error(err))
		}
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketClosed,
		TicketID: ticket.ID,
		Actor:    events.Actor{UserID: actorID},
		Payload:  events.TicketClosedPayload{TeamID: ticket.CurrentTeamID(), IssueNumber: ticket.GitHubIssue},
	})
	s.metrics.RecordOperation("ticket.close", observability.OutcomeOK)
	log.Info("ticket closed")
	return nil
}

// RecordFirstReply stamps the first reply time of the ticket whose message
// has the given correlation id. Later replies leave the stamp unchanged.
// Replies in threads that are not tickets are expected and ignored.
func (s *TicketService) RecordFirstReply(ctx context.Context, id domain.CorrelationID, actorID string) error {
	ticket, err := s.ledger.FindByCorrelationID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		s.logger.Debug("reply does not belong to a ticket", observability.CorrelationID(id.String()))
		s.metrics.RecordOperation("ticket.first_reply", observability.OutcomeNotFound)
		return nil
	}
	if err != nil {
		return apperrors.NewExternalFailure("ledger", err)
	}
	if ticket.FirstReplyAt != nil {
		s.metrics.RecordOperation("ticket.first_reply", observability.OutcomeSkipped)
		return nil
	}

	release, err := s.acquire(ctx, ticket.ID)
	if err != nil {
		return err
	}
	defer release()

	var replyAt time.Time
	stamped := false
	err = s.mutate(ctx, ticket.ID, func(t *domain.Ticket) error {
		if t.FirstReplyAt != nil {
			return nil
		}
		replyAt = s.now()
		t.FirstReplyAt = &replyAt
		stamped = true
		return nil
	})
	if err != nil {
		return apperrors.NewExternalFailure("ledger", err)
	}
	if !stamped {
		return nil
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketFirstReply,
		TicketID: ticket.ID,
		Actor:    events.Actor{UserID: actorID},
		Payload: events.TicketFirstReplyPayload{
			CorrelationID: id.String(),
			Elapsed:       replyAt.Sub(ticket.CreatedAt),
		},
	})
	s.metrics.RecordOperation("ticket.first_reply", observability.OutcomeOK)
	return nil
}

// RecordAnswerFeedback stores a yes/no vote on an auto-answer.
func (s *TicketService) RecordAnswerFeedback(ctx context.Context, ticketID, actorID string, helpful bool) error {
	if s.analytics == nil {
		return nil
	}
	if err := s.analytics.RecordAnswerFeedback(ctx, domain.AnswerFeedback{
		TicketID: ticketID, Helpful: helpful, RecordedAt: s.now(),
	}); err != nil {
		return apperrors.NewExternalFailure("analytics", err)
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventAnswerFeedback,
		TicketID: ticketID,
		Actor:    events.Actor{UserID: actorID},
		Payload:  events.AnswerFeedbackPayload{Helpful: helpful},
	})
	return nil
}

// Get returns the ledger view of a ticket.
func (s *TicketService) Get(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.ledger.FindByTicketID(ctx, ticketID)
	if err != nil {
		return nil, s.ledgerError(ticketID, err)
	}
	return ticket, nil
}

func (s *TicketService) scheduleAutoAnswers(ticket domain.Ticket) {
	if s.answers == nil {
		return
	}
	task := func(ctx context.Context) {
		if _, err := s.PostAutoAnswers(ctx, ticket); err != nil {
			s.logger.Warn("auto-answer failed", observability.TicketID(ticket.ID), zap.Error(err))
		}
	}
	if s.runner == nil {
		go task(context.Background())
		return
	}
	if err := s.runner.Submit("auto_answer:"+ticket.ID, task); err != nil {
		s.logger.Warn("auto-answer not scheduled", observability.TicketID(ticket.ID), zap.Error(err))
	}
}

func (s *TicketService) openIssue(ctx context.Context, log *zap.Logger, ticket domain.Ticket, team domain.Team, topic domain.Topic) *domain.Issue {
	if !team.GitHubEnabled || s.issues == nil {
		return nil
	}
	labels := issueLabels(s.supportLabel, team.GitHubLabel)
	submitter := s.chat.ResolveUserName(ctx, ticket.SubmittedBy)
	issue, err := s.issues.CreateIssue(ctx,
		render.IssueTitle(topic, ticket.Summary),
		render.IssueBody(submitter, ticket.ID, team, topic, ticket.Summary),
		labels,
	)
	if err != nil {
		log.Warn("creating issue failed", zap.Error(err))
		return nil
	}
	return &issue
}

// mutate reloads the row by ticket id, applies fn and writes the row back.
func (s *TicketService) mutate(ctx context.Context, ticketID string, fn func(*domain.Ticket) error) error {
	ticket, err := s.ledger.FindByTicketID(ctx, ticketID)
	if err != nil {
		return err
	}
	if err := fn(ticket); err != nil {
		return err
	}
	return s.ledger.Save(ctx, ticket)
}

func (s *TicketService) acquire(ctx context.Context, ticketID string) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	release, err := s.locker.Acquire(ctx, "ticket:"+ticketID)
	if err != nil {
		return nil, apperrors.NewConflict("ticket is being updated, please try again", map[string]any{"ticket_id": ticketID})
	}
	return release, nil
}

func (s *TicketService) ledgerError(ticketID string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	return apperrors.NewExternalFailure("ledger", err)
}

func (s *TicketService) directoryError(kind, id string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewValidationError(fmt.Sprintf("unknown %s %q", kind, id), map[string]any{kind + "_id": id})
	}
	return apperrors.NewExternalFailure("directory", err)
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event", string(event.Type)), observability.TicketID(event.TicketID), zap.Error(err))
	}
}

func outcomeFor(err error) string {
	if errors.Is(err, repository.ErrNotFound) {
		return observability.OutcomeNotFound
	}
	return observability.OutcomeError
}

func issueLabels(support, team string) []string {
	var labels []string
	for _, l := range []string{support, team} {
		if strings.TrimSpace(l) != "" {
			labels = append(labels, l)
		}
	}
	return labels
}

func generateTicketID() string {
	return "TCK-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
}
