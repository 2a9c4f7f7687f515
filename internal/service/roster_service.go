package service

import (
	"context"
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

// RosterService shows and edits who is on support for each team.
type RosterService struct {
	directory  repository.DirectoryRepository
	resolver   *OnCallResolver
	chat       ChatClient
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
	channel    string
}

// RosterDependencies bundles collaborators for the roster service.
type RosterDependencies struct {
	Directory      repository.DirectoryRepository
	Resolver       *OnCallResolver
	Chat           ChatClient
	Dispatcher     events.Dispatcher
	Logger         *zap.Logger
	Metrics        *observability.Metrics
	SupportChannel string
}

func NewRosterService(deps RosterDependencies) *RosterService {
	return &RosterService{
		directory:  deps.Directory,
		resolver:   deps.Resolver,
		chat:       deps.Chat,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		metrics:    deps.Metrics,
		channel:    deps.SupportChannel,
	}
}

// Overview resolves the current assignee of every enabled team.
func (s *RosterService) Overview(ctx context.Context) ([]domain.RosterEntry, error) {
	teams, err := s.directory.ListTeams(ctx)
	if err != nil {
		return nil, apperrors.NewExternalFailure("directory", err)
	}
	return s.resolver.ResolveAll(ctx, teams), nil
}

// ForTeam resolves a single team.
func (s *RosterService) ForTeam(ctx context.Context, teamID string) (domain.RosterEntry, error) {
	team, err := s.directory.GetTeamByID(ctx, teamID)
	if err != nil {
		return domain.RosterEntry{}, apperrors.NewNotFound("team", map[string]any{"team_id": teamID})
	}
	return domain.RosterEntry{Team: *team, Assignee: s.resolver.ResolveAssignee(ctx, team)}, nil
}

// OpenOnCallModal shows the roster modal. The channel topic is optional.
func (s *RosterService) OpenOnCallModal(ctx context.Context, triggerID string) error {
	entries, err := s.Overview(ctx)
	if err != nil {
		return err
	}
	topic, err := s.chat.ChannelTopic(ctx, s.channel)
	if err != nil {
		s.logger.Info("channel topic unavailable", zap.Error(err))
		topic = ""
	}
	if err := s.chat.OpenView(ctx, triggerID, render.OnCallModal(entries, topic)); err != nil {
		return apperrors.NewExternalFailure("chat", err)
	}
	return nil
}

// SetOnSupport replaces a team's on-support roster and announces it in the
// support channel. An empty roster hands the team back to paging.
func (s *RosterService) SetOnSupport(ctx context.Context, teamID string, userIDs []string, actorID string) error {
	if teamID == "" {
		return apperrors.NewValidationError("please select a team", nil)
	}
	team, err := s.directory.GetTeamByID(ctx, teamID)
	if err != nil {
		return apperrors.NewNotFound("team", map[string]any{"team_id": teamID})
	}
	if err := s.directory.UpdateOnSupportUsers(ctx, teamID, userIDs); err != nil {
		s.metrics.RecordOperation("roster.update", observability.OutcomeError)
		return apperrors.NewExternalFailure("directory", err)
	}

	if s.channel != "" {
		if _, err := s.chat.PostMessage(ctx, OutboundMessage{
			Channel: s.channel,
			Text:    render.OnSupportAnnouncement(actorID, *team, userIDs),
		}); err != nil {
			s.logger.Warn("posting roster announcement failed", observability.TeamID(teamID), zap.Error(err))
		}
	}

	if s.dispatcher != nil {
		if err := s.dispatcher.Publish(ctx, events.Event{
			ID:        uuid.NewString(),
			Type:      events.EventRosterUpdated,
			Actor:     events.Actor{UserID: actorID},
			Timestamp: time.Now(),
			Payload:   events.RosterUpdatedPayload{TeamID: teamID, UserIDs: userIDs},
		}); err != nil {
			s.logger.Warn("event handler failed", zap.String("event", string(events.EventRosterUpdated)), zap.Error(err))
		}
	}
	s.metrics.RecordOperation("roster.update", observability.OutcomeOK)
	return nil
}
