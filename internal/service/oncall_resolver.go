package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-router/internal/domain"
	"github.com/spec-kit/helpdesk-router/internal/observability"
)

// OnCallResolver decides who a team's tickets go to right now.
type OnCallResolver struct {
	paging  PagingClient
	chat    ChatClient
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewOnCallResolver constructs the resolver. paging may be nil when no
// paging service is configured.
func NewOnCallResolver(paging PagingClient, chat ChatClient, logger *zap.Logger, metrics *observability.Metrics) *OnCallResolver {
	return &OnCallResolver{paging: paging, chat: chat, logger: logger, metrics: metrics}
}

// ResolveAssignee walks the tiers in order and returns the first hit:
// explicit on-support roster, paging schedule, static fallback group.
// A tier that errors counts as a miss. When every tier misses the
// returned assignee is unassigned.
func (r *OnCallResolver) ResolveAssignee(ctx context.Context, team *domain.Team) domain.Assignee {
	if team == nil {
		return domain.Assignee{Source: domain.SourceUnassigned}
	}

	if team.HasRoster() {
		return r.hit(team, domain.Assignee{Mention: team.RosterMention(), Source: domain.SourceRoster})
	}

	if mention := r.fromPaging(ctx, team); mention != "" {
		return r.hit(team, domain.Assignee{Mention: mention, Source: domain.SourcePaging})
	}

	if group := strings.TrimSpace(team.SlackGroup); group != "" {
		return r.hit(team, domain.Assignee{Mention: group, Source: domain.SourceGroup})
	}

	return r.hit(team, domain.Assignee{Source: domain.SourceUnassigned})
}

// ResolveAll resolves every team, used by the roster overview.
func (r *OnCallResolver) ResolveAll(ctx context.Context, teams []domain.Team) []domain.RosterEntry {
	entries := make([]domain.RosterEntry, 0, len(teams))
	for i := range teams {
		entries = append(entries, domain.RosterEntry{Team: teams[i], Assignee: r.ResolveAssignee(ctx, &teams[i])})
	}
	return entries
}

func (r *OnCallResolver) fromPaging(ctx context.Context, team *domain.Team) string {
	if team.PagerDutySchedule == "" || r.paging == nil {
		return ""
	}
	log := r.logger.With(observability.TeamID(team.ID), zap.String("schedule", team.PagerDutySchedule))

	email, err := r.paging.CurrentOnCallEmail(ctx, team.PagerDutySchedule)
	if err != nil {
		log.Warn("paging schedule lookup failed", zap.Error(err))
		r.metrics.RecordOperation("oncall.paging", observability.OutcomeError)
		return ""
	}
	if email == "" {
		log.Info("paging schedule has nobody on call")
		return ""
	}

	userID, err := r.chat.LookupUserByEmail(ctx, email)
	if err != nil {
		log.Warn("on-call user lookup by email failed", zap.Error(err))
		r.metrics.RecordOperation("oncall.identity", observability.OutcomeError)
		return ""
	}
	if userID == "" {
		return ""
	}
	return domain.UserMention(userID)
}

func (r *OnCallResolver) hit(team *domain.Team, a domain.Assignee) domain.Assignee {
	r.logger.Debug("resolved assignee",
		observability.TeamID(team.ID),
		observability.Tier(string(a.Source)),
		zap.String("mention", a.Mention))
	r.metrics.RecordOperation("oncall.resolve."+string(a.Source), observability.OutcomeOK)
	return a
}
