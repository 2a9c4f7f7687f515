package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/helpdesk-router/internal/domain"
	"github.com/spec-kit/helpdesk-router/internal/observability"
	"github.com/spec-kit/helpdesk-router/internal/repository"
)

// Match tiers, in the order they are tried.
const (
	TierKeyword    = "keyword"
	TierTopicTeam  = "topic_team"
	TierTopicOnly  = "topic_only"
	TierNoMatch    = "none"
	defaultFetches = 4
)

// AutoAnswerService suggests documentation for a new ticket.
type AutoAnswerService struct {
	directory    repository.DirectoryRepository
	titles       TitleFetcher
	titleTimeout time.Duration
	concurrency  int
	logger       *zap.Logger
}

// AutoAnswerDependencies bundles collaborators for the matcher.
type AutoAnswerDependencies struct {
	Directory    repository.DirectoryRepository
	Titles       TitleFetcher
	TitleTimeout time.Duration
	Concurrency  int
	Logger       *zap.Logger
}

func NewAutoAnswerService(deps AutoAnswerDependencies) *AutoAnswerService {
	if deps.Concurrency <= 0 {
		deps.Concurrency = defaultFetches
	}
	return &AutoAnswerService{
		directory:    deps.Directory,
		titles:       deps.Titles,
		titleTimeout: deps.TitleTimeout,
		concurrency:  deps.Concurrency,
		logger:       deps.Logger,
	}
}

// FindAnswers returns the suggestions for a ticket together with the tier
// that produced them. Titles are fetched per entry; a failed fetch keeps
// the entry with its configured title or its link.
func (s *AutoAnswerService) FindAnswers(ctx context.Context, topicID, teamID, summary string) ([]domain.AutoAnswer, string, error) {
	entries, err := s.directory.ListAutoAnswers(ctx)
	if err != nil {
		return nil, TierNoMatch, err
	}
	matches, tier := MatchAnswers(entries, topicID, teamID, summary)
	if len(matches) == 0 {
		return nil, tier, nil
	}
	s.enrichTitles(ctx, matches)
	return matches, tier, nil
}

// MatchAnswers applies the three tiers to entries and stops at the first
// tier with a result. Results keep the order of entries.
func MatchAnswers(entries []domain.AutoAnswer, topicID, teamID, summary string) ([]domain.AutoAnswer, string) {
	var keyword []domain.AutoAnswer
	for _, e := range entries {
		if !affine(e, topicID, teamID) || len(e.Keywords) == 0 {
			continue
		}
		if e.MatchesSummary(summary) {
			keyword = append(keyword, e)
		}
	}
	if len(keyword) > 0 {
		return keyword, TierKeyword
	}

	var exact []domain.AutoAnswer
	for _, e := range entries {
		if e.TopicID == topicID && e.TeamID == teamID {
			exact = append(exact, e)
		}
	}
	if len(exact) > 0 {
		return exact, TierTopicTeam
	}

	var topicOnly []domain.AutoAnswer
	for _, e := range entries {
		if e.TopicID == topicID && strings.TrimSpace(e.TeamID) == "" {
			topicOnly = append(topicOnly, e)
		}
	}
	if len(topicOnly) > 0 {
		return topicOnly, TierTopicOnly
	}
	return nil, TierNoMatch
}

func affine(e domain.AutoAnswer, topicID, teamID string) bool {
	return (teamID != "" && e.TeamID == teamID) || (topicID != "" && e.TopicID == topicID)
}

func (s *AutoAnswerService) enrichTitles(ctx context.Context, answers []domain.AutoAnswer) {
	if s.titles == nil {
		return
	}
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i := range answers {
		if strings.TrimSpace(answers[i].Title) != "" {
			continue
		}
		i := i
		g.Go(func() error {
			fetchCtx := ctx
			if s.titleTimeout > 0 {
				var cancel context.CancelFunc
				fetchCtx, cancel = context.WithTimeout(ctx, s.titleTimeout)
				defer cancel()
			}
			title, err := s.titles.FetchTitle(fetchCtx, answers[i].Link)
			if err != nil {
				s.logger.Info("auto-answer title fetch failed",
					zap.String("link", answers[i].Link), zap.Error(err))
				return nil
			}
			answers[i].Title = strings.TrimSpace(title)
			return nil
		})
	}
	_ = g.Wait()
}

// logTier is shared by callers that report which tier matched.
func logTier(logger *zap.Logger, ticketID, tier string, count int) {
	logger.Info("auto-answer lookup finished",
		observability.TicketID(ticketID),
		observability.Tier(tier),
		zap.Int("matches", count))
}
