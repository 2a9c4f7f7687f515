package repository

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/spec-kit/helpdesk-router/internal/domain"
	"github.com/spec-kit/helpdesk-router/internal/persistence"
)

// DirectoryRepository serves teams, topics and auto-answer entries from a
// cached snapshot of the directory tables. Every lookup is a linear scan.
type DirectoryRepository interface {
	ListTeams(ctx context.Context) ([]domain.Team, error)
	GetTeamByID(ctx context.Context, id string) (*domain.Team, error)
	ListTopics(ctx context.Context) ([]domain.Topic, error)
	ListTopicsForTeam(ctx context.Context, teamID string) ([]domain.Topic, error)
	GetTopicByID(ctx context.Context, id string) (*domain.Topic, error)
	ListAutoAnswers(ctx context.Context) ([]domain.AutoAnswer, error)
	UpdateOnSupportUsers(ctx context.Context, teamID string, userIDs []string) error
	Refresh(ctx context.Context) error
	Invalidate()
}

// DirectoryTables groups the tables the directory reads.
type DirectoryTables struct {
	Teams       persistence.SheetTable
	Topics      persistence.SheetTable
	AutoAnswers persistence.SheetTable
}

type directorySnapshot struct {
	teams    []domain.Team
	topics   []domain.Topic
	answers  []domain.AutoAnswer
	loadedAt time.Time
}

type directoryRepository struct {
	tables DirectoryTables
	ttl    time.Duration
	now    func() time.Time

	mu       sync.RWMutex
	snapshot *directorySnapshot
	loads    singleflight.Group
}

// NewDirectoryRepository builds a cached directory. ttl <= 0 keeps a
// snapshot until Invalidate or Refresh is called.
func NewDirectoryRepository(tables DirectoryTables, ttl time.Duration) DirectoryRepository {
	return &directoryRepository{tables: tables, ttl: ttl, now: time.Now}
}

// ListTeams returns enabled teams ordered by display name.
func (r *directoryRepository) ListTeams(ctx context.Context) ([]domain.Team, error) {
	snap, err := r.current(ctx)
	if err != nil {
		return nil, err
	}
	teams := make([]domain.Team, 0, len(snap.teams))
	for _, t := range snap.teams {
		if !t.Disabled {
			teams = append(teams, t)
		}
	}
	sort.SliceStable(teams, func(i, j int) bool { return teams[i].Display < teams[j].Display })
	return teams, nil
}

func (r *directoryRepository) GetTeamByID(ctx context.Context, id string) (*domain.Team, error) {
	snap, err := r.current(ctx)
	if err != nil {
		return nil, err
	}
	for _, t := range snap.teams {
		if t.ID == id {
			team := t
			return &team, nil
		}
	}
	return nil, ErrNotFound
}

// ListTopics returns enabled topics ordered by sort weight, then name.
func (r *directoryRepository) ListTopics(ctx context.Context) ([]domain.Topic, error) {
	snap, err := r.current(ctx)
	if err != nil {
		return nil, err
	}
	topics := make([]domain.Topic, 0, len(snap.topics))
	for _, t := range snap.topics {
		if !t.Disabled {
			topics = append(topics, t)
		}
	}
	sort.SliceStable(topics, func(i, j int) bool {
		if topics[i].Sort != topics[j].Sort {
			return topics[i].Sort < topics[j].Sort
		}
		return topics[i].Name < topics[j].Name
	})
	return topics, nil
}

func (r *directoryRepository) ListTopicsForTeam(ctx context.Context, teamID string) ([]domain.Topic, error) {
	topics, err := r.ListTopics(ctx)
	if err != nil {
		return nil, err
	}
	out := topics[:0]
	for _, t := range topics {
		if t.BelongsTo(teamID) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *directoryRepository) GetTopicByID(ctx context.Context, id string) (*domain.Topic, error) {
	snap, err := r.current(ctx)
	if err != nil {
		return nil, err
	}
	for _, t := range snap.topics {
		if t.ID == id {
			topic := t
			return &topic, nil
		}
	}
	return nil, ErrNotFound
}

// ListAutoAnswers returns entries in table order.
func (r *directoryRepository) ListAutoAnswers(ctx context.Context) ([]domain.AutoAnswer, error) {
	snap, err := r.current(ctx)
	if err != nil {
		return nil, err
	}
	return append([]domain.AutoAnswer(nil), snap.answers...), nil
}

// UpdateOnSupportUsers rewrites the roster cell of one team. The team row is
// read fresh from the table, not from the snapshot, and the snapshot is
// dropped afterwards.
func (r *directoryRepository) UpdateOnSupportUsers(ctx context.Context, teamID string, userIDs []string) error {
	rows, err := r.tables.Teams.Rows(ctx)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if row.Get("Id") != teamID {
			continue
		}
		updated := row.Clone()
		updated.Values["OnSupportUsers"] = strings.Join(userIDs, ",")
		if err := r.tables.Teams.Save(ctx, updated); err != nil {
			return err
		}
		r.Invalidate()
		return nil
	}
	return ErrNotFound
}

// Refresh reloads every directory table.
func (r *directoryRepository) Refresh(ctx context.Context) error {
	_, err := r.load(ctx)
	return err
}

// Invalidate drops the snapshot; the next read reloads.
func (r *directoryRepository) Invalidate() {
	r.mu.Lock()
	r.snapshot = nil
	r.mu.Unlock()
}

func (r *directoryRepository) current(ctx context.Context) (*directorySnapshot, error) {
	r.mu.RLock()
	snap := r.snapshot
	r.mu.RUnlock()
	if snap != nil && (r.ttl <= 0 || r.now().Sub(snap.loadedAt) < r.ttl) {
		return snap, nil
	}
	return r.load(ctx)
}

func (r *directoryRepository) load(ctx context.Context) (*directorySnapshot, error) {
	v, err, _ := r.loads.Do("directory", func() (interface{}, error) {
		snap, err := r.read(ctx)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.snapshot = snap
		r.mu.Unlock()
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*directorySnapshot), nil
}

func (r *directoryRepository) read(ctx context.Context) (*directorySnapshot, error) {
	snap := &directorySnapshot{loadedAt: r.now()}

	teamRows, err := r.tables.Teams.Rows(ctx)
	if err != nil {
		return nil, err
	}
	for _, row := range teamRows {
		if row.Get("Id") == "" {
			continue
		}
		snap.teams = append(snap.teams, teamFromRow(row))
	}

	topicRows, err := r.tables.Topics.Rows(ctx)
	if err != nil {
		return nil, err
	}
	for _, row := range topicRows {
		if row.Get("Id") == "" {
			continue
		}
		snap.topics = append(snap.topics, topicFromRow(row))
	}

	if r.tables.AutoAnswers != nil {
		answerRows, err := r.tables.AutoAnswers.Rows(ctx)
		if err != nil {
			return nil, err
		}
		for _, row := range answerRows {
			if row.Get("Link") == "" {
				continue
			}
			snap.answers = append(snap.answers, autoAnswerFromRow(row))
		}
	}
	return snap, nil
}

func teamFromRow(row persistence.Row) domain.Team {
	return domain.Team{
		ID:                row.Get("Id"),
		Display:           row.Get("Display"),
		PagerDutySchedule: strings.TrimSpace(row.Get("PagerDutySchedule")),
		SlackGroup:        strings.TrimSpace(row.Get("SlackGroup")),
		OnSupportUsers:    domain.SplitList(row.Get("OnSupportUsers")),
		GitHubEnabled:     isTrue(row.Get("GitHub")),
		GitHubLabel:       row.Get("GitHubLabel"),
		Disabled:          isTrue(row.Get("Disabled")),
	}
}

func topicFromRow(row persistence.Row) domain.Topic {
	weight, err := strconv.Atoi(strings.TrimSpace(row.Get("Sort")))
	if err != nil {
		weight = 0
	}
	return domain.Topic{
		ID:       row.Get("Id"),
		Name:     row.Get("Topic"),
		TeamIDs:  domain.SplitList(row.Get("Teams")),
		Sort:     weight,
		Disabled: isTrue(row.Get("Disabled")),
	}
}

func autoAnswerFromRow(row persistence.Row) domain.AutoAnswer {
	return domain.AutoAnswer{
		Link:              strings.TrimSpace(row.Get("Link")),
		Title:             row.Get("Title"),
		TopicID:           strings.TrimSpace(row.Get("TopicId")),
		TeamID:            strings.TrimSpace(row.Get("TeamId")),
		Keywords:          domain.SplitList(row.Get("Keywords")),
		AdditionalContext: row.Get("AdditionalContextText"),
	}
}
