package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-router/internal/persistence"
)

type countingTable struct {
	*persistence.MemorySheetTable
	reads int
	err   error
}

func (c *countingTable) Rows(ctx context.Context) ([]persistence.Row, error) {
	c.reads++
	if c.err != nil {
		return nil, c.err
	}
	return c.MemorySheetTable.Rows(ctx)
}

func seedDirectory(t *testing.T) (DirectoryTables, *countingTable) {
	t.Helper()
	ctx := context.Background()

	teams := &countingTable{MemorySheetTable: persistence.NewMemorySheetTable("Teams", TeamColumns)}
	for _, v := range []map[string]string{
		{"Id": "FE", "Display": "Frontend", "PagerDutySchedule": "SCHED1", "SlackGroup": "<!subteam^S1>", "GitHub": "TRUE", "GitHubLabel": "team-fe"},
		{"Id": "BE", "Display": "Backend", "OnSupportUsers": "U1, U2"},
		{"Id": "OLD", "Display": "Archived", "Disabled": "TRUE"},
		{"Id": "", "Display": "blank line"},
	} {
		_, err := teams.Append(ctx, v)
		require.NoError(t, err)
	}

	topics := persistence.NewMemorySheetTable("Topics", TopicColumns)
	for _, v := range []map[string]string{
		{"Id": "deploy", "Topic": "Deploy", "Teams": "FE,BE", "Sort": "2"},
		{"Id": "access", "Topic": "Access", "Teams": "BE", "Sort": "1"},
		{"Id": "bug", "Topic": "Bug", "Teams": "FE", "Sort": "2"},
		{"Id": "gone", "Topic": "Gone", "Teams": "FE", "Disabled": "TRUE"},
	} {
		_, err := topics.Append(ctx, v)
		require.NoError(t, err)
	}

	answers := persistence.NewMemorySheetTable("AutoAnswers", AutoAnswerColumns)
	_, err := answers.Append(ctx, map[string]string{"Link": "https://docs/deploy", "TopicId": "deploy", "Keywords": "stuck, FAIL"})
	require.NoError(t, err)
	_, err = answers.Append(ctx, map[string]string{"Link": "", "TopicId": "deploy"})
	require.NoError(t, err)

	return DirectoryTables{Teams: teams, Topics: topics, AutoAnswers: answers}, teams
}

func TestDirectoryListTeams(t *testing.T) {
	tables, _ := seedDirectory(t)
	repo := NewDirectoryRepository(tables, time.Minute)

	teams, err := repo.ListTeams(context.Background())
	require.NoError(t, err)
	require.Len(t, teams, 2)
	assert.Equal(t, "Backend", teams[0].Display)
	assert.Equal(t, []string{"U1", "U2"}, teams[0].OnSupportUsers)
	assert.Equal(t, "Frontend", teams[1].Display)
	assert.True(t, teams[1].GitHubEnabled)
	assert.Equal(t, "SCHED1", teams[1].PagerDutySchedule)
}

func TestDirectoryGetTeamByID(t *testing.T) {
	tables, _ := seedDirectory(t)
	repo := NewDirectoryRepository(tables, time.Minute)

	team, err := repo.GetTeamByID(context.Background(), "OLD")
	require.NoError(t, err)
	assert.True(t, team.Disabled)

	_, err = repo.GetTeamByID(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDirectoryTopics(t *testing.T) {
	tables, _ := seedDirectory(t)
	repo := NewDirectoryRepository(tables, time.Minute)
	ctx := context.Background()

	topics, err := repo.ListTopics(ctx)
	require.NoError(t, err)
	var names []string
	for _, tp := range topics {
		names = append(names, tp.Name)
	}
	assert.Equal(t, []string{"Access", "Bug", "Deploy"}, names)

	feTopics, err := repo.ListTopicsForTeam(ctx, "FE")
	require.NoError(t, err)
	require.Len(t, feTopics, 2)
	assert.Equal(t, "bug", feTopics[0].ID)
	assert.Equal(t, "deploy", feTopics[1].ID)

	topic, err := repo.GetTopicByID(ctx, "access")
	require.NoError(t, err)
	assert.Equal(t, 1, topic.Sort)
}

func TestDirectoryAutoAnswers(t *testing.T) {
	tables, _ := seedDirectory(t)
	repo := NewDirectoryRepository(tables, time.Minute)

	answers, err := repo.ListAutoAnswers(context.Background())
	require.NoError(t, err)
	require.Len(t, answers, 1)
	assert.Equal(t, []string{"stuck", "FAIL"}, answers[0].Keywords)
	assert.Equal(t, "", answers[0].TeamID)
}

func TestDirectoryCachesUntilInvalidated(t *testing.T) {
	tables, teams := seedDirectory(t)
	repo := NewDirectoryRepository(tables, 0)
	ctx := context.Background()

	_, err := repo.ListTeams(ctx)
	require.NoError(t, err)
	_, err = repo.GetTeamByID(ctx, "FE")
	require.NoError(t, err)
	assert.Equal(t, 1, teams.reads)

	repo.Invalidate()
	_, err = repo.ListTeams(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, teams.reads)

	require.NoError(t, repo.Refresh(ctx))
	assert.Equal(t, 3, teams.reads)
}

func TestDirectoryExpiresAfterTTL(t *testing.T) {
	tables, teams := seedDirectory(t)
	repo := NewDirectoryRepository(tables, time.Minute).(*directoryRepository)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }
	ctx := context.Background()

	_, err := repo.ListTeams(ctx)
	require.NoError(t, err)
	now = now.Add(30 * time.Second)
	_, err = repo.ListTeams(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, teams.reads)

	now = now.Add(time.Minute)
	_, err = repo.ListTeams(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, teams.reads)
}

func TestDirectoryUpdateOnSupportUsers(t *testing.T) {
	tables, _ := seedDirectory(t)
	repo := NewDirectoryRepository(tables, 0)
	ctx := context.Background()

	before, err := repo.GetTeamByID(ctx, "FE")
	require.NoError(t, err)
	assert.Empty(t, before.OnSupportUsers)

	require.NoError(t, repo.UpdateOnSupportUsers(ctx, "FE", []string{"U7", "U8"}))

	after, err := repo.GetTeamByID(ctx, "FE")
	require.NoError(t, err)
	assert.Equal(t, []string{"U7", "U8"}, after.OnSupportUsers)
	assert.Equal(t, "Frontend", after.Display)

	assert.ErrorIs(t, repo.UpdateOnSupportUsers(ctx, "nope", nil), ErrNotFound)
}

func TestDirectoryLoadError(t *testing.T) {
	tables, teams := seedDirectory(t)
	teams.err = errors.New("quota exceeded")
	repo := NewDirectoryRepository(tables, 0)

	_, err := repo.ListTeams(context.Background())
	assert.EqualError(t, err, "quota exceeded")
}
