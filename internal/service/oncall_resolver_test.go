package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/spec-kit/helpdesk-router/internal/domain"
)

func TestResolveAssignee_RosterWinsOverPagingAndGroup(t *testing.T) {
	paging := &mockPaging{}
	r := NewOnCallResolver(paging, newFakeChat(), testLogger(), nil)

	team := &domain.Team{
		ID: "FE", OnSupportUsers: []string{"U1", "U2"},
		PagerDutySchedule: "SCHED1", SlackGroup: "<!subteam^S1>",
	}
	got := r.ResolveAssignee(context.Background(), team)

	assert.Equal(t, domain.Assignee{Mention: "<@U1>, <@U2>", Source: domain.SourceRoster}, got)
	paging.AssertNotCalled(t, "CurrentOnCallEmail", mock.Anything, mock.Anything)
}

func TestResolveAssignee_PagingOverGroup(t *testing.T) {
	paging := &mockPaging{}
	paging.On("CurrentOnCallEmail", mock.Anything, "SCHED1").Return("a@x.com", nil)
	chat := newFakeChat()
	chat.users["a@x.com"] = "U1"
	r := NewOnCallResolver(paging, chat, testLogger(), nil)

	got := r.ResolveAssignee(context.Background(), &domain.Team{
		ID: "FE", PagerDutySchedule: "SCHED1", SlackGroup: "<!subteam^S1>",
	})

	assert.Equal(t, "<@U1>", got.Mention)
	assert.Equal(t, domain.SourcePaging, got.Source)
	paging.AssertExpectations(t)
}

func TestResolveAssignee_PagingFailureFallsBackToGroup(t *testing.T) {
	tests := []struct {
		name   string
		email  string
		err    error
		lookup error
	}{
		{name: "schedule error", err: errors.New("timeout")},
		{name: "nobody on call", email: ""},
		{name: "identity lookup error", email: "a@x.com", lookup: errors.New("users_not_found")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			paging := &mockPaging{}
			paging.On("CurrentOnCallEmail", mock.Anything, "SCHED1").Return(tt.email, tt.err)
			chat := newFakeChat()
			chat.lookupErr = tt.lookup
			r := NewOnCallResolver(paging, chat, testLogger(), nil)

			got := r.ResolveAssignee(context.Background(), &domain.Team{
				ID: "FE", PagerDutySchedule: "SCHED1", SlackGroup: "<!subteam^S1>",
			})
			assert.Equal(t, domain.Assignee{Mention: "<!subteam^S1>", Source: domain.SourceGroup}, got)
		})
	}
}

func TestResolveAssignee_NoTierMatches(t *testing.T) {
	r := NewOnCallResolver(nil, newFakeChat(), testLogger(), nil)

	got := r.ResolveAssignee(context.Background(), &domain.Team{ID: "NONE", Display: "Nobody"})
	assert.True(t, got.Unassigned())
	assert.Equal(t, domain.SourceUnassigned, got.Source)
	assert.Equal(t, "Nobody", got.Label(domain.Team{Display: "Nobody"}))
}

func TestResolveAssignee_NoPagingClientSkipsSchedule(t *testing.T) {
	r := NewOnCallResolver(nil, newFakeChat(), testLogger(), nil)

	got := r.ResolveAssignee(context.Background(), &domain.Team{ID: "FE", PagerDutySchedule: "SCHED1", SlackGroup: "<!subteam^S1>"})
	assert.Equal(t, domain.SourceGroup, got.Source)
}

func TestResolveAll_KeepsTeamOrder(t *testing.T) {
	r := NewOnCallResolver(nil, newFakeChat(), testLogger(), nil)
	entries := r.ResolveAll(context.Background(), []domain.Team{
		{ID: "B", OnSupportUsers: []string{"U9"}},
		{ID: "A", SlackGroup: "<!subteam^S1>"},
	})

	if assert.Len(t, entries, 2) {
		assert.Equal(t, "B", entries[0].Team.ID)
		assert.Equal(t, domain.SourceRoster, entries[0].Assignee.Source)
		assert.Equal(t, domain.SourceGroup, entries[1].Assignee.Source)
	}
}
