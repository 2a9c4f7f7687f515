package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/slack-go/slack"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-router/internal/domain"
	"github.com/spec-kit/helpdesk-router/internal/persistence"
	"github.com/spec-kit/helpdesk-router/internal/repository"
)

// fakeChat records every call and serves message blocks back from what was
// posted or updated.
type fakeChat struct {
	mu        sync.Mutex
	seq       int
	posts     []OutboundMessage
	updates   []domain.MessageRef
	ephemeral []string
	views     []slack.ModalViewRequest
	reactions []string
	blocks    map[string][]slack.Block
	users     map[string]string
	topic     string

	postErr   error
	updateErr error
	lookupErr error
	failPosts int
}

func newFakeChat() *fakeChat {
	return &fakeChat{blocks: map[string][]slack.Block{}, users: map[string]string{}}
}

func (f *fakeChat) PostMessage(_ context.Context, msg OutboundMessage) (domain.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.postErr != nil {
		return domain.MessageRef{}, f.postErr
	}
	if f.failPosts > 0 {
		f.failPosts--
		return domain.MessageRef{}, fmt.Errorf("rate limited")
	}
	f.seq++
	ref := domain.MessageRef{Channel: msg.Channel, TS: fmt.Sprintf("1712345678.%06d", f.seq*100)}
	f.posts = append(f.posts, msg)
	if msg.ThreadTS == "" {
		f.blocks[ref.TS] = msg.Blocks
	}
	return ref, nil
}

func (f *fakeChat) UpdateMessage(_ context.Context, ref domain.MessageRef, blocks []slack.Block, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates = append(f.updates, ref)
	f.blocks[ref.TS] = blocks
	return nil
}

func (f *fakeChat) GetMessageBlocks(_ context.Context, ref domain.MessageRef) ([]slack.Block, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.blocks[ref.TS]
	if !ok {
		return nil, fmt.Errorf("message_not_found")
	}
	return b, nil
}

func (f *fakeChat) PostEphemeral(_ context.Context, _, userID, text string, _ ...slack.Block) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ephemeral = append(f.ephemeral, userID+":"+text)
	return nil
}

func (f *fakeChat) OpenView(_ context.Context, _ string, view slack.ModalViewRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.views = append(f.views, view)
	return nil
}

func (f *fakeChat) ResolveUserName(_ context.Context, userID string) string { return userID }

func (f *fakeChat) LookupUserByEmail(_ context.Context, email string) (string, error) {
	if f.lookupErr != nil {
		return "", f.lookupErr
	}
	return f.users[email], nil
}

func (f *fakeChat) ChannelTopic(context.Context, string) (string, error) { return f.topic, nil }

func (f *fakeChat) AddReaction(_ context.Context, name string, _ domain.MessageRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reactions = append(f.reactions, name)
	return nil
}

func (f *fakeChat) RemoveReaction(context.Context, string, domain.MessageRef) error { return nil }

func (f *fakeChat) threaded() []OutboundMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []OutboundMessage
	for _, p := range f.posts {
		if p.ThreadTS != "" {
			out = append(out, p)
		}
	}
	return out
}

type mockPaging struct{ mock.Mock }

func (m *mockPaging) CurrentOnCallEmail(ctx context.Context, scheduleID string) (string, error) {
	args := m.Called(ctx, scheduleID)
	return args.String(0), args.Error(1)
}

type mockIssues struct{ mock.Mock }

func (m *mockIssues) CreateIssue(ctx context.Context, title, body string, labels []string) (domain.Issue, error) {
	args := m.Called(ctx, title, body, labels)
	return args.Get(0).(domain.Issue), args.Error(1)
}

func (m *mockIssues) CommentOnIssue(ctx context.Context, number int, body string) error {
	return m.Called(ctx, number, body).Error(0)
}

func (m *mockIssues) ReplaceLabels(ctx context.Context, number int, labels []string) error {
	return m.Called(ctx, number, labels).Error(0)
}

func (m *mockIssues) CloseIssue(ctx context.Context, number int) error {
	return m.Called(ctx, number).Error(0)
}

type mockPulls struct{ mock.Mock }

func (m *mockPulls) SummarizePullRequest(ctx context.Context, ref domain.PullRequestRef) (domain.PullRequestStatus, error) {
	args := m.Called(ctx, ref)
	return args.Get(0).(domain.PullRequestStatus), args.Error(1)
}

type mockTitles struct{ mock.Mock }

func (m *mockTitles) FetchTitle(ctx context.Context, url string) (string, error) {
	args := m.Called(ctx, url)
	return args.String(0), args.Error(1)
}

type mockWorkflows struct{ mock.Mock }

func (m *mockWorkflows) SaveWorkflowStep(ctx context.Context, editID string, inputs *slack.WorkflowStepInputs, outputs *[]slack.WorkflowStepOutput) error {
	return m.Called(ctx, editID, inputs, outputs).Error(0)
}

func (m *mockWorkflows) CompleteWorkflowStep(ctx context.Context, executeID string, outputs map[string]string) error {
	return m.Called(ctx, executeID, outputs).Error(0)
}

func (m *mockWorkflows) FailWorkflowStep(ctx context.Context, executeID, message string) error {
	return m.Called(ctx, executeID, message).Error(0)
}

// inlineRunner runs submitted work immediately.
type inlineRunner struct{}

func (inlineRunner) Submit(_ string, fn func(ctx context.Context)) error {
	fn(context.Background())
	return nil
}

type fixture struct {
	directory repository.DirectoryRepository
	teams     *persistence.MemorySheetTable
	answers   *persistence.MemorySheetTable
	responses *persistence.MemorySheetTable
	analytics *persistence.MemorySheetTable
	ledger    repository.LedgerRepository
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()

	teams := persistence.NewMemorySheetTable("Teams", repository.TeamColumns)
	for _, v := range []map[string]string{
		{"Id": "FE", "Display": "Frontend", "PagerDutySchedule": "SCHED1", "SlackGroup": "<!subteam^S1>", "GitHub": "TRUE", "GitHubLabel": "team-fe"},
		{"Id": "BE", "Display": "Backend", "OnSupportUsers": "U7, U8", "SlackGroup": "<!subteam^S2>"},
		{"Id": "OPS", "Display": "Ops", "SlackGroup": "<!subteam^S3>", "GitHubLabel": "team-ops"},
		{"Id": "NONE", "Display": "Nobody"},
	} {
		_, err := teams.Append(ctx, v)
		require.NoError(t, err)
	}

	topics := persistence.NewMemorySheetTable("Topics", repository.TopicColumns)
	for _, v := range []map[string]string{
		{"Id": "deploy", "Topic": "Deploy", "Teams": "FE,BE,OPS"},
		{"Id": "access", "Topic": "Access", "Teams": "BE"},
	} {
		_, err := topics.Append(ctx, v)
		require.NoError(t, err)
	}

	answers := persistence.NewMemorySheetTable("AutoAnswers", repository.AutoAnswerColumns)
	responses := persistence.NewMemorySheetTable("Responses", repository.ResponseColumns)
	analytics := persistence.NewMemorySheetTable("AnswerAnalytics", repository.AnswerAnalyticsColumns)

	return fixture{
		directory: repository.NewDirectoryRepository(repository.DirectoryTables{
			Teams: teams, Topics: topics, AutoAnswers: answers,
		}, 0),
		teams:     teams,
		answers:   answers,
		responses: responses,
		analytics: analytics,
		ledger:    repository.NewLedgerRepository(responses, nil),
	}
}

func (f fixture) addAnswer(t *testing.T, values map[string]string) {
	t.Helper()
	_, err := f.answers.Append(context.Background(), values)
	require.NoError(t, err)
	f.directory.Invalidate()
}

func testLogger() *zap.Logger { return zap.NewNop() }
