package http

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-router/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-router/internal/auth"
	"github.com/spec-kit/helpdesk-router/internal/domain"
	"github.com/spec-kit/helpdesk-router/internal/events"
	"github.com/spec-kit/helpdesk-router/internal/observability"
	"github.com/spec-kit/helpdesk-router/internal/persistence"
	"github.com/spec-kit/helpdesk-router/internal/repository"
	"github.com/spec-kit/helpdesk-router/internal/service"
	apperrors "github.com/spec-kit/helpdesk-router/pkg/util/errorutil"
)

const (
	signingSecret  = "8f742231b10e8888abcd99yyyzzz85a5"
	supportChannel = "C_SUPPORT"
	ticketTS       = "1712345678.000100"
)

type ephemeral struct {
	Channel, User, Text string
}

type stubChat struct {
	mu         sync.Mutex
	posts      []service.OutboundMessage
	ephemerals []ephemeral
	views      []slack.ModalViewRequest
	panicRead  bool
}

func (c *stubChat) PostMessage(_ context.Context, msg service.OutboundMessage) (domain.MessageRef, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.posts = append(c.posts, msg)
	return domain.MessageRef{Channel: msg.Channel, TS: ticketTS}, nil
}

func (c *stubChat) UpdateMessage(context.Context, domain.MessageRef, []slack.Block, string) error {
	return nil
}

func (c *stubChat) GetMessageBlocks(context.Context, domain.MessageRef) ([]slack.Block, error) {
	if c.panicRead {
		panic("blocks unavailable")
	}
	return nil, nil
}

func (c *stubChat) PostEphemeral(_ context.Context, channel, userID, text string, _ ...slack.Block) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ephemerals = append(c.ephemerals, ephemeral{Channel: channel, User: userID, Text: text})
	return nil
}

func (c *stubChat) OpenView(_ context.Context, _ string, view slack.ModalViewRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.views = append(c.views, view)
	return nil
}

func (c *stubChat) ResolveUserName(_ context.Context, userID string) string { return userID }

func (c *stubChat) LookupUserByEmail(context.Context, string) (string, error) { return "", nil }

func (c *stubChat) ChannelTopic(context.Context, string) (string, error) { return "", nil }

func (c *stubChat) AddReaction(context.Context, string, domain.MessageRef) error { return nil }

func (c *stubChat) RemoveReaction(context.Context, string, domain.MessageRef) error { return nil }

type stubDedupe struct {
	seen map[string]bool
}

func (d *stubDedupe) MarkEventSeen(_ context.Context, eventID string, _ time.Duration) (bool, error) {
	if d.seen[eventID] {
		return false, nil
	}
	d.seen[eventID] = true
	return true, nil
}

type harness struct {
	app    *fiber.App
	chat   *stubChat
	ledger repository.LedgerRepository
	dedupe *stubDedupe
	tokens *auth.TokenManager
}

func newHarness(t *testing.T, opts ...func(*handlers.SlackDependencies)) *harness {
	t.Helper()
	ctx := context.Background()
	logger := zap.NewNop()

	teams := persistence.NewMemorySheetTable("Teams", repository.TeamColumns)
	_, err := teams.Append(ctx, map[string]string{
		"Id": "FE", "Display": "Frontend", "SlackGroup": "<!subteam^S1>", "OnSupportUsers": "U7",
	})
	require.NoError(t, err)
	topics := persistence.NewMemorySheetTable("Topics", repository.TopicColumns)
	_, err = topics.Append(ctx, map[string]string{"Id": "deploy", "Topic": "Deploys", "Teams": "FE"})
	require.NoError(t, err)

	directory := repository.NewDirectoryRepository(repository.DirectoryTables{
		Teams:       teams,
		Topics:      topics,
		AutoAnswers: persistence.NewMemorySheetTable("AutoAnswers", repository.AutoAnswerColumns),
	}, 0)
	ledger := repository.NewLedgerRepository(persistence.NewMemorySheetTable("Responses", repository.ResponseColumns), time.UTC)
	require.NoError(t, ledger.Append(ctx, &domain.Ticket{
		ID:            "TCK-1",
		CorrelationID: domain.NewCorrelationID(ticketTS),
		Channel:       supportChannel,
		SubmittedBy:   "U1",
		TeamID:        "FE",
		TopicID:       "deploy",
		Summary:       "deploy is stuck",
		CreatedAt:     time.Date(2024, 4, 5, 10, 0, 0, 0, time.UTC),
	}))

	chat := &stubChat{}
	dispatcher := events.NewInMemoryDispatcher()
	metrics := observability.NewMetrics()
	resolver := service.NewOnCallResolver(nil, chat, logger, metrics)
	tickets := service.NewTicketService(service.TicketDependencies{
		Directory:      directory,
		Ledger:         ledger,
		Analytics:      repository.NewAnalyticsRepository(persistence.NewMemorySheetTable("AnswerAnalytics", repository.AnswerAnalyticsColumns)),
		Resolver:       resolver,
		Chat:           chat,
		Dispatcher:     dispatcher,
		Logger:         logger,
		Metrics:        metrics,
		SupportChannel: supportChannel,
	})
	roster := service.NewRosterService(service.RosterDependencies{
		Directory:      directory,
		Resolver:       resolver,
		Chat:           chat,
		Dispatcher:     dispatcher,
		Logger:         logger,
		Metrics:        metrics,
		SupportChannel: supportChannel,
	})
	help := service.NewHelpService(directory, chat, logger)
	dedupe := &stubDedupe{seen: map[string]bool{}}
	tokens := auth.NewTokenManager("admin-secret", 60)

	slackDeps := handlers.SlackDependencies{
		Tickets:        tickets,
		Roster:         roster,
		Help:           help,
		Steps:          service.NewWorkflowSteps(),
		Chat:           chat,
		Dedupe:         dedupe,
		DedupeTTL:      time.Hour,
		BotUserID:      "UBOT",
		SupportChannel: supportChannel,
		Logger:         logger,
	}
	for _, opt := range opts {
		opt(&slackDeps)
	}

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, 0)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("helpdesk-router", "test", nil, nil, metrics),
		Slack:          handlers.NewSlackHandler(slackDeps),
		Admin:          handlers.NewAdminHandler(directory, tickets, roster, logger),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
		SigningSecret:  signingSecret,
	})

	return &harness{app: app, chat: chat, ledger: ledger, dedupe: dedupe, tokens: tokens}
}

func signedRequest(path, contentType, body string, at time.Time) *nethttp.Request {
	stamp := strconv.FormatInt(at.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(signingSecret))
	mac.Write([]byte("v0:" + stamp + ":" + body))

	req := httptest.NewRequest(nethttp.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Slack-Request-Timestamp", stamp)
	req.Header.Set("X-Slack-Signature", "v0="+hex.EncodeToString(mac.Sum(nil)))
	return req
}

func eventRequest(eventID string, event map[string]any) *nethttp.Request {
	body, _ := json.Marshal(map[string]any{
		"token":      "unused",
		"team_id":    "T1",
		"api_app_id": "A1",
		"type":       "event_callback",
		"event_id":   eventID,
		"event_time": 1712345679,
		"event":      event,
	})
	return signedRequest("/slack/events", fiber.MIMEApplicationJSON, string(body), time.Now())
}

func reaction(eventUser, channel string) map[string]any {
	return map[string]any{
		"type":     "reaction_added",
		"user":     eventUser,
		"reaction": "eyes",
		"item":     map[string]any{"type": "message", "channel": channel, "ts": ticketTS},
		"event_ts": "1712345691.000300",
	}
}

func closeClick(user string) *nethttp.Request {
	payload := `{"type":"block_actions","user":{"id":"` + user + `"},"channel":{"id":"` + supportChannel + `"},` +
		`"actions":[{"action_id":"close_ticket","block_id":"close","value":"TCK-1"}]}`
	form := url.Values{"payload": {payload}}
	return signedRequest("/slack/interactions", fiber.MIMEApplicationForm, form.Encode(), time.Now())
}

type fullRunner struct{}

func (fullRunner) Submit(string, func(context.Context)) error {
	return errors.New("worker queue full")
}

type inlineRunner struct{}

func (inlineRunner) Submit(_ string, fn func(context.Context)) error {
	fn(context.Background())
	return nil
}

func withRunner(r service.Runner) func(*handlers.SlackDependencies) {
	return func(d *handlers.SlackDependencies) { d.Runner = r }
}

func threadReply(user string) map[string]any {
	return map[string]any{
		"type":      "message",
		"channel":   supportChannel,
		"user":      user,
		"text":      "looking into it",
		"ts":        "1712345690.000200",
		"thread_ts": ticketTS,
	}
}

func (h *harness) do(t *testing.T, req *nethttp.Request) (int, map[string]any) {
	t.Helper()
	resp, err := h.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out)
	}
	return resp.StatusCode, out
}

func (h *harness) firstReplyAt(t *testing.T) *time.Time {
	t.Helper()
	ticket, err := h.ledger.FindByTicketID(context.Background(), "TCK-1")
	require.NoError(t, err)
	return ticket.FirstReplyAt
}

func (h *harness) adminRequest(t *testing.T, method, path string, scopes ...string) *nethttp.Request {
	t.Helper()
	token, _, err := h.tokens.GenerateToken("ops", scopes)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func TestSlackRejectsBadSignature(t *testing.T) {
	h := newHarness(t)
	req := signedRequest("/slack/commands", fiber.MIMEApplicationForm, "command=%2Fhelp", time.Now())
	req.Header.Set("X-Slack-Signature", "v0=deadbeef")

	status, body := h.do(t, req)

	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", errorCode(body))
	assert.Empty(t, h.chat.ephemerals)
}

func TestSlackRejectsStaleRequest(t *testing.T) {
	h := newHarness(t)
	req := signedRequest("/slack/commands", fiber.MIMEApplicationForm, "command=%2Fhelp", time.Now().Add(-10*time.Minute))

	status, _ := h.do(t, req)

	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestURLVerificationEchoesChallenge(t *testing.T) {
	h := newHarness(t)
	body := `{"token":"unused","challenge":"3eZbrw1aBm2rZgRNFdxV2595E9CY3gmdALWMmHkvFXO7tYXAYM8P","type":"url_verification"}`

	status, out := h.do(t, signedRequest("/slack/events", fiber.MIMEApplicationJSON, body, time.Now()))

	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "3eZbrw1aBm2rZgRNFdxV2595E9CY3gmdALWMmHkvFXO7tYXAYM8P", out["challenge"])
}

func TestHelpCommandPostsEphemeralHelp(t *testing.T) {
	h := newHarness(t)
	form := url.Values{"command": {"/help"}, "user_id": {"U1"}, "channel_id": {"C9"}}

	status, _ := h.do(t, signedRequest("/slack/commands", fiber.MIMEApplicationForm, form.Encode(), time.Now()))

	assert.Equal(t, fiber.StatusOK, status)
	require.Len(t, h.chat.ephemerals, 1)
	assert.Equal(t, "U1", h.chat.ephemerals[0].User)
	assert.Equal(t, "C9", h.chat.ephemerals[0].Channel)
}

func TestSupportCommandOpensModal(t *testing.T) {
	h := newHarness(t)
	form := url.Values{"command": {"/support"}, "user_id": {"U1"}, "trigger_id": {"trig"}}

	status, _ := h.do(t, signedRequest("/slack/commands", fiber.MIMEApplicationForm, form.Encode(), time.Now()))

	assert.Equal(t, fiber.StatusOK, status)
	require.Len(t, h.chat.views, 1)
	assert.Equal(t, "support_modal_view", h.chat.views[0].CallbackID)
}

func TestThreadReplyStampsFirstReply(t *testing.T) {
	h := newHarness(t)

	status, _ := h.do(t, eventRequest("Ev1", threadReply("U9")))

	assert.Equal(t, fiber.StatusOK, status)
	assert.NotNil(t, h.firstReplyAt(t))
}

func TestBotThreadReplyIsIgnored(t *testing.T) {
	h := newHarness(t)

	status, _ := h.do(t, eventRequest("Ev2", threadReply("UBOT")))

	assert.Equal(t, fiber.StatusOK, status)
	assert.Nil(t, h.firstReplyAt(t))
}

func TestReactionStampsFirstReplyOnce(t *testing.T) {
	h := newHarness(t)

	status, _ := h.do(t, eventRequest("Ev10", reaction("U9", supportChannel)))
	require.Equal(t, fiber.StatusOK, status)
	first := h.firstReplyAt(t)
	require.NotNil(t, first)

	_, _ = h.do(t, eventRequest("Ev11", reaction("U8", supportChannel)))
	second := h.firstReplyAt(t)
	require.NotNil(t, second)
	assert.True(t, first.Equal(*second))
}

func TestReactionIgnoredFromBotOrOtherChannel(t *testing.T) {
	h := newHarness(t)

	_, _ = h.do(t, eventRequest("Ev12", reaction("UBOT", supportChannel)))
	assert.Nil(t, h.firstReplyAt(t))

	_, _ = h.do(t, eventRequest("Ev13", reaction("U9", "C_OTHER")))
	assert.Nil(t, h.firstReplyAt(t))
}

func TestQueueFullApologisesToActingUser(t *testing.T) {
	h := newHarness(t, withRunner(fullRunner{}))

	status, _ := h.do(t, closeClick("U9"))

	assert.Equal(t, fiber.StatusOK, status)
	require.Len(t, h.chat.ephemerals, 1)
	assert.Equal(t, ephemeral{Channel: supportChannel, User: "U9", Text: apperrors.UserMessage(errors.New("x"))}, h.chat.ephemerals[0])
	assert.Empty(t, h.chat.posts)
}

func TestPanickingTaskApologisesToActingUser(t *testing.T) {
	h := newHarness(t, withRunner(inlineRunner{}))
	h.chat.panicRead = true

	status, _ := h.do(t, closeClick("U9"))

	assert.Equal(t, fiber.StatusOK, status)
	require.Len(t, h.chat.ephemerals, 1)
	assert.Equal(t, "U9", h.chat.ephemerals[0].User)
	assert.Equal(t, apperrors.UserMessage(errors.New("x")), h.chat.ephemerals[0].Text)

	ticket, err := h.ledger.FindByTicketID(context.Background(), "TCK-1")
	require.NoError(t, err)
	assert.Nil(t, ticket.ClosedAt)
}

func TestRetriedEventIsDropped(t *testing.T) {
	h := newHarness(t)
	h.dedupe.seen["Ev3"] = true

	status, _ := h.do(t, eventRequest("Ev3", threadReply("U9")))

	assert.Equal(t, fiber.StatusOK, status)
	assert.Nil(t, h.firstReplyAt(t))
}

func TestGreetingRepliesInThread(t *testing.T) {
	h := newHarness(t)

	_, _ = h.do(t, eventRequest("Ev4", map[string]any{
		"type": "message", "channel": "C5", "user": "U2", "text": "Hello!", "ts": "1712345700.000100",
	}))

	require.Len(t, h.chat.posts, 1)
	assert.Equal(t, "1712345700.000100", h.chat.posts[0].ThreadTS)
	assert.Contains(t, h.chat.posts[0].Text, "<@U2>")
}

func TestSupportSubmissionReportsMissingFields(t *testing.T) {
	h := newHarness(t)
	payload := `{"type":"view_submission","user":{"id":"U1"},"view":{"callback_id":"support_modal_view","state":{"values":{}}}}`
	form := url.Values{"payload": {payload}}

	status, out := h.do(t, signedRequest("/slack/interactions", fiber.MIMEApplicationForm, form.Encode(), time.Now()))

	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "errors", out["response_action"])
	errs, _ := out["errors"].(map[string]any)
	assert.Len(t, errs, 3)
	assert.Empty(t, h.chat.posts)
}

func TestAdminRequiresBearerToken(t *testing.T) {
	h := newHarness(t)

	status, body := h.do(t, httptest.NewRequest(nethttp.MethodGet, "/admin/tickets/TCK-1", nil))

	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", errorCode(body))
}

func TestAdminGetTicket(t *testing.T) {
	h := newHarness(t)

	status, body := h.do(t, h.adminRequest(t, nethttp.MethodGet, "/admin/tickets/TCK-1", auth.ScopeTicketsRead))

	require.Equal(t, fiber.StatusOK, status)
	data, _ := body["data"].(map[string]any)
	assert.Equal(t, "TCK-1", data["id"])
	assert.Equal(t, "CREATED", data["state"])
	assert.Equal(t, "msgId:"+ticketTS, data["correlation_id"])
}

func TestAdminGetUnknownTicket(t *testing.T) {
	h := newHarness(t)

	status, body := h.do(t, h.adminRequest(t, nethttp.MethodGet, "/admin/tickets/TCK-404", auth.ScopeTicketsRead))

	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(body))
}

func TestAdminScopeIsEnforced(t *testing.T) {
	h := newHarness(t)

	status, body := h.do(t, h.adminRequest(t, nethttp.MethodPost, "/admin/directory/refresh", auth.ScopeTicketsRead))

	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", errorCode(body))
}

func TestAdminRefreshDirectory(t *testing.T) {
	h := newHarness(t)

	status, body := h.do(t, h.adminRequest(t, nethttp.MethodPost, "/admin/directory/refresh"))

	require.Equal(t, fiber.StatusOK, status)
	data, _ := body["data"].(map[string]any)
	assert.EqualValues(t, 1, data["teams"])
	assert.EqualValues(t, 1, data["topics"])
}

func TestAdminTeamOnCall(t *testing.T) {
	h := newHarness(t)

	status, body := h.do(t, h.adminRequest(t, nethttp.MethodGet, "/admin/teams/FE/oncall", auth.ScopeOnCallRead))

	require.Equal(t, fiber.StatusOK, status)
	data, _ := body["data"].(map[string]any)
	assert.Equal(t, "roster", data["source"])
	assert.Equal(t, "<@U7>", data["mention"])
}

func TestHealthLiveAndReady(t *testing.T) {
	h := newHarness(t)

	status, body := h.do(t, httptest.NewRequest(nethttp.MethodGet, "/health/live", nil))
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "alive", body["status"])

	status, body = h.do(t, httptest.NewRequest(nethttp.MethodGet, "/health/ready", nil))
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "ready", body["status"])
}
