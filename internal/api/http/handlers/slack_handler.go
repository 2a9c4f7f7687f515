package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-router/internal/domain"
	"github.com/spec-kit/helpdesk-router/internal/render"
	"github.com/spec-kit/helpdesk-router/internal/service"
	apperrors "github.com/spec-kit/helpdesk-router/pkg/util/errorutil"
)

// SupportShortcut is the callback id of the global "open support form" shortcut.
const SupportShortcut = "support"

// EventDeduper remembers processed event ids so platform retries are dropped.
type EventDeduper interface {
	MarkEventSeen(ctx context.Context, eventID string, ttl time.Duration) (bool, error)
}

// SlackHandler serves slash commands, interactivity and the Events API.
// Every endpoint acknowledges quickly; slow work goes to the runner.
type SlackHandler struct {
	tickets        *service.TicketService
	roster         *service.RosterService
	help           *service.HelpService
	steps          service.WorkflowSteps
	chat           service.ChatClient
	runner         service.Runner
	dedupe         EventDeduper
	dedupeTTL      time.Duration
	botUserID      string
	supportChannel string
	logger         *zap.Logger
}

// SlackDependencies bundles collaborators for the Slack handler.
type SlackDependencies struct {
	Tickets        *service.TicketService
	Roster         *service.RosterService
	Help           *service.HelpService
	Steps          service.WorkflowSteps
	Chat           service.ChatClient
	Runner         service.Runner
	Dedupe         EventDeduper
	DedupeTTL      time.Duration
	BotUserID      string
	SupportChannel string
	Logger         *zap.Logger
}

// NewSlackHandler constructs the handler.
func NewSlackHandler(deps SlackDependencies) *SlackHandler {
	return &SlackHandler{
		tickets:        deps.Tickets,
		roster:         deps.Roster,
		help:           deps.Help,
		steps:          deps.Steps,
		chat:           deps.Chat,
		runner:         deps.Runner,
		dedupe:         deps.Dedupe,
		dedupeTTL:      deps.DedupeTTL,
		botUserID:      deps.BotUserID,
		supportChannel: deps.SupportChannel,
		logger:         deps.Logger,
	}
}

// Commands handles /help, /support and /oncall.
func (h *SlackHandler) Commands(c *fiber.Ctx) error {
	command := c.FormValue("command")
	userID := c.FormValue("user_id")
	channelID := c.FormValue("channel_id")
	triggerID := c.FormValue("trigger_id")
	ctx := c.UserContext()

	var err error
	switch strings.TrimPrefix(command, "/") {
	case "help":
		err = h.help.ShowHelp(ctx, channelID, userID)
	case "support":
		err = h.help.OpenSupportForm(ctx, triggerID, userID)
	case "oncall":
		err = h.roster.OpenOnCallModal(ctx, triggerID)
	default:
		return c.SendString("Unknown command " + command)
	}
	if err != nil {
		h.logger.Warn("slash command failed", zap.String("command", command), zap.Error(err))
		return c.SendString(apperrors.UserMessage(err))
	}
	return c.SendStatus(fiber.StatusOK)
}

// Interactions handles button clicks, shortcuts, modal submissions and
// workflow step configuration.
func (h *SlackHandler) Interactions(c *fiber.Ctx) error {
	var cb slack.InteractionCallback
	if err := json.Unmarshal([]byte(c.FormValue("payload")), &cb); err != nil {
		return apperrors.NewValidationError("invalid interaction payload", nil)
	}
	ctx := c.UserContext()

	switch cb.Type {
	case slack.InteractionTypeBlockActions:
		h.blockActions(ctx, &cb)
	case slack.InteractionTypeShortcut:
		if cb.CallbackID == SupportShortcut {
			if err := h.help.OpenSupportForm(ctx, cb.TriggerID, cb.User.ID); err != nil {
				h.logger.Warn("opening support form failed", zap.Error(err))
			}
		}
	case slack.InteractionTypeViewSubmission:
		return h.viewSubmission(c, &cb)
	case slack.InteractionTypeWorkflowStepEdit:
		if step, ok := h.steps.Lookup(cb.CallbackID); ok {
			if err := step.Edit(ctx, cb.TriggerID, cb.WorkflowStep.Inputs); err != nil {
				h.logger.Warn("workflow step edit failed", zap.String("step", cb.CallbackID), zap.Error(err))
			}
		}
	default:
		h.logger.Debug("ignoring interaction", zap.String("type", string(cb.Type)))
	}
	return c.SendStatus(fiber.StatusOK)
}

func (h *SlackHandler) blockActions(ctx context.Context, cb *slack.InteractionCallback) {
	userID := cb.User.ID
	channel := cb.Channel.ID
	if channel == "" {
		channel = h.supportChannel
	}

	for _, action := range cb.ActionCallback.BlockActions {
		switch action.ActionID {
		case render.ActionReassign:
			if err := h.help.OpenReassignForm(ctx, cb.TriggerID, action.Value); err != nil {
				h.notify(ctx, channel, userID, err)
			}
		case render.ActionPlatformSupport:
			if err := h.help.OpenSupportForm(ctx, cb.TriggerID, userID); err != nil {
				h.notify(ctx, channel, userID, err)
			}
		case render.ActionClose:
			ticketID := action.Value
			h.async("close:"+ticketID, channel, userID, func(ctx context.Context) {
				if err := h.tickets.Close(ctx, ticketID, userID); err != nil {
					h.notify(ctx, channel, userID, err)
				}
			})
		case render.ActionAutoAnswerYes, render.ActionAutoAnswerNo:
			var v render.AnswerFeedbackValue
			if err := json.Unmarshal([]byte(action.Value), &v); err != nil {
				h.logger.Warn("invalid feedback value", zap.String("value", action.Value))
				continue
			}
			helpful := action.ActionID == render.ActionAutoAnswerYes
			h.async("feedback:"+v.TicketID, channel, userID, func(ctx context.Context) {
				if err := h.tickets.RecordAnswerFeedback(ctx, v.TicketID, userID, helpful); err != nil {
					h.notify(ctx, channel, userID, err)
					return
				}
				if err := h.chat.PostEphemeral(ctx, channel, userID, render.FeedbackThanks(helpful)); err != nil {
					h.logger.Debug("feedback acknowledgement failed", zap.Error(err))
				}
			})
		}
	}
}

func (h *SlackHandler) viewSubmission(c *fiber.Ctx, cb *slack.InteractionCallback) error {
	userID := cb.User.ID
	ctx := c.UserContext()

	switch cb.View.CallbackID {
	case render.SupportModalCallback:
		sub := render.ParseSupportSubmission(cb.View.State, userID)
		if missing := sub.Missing(); len(missing) > 0 {
			return c.JSON(slack.NewErrorsViewSubmissionResponse(missingFieldErrors(missing)))
		}
		h.async("create", h.supportChannel, userID, func(ctx context.Context) {
			if _, err := h.tickets.Create(ctx, sub); err != nil {
				h.notify(ctx, h.supportChannel, userID, err)
			}
		})
	case render.ReassignModalCallback:
		ticketID, teamID := render.ParseReassignSubmission(cb.View)
		h.async("reassign:"+ticketID, h.supportChannel, userID, func(ctx context.Context) {
			if err := h.tickets.Reassign(ctx, ticketID, teamID, userID); err != nil {
				h.notify(ctx, h.supportChannel, userID, err)
			}
		})
	case render.OnCallModalCallback:
		teamID, users := render.ParseOnCallSubmission(cb.View.State)
		if teamID == "" {
			return c.JSON(slack.NewErrorsViewSubmissionResponse(map[string]string{render.InputTeam: "Please select a team"}))
		}
		h.async("roster:"+teamID, h.supportChannel, userID, func(ctx context.Context) {
			if err := h.roster.SetOnSupport(ctx, teamID, users, userID); err != nil {
				h.notify(ctx, h.supportChannel, userID, err)
			}
		})
	default:
		step, ok := h.steps.Lookup(cb.View.CallbackID)
		if !ok {
			h.logger.Debug("ignoring view submission", zap.String("callback", cb.View.CallbackID))
			break
		}
		if err := step.Save(ctx, cb.WorkflowStep.WorkflowStepEditID, cb.View.State); err != nil {
			h.logger.Warn("workflow step save failed", zap.String("step", cb.View.CallbackID), zap.Error(err))
		}
	}
	return c.SendStatus(fiber.StatusOK)
}

// Events handles the Events API endpoint.
func (h *SlackHandler) Events(c *fiber.Ctx) error {
	body := c.Body()
	event, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		return apperrors.NewValidationError("invalid event payload", nil)
	}

	switch event.Type {
	case slackevents.URLVerification:
		v, ok := event.Data.(*slackevents.EventsAPIURLVerificationEvent)
		if !ok {
			return apperrors.NewValidationError("invalid url verification", nil)
		}
		return c.JSON(fiber.Map{"challenge": v.Challenge})
	case slackevents.CallbackEvent:
	default:
		return c.SendStatus(fiber.StatusOK)
	}

	if cb, ok := event.Data.(*slackevents.EventsAPICallbackEvent); ok && h.dedupe != nil {
		fresh, err := h.dedupe.MarkEventSeen(c.UserContext(), cb.EventID, h.dedupeTTL)
		if err != nil {
			h.logger.Warn("event de-duplication unavailable", zap.Error(err))
		} else if !fresh {
			h.logger.Debug("dropping retried event", zap.String("event_id", cb.EventID))
			return c.SendStatus(fiber.StatusOK)
		}
	}

	inner := event.InnerEvent
	h.async("event:"+inner.Type, "", "", func(ctx context.Context) {
		h.dispatchEvent(ctx, inner)
	})
	return c.SendStatus(fiber.StatusOK)
}

// dispatchEvent routes one inner event. It runs after the request has been
// acknowledged.
func (h *SlackHandler) dispatchEvent(ctx context.Context, inner slackevents.EventsAPIInnerEvent) {
	switch ev := inner.Data.(type) {
	case *slackevents.AppMentionEvent:
		if h.fromBot(ev.User, ev.BotID) {
			return
		}
		h.logErr("help on mention", h.help.ShowHelp(ctx, ev.Channel, ev.User))
	case *slackevents.MemberJoinedChannelEvent:
		if ev.User == h.botUserID {
			return
		}
		h.logErr("help on join", h.help.ShowHelp(ctx, ev.Channel, ev.User))
	case *slackevents.MessageEvent:
		h.onMessage(ctx, ev)
	case *slackevents.ReactionAddedEvent:
		if h.fromBot(ev.User, "") || ev.Item.Type != "message" || ev.Item.Channel != h.supportChannel {
			return
		}
		h.logErr("first reply from reaction",
			h.tickets.RecordFirstReply(ctx, domain.NewCorrelationID(ev.Item.Timestamp), ev.User))
	case *slackevents.WorkflowStepExecuteEvent:
		step, ok := h.steps.Lookup(ev.CallbackID)
		if !ok {
			h.logger.Warn("unknown workflow step", zap.String("callback", ev.CallbackID))
			return
		}
		h.logErr("workflow step execute",
			step.Execute(ctx, ev.WorkflowStep.WorkflowStepExecuteID, ev.WorkflowStep.Inputs))
	default:
		h.logger.Debug("ignoring event", zap.String("type", inner.Type))
	}
}

func (h *SlackHandler) onMessage(ctx context.Context, ev *slackevents.MessageEvent) {
	if h.fromBot(ev.User, ev.BotID) || ev.SubType != "" {
		return
	}
	if ev.ThreadTimeStamp != "" && ev.ThreadTimeStamp != ev.TimeStamp {
		if ev.Channel != h.supportChannel {
			return
		}
		h.logErr("first reply",
			h.tickets.RecordFirstReply(ctx, domain.NewCorrelationID(ev.ThreadTimeStamp), ev.User))
		return
	}
	if isGreeting(ev.Text) {
		h.logErr("greeting", h.help.Greet(ctx, ev.Channel, ev.TimeStamp, ev.User))
	}
}

func (h *SlackHandler) fromBot(userID, botID string) bool {
	return botID != "" || (h.botUserID != "" && userID == h.botUserID)
}

// async runs fn after the acknowledgement. A task that cannot be queued or
// that panics still ends with an apology to the acting user.
func (h *SlackHandler) async(name, channel, userID string, fn func(ctx context.Context)) {
	task := func(ctx context.Context) {
		defer func() {
			if r := recover(); r != nil {
				h.logger.Error("task panicked", zap.String("task", name), zap.Any("panic", r))
				h.notify(ctx, channel, userID, apperrors.NewInternalError(fmt.Errorf("%s: panic: %v", name, r)))
			}
		}()
		fn(ctx)
	}
	if h.runner == nil {
		task(context.Background())
		return
	}
	if err := h.runner.Submit(name, task); err != nil {
		h.logger.Error("dropping work", zap.String("task", name), zap.Error(err))
		h.notify(context.Background(), channel, userID, apperrors.NewInternalError(err))
	}
}

// notify tells the acting user what went wrong, visible only to them.
func (h *SlackHandler) notify(ctx context.Context, channel, userID string, err error) {
	h.logger.Warn("interaction failed", zap.String("user", userID), zap.Error(err))
	if channel == "" || userID == "" {
		return
	}
	if perr := h.chat.PostEphemeral(ctx, channel, userID, apperrors.UserMessage(err)); perr != nil {
		h.logger.Warn("error notice failed", zap.Error(perr))
	}
}

func (h *SlackHandler) logErr(what string, err error) {
	if err != nil {
		h.logger.Warn(what+" failed", zap.Error(err))
	}
}

func isGreeting(text string) bool {
	switch strings.ToLower(strings.Trim(strings.TrimSpace(text), "!.")) {
	case "hello", "hi", "hey":
		return true
	}
	return false
}

func missingFieldErrors(missing []string) map[string]string {
	blocks := map[string]string{"team": render.InputTeam, "topic": render.InputTopic, "summary": render.InputSummary}
	out := map[string]string{}
	for _, m := range missing {
		if b, ok := blocks[m]; ok {
			out[b] = "This field is required"
		}
	}
	return out
}
