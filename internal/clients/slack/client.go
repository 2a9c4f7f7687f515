// Package slackclient adapts the slack-go Web API client to the router's
// chat and workflow ports.
package slackclient

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/slack-go/slack"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-router/internal/domain"
	"github.com/spec-kit/helpdesk-router/internal/service"
)

// Client implements service.ChatClient and service.WorkflowClient.
type Client struct {
	api    *slack.Client
	logger *zap.Logger
}

// New builds a client from a bot token. Extra options are passed to
// slack.New, which is how tests point it at a local server.
func New(botToken string, logger *zap.Logger, opts ...slack.Option) *Client {
	return &Client{api: slack.New(botToken, opts...), logger: logger}
}

// API exposes the underlying client for the event and interaction handlers.
func (c *Client) API() *slack.Client { return c.api }

func (c *Client) PostMessage(ctx context.Context, msg service.OutboundMessage) (domain.MessageRef, error) {
	opts := []slack.MsgOption{slack.MsgOptionText(msg.Text, false)}
	if len(msg.Blocks) > 0 {
		opts = append(opts, slack.MsgOptionBlocks(msg.Blocks...))
	}
	if msg.ThreadTS != "" {
		opts = append(opts, slack.MsgOptionTS(msg.ThreadTS))
	}
	if !msg.LinkPreview {
		opts = append(opts, slack.MsgOptionDisableLinkUnfurl())
	}
	channel, ts, err := c.api.PostMessageContext(ctx, msg.Channel, opts...)
	if err != nil {
		return domain.MessageRef{}, fmt.Errorf("chat.postMessage %s: %w", msg.Channel, err)
	}
	return domain.MessageRef{Channel: channel, TS: ts}, nil
}

func (c *Client) UpdateMessage(ctx context.Context, ref domain.MessageRef, blocks []slack.Block, text string) error {
	_, _, _, err := c.api.UpdateMessageContext(ctx, ref.Channel, ref.TS,
		slack.MsgOptionText(text, false),
		slack.MsgOptionBlocks(blocks...),
	)
	if err != nil {
		return fmt.Errorf("chat.update %s/%s: %w", ref.Channel, ref.TS, err)
	}
	return nil
}

// GetMessageBlocks reads the current blocks of one message from the
// channel history.
func (c *Client) GetMessageBlocks(ctx context.Context, ref domain.MessageRef) ([]slack.Block, error) {
	resp, err := c.api.GetConversationHistoryContext(ctx, &slack.GetConversationHistoryParameters{
		ChannelID: ref.Channel,
		Latest:    ref.TS,
		Oldest:    ref.TS,
		Inclusive: true,
		Limit:     1,
	})
	if err != nil {
		return nil, fmt.Errorf("conversations.history %s/%s: %w", ref.Channel, ref.TS, err)
	}
	for _, m := range resp.Messages {
		if m.Timestamp == ref.TS {
			return m.Blocks.BlockSet, nil
		}
	}
	return nil, fmt.Errorf("message %s/%s not found", ref.Channel, ref.TS)
}

func (c *Client) PostEphemeral(ctx context.Context, channel, userID, text string, blocks ...slack.Block) error {
	opts := []slack.MsgOption{slack.MsgOptionText(text, false)}
	if len(blocks) > 0 {
		opts = append(opts, slack.MsgOptionBlocks(blocks...))
	}
	if _, err := c.api.PostEphemeralContext(ctx, channel, userID, opts...); err != nil {
		return fmt.Errorf("chat.postEphemeral %s: %w", channel, err)
	}
	return nil
}

func (c *Client) OpenView(ctx context.Context, triggerID string, view slack.ModalViewRequest) error {
	if _, err := c.api.OpenViewContext(ctx, triggerID, view); err != nil {
		return fmt.Errorf("views.open: %w", describeViewError(err))
	}
	return nil
}

// ResolveUserName prefers the display name, then the real name, then the
// handle. Any failure yields userID.
func (c *Client) ResolveUserName(ctx context.Context, userID string) string {
	user, err := c.api.GetUserInfoContext(ctx, userID)
	if err != nil {
		c.logger.Debug("user lookup failed", zap.String("user", userID), zap.Error(err))
		return userID
	}
	for _, name := range []string{user.Profile.DisplayName, user.RealName, user.Name} {
		if strings.TrimSpace(name) != "" {
			return name
		}
	}
	return userID
}

func (c *Client) LookupUserByEmail(ctx context.Context, email string) (string, error) {
	user, err := c.api.GetUserByEmailContext(ctx, email)
	if err != nil {
		return "", fmt.Errorf("users.lookupByEmail: %w", err)
	}
	return user.ID, nil
}

func (c *Client) ChannelTopic(ctx context.Context, channel string) (string, error) {
	ch, err := c.api.GetConversationInfoContext(ctx, &slack.GetConversationInfoInput{ChannelID: channel})
	if err != nil {
		return "", fmt.Errorf("conversations.info %s: %w", channel, err)
	}
	return ch.Topic.Value, nil
}

func (c *Client) AddReaction(ctx context.Context, name string, ref domain.MessageRef) error {
	err := c.api.AddReactionContext(ctx, name, slack.NewRefToMessage(ref.Channel, ref.TS))
	if err != nil && !isSlackError(err, "already_reacted") {
		return fmt.Errorf("reactions.add: %w", err)
	}
	return nil
}

func (c *Client) RemoveReaction(ctx context.Context, name string, ref domain.MessageRef) error {
	err := c.api.RemoveReactionContext(ctx, name, slack.NewRefToMessage(ref.Channel, ref.TS))
	if err != nil && !isSlackError(err, "no_reaction") {
		return fmt.Errorf("reactions.remove: %w", err)
	}
	return nil
}

// BotUserID returns the user id of the token owner.
func (c *Client) BotUserID(ctx context.Context) (string, error) {
	resp, err := c.api.AuthTestContext(ctx)
	if err != nil {
		return "", fmt.Errorf("auth.test: %w", err)
	}
	return resp.UserID, nil
}

func (c *Client) SaveWorkflowStep(ctx context.Context, editID string, inputs *slack.WorkflowStepInputs, outputs *[]slack.WorkflowStepOutput) error {
	if err := c.api.SaveWorkflowStepConfigurationContext(ctx, editID, inputs, outputs); err != nil {
		return fmt.Errorf("workflows.updateStep: %w", err)
	}
	return nil
}

// CompleteWorkflowStep and FailWorkflowStep have no context-aware variant
// in slack-go; ctx is accepted for symmetry with the other ports.
func (c *Client) CompleteWorkflowStep(_ context.Context, executeID string, outputs map[string]string) error {
	if err := c.api.WorkflowStepCompleted(executeID, slack.WorkflowStepCompletedRequestOptionOutput(outputs)); err != nil {
		return fmt.Errorf("workflows.stepCompleted: %w", err)
	}
	return nil
}

func (c *Client) FailWorkflowStep(_ context.Context, executeID, message string) error {
	if err := c.api.WorkflowStepFailed(executeID, message); err != nil {
		return fmt.Errorf("workflows.stepFailed: %w", err)
	}
	return nil
}

func isSlackError(err error, code string) bool {
	var se slack.SlackErrorResponse
	if errors.As(err, &se) {
		return se.Err == code
	}
	return strings.Contains(err.Error(), code)
}

func describeViewError(err error) error {
	var se slack.SlackErrorResponse
	if errors.As(err, &se) && len(se.ResponseMetadata.Messages) > 0 {
		return fmt.Errorf("%w: %s", err, strings.Join(se.ResponseMetadata.Messages, "; "))
	}
	return err
}

var (
	_ service.ChatClient     = (*Client)(nil)
	_ service.WorkflowClient = (*Client)(nil)
)
