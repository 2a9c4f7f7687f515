// Package pagerduty answers who is currently on call for a schedule.
package pagerduty

import (
	"context"
	"fmt"
	"time"

	"github.com/PagerDuty/go-pagerduty"

	"github.com/spec-kit/helpdesk-router/internal/service"
)

// Client implements service.PagingClient.
type Client struct {
	api *pagerduty.Client
	now func() time.Time
}

// New builds a client. An empty endpoint uses the public API.
func New(apiKey, endpoint string) *Client {
	var opts []pagerduty.ClientOptions
	if endpoint != "" {
		opts = append(opts, pagerduty.WithAPIEndpoint(endpoint))
	}
	return &Client{api: pagerduty.NewClient(apiKey, opts...), now: time.Now}
}

// CurrentOnCallEmail renders the schedule for the current instant and
// returns the email of the first user in the final layer. An empty result
// means nobody is on call.
func (c *Client) CurrentOnCallEmail(ctx context.Context, scheduleID string) (string, error) {
	now := c.now().UTC().Format(time.RFC3339)
	schedule, err := c.api.GetScheduleWithContext(ctx, scheduleID, pagerduty.GetScheduleOptions{
		Since: now,
		Until: now,
	})
	if err != nil {
		return "", fmt.Errorf("get schedule %s: %w", scheduleID, err)
	}

	entries := schedule.FinalSchedule.RenderedScheduleEntries
	if len(entries) == 0 || entries[0].User.ID == "" {
		return "", nil
	}

	user, err := c.api.GetUserWithContext(ctx, entries[0].User.ID, pagerduty.GetUserOptions{})
	if err != nil {
		return "", fmt.Errorf("get user %s: %w", entries[0].User.ID, err)
	}
	return user.Email, nil
}

var _ service.PagingClient = (*Client)(nil)
