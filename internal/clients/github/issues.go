// Package github mirrors tickets into a GitHub repository's issues and
// reports the review state of linked pull requests.
package github

import (
	"context"
	"fmt"
	"net/url"

	gh "github.com/google/go-github/v66/github"

	"github.com/spec-kit/helpdesk-router/internal/domain"
	"github.com/spec-kit/helpdesk-router/internal/service"
)

// api holds what every GitHub call needs.
type api struct {
	tokens  TokenSource
	baseURL *url.URL
}

func (a *api) setBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse github base url: %w", err)
	}
	a.baseURL = u
	if app, ok := a.tokens.(*AppTokenSource); ok {
		app.baseURL = u
	}
	return nil
}

func (a *api) client(ctx context.Context) (*gh.Client, error) {
	token, err := a.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	c := gh.NewClient(nil).WithAuthToken(token)
	if a.baseURL != nil {
		c.BaseURL = a.baseURL
	}
	return c, nil
}

// IssueTracker implements service.IssueTracker against one repository.
type IssueTracker struct {
	api
	owner string
	repo  string
}

// NewIssueTracker builds a tracker for owner/repo.
func NewIssueTracker(owner, repo string, tokens TokenSource) *IssueTracker {
	return &IssueTracker{api: api{tokens: tokens}, owner: owner, repo: repo}
}

// WithBaseURL points API calls at another host, such as GitHub Enterprise.
// The app token source, when used, follows the same host.
func (t *IssueTracker) WithBaseURL(raw string) (*IssueTracker, error) {
	if err := t.setBaseURL(raw); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *IssueTracker) CreateIssue(ctx context.Context, title, body string, labels []string) (domain.Issue, error) {
	c, err := t.client(ctx)
	if err != nil {
		return domain.Issue{}, err
	}
	req := &gh.IssueRequest{Title: gh.String(title), Body: gh.String(body)}
	if len(labels) > 0 {
		req.Labels = &labels
	}
	issue, _, err := c.Issues.Create(ctx, t.owner, t.repo, req)
	if err != nil {
		return domain.Issue{}, fmt.Errorf("create issue in %s/%s: %w", t.owner, t.repo, err)
	}
	return domain.Issue{Number: issue.GetNumber(), URL: issue.GetHTMLURL()}, nil
}

func (t *IssueTracker) CommentOnIssue(ctx context.Context, number int, body string) error {
	c, err := t.client(ctx)
	if err != nil {
		return err
	}
	if _, _, err := c.Issues.CreateComment(ctx, t.owner, t.repo, number, &gh.IssueComment{Body: gh.String(body)}); err != nil {
		return fmt.Errorf("comment on issue %d: %w", number, err)
	}
	return nil
}

func (t *IssueTracker) ReplaceLabels(ctx context.Context, number int, labels []string) error {
	c, err := t.client(ctx)
	if err != nil {
		return err
	}
	if labels == nil {
		labels = []string{}
	}
	if _, _, err := c.Issues.ReplaceLabelsForIssue(ctx, t.owner, t.repo, number, labels); err != nil {
		return fmt.Errorf("replace labels on issue %d: %w", number, err)
	}
	return nil
}

func (t *IssueTracker) CloseIssue(ctx context.Context, number int) error {
	c, err := t.client(ctx)
	if err != nil {
		return err
	}
	req := &gh.IssueRequest{State: gh.String("closed"), StateReason: gh.String("completed")}
	if _, _, err := c.Issues.Edit(ctx, t.owner, t.repo, number, req); err != nil {
		return fmt.Errorf("close issue %d: %w", number, err)
	}
	return nil
}

var _ service.IssueTracker = (*IssueTracker)(nil)
