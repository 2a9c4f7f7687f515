package github

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	gh "github.com/google/go-github/v66/github"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/helpdesk-router/internal/domain"
	"github.com/spec-kit/helpdesk-router/internal/service"
)

var codeOwnersPaths = []string{".github/CODEOWNERS", "docs/CODEOWNERS", "CODEOWNERS"}

// PullRequestReader summarizes pull requests in any repository the token
// can read. CODEOWNERS files are cached per repository for the process
// lifetime.
type PullRequestReader struct {
	api
	mu     sync.Mutex
	owners map[string]map[string]bool
}

// NewPullRequestReader builds a reader authenticated by tokens.
func NewPullRequestReader(tokens TokenSource) *PullRequestReader {
	return &PullRequestReader{api: api{tokens: tokens}, owners: map[string]map[string]bool{}}
}

// WithBaseURL points API calls at another host.
func (r *PullRequestReader) WithBaseURL(raw string) (*PullRequestReader, error) {
	if err := r.setBaseURL(raw); err != nil {
		return nil, err
	}
	return r, nil
}

// SummarizePullRequest reports failing checks, whether a code owner was asked
// to review, and approvals from reviewers outside CODEOWNERS.
func (r *PullRequestReader) SummarizePullRequest(ctx context.Context, ref domain.PullRequestRef) (domain.PullRequestStatus, error) {
	c, err := r.client(ctx)
	if err != nil {
		return domain.PullRequestStatus{}, err
	}
	pr, _, err := c.PullRequests.Get(ctx, ref.Owner, ref.Repo, ref.Number)
	if err != nil {
		return domain.PullRequestStatus{}, fmt.Errorf("get pull request %s: %w", ref, err)
	}
	status := domain.PullRequestStatus{Ref: ref, URL: pr.GetHTMLURL()}

	var (
		owners    map[string]bool
		requested *gh.Reviewers
		reviews   []*gh.PullRequestReview
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		runs, _, err := c.Checks.ListCheckRunsForRef(gctx, ref.Owner, ref.Repo, pr.GetHead().GetSHA(),
			&gh.ListCheckRunsOptions{ListOptions: gh.ListOptions{PerPage: 100}})
		if err != nil {
			return fmt.Errorf("list check runs for %s: %w", ref, err)
		}
		status.FailedChecks = failedChecks(runs.CheckRuns)
		return nil
	})
	g.Go(func() error {
		owners = r.codeOwners(gctx, c, ref.Owner, ref.Repo)
		return nil
	})
	g.Go(func() error {
		var err error
		requested, _, err = c.PullRequests.ListReviewers(gctx, ref.Owner, ref.Repo, ref.Number, nil)
		if err != nil {
			return fmt.Errorf("list reviewers for %s: %w", ref, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		reviews, _, err = c.PullRequests.ListReviews(gctx, ref.Owner, ref.Repo, ref.Number, &gh.ListOptions{PerPage: 100})
		if err != nil {
			return fmt.Errorf("list reviews for %s: %w", ref, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return domain.PullRequestStatus{}, err
	}

	for _, u := range requested.Users {
		if owners[strings.ToLower(u.GetLogin())] {
			status.OwnerReviewRequested = true
		}
	}
	for _, team := range requested.Teams {
		if owners[strings.ToLower(ref.Owner+"/"+team.GetSlug())] {
			status.OwnerReviewRequested = true
		}
	}
	seen := map[string]bool{}
	for _, review := range reviews {
		login := review.GetUser().GetLogin()
		if review.GetState() != "APPROVED" || owners[strings.ToLower(login)] || seen[login] {
			continue
		}
		seen[login] = true
		status.NonOwnerApprovals = append(status.NonOwnerApprovals, login)
	}
	return status, nil
}

// failedChecks lists runs that did not pass. Runs still in progress count as
// not passed.
func failedChecks(runs []*gh.CheckRun) []string {
	var out []string
	for _, run := range runs {
		switch run.GetConclusion() {
		case "success", "neutral", "skipped":
			continue
		}
		out = append(out, run.GetName())
	}
	return out
}

// codeOwners returns the lower-cased owners named in the repository's
// CODEOWNERS file, without the leading @. A repository without one has no
// owners. Read failures other than not-found are not cached.
func (r *PullRequestReader) codeOwners(ctx context.Context, c *gh.Client, owner, repo string) map[string]bool {
	key := owner + "/" + repo
	r.mu.Lock()
	cached, ok := r.owners[key]
	r.mu.Unlock()
	if ok {
		return cached
	}

	owners := map[string]bool{}
	for _, path := range codeOwnersPaths {
		file, _, resp, err := c.Repositories.GetContents(ctx, owner, repo, path, nil)
		if err != nil {
			if resp != nil && resp.StatusCode == http.StatusNotFound {
				continue
			}
			return owners
		}
		if file == nil {
			continue
		}
		content, err := file.GetContent()
		if err != nil {
			return owners
		}
		owners = parseCodeOwners(content)
		break
	}

	r.mu.Lock()
	r.owners[key] = owners
	r.mu.Unlock()
	return owners
}

func parseCodeOwners(content string) map[string]bool {
	owners := map[string]bool{}
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		for _, o := range fields[1:] {
			if strings.HasPrefix(o, "#") {
				break
			}
			owners[strings.ToLower(strings.TrimPrefix(o, "@"))] = true
		}
	}
	return owners
}

var _ service.PullRequestSummarizer = (*PullRequestReader)(nil)
