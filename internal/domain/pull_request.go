package domain

import (
	"fmt"
	"regexp"
	"strconv"
)

var pullRequestURL = regexp.MustCompile(`https?://(?:www\.)?github\.com/([^/\s<>|]+)/([^/\s<>|]+)/pull/(\d+)`)

// PullRequestRef names one GitHub pull request.
type PullRequestRef struct {
	Owner  string
	Repo   string
	Number int
}

func (r PullRequestRef) String() string {
	return fmt.Sprintf("%s/%s#%d", r.Owner, r.Repo, r.Number)
}

// FindPullRequest returns the first pull request link in text.
func FindPullRequest(text string) (PullRequestRef, bool) {
	m := pullRequestURL.FindStringSubmatch(text)
	if m == nil {
		return PullRequestRef{}, false
	}
	n, err := strconv.Atoi(m[3])
	if err != nil || n == 0 {
		return PullRequestRef{}, false
	}
	return PullRequestRef{Owner: m[1], Repo: m[2], Number: n}, true
}

// PullRequestStatus is the review state reported back into a ticket thread.
type PullRequestStatus struct {
	Ref                  PullRequestRef
	URL                  string
	FailedChecks         []string
	OwnerReviewRequested bool
	NonOwnerApprovals    []string
}
