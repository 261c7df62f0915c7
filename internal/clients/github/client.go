// package github fetches merged pull request snapshots from the GitHub API
// and maps them into domain records. Every expensive fetch is memoized in the
// disk cache so repeated runs inside the TTL window cost no API calls.
package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	gh "github.com/google/go-github/v57/github"
	"github.com/grcops/pr-compliance/internal/apperrors"
	"github.com/grcops/pr-compliance/internal/cache"
	"github.com/grcops/pr-compliance/internal/domain"
	"github.com/grcops/pr-compliance/pkg/logger/sl"
)

const maxPerPage = 100

type Client struct {
	github *gh.Client
	cache  *cache.Cache
	log    *slog.Logger
	ttl    time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client and API base URL, used
// by tests to point the client at a local server.
func WithHTTPClient(httpClient *http.Client, baseURL string) Option {
	return func(c *Client) {
		client := gh.NewClient(httpClient)
		if baseURL != "" {
			if !strings.HasSuffix(baseURL, "/") {
				baseURL += "/"
			}

			parsed, err := url.Parse(baseURL)
			if err != nil {
				panic(fmt.Sprintf("invalid github base url '%s': %v", baseURL, err))
			}

			client.BaseURL = parsed
		}

		c.github = client
	}
}

// NewClient creates a GitHub client authenticated with token. Fetched windows
// are cached for fetchTTL.
func NewClient(token string, prCache *cache.Cache, log *slog.Logger, fetchTTL time.Duration, opts ...Option) *Client {
	c := &Client{
		github: gh.NewClient(nil).WithAuthToken(token),
		cache:  prCache,
		log:    log,
		ttl:    fetchTTL,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// FetchMergedPullRequests returns every pull request merged into repo within
// the last days days, newest first. The repo is an "owner/name" slug. A
// failure at any point aborts the whole fetch; partial windows are never
// returned.
func (c *Client) FetchMergedPullRequests(ctx context.Context, repo string, days int) ([]domain.PullRequestRecord, error) {
	const op = "internal.clients.github.FetchMergedPullRequests"

	key := cache.Key("merged_prs", repo, strconv.Itoa(days))

	var cached []domain.PullRequestRecord
	if err := c.cache.Get(key, &cached); err == nil {
		c.log.Info("using cached pull requests",
			slog.String("repo", repo),
			slog.Int("count", len(cached)),
		)

		return cached, nil
	}

	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	c.log.Info("fetching merged pull requests",
		slog.String("repo", repo),
		slog.Int("days", days),
	)

	cutoff := time.Now().AddDate(0, 0, -days)

	merged, err := c.listMerged(ctx, owner, name, cutoff)
	if err != nil {
		return nil, &apperrors.FetchError{Repository: repo, Days: days, Cause: err}
	}

	records := make([]domain.PullRequestRecord, 0, len(merged))

	for _, pr := range merged {
		record, err := c.buildRecord(ctx, owner, name, pr)
		if err != nil {
			return nil, &apperrors.FetchError{Repository: repo, Days: days, Cause: err}
		}

		records = append(records, record)
	}

	c.cache.Set(key, records, c.ttl)

	c.log.Info("fetched merged pull requests",
		slog.String("repo", repo),
		slog.Int("count", len(records)),
	)

	return records, nil
}

// listMerged pages through closed PRs newest-updated first and keeps the ones
// merged after cutoff. Paging stops at the first page whose PRs were all last
// updated before the cutoff, since later pages are older still.
func (c *Client) listMerged(ctx context.Context, owner, name string, cutoff time.Time) ([]*gh.PullRequest, error) {
	opts := &gh.PullRequestListOptions{
		State:       "closed",
		Sort:        "updated",
		Direction:   "desc",
		ListOptions: gh.ListOptions{PerPage: maxPerPage},
	}

	var merged []*gh.PullRequest

	for {
		prs, resp, err := c.github.PullRequests.List(ctx, owner, name, opts)
		if err != nil {
			return nil, fmt.Errorf("listing pull requests: %w", err)
		}

		pastCutoff := false

		for _, pr := range prs {
			if pr.GetUpdatedAt().Time.Before(cutoff) {
				pastCutoff = true
				continue
			}

			if pr.MergedAt == nil || pr.GetMergedAt().Time.Before(cutoff) {
				continue
			}

			merged = append(merged, pr)
		}

		if pastCutoff || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return merged, nil
}

// buildRecord fetches the per-PR details that the list endpoint omits: line
// counts, changed files, reviews, and the raw diff.
func (c *Client) buildRecord(ctx context.Context, owner, name string, pr *gh.PullRequest) (domain.PullRequestRecord, error) {
	number := pr.GetNumber()

	details, _, err := c.github.PullRequests.Get(ctx, owner, name, number)
	if err != nil {
		return domain.PullRequestRecord{}, fmt.Errorf("fetching pull request #%d: %w", number, err)
	}

	files, err := c.changedFiles(ctx, owner, name, number)
	if err != nil {
		return domain.PullRequestRecord{}, err
	}

	approvers, firstReview, err := c.reviews(ctx, owner, name, number)
	if err != nil {
		return domain.PullRequestRecord{}, err
	}

	diff, _, err := c.github.PullRequests.GetRaw(ctx, owner, name, number, gh.RawOptions{Type: gh.Diff})
	if err != nil {
		// The diff is a scoring enrichment, not required data; oversized
		// diffs 406 on this endpoint.
		c.log.Warn("failed to fetch diff, scoring on paths only",
			sl.Err(err),
			slog.Int("number", number),
		)

		diff = ""
	}

	record := domain.PullRequestRecord{
		Number:         number,
		Title:          details.GetTitle(),
		Author:         details.GetUser().GetLogin(),
		Approvers:      approvers,
		MergedAt:       details.GetMergedAt().Time,
		ChangedFiles:   files,
		Additions:      details.GetAdditions(),
		Deletions:      details.GetDeletions(),
		Diff:           diff,
		ReviewComments: details.GetReviewComments() + details.GetComments(),
		URL:            details.GetHTMLURL(),
	}

	createdAt := details.GetCreatedAt().Time
	if !createdAt.IsZero() {
		if !firstReview.IsZero() {
			record.TimeToFirstReview = firstReview.Sub(createdAt)
		}
		if !record.MergedAt.IsZero() {
			record.TimeToMerge = record.MergedAt.Sub(createdAt)
		}
	}

	return record, nil
}

func (c *Client) changedFiles(ctx context.Context, owner, name string, number int) ([]string, error) {
	opts := &gh.ListOptions{PerPage: maxPerPage}

	var files []string

	for {
		commitFiles, resp, err := c.github.PullRequests.ListFiles(ctx, owner, name, number, opts)
		if err != nil {
			return nil, fmt.Errorf("listing files for #%d: %w", number, err)
		}

		for _, file := range commitFiles {
			files = append(files, file.GetFilename())
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return files, nil
}

// reviews returns the approvers in approval order and the earliest review
// submission time (zero when the PR was never reviewed).
func (c *Client) reviews(ctx context.Context, owner, name string, number int) ([]string, time.Time, error) {
	opts := &gh.ListOptions{PerPage: maxPerPage}

	var (
		approvers   []string
		firstReview time.Time
	)

	for {
		reviews, resp, err := c.github.PullRequests.ListReviews(ctx, owner, name, number, opts)
		if err != nil {
			return nil, time.Time{}, fmt.Errorf("listing reviews for #%d: %w", number, err)
		}

		for _, review := range reviews {
			submitted := review.GetSubmittedAt().Time
			if !submitted.IsZero() && (firstReview.IsZero() || submitted.Before(firstReview)) {
				firstReview = submitted
			}

			if strings.EqualFold(review.GetState(), "approved") {
				approvers = append(approvers, review.GetUser().GetLogin())
			}
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return approvers, firstReview, nil
}

func splitRepo(repo string) (owner, name string, err error) {
	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" {
		return "", "", fmt.Errorf("invalid repository slug '%s', want owner/name", repo)
	}

	return owner, name, nil
}
