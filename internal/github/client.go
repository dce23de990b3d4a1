package github

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v65/github"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

// PageSize is the per_page value used for every listing request
const PageSize = 100

// DefaultMaxRateLimitWait bounds how long a rate limited request waits before its single retry
const DefaultMaxRateLimitWait = time.Minute

var (
	// ErrRateLimited is returned when the primary request quota is still
	// exhausted after one retry, or the reset is too far away to wait for.
	ErrRateLimited = errors.New("request quota exhausted")

	// ErrSecondaryRateLimited is returned when GitHub's secondary rate limit
	// is hit. These are never retried.
	ErrSecondaryRateLimited = errors.New("secondary rate limit detected")
)

// Config holds configuration options for the GitHub client
type Config struct {
	// BaseURL overrides the API endpoint (GitHub Enterprise, tests)
	BaseURL string

	// MaxRateLimitWait is the longest the client sleeps for a quota reset
	MaxRateLimitWait time.Duration

	Logger logrus.FieldLogger
}

// Client wraps the GitHub API client with the listing calls used for project statistics
type Client struct {
	client           *github.Client
	logger           logrus.FieldLogger
	maxRateLimitWait time.Duration
	now              func() time.Time
	sleep            func(ctx context.Context, d time.Duration) error
}

// Contributor is a repository contributor reduced to what the site renders
type Contributor struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	AvatarURL string `json:"avatar_url"`
}

// NewClient creates a new GitHub API client. An empty token gives anonymous access.
func NewClient(token string) (*Client, error) {
	return NewClientWithConfig(token, &Config{})
}

// NewClientWithConfig creates a new GitHub API client with configuration
func NewClientWithConfig(token string, config *Config) (*Client, error) {
	if config == nil {
		config = &Config{}
	}

	var client *github.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: token},
		)
		client = github.NewClient(oauth2.NewClient(context.Background(), ts))
	} else {
		client = github.NewClient(nil)
	}

	if config.BaseURL != "" {
		baseURL := config.BaseURL
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub base URL %q: %w", config.BaseURL, err)
		}
		client.BaseURL = u
	}

	logger := config.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	maxWait := config.MaxRateLimitWait
	if maxWait <= 0 {
		maxWait = DefaultMaxRateLimitWait
	}

	logger.WithFields(logrus.Fields{
		"base_url":      client.BaseURL.String(),
		"authenticated": token != "",
	}).Debug("GitHub client initialized")

	return &Client{
		client:           client,
		logger:           logger,
		maxRateLimitWait: maxWait,
		now:              time.Now,
		sleep:            sleepContext,
	}, nil
}

// ListStargazers pages through the stargazers of owner/repo and returns how many there are
func (c *Client) ListStargazers(ctx context.Context, owner, repo string) (int, error) {
	endpoint := fmt.Sprintf("GET /repos/%s/%s/stargazers", owner, repo)
	opts := &github.ListOptions{PerPage: PageSize}

	total := 0
	pageCount := 0
	for {
		pageCount++
		c.logger.Debugf("GitHub API: %s (page=%d, per_page=%d)", endpoint, opts.Page, opts.PerPage)

		var stargazers []*github.Stargazer
		resp, err := c.withRateLimitRetry(ctx, endpoint, func(ctx context.Context) (*github.Response, error) {
			var (
				resp *github.Response
				err  error
			)
			stargazers, resp, err = c.client.Activity.ListStargazers(ctx, owner, repo, opts)
			return resp, err
		})
		if err != nil {
			return 0, fmt.Errorf("failed to list stargazers on page %d: %w", pageCount, err)
		}

		total += len(stargazers)
		c.logger.Debugf("GitHub API: Response status %d, received %d stargazers on page %d", resp.StatusCode, len(stargazers), pageCount)

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	c.logger.Debugf("GitHub API: Total stargazers for %s/%s: %d (across %d pages)", owner, repo, total, pageCount)
	return total, nil
}

// ListContributors pages through the contributors of owner/repo in upstream order
func (c *Client) ListContributors(ctx context.Context, owner, repo string) ([]Contributor, error) {
	endpoint := fmt.Sprintf("GET /repos/%s/%s/contributors", owner, repo)
	opts := &github.ListContributorsOptions{
		ListOptions: github.ListOptions{PerPage: PageSize},
	}

	contributors := []Contributor{}
	pageCount := 0
	for {
		pageCount++
		c.logger.Debugf("GitHub API: %s (page=%d, per_page=%d)", endpoint, opts.Page, opts.PerPage)

		var page []*github.Contributor
		resp, err := c.withRateLimitRetry(ctx, endpoint, func(ctx context.Context) (*github.Response, error) {
			var (
				resp *github.Response
				err  error
			)
			page, resp, err = c.client.Repositories.ListContributors(ctx, owner, repo, opts)
			return resp, err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list contributors on page %d: %w", pageCount, err)
		}

		for _, contributor := range page {
			contributors = append(contributors, Contributor{
				ID:        contributor.GetID(),
				Login:     contributor.GetLogin(),
				AvatarURL: contributor.GetAvatarURL(),
			})
		}
		c.logger.Debugf("GitHub API: Response status %d, received %d contributors on page %d", resp.StatusCode, len(page), pageCount)

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	c.logger.Debugf("GitHub API: Total contributors for %s/%s: %d (across %d pages)", owner, repo, len(contributors), pageCount)
	return contributors, nil
}

// withRateLimitRetry runs call and handles GitHub rate limiting. An exhausted
// primary quota is retried once after the reset time; a secondary limit is
// logged and returned without retrying.
func (c *Client) withRateLimitRetry(ctx context.Context, endpoint string, call func(context.Context) (*github.Response, error)) (*github.Response, error) {
	resp, err := call(ctx)

	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		c.logger.Warnf("GitHub API: Request quota exhausted for request %s", endpoint)

		wait := rateErr.Rate.Reset.Time.Sub(c.now())
		if wait < 0 {
			wait = 0
		}
		if wait > c.maxRateLimitWait {
			return resp, fmt.Errorf("%w: quota resets in %s", ErrRateLimited, wait.Round(time.Second))
		}

		c.logger.Infof("GitHub API: Retrying after %s", wait.Round(time.Second))
		if err := c.sleep(ctx, wait); err != nil {
			return resp, err
		}

		resp, err = call(ctx)
		if errors.As(err, &rateErr) {
			return resp, fmt.Errorf("%w: %s", ErrRateLimited, endpoint)
		}
	}

	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		c.logger.Warnf("GitHub API: SecondaryRateLimit detected for request %s", endpoint)
		return resp, fmt.Errorf("%w: %s", ErrSecondaryRateLimited, endpoint)
	}

	return resp, err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
