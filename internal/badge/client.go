package badge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultBaseURL is the pepy.tech badge endpoint
	DefaultBaseURL = "https://static.pepy.tech/badge"

	// DefaultProject is the PyPI project whose downloads are shown
	DefaultProject = "synology-api"

	// DefaultTimeout applies to each badge request
	DefaultTimeout = 10 * time.Second

	maxBadgeSize = 1 << 20
)

// Download periods, also the keys of the map returned by Downloads
const (
	PeriodWeek  = "week"
	PeriodMonth = "month"
	PeriodAll   = "all"
)

// Periods lists every download period in display order
var Periods = []string{PeriodWeek, PeriodMonth, PeriodAll}

// ErrStatus is returned when the badge service answers with a non-2xx status
var ErrStatus = errors.New("unexpected badge response status")

// Config holds configuration options for the badge client
type Config struct {
	BaseURL    string
	Project    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Extractor  Extractor
	Logger     logrus.FieldLogger
}

// Client fetches download-count badges and extracts their values
type Client struct {
	baseURL    string
	project    string
	httpClient *http.Client
	extractor  Extractor
	logger     logrus.FieldLogger
}

// NewClient creates a badge client for the default project
func NewClient() *Client {
	return NewClientWithConfig(&Config{})
}

// NewClientWithConfig creates a badge client with configuration
func NewClientWithConfig(config *Config) *Client {
	if config == nil {
		config = &Config{}
	}

	c := &Client{
		baseURL:    strings.TrimSuffix(config.BaseURL, "/"),
		project:    config.Project,
		httpClient: config.HTTPClient,
		extractor:  config.Extractor,
		logger:     config.Logger,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.project == "" {
		c.project = DefaultProject
	}
	if c.httpClient == nil {
		timeout := config.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		c.httpClient = &http.Client{Timeout: timeout}
	}
	if c.extractor == nil {
		c.extractor = SVGTextExtractor{}
	}
	if c.logger == nil {
		c.logger = logrus.StandardLogger()
	}

	return c
}

// URL returns the badge address for period. The all-time badge has no suffix.
func (c *Client) URL(period string) string {
	if period == PeriodAll {
		return c.baseURL + "/" + c.project
	}
	return c.baseURL + "/" + c.project + "/" + period
}

// Fetch downloads the badge for period and returns its displayed count
func (c *Client) Fetch(ctx context.Context, period string) (string, error) {
	url := c.URL(period)
	c.logger.Debugf("Badge: GET %s", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build %s badge request: %w", period, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s badge: %w", period, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: %s badge returned %d", ErrStatus, period, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBadgeSize))
	if err != nil {
		return "", fmt.Errorf("failed to read %s badge: %w", period, err)
	}

	count, err := c.extractor.Extract(body)
	if err != nil {
		return "", fmt.Errorf("failed to parse %s badge: %w", period, err)
	}

	c.logger.Debugf("Badge: %s downloads = %s", period, count)
	return count, nil
}

// Downloads fetches the week, month and all-time badges concurrently.
// All three must succeed; partial results are discarded.
func (c *Client) Downloads(ctx context.Context) (map[string]string, error) {
	counts := make([]string, len(Periods))

	g, gctx := errgroup.WithContext(ctx)
	for i, period := range Periods {
		i, period := i, period
		g.Go(func() error {
			count, err := c.Fetch(gctx, period)
			if err != nil {
				return err
			}
			counts[i] = count
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	downloads := make(map[string]string, len(Periods))
	for i, period := range Periods {
		downloads[period] = counts[i]
	}
	return downloads, nil
}
