package stats

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/N4S4/site-stats/internal/cache"
	"github.com/N4S4/site-stats/internal/github"
	"github.com/N4S4/site-stats/internal/logging"
)

// Cache keys, shared with the documentation site's own browser cache
const (
	KeyStars        = "stars"
	KeyContributors = "contributors"
	KeyDownloads    = "downloads"
)

// Default TTLs per resource
const (
	DefaultStarsTTL        = time.Minute
	DefaultContributorsTTL = time.Minute
	DefaultDownloadsTTL    = 3 * time.Minute
)

// Downloads maps a period (week, month, all) to the count shown on its badge
type Downloads map[string]string

// StargazerLister counts the stargazers of a repository
type StargazerLister interface {
	ListStargazers(ctx context.Context, owner, repo string) (int, error)
}

// ContributorLister lists the contributors of a repository
type ContributorLister interface {
	ListContributors(ctx context.Context, owner, repo string) ([]github.Contributor, error)
}

// GitHubClient is the subset of the GitHub client the service needs
type GitHubClient interface {
	StargazerLister
	ContributorLister
}

// DownloadSource fetches download counts for every period at once
type DownloadSource interface {
	Downloads(ctx context.Context) (map[string]string, error)
}

// Source tells where a returned value came from
type Source string

const (
	SourceFresh   Source = "fresh"
	SourceCached  Source = "cached"
	SourceStale   Source = "stale"
	SourceDefault Source = "default"
)

// Result is the outcome of a fetch. Value is always usable; Err is set
// (as a *FetchError) only when the upstream fetch failed and the value is
// stale or the safe default.
type Result[T any] struct {
	Value  T      `json:"value"`
	Source Source `json:"source"`
	Err    error  `json:"-"`
}

// Degraded reports whether the value was served after a failed fetch
func (r Result[T]) Degraded() bool {
	return r.Err != nil
}

// Snapshot holds all three resources
type Snapshot struct {
	Stars        Result[int]                  `json:"stars"`
	Contributors Result[[]github.Contributor] `json:"contributors"`
	Downloads    Result[Downloads]            `json:"downloads"`
}

// Config holds configuration options for the service
type Config struct {
	Owner string
	Repo  string

	StarsTTL        time.Duration
	ContributorsTTL time.Duration
	DownloadsTTL    time.Duration

	Logger logrus.FieldLogger
}

// Service serves project statistics through the TTL cache.
//
// Every resource follows the same path: a live cache entry is returned
// as is; otherwise the upstream is queried and the result cached; if that
// fails the expired entry is returned, and failing that the safe default.
// Callers never receive an error, only a Result that may be degraded.
type Service struct {
	store     *cache.Store
	github    GitHubClient
	downloads DownloadSource

	owner string
	repo  string

	starsTTL        time.Duration
	contributorsTTL time.Duration
	downloadsTTL    time.Duration

	logger logrus.FieldLogger
	group  singleflight.Group
}

// NewService creates a statistics service
func NewService(store *cache.Store, gh GitHubClient, downloads DownloadSource, config *Config) *Service {
	if config == nil {
		config = &Config{}
	}

	s := &Service{
		store:           store,
		github:          gh,
		downloads:       downloads,
		owner:           config.Owner,
		repo:            config.Repo,
		starsTTL:        config.StarsTTL,
		contributorsTTL: config.ContributorsTTL,
		downloadsTTL:    config.DownloadsTTL,
		logger:          config.Logger,
	}
	if s.starsTTL <= 0 {
		s.starsTTL = DefaultStarsTTL
	}
	if s.contributorsTTL <= 0 {
		s.contributorsTTL = DefaultContributorsTTL
	}
	if s.downloadsTTL <= 0 {
		s.downloadsTTL = DefaultDownloadsTTL
	}
	if s.logger == nil {
		s.logger = logrus.StandardLogger()
	}

	return s
}

// Stars returns the stargazer count. The safe default is 0.
func (s *Service) Stars(ctx context.Context) Result[int] {
	return fetch(ctx, s, KeyStars, s.starsTTL, 0, func(ctx context.Context) (int, error) {
		return s.github.ListStargazers(ctx, s.owner, s.repo)
	})
}

// Contributors returns the contributor list in upstream order. The safe default is an empty list.
func (s *Service) Contributors(ctx context.Context) Result[[]github.Contributor] {
	return fetch(ctx, s, KeyContributors, s.contributorsTTL, []github.Contributor{}, func(ctx context.Context) ([]github.Contributor, error) {
		contributors, err := s.github.ListContributors(ctx, s.owner, s.repo)
		if err != nil {
			return nil, err
		}
		if contributors == nil {
			contributors = []github.Contributor{}
		}
		return contributors, nil
	})
}

// Downloads returns the week, month and all-time download counts. The safe default is an empty map.
func (s *Service) Downloads(ctx context.Context) Result[Downloads] {
	return fetch(ctx, s, KeyDownloads, s.downloadsTTL, Downloads{}, func(ctx context.Context) (Downloads, error) {
		counts, err := s.downloads.Downloads(ctx)
		if err != nil {
			return nil, err
		}
		return Downloads(counts), nil
	})
}

// Snapshot fetches all three resources concurrently
func (s *Service) Snapshot(ctx context.Context) Snapshot {
	var (
		snapshot Snapshot
		g        errgroup.Group
	)

	g.Go(func() error {
		snapshot.Stars = s.Stars(ctx)
		return nil
	})
	g.Go(func() error {
		snapshot.Contributors = s.Contributors(ctx)
		return nil
	})
	g.Go(func() error {
		snapshot.Downloads = s.Downloads(ctx)
		return nil
	})
	_ = g.Wait()

	return snapshot
}

// fetch runs the cache-hit / fetch / degraded sequence for one resource.
// Concurrent refreshes of the same key share a single upstream call, and a
// caller that gives up only degrades its own result.
func fetch[T any](ctx context.Context, s *Service, key string, ttl time.Duration, empty T, load func(context.Context) (T, error)) Result[T] {
	logger := s.logger.WithFields(logging.FetchFields(key, ""))

	var cached T
	if s.store.Get(key, &cached) {
		logger.Debug("Using cached data")
		return Result[T]{Value: cached, Source: SourceCached}
	}

	logger.Debug("Cache miss, fetching from upstream")
	// The shared load outlives any single caller; each caller only stops
	// waiting when its own context ends.
	loadCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (interface{}, error) {
		fresh, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		if err := s.store.SetWithTTL(key, fresh, ttl); err != nil {
			logger.WithError(err).Warn("Failed to cache fresh data")
		}
		return fresh, nil
	})

	var err error
	select {
	case res := <-ch:
		if res.Err == nil {
			if res.Shared {
				logger.Debug("Joined in-flight fetch")
			}
			return Result[T]{Value: res.Val.(T), Source: SourceFresh}
		}
		err = res.Err
	case <-ctx.Done():
		err = ctx.Err()
	}

	fetchErr := &FetchError{Resource: key, Kind: classify(err), Err: err}
	logger.WithError(err).WithFields(logging.FetchFields(key, fetchErr.Kind.String())).Error("Fetch failed")

	var stale T
	if s.store.GetExpired(key, &stale) {
		logger.Debug("Using stale cached data")
		return Result[T]{Value: stale, Source: SourceStale, Err: fetchErr}
	}

	logger.Debug("No cached data, using default")
	return Result[T]{Value: empty, Source: SourceDefault, Err: fetchErr}
}
