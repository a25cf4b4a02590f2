// Package external holds the clients for the reference services consulted
// by background jobs: DOI registration agency lookup, Crossref works and the
// ORCID public API. Each call is rate limited, wrapped in a circuit breaker
// and retried on transient failures. Authoritative absence is reported as
// domain.ErrNotFound so callers can stop without retrying.
package external

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/datacite/lupo-sub003/infrastructure/circuitbreaker"
	infraerrors "github.com/datacite/lupo-sub003/infrastructure/errors"
	"github.com/datacite/lupo-sub003/infrastructure/logger"
	"github.com/datacite/lupo-sub003/infrastructure/metrics"
	"github.com/datacite/lupo-sub003/infrastructure/retry"
	"github.com/datacite/lupo-sub003/internal/cache"
	"github.com/datacite/lupo-sub003/internal/domain"
)

const (
	defaultCacheTTL  = 7 * 24 * time.Hour
	defaultRateDelay = 250 * time.Millisecond
)

// Config configures one external service client.
type Config struct {
	BaseURL string
	// Delay is the minimum spacing between calls.
	Delay    time.Duration
	CacheTTL time.Duration
	Retry    retry.Config
	Mailto   string
}

// Deps are the collaborators shared by every client. Metrics and Cache may be nil.
type Deps struct {
	HTTP    *http.Client
	Cache   cache.Cache
	Metrics *metrics.Metrics
	Logger  logger.Logger
}

type service struct {
	name    string
	baseURL string
	mailto  string
	ttl     time.Duration
	http    *http.Client
	cache   cache.Cache
	metrics *metrics.Metrics
	log     logger.Logger
	limiter *rate.Limiter
	breaker *circuitbreaker.Breaker
	retry   retry.Config
}

func newService(name string, cfg Config, deps Deps) *service {
	if cfg.Delay <= 0 {
		cfg.Delay = defaultRateDelay
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	if cfg.Retry.IsRetryable == nil {
		cfg.Retry.IsRetryable = isTransient
	}
	if deps.HTTP == nil {
		deps.HTTP = http.DefaultClient
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewNop()
	}

	log := deps.Logger.With(logger.String("service", name))
	return &service{
		name:    name,
		baseURL: cfg.BaseURL,
		mailto:  cfg.Mailto,
		ttl:     cfg.CacheTTL,
		http:    deps.HTTP,
		cache:   deps.Cache,
		metrics: deps.Metrics,
		log:     log,
		limiter: rate.NewLimiter(rate.Every(cfg.Delay), 1),
		breaker: circuitbreaker.New(circuitbreaker.Config{
			Name:      name,
			IsFailure: isTransient,
			OnStateChange: func(name string, from, to circuitbreaker.State) {
				log.Warn("Circuit breaker state changed",
					logger.String("from", from.String()),
					logger.String("to", to.String()))
			},
		}),
		retry: cfg.Retry,
	}
}

// isTransient reports failures worth retrying: network errors, timeouts,
// 429 and 5xx. A 404 never is.
func isTransient(err error) bool {
	if err == nil || errors.Is(err, domain.ErrNotFound) || errors.Is(err, context.Canceled) {
		return false
	}
	var httpErr *infraerrors.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Temporary()
	}
	return retry.IsTransient(err)
}

// getJSON fetches path and decodes the body into dst. A 404 becomes
// domain.ErrNotFound.
func (s *service) getJSON(ctx context.Context, path string, query url.Values, accept string, dst any) error {
	if s.mailto != "" {
		if query == nil {
			query = url.Values{}
		}
		query.Set("mailto", s.mailto)
	}
	target := s.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	status := "error"
	defer func() { s.metrics.ObserveLookup(s.name, status, false) }()

	err := retry.Retry(ctx, s.retry, func() error {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
		return s.breaker.Execute(ctx, func(ctx context.Context) error {
			code, err := s.do(ctx, target, accept, dst)
			if code > 0 {
				status = strconv.Itoa(code)
			}
			return err
		})
	})
	if infraerrors.IsNotFound(err) {
		return fmt.Errorf("%s %s: %w", s.name, path, domain.ErrNotFound)
	}
	if err != nil {
		return domain.NewBackendError(s.name, err)
	}
	return nil
}

func (s *service) do(ctx context.Context, target, accept string, dst any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	if accept == "" {
		accept = "application/json"
	}
	req.Header.Set("Accept", accept)

	resp, err := s.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if err = infraerrors.CheckResponse(s.name, resp); err != nil {
		return resp.StatusCode, err
	}
	if err = json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return resp.StatusCode, fmt.Errorf("decode %s response: %w", s.name, err)
	}
	return resp.StatusCode, nil
}

// cached runs load through the lookup cache when one is configured.
func cached[T any](ctx context.Context, s *service, key string, refresh bool, load func(context.Context) (T, error)) (T, error) {
	if s.cache == nil {
		return load(ctx)
	}
	if refresh {
		_ = s.cache.Delete(ctx, key)
	}
	v, hit, err := cache.Fetch(ctx, s.cache, key, s.ttl, load)
	if hit {
		s.metrics.ObserveLookup(s.name, "cached", true)
	}
	return v, err
}
