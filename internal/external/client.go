// Package external holds the clients for third-party services: the weather
// provider and the Web Push transport. Outbound calls go through BaseClient,
// which adds circuit breaking, bounded retries and request-id propagation.
package external

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"meteoalert/internal/types"
)

// RetryPolicy bounds retries of 429 and 5xx responses.
type RetryPolicy struct {
	MaxRetries int
	MinWait    time.Duration
	MaxWait    time.Duration
}

// DefaultRetryPolicy suits idempotent GETs against the weather provider.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 2, MinWait: 250 * time.Millisecond, MaxWait: 5 * time.Second}
}

// breakerTripAfter is the number of consecutive failures that opens the breaker.
const breakerTripAfter = 5

// maxHostBreakers bounds the per-host breaker table; a full table is reset.
const maxHostBreakers = 1024

// BaseClient executes requests through a circuit breaker with retries.
// It satisfies the Do(*http.Request) contract expected by HTTP client hooks
// in third-party libraries.
type BaseClient struct {
	client    *http.Client
	breaker   *gobreaker.CircuitBreaker[*http.Response]
	policy    RetryPolicy
	userAgent string
	sleepFn   func(time.Duration)

	name    string
	perHost bool
	mu      sync.Mutex
	hosts   map[string]*gobreaker.CircuitBreaker[*http.Response]
}

// BaseClientOption customizes a BaseClient.
type BaseClientOption func(*BaseClient)

// WithSleepFunc replaces the sleep between retries.
func WithSleepFunc(fn func(time.Duration)) BaseClientOption {
	return func(c *BaseClient) { c.sleepFn = fn }
}

// WithBreaker replaces the default circuit breaker.
func WithBreaker(cb *gobreaker.CircuitBreaker[*http.Response]) BaseClientOption {
	return func(c *BaseClient) { c.breaker = cb }
}

// WithHostBreakers gives every destination host its own breaker, so a
// failing host does not stop traffic to the others. The breaker passed with
// WithBreaker is then unused.
func WithHostBreakers() BaseClientOption {
	return func(c *BaseClient) { c.perHost = true }
}

// NewBreaker returns the default breaker: it opens after more than
// breakerTripAfter consecutive failures and probes again after 30s.
func NewBreaker(name string) *gobreaker.CircuitBreaker[*http.Response] {
	return gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > breakerTripAfter
		},
	})
}

// NewBaseClient wraps httpClient with a breaker called breakerName.
func NewBaseClient(httpClient *http.Client, breakerName string, policy RetryPolicy, userAgent string, opts ...BaseClientOption) *BaseClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	c := &BaseClient{
		client:    httpClient,
		breaker:   NewBreaker(breakerName),
		policy:    policy,
		userAgent: userAgent,
		sleepFn:   time.Sleep,
		name:      breakerName,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do sends req. 2xx, 3xx and 4xx other than 429 are returned to the caller
// untouched (the caller closes the body). 429 and 5xx are retried per the
// policy; when retries run out, or the breaker is open, Do returns an
// upstream AppError and no response.
func (c *BaseClient) Do(req *http.Request) (*http.Response, error) {
	if id := types.GetRequestID(req.Context()); id != "" {
		req.Header.Set("X-Request-Id", id)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	var body []byte
	if req.Body != nil {
		var err error
		body, err = io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to buffer request body", err)
		}
	}

	breaker := c.breakerFor(req.URL.Host)

	var (
		lastResp *http.Response
		lastErr  error
	)
	attempts := 1 + c.policy.MaxRetries
	for attempt := 0; attempt < attempts; attempt++ {
		if body != nil {
			req.Body = io.NopCloser(bytes.NewReader(body))
			req.ContentLength = int64(len(body))
		}

		resp, err := breaker.Execute(func() (*http.Response, error) {
			r, err := c.client.Do(req)
			if err != nil {
				return nil, scrubURLError(err)
			}
			if r.StatusCode == http.StatusTooManyRequests || r.StatusCode >= 500 {
				return r, fmt.Errorf("upstream returned %d", r.StatusCode)
			}
			return r, nil
		})
		if err == nil {
			return resp, nil
		}

		if lastResp != nil {
			lastResp.Body.Close()
		}
		lastResp, lastErr = resp, err

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			break
		}
		if req.Context().Err() != nil {
			break
		}
		if attempt < attempts-1 {
			c.sleepFn(c.backoff(attempt, resp))
		}
	}

	if lastResp != nil {
		lastResp.Body.Close()
	}
	return nil, c.mapError(lastResp, lastErr)
}

func (c *BaseClient) breakerFor(host string) *gobreaker.CircuitBreaker[*http.Response] {
	if !c.perHost {
		return c.breaker
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if cb, ok := c.hosts[host]; ok {
		return cb
	}
	if c.hosts == nil || len(c.hosts) >= maxHostBreakers {
		c.hosts = make(map[string]*gobreaker.CircuitBreaker[*http.Response])
	}
	cb := NewBreaker(c.name + ":" + host)
	c.hosts[host] = cb
	return cb
}

// backoff honours Retry-After (seconds or HTTP date) capped at MaxWait, else
// uses exponential backoff with jitter in [MinWait, MinWait*2^attempt].
func (c *BaseClient) backoff(attempt int, resp *http.Response) time.Duration {
	if resp != nil {
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
				return min(time.Duration(secs)*time.Second, c.policy.MaxWait)
			}
			if at, err := http.ParseTime(ra); err == nil {
				if wait := time.Until(at); wait > 0 {
					return min(wait, c.policy.MaxWait)
				}
				return c.policy.MinWait
			}
		}
	}

	ceiling := math.Min(float64(c.policy.MinWait)*math.Pow(2, float64(attempt)), float64(c.policy.MaxWait))
	floor := float64(c.policy.MinWait)
	if ceiling <= floor {
		return c.policy.MinWait
	}
	return time.Duration(floor + rand.Float64()*(ceiling-floor))
}

// scrubURLError drops the query string from transport errors; provider
// credentials travel there.
func scrubURLError(err error) error {
	var uerr *url.Error
	if !errors.As(err, &uerr) {
		return err
	}
	u, perr := url.Parse(uerr.URL)
	if perr != nil {
		return fmt.Errorf("%s request: %w", uerr.Op, uerr.Err)
	}
	return fmt.Errorf("%s %s://%s%s: %w", uerr.Op, u.Scheme, u.Host, u.Path, uerr.Err)
}

func (c *BaseClient) mapError(resp *http.Response, err error) *types.AppError {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return types.NewAppError(types.ErrCodeUpstreamRateLimited, "circuit breaker open", err)
	case resp != nil && resp.StatusCode == http.StatusTooManyRequests:
		return types.NewAppError(types.ErrCodeUpstreamRateLimited, "upstream rate limit exceeded", err)
	case resp != nil:
		return types.NewAppError(types.ErrCodeUpstreamUnavailable, fmt.Sprintf("upstream returned %d after retries", resp.StatusCode), err)
	default:
		return types.NewAppError(types.ErrCodeUpstreamUnavailable, "upstream request failed", err)
	}
}
