package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/kjstillabower/infoboard/internal/observability"
)

// DefaultTimeout bounds a single upstream request when none is configured.
const DefaultTimeout = 10 * time.Second

// Request is one upstream GET. Source is the metric label and breaker name
// (transit, geocode, onecall, weather, forecast, air, tasks). Timeout, when
// positive, shortens the fetcher's timeout for this request.
type Request struct {
	Source      string
	URL         string
	Query       map[string]string
	BearerToken string
	Accept      string
	Timeout     time.Duration
}

// Getter is implemented by *Fetcher.
type Getter interface {
	Get(ctx context.Context, req Request) ([]byte, error)
}

// BreakerSettings configures the per-source circuit breakers.
type BreakerSettings struct {
	ConsecutiveFailures uint32        // failures in a row that open the breaker
	OpenTimeout         time.Duration // time spent open before a half-open probe
	HalfOpenRequests    uint32        // probes allowed while half-open
	Interval            time.Duration // closed-state counter reset period; 0 never resets
}

// DefaultBreakerSettings returns the settings used when config leaves them unset.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		ConsecutiveFailures: 5,
		OpenTimeout:         30 * time.Second,
		HalfOpenRequests:    1,
		Interval:            time.Minute,
	}
}

// Fetcher performs upstream GETs: one request per call, bounded by a timeout,
// never retried. Each source has its own circuit breaker so a dead transit API
// does not slow the weather section down. Safe for concurrent use.
type Fetcher struct {
	http     *resty.Client
	timeout  time.Duration
	settings BreakerSettings
	logger   *zap.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewFetcher creates a Fetcher. timeout <= 0 uses DefaultTimeout.
func NewFetcher(timeout time.Duration, settings BreakerSettings, logger *zap.Logger) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	def := DefaultBreakerSettings()
	if settings.ConsecutiveFailures == 0 {
		settings.ConsecutiveFailures = def.ConsecutiveFailures
	}
	if settings.OpenTimeout <= 0 {
		settings.OpenTimeout = def.OpenTimeout
	}
	if settings.HalfOpenRequests == 0 {
		settings.HalfOpenRequests = def.HalfOpenRequests
	}
	logger = observability.OrNop(logger)

	httpClient := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("User-Agent", "infoboard/1.0").
		SetLogger(logger.Sugar())

	return &Fetcher{
		http:     httpClient,
		timeout:  timeout,
		settings: settings,
		logger:   logger,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// Get issues req and returns the response body on 2xx.
// 401 is ErrInvalidCredential; any other failure, including a timeout, the
// caller's deadline or an open breaker, is ErrUpstreamUnavailable. Cancellation
// of ctx by the caller is returned as context.Canceled.
func (f *Fetcher) Get(ctx context.Context, req Request) ([]byte, error) {
	result, err := f.breakerFor(req.Source).Execute(func() (interface{}, error) {
		return f.do(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			observability.UpstreamCallsTotal.WithLabelValues(req.Source, "breaker_open").Inc()
			return nil, fmt.Errorf("%s: %w: %v", req.Source, ErrUpstreamUnavailable, err)
		}
		return nil, err
	}
	return result.([]byte), nil
}

// States returns the breaker state per source seen so far.
func (f *Fetcher) States() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string, len(f.breakers))
	for name, cb := range f.breakers {
		out[name] = cb.State().String()
	}
	return out
}

func (f *Fetcher) do(parent context.Context, req Request) ([]byte, error) {
	start := time.Now()
	timeout := f.timeout
	if req.Timeout > 0 && req.Timeout < timeout {
		timeout = req.Timeout
	}
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	r := f.http.R().SetContext(ctx).SetQueryParams(req.Query)
	if req.BearerToken != "" {
		r.SetAuthToken(req.BearerToken)
	}
	if req.Accept != "" {
		r.SetHeader("Accept", req.Accept)
	}
	if corrID := observability.CorrelationID(parent); corrID != "" {
		r.SetHeader("X-Correlation-ID", corrID)
	}

	resp, err := r.Get(req.URL)
	if err != nil {
		observe(req.Source, "error", start)
		if parentErr := parent.Err(); parentErr != nil {
			if errors.Is(parentErr, context.Canceled) {
				return nil, fmt.Errorf("%s: %w", req.Source, parentErr)
			}
			// The caller's deadline stays in the chain so the breaker can skip it.
			return nil, fmt.Errorf("%s: %w: %w", req.Source, ErrUpstreamUnavailable, parentErr)
		}
		return nil, fmt.Errorf("%s: %w: %v", req.Source, ErrUpstreamUnavailable, err)
	}

	observe(req.Source, statusLabel(resp.StatusCode()), start)

	switch {
	case resp.StatusCode() == http.StatusUnauthorized:
		return nil, fmt.Errorf("%s: %w", req.Source, ErrInvalidCredential)
	case !resp.IsSuccess():
		return nil, fmt.Errorf("%s: %w: HTTP %d", req.Source, ErrUpstreamUnavailable, resp.StatusCode())
	}
	return resp.Body(), nil
}

func (f *Fetcher) breakerFor(source string) *gobreaker.CircuitBreaker {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cb, ok := f.breakers[source]; ok {
		return cb
	}
	threshold := f.settings.ConsecutiveFailures
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        source,
		MaxRequests: f.settings.HalfOpenRequests,
		Interval:    f.settings.Interval,
		Timeout:     f.settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// A rejected credential or a caller giving up says nothing about upstream health.
		// Only a caller's deadline wraps context.DeadlineExceeded; our own
		// per-request timeout is reported through resty and still counts.
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, ErrInvalidCredential) ||
				errors.Is(err, context.Canceled) ||
				errors.Is(err, context.DeadlineExceeded)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			observability.UpstreamBreakerState.WithLabelValues(name).Set(float64(to))
			f.logger.Warn("upstream circuit breaker state change",
				zap.String("source", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	observability.UpstreamBreakerState.WithLabelValues(source).Set(float64(gobreaker.StateClosed))
	f.breakers[source] = cb
	return cb
}

func observe(source, status string, start time.Time) {
	observability.UpstreamCallsTotal.WithLabelValues(source, status).Inc()
	observability.UpstreamDuration.WithLabelValues(source, status).Observe(time.Since(start).Seconds())
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 401 {
		return "unauthorized"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}
