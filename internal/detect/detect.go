// Package detect infers a company's technology stack from the HTTP response
// of its public website.
package detect

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/olv-group/prospect-intel/internal/config"
	"github.com/olv-group/prospect-intel/internal/model"
	"github.com/olv-group/prospect-intel/internal/resilience"
)

// Detector finds technologies used by the company behind domain.
type Detector interface {
	Detect(ctx context.Context, domain string) (model.DetectedStack, error)
}

// maxHosts bounds the per-host limiter cache.
const maxHosts = 1024

// Options configures a HeaderDetector.
type Options struct {
	UserAgent      string
	Timeout        time.Duration
	RequestsPerSec float64

	// Assertive drops items below MinConfidence.
	Assertive     bool
	MinConfidence float64

	// Scheme is used when the domain has none. Default "https".
	Scheme string

	Retry   resilience.RetryConfig
	Breaker resilience.CircuitBreakerConfig
}

// OptionsFromConfig builds Options from the detect section and feature flags.
func OptionsFromConfig(cfg config.DetectConfig, f config.Features) Options {
	return Options{
		UserAgent:      cfg.UserAgent,
		Timeout:        time.Duration(cfg.TimeoutSecs) * time.Second,
		RequestsPerSec: cfg.RequestsPerSec,
		Assertive:      f.AssertiveSearch,
		MinConfidence:  cfg.MinConfidence,
		Retry:          resilience.WithRetries(cfg.MaxRetries),
	}
}

// HeaderDetector fingerprints response headers and cookies of a single GET
// to the company homepage.
type HeaderDetector struct {
	client   *http.Client
	opts     Options
	breakers *resilience.Breakers

	mu       sync.Mutex
	limiters *lru.Cache[string, *rate.Limiter]
}

var _ Detector = (*HeaderDetector)(nil)

// NewHeaderDetector creates a HeaderDetector, filling zero options with defaults.
func NewHeaderDetector(opts Options) *HeaderDetector {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "prospect-intel/1.0 (+stack-detect)"
	}
	if opts.RequestsPerSec <= 0 {
		opts.RequestsPerSec = 2
	}
	if opts.Scheme == "" {
		opts.Scheme = "https"
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = resilience.DefaultRetryConfig()
	}
	if opts.Breaker.ShouldTrip == nil {
		opts.Breaker.ShouldTrip = resilience.IsTransient
	}

	// Size is a positive constant, so New cannot fail.
	limiters, _ := lru.New[string, *rate.Limiter](maxHosts)

	return &HeaderDetector{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     30 * time.Second,
			},
		},
		opts:     opts,
		breakers: resilience.NewBreakers(opts.Breaker),
		limiters: limiters,
	}
}

// fingerprint is the part of a response the signatures look at.
type fingerprint struct {
	header  http.Header
	cookies []*http.Cookie
}

// Detect fetches the homepage of domain and classifies what it sees.
func (d *HeaderDetector) Detect(ctx context.Context, domain string) (model.DetectedStack, error) {
	target, host, err := d.target(domain)
	if err != nil {
		return model.DetectedStack{}, err
	}

	if err := d.limiterFor(host).Wait(ctx); err != nil {
		return model.DetectedStack{}, eris.Wrap(err, "detect: rate limiter wait")
	}

	retry := d.opts.Retry
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger(host, "detect")
	}
	fp, err := resilience.ExecuteVal(ctx, d.breakers.For(host), func(ctx context.Context) (fingerprint, error) {
		return resilience.DoVal(ctx, retry, func(ctx context.Context) (fingerprint, error) {
			return d.fetch(ctx, target)
		})
	})
	if err != nil {
		return model.DetectedStack{}, eris.Wrapf(err, "detect: %s", host)
	}

	stack := classify(fp.header, fp.cookies)
	if d.opts.Assertive {
		stack = FilterConfidence(stack, d.opts.MinConfidence)
	}
	zap.L().Debug("detect: stack fingerprinted",
		zap.String("host", host),
		zap.Bool("empty", stack.Empty()),
	)
	return stack, nil
}

func (d *HeaderDetector) fetch(ctx context.Context, target string) (fingerprint, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fingerprint{}, eris.Wrap(err, "detect: create request")
	}
	req.Header.Set("User-Agent", d.opts.UserAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := d.client.Do(req)
	if err != nil {
		return fingerprint{}, eris.Wrap(err, "detect: request")
	}
	defer resp.Body.Close() //nolint:errcheck
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	// A 4xx page from a WAF still carries useful headers; only retryable
	// statuses are failures.
	if resilience.IsTransientHTTPStatus(resp.StatusCode) {
		return fingerprint{}, resilience.CheckStatus(target, resp.StatusCode)
	}
	return fingerprint{header: resp.Header, cookies: resp.Cookies()}, nil
}

// target builds the homepage URL for domain, keeping any explicit scheme and port.
func (d *HeaderDetector) target(domain string) (string, string, error) {
	s := strings.TrimSpace(domain)
	if s == "" {
		return "", "", model.NewValidationError("domain", "must not be empty")
	}
	if !strings.Contains(s, "://") {
		s = d.opts.Scheme + "://" + s
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return "", "", model.NewValidationError("domain", "not a valid host")
	}
	host := strings.ToLower(u.Host)
	return u.Scheme + "://" + host + "/", host, nil
}

func (d *HeaderDetector) limiterFor(host string) *rate.Limiter {
	d.mu.Lock()
	defer d.mu.Unlock()
	if lim, ok := d.limiters.Get(host); ok {
		return lim
	}
	lim := rate.NewLimiter(rate.Limit(d.opts.RequestsPerSec), 1)
	d.limiters.Add(host, lim)
	return lim
}

// Static returns a fixed stack for every domain. Used when detection is
// disabled and in tests.
type Static model.DetectedStack

// Detect returns the static stack.
func (s Static) Detect(context.Context, string) (model.DetectedStack, error) {
	return model.DetectedStack(s), nil
}
