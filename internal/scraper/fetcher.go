// Package scraper implements the direct result page fetch strategy: a single
// HTTP GET per page with a rotated identity and the consent cookies.
package scraper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/FranksOps/serpent/internal/bypass"
	"github.com/FranksOps/serpent/internal/fingerprint"
	"github.com/FranksOps/serpent/internal/metrics"
	"github.com/FranksOps/serpent/internal/serp"
	"github.com/FranksOps/serpent/pkg/httpclient"
	"github.com/FranksOps/serpent/pkg/proxy"
	"github.com/FranksOps/serpent/pkg/useragent"
)

// StrategyName identifies the direct strategy in logs, metrics and storage.
const StrategyName = "direct"

// maxBodyBytes caps how much of a result page is read.
const maxBodyBytes = 8 << 20

type contextKey string

const proxyKey contextKey = "proxy_url"

// FetchConfig configures the direct Fetcher.
type FetchConfig struct {
	// Endpoint is the search URL. Defaults to serp.DefaultEndpoint.
	Endpoint string
	// Timeout is the client-wide ceiling; FetchRequest.Timeout bounds each page.
	Timeout time.Duration
	// MaxRedirects defaults to 10; negative disables following.
	MaxRedirects int
	UseCookieJar bool
	// ProxyPool supplies a proxy per page when the request names none.
	ProxyPool   *proxy.Pool
	UserAgents  useragent.Provider
	Fingerprint fingerprint.Profile
	Detectors   []bypass.Detector
	Logger      *slog.Logger
}

// Fetcher fetches result pages over plain HTTP.
type Fetcher struct {
	config FetchConfig
	logger *slog.Logger
	// clients holds one client per TLS verification setting, keyed by skip-verify.
	clients map[bool]*httpclient.Client
}

var _ serp.Fetcher = (*Fetcher)(nil)

// NewFetcher initializes a Fetcher. Clients are built once so connections
// and cookie jars (if configured) persist for the lifetime of the Fetcher.
func NewFetcher(cfg FetchConfig) (*Fetcher, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = serp.DefaultEndpoint
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRedirects == 0 {
		cfg.MaxRedirects = 10
	}
	if cfg.UserAgents == nil {
		cfg.UserAgents = useragent.NewGenerator()
	}
	if cfg.Fingerprint == "" {
		cfg.Fingerprint = fingerprint.ProfileChrome
	}
	if cfg.Detectors == nil {
		cfg.Detectors = bypass.DefaultDetectors()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if _, err := url.Parse(cfg.Endpoint); err != nil {
		return nil, fmt.Errorf("scraper: invalid endpoint: %w", err)
	}

	// The proxy is chosen per request and travels in the request context.
	proxyFunc := func(req *http.Request) (*url.URL, error) {
		if u, ok := req.Context().Value(proxyKey).(*url.URL); ok && u != nil {
			return u, nil
		}
		return http.ProxyFromEnvironment(req)
	}

	f := &Fetcher{
		config:  cfg,
		logger:  cfg.Logger.With("strategy", StrategyName),
		clients: make(map[bool]*httpclient.Client, 2),
	}
	for _, skipVerify := range []bool{false, true} {
		transport, err := fingerprint.Transport(cfg.Fingerprint, fingerprint.Config{
			Proxy:              proxyFunc,
			InsecureSkipVerify: skipVerify,
		})
		if err != nil {
			return nil, fmt.Errorf("scraper: setup transport: %w", err)
		}
		client, err := httpclient.New(httpclient.Config{
			Timeout:      cfg.Timeout,
			MaxRedirects: cfg.MaxRedirects,
			UseCookieJar: cfg.UseCookieJar,
			Headers:      http.Header{"Accept": {"*/*"}},
			Cookies:      serp.ConsentCookies(),
			Transport:    transport,
		})
		if err != nil {
			return nil, fmt.Errorf("scraper: create client: %w", err)
		}
		f.clients[skipVerify] = client
	}
	return f, nil
}

// Name implements serp.Fetcher.
func (f *Fetcher) Name() string { return StrategyName }

// FetchPage issues one GET for the requested result page.
func (f *Fetcher) FetchPage(ctx context.Context, req serp.FetchRequest) (*serp.Page, error) {
	target, err := serp.BuildURL(f.config.Endpoint, req)
	if err != nil {
		return nil, err
	}

	activeProxy := req.Proxy
	pooled := false
	if activeProxy == nil && f.config.ProxyPool != nil {
		activeProxy, err = f.config.ProxyPool.Next()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", serp.ErrFetch, err)
		}
		pooled = true
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}
	if activeProxy != nil {
		ctx = context.WithValue(ctx, proxyKey, activeProxy)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", serp.ErrFetch, err)
	}
	httpReq.Header.Set("User-Agent", f.config.UserAgents.Next())

	start := time.Now()
	resp, err := f.clients[req.SkipTLSVerify].Do(ctx, httpReq)
	if err != nil {
		f.proxyFailed(activeProxy, pooled)
		metrics.RecordFetch(metrics.Fetch{Strategy: StrategyName, Err: err, Duration: time.Since(start)})
		return nil, fmt.Errorf("%w: %w", serp.ErrFetch, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		f.proxyFailed(activeProxy, pooled)
		metrics.RecordFetch(metrics.Fetch{Strategy: StrategyName, StatusCode: resp.StatusCode, Err: err, Duration: time.Since(start)})
		return nil, fmt.Errorf("%w: read body: %w", serp.ErrFetch, err)
	}

	page := &serp.Page{
		URL:        resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		HTML:       string(body),
		Duration:   time.Since(start),
		Proxy:      activeProxy,
	}
	page.DetectedBlock, page.BlockSource = bypass.Analyze(&bypass.Response{
		URL:        page.URL,
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       body,
	}, f.config.Detectors)

	metrics.RecordFetch(metrics.Fetch{
		Strategy:      StrategyName,
		StatusCode:    page.StatusCode,
		Detected:      page.DetectedBlock,
		DetectionSrc:  page.BlockSource,
		Duration:      page.Duration,
		ResponseBytes: len(body),
	})

	if page.DetectedBlock {
		f.logger.Warn("result page blocked",
			"offset", req.Offset, "status", page.StatusCode, "source", page.BlockSource)
	}

	if err := serp.CheckStatus(page); err != nil {
		f.proxyFailed(activeProxy, pooled)
		return nil, err
	}
	if pooled {
		_ = f.config.ProxyPool.MarkSuccess(activeProxy)
	}

	f.logger.Debug("fetched result page",
		"offset", req.Offset, "status", page.StatusCode, "bytes", len(body), "duration", page.Duration)
	return page, nil
}

func (f *Fetcher) proxyFailed(u *url.URL, pooled bool) {
	if u == nil {
		return
	}
	if pooled {
		_ = f.config.ProxyPool.MarkFailure(u)
	}
	metrics.RecordProxyFailure(u.Redacted())
}
