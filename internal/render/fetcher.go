// Package render implements the headless-browser result page fetch strategy.
// Every page is loaded in its own short-lived Chrome session driven by chromedp.
package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/FranksOps/serpent/internal/bypass"
	"github.com/FranksOps/serpent/internal/metrics"
	"github.com/FranksOps/serpent/internal/serp"
	"github.com/FranksOps/serpent/pkg/proxy"
)

// StrategyName identifies the render strategy in logs, metrics and storage.
const StrategyName = "render"

// DefaultWaitSelector is the results container awaited before capture.
const DefaultWaitSelector = "div.YrbPuc"

// ErrNoBrowser is returned when no Chrome binary can be located.
var ErrNoBrowser = errors.New("render: no Chrome/Chromium binary found")

// Config configures the render Fetcher.
type Config struct {
	// Endpoint is the search URL. Defaults to serp.DefaultEndpoint.
	Endpoint string
	// ChromePath overrides Chrome discovery.
	ChromePath string
	// ProxyAuth supplies identities and proxy-auth extensions. Defaults to
	// NewProxyAuth(nil).
	ProxyAuth *ProxyAuth
	// ProxyPool supplies a proxy per page when the request names none.
	ProxyPool *proxy.Pool
	// WaitSelector is awaited (softly) before capture. Defaults to
	// DefaultWaitSelector.
	WaitSelector string
	// Timeout applies when a request carries none. Defaults to 30s.
	Timeout time.Duration
	// Headful shows the browser window, for debugging.
	Headful   bool
	Detectors []bypass.Detector
	Logger    *slog.Logger
}

// Fetcher renders result pages in headless Chrome.
type Fetcher struct {
	config Config
	logger *slog.Logger
}

var _ serp.Fetcher = (*Fetcher)(nil)

// NewFetcher returns a render Fetcher, or ErrNoBrowser when Chrome is missing.
func NewFetcher(cfg Config) (*Fetcher, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = serp.DefaultEndpoint
	}
	if cfg.ProxyAuth == nil {
		cfg.ProxyAuth = NewProxyAuth(nil)
	}
	if cfg.WaitSelector == "" {
		cfg.WaitSelector = DefaultWaitSelector
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Detectors == nil {
		cfg.Detectors = bypass.DefaultDetectors()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ChromePath == "" {
		cfg.ChromePath = FindChromePath()
	}
	if cfg.ChromePath == "" {
		return nil, ErrNoBrowser
	}
	return &Fetcher{config: cfg, logger: cfg.Logger.With("strategy", StrategyName)}, nil
}

// Name implements serp.Fetcher.
func (f *Fetcher) Name() string { return StrategyName }

// FetchPage loads the result page in a fresh browser session. The session
// and any proxy-auth extension are gone when FetchPage returns.
func (f *Fetcher) FetchPage(ctx context.Context, req serp.FetchRequest) (*serp.Page, error) {
	target, err := serp.BuildURL(f.config.Endpoint, req)
	if err != nil {
		return nil, err
	}
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = f.config.Timeout
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

	ext, ua, err := f.config.ProxyAuth.Prepare(activeProxy)
	if err != nil {
		f.proxyFailed(activeProxy, pooled)
		return nil, fmt.Errorf("%w: %w", serp.ErrFetch, err)
	}

	start := time.Now()
	s, err := openSession(ctx, sessionConfig{
		chromePath:    f.config.ChromePath,
		userAgent:     ua,
		proxy:         activeProxy,
		extension:     ext,
		skipTLSVerify: req.SkipTLSVerify,
		headful:       f.config.Headful,
		logger:        f.logger,
	})
	if err != nil {
		metrics.RecordFetch(metrics.Fetch{Strategy: StrategyName, Err: err, Duration: time.Since(start)})
		return nil, fmt.Errorf("%w: %w", serp.ErrFetch, err)
	}
	defer func() {
		if err := s.Close(); err != nil {
			f.logger.Warn("browser session cleanup failed", "error", err)
		}
	}()

	page, err := f.load(s, target, timeout)
	if err != nil {
		f.proxyFailed(activeProxy, pooled)
		metrics.RecordFetch(metrics.Fetch{Strategy: StrategyName, Err: err, Duration: time.Since(start)})
		return nil, fmt.Errorf("%w: %w", serp.ErrFetch, err)
	}
	page.Duration = time.Since(start)
	page.Proxy = activeProxy

	metrics.RecordFetch(metrics.Fetch{
		Strategy:      StrategyName,
		StatusCode:    page.StatusCode,
		Detected:      page.DetectedBlock,
		DetectionSrc:  page.BlockSource,
		Duration:      page.Duration,
		ResponseBytes: len(page.HTML),
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

	f.logger.Debug("rendered result page",
		"offset", req.Offset, "status", page.StatusCode, "bytes", len(page.HTML), "duration", page.Duration)
	return page, nil
}

// load navigates, waits softly for the results container and captures the
// rendered document.
func (f *Fetcher) load(s *session, target string, timeout time.Duration) (*serp.Page, error) {
	navCtx, cancelNav := context.WithTimeout(s.ctx, timeout)
	defer cancelNav()

	if err := chromedp.Run(navCtx, setCookies(target, serp.ConsentCookies())); err != nil {
		return nil, fmt.Errorf("render: set cookies: %w", err)
	}
	resp, err := chromedp.RunResponse(navCtx, chromedp.Navigate(target))
	if err != nil {
		return nil, fmt.Errorf("render: navigate: %w", err)
	}

	page := &serp.Page{URL: target, StatusCode: http.StatusOK}
	var headers http.Header
	if resp != nil {
		page.URL = resp.URL
		page.StatusCode = int(resp.Status)
		headers = toHTTPHeader(resp.Headers)
	}

	waitCtx, cancelWait := context.WithTimeout(s.ctx, timeout)
	err = chromedp.Run(waitCtx, chromedp.WaitVisible(f.config.WaitSelector, chromedp.ByQuery))
	cancelWait()
	if err != nil {
		if s.ctx.Err() != nil {
			return nil, fmt.Errorf("render: wait: %w", s.ctx.Err())
		}
		f.logger.Warn("results container not visible before timeout",
			"selector", f.config.WaitSelector, "timeout", timeout, "error", err)
	}

	captureCtx, cancelCapture := context.WithTimeout(s.ctx, timeout)
	defer cancelCapture()
	if err := chromedp.Run(captureCtx, chromedp.OuterHTML("html", &page.HTML, chromedp.ByQuery)); err != nil {
		return nil, fmt.Errorf("render: capture: %w", err)
	}

	page.DetectedBlock, page.BlockSource = bypass.Analyze(&bypass.Response{
		URL:        page.URL,
		StatusCode: page.StatusCode,
		Headers:    headers,
		Body:       []byte(page.HTML),
	}, f.config.Detectors)
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

// setCookies installs cookies for the target's host before navigation.
func setCookies(targetURL string, cookies []*http.Cookie) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		u, err := url.Parse(targetURL)
		if err != nil {
			return fmt.Errorf("parse URL for cookies: %w", err)
		}
		params := make([]*network.CookieParam, 0, len(cookies))
		for _, c := range cookies {
			params = append(params, &network.CookieParam{
				Name:   c.Name,
				Value:  c.Value,
				Domain: u.Hostname(),
				Path:   "/",
				Secure: u.Scheme == "https",
			})
		}
		return network.SetCookies(params).Do(ctx)
	})
}

func toHTTPHeader(h network.Headers) http.Header {
	out := make(http.Header, len(h))
	for k, v := range h {
		out.Set(k, fmt.Sprint(v))
	}
	return out
}
