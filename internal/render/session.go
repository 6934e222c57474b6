package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/chromedp/chromedp"

	"github.com/FranksOps/serpent/pkg/proxy"
)

// sessionConfig is everything needed to launch one isolated browser.
type sessionConfig struct {
	chromePath    string
	userAgent     string
	proxy         *url.URL
	extension     *Extension
	skipTLSVerify bool
	headful       bool
	logger        *slog.Logger
}

// session is one browser process with its tab. Close tears everything down,
// including the proxy-auth extension handed to it.
type session struct {
	ctx         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	extension   *Extension
}

func allocatorOptions(cfg sessionConfig) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("excludeSwitches", "enable-automation"),
		chromedp.WindowSize(412, 915),
		chromedp.UserAgent(cfg.userAgent),
	)
	if cfg.headful {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if cfg.chromePath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.chromePath))
	}
	if cfg.skipTLSVerify {
		opts = append(opts, chromedp.IgnoreCertErrors)
	}

	switch {
	case cfg.extension != nil:
		// Extensions do not run in incognito; the allocator's throwaway
		// profile keeps the session isolated instead.
		opts = append(opts,
			chromedp.Flag("disable-extensions", false),
			chromedp.Flag("disable-extensions-except", cfg.extension.Dir),
			chromedp.Flag("load-extension", cfg.extension.Dir),
			chromedp.Flag("disable-features", "DisableLoadExtensionCommandLineSwitch"),
		)
	case cfg.proxy != nil:
		opts = append(opts, chromedp.Flag("incognito", true), chromedp.ProxyServer(proxy.Server(cfg.proxy)))
	default:
		opts = append(opts, chromedp.Flag("incognito", true))
	}
	return opts
}

// openSession launches the browser. On error nothing is left running and the
// extension has been removed.
func openSession(ctx context.Context, cfg sessionConfig) (*session, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocatorOptions(cfg)...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			cfg.logger.Debug("chromedp", "msg", fmt.Sprintf(format, args...))
		}),
	)
	s := &session{
		ctx:         tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
		extension:   cfg.extension,
	}

	// Start the browser on the untimed context so later per-step deadlines
	// only abort actions, not the browser itself.
	if err := chromedp.Run(tabCtx); err != nil {
		return nil, errors.Join(fmt.Errorf("render: start browser: %w", err), s.Close())
	}
	return s, nil
}

// Close shuts the browser down, waits for the process to exit and removes
// the extension.
func (s *session) Close() error {
	s.cancelTab()
	s.cancelAlloc()
	return s.extension.Cleanup()
}
