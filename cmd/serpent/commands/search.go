package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/FranksOps/serpent/internal/fingerprint"
	"github.com/FranksOps/serpent/internal/metrics"
	"github.com/FranksOps/serpent/internal/output"
	"github.com/FranksOps/serpent/internal/pipeline"
	"github.com/FranksOps/serpent/internal/render"
	"github.com/FranksOps/serpent/internal/scraper"
	"github.com/FranksOps/serpent/internal/serp"
	"github.com/FranksOps/serpent/pkg/proxy"
	"github.com/FranksOps/serpent/pkg/useragent"
)

var searchCmd = &cobra.Command{
	Use:   "search [flags] TERM...",
	Short: "Search and print the organic results",
	Long: `Search runs one search per TERM and prints every organic result.

Pages are fetched until the requested number of results is reached or the
engine has no more new results. A blocked or failed page ends that term's
search; results already printed stand.

Examples:
  serpent search -n 30 --unique "site reliability engineering"
  serpent search --lang de --region DE --safe off "wetter"
  serpent search --proxy-file proxies.txt --sleep 5s --concurrency 2 "a" "b" "c"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	flags := searchCmd.Flags()

	// Search settings
	flags.IntP("num", "n", 10, "number of results per term")
	flags.String("lang", "en", "interface language (hl)")
	flags.String("region", "", "country code (gl)")
	flags.String("safe", "active", "safe search mode")
	flags.Int("start", 0, "first page offset, a multiple of 10")
	flags.Bool("unique", false, "drop URLs already returned for the term")
	flags.Bool("advanced", false, "include titles and descriptions")

	// Fetch settings
	flags.Bool("render", false, "render pages in headless Chrome")
	flags.String("endpoint", serp.DefaultEndpoint, "search endpoint")
	flags.Duration("timeout", 5*time.Second, "per-page timeout")
	flags.Duration("sleep", 0, "pause between page fetches")
	flags.Float64("sleep-jitter", 0, "randomize the pause by up to this fraction (0-1)")
	flags.Bool("insecure", false, "skip TLS certificate verification")
	flags.String("fingerprint", string(fingerprint.ProfileChrome), "TLS fingerprint for direct fetches: chrome, firefox, safari, edge, go, random")
	flags.String("user-agent", "", "pin a User-Agent instead of generating one per page")
	flags.String("user-agent-file", "", "file of User-Agents to pick from, one per line")
	flags.Bool("user-agent-sequential", false, "use the User-Agent file in order instead of at random")
	flags.String("chrome-path", "", "Chrome binary (default: auto-detect)")
	flags.Bool("headful", false, "show the browser window when rendering")

	// Proxy settings
	flags.String("proxy", "", "proxy URL for every page (http, https or socks5)")
	flags.String("proxy-file", "", "file of proxy URLs to rotate, one per line")

	// Output settings
	flags.StringP("output", "o", "", "output file (default: stdout)")
	flags.String("format", string(output.FormatText), "output format: text, json, jsonl, yaml")
	flags.IntP("concurrency", "c", 1, "terms searched at once")
	flags.Int("metrics-port", 0, "serve Prometheus metrics on this port (0 disables)")

	for _, name := range []string{
		"num", "lang", "region", "safe", "start", "unique", "advanced",
		"render", "endpoint", "timeout", "sleep", "sleep-jitter", "insecure",
		"fingerprint", "user-agent", "user-agent-file", "user-agent-sequential", "chrome-path", "headful",
		"proxy", "proxy-file", "output", "format", "concurrency", "metrics-port",
	} {
		_ = viper.BindPFlag("search."+name, flags.Lookup(name))
	}
}

func runSearch(cmd *cobra.Command, args []string) error {
	logger := slog.Default()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	opts, err := searchOptions()
	if err != nil {
		return err
	}
	for _, term := range args {
		o := opts
		o.Term = term
		if err := o.Validate(); err != nil {
			return err
		}
	}

	pool, err := loadProxyPool(viper.GetString("search.proxy-file"))
	if err != nil {
		return err
	}

	var uas useragent.Provider = useragent.NewGenerator()
	switch {
	case viper.GetString("search.user-agent") != "":
		uas = useragent.Static(viper.GetString("search.user-agent"))
	case viper.GetString("search.user-agent-file") != "":
		uaPool, err := useragent.LoadFile(viper.GetString("search.user-agent-file"), viper.GetBool("search.user-agent-sequential"))
		if err != nil {
			return err
		}
		uas = uaPool
	}

	cfg := pipeline.Config{
		Options:     opts,
		Concurrency: viper.GetInt("search.concurrency"),
		Logger:      logger,
	}

	if opts.Render {
		rf, err := render.NewFetcher(render.Config{
			Endpoint:   viper.GetString("search.endpoint"),
			ChromePath: viper.GetString("search.chrome-path"),
			ProxyAuth:  render.NewProxyAuth(uas),
			ProxyPool:  pool,
			Headful:    viper.GetBool("search.headful"),
			Logger:     logger,
		})
		if err != nil {
			return err
		}
		cfg.Render = rf
	} else {
		profile, err := fingerprint.ParseProfile(viper.GetString("search.fingerprint"))
		if err != nil {
			return err
		}
		df, err := scraper.NewFetcher(scraper.FetchConfig{
			Endpoint:    viper.GetString("search.endpoint"),
			ProxyPool:   pool,
			UserAgents:  uas,
			Fingerprint: profile,
			Logger:      logger,
		})
		if err != nil {
			return err
		}
		cfg.Direct = df
	}

	if dsn := viper.GetString("store"); dsn != "" {
		store, err := pipeline.OpenStore(ctx, dsn)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		cfg.Store = store
	}

	if port := viper.GetInt("search.metrics-port"); port > 0 {
		srv := metrics.Start(port, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Stop(shutdownCtx)
		}()
	}

	p, err := pipeline.New(cfg)
	if err != nil {
		return err
	}

	out, err := openOutput(viper.GetString("search.output"))
	if err != nil {
		return fmt.Errorf("open output: %w", err)
	}
	defer func() { _ = out.Close() }()

	writer, err := output.NewWriter(out, output.Format(viper.GetString("search.format")), opts.Advanced)
	if err != nil {
		return err
	}

	logger.Info("starting search", "terms", len(args), "strategy", p.Strategy(), "num", opts.NumResults)

	outcomes, runErr := p.RunAll(ctx, args, writer.Write)
	if err := writer.Close(); err != nil {
		return err
	}

	total := 0
	for _, o := range outcomes {
		total += o.Results
		if o.Err != nil {
			logger.Error("term failed", "term", o.Term, "results", o.Results, "error", o.Err)
		}
	}
	logger.Info("search complete", "results", total)

	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}

// searchOptions assembles the search template from flags, env and config.
func searchOptions() (serp.Options, error) {
	opts := serp.Options{
		NumResults:    viper.GetInt("search.num"),
		Lang:          viper.GetString("search.lang"),
		Region:        viper.GetString("search.region"),
		Safe:          viper.GetString("search.safe"),
		StartOffset:   viper.GetInt("search.start"),
		Unique:        viper.GetBool("search.unique"),
		Advanced:      viper.GetBool("search.advanced"),
		Render:        viper.GetBool("search.render"),
		Timeout:       viper.GetDuration("search.timeout"),
		SleepInterval: viper.GetDuration("search.sleep"),
		SleepJitter:   viper.GetFloat64("search.sleep-jitter"),
		SkipTLSVerify: viper.GetBool("search.insecure"),
	}
	if raw := viper.GetString("search.proxy"); raw != "" {
		u, err := proxy.Parse(raw)
		if err != nil {
			return opts, fmt.Errorf("%w: %w", serp.ErrInvalidOptions, err)
		}
		opts.Proxy = u
	}
	return opts, nil
}

func loadProxyPool(path string) (*proxy.Pool, error) {
	if path == "" {
		return nil, nil
	}
	pool := proxy.NewPool(proxy.Config{})
	if err := pool.LoadFile(path); err != nil {
		return nil, err
	}
	if pool.Len() == 0 {
		return nil, fmt.Errorf("proxy: no proxies in %s", path)
	}
	slog.Debug("loaded proxies", "path", path, "count", pool.Len())
	return pool, nil
}
