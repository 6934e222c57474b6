// Package commands implements the CLI commands for serpent.
package commands

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "serpent",
	Short: "Search result page scraper",
	Long: `Serpent runs Google searches and returns the organic results.

Results are fetched either with a plain HTTP request or through headless
Chrome, paginated and de-duplicated, then printed and optionally stored.

Examples:
  # First 20 result URLs
  serpent search -n 20 "golang generics"

  # Titles and descriptions as JSON, through a proxy
  serpent search --advanced --format json --proxy socks5://127.0.0.1:1080 "golang"

  # Render with Chrome and keep results in SQLite
  serpent search --render --store sqlite:results.db "golang"

  # Summarize stored results
  serpent report --store sqlite:results.db --since 24h`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		slog.SetDefault(newLogger(os.Stderr))
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default $HOME/.serpent.yaml)")
	flags.Bool("debug", false, "enable debug logging")
	flags.BoolP("quiet", "q", false, "only log errors")
	flags.Bool("log-json", false, "log as JSON")
	flags.String("store", "", "result store: sqlite:PATH, postgres://..., csv:PATH, json:PATH")

	_ = viper.BindPFlag("config", flags.Lookup("config"))
	_ = viper.BindPFlag("debug", flags.Lookup("debug"))
	_ = viper.BindPFlag("quiet", flags.Lookup("quiet"))
	_ = viper.BindPFlag("log_json", flags.Lookup("log-json"))
	_ = viper.BindPFlag("store", flags.Lookup("store"))
}

func initConfig() {
	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigName(".serpent")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("SERPENT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	// Read config file (ignore error if not found)
	_ = viper.ReadInConfig()
}

// newLogger builds the process logger from the global flags.
func newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if viper.GetBool("debug") {
		level = slog.LevelDebug
	}
	if viper.GetBool("quiet") {
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if viper.GetBool("log_json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// openOutput returns stdout or the named file.
func openOutput(path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopCloser{os.Stdout}, nil
	}
	return os.Create(path) //#nosec G304 -- CLI tool writes to user-specified output file
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
