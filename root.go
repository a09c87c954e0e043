package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/icloud-go/internal/config"
	"github.com/tonimelisma/icloud-go/internal/icloud"
	"github.com/tonimelisma/icloud-go/internal/snapshotfile"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath  string
	flagSessionPath string
	flagJSON        bool
	flagVerbose     bool
	flagQuiet       bool
)

// Effective configuration loaded by PersistentPreRunE, available to all
// subcommands after the root pre-run phase completes.
var (
	resolvedCfg         *config.Config
	resolvedSessionPath string
)

// newRootCmd builds and returns the fully-assembled root command with all
// subcommands registered. Called once from main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "icloud-go",
		Short:   "iCloud Drive CLI client",
		Long:    "A command-line client for iCloud Drive: session login, two-factor verification, and read-only browsing of the drive tree.",
		Version: version,
		// Silence Cobra's default error/usage printing — we handle it ourselves.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return loadConfig()
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().StringVar(&flagSessionPath, "session", "", "session snapshot file path")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output in JSON format")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")

	// Register subcommands.
	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newLogoutCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newLsCmd())

	return cmd
}

// loadConfig resolves the effective configuration from the override chain
// (defaults -> config file -> environment -> CLI flags) and stores the
// result for use by subcommands.
func loadConfig() error {
	env := config.ReadEnvOverrides()

	cfg, sessionPath, err := config.Resolve(env, flagConfigPath, flagSessionPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	resolvedCfg = cfg
	resolvedSessionPath = sessionPath

	return nil
}

// buildLogger creates an slog.Logger configured by the resolved config and
// CLI flags. Config-file log level provides the baseline; --verbose and
// --quiet override it because CLI flags always win.
func buildLogger() *slog.Logger {
	level := slog.LevelInfo

	if resolvedCfg != nil {
		switch resolvedCfg.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}

	// CLI flags override config (highest priority).
	if flagVerbose {
		level = slog.LevelDebug
	}

	if flagQuiet {
		level = slog.LevelError
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// defaultHTTPClient returns an HTTP client bounded by the configured
// timeout. The session engine imposes no timeouts itself.
func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: resolvedCfg.Timeout()}
}

// newSessionClient resumes the session engine from the snapshot on disk.
// A missing snapshot file starts a fresh session.
func newSessionClient(logger *slog.Logger) (*icloud.Client, error) {
	snap, err := snapshotfile.Load(resolvedSessionPath)
	if err != nil {
		return nil, err
	}

	return icloud.NewClient(snap, defaultHTTPClient(), logger), nil
}

// saveSession persists the client's current snapshot. Called after every
// protocol exchange, including failed ones — credential fields gained along
// the way (e.g. an scnt from a rejected login) are worth keeping.
func saveSession(client *icloud.Client) error {
	return snapshotfile.Save(resolvedSessionPath, client.Snapshot())
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
