// Package cli wires the devpilot commands.
package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/devpilot/devpilot/internal/config"
)

// Shared CLI flags.
var (
	cfgFile string
	verbose bool
)

// SetupRootCmd configures the root command with all subcommands and flags.
func SetupRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "devpilot",
		Short: "devpilot - live page inspection bridge for LLM agents",
		Long: `devpilot lets an LLM agent inspect and drive a running web page.

Pages connect over websocket (either through the in-page client script or via
'devpilot attach', which opens a URL in Chrome). The agent talks to the bridge
over MCP: snapshots, element details, clicks, input, console logs, and
screenshots, all addressed by stable element ids.

Run 'devpilot serve' to start the bridge.`,
		Run: func(cmd *cobra.Command, args []string) {
			// Bare invocation starts the server, like serve.
			runServe(cmd, args)
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "devpilot.yaml", "config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(ServeCmd())
	rootCmd.AddCommand(AttachCmd())

	return rootCmd
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, err
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

// setupLogging installs the process-wide slog handler per the config.
func setupLogging(cfg config.Config) {
	var level slog.Level
	switch cfg.Log.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
