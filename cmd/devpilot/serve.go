package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/devpilot/devpilot/internal/server"
)

var listenFlag string

// ServeCmd starts the bridge server.
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the bridge server",
		Long: `Start the bridge server.

Pages register at /ws; MCP clients connect at /mcp. The server runs until
interrupted.`,
		Run: runServe,
	}
	cmd.Flags().StringVar(&listenFlag, "listen", "", "listen address (overrides config)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if listenFlag != "" {
		cfg.Listen = listenFlag
	}
	setupLogging(cfg)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := server.Run(ctx, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
