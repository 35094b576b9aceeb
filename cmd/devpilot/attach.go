package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/devpilot/devpilot/internal/attach"
)

var (
	attachServer   string
	attachClientID string
	attachHeadless bool
)

// AttachCmd opens a URL in Chrome and exposes it to the bridge.
func AttachCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "attach <url>",
		Short: "Open a page in Chrome and connect it to the bridge",
		Long: `Open a page in Chrome under DevTools control and register it with the
bridge as a connected client. Useful for pages that do not embed the client
script: the agent gets the same tool surface either way.

The tab stays open until interrupted.`,
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := loadConfig()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
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

			err = attach.Run(ctx, attach.Options{
				ServerURL: attachServer,
				TargetURL: args[0],
				ClientID:  attachClientID,
				Headless:  attachHeadless,
			})
			if err != nil && ctx.Err() == nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		},
	}
	cmd.Flags().StringVar(&attachServer, "server", "ws://localhost:4330/ws", "bridge websocket endpoint")
	cmd.Flags().StringVar(&attachClientID, "client-id", "", "client id to register as (default: server-assigned)")
	cmd.Flags().BoolVar(&attachHeadless, "headless", false, "run Chrome headlessly")
	return cmd
}
