package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	cli "github.com/devpilot/devpilot/cmd/devpilot"
)

func main() {
	// Load .env if present; absence is fine.
	_ = godotenv.Load()

	if err := cli.SetupRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
