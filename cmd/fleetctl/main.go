package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var AppVersion string

const defaultServerURL = "http://localhost:8080"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		serverURL string
		timeout   time.Duration
	)

	cmd := &cobra.Command{
		Use:           "fleetctl",
		Short:         "Inspect and feed a fleet monitor server",
		Version:       AppVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&serverURL, "server", envOr("FLEET_SERVER_URL", defaultServerURL), "Base URL of the fleet monitor server")
	cmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Second, "Request timeout")

	cmd.AddCommand(newStatusCommand(&serverURL, &timeout))
	cmd.AddCommand(newSendCommand(&serverURL, &timeout))
	cmd.AddCommand(newMigrateCommand())
	return cmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
