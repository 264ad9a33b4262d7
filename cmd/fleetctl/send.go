package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/EternisAI/fleet-monitor/internal/agent"
	"github.com/EternisAI/fleet-monitor/internal/api/http/dto"
	"github.com/spf13/cobra"
)

func newSendCommand(serverURL *string, timeout *time.Duration) *cobra.Command {
	var (
		clientID  string
		machineID string
		programs  []string
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a single heartbeat",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if machineID == "" {
				hostname, err := os.Hostname()
				if err != nil {
					return fmt.Errorf("--machine-id not set and hostname unavailable: %w", err)
				}
				machineID = hostname
			}
			if programs == nil {
				programs = []string{}
			}

			reporter := agent.NewHTTPReporter(*serverURL, *timeout)
			err := reporter.Report(ctx, dto.HeartbeatRequest{
				ClientID:        clientID,
				MachineID:       machineID,
				RunningPrograms: programs,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "heartbeat sent for %s\n", machineID)
			return nil
		},
	}

	cmd.Flags().StringVar(&clientID, "client-id", "", "Client that owns the machine")
	cmd.Flags().StringVar(&machineID, "machine-id", "", "Machine identifier (defaults to the hostname)")
	cmd.Flags().StringSliceVar(&programs, "program", nil, "Running program name, repeatable")
	_ = cmd.MarkFlagRequired("client-id")
	return cmd
}
