package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/EternisAI/fleet-monitor/internal/api/http/dto"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"gopkg.in/yaml.v3"
)

const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
)

func newStatusCommand(serverURL *string, timeout *time.Duration) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the liveness of every known machine",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			client := &http.Client{Timeout: *timeout, Transport: otelhttp.NewTransport(http.DefaultTransport)}
			rows, err := fetchMachines(ctx, client, *serverURL)
			if err != nil {
				return err
			}
			return renderStatus(cmd.OutOrStdout(), rows, output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "Output format: table, json or yaml")
	return cmd
}

func fetchMachines(ctx context.Context, client *http.Client, serverURL string) ([]dto.MachineRow, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(serverURL, "/")+"/api/machines", nil)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch machines: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp dto.ErrorResponse
		if json.NewDecoder(resp.Body).Decode(&errResp) == nil && errResp.Error != "" {
			return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, errResp.Error)
		}
		return nil, fmt.Errorf("server returned %d", resp.StatusCode)
	}

	var rows []dto.MachineRow
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode machines: %w", err)
	}
	return rows, nil
}

type yamlRow struct {
	ClientID        string `yaml:"client_id"`
	MachineID       string `yaml:"machine_id"`
	LastSeen        string `yaml:"last_seen"`
	Status          string `yaml:"status"`
	RunningPrograms string `yaml:"running_programs"`
}

func renderStatus(w io.Writer, rows []dto.MachineRow, format string) error {
	switch format {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if rows == nil {
			rows = []dto.MachineRow{}
		}
		return enc.Encode(rows)

	case outputYAML:
		out := make([]yamlRow, 0, len(rows))
		for _, r := range rows {
			out = append(out, yamlRow(r))
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(out); err != nil {
			return err
		}
		return enc.Close()

	case outputTable, "":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "MACHINE\tCLIENT\tSTATUS\tLAST SEEN\tPROGRAMS")
		online := 0
		for _, r := range rows {
			if r.Status == "ONLINE" {
				online++
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.MachineID, r.ClientID, r.Status, r.LastSeen, r.RunningPrograms)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		_, err := fmt.Fprintf(w, "\n%d machines, %d online, %d offline\n", len(rows), online, len(rows)-online)
		return err

	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
