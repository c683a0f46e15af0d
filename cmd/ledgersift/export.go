package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export classified transactions",
		Long: `Download all transactions from the server as CSV or JSON. The category
column carries the user label when one exists, otherwise the prediction.`,
		RunE: runExport,
	}

	cmd.Flags().String("server", "http://localhost:8000", "ledgersift server URL")
	cmd.Flags().String("format", "csv", "export format (csv, json)")
	cmd.Flags().StringP("output", "o", "", "output file (default: stdout)")

	return cmd
}

func runExport(cmd *cobra.Command, _ []string) error {
	serverURL, _ := cmd.Flags().GetString("server")
	format, _ := cmd.Flags().GetString("format")
	output, _ := cmd.Flags().GetString("output")

	if format != "csv" && format != "json" {
		return fmt.Errorf("unsupported format %q", format)
	}

	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", output, err)
		}
		defer func() { _ = f.Close() }()
		w = f
	}

	client := newAPIClient(serverURL)
	if err := client.export(cmd.Context(), format, w); err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	if output != "" {
		slog.Info("export written", "file", output, "format", format)
	}
	return nil
}
