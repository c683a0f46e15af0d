package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ledgersift/ledgersift/internal/taxonomy"
)

func classifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify <text>...",
		Short: "Classify one or more transaction descriptions",
		Long: `Classify transaction descriptions against the server's taxonomy and
print the best category with its confidence score.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runClassify,
	}

	cmd.Flags().String("server", "http://localhost:8000", "ledgersift server URL")
	cmd.Flags().Duration("timeout", 60*time.Second, "per-request timeout")

	return cmd
}

func runClassify(cmd *cobra.Command, args []string) error {
	serverURL, _ := cmd.Flags().GetString("server")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	client := taxonomy.NewClient(serverURL, timeout)

	results, err := client.MatchBulk(cmd.Context(), args)
	if err != nil {
		return fmt.Errorf("classification failed: %w", err)
	}

	for _, r := range results {
		fmt.Fprintf(os.Stdout, "%-40q %s (%.2f)\n", r.Text, r.Category.Name, r.Score)
		for _, e := range r.Entities {
			fmt.Fprintf(os.Stdout, "    %s: %s\n", e.Label, e.Text)
		}
	}

	return nil
}
