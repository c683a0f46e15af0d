package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ledgersift/ledgersift/internal/common"
	"github.com/ledgersift/ledgersift/internal/review"
)

func correctCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "correct <file|->",
		Short: "Apply human corrections from a JSON file",
		Long: `Apply corrections to previously classified transactions. The input is a
JSON array of {"text": ..., "corrected": ...} records; use - to read from
stdin. Each correction teaches the taxonomy and relabels all transactions
with a matching description.`,
		Args: cobra.ExactArgs(1),
		RunE: runCorrect,
	}

	cmd.Flags().String("server", "http://localhost:8000", "ledgersift server URL")

	return cmd
}

func runCorrect(cmd *cobra.Command, args []string) error {
	serverURL, _ := cmd.Flags().GetString("server")

	var data []byte
	var err error
	if args[0] == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return fmt.Errorf("failed to read corrections: %w", err)
	}

	var corrections []review.Correction
	if err := json.Unmarshal(data, &corrections); err != nil {
		return common.NewUserError(fmt.Sprintf("%s is not a valid corrections file", args[0]), err)
	}

	client := newAPIClient(serverURL)
	applied, err := client.applyCorrections(cmd.Context(), corrections)
	if err != nil {
		return fmt.Errorf("failed to apply corrections: %w", err)
	}

	fmt.Fprintf(os.Stdout, "Applied %d of %d corrections.\n", applied, len(corrections))
	return nil
}
