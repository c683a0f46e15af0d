package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/ledgersift/ledgersift/internal/common"
	"github.com/ledgersift/ledgersift/internal/model"
)

func ingestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <file>",
		Short: "Upload a transaction file and watch it process",
		Long: `Upload a CSV or JSON transaction file to a running ledgersift server,
then poll batch progress until the batch reaches a terminal state.`,
		Args: cobra.ExactArgs(1),
		RunE: runIngest,
	}

	cmd.Flags().String("server", "http://localhost:8000", "ledgersift server URL")
	cmd.Flags().Bool("no-wait", false, "return immediately after upload without polling")

	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	serverURL, _ := cmd.Flags().GetString("server")
	noWait, _ := cmd.Flags().GetBool("no-wait")

	client := newAPIClient(serverURL)
	ctx := cmd.Context()

	batch, err := client.uploadFile(ctx, args[0])
	if err != nil {
		return common.NewUserError(fmt.Sprintf("could not upload %s, is the server running at %s?", args[0], serverURL), err)
	}

	slog.Info("batch created",
		"batch_id", batch.ID,
		"total_items", batch.TotalItems,
		"filename", batch.Filename)

	if noWait {
		return nil
	}

	final, err := watchBatch(ctx, client, batch)
	if err != nil {
		return err
	}

	slog.Info("batch finished",
		"batch_id", final.ID,
		"status", final.Status,
		"processed", final.Processed,
		"saved", final.Saved,
		"low_confidence", len(final.LowConfidence))

	if len(final.LowConfidence) > 0 {
		fmt.Fprintf(os.Stdout, "\n%d transactions need review:\n", len(final.LowConfidence))
		for _, r := range final.LowConfidence {
			fmt.Fprintf(os.Stdout, "  %-40q -> %s (%.2f)\n", r.Text, r.Category.Name, r.Score)
		}
	}

	return nil
}

// watchBatch polls progress snapshots once per second until the batch is
// terminal, rendering a progress bar over processed items.
func watchBatch(ctx context.Context, client *apiClient, batch *model.UploadBatch) (*model.UploadBatch, error) {
	bar := progressbar.NewOptions(batch.TotalItems,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]Classifying transactions...[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(os.Stderr)
		}),
	)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		snapshot, err := client.getBatch(ctx, batch.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to poll batch: %w", err)
		}

		_ = bar.Set(snapshot.Processed)

		if snapshot.Status.Terminal() {
			_ = bar.Finish()
			return snapshot, nil
		}
	}
}
