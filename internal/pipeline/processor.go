// Package pipeline drives the ingestion of upload batches: chunked
// classification with bounded retry, triage by confidence, bulk persistence
// of transactions, and live progress counters.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ledgersift/ledgersift/internal/common"
	"github.com/ledgersift/ledgersift/internal/model"
	"github.com/ledgersift/ledgersift/internal/service"
	"github.com/ledgersift/ledgersift/internal/taxonomy"
)

// Config holds the tunables for batch processing. Classification chunking
// and persistence flushing are independent stages with their own sizes.
type Config struct {
	// Sleeper is injected into the retry loop; tests use it to run the
	// backoff schedule without real delays.
	Sleeper func(ctx context.Context, d time.Duration) error

	// ChunkSize is the number of texts sent per bulk classification call.
	ChunkSize int

	// FlushSize is the number of buffered transactions that triggers a
	// bulk insert.
	FlushSize int

	// MaxAttempts bounds the retry budget per chunk.
	MaxAttempts int

	// BaseDelay is the initial backoff delay, doubled on each retry.
	BaseDelay time.Duration

	// Threshold splits classification results into high and low confidence.
	Threshold float64
}

// DefaultConfig returns the default processing configuration.
func DefaultConfig() Config {
	return Config{
		ChunkSize:   200,
		FlushSize:   500,
		MaxAttempts: 5,
		BaseDelay:   2 * time.Second,
		Threshold:   taxonomy.DefaultThreshold,
	}
}

// Processor runs one batch at a time; distinct batches may be processed
// concurrently by independent Processor calls, each owning its own write
// buffer and counters.
type Processor struct {
	storage    service.Storage
	classifier service.Classifier
	logger     *slog.Logger
	cfg        Config
}

// New creates a processor with the given dependencies.
func New(storage service.Storage, classifier service.Classifier, cfg Config) *Processor {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 200
	}
	if cfg.FlushSize <= 0 {
		cfg.FlushSize = 500
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 2 * time.Second
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = taxonomy.DefaultThreshold
	}
	return &Processor{
		storage:    storage,
		classifier: classifier,
		cfg:        cfg,
		logger:     slog.Default().With("component", "pipeline"),
	}
}

// pending pairs a built transaction with the item that produced it, so the
// item can be marked saved once the transaction is committed.
type pending struct {
	txn    model.Transaction
	itemID int64
}

// Process runs the full lifecycle for one batch. A missing batch aborts
// with no state change. Chunk failures after exhausted retries are recorded
// per item and never abort the batch; a persistence failure during a flush
// is fatal for the batch's remaining work.
func (p *Processor) Process(ctx context.Context, batchID int64) (*service.BatchSummary, error) {
	batch, err := p.storage.GetBatch(ctx, batchID)
	if err != nil {
		if errors.Is(err, common.ErrBatchNotFound) {
			p.logger.Error("batch not found", "batch_id", batchID)
			return nil, err
		}
		return nil, fmt.Errorf("failed to load batch: %w", err)
	}

	items, err := p.storage.GetBatchItems(ctx, batchID)
	if err != nil {
		if statusErr := p.storage.SetBatchStatus(ctx, batchID, model.BatchFailed); statusErr != nil {
			p.logger.Error("failed to mark batch failed", "batch_id", batchID, "error", statusErr)
		}
		return nil, fmt.Errorf("failed to load batch items: %w", err)
	}

	if err := p.storage.SetBatchStatus(ctx, batchID, model.BatchInProgress); err != nil {
		return nil, fmt.Errorf("failed to start batch: %w", err)
	}

	p.logger.Info("processing batch",
		"batch_id", batchID,
		"total_items", batch.TotalItems,
		"chunk_size", p.cfg.ChunkSize)

	var (
		processed     int
		saved         int
		buffer        []pending
		lowConfidence []model.ClassificationResult
	)

	flush := func() error {
		if len(buffer) == 0 {
			return nil
		}

		txns := make([]model.Transaction, len(buffer))
		itemIDs := make([]int64, len(buffer))
		for i, pend := range buffer {
			txns[i] = pend.txn
			itemIDs[i] = pend.itemID
		}

		if err := p.storage.SaveTransactions(ctx, txns); err != nil {
			return fmt.Errorf("bulk insert failed: %w", err)
		}
		if err := p.storage.MarkItemsSaved(ctx, itemIDs); err != nil {
			return fmt.Errorf("failed to mark items saved: %w", err)
		}

		saved += len(buffer)
		buffer = buffer[:0]
		return p.storage.SetBatchProgress(ctx, batchID, processed, saved)
	}

	for start := 0; start < len(items); start += p.cfg.ChunkSize {
		end := min(start+p.cfg.ChunkSize, len(items))
		chunk := items[start:end]

		texts := make([]string, len(chunk))
		for i, item := range chunk {
			texts[i] = item.Payload.Description()
		}

		results, err := p.classifyChunk(ctx, texts)
		if err != nil {
			// Terminal for this chunk only: record per item and move on.
			p.logger.Error("chunk classification exhausted retries",
				"batch_id", batchID,
				"chunk_start", start,
				"chunk_size", len(chunk),
				"error", err)

			itemErr := fmt.Sprintf("classification failed after %d attempts", p.cfg.MaxAttempts)
			for _, item := range chunk {
				if markErr := p.storage.MarkItemProcessed(ctx, item.ID, itemErr); markErr != nil {
					p.logger.Error("failed to mark item", "item_id", item.ID, "error", markErr)
				}
				processed++
			}
			if progressErr := p.storage.SetBatchProgress(ctx, batchID, processed, saved); progressErr != nil {
				p.logger.Error("failed to update progress", "batch_id", batchID, "error", progressErr)
			}
			continue
		}

		_, low := taxonomy.Partition(results, p.cfg.Threshold)
		lowConfidence = append(lowConfidence, low...)

		for i, item := range chunk {
			result := results[i]
			payload := item.Payload

			buffer = append(buffer, pending{
				itemID: item.ID,
				txn: model.Transaction{
					Description:       payload.Description(),
					Amount:            payload.Amount(),
					Date:              payload.Date(),
					PredictedCategory: result.Category.Name,
					PredictedScore:    result.Score,
					Entities:          result.Entities,
				},
			})

			// Processed now; saved only after the DB commit.
			if markErr := p.storage.MarkItemProcessed(ctx, item.ID, ""); markErr != nil {
				p.logger.Error("failed to mark item processed", "item_id", item.ID, "error", markErr)
			}
			processed++
		}

		if len(buffer) >= p.cfg.FlushSize {
			if err := flush(); err != nil {
				return nil, p.abort(ctx, batchID, processed, saved, lowConfidence, err)
			}
		}
	}

	if err := flush(); err != nil {
		return nil, p.abort(ctx, batchID, processed, saved, lowConfidence, err)
	}

	if err := p.storage.CompleteBatch(ctx, batchID, processed, saved, lowConfidence); err != nil {
		return nil, fmt.Errorf("failed to complete batch: %w", err)
	}

	p.logger.Info("batch complete",
		"batch_id", batchID,
		"processed", processed,
		"saved", saved,
		"low_confidence", len(lowConfidence))

	return &service.BatchSummary{
		BatchID:       batchID,
		Processed:     processed,
		Saved:         saved,
		LowConfidence: lowConfidence,
	}, nil
}

// classifyChunk calls the classifier with the bounded retry budget. The
// delay schedule doubles from BaseDelay: 2, 4, 8, 16, 32 time-units by
// default.
func (p *Processor) classifyChunk(ctx context.Context, texts []string) ([]model.ClassificationResult, error) {
	var results []model.ClassificationResult
	err := common.WithRetry(ctx, func() error {
		var classifyErr error
		results, classifyErr = p.classifier.MatchBulk(ctx, texts)
		if classifyErr != nil {
			return &common.RetryableError{Err: classifyErr, Retryable: true}
		}
		return nil
	}, service.RetryOptions{
		MaxAttempts:  p.cfg.MaxAttempts,
		InitialDelay: p.cfg.BaseDelay,
		MaxDelay:     p.cfg.BaseDelay * 32,
		Multiplier:   2.0,
		Sleeper:      p.cfg.Sleeper,
	})
	if err != nil {
		return nil, err
	}

	if len(results) != len(texts) {
		return nil, fmt.Errorf("%w: classifier returned %d results for %d texts",
			common.ErrClassificationFailed, len(results), len(texts))
	}
	return results, nil
}

// abort finalizes a batch whose remaining work cannot proceed after a
// persistence failure. The batch still reaches a terminal state so pollers
// stop; the flush error propagates to the caller.
func (p *Processor) abort(ctx context.Context, batchID int64, processed, saved int, lowConfidence []model.ClassificationResult, cause error) error {
	p.logger.Error("aborting batch after persistence failure", "batch_id", batchID, "error", cause)
	if err := p.storage.CompleteBatch(ctx, batchID, processed, saved, lowConfidence); err != nil {
		p.logger.Error("failed to finalize aborted batch", "batch_id", batchID, "error", err)
	}
	return cause
}
