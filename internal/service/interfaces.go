// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/ledgersift/ledgersift/internal/model"
)

// TransactionFilter defines filtering options for transaction queries.
type TransactionFilter struct {
	Limit  int
	Offset int
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	// Transaction operations
	SaveTransactions(ctx context.Context, transactions []model.Transaction) error
	CreateTransaction(ctx context.Context, txn *model.Transaction) error
	GetTransactionByID(ctx context.Context, id int64) (*model.Transaction, error)
	GetTransactions(ctx context.Context, filter TransactionFilter) ([]model.Transaction, error)
	GetTransactionsByDescription(ctx context.Context, description string) ([]model.Transaction, error)
	SetUserLabelByDescription(ctx context.Context, description, label string) (int64, error)
	DeleteTransaction(ctx context.Context, id int64) error

	// Batch operations
	CreateBatch(ctx context.Context, filename string, items []model.Payload) (*model.UploadBatch, error)
	GetBatch(ctx context.Context, id int64) (*model.UploadBatch, error)
	ListBatches(ctx context.Context, limit int) ([]model.UploadBatch, error)
	GetBatchItems(ctx context.Context, batchID int64) ([]model.UploadItem, error)
	SetBatchStatus(ctx context.Context, id int64, status model.BatchStatus) error
	SetBatchProgress(ctx context.Context, id int64, processed, saved int) error
	CompleteBatch(ctx context.Context, id int64, processed, saved int, lowConfidence []model.ClassificationResult) error
	MarkItemProcessed(ctx context.Context, itemID int64, itemErr string) error
	MarkItemsSaved(ctx context.Context, itemIDs []int64) error

	// Taxonomy operations
	GetCategories(ctx context.Context) ([]model.Category, error)
	SaveCategory(ctx context.Context, category *model.Category) error

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// Classifier answers single and bulk best-category queries. MatchBulk
// returns results in input order and is behaviorally identical to calling
// Match once per text.
type Classifier interface {
	Match(ctx context.Context, text string) (model.ClassificationResult, error)
	MatchBulk(ctx context.Context, texts []string) ([]model.ClassificationResult, error)
	Update(ctx context.Context, categoryName, example string) (int, error)
}

// BatchSummary is returned by the pipeline when a batch run finishes.
type BatchSummary struct {
	LowConfidence []model.ClassificationResult
	BatchID       int64
	Processed     int
	Saved         int
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	// Sleeper, when set, replaces the real backoff sleep. Tests use it to
	// run retry schedules without waiting.
	Sleeper      func(ctx context.Context, d time.Duration) error
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
