package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgersift/ledgersift/internal/ai/mock"
	"github.com/ledgersift/ledgersift/internal/common"
	"github.com/ledgersift/ledgersift/internal/model"
	"github.com/ledgersift/ledgersift/internal/service"
	"github.com/ledgersift/ledgersift/internal/storage"
	"github.com/ledgersift/ledgersift/internal/taxonomy"
)

// axisEmbed keys the seeded taxonomy onto orthogonal axes so similarities
// are exact: 1 within a group, 0 across groups.
var axisEmbed = map[string]int{
	"Food & Drink": 0, "coffee": 0, "restaurant": 0, "cafe": 0, "lunch": 0,
	"Groceries": 1, "supermarket": 1, "grocery": 1, "daily essentials": 1,
	"Transport": 2, "uber": 2, "taxi": 2, "bus": 2, "fuel": 2,
	"Utilities": 3, "internet": 3, "electricity": 3, "water": 3,
	"Salary": 4, "salary": 4, "payroll": 4,
}

func embedTexts(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		axis, ok := axisEmbed[text]
		if !ok {
			axis = 7
		}
		v := make([]float32, 8)
		v[axis] = 1
		out[i] = v
	}
	return out, nil
}

func newTestStorage(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func newTestEngine(t *testing.T, store service.Storage) *taxonomy.Engine {
	t.Helper()
	provider := mock.NewProvider()
	provider.Emb.EmbedTextsFunc = embedTexts

	engine, err := taxonomy.New(context.Background(), store, provider)
	require.NoError(t, err)
	return engine
}

// sleepRecorder captures the retry backoff schedule without waiting.
type sleepRecorder struct {
	delays []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return nil
}

// failingClassifier always errors, simulating an unreachable service.
type failingClassifier struct {
	calls int
}

func (f *failingClassifier) Match(_ context.Context, _ string) (model.ClassificationResult, error) {
	return model.ClassificationResult{}, errors.New("service unavailable")
}

func (f *failingClassifier) MatchBulk(_ context.Context, _ []string) ([]model.ClassificationResult, error) {
	f.calls++
	return nil, errors.New("service unavailable")
}

func (f *failingClassifier) Update(_ context.Context, _, _ string) (int, error) {
	return 0, errors.New("service unavailable")
}

func createBatch(t *testing.T, store service.Storage, payloads []model.Payload) *model.UploadBatch {
	t.Helper()
	batch, err := store.CreateBatch(context.Background(), "test.json", payloads)
	require.NoError(t, err)
	return batch
}

func TestProcessAllSuccess(t *testing.T) {
	store := newTestStorage(t)
	engine := newTestEngine(t, store)
	proc := New(store, engine, Config{Sleeper: (&sleepRecorder{}).sleep})

	batch := createBatch(t, store, []model.Payload{
		{"description": "coffee", "amount": 3.5, "date": "2024-01-15"},
		{"desc": "taxi", "amount": "12.80"},
		{"description": "zzz mystery merchant"},
	})

	ctx := context.Background()
	summary, err := proc.Process(ctx, batch.ID)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Processed)
	assert.Equal(t, 3, summary.Saved)

	final, err := store.GetBatch(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BatchCompleted, final.Status)
	assert.Equal(t, 3, final.Processed)
	assert.Equal(t, 3, final.Saved)

	// Only the unknown text falls below the confidence threshold.
	require.Len(t, final.LowConfidence, 1)
	assert.Equal(t, "zzz mystery merchant", final.LowConfidence[0].Text)

	txns, err := store.GetTransactions(ctx, service.TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, txns, 3)

	byDesc := make(map[string]model.Transaction, len(txns))
	for _, txn := range txns {
		byDesc[txn.Description] = txn
	}

	coffee := byDesc["coffee"]
	assert.Equal(t, "Food & Drink", coffee.PredictedCategory)
	assert.InDelta(t, 1.0, coffee.PredictedScore, 1e-6)
	require.NotNil(t, coffee.Amount)
	assert.InDelta(t, 3.5, *coffee.Amount, 1e-9)
	require.NotNil(t, coffee.Date)

	taxi := byDesc["taxi"]
	assert.Equal(t, "Transport", taxi.PredictedCategory)
	require.NotNil(t, taxi.Amount)
	assert.InDelta(t, 12.80, *taxi.Amount, 1e-9)

	items, err := store.GetBatchItems(ctx, batch.ID)
	require.NoError(t, err)
	for _, item := range items {
		assert.True(t, item.Processed)
		assert.True(t, item.Saved)
		assert.Empty(t, item.Error)
	}
}

func TestProcessRetryExhaustion(t *testing.T) {
	store := newTestStorage(t)
	classifier := &failingClassifier{}
	recorder := &sleepRecorder{}

	proc := New(store, classifier, Config{
		Sleeper:     recorder.sleep,
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
	})

	batch := createBatch(t, store, []model.Payload{
		{"description": "coffee"},
		{"description": "taxi"},
	})

	ctx := context.Background()
	summary, err := proc.Process(ctx, batch.ID)
	require.NoError(t, err, "chunk failure is recorded per item, not fatal")

	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 0, summary.Saved)
	assert.Equal(t, 3, classifier.calls)

	// The backoff doubles from the base delay; the last attempt does not sleep.
	require.Len(t, recorder.delays, 2)
	assert.Equal(t, 2*time.Second, recorder.delays[0])
	assert.Equal(t, 4*time.Second, recorder.delays[1])

	final, err := store.GetBatch(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BatchCompleted, final.Status)
	assert.Equal(t, 2, final.Processed)
	assert.Equal(t, 0, final.Saved)

	items, err := store.GetBatchItems(ctx, batch.ID)
	require.NoError(t, err)
	for _, item := range items {
		assert.True(t, item.Processed)
		assert.False(t, item.Saved)
		assert.Equal(t, "classification failed after 3 attempts", item.Error)
	}

	txns, err := store.GetTransactions(ctx, service.TransactionFilter{})
	require.NoError(t, err)
	assert.Empty(t, txns)
}

// flakyClassifier fails whenever a chunk contains the poison text.
type flakyClassifier struct {
	inner  service.Classifier
	poison string
}

func (f *flakyClassifier) Match(ctx context.Context, text string) (model.ClassificationResult, error) {
	return f.inner.Match(ctx, text)
}

func (f *flakyClassifier) MatchBulk(ctx context.Context, texts []string) ([]model.ClassificationResult, error) {
	for _, text := range texts {
		if text == f.poison {
			return nil, errors.New("embedding service choked")
		}
	}
	return f.inner.MatchBulk(ctx, texts)
}

func (f *flakyClassifier) Update(ctx context.Context, categoryName, example string) (int, error) {
	return f.inner.Update(ctx, categoryName, example)
}

func TestProcessPartialFailure(t *testing.T) {
	store := newTestStorage(t)
	engine := newTestEngine(t, store)
	classifier := &flakyClassifier{inner: engine, poison: "boom"}

	proc := New(store, classifier, Config{
		Sleeper:     (&sleepRecorder{}).sleep,
		ChunkSize:   2,
		MaxAttempts: 2,
		BaseDelay:   time.Millisecond,
	})

	batch := createBatch(t, store, []model.Payload{
		{"description": "coffee"},
		{"description": "boom"},
		{"description": "lunch"},
	})

	ctx := context.Background()
	summary, err := proc.Process(ctx, batch.ID)
	require.NoError(t, err)

	// First chunk (coffee, boom) fails; second chunk (lunch) succeeds.
	assert.Equal(t, 3, summary.Processed)
	assert.Equal(t, 1, summary.Saved)

	final, err := store.GetBatch(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BatchCompleted, final.Status)
	assert.Less(t, final.Saved, final.Processed)

	items, err := store.GetBatchItems(ctx, batch.ID)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.NotEmpty(t, items[0].Error)
	assert.NotEmpty(t, items[1].Error)
	assert.Empty(t, items[2].Error)
	assert.True(t, items[2].Saved)
}

func TestProcessFlushBoundary(t *testing.T) {
	store := newTestStorage(t)
	engine := newTestEngine(t, store)

	proc := New(store, engine, Config{
		Sleeper:   (&sleepRecorder{}).sleep,
		ChunkSize: 2,
		FlushSize: 2,
	})

	payloads := make([]model.Payload, 5)
	for i := range payloads {
		payloads[i] = model.Payload{"description": "coffee"}
	}
	batch := createBatch(t, store, payloads)

	ctx := context.Background()
	summary, err := proc.Process(ctx, batch.ID)
	require.NoError(t, err)

	assert.Equal(t, 5, summary.Processed)
	assert.Equal(t, 5, summary.Saved)

	txns, err := store.GetTransactions(ctx, service.TransactionFilter{})
	require.NoError(t, err)
	assert.Len(t, txns, 5)
}

func TestProcessBatchNotFound(t *testing.T) {
	store := newTestStorage(t)
	engine := newTestEngine(t, store)
	proc := New(store, engine, DefaultConfig())

	_, err := proc.Process(context.Background(), 9999)
	assert.ErrorIs(t, err, common.ErrBatchNotFound)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 200, cfg.ChunkSize)
	assert.Equal(t, 500, cfg.FlushSize)
	assert.Equal(t, 5, cfg.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.BaseDelay)
	assert.InDelta(t, taxonomy.DefaultThreshold, cfg.Threshold, 1e-9)
}
