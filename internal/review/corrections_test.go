package review

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgersift/ledgersift/internal/ai/mock"
	"github.com/ledgersift/ledgersift/internal/model"
	"github.com/ledgersift/ledgersift/internal/storage"
	"github.com/ledgersift/ledgersift/internal/taxonomy"
)

func newTestReviewer(t *testing.T) (*Reviewer, *storage.SQLiteStorage, *taxonomy.Engine) {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	require.NoError(t, store.Migrate(ctx))

	engine, err := taxonomy.New(ctx, store, mock.NewProvider())
	require.NoError(t, err)

	return New(store, engine), store, engine
}

func seedTransaction(t *testing.T, store *storage.SQLiteStorage, description, predicted string) *model.Transaction {
	t.Helper()
	txn := &model.Transaction{
		Description:       description,
		PredictedCategory: predicted,
		PredictedScore:    0.4,
	}
	require.NoError(t, store.CreateTransaction(context.Background(), txn))
	return txn
}

func TestApplyCorrection(t *testing.T) {
	reviewer, store, engine := newTestReviewer(t)
	ctx := context.Background()

	seedTransaction(t, store, "STARBUCKS #1234", "Salary")
	seedTransaction(t, store, "STARBUCKS #1234", "Salary")
	seedTransaction(t, store, "SHELL FUEL", "Salary")

	applied, err := reviewer.Apply(ctx, []Correction{
		{Text: "STARBUCKS #1234", Corrected: "Food & Drink"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, applied)

	// Both matching transactions get the user label; predictions stay.
	txns, err := store.GetTransactionsByDescription(ctx, "STARBUCKS #1234")
	require.NoError(t, err)
	require.Len(t, txns, 2)
	for _, txn := range txns {
		assert.Equal(t, "Food & Drink", txn.UserLabel)
		assert.Equal(t, "Salary", txn.PredictedCategory)
		assert.Equal(t, "Food & Drink", txn.EffectiveCategory())
	}

	// The untouched transaction keeps its prediction as effective category.
	others, err := store.GetTransactionsByDescription(ctx, "SHELL FUEL")
	require.NoError(t, err)
	require.Len(t, others, 1)
	assert.Empty(t, others[0].UserLabel)
	assert.Equal(t, "Salary", others[0].EffectiveCategory())

	// The taxonomy learned the example.
	for _, cat := range engine.Categories() {
		if cat.Name == "Food & Drink" {
			assert.Contains(t, cat.Examples, "STARBUCKS #1234")
		}
	}
}

func TestApplyCreatesCategory(t *testing.T) {
	reviewer, _, engine := newTestReviewer(t)

	applied, err := reviewer.Apply(context.Background(), []Correction{
		{Text: "GYM PAYMENT", Corrected: "Fitness"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, applied)
	assert.Len(t, engine.Categories(), 6)
}

func TestApplySkipsEmptyLabel(t *testing.T) {
	reviewer, _, engine := newTestReviewer(t)

	applied, err := reviewer.Apply(context.Background(), []Correction{
		{Text: "STARBUCKS", Corrected: "   "},
		{Text: "SHELL", Corrected: "Transport"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, applied)
	assert.Len(t, engine.Categories(), 5)
}

func TestApplyIdempotentRelabel(t *testing.T) {
	reviewer, store, engine := newTestReviewer(t)
	ctx := context.Background()

	seedTransaction(t, store, "UBER TRIP", "Salary")

	correction := []Correction{{Text: "UBER TRIP", Corrected: "Transport"}}

	applied, err := reviewer.Apply(ctx, correction)
	require.NoError(t, err)
	assert.Equal(t, 1, applied)

	applied, err = reviewer.Apply(ctx, correction)
	require.NoError(t, err)
	assert.Equal(t, 1, applied)

	// Relabeling is a no-op; the example is appended again by design.
	txns, err := store.GetTransactionsByDescription(ctx, "UBER TRIP")
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, "Transport", txns[0].UserLabel)

	for _, cat := range engine.Categories() {
		if cat.Name == "Transport" {
			count := 0
			for _, ex := range cat.Examples {
				if ex == "UBER TRIP" {
					count++
				}
			}
			assert.Equal(t, 2, count)
		}
	}
}

func TestApplyEmptyList(t *testing.T) {
	reviewer, _, _ := newTestReviewer(t)

	applied, err := reviewer.Apply(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, applied)
}
