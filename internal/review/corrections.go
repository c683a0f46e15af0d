// Package review applies human corrections to low-confidence guesses and
// feeds them back into the taxonomy.
package review

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ledgersift/ledgersift/internal/service"
)

// Correction is one human-confirmed label for a transaction text.
type Correction struct {
	Text      string `json:"text"`
	Corrected string `json:"corrected"`
}

// Reviewer routes corrections into the classifier and the transaction store.
type Reviewer struct {
	storage    service.Storage
	classifier service.Classifier
	logger     *slog.Logger
}

// New creates a reviewer.
func New(storage service.Storage, classifier service.Classifier) *Reviewer {
	return &Reviewer{
		storage:    storage,
		classifier: classifier,
		logger:     slog.Default().With("component", "review"),
	}
}

// Apply processes corrections in order and returns how many were applied.
// Each correction appends a taxonomy example, then sets the user label on
// every transaction whose description matches the corrected text. The
// predicted fields are never touched, preserving the audit trail.
// Corrections with an empty label are skipped. Repeating an identical
// correction appends a duplicate example and re-sets the same label, which
// is a no-op.
func (r *Reviewer) Apply(ctx context.Context, corrections []Correction) (int, error) {
	applied := 0
	for _, c := range corrections {
		if strings.TrimSpace(c.Corrected) == "" {
			continue
		}

		if _, err := r.classifier.Update(ctx, c.Corrected, c.Text); err != nil {
			return applied, fmt.Errorf("failed to update taxonomy for %q: %w", c.Corrected, err)
		}

		updated, err := r.storage.SetUserLabelByDescription(ctx, c.Text, c.Corrected)
		if err != nil {
			return applied, fmt.Errorf("failed to relabel transactions for %q: %w", c.Text, err)
		}

		r.logger.Info("correction applied",
			"category", c.Corrected,
			"transactions", updated)
		applied++
	}
	return applied, nil
}
