// Package model defines the core domain models used throughout the application.
package model

// CategoryRef identifies a taxonomy category in a classification result.
type CategoryRef struct {
	Name string `json:"name"`
	ID   int64  `json:"id"`
}

// ClassificationResult is the outcome of matching one text against the
// taxonomy. It is ephemeral: the pipeline turns it into a Transaction.
type ClassificationResult struct {
	Text     string      `json:"text"`
	Category CategoryRef `json:"category"`
	Entities []Entity    `json:"entities"`
	Score    float64     `json:"score"`
}
