package model

import "time"

// Entity is a labeled span extracted from a transaction description.
type Entity struct {
	Text  string `json:"text"`
	Label string `json:"label"`
}

// Transaction represents a single categorized financial record.
// PredictedCategory and PredictedScore are set once at creation and never
// overwritten; UserLabel, when present, is authoritative for reporting.
type Transaction struct {
	CreatedAt         time.Time  `json:"created_at"`
	Date              *time.Time `json:"date,omitempty"`
	Amount            *float64   `json:"amount,omitempty"`
	Description       string     `json:"description"`
	UserLabel         string     `json:"user_label,omitempty"`
	PredictedCategory string     `json:"predicted_category"`
	Entities          []Entity   `json:"entities"`
	PredictedScore    float64    `json:"predicted_score"`
	ID                int64      `json:"id"`
}

// EffectiveCategory returns the category to use for reporting: the user's
// correction when one exists, the prediction otherwise.
func (t *Transaction) EffectiveCategory() string {
	if t.UserLabel != "" {
		return t.UserLabel
	}
	return t.PredictedCategory
}
