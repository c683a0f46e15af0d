package model

import (
	"strconv"
	"time"
)

// BatchStatus indicates where an upload batch is in its lifecycle.
// Transitions only move forward: PENDING -> IN_PROGRESS -> {COMPLETED, FAILED}.
type BatchStatus string

// Batch status constants.
const (
	BatchPending    BatchStatus = "PENDING"
	BatchInProgress BatchStatus = "IN_PROGRESS"
	BatchCompleted  BatchStatus = "COMPLETED"
	BatchFailed     BatchStatus = "FAILED"
)

// Terminal reports whether the status is final.
func (s BatchStatus) Terminal() bool {
	return s == BatchCompleted || s == BatchFailed
}

// UploadBatch tracks the lifecycle and progress of one bulk ingestion.
// Counters satisfy 0 <= Saved <= Processed <= TotalItems; TotalItems is
// fixed at creation. The JSON shape doubles as the progress snapshot
// streamed to clients.
type UploadBatch struct {
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
	Filename      string                 `json:"filename,omitempty"`
	Status        BatchStatus            `json:"status"`
	LowConfidence []ClassificationResult `json:"low_confidence"`
	ID            int64                  `json:"id"`
	TotalItems    int                    `json:"total_items"`
	Processed     int                    `json:"processed"`
	Saved         int                    `json:"saved"`
}

// Payload is the raw semi-structured record attached to an upload item.
// CSV rows arrive with string values; JSON records may carry numbers.
type Payload map[string]any

// Description returns the description-like field, checking the two accepted
// names in order. Returns "" when neither is present.
func (p Payload) Description() string {
	if s := p.stringField("description"); s != "" {
		return s
	}
	return p.stringField("desc")
}

// Amount parses the amount field if present and numeric.
func (p Payload) Amount() *float64 {
	v, ok := p["amount"]
	if !ok {
		return nil
	}
	switch n := v.(type) {
	case float64:
		return &n
	case int:
		f := float64(n)
		return &f
	case string:
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return &f
		}
	}
	return nil
}

// Date parses the date field if present, accepting ISO dates.
func (p Payload) Date() *time.Time {
	s := p.stringField("date")
	if s == "" {
		return nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

func (p Payload) stringField(key string) string {
	if v, ok := p[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// UploadItem is one raw record within a batch. Processed never reverts to
// false once set; Saved implies Processed.
type UploadItem struct {
	CreatedAt time.Time `json:"created_at"`
	Payload   Payload   `json:"payload"`
	Error     string    `json:"error,omitempty"`
	ID        int64     `json:"id"`
	BatchID   int64     `json:"batch_id"`
	Processed bool      `json:"processed"`
	Saved     bool      `json:"saved"`
}
