package model

import "time"

// Category represents one taxonomy entry. Examples is an append-only history
// of confirmed texts; Centroid is derived from the name and examples and is
// recomputed by the taxonomy engine whenever either changes.
type Category struct {
	CreatedAt time.Time `json:"created_at"`
	Name      string    `json:"name"`
	Examples  []string  `json:"examples"`
	Centroid  []float32 `json:"-"`
	ID        int64     `json:"id"`
}

// Ref returns the lightweight reference used in classification results.
func (c *Category) Ref() CategoryRef {
	return CategoryRef{ID: c.ID, Name: c.Name}
}
