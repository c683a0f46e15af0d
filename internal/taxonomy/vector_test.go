package taxonomy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a    []float32
		b    []float32
		want float64
	}{
		{
			name: "identical vectors",
			a:    []float32{1, 0, 0},
			b:    []float32{1, 0, 0},
			want: 1,
		},
		{
			name: "orthogonal vectors",
			a:    []float32{1, 0, 0},
			b:    []float32{0, 1, 0},
			want: 0,
		},
		{
			name: "opposite vectors",
			a:    []float32{1, 0, 0},
			b:    []float32{-1, 0, 0},
			want: -1,
		},
		{
			name: "zero vector",
			a:    []float32{0, 0, 0},
			b:    []float32{1, 2, 3},
			want: 0,
		},
		{
			name: "mismatched lengths",
			a:    []float32{1, 0},
			b:    []float32{1, 0, 0},
			want: 0,
		},
		{
			name: "scaled vectors keep similarity",
			a:    []float32{2, 0, 0},
			b:    []float32{5, 0, 0},
			want: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Cosine(tt.a, tt.b), 1e-9)
		})
	}
}

func TestCentroid(t *testing.T) {
	vectors := [][]float32{
		{1, 0, 3},
		{3, 2, 1},
	}

	centroid := Centroid(vectors)
	assert.InDelta(t, 2, centroid[0], 1e-6)
	assert.InDelta(t, 1, centroid[1], 1e-6)
	assert.InDelta(t, 2, centroid[2], 1e-6)
}

func TestCentroidEmpty(t *testing.T) {
	assert.Nil(t, Centroid(nil))
	assert.Nil(t, Centroid([][]float32{}))
}

func TestNormalizeScore(t *testing.T) {
	tests := []struct {
		name   string
		cosine float64
		want   float64
	}{
		{"perfect match", 1, 1},
		{"orthogonal", 0, 0.5},
		{"opposite", -1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeScore(tt.cosine)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.LessOrEqual(t, got, 1.0)
		})
	}
}
