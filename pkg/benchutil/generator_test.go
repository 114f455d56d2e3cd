package benchutil

import (
	"slices"
	"testing"
)

func TestGenerateDeterministic(t *testing.T) {
	a := Generate(DefaultConfig(500))
	b := Generate(DefaultConfig(500))
	if !slices.Equal(a, b) {
		t.Error("same config produced different sequences")
	}

	cfg := DefaultConfig(500)
	cfg.Seed++
	if slices.Equal(a, Generate(cfg)) {
		t.Error("different seeds produced the same sequence")
	}
}

func TestGenerateShapes(t *testing.T) {
	tests := []struct {
		shape  Shape
		lo, hi int64
	}{
		{Uniform, -1000, 1000},
		{NonNegative, 0, 1000},
		{SmallAlphabet, 0, 7},
		{Lowercase, 'a', 'z'},
		{Binary, 0, 1},
	}
	for _, tt := range tests {
		t.Run(string(tt.shape), func(t *testing.T) {
			values := Sequence(tt.shape, 2000)
			if len(values) != 2000 {
				t.Fatalf("len = %d, want 2000", len(values))
			}
			for i, v := range values {
				if v < tt.lo || v > tt.hi {
					t.Fatalf("values[%d] = %d outside [%d, %d]", i, v, tt.lo, tt.hi)
				}
			}
			if slices.Min(values) == slices.Max(values) {
				t.Error("sequence is constant")
			}
		})
	}
}

func TestShapesCoverAll(t *testing.T) {
	if len(Shapes) != 5 {
		t.Errorf("len(Shapes) = %d, want 5", len(Shapes))
	}
}
