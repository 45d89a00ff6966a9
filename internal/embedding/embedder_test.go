package embedding

import (
	"testing"
)

func TestNewEmbedder_Defaults(t *testing.T) {
	e, err := NewEmbedder(nil, "", 0)
	if err != nil {
		t.Fatalf("NewEmbedder failed: %v", err)
	}
	if e.Model() != DefaultModel {
		t.Errorf("Model() = %q, want %q", e.Model(), DefaultModel)
	}
	if e.Dimension() != 1536 {
		t.Errorf("Dimension() = %d, want 1536", e.Dimension())
	}
	if e.batchSize != DefaultBatchSize {
		t.Errorf("batchSize = %d, want %d", e.batchSize, DefaultBatchSize)
	}
}

func TestNewEmbedder_KnownModels(t *testing.T) {
	cases := []struct {
		model string
		dim   int
	}{
		{"text-embedding-3-small", 1536},
		{"text-embedding-3-large", 3072},
		{"text-embedding-ada-002", 1536},
	}

	for _, tc := range cases {
		e, err := NewEmbedder(nil, tc.model, 100)
		if err != nil {
			t.Errorf("NewEmbedder(%q) failed: %v", tc.model, err)
			continue
		}
		if e.Dimension() != tc.dim {
			t.Errorf("Dimension(%q) = %d, want %d", tc.model, e.Dimension(), tc.dim)
		}
	}
}

func TestNewEmbedder_UnknownModel(t *testing.T) {
	_, err := NewEmbedder(nil, "embedding-model-from-the-future", 0)
	if err == nil {
		t.Fatal("expected error for unknown model")
	}
}

func TestToFloat32(t *testing.T) {
	got := toFloat32([]float64{0.5, -1.25, 0})
	want := []float32{0.5, -1.25, 0}
	if len(got) != len(want) {
		t.Fatalf("length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("toFloat32[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}
