package usecase

import "testing"

func TestMinMaxNormalizeBounds(t *testing.T) {
	out := minMaxNormalize([]float64{2, 8, 5})
	if len(out) != 3 {
		t.Fatalf("expected 3 scores, got %d", len(out))
	}
	if out[0] != 0 {
		t.Fatalf("expected min to map to 0, got %v", out[0])
	}
	if out[1] != 1 {
		t.Fatalf("expected max to map to 1, got %v", out[1])
	}
	if out[2] <= 0 || out[2] >= 1 {
		t.Fatalf("expected middle score inside (0,1), got %v", out[2])
	}
}

func TestMinMaxNormalizeSingleElement(t *testing.T) {
	out := minMaxNormalize([]float64{0.42})
	if len(out) != 1 || out[0] != 1 {
		t.Fatalf("expected single element to map to 1, got %v", out)
	}
}

func TestMinMaxNormalizeAllEqual(t *testing.T) {
	out := minMaxNormalize([]float64{3, 3, 3})
	for i, v := range out {
		if v != 1 {
			t.Fatalf("expected all-equal scores to map to 1, got %v at %d", v, i)
		}
	}
}

func TestMinMaxNormalizeEmpty(t *testing.T) {
	if out := minMaxNormalize(nil); out != nil {
		t.Fatalf("expected nil for empty input, got %v", out)
	}
}

func TestClamp01(t *testing.T) {
	if clamp01(-0.5) != 0 {
		t.Fatalf("expected negative to clamp to 0")
	}
	if clamp01(1.5) != 1 {
		t.Fatalf("expected >1 to clamp to 1")
	}
	if clamp01(0.25) != 0.25 {
		t.Fatalf("expected in-range value to pass through")
	}
}
