package ocr

import "testing"

func TestClampConfidence(t *testing.T) {
	cases := map[float64]float64{
		-5:    0,
		0:     0,
		42.5:  42.5,
		100:   100,
		120.3: 100,
	}
	for in, want := range cases {
		if got := clampConfidence(in); got != want {
			t.Fatalf("clampConfidence(%v) = %v, want %v", in, got, want)
		}
	}
}
