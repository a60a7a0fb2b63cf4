package eiscore

import (
	"errors"
	"testing"
)

func TestSoH(t *testing.T) {
	tests := []struct {
		name      string
		rbCurrent float64
		rbMax     float64
		want      float64
	}{
		{"reference cell", 0.1, 0.1, 0},
		{"perfect cell", 0, 0.1, 100},
		{"worked example", 0.08, 0.1, 20},
		{"better than reference stays unclamped", 0.2, 0.1, -100},
		{"above reference stays unclamped", -0.05, 0.1, 150},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SoH(tt.rbCurrent, tt.rbMax)
			if err != nil {
				t.Fatalf("SoH: %v", err)
			}
			if !almostEqual(got.Percentage, tt.want, 1e-12) {
				t.Errorf("percentage = %g, want %g", got.Percentage, tt.want)
			}
			if got.RbCurrent != tt.rbCurrent || got.RbMax != tt.rbMax {
				t.Errorf("inputs not echoed: %+v", got)
			}
		})
	}
}

func TestSoHMonotonicallyDecreasing(t *testing.T) {
	prev, err := SoH(0, DefaultRbMax)
	if err != nil {
		t.Fatal(err)
	}
	for rb := 0.01; rb <= 0.3; rb += 0.01 {
		cur, err := SoH(rb, DefaultRbMax)
		if err != nil {
			t.Fatal(err)
		}
		if cur.Percentage >= prev.Percentage {
			t.Fatalf("SoH not decreasing: %g%% at rb=%g after %g%%", cur.Percentage, rb, prev.Percentage)
		}
		prev = cur
	}
}

func TestSoHRejectsNonPositiveReference(t *testing.T) {
	for _, rbMax := range []float64{0, -0.1} {
		if _, err := SoH(0.05, rbMax); !errors.Is(err, ErrMalformedInput) {
			t.Errorf("rbMax=%g: got %v, want ErrMalformedInput", rbMax, err)
		}
	}
}
