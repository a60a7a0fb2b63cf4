package eiscore

import (
	"errors"
	"math"
	"testing"
)

func TestBodeSortsAscending(t *testing.T) {
	spec, err := ParseCSV([]byte(scenarioCSV))
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}

	series, err := Bode(spec)
	if err != nil {
		t.Fatalf("Bode: %v", err)
	}
	if len(series.Frequencies) != 6 || len(series.Magnitude) != 6 || len(series.Phase) != 6 {
		t.Fatalf("series lengths %d/%d/%d, want 6", len(series.Frequencies), len(series.Magnitude), len(series.Phase))
	}
	if series.Frequencies[0] != 0.01 || series.Frequencies[5] != 1000 {
		t.Errorf("series spans %g..%g Hz, want 0.01..1000", series.Frequencies[0], series.Frequencies[5])
	}
	for i := 1; i < len(series.Frequencies); i++ {
		if series.Frequencies[i] < series.Frequencies[i-1] {
			t.Fatalf("frequencies not ascending at %d: %v", i, series.Frequencies)
		}
	}
	// Input order is untouched.
	if spec[0].Freq != 1000 {
		t.Errorf("input spectrum mutated: first freq %g", spec[0].Freq)
	}
}

func TestBodeMagnitudeAndPhase(t *testing.T) {
	tests := []struct {
		sample    Sample
		wantMag   float64
		wantPhase float64
	}{
		{Sample{Freq: 1, Zre: 1, Zim: 0}, 1, 0},
		{Sample{Freq: 2, Zre: 0, Zim: 1}, 1, 90},
		{Sample{Freq: 3, Zre: 1, Zim: -1}, math.Sqrt2, -45},
		{Sample{Freq: 4, Zre: -1, Zim: 0}, 1, 180},
		{Sample{Freq: 5, Zre: 3, Zim: 4}, 5, math.Atan2(4, 3) * 180 / math.Pi},
	}
	spec := make(Spectrum, len(tests))
	for i, tt := range tests {
		spec[i] = tt.sample
	}

	series, err := Bode(spec)
	if err != nil {
		t.Fatalf("Bode: %v", err)
	}
	for i, tt := range tests {
		if !almostEqual(series.Magnitude[i], tt.wantMag, 1e-12) {
			t.Errorf("magnitude[%d] = %g, want %g", i, series.Magnitude[i], tt.wantMag)
		}
		if !almostEqual(series.Phase[i], tt.wantPhase, 1e-12) {
			t.Errorf("phase[%d] = %g, want %g", i, series.Phase[i], tt.wantPhase)
		}
	}
}

func TestBodeStableOnFrequencyTies(t *testing.T) {
	spec := Spectrum{
		{Freq: 10, Zre: 1, Zim: 0},
		{Freq: 1, Zre: 2, Zim: 0},
		{Freq: 1, Zre: 3, Zim: 0},
		{Freq: 1, Zre: 4, Zim: 0},
	}
	series, err := Bode(spec)
	if err != nil {
		t.Fatalf("Bode: %v", err)
	}
	// The three 1 Hz entries keep their original relative order.
	want := []float64{2, 3, 4, 1}
	for i, m := range want {
		if series.Magnitude[i] != m {
			t.Fatalf("magnitude order %v, want %v", series.Magnitude, want)
		}
	}
}

func TestBodeEmptySpectrum(t *testing.T) {
	_, err := Bode(nil)
	if !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("got %v, want ErrInsufficientData", err)
	}
}
