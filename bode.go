package eiscore

import (
	"fmt"
	"math"
	"sort"
)

// BodeSeries is a plot-ready projection of a spectrum: three aligned
// sequences, sorted ascending by frequency.
type BodeSeries struct {
	Frequencies []float64 `json:"frequencies"`
	Magnitude   []float64 `json:"magnitude"`
	Phase       []float64 `json:"phase"` // degrees
}

// Bode projects a spectrum into magnitude/phase-vs-frequency series. The
// input is left untouched; the output is sorted ascending by frequency
// with ties keeping their original relative order.
func Bode(spec Spectrum) (BodeSeries, error) {
	if len(spec) == 0 {
		return BodeSeries{}, fmt.Errorf("%w: empty spectrum", ErrInsufficientData)
	}

	sorted := make(Spectrum, len(spec))
	copy(sorted, spec)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Freq < sorted[j].Freq
	})

	series := BodeSeries{
		Frequencies: make([]float64, len(sorted)),
		Magnitude:   make([]float64, len(sorted)),
		Phase:       make([]float64, len(sorted)),
	}
	for i, s := range sorted {
		series.Frequencies[i] = s.Freq
		series.Magnitude[i] = math.Hypot(s.Zre, s.Zim)
		series.Phase[i] = math.Atan2(s.Zim, s.Zre) * 180 / math.Pi
	}
	return series, nil
}
