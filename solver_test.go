package eiscore

import (
	"errors"
	"math"
	"reflect"
	"testing"
)

// logspace returns count frequencies spaced evenly in log10 between lo
// and hi.
func logspace(lo, hi float64, count int) []float64 {
	freqs := make([]float64, count)
	step := (math.Log10(hi) - math.Log10(lo)) / float64(count-1)
	for i := range freqs {
		freqs[i] = math.Pow(10, math.Log10(lo)+float64(i)*step)
	}
	return freqs
}

var fitTrueParams = CircuitParams{
	R0: 0.05, R1: 0.03, Q1: 0.005, N1: 0.85,
	R2: 0.08, Q2: 0.01, N2: 0.75, Wsigma: 0.02,
}

func syntheticSpectrum(count int) Spectrum {
	return ModelSpectrum(fitTrueParams, logspace(0.01, 1e4, count))
}

func TestFitRecoversSyntheticSpectrum(t *testing.T) {
	spec := syntheticSpectrum(30)

	params, chiSq, err := NewFitter().Fit(spec)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if chiSq >= defaultMinFunc {
		t.Errorf("chi-square %g not below acceptance threshold %g", chiSq, defaultMinFunc)
	}
	// The bulk resistance is pinned by the high-frequency intercept.
	if !almostEqual(params.R0, fitTrueParams.R0, 0.02) {
		t.Errorf("R0 = %g, want ~%g", params.R0, fitTrueParams.R0)
	}
}

func TestFitParametersStayWithinBounds(t *testing.T) {
	specs := []Spectrum{
		syntheticSpectrum(12),
		syntheticSpectrum(30),
	}
	for _, spec := range specs {
		params, _, err := NewFitter().Fit(spec)
		if err != nil {
			t.Fatalf("Fit(%d samples): %v", len(spec), err)
		}
		vec := params.Vector()
		for i, b := range paramBounds {
			if vec[i] < b.Min || vec[i] > b.Max {
				t.Errorf("%d samples: parameter %d = %g outside [%g, %g]", len(spec), i, vec[i], b.Min, b.Max)
			}
		}
	}
}

func TestFitIsDeterministic(t *testing.T) {
	spec := syntheticSpectrum(20)

	p1, chi1, err := NewFitter().Fit(spec)
	if err != nil {
		t.Fatalf("first Fit: %v", err)
	}
	p2, chi2, err := NewFitter().Fit(spec)
	if err != nil {
		t.Fatalf("second Fit: %v", err)
	}
	if p1 != p2 || chi1 != chi2 {
		t.Errorf("fits differ:\n  %+v chi %g\n  %+v chi %g", p1, chi1, p2, chi2)
	}
}

func TestFitUnderDetermined(t *testing.T) {
	// Three samples pass the parser but cannot determine 8 parameters;
	// the insufficiency must come from the fitter, not the parser.
	spec, err := ParseCSV([]byte("freq,real,imag\n1000,0.05,0\n10,0.09,-0.05\n0.1,0.15,0.01\n"))
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	if _, _, err := NewFitter().Fit(spec); !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("got %v, want ErrInsufficientData", err)
	}
}

func TestFitModelTracksMeasuredBode(t *testing.T) {
	spec := syntheticSpectrum(25)

	params, _, err := NewFitter().Fit(spec)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}

	measured, err := Bode(spec)
	if err != nil {
		t.Fatal(err)
	}
	fitted, err := Bode(ModelSpectrum(params, measured.Frequencies))
	if err != nil {
		t.Fatal(err)
	}
	for i := range measured.Frequencies {
		relErr := math.Abs(fitted.Magnitude[i]-measured.Magnitude[i]) / measured.Magnitude[i]
		if relErr > 0.15 {
			t.Errorf("f=%g Hz: fitted magnitude off by %.0f%%", measured.Frequencies[i], relErr*100)
		}
	}
}

func TestBoundsTransformRoundTrip(t *testing.T) {
	for i, b := range paramBounds {
		for _, frac := range []float64{0.001, 0.25, 0.5, 0.75, 0.999} {
			x := b.Min + frac*(b.Max-b.Min)
			got := b.fromUnbounded(b.toUnbounded(x))
			if !almostEqual(got, x, 1e-9*(b.Max-b.Min)) {
				t.Errorf("bounds[%d]: round trip %g -> %g", i, x, got)
			}
		}
	}
}

func TestBoundsTransformRespectsBox(t *testing.T) {
	b := Bounds{Min: 0.5, Max: 1.0}
	for _, tval := range []float64{-1e6, -10, 0, 10, 1e6} {
		x := b.fromUnbounded(tval)
		if x < b.Min || x > b.Max {
			t.Errorf("fromUnbounded(%g) = %g escapes [%g, %g]", tval, x, b.Min, b.Max)
		}
	}
	// Out-of-box inputs are pulled inside before transforming.
	for _, xval := range []float64{-5, 0, 0.5, 1.0, 7} {
		tval := b.toUnbounded(xval)
		if math.IsNaN(tval) || math.IsInf(tval, 0) {
			t.Errorf("toUnbounded(%g) = %g", xval, tval)
		}
	}
}

func TestInitialGuessIsDataDerived(t *testing.T) {
	spec := syntheticSpectrum(30)
	guess := initialGuess(spec)

	// R0 comes from the real part at the highest frequency.
	hi := spec[len(spec)-1]
	for _, s := range spec {
		if s.Freq > hi.Freq {
			hi = s
		}
	}
	if guess.R0 != hi.Zre {
		t.Errorf("R0 guess %g, want high-frequency intercept %g", guess.R0, hi.Zre)
	}
	if guess.N1 != 0.8 || guess.N2 != 0.8 {
		t.Errorf("CPE exponent guesses %g/%g, want 0.8", guess.N1, guess.N2)
	}
	if guess.Wsigma <= 0 {
		t.Errorf("Warburg guess %g, want > 0", guess.Wsigma)
	}
}

func TestPerturbIsDeterministicAndInBounds(t *testing.T) {
	bounds := paramBounds[:]
	x := fitTrueParams.Vector()

	a := perturb(x, bounds)
	b := perturb(x, bounds)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("perturbation not deterministic: %v vs %v", a, b)
	}
	for i, v := range a {
		if v < bounds[i].Min || v > bounds[i].Max {
			t.Errorf("perturbed[%d] = %g outside [%g, %g]", i, v, bounds[i].Min, bounds[i].Max)
		}
	}
}

func TestChiSqWeighting(t *testing.T) {
	observed := [][2]float64{{3, 4}, {1, 0}}
	calculated := [][2]float64{{3, 3}, {1, 0}}

	// Unity: mean of squared distances = (1 + 0) / 2.
	if got := ChiSq(observed, calculated, UNITY); !almostEqual(got, 0.5, 1e-12) {
		t.Errorf("unity chi-square = %g, want 0.5", got)
	}
	// Modulus: first point scaled by |Z|^2 = 25.
	if got := ChiSq(observed, calculated, MODULUS); !almostEqual(got, 0.02, 1e-12) {
		t.Errorf("modulus chi-square = %g, want 0.02", got)
	}
}

func TestChiSqLengthMismatchPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on length mismatch")
		}
	}()
	ChiSq([][2]float64{{1, 1}}, nil, UNITY)
}

func TestFitterUnknownMethodFallsBack(t *testing.T) {
	f := NewFitter()
	f.Method = "simulated-annealing"
	if _, ok := f.solver().(lmSolver); !ok {
		t.Fatalf("unknown method should fall back to Levenberg-Marquardt, got %T", f.solver())
	}
}
