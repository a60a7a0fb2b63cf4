package processing

import (
	"errors"
	"math"
	"testing"

	"github.com/celldiag/eiscore"
	"github.com/celldiag/eiscore/pkg/config"
)

func modelCSV(t *testing.T) []byte {
	t.Helper()
	params := eiscore.CircuitParams{
		R0: 0.05, R1: 0.03, Q1: 0.005, N1: 0.85,
		R2: 0.08, Q2: 0.01, N2: 0.75, Wsigma: 0.02,
	}
	freqs := make([]float64, 0, 30)
	for f := 0.01; f <= 1e4; f *= math.Pow(10, 0.2) {
		freqs = append(freqs, f)
	}
	return eiscore.ModelSpectrum(params, freqs).MarshalCSV()
}

func TestProcessRunsFullAnalysis(t *testing.T) {
	cfg := config.Default()
	cfg.Quiet = true

	report, err := New(cfg).Process(modelCSV(t), cfg.RbMax)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(report.Parameters) != eiscore.NumParams {
		t.Errorf("got %d parameters, want %d", len(report.Parameters), eiscore.NumParams)
	}
	if report.SoH.RbMax != cfg.RbMax {
		t.Errorf("SoH reference %g, want %g", report.SoH.RbMax, cfg.RbMax)
	}
}

func TestProcessPropagatesParseErrors(t *testing.T) {
	cfg := config.Default()
	cfg.Quiet = true

	_, err := New(cfg).Process([]byte("not,a,spectrum\n1,2,3\n"), cfg.RbMax)
	if !errors.Is(err, eiscore.ErrMalformedInput) {
		t.Fatalf("got %v, want ErrMalformedInput", err)
	}
}

func TestNewHonorsMethodAndWeighting(t *testing.T) {
	cfg := config.Default()
	cfg.Method = string(eiscore.MethodNelderMead)
	cfg.Unity = true

	p := New(cfg)
	if p.analyzer.Fitter.Method != eiscore.MethodNelderMead {
		t.Errorf("method = %q, want %q", p.analyzer.Fitter.Method, eiscore.MethodNelderMead)
	}
	if p.analyzer.Fitter.Weighting != eiscore.UNITY {
		t.Errorf("weighting = %v, want UNITY", p.analyzer.Fitter.Weighting)
	}
}
