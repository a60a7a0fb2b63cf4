package processing

import (
	"log"
	"time"

	"github.com/celldiag/eiscore"
	"github.com/celldiag/eiscore/pkg/config"
	"github.com/celldiag/eiscore/pkg/worker"
)

// Processor maps shell configuration onto analyzer runs and adapts them
// for the worker pool.
type Processor struct {
	analyzer *eiscore.Analyzer
	quiet    bool
}

// New builds a processor from the shell config.
func New(cfg *config.Config) *Processor {
	fitter := eiscore.NewFitter()
	fitter.Method = eiscore.Method(cfg.Method)
	if cfg.Unity {
		fitter.Weighting = eiscore.UNITY
	}

	return &Processor{
		analyzer: &eiscore.Analyzer{Fitter: fitter},
		quiet:    cfg.Quiet,
	}
}

// Process runs one full analysis and logs its timing.
func (p *Processor) Process(csv []byte, rbMax float64) (*eiscore.AnalysisReport, error) {
	start := time.Now()
	report, err := p.analyzer.Analyze(csv, rbMax)
	elapsed := time.Since(start)

	if err != nil {
		log.Printf("analysis failed after %v: %v", elapsed, err)
		return nil, err
	}
	if !p.quiet {
		log.Printf("analysis completed in %v - chi-square %.6e, SoH %.1f%%", elapsed, report.ChiSquare, report.SoH.Percentage)
	}
	return report, nil
}

// ProcessorFunc adapts Process for the worker pool.
func (p *Processor) ProcessorFunc() worker.ProcessorFunc {
	return p.Process
}
