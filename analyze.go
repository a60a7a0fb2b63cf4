package eiscore

// ParameterReport is the human-facing projection of one fitted circuit
// parameter. Everything but Value is static metadata; the min/max band is
// used by consumers for display scaling, not derived from the fit.
type ParameterReport struct {
	Name        string  `json:"name"`
	Value       float64 `json:"value"`
	Unit        string  `json:"unit"`
	Explanation string  `json:"explanation"`
	MinValue    float64 `json:"min_value"`
	MaxValue    float64 `json:"max_value"`
}

// AnalysisReport is the aggregate handed to the surrounding persistence
// and UI layer. Its field set and units are the sole external contract of
// this package and must not change silently.
type AnalysisReport struct {
	Bode          BodeSeries        `json:"bode"`
	Parameters    []ParameterReport `json:"parameters"`
	SoH           SoHResult         `json:"soh"`
	CircuitString string            `json:"circuit_string"`
	ChiSquare     float64           `json:"chi_square"`
}

// paramMeta is the static per-parameter display metadata, in Vector
// order. The bands come from paramBounds.
var paramMeta = [NumParams]struct {
	Name        string
	Unit        string
	Explanation string
}{
	{"Rb", "Ω", "Electrolyte resistance"},
	{"R_SEI", "Ω", "Resistance due to SEI layer"},
	{"CPE_SEI", "F·s^(n-1)", "Capacitance due to SEI layer"},
	{"CPE_SEI_n", "", "SEI CPE exponent"},
	{"R_CT", "Ω", "Charge-transfer resistance that models the voltage drop over the electrode-electrolyte interface due to a load"},
	{"CPE_DL", "F·s^(n-1)", "Double-layer capacitance that models the effect of charges building up in the electrolyte at the electrode surface"},
	{"CPE_DL_n", "", "Double-layer CPE exponent"},
	{"W_sigma", "Ω·s^(-1/2)", "Warburg coefficient of the semi-infinite diffusion impedance modelling lithium-ion diffusion in the electrodes"},
}

// ParameterReports attaches the static metadata to a fitted parameter
// vector.
func ParameterReports(p CircuitParams) []ParameterReport {
	vec := p.Vector()
	reports := make([]ParameterReport, NumParams)
	for i, meta := range paramMeta {
		reports[i] = ParameterReport{
			Name:        meta.Name,
			Value:       vec[i],
			Unit:        meta.Unit,
			Explanation: meta.Explanation,
			MinValue:    paramBounds[i].Min,
			MaxValue:    paramBounds[i].Max,
		}
	}
	return reports
}

// CircuitParams reassembles the fitted parameter vector from the report,
// for callers that want to re-evaluate the model (plot overlays and the
// like).
func (r *AnalysisReport) CircuitParams() CircuitParams {
	x := make([]float64, NumParams)
	for i := range r.Parameters {
		if i >= NumParams {
			break
		}
		x[i] = r.Parameters[i].Value
	}
	return ParamsFromVector(x)
}

// Analyzer sequences parse, fit, Bode projection and SoH scoring into a
// single operation. It holds no per-request state; one Analyzer may serve
// concurrent analyses.
type Analyzer struct {
	Fitter *Fitter
}

// NewAnalyzer returns an Analyzer with default fitter settings.
func NewAnalyzer() *Analyzer {
	return &Analyzer{Fitter: NewFitter()}
}

// Analyze runs the full pipeline on raw CSV bytes. Failures from any
// stage propagate unchanged; there are no retries beyond the fitter's
// own deterministic restart loop.
func (a *Analyzer) Analyze(raw []byte, rbMax float64) (*AnalysisReport, error) {
	spec, err := ParseCSV(raw)
	if err != nil {
		return nil, err
	}
	return a.AnalyzeSpectrum(spec, rbMax)
}

// AnalyzeSpectrum is Analyze for callers that already hold a parsed
// spectrum.
func (a *Analyzer) AnalyzeSpectrum(spec Spectrum, rbMax float64) (*AnalysisReport, error) {
	params, chiSq, err := a.Fitter.Fit(spec)
	if err != nil {
		return nil, err
	}

	bode, err := Bode(spec)
	if err != nil {
		return nil, err
	}

	soh, err := SoH(params.R0, rbMax)
	if err != nil {
		return nil, err
	}

	return &AnalysisReport{
		Bode:          bode,
		Parameters:    ParameterReports(params),
		SoH:           soh,
		CircuitString: CircuitString,
		ChiSquare:     chiSq,
	}, nil
}

// Analyze is the package-level entry point with default settings.
func Analyze(raw []byte, rbMax float64) (*AnalysisReport, error) {
	return NewAnalyzer().Analyze(raw, rbMax)
}
