package eiscore

import (
	"fmt"
	"log"
	"math"

	"github.com/maorshutman/lm"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// Weighting selects how residuals are scaled before squaring.
type Weighting int

const (
	// MODULUS divides each residual by |Z_measured|, so low-impedance
	// points do not drown in the high-impedance tail.
	MODULUS Weighting = iota
	// UNITY leaves residuals unscaled.
	UNITY
)

// Method selects the concrete least-squares strategy.
type Method string

const (
	MethodLM         Method = "lm"
	MethodNelderMead Method = "nelder-mead"
	MethodLBFGS      Method = "lbfgs"
	MethodNewton     Method = "newton"
)

// Bounds is the admissible box for one parameter.
type Bounds struct {
	Min float64
	Max float64
}

// paramBounds are the physically motivated boxes, in Vector order. The
// same values are reported per parameter as the plausibility band.
var paramBounds = [NumParams]Bounds{
	{1e-3, 0.5}, // R0
	{1e-3, 0.5}, // R1
	{1e-6, 0.1}, // Q1
	{0.5, 1.0},  // N1
	{1e-3, 0.5}, // R2
	{1e-6, 0.1}, // Q2
	{0.5, 1.0},  // N2
	{1e-5, 10},  // Wsigma
}

const boundsMargin = 1e-9

func (b Bounds) clamp(x float64) float64 {
	span := b.Max - b.Min
	if x <= b.Min {
		return b.Min + boundsMargin*span
	}
	if x >= b.Max {
		return b.Max - boundsMargin*span
	}
	return x
}

// toUnbounded maps an interior point of the box onto the real line via
// the logit; fromUnbounded is the logistic inverse. Optimizers search the
// unbounded space, so every candidate they evaluate maps back inside the
// box instead of merely being penalized for leaving it.
func (b Bounds) toUnbounded(x float64) float64 {
	u := (b.clamp(x) - b.Min) / (b.Max - b.Min)
	return math.Log(u / (1 - u))
}

func (b Bounds) fromUnbounded(t float64) float64 {
	return b.Min + (b.Max-b.Min)/(1+math.Exp(-t))
}

func toUnboundedVec(x []float64, bounds []Bounds) []float64 {
	t := make([]float64, len(x))
	for i, v := range x {
		t[i] = bounds[i].toUnbounded(v)
	}
	return t
}

func fromUnboundedVec(t []float64, bounds []Bounds) []float64 {
	x := make([]float64, len(t))
	for i, v := range t {
		x[i] = bounds[i].fromUnbounded(v)
	}
	return x
}

func clampVector(x []float64, bounds []Bounds) {
	for i := range x {
		x[i] = bounds[i].clamp(x[i])
	}
}

// residualFunc fills dst (length 2*N) with the stacked real/imaginary
// residuals for the bounded parameter vector x.
type residualFunc func(dst, x []float64)

// leastSquares is the narrow solver contract the fitter drives: minimize
// the stacked residual vector over the box and report the bounded
// parameter vector plus whether the run is usable.
type leastSquares interface {
	fit(res residualFunc, size int, init []float64, bounds []Bounds) ([]float64, bool)
}

// wrapBounded lifts a residual function over bounded parameters into the
// unconstrained search space.
func wrapBounded(res residualFunc, bounds []Bounds) func(dst, t []float64) {
	return func(dst, t []float64) {
		res(dst, fromUnboundedVec(t, bounds))
	}
}

// costFunc is the scalar sum-of-squares objective in the unconstrained
// space, for the gonum minimizers.
func costFunc(res residualFunc, size int, bounds []Bounds) func(t []float64) float64 {
	dst := make([]float64, size)
	return func(t []float64) float64 {
		res(dst, fromUnboundedVec(t, bounds))
		sum := 0.0
		for _, r := range dst {
			sum += r * r
		}
		return sum
	}
}

const lmIterations = 10000

type lmSolver struct{}

func (lmSolver) fit(res residualFunc, size int, init []float64, bounds []Bounds) (params []float64, ok bool) {
	fnc := wrapBounded(res, bounds)
	jac := lm.NumJac{Func: fnc}

	problem := lm.LMProblem{
		Dim:        len(init),
		Size:       size,
		Func:       fnc,
		Jac:        jac.Jac,
		InitParams: toUnboundedVec(init, bounds),
		Tau:        1e-13,
		Eps1:       1e-8,
		Eps2:       1e-8,
	}

	// The LM implementation panics on singular matrices.
	defer func() {
		if r := recover(); r != nil {
			log.Printf("lm: optimization panicked: %v", r)
			params, ok = nil, false
		}
	}()

	r, err := lm.LM(problem, &lm.Settings{Iterations: lmIterations, ObjectiveTol: 1e-16})
	if err != nil {
		log.Printf("lm: optimization failed: %v", err)
		return nil, false
	}
	return fromUnboundedVec(r.X, bounds), true
}

const gonumIterations = 2000

type nelderMeadSolver struct{}

func (nelderMeadSolver) fit(res residualFunc, size int, init []float64, bounds []Bounds) ([]float64, bool) {
	return gonumFit(&optimize.NelderMead{}, false, false, res, size, init, bounds)
}

type lbfgsSolver struct{}

func (lbfgsSolver) fit(res residualFunc, size int, init []float64, bounds []Bounds) ([]float64, bool) {
	return gonumFit(&optimize.LBFGS{}, true, false, res, size, init, bounds)
}

type newtonSolver struct{}

func (newtonSolver) fit(res residualFunc, size int, init []float64, bounds []Bounds) ([]float64, bool) {
	return gonumFit(&optimize.Newton{}, true, true, res, size, init, bounds)
}

func gonumFit(method optimize.Method, withGrad, withHess bool, res residualFunc, size int, init []float64, bounds []Bounds) ([]float64, bool) {
	cost := costFunc(res, size, bounds)

	problem := optimize.Problem{Func: cost}
	if withGrad {
		problem.Grad = func(grad, t []float64) {
			fd.Gradient(grad, cost, t, nil)
		}
	}
	if withHess {
		problem.Hess = func(h *mat.SymDense, t []float64) {
			fd.Hessian(h, cost, t, nil)
		}
	}

	settings := &optimize.Settings{MajorIterations: gonumIterations}

	r, err := optimize.Minimize(problem, toUnboundedVec(init, bounds), settings, method)
	if err != nil {
		log.Printf("fit: %T optimization failed: %v", method, err)
		return nil, false
	}
	if math.IsNaN(r.F) || math.IsInf(r.F, 0) {
		return nil, false
	}
	return fromUnboundedVec(r.X, bounds), true
}

// Acceptance threshold and restart budget for a fit.
const (
	defaultMinFunc    = 1.35e-2
	defaultMaxRetries = 10
)

// Fitter fits the fixed circuit model to a measured spectrum. The zero
// Method means Levenberg-Marquardt. A Fitter carries no per-fit state, so
// one instance may serve concurrent analyses.
type Fitter struct {
	Method     Method
	Weighting  Weighting
	MinFunc    float64 // chi-square acceptance threshold
	MaxRetries int     // deterministic restart budget
}

// NewFitter returns a Fitter with the default strategy and tolerances.
func NewFitter() *Fitter {
	return &Fitter{
		Method:     MethodLM,
		Weighting:  MODULUS,
		MinFunc:    defaultMinFunc,
		MaxRetries: defaultMaxRetries,
	}
}

// Fit returns the fitted parameters and the chi-square of the accepted
// fit. Identical spectra always produce identical parameters: the initial
// guess is a fixed heuristic and restarts perturb it deterministically.
func (f *Fitter) Fit(spec Spectrum) (CircuitParams, float64, error) {
	if len(spec) < NumParams {
		return CircuitParams{}, 0, fmt.Errorf("%w: %d samples cannot determine %d parameters", ErrInsufficientData, len(spec), NumParams)
	}

	bounds := paramBounds[:]
	observed := spec.Impedances()
	freqs := spec.Freqs()
	res := f.residuals(spec)
	size := 2 * len(spec)
	solver := f.solver()

	init := initialGuess(spec).Vector()
	clampVector(init, bounds)

	best := math.Inf(1)
	var bestX []float64
	attempts := f.MaxRetries
	if attempts < 0 {
		attempts = 0
	}
	for attempt := 0; attempt <= attempts; attempt++ {
		x, ok := solver.fit(res, size, init, bounds)
		if !ok {
			init = perturb(init, bounds)
			continue
		}
		chi := ChiSq(observed, ModelImpedance(ParamsFromVector(x), freqs), f.Weighting)
		if chi < best {
			best = chi
			bestX = x
		}
		log.Printf("fit: attempt %d chi-square %.6e (best %.6e)", attempt, chi, best)
		if best < f.MinFunc {
			break
		}
		init = perturb(x, bounds)
	}

	if bestX == nil {
		return CircuitParams{}, 0, fmt.Errorf("%w: no usable optimizer run in %d attempts", ErrFitDidNotConverge, attempts+1)
	}
	if math.IsNaN(best) || best >= f.MinFunc {
		return CircuitParams{}, 0, fmt.Errorf("%w: chi-square %.6e above tolerance %.6e after %d attempts", ErrFitDidNotConverge, best, f.MinFunc, attempts+1)
	}
	return ParamsFromVector(bestX), best, nil
}

func (f *Fitter) solver() leastSquares {
	switch f.Method {
	case MethodNelderMead:
		return nelderMeadSolver{}
	case MethodLBFGS:
		return lbfgsSolver{}
	case MethodNewton:
		return newtonSolver{}
	case MethodLM, "":
		return lmSolver{}
	default:
		log.Printf("fit: unknown method %q, using levenberg-marquardt", f.Method)
		return lmSolver{}
	}
}

// residuals splits each complex error into its real and imaginary parts
// so the minimizer treats complex misfit correctly: 2*N scalar residuals
// for N samples.
func (f *Fitter) residuals(spec Spectrum) residualFunc {
	weighting := f.Weighting
	return func(dst, x []float64) {
		p := ParamsFromVector(x)
		for i, s := range spec {
			z := p.Impedance(s.Freq)
			re := real(z) - s.Zre
			im := imag(z) - s.Zim
			if weighting == MODULUS {
				if w := math.Hypot(s.Zre, s.Zim); w > 0 {
					re /= w
					im /= w
				}
			}
			dst[2*i] = re
			dst[2*i+1] = im
		}
	}
}

// initialGuess derives a deterministic starting point from the data: R0
// from the high-frequency real-axis intercept, R1/R2 as fractions of the
// resistive spread, CPE exponents near 0.8 and the Warburg coefficient
// from the low-frequency slope of the real part.
func initialGuess(spec Spectrum) CircuitParams {
	hi := spec[0]
	lo1, lo2 := spec[0], spec[0] // lowest and second-lowest frequency
	minRe, maxRe := spec[0].Zre, spec[0].Zre
	for _, s := range spec[1:] {
		if s.Freq > hi.Freq {
			hi = s
		}
		if s.Freq < lo1.Freq {
			lo2 = lo1
			lo1 = s
		} else if s.Freq < lo2.Freq || lo2.Freq == lo1.Freq {
			lo2 = s
		}
		if s.Zre < minRe {
			minRe = s.Zre
		}
		if s.Zre > maxRe {
			maxRe = s.Zre
		}
	}

	spread := maxRe - minRe
	if spread <= 0 {
		spread = math.Abs(hi.Zre)
	}

	return CircuitParams{
		R0:     hi.Zre,
		R1:     0.4 * spread,
		Q1:     0.01,
		N1:     0.8,
		R2:     0.4 * spread,
		Q2:     0.01,
		N2:     0.8,
		Wsigma: warburgSlope(lo1, lo2),
	}
}

// warburgSlope estimates sigma from the two lowest-frequency samples,
// where the diffusion tail dominates: Re(Z) grows as sigma/sqrt(2*pi*f).
func warburgSlope(lo1, lo2 Sample) float64 {
	denom := 1/math.Sqrt(2*math.Pi*lo1.Freq) - 1/math.Sqrt(2*math.Pi*lo2.Freq)
	if denom == 0 {
		return 0.01
	}
	sigma := (lo1.Zre - lo2.Zre) / denom
	if math.IsNaN(sigma) || math.IsInf(sigma, 0) || sigma <= 0 {
		return 0.01
	}
	return sigma
}

// perturb nudges a stalled iterate before the next restart: magnitudes
// are scaled up by 10% and out-of-box CPE exponents reset to 0.8. The
// perturbation is deterministic so repeated fits stay reproducible.
func perturb(x []float64, bounds []Bounds) []float64 {
	out := make([]float64, len(x))
	copy(out, x)
	for _, i := range []int{0, 1, 2, 4, 5, 7} { // R0, R1, Q1, R2, Q2, Wsigma
		out[i] *= 1.1
	}
	for _, i := range []int{3, 6} { // N1, N2
		if out[i] <= bounds[i].Min || out[i] >= bounds[i].Max {
			out[i] = 0.8
		}
	}
	clampVector(out, bounds)
	return out
}

// ChiSq is the per-point normalized squared misfit between observed and
// calculated [Zre, Zim] pairs.
func ChiSq(observed, calculated [][2]float64, weighting Weighting) float64 {
	if len(observed) != len(calculated) {
		panic("eiscore: chi-square slice length mismatch")
	}
	chiSq := 0.0
	for i, o := range observed {
		c := calculated[i]
		d2 := (o[0]-c[0])*(o[0]-c[0]) + (o[1]-c[1])*(o[1]-c[1])
		if weighting == MODULUS {
			if w2 := o[0]*o[0] + o[1]*o[1]; w2 > 0 {
				d2 /= w2
			}
		}
		chiSq += d2
	}
	return chiSq / float64(len(observed))
}
