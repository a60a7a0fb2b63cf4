package eiscore

import (
	"math"
	"math/cmplx"
)

// CircuitString labels the fixed model topology: a series bulk resistance,
// two parallel R/CPE branches (SEI layer and charge transfer / double
// layer) and a semi-infinite Warburg diffusion element.
const CircuitString = "R0-p(R1,CPE1)-p(R2,CPE2)-W"

// NumParams is the number of free parameters of the fixed topology.
const NumParams = 8

// CircuitParams holds the model parameters. Field order matches Vector
// and the per-parameter metadata tables.
type CircuitParams struct {
	R0     float64 // bulk/electrolyte resistance (Ohm)
	R1     float64 // SEI layer resistance (Ohm)
	Q1     float64 // SEI CPE magnitude
	N1     float64 // SEI CPE exponent, in (0, 1]
	R2     float64 // charge-transfer resistance (Ohm)
	Q2     float64 // double-layer CPE magnitude
	N2     float64 // double-layer CPE exponent, in (0, 1]
	Wsigma float64 // Warburg coefficient (Ohm*s^-1/2)
}

// Vector flattens the parameters in canonical order.
func (p CircuitParams) Vector() []float64 {
	return []float64{p.R0, p.R1, p.Q1, p.N1, p.R2, p.Q2, p.N2, p.Wsigma}
}

// ParamsFromVector is the inverse of Vector.
func ParamsFromVector(x []float64) CircuitParams {
	if len(x) != NumParams {
		panic("circuit: parameter vector length mismatch")
	}
	return CircuitParams{
		R0: x[0], R1: x[1], Q1: x[2], N1: x[3],
		R2: x[4], Q2: x[5], N2: x[6], Wsigma: x[7],
	}
}

// Impedance evaluates the model at freq (Hz). Pure function; freq must be
// positive, which the parser guarantees for measured spectra.
func (p CircuitParams) Impedance(freq float64) complex128 {
	w := 2 * math.Pi * freq
	jw := complex(0, w)

	z := complex(p.R0, 0)
	z += parallel(complex(p.R1, 0), cpe(p.Q1, p.N1, jw))
	z += parallel(complex(p.R2, 0), cpe(p.Q2, p.N2, jw))
	z += complex(p.Wsigma, 0) * complex(1, -1) / complex(math.Sqrt(w), 0)
	return z
}

// cpe is the constant phase element: Zcpe = 1 / (Q * (jw)^n).
func cpe(q, n float64, jw complex128) complex128 {
	return complex(1, 0) / (complex(q, 0) * cmplx.Pow(jw, complex(n, 0)))
}

func parallel(z1, z2 complex128) complex128 {
	return z1 * z2 / (z1 + z2)
}

// ModelImpedance evaluates the circuit at every frequency, returning
// [Zre, Zim] pairs in order.
func ModelImpedance(p CircuitParams, freqs []float64) [][2]float64 {
	res := make([][2]float64, len(freqs))
	for i, f := range freqs {
		z := p.Impedance(f)
		res[i] = [2]float64{real(z), imag(z)}
	}
	return res
}

// ModelSpectrum evaluates the circuit at every frequency as a synthetic
// Spectrum, so model curves can flow through the same Bode projection as
// measured data.
func ModelSpectrum(p CircuitParams, freqs []float64) Spectrum {
	spec := make(Spectrum, len(freqs))
	for i, f := range freqs {
		z := p.Impedance(f)
		spec[i] = Sample{Freq: f, Zre: real(z), Zim: imag(z)}
	}
	return spec
}
