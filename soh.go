package eiscore

import "fmt"

// DefaultRbMax is the bulk resistance of a fresh reference cell, in Ohm.
const DefaultRbMax = 0.1

// SoHResult carries the health percentage together with the resistances
// it was derived from. Field names are part of the external contract.
type SoHResult struct {
	Percentage float64 `json:"soh_percentage"`
	RbCurrent  float64 `json:"rb_current"`
	RbMax      float64 `json:"rb_max"`
}

// SoH derives state of health from the fitted bulk resistance:
// (1 - rbCurrent/rbMax) * 100. The value is deliberately unclamped; a
// cell better than the reference reads above 100 and a badly degraded
// one below zero, and callers interpret the sign.
func SoH(rbCurrent, rbMax float64) (SoHResult, error) {
	if rbMax <= 0 {
		return SoHResult{}, fmt.Errorf("%w: rb_max must be positive, got %g", ErrMalformedInput, rbMax)
	}
	return SoHResult{
		Percentage: (1 - rbCurrent/rbMax) * 100,
		RbCurrent:  rbCurrent,
		RbMax:      rbMax,
	}, nil
}
