package eiscore

import "errors"

// The three failure kinds every caller is expected to branch on. All of
// them are terminal for the current analysis; nothing in this package
// retries internally. Wrap with fmt.Errorf("%w: ...") and match with
// errors.Is.
var (
	// ErrMalformedInput covers bad CSV structure or content: an
	// unrecognized header, a row with the wrong field count, a
	// non-numeric cell or a non-positive frequency.
	ErrMalformedInput = errors.New("malformed input")

	// ErrInsufficientData means too few valid samples for the requested
	// step: fewer than MinSamples rows after parsing, or fewer samples
	// than free circuit parameters when fitting.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrFitDidNotConverge means the optimizer exhausted its budget
	// without meeting tolerance, or hit a singular condition.
	ErrFitDidNotConverge = errors.New("fit did not converge")
)
