package eiscore

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// MinSamples is the smallest spectrum the parser accepts. Fitting is
// practically unstable well above this, but that is the fitter's call,
// not the parser's.
const MinSamples = 3

// Sample is one impedance measurement: frequency in Hz plus the real and
// imaginary parts of Z in Ohm.
type Sample struct {
	Freq float64 `json:"frequency"`
	Zre  float64 `json:"real"`
	Zim  float64 `json:"imag"`
}

// Spectrum is an uploaded measurement in file order. Samples are treated
// as an unordered set of independent measurements; nothing here sorts or
// interpolates.
type Spectrum []Sample

// Recognized header aliases, all matched case-insensitively.
var (
	freqAliases = []string{"freq", "frequency", "hz"}
	realAliases = []string{"real", "z_real", "zre"}
	imagAliases = []string{"imag", "z_imag", "zim"}
)

func matchColumn(header []string, aliases []string) int {
	for i, col := range header {
		name := strings.ToLower(strings.TrimSpace(col))
		for _, alias := range aliases {
			if name == alias {
				return i
			}
		}
	}
	return -1
}

// ParseCSV turns raw tabular bytes into a Spectrum. The first row must be
// a header naming a frequency, real and imaginary column; column order is
// irrelevant and extra columns are ignored. Every data row must supply a
// numeric value in all three matched columns and a frequency > 0.
func ParseCSV(data []byte) (Spectrum, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: missing header row: %v", ErrMalformedInput, err)
	}

	freqCol := matchColumn(header, freqAliases)
	realCol := matchColumn(header, realAliases)
	imagCol := matchColumn(header, imagAliases)
	switch {
	case freqCol < 0:
		return nil, fmt.Errorf("%w: header %v has no frequency column (expected one of %v)", ErrMalformedInput, header, freqAliases)
	case realCol < 0:
		return nil, fmt.Errorf("%w: header %v has no real impedance column (expected one of %v)", ErrMalformedInput, header, realAliases)
	case imagCol < 0:
		return nil, fmt.Errorf("%w: header %v has no imaginary impedance column (expected one of %v)", ErrMalformedInput, header, imagAliases)
	}

	var spec Spectrum
	for row := 1; ; row++ {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrMalformedInput, row, err)
		}

		freq, err := parseField(record, freqCol, row, "frequency")
		if err != nil {
			return nil, err
		}
		zre, err := parseField(record, realCol, row, "real impedance")
		if err != nil {
			return nil, err
		}
		zim, err := parseField(record, imagCol, row, "imaginary impedance")
		if err != nil {
			return nil, err
		}

		if freq <= 0 {
			return nil, fmt.Errorf("%w: row %d: frequency %g is not positive", ErrMalformedInput, row, freq)
		}
		spec = append(spec, Sample{Freq: freq, Zre: zre, Zim: zim})
	}

	if len(spec) < MinSamples {
		return nil, fmt.Errorf("%w: %d valid rows, need at least %d", ErrInsufficientData, len(spec), MinSamples)
	}
	return spec, nil
}

func parseField(record []string, col, row int, what string) (float64, error) {
	if col >= len(record) {
		return 0, fmt.Errorf("%w: row %d has no %s field", ErrMalformedInput, row, what)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(record[col]), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: row %d: %s %q is not numeric", ErrMalformedInput, row, what, record[col])
	}
	return v, nil
}

// MarshalCSV serializes the spectrum back to the header format ParseCSV
// accepts. Values round-trip exactly.
func (s Spectrum) MarshalCSV() []byte {
	var buf bytes.Buffer
	buf.WriteString("frequency,z_real,z_imag\n")
	for _, smp := range s {
		buf.WriteString(strconv.FormatFloat(smp.Freq, 'g', -1, 64))
		buf.WriteByte(',')
		buf.WriteString(strconv.FormatFloat(smp.Zre, 'g', -1, 64))
		buf.WriteByte(',')
		buf.WriteString(strconv.FormatFloat(smp.Zim, 'g', -1, 64))
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// Freqs returns the frequencies in sample order.
func (s Spectrum) Freqs() []float64 {
	freqs := make([]float64, len(s))
	for i, smp := range s {
		freqs[i] = smp.Freq
	}
	return freqs
}

// Impedances returns the measurements as [Zre, Zim] pairs in sample
// order, the layout the solver and chi-square code work with.
func (s Spectrum) Impedances() [][2]float64 {
	imp := make([][2]float64, len(s))
	for i, smp := range s {
		imp[i] = [2]float64{smp.Zre, smp.Zim}
	}
	return imp
}
