package report

import (
	"bytes"
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/celldiag/eiscore"
)

var (
	measuredColor = color.RGBA{B: 255, A: 255}
	fittedColor   = color.RGBA{R: 255, A: 255}
)

// RenderBode draws the magnitude and phase plots for a measured series,
// with an optional fitted-model overlay, and returns the two PNGs.
func RenderBode(measured eiscore.BodeSeries, fitted *eiscore.BodeSeries) (magPNG, phasePNG []byte, err error) {
	magPNG, err = renderSeries("Bode Magnitude", "|Z| (Ohm)", measured, fitted, func(s eiscore.BodeSeries) []float64 { return s.Magnitude })
	if err != nil {
		return nil, nil, err
	}
	phasePNG, err = renderSeries("Bode Phase", "Phase (deg)", measured, fitted, func(s eiscore.BodeSeries) []float64 { return s.Phase })
	if err != nil {
		return nil, nil, err
	}
	return magPNG, phasePNG, nil
}

func renderSeries(title, yLabel string, measured eiscore.BodeSeries, fitted *eiscore.BodeSeries, pick func(eiscore.BodeSeries) []float64) ([]byte, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Frequency (Hz)"
	p.Y.Label.Text = yLabel
	p.X.Scale = plot.LogScale{}
	p.X.Tick.Marker = plot.LogTicks{Prec: -1}
	p.Add(plotter.NewGrid())

	line, err := newLine(measured.Frequencies, pick(measured))
	if err != nil {
		return nil, fmt.Errorf("failed to build measured line: %w", err)
	}
	line.Color = measuredColor
	line.LineStyle.Width = vg.Points(1.5)
	p.Add(line)
	p.Legend.Add("measured", line)

	if fitted != nil {
		fit, err := newLine(fitted.Frequencies, pick(*fitted))
		if err != nil {
			return nil, fmt.Errorf("failed to build fitted line: %w", err)
		}
		fit.Color = fittedColor
		fit.LineStyle.Width = vg.Points(1.5)
		fit.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
		p.Add(fit)
		p.Legend.Add("fitted", fit)
	}
	p.Legend.Top = true

	writer, err := p.WriterTo(vg.Points(600), vg.Points(300), "png")
	if err != nil {
		return nil, fmt.Errorf("failed to create plot writer: %w", err)
	}
	buf := new(bytes.Buffer)
	if _, err := writer.WriteTo(buf); err != nil {
		return nil, fmt.Errorf("failed to write plot: %w", err)
	}
	return buf.Bytes(), nil
}

func newLine(xs, ys []float64) (*plotter.Line, error) {
	pts := make(plotter.XYs, len(xs))
	for i := range xs {
		pts[i] = plotter.XY{X: xs[i], Y: ys[i]}
	}
	return plotter.NewLine(pts)
}

// FittedSeries recomputes the model curve at the measured frequencies so
// it can be overlaid on the measured Bode plots.
func FittedSeries(rep *eiscore.AnalysisReport) (eiscore.BodeSeries, error) {
	model := eiscore.ModelSpectrum(rep.CircuitParams(), rep.Bode.Frequencies)
	return eiscore.Bode(model)
}
