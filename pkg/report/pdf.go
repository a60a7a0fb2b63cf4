package report

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"github.com/celldiag/eiscore"
)

const (
	pdfMargin       = 12.0 // mm
	pdfLineHeight   = 6.0
	pdfContentWidth = 210 - 2*pdfMargin // A4 portrait
)

// WritePDF builds a single-analysis PDF: header, SoH summary, fitted
// parameter table and the two Bode plots.
func WritePDF(path, source string, rep *eiscore.AnalysisReport, magPNG, phasePNG []byte) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(pdfContentWidth, 10, "EIS Cell Analysis Report", "", 1, "C", false, 0, "")

	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(pdfContentWidth, pdfLineHeight, fmt.Sprintf("Source: %s", source), "", 1, "L", false, 0, "")
	pdf.CellFormat(pdfContentWidth, pdfLineHeight, fmt.Sprintf("Circuit: %s", rep.CircuitString), "", 1, "L", false, 0, "")
	pdf.CellFormat(pdfContentWidth, pdfLineHeight, fmt.Sprintf("Chi-square: %.6e", rep.ChiSquare), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(pdfContentWidth, pdfLineHeight,
		fmt.Sprintf("State of Health: %.1f%%  (Rb %.4g Ohm against reference %.4g Ohm)",
			rep.SoH.Percentage, rep.SoH.RbCurrent, rep.SoH.RbMax), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	writeParamTable(pdf, rep.Parameters)
	pdf.Ln(4)

	addPlot(pdf, "bode-magnitude", magPNG)
	addPlot(pdf, "bode-phase", phasePNG)

	return pdf.OutputFileAndClose(path)
}

func writeParamTable(pdf *gofpdf.Fpdf, params []eiscore.ParameterReport) {
	headers := []string{"Parameter", "Value", "Unit", "Band"}
	widths := []float64{0.25, 0.25, 0.2, 0.3}

	pdf.SetFont("Arial", "B", 9)
	pdf.SetFillColor(200, 200, 200)
	for i, h := range headers {
		pdf.CellFormat(widths[i]*pdfContentWidth, pdfLineHeight, h, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, p := range params {
		pdf.CellFormat(widths[0]*pdfContentWidth, pdfLineHeight, p.Name, "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1]*pdfContentWidth, pdfLineHeight, fmt.Sprintf("%.6g", p.Value), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[2]*pdfContentWidth, pdfLineHeight, asciiUnit(p.Unit), "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[3]*pdfContentWidth, pdfLineHeight, fmt.Sprintf("%.3g .. %.3g", p.MinValue, p.MaxValue), "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}
}

// asciiUnit maps unit strings onto the core PDF font's charset.
func asciiUnit(unit string) string {
	switch unit {
	case "Ω":
		return "Ohm"
	case "F·s^(n-1)":
		return "F*s^(n-1)"
	case "Ω·s^(-1/2)":
		return "Ohm*s^(-1/2)"
	}
	return unit
}

func addPlot(pdf *gofpdf.Fpdf, name string, png []byte) {
	if len(png) == 0 {
		return
	}
	width := pdfContentWidth
	height := width / 2 // plots are rendered 2:1

	if pdf.GetY()+height > 297-pdfMargin {
		pdf.AddPage()
	}
	pdf.RegisterImageOptionsReader(name, gofpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(png))
	pdf.ImageOptions(name, pdfMargin, pdf.GetY(), width, height, true, gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")
	pdf.Ln(2)
}
