package export

import (
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"

	"github.com/astelwilliam/expense-tracker/internal/core"
)

// Column widths in millimeters on an A4 portrait page.
var pdfColWidths = []float64{25, 55, 25, 35, 50}

// WritePDF writes the expenses as a simple PDF table with a totals line
// at the bottom.
func WritePDF(w io.Writer, expenses []core.Expense) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Expenses", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 10, "Expenses", "", 1, "L", false, 0, "")
	pdf.Ln(2)

	writeHeader := func() {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.SetFillColor(230, 230, 230)
		for i, name := range Header {
			pdf.CellFormat(pdfColWidths[i], 8, name, "1", 0, "L", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", 10)
	}
	writeHeader()

	var total core.Money
	for _, e := range sortByDate(expenses) {
		// Repeat the header after a page break.
		if pdf.GetY() > 270 {
			pdf.AddPage()
			writeHeader()
		}
		for i, v := range row(e) {
			align := "L"
			if i == 2 {
				align = "R"
			}
			pdf.CellFormat(pdfColWidths[i], 7, v, "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
		total = total.Add(e.Amount)
	}

	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(pdfColWidths[0]+pdfColWidths[1], 8, "Total", "1", 0, "L", false, 0, "")
	pdf.CellFormat(pdfColWidths[2], 8, total.String(), "1", 0, "R", false, 0, "")
	pdf.CellFormat(pdfColWidths[3]+pdfColWidths[4], 8, "", "1", 1, "L", false, 0, "")

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return nil
}
