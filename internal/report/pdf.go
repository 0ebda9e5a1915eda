package report

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// SaveDecodePDF renders rep into a human-readable PDF: a summary block, a
// per-item frequency table, and a findings list of every validation
// diagnostic raised across the block's records.
func SaveDecodePDF(rep DecodeReport, out string) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("ASTERIX Decode Report", false)
	pdf.SetAuthor("asterixctl", false)
	pdf.SetCreator("asterixctl", false)
	pdf.SetMargins(15, 20, 15)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	addPDFTitle(pdf, fmt.Sprintf("ASTERIX CAT%03d Decode Report", rep.Category))
	addSummarySection(pdf, rep)
	addFrequencySection(pdf, rep)
	addFieldsSection(pdf, rep)
	addFindingsSection(pdf, rep)

	if pdf.Err() {
		return pdf.Error()
	}
	return pdf.OutputFileAndClose(out)
}

func addPDFTitle(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, title)
	pdf.Ln(12)
}

func addSummarySection(pdf *gofpdf.Fpdf, rep DecodeReport) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Summary")
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 11)
	items := []struct{ label, value string }{
		{"Generated", rep.GeneratedAt.Format("2006-01-02 15:04:05 UTC")},
		{"Total Records", strconv.Itoa(rep.Summary.Total)},
		{"Valid", strconv.Itoa(rep.Summary.Valid)},
		{"Invalid", strconv.Itoa(rep.Summary.Invalid)},
		{"Record Length (min/avg/max)", fmt.Sprintf("%d / %.1f / %d", rep.Stats.LengthMin, rep.Stats.LengthAvg, rep.Stats.LengthMax)},
		{"Overall", passLabel(rep.Summary.Pass)},
	}
	for _, item := range items {
		pdf.CellFormat(65, 6, item.label, "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, item.value, "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)
}

func addFrequencySection(pdf *gofpdf.Fpdf, rep DecodeReport) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Item Frequency")
	pdf.Ln(9)

	headers := []string{"Item", "Occurrences"}
	widths := []float64{60, 60}
	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Helvetica", "B", 10)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	for _, f := range rep.Stats.ItemFrequency {
		pdf.CellFormat(widths[0], 6, f.ID, "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 6, strconv.Itoa(f.Count), "1", 1, "L", false, 0, "")
	}
	pdf.Ln(4)
}

// maxFieldSectionRecords bounds how many decoded records get a full
// field dump in the PDF; large captures still get the summary and
// frequency sections above, just not a page-per-record field listing.
const maxFieldSectionRecords = 25

func addFieldsSection(pdf *gofpdf.Fpdf, rep DecodeReport) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Decoded Fields")
	pdf.Ln(9)

	shown := 0
	for _, rec := range rep.Records {
		if shown >= maxFieldSectionRecords {
			pdf.SetFont("Helvetica", "I", 9)
			pdf.MultiCell(0, 5, fmt.Sprintf("... %d more record(s) omitted", len(rep.Records)-shown), "", "L", false)
			break
		}
		if len(rec.Fields) == 0 {
			continue
		}
		pdf.SetFont("Helvetica", "B", 10)
		pdf.MultiCell(0, 5, fmt.Sprintf("Record %d", rec.Index), "", "L", false)
		pdf.SetFont("Helvetica", "", 9)
		for _, f := range rec.Fields {
			pdf.MultiCell(0, 5, fmt.Sprintf("  %s.%s = %s", f.ItemID, f.Name, f.Display), "", "L", false)
		}
		pdf.Ln(2)
		shown++
	}
}

func addFindingsSection(pdf *gofpdf.Fpdf, rep DecodeReport) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Findings")
	pdf.Ln(9)

	any := false
	for _, rec := range rep.Records {
		for _, d := range rec.Diagnostics {
			any = true
			pdf.SetFont("Helvetica", "B", 10)
			header := fmt.Sprintf("Record %d: %s (%s)", rec.Index, d.FieldID, d.Severity)
			pdf.MultiCell(0, 5, header, "", "L", false)
			if msg := strings.TrimSpace(d.Message); msg != "" {
				pdf.SetFont("Helvetica", "", 10)
				pdf.MultiCell(0, 5, msg, "", "L", false)
			}
			pdf.Ln(2)
		}
	}
	if !any {
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 6, "No findings recorded.", "", "L", false)
	}
}

func passLabel(pass bool) string {
	if pass {
		return "PASS"
	}
	return "FAIL"
}
