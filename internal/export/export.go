// Package export renders tabular data as CSV, PDF or Excel and streams it as a download.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/gofiber/fiber/v2"
	"github.com/xuri/excelize/v2"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatPDF  Format = "pdf"
	FormatXLSX Format = "xlsx"
)

// ParseFormat boş değer csv kabul edilir; "excel" xlsx'in takma adı
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "csv":
		return FormatCSV, nil
	case "pdf":
		return FormatPDF, nil
	case "xlsx", "excel":
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("desteklenmeyen format: %q", s)
}

func (f Format) ContentType() string {
	switch f {
	case FormatPDF:
		return "application/pdf"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Table export edilecek başlık + satırlar. Summary satırları tablonun altına yazılır.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
	Summary []string
}

func (t Table) Write(w io.Writer, f Format) error {
	switch f {
	case FormatPDF:
		return t.WritePDF(w)
	case FormatXLSX:
		return t.WriteXLSX(w)
	}
	return t.WriteCSV(w)
}

// WriteCSV Summary satırlarını yazmaz, çıktı tek tablo olarak okunabilsin
func (t Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Headers); err != nil {
		return err
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

func (t Table) WritePDF(w io.Writer) error {
	pdf := fpdf.New("L", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(10, 12, 10)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 10, tr(t.Title), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 8)
	pdf.CellFormat(0, 6, "Generated "+time.Now().UTC().Format("2006-01-02 15:04")+" UTC", "", 1, "L", false, 0, "")
	pdf.Ln(2)

	cols := len(t.Headers)
	if cols == 0 {
		return pdf.Output(w)
	}
	pageW, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	colW := (pageW - left - right) / float64(cols)

	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	for _, h := range t.Headers {
		pdf.CellFormat(colW, 7, tr(h), "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 8)
	for _, row := range t.Rows {
		for i := 0; i < cols; i++ {
			val := ""
			if i < len(row) {
				val = tr(fit(pdf, tr, row[i], colW-2))
			}
			pdf.CellFormat(colW, 6, val, "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	if len(t.Summary) > 0 {
		pdf.Ln(3)
		pdf.SetFont("Helvetica", "B", 9)
		for _, line := range t.Summary {
			pdf.CellFormat(0, 6, tr(line), "", 1, "L", false, 0, "")
		}
	}

	return pdf.Output(w)
}

// fit hücreye sığmayan UTF-8 metni kısaltır; genişlik tr ile çevrilmiş halinden ölçülür
func fit(pdf *fpdf.Fpdf, tr func(string) string, s string, width float64) string {
	if pdf.GetStringWidth(tr(s)) <= width {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && pdf.GetStringWidth(tr(string(r)+"...")) > width {
		r = r[:len(r)-1]
	}
	return string(r) + "..."
}

func (t Table) WriteXLSX(w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := sheetName(t.Title)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}

	bold, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#E6E6E6"}},
	})
	if err != nil {
		return err
	}

	for i, h := range t.Headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	if len(t.Headers) > 0 {
		last, _ := excelize.CoordinatesToCellName(len(t.Headers), 1)
		if err := f.SetCellStyle(sheet, "A1", last, bold); err != nil {
			return err
		}
		lastCol, _ := excelize.ColumnNumberToName(len(t.Headers))
		_ = f.SetColWidth(sheet, "A", lastCol, 20)
	}

	for r, row := range t.Rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}

	next := len(t.Rows) + 3
	for i, line := range t.Summary {
		cell, _ := excelize.CoordinatesToCellName(1, next+i)
		if err := f.SetCellValue(sheet, cell, line); err != nil {
			return err
		}
		_ = f.SetCellStyle(sheet, cell, cell, bold)
	}

	return f.Write(w)
}

// sheetName Excel sayfa adı kurallarına uyar: en fazla 31 karakter, []:*?/\ yok
func sheetName(title string) string {
	name := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`[]:*?/\`, r) {
			return '-'
		}
		return r
	}, strings.TrimSpace(title))
	if name == "" {
		name = "Report"
	}
	if r := []rune(name); len(r) > 31 {
		name = string(r[:31])
	}
	return name
}

// Filename <prefix>_YYYYMMDD_YYYYMMDD.<ext>
func Filename(prefix string, start, end time.Time, f Format) string {
	return fmt.Sprintf("%s_%s_%s.%s", prefix, start.Format("20060102"), end.Format("20060102"), f)
}

// Send tabloyu istenen formatta attachment olarak döner
func Send(c *fiber.Ctx, t Table, f Format, filename string) error {
	var buf bytes.Buffer
	if err := t.Write(&buf, f); err != nil {
		return fmt.Errorf("%s export oluşturulamadı: %w", f, err)
	}
	c.Set(fiber.HeaderContentType, f.ContentType())
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, filename))
	return c.Send(buf.Bytes())
}

// Money iki ondalıklı tutar
func Money(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
