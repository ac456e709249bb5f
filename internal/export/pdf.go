// Package export renders a form's collected responses as a PDF document.
package export

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/go-pdf/fpdf"

	"formbridge/internal/airtable"
	"formbridge/internal/form/models"
)

const (
	margin    = 50.0
	lineStep  = 20.0
	titleSize = 24.0
	bodySize  = 12.0
)

// RenderResponses lays out one line per record field, a light rule between
// records, and a page break whenever the cursor reaches the bottom margin.
// Field lines render in sorted field-name order so the same records always
// produce the same document.
func RenderResponses(f *models.Form, records []airtable.Record) ([]byte, error) {
	pdf := fpdf.New("P", "pt", "A4", "")
	// Pin the metadata clock so identical records yield identical bytes.
	pdf.SetCreationDate(f.CreatedAt)
	pdf.SetModificationDate(f.CreatedAt)
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	width, height := pdf.GetPageSize()
	y := margin + titleSize

	pdf.SetFont("Helvetica", "", titleSize)
	pdf.Text(margin, y, Sanitize(f.Name))
	y += margin

	pdf.SetFont("Helvetica", "", bodySize)

	if len(records) == 0 {
		pdf.Text(margin, y, "No responses found for this form.")
	}

	for _, record := range records {
		pdf.SetDrawColor(204, 204, 204)
		pdf.Line(margin, y, width-margin, y)
		y += lineStep

		names := make([]string, 0, len(record.Fields))
		for name := range record.Fields {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			if y > height-margin {
				pdf.AddPage()
				y = margin
			}
			line := fmt.Sprintf("%s: %s", Sanitize(name), Sanitize(formatValue(record.Fields[name])))
			pdf.Text(margin, y, line)
			y += lineStep
		}
		y += lineStep / 2
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// Filename derives the attachment name for a form's response export.
func Filename(f *models.Form) string {
	return Sanitize(f.Name) + "-responses.pdf"
}

// Sanitize replaces every rune outside latin-1 with "?", since the built-in
// Helvetica font cannot encode anything beyond it.
func Sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r > 0xFF {
			b.WriteByte('?')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// formatValue flattens a record field into display text. List answers join
// with a comma, matching how multi-select values read in the source table.
func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			parts = append(parts, formatValue(item))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(t)
	}
}
