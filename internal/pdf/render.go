// Package pdf turns a markdown research report into a printable PDF.
package pdf

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
)

const (
	pageMargin = 15.0 // mm
	bodySize   = 11.0
	lineHeight = 6.0
	bulletGap  = 5.0
)

// heading point size per markdown level, deeper levels share the last entry
var headingSizes = []float64{18, 15, 13, 12}

// Renderer converts report markdown to an A4 PDF document.
type Renderer struct{}

func NewRenderer() *Renderer {
	return &Renderer{}
}

// Render lays the markdown out line by line. Headings and bullet lists
// get dedicated treatment; everything else is wrapped body text.
func (r *Renderer) Render(markdown string) ([]byte, error) {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetMargins(pageMargin, pageMargin, pageMargin)
	doc.SetAutoPageBreak(true, pageMargin)
	doc.AddPage()
	doc.SetFont("Helvetica", "", bodySize)
	tr := doc.UnicodeTranslatorFromDescriptor("")

	for _, line := range strings.Split(markdown, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			doc.Ln(lineHeight / 2)
		case strings.HasPrefix(trimmed, "#"):
			level, text := splitHeading(trimmed)
			size := headingSizes[min(level, len(headingSizes))-1]
			doc.SetFont("Helvetica", "B", size)
			doc.MultiCell(0, lineHeight+2, tr(stripInline(text)), "", "L", false)
			doc.SetFont("Helvetica", "", bodySize)
			doc.Ln(1)
		case strings.HasPrefix(trimmed, "- "), strings.HasPrefix(trimmed, "* "):
			doc.Cell(bulletGap, lineHeight, tr("•"))
			doc.MultiCell(0, lineHeight, tr(stripInline(trimmed[2:])), "", "L", false)
		default:
			doc.MultiCell(0, lineHeight, tr(stripInline(trimmed)), "", "L", false)
		}
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// splitHeading returns the heading level (1-6) and the heading text.
func splitHeading(line string) (int, string) {
	level := 0
	for level < len(line) && line[level] == '#' && level < 6 {
		level++
	}
	return level, strings.TrimSpace(line[level:])
}

// stripInline drops bold and italic markers; the layout carries the
// emphasis instead.
func stripInline(s string) string {
	s = strings.ReplaceAll(s, "**", "")
	s = strings.ReplaceAll(s, "__", "")
	s = strings.ReplaceAll(s, "`", "")
	return s
}
