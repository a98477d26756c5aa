// Package report implements the document layout engine that turns a report
// model (header metadata plus an ordered defect list) into a paginated,
// printable PDF.
//
// The engine owns its cursor and page set for exactly one generation run:
// a PDFGenerator is safe for concurrent use because every call to Generate
// builds a fresh composer. Output is reproducible for identical inputs,
// modulo the generation timestamp.
package report

import (
	"context"
	"io"
	"time"

	"github.com/pwalcher/defectdoc/internal/domain"
)

// =============================================================================
// Generator Interface
// =============================================================================

// Result describes a finished generation run.
type Result struct {
	// Filename is derived from the generation date:
	// Inspection_Report_<YYYY-MM-DD>.pdf
	Filename string

	// Pages is the total page count of the finished document.
	Pages int

	// Bytes is the number of bytes written to the output writer.
	Bytes int64

	// ImageFailures counts defects whose photo could not be measured and
	// was rendered as an inline placeholder instead.
	ImageFailures int

	// GeneratedAt is the finalize-time timestamp stamped on every footer.
	GeneratedAt time.Time
}

// Generator defines the interface for report generators.
type Generator interface {
	// Generate creates a report from the given data and writes it to w.
	// Generation either yields one complete document or nothing plus an
	// error; there is no partial-success mode.
	Generate(ctx context.Context, data *domain.ReportData, w io.Writer) (*Result, error)
}

// =============================================================================
// Palette
// =============================================================================

// Palette defines the color scheme for generated reports.
var Palette = struct {
	Slate      string // Section banner text and headings
	TextDark   string // Primary text
	TextMuted  string // Footer and disclaimer text
	Border     string // Rules and separators
	BannerFill string // Section banner and table row shading
	Error      string // Inline image-failure notices
}{
	Slate:      "#1E3A5F",
	TextDark:   "#1F2937",
	TextMuted:  "#6B7280",
	Border:     "#E5E7EB",
	BannerFill: "#EEF2F7",
	Error:      "#DC2626",
}

// =============================================================================
// Color Conversion Helpers
// =============================================================================

// HexToRGB converts a hex color string to RGB values.
// Input format: "#RRGGBB" or "RRGGBB"
func HexToRGB(hex string) (r, g, b int) {
	if len(hex) > 0 && hex[0] == '#' {
		hex = hex[1:]
	}
	if len(hex) != 6 {
		return 0, 0, 0
	}

	r = hexToDec(hex[0:2])
	g = hexToDec(hex[2:4])
	b = hexToDec(hex[4:6])
	return
}

// hexToDec converts a 2-character hex string to decimal.
func hexToDec(hex string) int {
	val := 0
	for _, c := range hex {
		val *= 16
		switch {
		case c >= '0' && c <= '9':
			val += int(c - '0')
		case c >= 'a' && c <= 'f':
			val += int(c - 'a' + 10)
		case c >= 'A' && c <= 'F':
			val += int(c - 'A' + 10)
		}
	}
	return val
}

// =============================================================================
// Formatting Helpers
// =============================================================================

// FormatInspectionDate reformats a YYYY-MM-DD form value into a long
// human-readable date. Values that do not parse are rendered verbatim.
func FormatInspectionDate(s string) string {
	if s == "" {
		return ""
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return s
	}
	return t.Format("January 2, 2006")
}

// FormatTimestamp formats the footer generation timestamp.
func FormatTimestamp(t time.Time) string {
	return t.Format("January 2, 2006 at 3:04 PM")
}

// Filename derives the output file name from the generation date.
func Filename(t time.Time) string {
	return "Inspection_Report_" + t.Format("2006-01-02") + ".pdf"
}
