package report

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/pwalcher/defectdoc/internal/domain"
)

// =============================================================================
// PDF Generator
// =============================================================================

// PDFGenerator generates paginated PDF inspection reports.
// The zero value is not usable; construct with NewPDFGenerator.
type PDFGenerator struct {
	cfg    LayoutConfig
	prober DimensionProber
	logger *slog.Logger

	// now is the generation clock; injectable so footer timestamps and the
	// derived file name are deterministic under test.
	now func() time.Time
}

// NewPDFGenerator creates a PDF generator with the default A4 layout.
func NewPDFGenerator(logger *slog.Logger) *PDFGenerator {
	return NewPDFGeneratorWithConfig(DefaultLayoutConfig(), logger)
}

// NewPDFGeneratorWithConfig creates a PDF generator with a custom layout.
func NewPDFGeneratorWithConfig(cfg LayoutConfig, logger *slog.Logger) *PDFGenerator {
	return &PDFGenerator{
		cfg:    cfg,
		prober: NewDecodeProber(cfg.ProbeTimeout),
		logger: logger,
		now:    time.Now,
	}
}

// Generate creates a PDF report and writes it to the provided writer.
//
// Defects are rendered strictly in input order. Failures local to one
// defect's photo are absorbed into an inline placeholder; any other
// composition failure terminates the run without producing output.
func (g *PDFGenerator) Generate(ctx context.Context, data *domain.ReportData, w io.Writer) (*Result, error) {
	c := newComposer(g.cfg, g.prober, g.logger)

	title := data.Metadata.ReportTitle
	if title == "" {
		title = "Inspection Report"
	}
	c.pdf.SetTitle(title, true)
	c.pdf.SetAuthor(data.Metadata.InspectorName, true)
	c.pdf.SetCreator("defectdoc", true)

	c.addBranding(&data.Metadata)
	c.addClientDetails(&data.Metadata)
	c.addInspectionDetails(&data.Metadata)
	c.addDisclaimer(&data.Metadata)
	c.addDefects(ctx, data.Defects)

	generatedAt := g.now()
	c.stampFooters(generatedAt)

	if err := c.pdf.Error(); err != nil {
		return nil, fmt.Errorf("pdf generation error: %w", err)
	}

	var buf bytes.Buffer
	if err := c.pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("pdf output error: %w", err)
	}

	n, err := w.Write(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("write report: %w", err)
	}

	return &Result{
		Filename:      Filename(generatedAt),
		Pages:         c.pdf.PageCount(),
		Bytes:         int64(n),
		ImageFailures: c.imageFailures,
		GeneratedAt:   generatedAt,
	}, nil
}

// =============================================================================
// Branding Block
// =============================================================================

func (c *composer) addBranding(m *domain.ReportMetadata) {
	if m.CompanyName != "" {
		c.setTextColor(Palette.Slate)
		c.addCenteredText(m.CompanyName, 18, true)
		c.setTextColor(Palette.TextDark)
	}

	// Contact line is omitted entirely when phone and email are both
	// absent, never rendered as an empty string with a separator.
	if line := m.ContactLine(); line != "" {
		c.setTextColor(Palette.TextMuted)
		c.addCenteredText(line, 10, false)
		c.setTextColor(Palette.TextDark)
	}

	if m.ReportTitle != "" {
		c.addCenteredText(m.ReportTitle, 14, true)
	}

	c.horizontalRule()
}

// =============================================================================
// Property & Client Details
// =============================================================================

func (c *composer) addClientDetails(m *domain.ReportMetadata) {
	c.sectionHeader("Property & Client Details")

	c.labelValue("Client", m.ClientName)
	c.labelValue("Address", m.ClientAddress)
	c.labelValue("Inspection Date", FormatInspectionDate(m.InspectionDate))
	c.labelValue("Inspector", m.InspectorName)
	c.labelValue("Credentials", m.InspectorCredentials)
}

// =============================================================================
// Inspection Details
// =============================================================================

func (c *composer) addInspectionDetails(m *domain.ReportMetadata) {
	c.sectionHeader("Inspection Details")

	rows := []struct {
		label string
		value string
	}{
		{"Attendance", m.Attendance},
		{"Occupancy", m.Occupancy},
		{"Building Type", m.BuildingType},
		{"Weather Condition", m.WeatherCondition},
	}

	const rowHeight = 8.0
	const labelWidth = 55.0

	for i, row := range rows {
		c.ensureSpace(rowHeight)

		// Alternating row shading, starting with the first row.
		if i%2 == 0 {
			r, g, b := HexToRGB(Palette.BannerFill)
			c.pdf.SetFillColor(r, g, b)
			c.pdf.Rect(c.cfg.Margin, c.y, c.contentWidth, rowHeight, "F")
		}

		value := row.value
		if value == "" {
			value = "N/A"
		}

		c.setFont(10, true)
		c.pdf.SetXY(c.cfg.Margin+2, c.y)
		c.pdf.CellFormat(labelWidth, rowHeight, row.label, "", 0, "L", false, 0, "")
		c.setFont(10, false)
		c.pdf.SetXY(c.cfg.Margin+2+labelWidth, c.y)
		c.pdf.CellFormat(c.contentWidth-labelWidth-4, rowHeight, value, "", 0, "L", false, 0, "")

		c.y += rowHeight
	}
	c.y += 4
}

// =============================================================================
// General Disclaimer
// =============================================================================

func (c *composer) addDisclaimer(m *domain.ReportMetadata) {
	// Header is always shown; the body is skipped when empty.
	c.sectionHeader("General Disclaimer")

	if m.Disclaimer == "" {
		return
	}
	c.setTextColor(Palette.TextMuted)
	c.addText(m.Disclaimer, 9, false)
	c.setTextColor(Palette.TextDark)
}

// =============================================================================
// Identified Defects
// =============================================================================

func (c *composer) addDefects(ctx context.Context, defects []domain.DefectRecord) {
	if len(defects) == 0 {
		return
	}

	// The defect section always opens on a fresh page regardless of the
	// space remaining on the current one.
	c.newPage()
	c.sectionHeader(fmt.Sprintf("Identified Defects (%d Total)", len(defects)))

	for i, defect := range defects {
		heading := fmt.Sprintf("Defect %d: %s", i+1, defect.Type)
		c.defectHeading(heading)
		c.placeDefectImage(ctx, defect, heading)
		c.addText(defect.Description, 10, false)

		// Thin separator between consecutive defects, never after the last.
		if i < len(defects)-1 {
			c.defectSeparator()
		}
	}
}

// defectHeading writes the bold heading line of one defect. The same text,
// suffixed "(continued)", is reprinted after a page break forced by the
// defect's image.
func (c *composer) defectHeading(heading string) {
	c.setTextColor(Palette.Slate)
	c.addText(heading, 12, true)
	c.setTextColor(Palette.TextDark)
}

func (c *composer) defectSeparator() {
	c.ensureSpace(8)
	c.y += 3
	r, g, b := HexToRGB(Palette.Border)
	c.pdf.SetDrawColor(r, g, b)
	c.pdf.SetLineWidth(0.2)
	c.pdf.Line(c.cfg.Margin, c.y, c.cfg.PageWidth-c.cfg.Margin, c.y)
	c.y += 5
}

// =============================================================================
// Pagination Finalizer
// =============================================================================

// stampFooters walks every page in creation order and stamps two centered
// footer lines: the page number and a single finalize-time timestamp. The
// timestamp string is captured once, so it is identical on every page.
func (c *composer) stampFooters(generatedAt time.Time) {
	total := c.pdf.PageCount()
	stamp := "Generated on " + FormatTimestamp(generatedAt)

	c.setFont(8, false)
	c.setTextColor(Palette.TextMuted)

	for i := 1; i <= total; i++ {
		c.pdf.SetPage(i)
		c.pdf.SetXY(c.cfg.Margin, c.cfg.PageHeight-12)
		c.pdf.CellFormat(c.contentWidth, 4, fmt.Sprintf("Page %d of %d", i, total), "", 0, "C", false, 0, "")
		c.pdf.SetXY(c.cfg.Margin, c.cfg.PageHeight-8)
		c.pdf.CellFormat(c.contentWidth, 4, stamp, "", 0, "C", false, 0, "")
	}

	c.setTextColor(Palette.TextDark)
}
