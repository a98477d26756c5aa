package report

import (
	"log/slog"
	"time"

	"github.com/go-pdf/fpdf"
)

// =============================================================================
// Layout Configuration
// =============================================================================

// LayoutConfig holds the page geometry and the visual constants of the
// layout engine. All lengths are millimetres on A4 portrait.
type LayoutConfig struct {
	PageWidth  float64
	PageHeight float64
	Margin     float64

	// LineHeightFactor scales font size into line height. The 0.5 default
	// is a fixed, font-proportional heuristic rather than true font-metric
	// leading; it is kept deliberately simple so output stays reproducible.
	LineHeightFactor float64

	// MaxImageHeight bounds the scaled height of defect photos.
	MaxImageHeight float64

	// ProbeTimeout bounds the intrinsic-dimension probe for one image.
	ProbeTimeout time.Duration
}

// DefaultLayoutConfig returns the standard A4 geometry.
func DefaultLayoutConfig() LayoutConfig {
	return LayoutConfig{
		PageWidth:        210.0,
		PageHeight:       297.0,
		Margin:           15.0,
		LineHeightFactor: 0.5,
		MaxImageHeight:   80.0,
		ProbeTimeout:     5 * time.Second,
	}
}

// =============================================================================
// Composer (cursor primitive + text flow)
// =============================================================================

// composer threads the layout state of one generation run: the render
// target, the vertical cursor, and the accumulated pages. It is created
// fresh per run and discarded afterwards.
type composer struct {
	pdf          *fpdf.Fpdf
	cfg          LayoutConfig
	contentWidth float64
	y            float64

	prober        DimensionProber
	logger        *slog.Logger
	imageFailures int
}

func newComposer(cfg LayoutConfig, prober DimensionProber, logger *slog.Logger) *composer {
	pdf := fpdf.New("P", "mm", "A4", "")
	// Page breaks are decided by ensureSpace, never by fpdf.
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	c := &composer{
		pdf:          pdf,
		cfg:          cfg,
		contentWidth: cfg.PageWidth - 2*cfg.Margin,
		y:            cfg.Margin,
		prober:       prober,
		logger:       logger,
	}
	c.setTextColor(Palette.TextDark)
	return c
}

// ensureSpace allocates a new page and resets the cursor to the top margin
// when the next block of the given height would overrun the bottom margin.
// Returns true when a page break occurred.
func (c *composer) ensureSpace(required float64) bool {
	if c.y+required > c.cfg.PageHeight-c.cfg.Margin {
		c.newPage()
		return true
	}
	return false
}

// newPage allocates a fresh page and resets the cursor.
func (c *composer) newPage() {
	c.pdf.AddPage()
	c.y = c.cfg.Margin
}

func (c *composer) setFont(size float64, bold bool) {
	style := ""
	if bold {
		style = "B"
	}
	c.pdf.SetFont("Helvetica", style, size)
}

func (c *composer) setTextColor(hex string) {
	r, g, b := HexToRGB(hex)
	c.pdf.SetTextColor(r, g, b)
}

func (c *composer) lineHeight(size float64) float64 {
	return size * c.cfg.LineHeightFactor
}

// addText wraps content to the content width using the active font metrics
// and writes the lines sequentially, paginating mid-block if necessary.
// Splitting a block across a page boundary produces exactly the same
// wrapped lines as an unbounded page would.
func (c *composer) addText(content string, size float64, bold bool) {
	if content == "" {
		return
	}
	c.setFont(size, bold)
	lines := c.pdf.SplitText(content, c.contentWidth)
	lh := c.lineHeight(size)
	for _, line := range lines {
		c.ensureSpace(lh + 2)
		c.pdf.SetXY(c.cfg.Margin, c.y)
		c.pdf.CellFormat(c.contentWidth, lh, line, "", 0, "L", false, 0, "")
		c.y += lh
	}
	c.y += 2
}

// addCenteredText is addText with centered alignment, used by the branding
// block.
func (c *composer) addCenteredText(content string, size float64, bold bool) {
	if content == "" {
		return
	}
	c.setFont(size, bold)
	lines := c.pdf.SplitText(content, c.contentWidth)
	lh := c.lineHeight(size)
	for _, line := range lines {
		c.ensureSpace(lh + 2)
		c.pdf.SetXY(c.cfg.Margin, c.y)
		c.pdf.CellFormat(c.contentWidth, lh, line, "", 0, "C", false, 0, "")
		c.y += lh
	}
	c.y += 2
}

// sectionHeader paints a shaded banner with a bold title. This is a
// fixed-height, non-wrapping block; titles are assumed short.
func (c *composer) sectionHeader(title string) {
	c.ensureSpace(20)
	c.y += 5

	r, g, b := HexToRGB(Palette.BannerFill)
	c.pdf.SetFillColor(r, g, b)
	c.pdf.Rect(c.cfg.Margin, c.y, c.contentWidth, 10, "F")

	c.setFont(12, true)
	c.setTextColor(Palette.Slate)
	c.pdf.SetXY(c.cfg.Margin+3, c.y+2)
	c.pdf.CellFormat(c.contentWidth-3, 6, title, "", 0, "L", false, 0, "")

	c.y += 12
	c.setTextColor(Palette.TextDark)
}

// labelValue writes a bold label and a wrapped value on the same baseline.
// Nothing is emitted when the value is empty.
func (c *composer) labelValue(label, value string) {
	if value == "" {
		return
	}

	const labelWidth = 45.0

	c.setFont(10, false)
	valueWidth := c.contentWidth - labelWidth
	lines := c.pdf.SplitText(value, valueWidth)
	lh := c.lineHeight(10)

	for i, line := range lines {
		c.ensureSpace(lh + 2)
		if i == 0 {
			c.setFont(10, true)
			c.pdf.SetXY(c.cfg.Margin, c.y)
			c.pdf.CellFormat(labelWidth, lh, label+":", "", 0, "L", false, 0, "")
		}
		c.setFont(10, false)
		c.pdf.SetXY(c.cfg.Margin+labelWidth, c.y)
		c.pdf.CellFormat(valueWidth, lh, line, "", 0, "L", false, 0, "")
		c.y += lh
	}
	c.y += 2
}

// horizontalRule draws a full-width rule and advances the cursor.
func (c *composer) horizontalRule() {
	c.ensureSpace(6)
	c.y += 2
	r, g, b := HexToRGB(Palette.Border)
	c.pdf.SetDrawColor(r, g, b)
	c.pdf.SetLineWidth(0.4)
	c.pdf.Line(c.cfg.Margin, c.y, c.cfg.PageWidth-c.cfg.Margin, c.y)
	c.y += 4
}
