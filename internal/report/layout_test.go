package report

import (
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestComposer(t *testing.T) *composer {
	t.Helper()
	c := newComposer(DefaultLayoutConfig(), NewDecodeProber(time.Second), testLogger())
	// Uncompressed streams let tests inspect page content as plain text.
	c.pdf.SetCompression(false)
	return c
}

func (c *composer) assertCursorInBounds(t *testing.T) {
	t.Helper()
	assert.GreaterOrEqual(t, c.y, c.cfg.Margin, "cursor above top margin")
	assert.LessOrEqual(t, c.y, c.cfg.PageHeight-c.cfg.Margin, "cursor below bottom margin")
}

func TestComposer_EnsureSpace(t *testing.T) {
	c := newTestComposer(t)

	// Plenty of room on a fresh page.
	broke := c.ensureSpace(50)
	assert.False(t, broke)
	assert.Equal(t, 1, c.pdf.PageCount())

	// Move the cursor near the bottom and ask for more than remains.
	c.y = c.cfg.PageHeight - c.cfg.Margin - 10
	broke = c.ensureSpace(20)
	assert.True(t, broke)
	assert.Equal(t, 2, c.pdf.PageCount())
	assert.Equal(t, c.cfg.Margin, c.y, "cursor resets to margin after a break")

	// Exactly fitting content does not break.
	c.y = c.cfg.PageHeight - c.cfg.Margin - 20
	broke = c.ensureSpace(20)
	assert.False(t, broke)
	assert.Equal(t, 2, c.pdf.PageCount())
}

func TestComposer_AddText_AdvancesCursor(t *testing.T) {
	c := newTestComposer(t)
	start := c.y

	c.addText("One short line.", 10, false)

	lh := c.lineHeight(10)
	assert.InDelta(t, start+lh+2, c.y, 0.001)
	c.assertCursorInBounds(t)
}

func TestComposer_AddText_PaginatesMidBlock(t *testing.T) {
	c := newTestComposer(t)

	// A block long enough to cross several page boundaries.
	long := strings.Repeat("The ridge flashing is lifted and the underlying membrane is exposed to weather. ", 200)
	c.addText(long, 10, false)

	assert.Greater(t, c.pdf.PageCount(), 1, "long text must paginate")
	c.assertCursorInBounds(t)
}

func TestComposer_AddText_PageCountMonotonic(t *testing.T) {
	c := newTestComposer(t)

	prev := c.pdf.PageCount()
	for i := 0; i < 40; i++ {
		c.addText("A repeated paragraph of moderate length used to walk the cursor steadily down each page.", 11, i%2 == 0)
		count := c.pdf.PageCount()
		assert.GreaterOrEqual(t, count, prev, "page count never decreases")
		prev = count
		c.assertCursorInBounds(t)
	}
}

func TestComposer_AddText_NoContentLossOnBreak(t *testing.T) {
	// The same block wrapped on a constrained page and on a page tall
	// enough to hold everything must produce identical wrapped lines.
	text := strings.Repeat("Cracked mortar joints were observed along the parapet wall on the north elevation. ", 60)

	constrained := newTestComposer(t)
	constrained.setFont(10, false)
	wantLines := constrained.pdf.SplitText(text, constrained.contentWidth)

	constrained.addText(text, 10, false)
	require.Greater(t, constrained.pdf.PageCount(), 1)

	unbounded := newComposer(LayoutConfig{
		PageWidth:        210,
		PageHeight:       100000,
		Margin:           15,
		LineHeightFactor: 0.5,
		MaxImageHeight:   80,
		ProbeTimeout:     time.Second,
	}, NewDecodeProber(time.Second), testLogger())
	unbounded.setFont(10, false)
	gotLines := unbounded.pdf.SplitText(text, unbounded.contentWidth)

	assert.Equal(t, wantLines, gotLines, "wrapping is independent of page height")
}

func TestComposer_SectionHeader(t *testing.T) {
	c := newTestComposer(t)
	start := c.y

	c.sectionHeader("Inspection Details")

	// 5 lead-in + 12 advance past the banner.
	assert.InDelta(t, start+17, c.y, 0.001)
	assert.Equal(t, 1, c.pdf.PageCount())
}

func TestComposer_SectionHeader_BreaksNearPageBottom(t *testing.T) {
	c := newTestComposer(t)
	c.y = c.cfg.PageHeight - c.cfg.Margin - 5

	c.sectionHeader("General Disclaimer")

	assert.Equal(t, 2, c.pdf.PageCount())
	assert.InDelta(t, c.cfg.Margin+17, c.y, 0.001)
}

func TestComposer_LabelValue_SkipsEmptyValue(t *testing.T) {
	c := newTestComposer(t)
	start := c.y

	c.labelValue("Client", "")
	assert.Equal(t, start, c.y, "empty values emit nothing")

	c.labelValue("Client", "R. Hollis")
	assert.Greater(t, c.y, start)
}
