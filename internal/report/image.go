package report

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"strings"
	"time"

	// Defect photos arrive as JPEG or PNG.
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	"github.com/go-pdf/fpdf"

	"github.com/pwalcher/defectdoc/internal/domain"
)

// imagePlaceholderText is rendered inline when a defect photo cannot be
// measured or embedded. The layout continues; one bad image never aborts
// the document.
const imagePlaceholderText = "[Image could not be loaded]"

// maxEmbedPixels bounds the pixel width/height of embedded photos. Larger
// photos are downscaled before embedding to keep the artifact size sane;
// placement geometry is unaffected because aspect ratio is preserved.
const maxEmbedPixels = 2000

// embedJPEGQuality is the re-encode quality for downscaled photos.
const embedJPEGQuality = 85

// =============================================================================
// Dimension Probe
// =============================================================================

// Dimensions is the intrinsic pixel size of an encoded image.
type Dimensions struct {
	Width  int
	Height int
	Format string // "jpeg" or "png", as detected from the payload
}

// DimensionProber discovers the intrinsic dimensions of an encoded image.
//
// Probe resolves either way: it returns dimensions or an error within the
// prober's timeout, never stalls. Probes are issued strictly sequentially
// by the composer; the next defect's image is not probed until the current
// defect's placement is fully resolved.
type DimensionProber interface {
	Probe(ctx context.Context, data []byte) (Dimensions, error)
}

// decodeProber probes by decoding the image header off the calling
// goroutine, bounded by a timeout.
type decodeProber struct {
	timeout time.Duration
}

// NewDecodeProber creates a DimensionProber backed by image.DecodeConfig.
func NewDecodeProber(timeout time.Duration) DimensionProber {
	return &decodeProber{timeout: timeout}
}

func (p *decodeProber) Probe(ctx context.Context, data []byte) (Dimensions, error) {
	type outcome struct {
		dim Dimensions
		err error
	}
	ch := make(chan outcome, 1)

	go func() {
		cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			ch <- outcome{err: fmt.Errorf("decode image dimensions: %w", err)}
			return
		}
		ch <- outcome{dim: Dimensions{Width: cfg.Width, Height: cfg.Height, Format: format}}
	}()

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	select {
	case o := <-ch:
		return o.dim, o.err
	case <-ctx.Done():
		return Dimensions{}, ctx.Err()
	case <-timer.C:
		return Dimensions{}, fmt.Errorf("image probe timed out after %s", p.timeout)
	}
}

// =============================================================================
// Scaling
// =============================================================================

// fitBox scales (w, h) to fit the bounding box (maxW, maxH) preserving
// aspect ratio. Upscaling small images is permitted: these are fit-to-box
// semantics, not shrink-only.
func fitBox(w, h, maxW, maxH float64) (float64, float64) {
	if w <= 0 || h <= 0 {
		return 0, 0
	}
	ratio := maxW / w
	if r := maxH / h; r < ratio {
		ratio = r
	}
	return w * ratio, h * ratio
}

// =============================================================================
// Embedding
// =============================================================================

// fpdfImageType maps a detected image format to the type tag fpdf expects.
func fpdfImageType(format string) string {
	switch strings.ToLower(format) {
	case "jpeg", "jpg":
		return "JPEG"
	case "png":
		return "PNG"
	default:
		return strings.ToUpper(format)
	}
}

// normalizePhoto returns the bytes to embed for a defect photo. Oversized
// photos are downscaled and re-encoded as JPEG; everything else is embedded
// as-is.
func normalizePhoto(payload domain.ImagePayload, dim Dimensions) ([]byte, string, error) {
	if dim.Width <= maxEmbedPixels && dim.Height <= maxEmbedPixels {
		return payload.Data, fpdfImageType(dim.Format), nil
	}

	img, err := imaging.Decode(bytes.NewReader(payload.Data))
	if err != nil {
		return nil, "", fmt.Errorf("decode photo: %w", err)
	}
	resized := imaging.Fit(img, maxEmbedPixels, maxEmbedPixels, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, imaging.JPEG, imaging.JPEGQuality(embedJPEGQuality)); err != nil {
		return nil, "", fmt.Errorf("encode photo: %w", err)
	}
	return buf.Bytes(), "JPEG", nil
}

// =============================================================================
// Placement
// =============================================================================

// placeDefectImage probes the photo's intrinsic dimensions, scales it into
// the content-width x MaxImageHeight box, and draws it at the cursor.
//
// The defect's heading must stay attached to its image: when the scaled
// image does not fit the remaining page, a new page is started and the
// heading is reprinted with a "(continued)" suffix before placement.
//
// A photo that cannot be measured or embedded degrades to an inline
// placeholder notice; the run continues.
func (c *composer) placeDefectImage(ctx context.Context, defect domain.DefectRecord, heading string) {
	dim, err := c.prober.Probe(ctx, defect.Image.Data)
	if err != nil {
		c.logger.Warn("defect photo could not be measured",
			"defect_id", defect.ID,
			"error", err,
		)
		c.imagePlaceholder()
		return
	}

	scaledW, scaledH := fitBox(float64(dim.Width), float64(dim.Height), c.contentWidth, c.cfg.MaxImageHeight)

	if c.y+scaledH+20 > c.cfg.PageHeight-c.cfg.Margin {
		c.newPage()
		c.defectHeading(heading + " (continued)")
	}

	data, imageType, err := normalizePhoto(defect.Image, dim)
	if err != nil {
		c.logger.Warn("defect photo could not be embedded",
			"defect_id", defect.ID,
			"error", err,
		)
		c.imagePlaceholder()
		return
	}

	name := fmt.Sprintf("defect-%d", defect.ID)
	opts := fpdf.ImageOptions{ImageType: imageType, ReadDpi: false}
	c.pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
	c.pdf.ImageOptions(name, c.cfg.Margin, c.y, scaledW, scaledH, false, opts, 0, "")
	c.y += scaledH + 5
}

// imagePlaceholder emits the one-line error notice in place of an image and
// advances the cursor by a fixed 8mm.
func (c *composer) imagePlaceholder() {
	c.imageFailures++
	c.setFont(10, false)
	c.setTextColor(Palette.Error)
	c.pdf.SetXY(c.cfg.Margin, c.y)
	c.pdf.CellFormat(c.contentWidth, 5, imagePlaceholderText, "", 0, "L", false, 0, "")
	c.y += 8
	c.setTextColor(Palette.TextDark)
}
