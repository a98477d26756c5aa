// Package domain contains core business types and interfaces.
//
// This file defines the report model handed to the layout engine: the
// report metadata captured from the inspection form and the ordered list
// of defect records to render.
package domain

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Report Metadata
// =============================================================================

// ReportMetadata holds the header fields of an inspection report.
//
// All fields are optional strings. Absent fields are either omitted from
// the layout or rendered as "N/A", depending on the section. The metadata
// is immutable for the duration of one generation run.
type ReportMetadata struct {
	// Company/branding
	CompanyName  string // Inspection company name
	CompanyPhone string // Contact phone
	CompanyEmail string // Contact email
	ReportTitle  string // Report title shown under the branding block

	// Client & property
	ClientName    string // Client name
	ClientAddress string // Property address (may span multiple lines)

	// Inspection details
	InspectionDate       string // Date in YYYY-MM-DD form, as captured by the form
	InspectorName        string // Inspector's display name
	InspectorCredentials string // Professional credentials/license text
	Attendance           string // Who attended the inspection
	Occupancy            string // Occupancy state of the property
	BuildingType         string // Building type
	WeatherCondition     string // Weather during inspection

	// Disclaimer
	Disclaimer string // Free-form disclaimer text
}

// ContactLine returns the company phone and email joined by a separator.
// Returns an empty string when both are absent, in which case the contact
// line is omitted from the layout entirely.
func (m *ReportMetadata) ContactLine() string {
	parts := make([]string, 0, 2)
	if m.CompanyPhone != "" {
		parts = append(parts, m.CompanyPhone)
	}
	if m.CompanyEmail != "" {
		parts = append(parts, m.CompanyEmail)
	}
	return strings.Join(parts, " | ")
}

// HasContact returns true if at least one contact field is set.
func (m *ReportMetadata) HasContact() bool {
	return m.CompanyPhone != "" || m.CompanyEmail != ""
}

// =============================================================================
// Defect Records
// =============================================================================

// ImagePayload holds the raw photo bytes attached to a defect along with
// the format declared by the uploader ("jpeg" or "png").
type ImagePayload struct {
	Data   []byte
	Format string
}

// IsEmpty returns true if no image data is present.
func (p ImagePayload) IsEmpty() bool {
	return len(p.Data) == 0
}

// DefectRecord is one reported issue: a category, a photo, and a free-text
// description. IDs are assigned monotonically by the caller and never
// reused within a session.
//
// The layout engine assumes records reaching it satisfy Validate; it is
// still required to degrade gracefully when the image payload fails to
// decode.
type DefectRecord struct {
	ID          int64        // Monotonic identifier assigned by the caller
	Type        string       // Defect category (required)
	Description string       // Free-text description (required)
	Image       ImagePayload // Photo payload (required, decodable)
}

// Validate checks the caller-side invariants on a defect record.
// Returns a ValidationError describing every missing field.
func (d *DefectRecord) Validate() error {
	var fields map[string]string
	add := func(field, msg string) {
		if fields == nil {
			fields = make(map[string]string)
		}
		fields[field] = msg
	}

	if strings.TrimSpace(d.Type) == "" {
		add("type", "Defect type is required")
	}
	if strings.TrimSpace(d.Description) == "" {
		add("description", "Defect description is required")
	}
	if d.Image.IsEmpty() {
		add("image", "Defect photo is required")
	}

	if fields == nil {
		return nil
	}
	return &ValidationError{Op: "defect.validate", Fields: fields}
}

// =============================================================================
// Report Data Aggregate (for generation)
// =============================================================================

// ReportData aggregates everything one generation run consumes: the header
// metadata and the ordered defect list. It is constructed entirely by the
// caller and passed into the generator; the engine holds no state across
// calls.
type ReportData struct {
	Metadata ReportMetadata
	Defects  []DefectRecord
}

// TotalDefects returns the number of defect records.
func (d *ReportData) TotalDefects() int {
	return len(d.Defects)
}

// Validate runs the defect-record invariants over the whole list.
// Field keys are prefixed with the 1-based defect position.
func (d *ReportData) Validate() error {
	var err error
	for i := range d.Defects {
		derr := d.Defects[i].Validate()
		if derr == nil {
			continue
		}
		var ve *ValidationError
		if errors.As(derr, &ve) {
			for field, msg := range ve.Fields {
				key := "defects[" + strconv.Itoa(i+1) + "]." + field
				err = AddFieldError(err, key, msg)
			}
		}
	}
	return err
}

// =============================================================================
// Generated Report
// =============================================================================

// GeneratedReport describes a finished report artifact.
type GeneratedReport struct {
	ID          uuid.UUID // Run identifier, used for storage keys and log correlation
	Filename    string    // Derived file name (Inspection_Report_<date>.pdf)
	Pages       int       // Total page count
	Size        int64     // Artifact size in bytes
	DefectCount int       // Number of defects rendered
	GeneratedAt time.Time // Finalize-time timestamp stamped on every footer
}
