package storage

import (
	"path/filepath"
	"strings"
)

// contentTypes maps file extensions to MIME types for the artifact
// formats this service handles.
var contentTypes = map[string]string{
	".pdf":  "application/pdf",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".json": "application/json",
}

// DetectContentType returns the MIME type for a filename based on its
// extension. Returns "application/octet-stream" for unknown extensions.
func DetectContentType(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	return "application/octet-stream"
}

// AllowedImageTypes lists the image MIME types accepted for defect photos.
var AllowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// IsAllowedImageType reports whether the MIME type is an accepted
// defect photo format.
func IsAllowedImageType(contentType string) bool {
	base := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	return AllowedImageTypes[base]
}

// IsPDF reports whether the MIME type is a PDF document.
func IsPDF(contentType string) bool {
	base := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	return base == "application/pdf"
}
