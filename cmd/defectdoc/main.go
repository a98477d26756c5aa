// Command defectdoc generates an inspection report PDF from a JSON
// manifest, without running the HTTP service.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/pwalcher/defectdoc/internal"
	"github.com/pwalcher/defectdoc/internal/domain"
	"github.com/pwalcher/defectdoc/internal/report"
)

func main() {
	cmd := &cli.Command{
		Name:  "defectdoc",
		Usage: "Generate defect inspection report PDFs",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "manifest",
				Aliases:  []string{"m"},
				Usage:    "Report manifest JSON file path",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "output-dir",
				Aliases: []string{"o"},
				Usage:   "Directory to write the PDF into (default: current directory)",
				Value:   ".",
			},
			&cli.FloatFlag{
				Name:  "max-image-height",
				Usage: "Cap on rendered photo height in millimetres",
				Value: 80,
			},
		},
		Action: generateReport,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

// manifest mirrors the multipart form the HTTP service accepts. Defect
// photos are referenced by file path, relative to the manifest.
type manifest struct {
	CompanyName          string `json:"company_name"`
	CompanyPhone         string `json:"company_phone"`
	CompanyEmail         string `json:"company_email"`
	ReportTitle          string `json:"report_title"`
	ClientName           string `json:"client_name"`
	ClientAddress        string `json:"client_address"`
	InspectionDate       string `json:"inspection_date"`
	InspectorName        string `json:"inspector_name"`
	InspectorCredentials string `json:"inspector_credentials"`
	Attendance           string `json:"attendance"`
	Occupancy            string `json:"occupancy"`
	BuildingType         string `json:"building_type"`
	WeatherCondition     string `json:"weather_condition"`
	Disclaimer           string `json:"disclaimer"`

	Defects []manifestDefect `json:"defects"`
}

type manifestDefect struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Photo       string `json:"photo"`
}

func generateReport(ctx context.Context, cmd *cli.Command) error {
	manifestPath := cmd.String("manifest")
	outputDir := cmd.String("output-dir")

	data, err := loadManifest(manifestPath)
	if err != nil {
		return err
	}

	if err := data.Validate(); err != nil {
		return fmt.Errorf("invalid manifest: %w", err)
	}

	logger := internal.NewLogger(os.Stderr, "development", "info")

	layout := report.DefaultLayoutConfig()
	layout.MaxImageHeight = cmd.Float("max-image-height")
	generator := report.NewPDFGeneratorWithConfig(layout, logger)

	// Render into memory first so a failed run never leaves a partial file
	tmp, err := os.CreateTemp(outputDir, ".defectdoc-*")
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	tmpPath := tmp.Name()

	result, err := generator.Generate(ctx, data, tmp)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("generate report: %w", err)
	}

	outPath := filepath.Join(outputDir, result.Filename)
	if err := os.Rename(tmpPath, outPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("write output file: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Wrote %s (%d pages, %d defects", outPath, result.Pages, data.TotalDefects())
	if result.ImageFailures > 0 {
		fmt.Fprintf(os.Stderr, ", %d photo(s) replaced with placeholders", result.ImageFailures)
	}
	fmt.Fprintln(os.Stderr, ")")

	return nil
}

// loadManifest reads the manifest and resolves photo paths into memory.
func loadManifest(path string) (*domain.ReportData, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	baseDir := filepath.Dir(path)

	data := &domain.ReportData{
		Metadata: domain.ReportMetadata{
			CompanyName:          m.CompanyName,
			CompanyPhone:         m.CompanyPhone,
			CompanyEmail:         m.CompanyEmail,
			ReportTitle:          m.ReportTitle,
			ClientName:           m.ClientName,
			ClientAddress:        m.ClientAddress,
			InspectionDate:       m.InspectionDate,
			InspectorName:        m.InspectorName,
			InspectorCredentials: m.InspectorCredentials,
			Attendance:           m.Attendance,
			Occupancy:            m.Occupancy,
			BuildingType:         m.BuildingType,
			WeatherCondition:     m.WeatherCondition,
			Disclaimer:           m.Disclaimer,
		},
	}

	for i, d := range m.Defects {
		photoPath := d.Photo
		if photoPath != "" && !filepath.IsAbs(photoPath) {
			photoPath = filepath.Join(baseDir, photoPath)
		}

		var payload domain.ImagePayload
		if photoPath != "" {
			b, err := os.ReadFile(photoPath)
			if err != nil {
				return nil, fmt.Errorf("defect %d: read photo %s: %w", i+1, d.Photo, err)
			}
			payload = domain.ImagePayload{Data: b}
		}

		data.Defects = append(data.Defects, domain.DefectRecord{
			ID:          int64(i + 1),
			Type:        d.Type,
			Description: d.Description,
			Image:       payload,
		})
	}

	return data, nil
}
