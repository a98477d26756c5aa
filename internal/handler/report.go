package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pwalcher/defectdoc/internal/domain"
	"github.com/pwalcher/defectdoc/internal/metrics"
	"github.com/pwalcher/defectdoc/internal/report"
	"github.com/pwalcher/defectdoc/internal/storage"
)

// maxPhotoBytes caps the size of a single defect photo read into memory.
const maxPhotoBytes = 20 << 20 // 20 MB

// ReportHandler serves report generation and retrieval endpoints.
type ReportHandler struct {
	generator      report.Generator
	store          storage.Storage
	logger         *slog.Logger
	maxUploadBytes int64
}

// NewReportHandler creates a report handler. store may be nil, in which
// case archiving is disabled and reports are only streamed back.
func NewReportHandler(generator report.Generator, store storage.Storage, logger *slog.Logger, maxUploadBytes int64) *ReportHandler {
	return &ReportHandler{
		generator:      generator,
		store:          store,
		logger:         logger,
		maxUploadBytes: maxUploadBytes,
	}
}

// GenerateResponse is the JSON body returned when a report is archived
// instead of streamed.
type GenerateResponse struct {
	ID            string    `json:"id"`
	Filename      string    `json:"filename"`
	Key           string    `json:"key"`
	Pages         int       `json:"pages"`
	SizeBytes     int64     `json:"size_bytes"`
	DefectCount   int       `json:"defect_count"`
	ImageFailures int       `json:"image_failures"`
	GeneratedAt   time.Time `json:"generated_at"`
}

// HandleGenerate handles POST /reports.
//
// Accepts a multipart form with report metadata fields plus aligned
// defect_type / defect_description / defect_photo entries. By default
// the generated PDF is streamed back as an attachment; with
// ?archive=true the PDF is stored and a JSON summary is returned.
func (h *ReportHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			ErrorResponse(w, r, h.logger, domain.TooLarge("report.generate",
				fmt.Sprintf("Request body exceeds the %d byte upload limit", h.maxUploadBytes)))
			return
		}
		ErrorResponse(w, r, h.logger, domain.Invalid("report.generate", "Request must be multipart/form-data"))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	data, err := h.parseReportForm(r)
	if err != nil {
		ValidationErrorResponse(w, r, h.logger, err)
		return
	}

	if err := data.Validate(); err != nil {
		ValidationErrorResponse(w, r, h.logger, err)
		return
	}

	start := time.Now()
	var buf bytes.Buffer
	result, err := h.generator.Generate(r.Context(), data, &buf)
	if err != nil {
		metrics.ReportsGenerated.WithLabelValues("error").Inc()
		InternalErrorResponse(w, r, h.logger, err)
		return
	}

	metrics.ReportsGenerated.WithLabelValues("success").Inc()
	metrics.ReportGenerationDuration.Observe(time.Since(start).Seconds())
	metrics.ReportPages.Observe(float64(result.Pages))
	metrics.ReportDefects.Observe(float64(data.TotalDefects()))
	metrics.ImagesPlaced.Add(float64(data.TotalDefects() - result.ImageFailures))
	metrics.ImageFailures.Add(float64(result.ImageFailures))

	h.logger.Info("report generated",
		"filename", result.Filename,
		"pages", result.Pages,
		"bytes", result.Bytes,
		"defects", data.TotalDefects(),
		"image_failures", result.ImageFailures,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if r.URL.Query().Get("archive") == "true" {
		h.archiveReport(w, r, result, data.TotalDefects(), buf.Bytes())
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// archiveReport stores the generated PDF and responds with a JSON summary.
func (h *ReportHandler) archiveReport(w http.ResponseWriter, r *http.Request, result *report.Result, defectCount int, pdf []byte) {
	if h.store == nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("report.archive", "Archiving is not enabled on this server"))
		return
	}

	rep := domain.GeneratedReport{
		ID:          uuid.New(),
		Filename:    result.Filename,
		Pages:       result.Pages,
		Size:        result.Bytes,
		DefectCount: defectCount,
		GeneratedAt: result.GeneratedAt,
	}
	key := storage.ReportKey(rep.ID, rep.Filename)

	err := h.store.Put(r.Context(), key, bytes.NewReader(pdf), storage.PutOptions{
		ContentType: "application/pdf",
	})
	if err != nil {
		metrics.ReportsArchived.WithLabelValues("error").Inc()
		InternalErrorResponse(w, r, h.logger, err)
		return
	}
	metrics.ReportsArchived.WithLabelValues("success").Inc()

	h.logger.Info("report archived", "id", rep.ID, "key", key)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(GenerateResponse{
		ID:            rep.ID.String(),
		Filename:      rep.Filename,
		Key:           key,
		Pages:         rep.Pages,
		SizeBytes:     rep.Size,
		DefectCount:   rep.DefectCount,
		ImageFailures: result.ImageFailures,
		GeneratedAt:   rep.GeneratedAt,
	})
}

// HandleDownload handles GET /reports/{id}/{filename}.
// Streams a previously archived report from storage.
func (h *ReportHandler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		NotFoundResponse(w, r, h.logger)
		return
	}

	idStr := r.PathValue("id")
	filename := r.PathValue("filename")

	id, err := uuid.Parse(idStr)
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("report.download", "Invalid report ID"))
		return
	}

	key := storage.ReportKey(id, filename)
	rc, info, err := h.store.Get(r.Context(), key)
	if err != nil {
		if storage.IsNotFound(err) {
			NotFoundResponse(w, r, h.logger)
			return
		}
		InternalErrorResponse(w, r, h.logger, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", info.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, rc)
}

// parseReportForm builds a ReportData from the parsed multipart form.
// Defect records are assembled positionally from the defect_type,
// defect_description and defect_photo entries.
func (h *ReportHandler) parseReportForm(r *http.Request) (*domain.ReportData, error) {
	form := r.MultipartForm

	field := func(name string) string {
		vals := form.Value[name]
		if len(vals) == 0 {
			return ""
		}
		return vals[0]
	}

	data := &domain.ReportData{
		Metadata: domain.ReportMetadata{
			CompanyName:          field("company_name"),
			CompanyPhone:         field("company_phone"),
			CompanyEmail:         field("company_email"),
			ReportTitle:          field("report_title"),
			ClientName:           field("client_name"),
			ClientAddress:        field("client_address"),
			InspectionDate:       field("inspection_date"),
			InspectorName:        field("inspector_name"),
			InspectorCredentials: field("inspector_credentials"),
			Attendance:           field("attendance"),
			Occupancy:            field("occupancy"),
			BuildingType:         field("building_type"),
			WeatherCondition:     field("weather_condition"),
			Disclaimer:           field("disclaimer"),
		},
	}

	types := form.Value["defect_type"]
	descriptions := form.Value["defect_description"]
	photos := form.File["defect_photo"]

	ve := &domain.ValidationError{Op: "report.parse", Fields: map[string]string{}}
	if len(descriptions) != len(types) {
		ve.Fields["defect_description"] = "Must provide one description per defect type"
	}
	if len(photos) != len(types) {
		ve.Fields["defect_photo"] = "Must provide one photo per defect type"
	}
	if len(ve.Fields) > 0 {
		return nil, ve
	}

	for i, defectType := range types {
		img, err := readPhoto(photos[i])
		if err != nil {
			ve.Fields["defects["+strconv.Itoa(i+1)+"].photo"] = err.Error()
			continue
		}

		data.Defects = append(data.Defects, domain.DefectRecord{
			ID:          int64(i + 1),
			Type:        defectType,
			Description: descriptions[i],
			Image:       img,
		})
	}
	if len(ve.Fields) > 0 {
		return nil, ve
	}

	return data, nil
}

// readPhoto loads one uploaded defect photo into memory.
func readPhoto(fh *multipart.FileHeader) (domain.ImagePayload, error) {
	if fh.Size > maxPhotoBytes {
		return domain.ImagePayload{}, fmt.Errorf("photo exceeds %d byte limit", maxPhotoBytes)
	}

	contentType := fh.Header.Get("Content-Type")
	if contentType != "" && !storage.IsAllowedImageType(contentType) {
		return domain.ImagePayload{}, fmt.Errorf("unsupported photo type %q", contentType)
	}

	f, err := fh.Open()
	if err != nil {
		return domain.ImagePayload{}, fmt.Errorf("open photo: %w", err)
	}
	defer f.Close()

	d, err := io.ReadAll(io.LimitReader(f, maxPhotoBytes+1))
	if err != nil {
		return domain.ImagePayload{}, fmt.Errorf("read photo: %w", err)
	}
	if int64(len(d)) > maxPhotoBytes {
		return domain.ImagePayload{}, fmt.Errorf("photo exceeds %d byte limit", maxPhotoBytes)
	}

	return domain.ImagePayload{Data: d, Format: imageFormat(contentType)}, nil
}

// imageFormat maps an upload Content-Type to the payload format tag.
func imageFormat(contentType string) string {
	switch strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0])) {
	case "image/jpeg":
		return "jpeg"
	case "image/png":
		return "png"
	default:
		return ""
	}
}
