package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pwalcher/defectdoc/internal/domain"
	"github.com/pwalcher/defectdoc/internal/report"
	"github.com/pwalcher/defectdoc/internal/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubGenerator returns a canned result and records the data it was
// asked to render.
type stubGenerator struct {
	result   report.Result
	err      error
	output   []byte
	lastData *domain.ReportData
}

func (g *stubGenerator) Generate(ctx context.Context, data *domain.ReportData, w io.Writer) (*report.Result, error) {
	g.lastData = data
	if g.err != nil {
		return nil, g.err
	}
	if _, err := w.Write(g.output); err != nil {
		return nil, err
	}
	r := g.result
	r.Bytes = int64(len(g.output))
	return &r, nil
}

func makePNGBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	for y := 0; y < 3; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// buildReportForm constructs a multipart request body with metadata
// fields and n aligned defect entries.
func buildReportForm(t *testing.T, fields map[string]string, defects int) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	for name, value := range fields {
		require.NoError(t, mw.WriteField(name, value))
	}

	photo := makePNGBytes(t)
	for i := 0; i < defects; i++ {
		require.NoError(t, mw.WriteField("defect_type", "Cracked Foundation"))
		require.NoError(t, mw.WriteField("defect_description", "Hairline crack along the east wall."))

		hdr := make(map[string][]string)
		hdr["Content-Disposition"] = []string{`form-data; name="defect_photo"; filename="photo.png"`}
		hdr["Content-Type"] = []string{"image/png"}
		part, err := mw.CreatePart(hdr)
		require.NoError(t, err)
		_, err = part.Write(photo)
		require.NoError(t, err)
	}

	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func validFields() map[string]string {
	return map[string]string{
		"company_name":    "Acme Inspections",
		"report_title":    "Inspection Report",
		"client_name":     "Jane Smith",
		"client_address":  "42 Elm Street",
		"inspection_date": "2024-03-15",
		"inspector_name":  "Pat Walker",
	}
}

func TestHandleGenerate_StreamsPDF(t *testing.T) {
	gen := &stubGenerator{
		result: report.Result{
			Filename:    "Inspection_Report_2024-03-15.pdf",
			Pages:       3,
			GeneratedAt: time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC),
		},
		output: []byte("%PDF-1.4 fake"),
	}
	h := NewReportHandler(gen, nil, testLogger(), 0)

	body, contentType := buildReportForm(t, validFields(), 2)
	req := httptest.NewRequest(http.MethodPost, "/reports", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.HandleGenerate(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "Inspection_Report_2024-03-15.pdf")
	assert.Equal(t, "%PDF-1.4 fake", rec.Body.String())

	require.NotNil(t, gen.lastData)
	assert.Equal(t, "Acme Inspections", gen.lastData.Metadata.CompanyName)
	require.Len(t, gen.lastData.Defects, 2)
	assert.Equal(t, int64(1), gen.lastData.Defects[0].ID)
	assert.Equal(t, int64(2), gen.lastData.Defects[1].ID)
	assert.Equal(t, "Cracked Foundation", gen.lastData.Defects[0].Type)
	assert.NotEmpty(t, gen.lastData.Defects[0].Image.Data)
}

func TestHandleGenerate_ValidationFailure(t *testing.T) {
	gen := &stubGenerator{output: []byte("unused")}
	h := NewReportHandler(gen, nil, testLogger(), 0)

	// Defect with an empty description must be rejected before generation
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for name, value := range validFields() {
		require.NoError(t, mw.WriteField(name, value))
	}
	require.NoError(t, mw.WriteField("defect_type", "Damp"))
	require.NoError(t, mw.WriteField("defect_description", "   "))
	hdr := make(map[string][]string)
	hdr["Content-Disposition"] = []string{`form-data; name="defect_photo"; filename="photo.png"`}
	hdr["Content-Type"] = []string{"image/png"}
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write(makePNGBytes(t))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/reports", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()

	h.HandleGenerate(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp JSONError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, domain.EINVALID, resp.Error.Code)
	assert.Contains(t, resp.Error.Fields, "defects[1].description")
}

func TestHandleGenerate_MisalignedDefectEntries(t *testing.T) {
	gen := &stubGenerator{output: []byte("unused")}
	h := NewReportHandler(gen, nil, testLogger(), 0)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for name, value := range validFields() {
		require.NoError(t, mw.WriteField(name, value))
	}
	// Two types but only one description and no photos
	require.NoError(t, mw.WriteField("defect_type", "Damp"))
	require.NoError(t, mw.WriteField("defect_type", "Mold"))
	require.NoError(t, mw.WriteField("defect_description", "Staining on ceiling."))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/reports", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()

	h.HandleGenerate(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp JSONError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error.Fields, "defect_description")
	assert.Contains(t, resp.Error.Fields, "defect_photo")
}

func TestHandleGenerate_NotMultipart(t *testing.T) {
	h := NewReportHandler(&stubGenerator{}, nil, testLogger(), 0)

	req := httptest.NewRequest(http.MethodPost, "/reports", bytes.NewBufferString(`{"json":true}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	h.HandleGenerate(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGenerate_GeneratorError(t *testing.T) {
	gen := &stubGenerator{err: assert.AnError}
	h := NewReportHandler(gen, nil, testLogger(), 0)

	body, contentType := buildReportForm(t, validFields(), 1)
	req := httptest.NewRequest(http.MethodPost, "/reports", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.HandleGenerate(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandleGenerate_Archive(t *testing.T) {
	store, err := storage.NewLocalStorage(storage.LocalConfig{BasePath: t.TempDir()})
	require.NoError(t, err)

	gen := &stubGenerator{
		result: report.Result{
			Filename:    "Inspection_Report_2024-03-15.pdf",
			Pages:       2,
			GeneratedAt: time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC),
		},
		output: []byte("%PDF-1.4 archived"),
	}
	h := NewReportHandler(gen, store, testLogger(), 0)

	body, contentType := buildReportForm(t, validFields(), 1)
	req := httptest.NewRequest(http.MethodPost, "/reports?archive=true", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.HandleGenerate(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp GenerateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Inspection_Report_2024-03-15.pdf", resp.Filename)
	assert.Equal(t, 2, resp.Pages)
	assert.Equal(t, 1, resp.DefectCount)
	assert.Equal(t, int64(len("%PDF-1.4 archived")), resp.SizeBytes)
	assert.NotEmpty(t, resp.ID)

	// Stored object is retrievable under the returned key
	rc, info, err := store.Get(context.Background(), resp.Key)
	require.NoError(t, err)
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	assert.Equal(t, "%PDF-1.4 archived", string(got))
	assert.Equal(t, "application/pdf", info.ContentType)
}

func TestHandleGenerate_ArchiveDisabled(t *testing.T) {
	gen := &stubGenerator{output: []byte("%PDF")}
	h := NewReportHandler(gen, nil, testLogger(), 0)

	body, contentType := buildReportForm(t, validFields(), 1)
	req := httptest.NewRequest(http.MethodPost, "/reports?archive=true", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.HandleGenerate(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleDownload(t *testing.T) {
	store, err := storage.NewLocalStorage(storage.LocalConfig{BasePath: t.TempDir()})
	require.NoError(t, err)

	gen := &stubGenerator{
		result: report.Result{Filename: "Inspection_Report_2024-03-15.pdf", Pages: 1},
		output: []byte("%PDF-1.4 stored"),
	}
	h := NewReportHandler(gen, store, testLogger(), 0)

	// Archive a report first
	body, contentType := buildReportForm(t, validFields(), 1)
	req := httptest.NewRequest(http.MethodPost, "/reports?archive=true", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.HandleGenerate(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created GenerateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	// Download through the route with path values
	mux := http.NewServeMux()
	mux.HandleFunc("GET /reports/{id}/{filename}", h.HandleDownload)

	dlReq := httptest.NewRequest(http.MethodGet, "/reports/"+created.ID+"/"+created.Filename, nil)
	dlRec := httptest.NewRecorder()
	mux.ServeHTTP(dlRec, dlReq)

	require.Equal(t, http.StatusOK, dlRec.Code)
	assert.Equal(t, "application/pdf", dlRec.Header().Get("Content-Type"))
	assert.Equal(t, "%PDF-1.4 stored", dlRec.Body.String())
}

func TestHandleDownload_NotFound(t *testing.T) {
	store, err := storage.NewLocalStorage(storage.LocalConfig{BasePath: t.TempDir()})
	require.NoError(t, err)
	h := NewReportHandler(&stubGenerator{}, store, testLogger(), 0)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /reports/{id}/{filename}", h.HandleDownload)

	req := httptest.NewRequest(http.MethodGet, "/reports/123e4567-e89b-12d3-a456-426614174000/missing.pdf", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleDownload_BadID(t *testing.T) {
	store, err := storage.NewLocalStorage(storage.LocalConfig{BasePath: t.TempDir()})
	require.NoError(t, err)
	h := NewReportHandler(&stubGenerator{}, store, testLogger(), 0)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /reports/{id}/{filename}", h.HandleDownload)

	req := httptest.NewRequest(http.MethodGet, "/reports/not-a-uuid/file.pdf", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
