package storage

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocalStorage(t *testing.T) *LocalStorage {
	t.Helper()
	s, err := NewLocalStorage(LocalConfig{
		BasePath: t.TempDir(),
		BaseURL:  "http://localhost:8080/files",
	})
	require.NoError(t, err)
	return s
}

func TestLocalStorage_PutGetRoundtrip(t *testing.T) {
	s := newTestLocalStorage(t)
	ctx := context.Background()

	content := []byte("%PDF-1.4 test content")
	key := "reports/abc/Inspection_Report_2024-03-15.pdf"

	err := s.Put(ctx, key, bytes.NewReader(content), PutOptions{ContentType: "application/pdf"})
	require.NoError(t, err)

	rc, info, err := s.Get(ctx, key)
	require.NoError(t, err)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, content, got)
	assert.Equal(t, key, info.Key)
	assert.Equal(t, int64(len(content)), info.Size)
	assert.Equal(t, "application/pdf", info.ContentType)
}

func TestLocalStorage_GetMissing(t *testing.T) {
	s := newTestLocalStorage(t)

	_, _, err := s.Get(context.Background(), "reports/missing/file.pdf")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestLocalStorage_OverwriteFlag(t *testing.T) {
	s := newTestLocalStorage(t)
	ctx := context.Background()
	key := "reports/x/report.pdf"

	require.NoError(t, s.Put(ctx, key, strings.NewReader("first"), PutOptions{}))

	// Second put without overwrite must fail
	err := s.Put(ctx, key, strings.NewReader("second"), PutOptions{})
	require.Error(t, err)
	assert.True(t, IsKeyExists(err))

	// With overwrite it succeeds and replaces the content
	require.NoError(t, s.Put(ctx, key, strings.NewReader("second"), PutOptions{Overwrite: true}))

	rc, _, err := s.Get(ctx, key)
	require.NoError(t, err)
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	assert.Equal(t, "second", string(got))
}

func TestLocalStorage_MaxSize(t *testing.T) {
	s := newTestLocalStorage(t)
	ctx := context.Background()

	data := bytes.Repeat([]byte("a"), 100)
	err := s.Put(ctx, "reports/big/file.pdf", bytes.NewReader(data), PutOptions{MaxSize: 50})
	require.Error(t, err)
	assert.True(t, IsTooLarge(err))

	// Under the limit succeeds
	err = s.Put(ctx, "reports/ok/file.pdf", bytes.NewReader(data), PutOptions{MaxSize: 100})
	assert.NoError(t, err)
}

func TestLocalStorage_RejectsTraversal(t *testing.T) {
	s := newTestLocalStorage(t)
	ctx := context.Background()

	keys := []string{
		"",
		"../escape.pdf",
		"reports/../../etc/passwd",
		"/absolute/path.pdf",
	}
	for _, key := range keys {
		err := s.Put(ctx, key, strings.NewReader("x"), PutOptions{})
		assert.Error(t, err, "key %q should be rejected", key)
	}
}

func TestLocalStorage_DeleteIdempotent(t *testing.T) {
	s := newTestLocalStorage(t)
	ctx := context.Background()
	key := "reports/d/file.pdf"

	require.NoError(t, s.Put(ctx, key, strings.NewReader("x"), PutOptions{}))
	require.NoError(t, s.Delete(ctx, key))

	exists, err := s.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)

	// Deleting again is not an error
	assert.NoError(t, s.Delete(ctx, key))
}

func TestLocalStorage_URL(t *testing.T) {
	s := newTestLocalStorage(t)

	url, err := s.URL(context.Background(), "reports/u/file.pdf", 0)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/files/reports/u/file.pdf", url)
}

func TestReportKey(t *testing.T) {
	id := uuid.MustParse("123e4567-e89b-12d3-a456-426614174000")
	key := ReportKey(id, "Inspection_Report_2024-03-15.pdf")
	assert.Equal(t, "reports/123e4567-e89b-12d3-a456-426614174000/Inspection_Report_2024-03-15.pdf", key)
	assert.Equal(t, "Inspection_Report_2024-03-15.pdf", filepath.Base(key))
}

func TestDetectContentType(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"report.pdf", "application/pdf"},
		{"photo.JPG", "image/jpeg"},
		{"photo.jpeg", "image/jpeg"},
		{"photo.png", "image/png"},
		{"manifest.json", "application/json"},
		{"unknown.bin", "application/octet-stream"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectContentType(tt.filename), tt.filename)
	}
}

func TestIsAllowedImageType(t *testing.T) {
	assert.True(t, IsAllowedImageType("image/jpeg"))
	assert.True(t, IsAllowedImageType("image/png"))
	assert.True(t, IsAllowedImageType("IMAGE/JPEG; charset=binary"))
	assert.False(t, IsAllowedImageType("image/gif"))
	assert.False(t, IsAllowedImageType("application/pdf"))
}

func TestIsPDF(t *testing.T) {
	assert.True(t, IsPDF("application/pdf"))
	assert.True(t, IsPDF("application/pdf; charset=binary"))
	assert.False(t, IsPDF("image/png"))
}
