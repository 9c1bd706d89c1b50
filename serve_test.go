package main

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/jung-kurt/gofpdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"folder2pdf/s3"
	"folder2pdf/s3/s3test"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < w; i++ {
		img.Set(i, i%h, color.RGBA{R: 0xff, A: 0xff})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func pdfBytes(t *testing.T, pages int) []byte {
	t.Helper()
	doc := gofpdf.New("P", "pt", "A4", "")
	for i := 0; i < pages; i++ {
		doc.AddPage()
	}
	var buf bytes.Buffer
	require.NoError(t, doc.Output(&buf))
	return buf.Bytes()
}

// multipartBody builds a form with one "files" part per entry, in order.
func multipartBody(t *testing.T, files [][2]string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, f := range files {
		part, err := mw.CreateFormFile("files", f[0])
		require.NoError(t, err)
		_, err = part.Write([]byte(f[1]))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func newTestServer(t *testing.T) (*server, string) {
	t.Helper()
	logger, _ := logtest.NewNullLogger()
	tmp := t.TempDir()
	return &server{lookup: settings(nil), tmpDir: tmp, log: logger}, tmp
}

func postMerge(t *testing.T, srv *server, query string, files [][2]string) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, files)
	req := httptest.NewRequest(http.MethodPost, "/merge"+query, body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, req)
	return rec
}

func TestServerMerge(t *testing.T) {
	srv, tmp := newTestServer(t)

	rec := postMerge(t, srv, "?page-size=letter", [][2]string{
		{"b.pdf", string(pdfBytes(t, 2))},
		{"a.png", string(pngBytes(t, 60, 30))},
		{"readme.md", "ignored"},
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))

	out := filepath.Join(t.TempDir(), "response.pdf")
	require.NoError(t, os.WriteFile(out, rec.Body.Bytes(), 0o644))

	dims, err := api.PageDimsFile(out)
	require.NoError(t, err)
	require.Len(t, dims, 3)
	// a.png sorts first and is rendered on a letter page.
	assert.InDelta(t, 612, dims[0].Width, 0.01)
	assert.InDelta(t, 792, dims[0].Height, 0.01)

	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, entries, "staging directory should be removed")
}

func TestServerMergeErrors(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		files      [][2]string
		wantStatus int
	}{
		{
			name:       "invalid option",
			query:      "?quality=101",
			files:      [][2]string{{"a.png", string(pngBytes(t, 10, 10))}},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "no files",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "nothing mergeable",
			files:      [][2]string{{"notes.txt", "hello"}},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "corrupt image",
			files:      [][2]string{{"a.png", "not a png"}},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "corrupt pdf",
			files:      [][2]string{{"a.pdf", "%PDF-1.4 broken"}},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, tmp := newTestServer(t)

			rec := postMerge(t, srv, tt.query, tt.files)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			var resp map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp["message"])

			entries, err := os.ReadDir(tmp)
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}

func TestServerMergeStagesBaseNames(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := postMerge(t, srv, "", [][2]string{
		{"../../escape.png", string(pngBytes(t, 10, 10))},
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	_, err := os.Stat(filepath.Join(filepath.Dir(srv.tmpDir), "escape.png"))
	assert.True(t, os.IsNotExist(err))
}

func TestServerDownloadWithoutStore(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/merged/0b0f5b64-4a8e-4c61-9a47-5d3c2f1e8a90", nil)
	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func newStoreServer(t *testing.T) (*server, *s3test.Server) {
	t.Helper()
	fake := s3test.NewServer("merged")
	t.Cleanup(fake.Close)

	srv, _ := newTestServer(t)
	store, err := s3.NewStore(s3.Config{
		Endpoint:  fake.Endpoint(),
		AccessKey: "access",
		SecretKey: "secret",
		Bucket:    fake.Bucket,
		Region:    s3test.Region,
	}, srv.log)
	require.NoError(t, err)
	srv.store = store
	return srv, fake
}

func getMerged(srv *server, id string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/merged/"+id, nil)
	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, req)
	return rec
}

func TestServerMergeUploadsToStore(t *testing.T) {
	srv, fake := newStoreServer(t)

	rec := postMerge(t, srv, "", [][2]string{
		{"a.png", string(pngBytes(t, 40, 20))},
		{"b.pdf", string(pdfBytes(t, 1))},
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	id := rec.Body.String()
	_, err := uuid.Parse(id)
	require.NoError(t, err, "body should be the object id")

	stored, ok := fake.Object(id)
	require.True(t, ok)
	assert.True(t, bytes.HasPrefix(stored, []byte("%PDF")))

	got := getMerged(srv, id)
	require.Equal(t, http.StatusOK, got.Code)
	assert.Equal(t, "application/pdf", got.Header().Get("Content-Type"))
	assert.Equal(t, stored, got.Body.Bytes())
}

func TestServerMergeStoreFailure(t *testing.T) {
	srv, fake := newStoreServer(t)
	fake.Fail(http.StatusForbidden, "AccessDenied")

	rec := postMerge(t, srv, "", [][2]string{{"a.png", string(pngBytes(t, 10, 10))}})

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	entries, err := os.ReadDir(srv.tmpDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestServerDownload(t *testing.T) {
	const id = "0b0f5b64-4a8e-4c61-9a47-5d3c2f1e8a90"

	tests := []struct {
		name       string
		id         string
		setup      func(fake *s3test.Server)
		wantStatus int
	}{
		{
			name:       "stored",
			id:         id,
			setup:      func(fake *s3test.Server) { fake.Put(id, []byte("%PDF-1.7")) },
			wantStatus: http.StatusOK,
		},
		{
			name:       "unknown id",
			id:         id,
			setup:      func(fake *s3test.Server) {},
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "not a uuid",
			id:         "not-a-uuid",
			setup:      func(fake *s3test.Server) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "store unavailable",
			id:         id,
			setup:      func(fake *s3test.Server) { fake.Fail(http.StatusForbidden, "AccessDenied") },
			wantStatus: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, fake := newStoreServer(t)
			tt.setup(fake)

			rec := getMerged(srv, tt.id)

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, []byte("%PDF-1.7"), rec.Body.Bytes())
			}
		})
	}
}
