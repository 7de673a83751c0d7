// internal/handlers/gallery_test.go
package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jason-s-yu/sketchlobby/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uploadRequest(t *testing.T, field, filename string, body []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write(body)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/gallery", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestListAndRandomImages(t *testing.T) {
	empty := newTestServer(t)
	w := do(t, empty.Routes(), http.MethodGet, "/gallery/random", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	srv := newTestServer(t, "b.png", "a.gif")
	h := srv.Routes()

	w = do(t, h, http.MethodGet, "/gallery", "")
	require.Equal(t, http.StatusOK, w.Code)
	var images []models.Image
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &images))
	require.Len(t, images, 2)
	assert.Equal(t, "a.gif", images[0].ID)
	assert.Equal(t, "b.png", images[1].ID)

	w = do(t, h, http.MethodGet, "/gallery/random", "")
	require.Equal(t, http.StatusOK, w.Code)
	var img models.Image
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &img))
	assert.Contains(t, []string{"a.gif", "b.png"}, img.ID)
}

func TestUploadImage(t *testing.T) {
	srv := newTestServer(t)
	h := srv.Routes()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, uploadRequest(t, "file", "Sunset.PNG", []byte("pngbytes")))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var img models.Image
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &img))
	assert.Equal(t, img.URL, w.Header().Get("Location"))
	assert.Equal(t, "/images/"+img.ID, img.URL)
	assert.EqualValues(t, len("pngbytes"), img.SizeBytes)

	// The stored file is served statically.
	w = do(t, h, http.MethodGet, img.URL, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pngbytes", w.Body.String())
}

func TestUploadImageRejects(t *testing.T) {
	srv := newTestServer(t)
	srv.UploadMaxBytes = 1 << 10
	h := srv.Routes()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, uploadRequest(t, "file", "run.exe", []byte("MZ")))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, uploadRequest(t, "other", "a.png", []byte("x")))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, uploadRequest(t, "file", "big.png", bytes.Repeat([]byte("x"), 4<<10)))
	assert.NotEqual(t, http.StatusCreated, w.Code)

	images, err := srv.Gallery.List()
	require.NoError(t, err)
	assert.Empty(t, images)
}
