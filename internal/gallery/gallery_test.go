package gallery

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLibrary(t *testing.T, files map[string]string) *Library {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "images")
	lib, err := Open(dir)
	require.NoError(t, err)
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return lib
}

func TestOpenCreatesRoot(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	lib, err := Open(dir)
	require.NoError(t, err)
	assert.DirExists(t, dir)
	assert.Equal(t, dir, lib.Root())
}

func TestListFiltersAndSorts(t *testing.T) {
	lib := newTestLibrary(t, map[string]string{
		"b.PNG":     "bb",
		"a.jpg":     "a",
		"notes.txt": "skip",
		"c.webp":    "ccc",
	})
	require.NoError(t, os.Mkdir(filepath.Join(lib.Root(), "dir.png"), 0o755))

	images, err := lib.List()
	require.NoError(t, err)
	require.Len(t, images, 3)
	assert.Equal(t, "a.jpg", images[0].ID)
	assert.Equal(t, "/images/a.jpg", images[0].URL)
	assert.EqualValues(t, 1, images[0].SizeBytes)
	assert.Equal(t, "b.PNG", images[1].ID)
	assert.Equal(t, "c.webp", images[2].ID)
	assert.EqualValues(t, 3, images[2].SizeBytes)
}

func TestRandomImage(t *testing.T) {
	empty := newTestLibrary(t, nil)
	img, err := empty.RandomImage()
	require.NoError(t, err)
	assert.Nil(t, img)

	lib := newTestLibrary(t, map[string]string{"a.png": "1", "b.png": "22"})
	lib.intn = func(n int) int { return n - 1 }
	img, err = lib.RandomImage()
	require.NoError(t, err)
	require.NotNil(t, img)
	assert.Equal(t, "b.png", img.ID)
	assert.EqualValues(t, 2, img.SizeBytes)
}

func TestResolvePath(t *testing.T) {
	lib := newTestLibrary(t, map[string]string{"a.png": "1"})
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(lib.Root()), "secret.png"), []byte("x"), 0o644))

	path, ok := lib.ResolvePath("a.png")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(lib.Root(), "a.png"), path)

	for _, id := range []string{"", ".", "missing.png", "../secret.png", "sub/a.png", `..\secret.png`} {
		_, ok := lib.ResolvePath(id)
		assert.False(t, ok, id)
	}
}

func TestSave(t *testing.T) {
	lib := newTestLibrary(t, nil)

	img, err := lib.Save("Holiday.JPG", strings.NewReader("jpegdata"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(img.ID, ".jpg"), img.ID)
	assert.Len(t, img.ID, 36+len(".jpg"))
	assert.Equal(t, "/images/"+img.ID, img.URL)
	assert.EqualValues(t, len("jpegdata"), img.SizeBytes)

	path, ok := lib.ResolvePath(img.ID)
	require.True(t, ok)
	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "jpegdata", string(body))
}

func TestSaveRejects(t *testing.T) {
	lib := newTestLibrary(t, nil)

	_, err := lib.Save("virus.exe", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrUnsupportedExtension)

	_, err = lib.Save("empty.png", strings.NewReader(""))
	assert.ErrorIs(t, err, ErrEmptyUpload)

	images, err := lib.List()
	require.NoError(t, err)
	assert.Empty(t, images, "rejected uploads leave nothing behind")
}
