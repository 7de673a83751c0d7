// Package gallery is the file-backed image library lobbies draw their round
// images from.
package gallery

import (
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jason-s-yu/sketchlobby/internal/models"
)

// URLPrefix is where the server exposes the images root.
const URLPrefix = "/images/"

var (
	ErrUnsupportedExtension = errors.New("only .jpg, .jpeg, .png, .gif, .webp are allowed")
	ErrEmptyUpload          = errors.New("no file uploaded")
)

var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// Allowed reports whether name carries an accepted image extension.
func Allowed(name string) bool {
	return allowedExtensions[strings.ToLower(filepath.Ext(name))]
}

// Library serves images out of a single flat directory.
type Library struct {
	root string
	intn func(n int) int
}

// Open returns a Library rooted at dir, creating the directory if needed.
func Open(dir string) (*Library, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create images root: %w", err)
	}
	return &Library{root: dir, intn: rand.IntN}, nil
}

// Root is the directory backing the library.
func (l *Library) Root() string { return l.root }

// List returns every image in the library ordered by id.
func (l *Library) List() ([]models.Image, error) {
	entries, err := os.ReadDir(l.root)
	if err != nil {
		return nil, fmt.Errorf("read images root: %w", err)
	}
	out := make([]models.Image, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || !Allowed(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// removed between ReadDir and Info
			continue
		}
		out = append(out, describe(e.Name(), info.Size()))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// RandomImage picks one image uniformly. It returns nil, nil when the library
// is empty.
func (l *Library) RandomImage() (*models.Image, error) {
	images, err := l.List()
	if err != nil {
		return nil, err
	}
	if len(images) == 0 {
		return nil, nil
	}
	img := images[l.intn(len(images))]
	return &img, nil
}

// ResolvePath maps an image id to its file. Ids that could escape the root,
// or that name no regular file, resolve to false.
func (l *Library) ResolvePath(imageID string) (string, bool) {
	if imageID == "" || imageID == "." || strings.Contains(imageID, "..") ||
		strings.ContainsAny(imageID, `/\`) {
		return "", false
	}
	path := filepath.Join(l.root, imageID)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	return path, true
}

// Save stores the contents of r under a fresh name that keeps the lowercased
// extension of name.
func (l *Library) Save(name string, r io.Reader) (*models.Image, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if !allowedExtensions[ext] {
		return nil, ErrUnsupportedExtension
	}

	id := uuid.NewString() + ext
	path := filepath.Join(l.root, id)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", id, err)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && n == 0 {
		err = ErrEmptyUpload
	}
	if err != nil {
		os.Remove(path)
		return nil, err
	}

	img := describe(id, n)
	return &img, nil
}

func describe(id string, size int64) models.Image {
	return models.Image{ID: id, URL: URLPrefix + id, SizeBytes: size}
}
